package dwarfbuilder

import (
	"bytes"
	"encoding/binary"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/leb128"
)

// LineFile is an entry of a line program's file table.
type LineFile struct {
	Name     string
	DirIndex uint64
	Mtime    uint64
	Length   uint64
}

// LineProgram builds one line number program of .debug_line.
type LineProgram struct {
	Order         binary.ByteOrder
	Version       uint16
	Dwarf64       bool
	MinInstLength uint8
	MaxOps        uint8
	DefaultIsStmt bool
	LineBase      int8
	LineRange     uint8
	OpcodeBase    uint8
	// OpcodeLengths defaults to the standard lengths cut to OpcodeBase-1.
	OpcodeLengths []uint8
	IncludeDirs   []string
	Files         []LineFile
	// HeaderPadding bytes are written between the file table and the
	// program; header_length accounts for them.
	HeaderPadding int

	prog bytes.Buffer
}

// NewLineProgram returns a DWARF 4 program with the header values GCC
// emits: line_base -5, line_range 14, opcode_base 13.
func NewLineProgram() *LineProgram {
	return &LineProgram{
		Order:         binary.LittleEndian,
		Version:       4,
		MinInstLength: 1,
		MaxOps:        1,
		DefaultIsStmt: true,
		LineBase:      -5,
		LineRange:     14,
		OpcodeBase:    13,
	}
}

// Special appends a special opcode.
func (p *LineProgram) Special(opcode uint8) *LineProgram {
	p.prog.WriteByte(opcode)
	return p
}

// Standard appends a standard opcode with LEB128 operands.
func (p *LineProgram) Standard(opcode uint8, args ...uint64) *LineProgram {
	p.prog.WriteByte(opcode)
	for _, a := range args {
		leb128.EncodeUnsigned(&p.prog, a)
	}
	return p
}

func (p *LineProgram) Copy() *LineProgram { return p.Standard(godwarf.LNSCopy) }

func (p *LineProgram) AdvancePc(n uint64) *LineProgram {
	return p.Standard(godwarf.LNSAdvancePc, n)
}

func (p *LineProgram) AdvanceLine(n int64) *LineProgram {
	p.prog.WriteByte(godwarf.LNSAdvanceLine)
	leb128.EncodeSigned(&p.prog, n)
	return p
}

func (p *LineProgram) SetFile(n uint64) *LineProgram   { return p.Standard(godwarf.LNSSetFile, n) }
func (p *LineProgram) SetColumn(n uint64) *LineProgram { return p.Standard(godwarf.LNSSetColumn, n) }
func (p *LineProgram) NegateStmt() *LineProgram        { return p.Standard(godwarf.LNSNegateStmt) }
func (p *LineProgram) SetBasicBlock() *LineProgram     { return p.Standard(godwarf.LNSSetBasicBlock) }
func (p *LineProgram) ConstAddPc() *LineProgram        { return p.Standard(godwarf.LNSConstAddPc) }
func (p *LineProgram) SetPrologueEnd() *LineProgram    { return p.Standard(godwarf.LNSSetPrologueEnd) }
func (p *LineProgram) SetEpilogueBegin() *LineProgram  { return p.Standard(godwarf.LNSSetEpilogueBegin) }
func (p *LineProgram) SetIsa(n uint64) *LineProgram    { return p.Standard(godwarf.LNSSetIsa, n) }

func (p *LineProgram) FixedAdvancePc(n uint16) *LineProgram {
	p.prog.WriteByte(godwarf.LNSFixedAdvancePc)
	var buf [2]byte
	p.Order.PutUint16(buf[:], n)
	p.prog.Write(buf[:])
	return p
}

// Extended appends an extended opcode with raw operand bytes.
func (p *LineProgram) Extended(opcode uint8, operands ...byte) *LineProgram {
	p.prog.WriteByte(0)
	leb128.EncodeUnsigned(&p.prog, uint64(len(operands)+1))
	p.prog.WriteByte(opcode)
	p.prog.Write(operands)
	return p
}

func (p *LineProgram) EndSequence() *LineProgram { return p.Extended(godwarf.LNEEndSequence) }

func (p *LineProgram) SetAddress(addr uint64) *LineProgram {
	var buf [8]byte
	p.Order.PutUint64(buf[:], addr)
	return p.Extended(godwarf.LNESetAddress, buf[:]...)
}

func (p *LineProgram) DefineFile(f LineFile) *LineProgram {
	var w bytes.Buffer
	writeFile(&w, f)
	return p.Extended(godwarf.LNEDefineFile, w.Bytes()...)
}

func (p *LineProgram) SetDiscriminator(n uint64) *LineProgram {
	var w bytes.Buffer
	leb128.EncodeUnsigned(&w, n)
	return p.Extended(godwarf.LNESetDiscriminator, w.Bytes()...)
}

// Raw appends bytes to the program as is.
func (p *LineProgram) Raw(data ...byte) *LineProgram {
	p.prog.Write(data)
	return p
}

// Bytes returns the encoded program, header included.
func (p *LineProgram) Bytes() []byte {
	var hdr bytes.Buffer
	hdr.WriteByte(p.MinInstLength)
	if p.Version >= 4 {
		hdr.WriteByte(p.MaxOps)
	}
	if p.DefaultIsStmt {
		hdr.WriteByte(1)
	} else {
		hdr.WriteByte(0)
	}
	hdr.WriteByte(uint8(p.LineBase))
	hdr.WriteByte(p.LineRange)
	hdr.WriteByte(p.OpcodeBase)
	lengths := p.OpcodeLengths
	if lengths == nil && p.OpcodeBase > 0 {
		lengths = make([]uint8, p.OpcodeBase-1)
		copy(lengths, godwarf.StandardOpcodeLengths[:])
	}
	hdr.Write(lengths)
	for _, d := range p.IncludeDirs {
		hdr.WriteString(d)
		hdr.WriteByte(0)
	}
	hdr.WriteByte(0)
	for _, f := range p.Files {
		writeFile(&hdr, f)
	}
	hdr.WriteByte(0)
	hdr.Write(make([]byte, p.HeaderPadding))

	offSize := 4
	if p.Dwarf64 {
		offSize = 8
	}

	var out bytes.Buffer
	length := uint64(2 + offSize + hdr.Len() + p.prog.Len())
	if p.Dwarf64 {
		p.put(&out, 0xffffffff, 4)
		p.put(&out, length, 8)
	} else {
		p.put(&out, length, 4)
	}
	p.put(&out, uint64(p.Version), 2)
	p.put(&out, uint64(hdr.Len()), offSize)
	out.Write(hdr.Bytes())
	out.Write(p.prog.Bytes())
	return out.Bytes()
}

func (p *LineProgram) put(w *bytes.Buffer, v uint64, size int) {
	var buf [8]byte
	switch size {
	case 2:
		p.Order.PutUint16(buf[:], uint16(v))
	case 4:
		p.Order.PutUint32(buf[:], uint32(v))
	case 8:
		p.Order.PutUint64(buf[:], v)
	}
	w.Write(buf[:size])
}

func writeFile(w *bytes.Buffer, f LineFile) {
	w.WriteString(f.Name)
	w.WriteByte(0)
	leb128.EncodeUnsigned(w, f.DirIndex)
	leb128.EncodeUnsigned(w, f.Mtime)
	leb128.EncodeUnsigned(w, f.Length)
}
