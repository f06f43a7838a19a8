// Package dwarfbuilder provides a way to build DWARF sections with
// arbitrary contents.
//
// It exists for tests: the decoders in this module are exercised against
// sections assembled here, including deliberately malformed ones.
package dwarfbuilder

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/leb128"
)

// Field is one attribute of an entry. Val must match Form:
// uint64 for addresses, references, fixed-size and unsigned data, int64 for
// sdata, []byte for blocks and exprloc, string for string and strp,
// bool for flag. flag_present and implicit_const take no value, the
// latter's constant being given as an int64 Val instead.
type Field struct {
	Attr godwarf.Attr
	Form godwarf.Form
	Val  interface{}
}

type abbrevDecl struct {
	tag      godwarf.Tag
	children bool
	fields   []Field
}

// Builder builds .debug_info, .debug_abbrev and .debug_str sections.
type Builder struct {
	Order       binary.ByteOrder
	Version     uint16
	AddressSize uint8
	Dwarf64     bool

	info    bytes.Buffer
	unit    bytes.Buffer
	str     bytes.Buffer
	abbrevs []abbrevDecl
	codes   map[string]uint64
	depth   int
	inUnit  bool
}

// New creates a builder of little endian, 32-bit DWARF 4 units with
// 8-byte addresses.
func New() *Builder {
	return &Builder{
		Order:       binary.LittleEndian,
		Version:     4,
		AddressSize: 8,
		codes:       make(map[string]uint64),
	}
}

// Unit closes the current unit, if any, and starts a new one.
func (b *Builder) Unit() *Builder {
	b.closeUnit()
	b.inUnit = true
	b.unit.Reset()
	return b
}

// TagOpen writes an entry that has children. Close it with TagClose.
func (b *Builder) TagOpen(tag godwarf.Tag, fields ...Field) *Builder {
	b.entry(tag, true, fields)
	b.depth++
	return b
}

// Tag writes an entry without children.
func (b *Builder) Tag(tag godwarf.Tag, fields ...Field) *Builder {
	b.entry(tag, false, fields)
	return b
}

// TagClose writes the null entry ending the children of the last open tag.
func (b *Builder) TagClose() *Builder {
	b.depth--
	b.unit.WriteByte(0)
	return b
}

// Raw appends bytes to the current unit as is.
func (b *Builder) Raw(data ...byte) *Builder {
	if !b.inUnit {
		b.Unit()
	}
	b.unit.Write(data)
	return b
}

// UnitOffset returns the unit-relative offset the next entry will get.
func (b *Builder) UnitOffset() uint64 {
	return uint64(b.headerSize() + b.unit.Len())
}

// Str appends s to .debug_str and returns its offset.
func (b *Builder) Str(s string) uint64 {
	off := uint64(b.str.Len())
	b.str.WriteString(s)
	b.str.WriteByte(0)
	return off
}

// Build closes the last unit and returns the sections.
func (b *Builder) Build() (info, abbrev, str []byte, err error) {
	b.closeUnit()
	if b.depth != 0 {
		return nil, nil, nil, fmt.Errorf("unbalanced TagOpen/TagClose %d", b.depth)
	}
	return b.info.Bytes(), b.abbrevTable(), b.str.Bytes(), nil
}

// Sections is Build returning godwarf sections.
func (b *Builder) Sections() (info, abbrev, str *godwarf.Section, err error) {
	i, a, s, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return godwarf.NewSection(".debug_info", i, b.Order),
		godwarf.NewSection(".debug_abbrev", a, b.Order),
		godwarf.NewSection(".debug_str", s, b.Order), nil
}

func (b *Builder) entry(tag godwarf.Tag, children bool, fields []Field) {
	if !b.inUnit {
		b.Unit()
	}
	code := b.abbrevCode(tag, children, fields)
	leb128.EncodeUnsigned(&b.unit, code)
	for _, f := range fields {
		b.value(f.Form, f.Val)
	}
}

func (b *Builder) abbrevCode(tag godwarf.Tag, children bool, fields []Field) uint64 {
	key := fmt.Sprintf("%d/%t", tag, children)
	for _, f := range fields {
		key += fmt.Sprintf("/%d:%d", f.Attr, f.Form)
		if f.Form == godwarf.FormImplicitConst {
			key += fmt.Sprintf("=%d", f.Val)
		}
	}
	if code, ok := b.codes[key]; ok {
		return code
	}
	b.abbrevs = append(b.abbrevs, abbrevDecl{tag: tag, children: children, fields: fields})
	code := uint64(len(b.abbrevs))
	b.codes[key] = code
	return code
}

func (b *Builder) value(form godwarf.Form, val interface{}) {
	w := &b.unit
	switch form {
	case godwarf.FormAddr:
		b.uint(w, val.(uint64), int(b.AddressSize))
	case godwarf.FormData1, godwarf.FormRef1, godwarf.FormStrx1, godwarf.FormAddrx1:
		w.WriteByte(uint8(val.(uint64)))
	case godwarf.FormData2, godwarf.FormRef2, godwarf.FormStrx2, godwarf.FormAddrx2:
		b.uint(w, val.(uint64), 2)
	case godwarf.FormData4, godwarf.FormRef4, godwarf.FormRefSup4, godwarf.FormStrx4, godwarf.FormAddrx4:
		b.uint(w, val.(uint64), 4)
	case godwarf.FormData8, godwarf.FormRef8, godwarf.FormRefSig8, godwarf.FormRefSup8:
		b.uint(w, val.(uint64), 8)
	case godwarf.FormUdata, godwarf.FormRefUdata, godwarf.FormStrx, godwarf.FormAddrx,
		godwarf.FormLoclistx, godwarf.FormRnglistx:
		leb128.EncodeUnsigned(w, val.(uint64))
	case godwarf.FormSdata:
		leb128.EncodeSigned(w, val.(int64))
	case godwarf.FormFlag:
		if val.(bool) {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case godwarf.FormFlagPresent, godwarf.FormImplicitConst:
	case godwarf.FormString:
		w.WriteString(val.(string))
		w.WriteByte(0)
	case godwarf.FormStrp:
		b.offset(w, b.Str(val.(string)))
	case godwarf.FormSecOffset, godwarf.FormLineStrp:
		b.offset(w, val.(uint64))
	case godwarf.FormRefAddr:
		if b.Version == 2 {
			b.uint(w, val.(uint64), int(b.AddressSize))
		} else {
			b.offset(w, val.(uint64))
		}
	case godwarf.FormBlock1:
		data := val.([]byte)
		w.WriteByte(uint8(len(data)))
		w.Write(data)
	case godwarf.FormBlock2:
		data := val.([]byte)
		b.uint(w, uint64(len(data)), 2)
		w.Write(data)
	case godwarf.FormBlock4:
		data := val.([]byte)
		b.uint(w, uint64(len(data)), 4)
		w.Write(data)
	case godwarf.FormBlock, godwarf.FormExprloc:
		data := val.([]byte)
		leb128.EncodeUnsigned(w, uint64(len(data)))
		w.Write(data)
	case godwarf.FormData16:
		w.Write(val.([]byte))
	default:
		// unknown forms carry raw bytes so decoders can be fed garbage
		if data, ok := val.([]byte); ok {
			w.Write(data)
		}
	}
}

func (b *Builder) uint(w *bytes.Buffer, v uint64, size int) {
	var buf [8]byte
	switch size {
	case 1:
		buf[0] = uint8(v)
	case 2:
		b.Order.PutUint16(buf[:], uint16(v))
	case 4:
		b.Order.PutUint32(buf[:], uint32(v))
	case 8:
		b.Order.PutUint64(buf[:], v)
	}
	w.Write(buf[:size])
}

func (b *Builder) offset(w *bytes.Buffer, v uint64) {
	if b.Dwarf64 {
		b.uint(w, v, 8)
	} else {
		b.uint(w, v, 4)
	}
}

func (b *Builder) headerSize() int {
	n := 4 + 2 + 4 + 1
	if b.Dwarf64 {
		n = 12 + 2 + 8 + 1
	}
	if b.Version >= 5 {
		n++
	}
	return n
}

func (b *Builder) closeUnit() {
	if !b.inUnit {
		return
	}
	b.inUnit = false

	var hdr bytes.Buffer
	length := uint64(b.headerSize() + b.unit.Len())
	if b.Dwarf64 {
		length -= 12
		b.uint(&hdr, 0xffffffff, 4)
		b.uint(&hdr, length, 8)
	} else {
		length -= 4
		b.uint(&hdr, length, 4)
	}
	b.uint(&hdr, uint64(b.Version), 2)
	if b.Version >= 5 {
		hdr.WriteByte(godwarf.UTCompile)
		hdr.WriteByte(b.AddressSize)
		b.offset(&hdr, 0)
	} else {
		b.offset(&hdr, 0)
		hdr.WriteByte(b.AddressSize)
	}
	b.info.Write(hdr.Bytes())
	b.info.Write(b.unit.Bytes())
}

func (b *Builder) abbrevTable() []byte {
	var w bytes.Buffer
	for i, a := range b.abbrevs {
		leb128.EncodeUnsigned(&w, uint64(i+1))
		leb128.EncodeUnsigned(&w, uint64(a.tag))
		if a.children {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
		for _, f := range a.fields {
			leb128.EncodeUnsigned(&w, uint64(f.Attr))
			leb128.EncodeUnsigned(&w, uint64(f.Form))
			if f.Form == godwarf.FormImplicitConst {
				leb128.EncodeSigned(&w, f.Val.(int64))
			}
		}
		w.Write([]byte{0, 0})
	}
	w.WriteByte(0)
	return w.Bytes()
}
