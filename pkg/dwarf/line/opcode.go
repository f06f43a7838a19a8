package line

import (
	"fmt"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// Opcode is one decoded line number program instruction. The concrete
// types below are the only implementations.
type Opcode interface {
	fmt.Stringer
	isOpcode()
}

// Special is an opcode >= opcode_base. It advances address and line
// together and appends a row.
type Special struct {
	Opcode uint8
}

// Standard opcodes.
type (
	Copy             struct{}
	AdvancePc        struct{ N uint64 }
	AdvanceLine      struct{ N int64 }
	SetFile          struct{ N uint64 }
	SetColumn        struct{ N uint64 }
	NegateStmt       struct{}
	SetBasicBlock    struct{}
	ConstAddPc       struct{}
	FixedAdvancePc   struct{ N uint16 }
	SetPrologueEnd   struct{}
	SetEpilogueBegin struct{}
	SetIsa           struct{ N uint64 }
)

// UnknownStandard is a standard opcode the decoder does not execute, or a
// known one whose declared operand count disagrees with DWARF. Its operands
// are skipped using the header's standard_opcode_lengths.
type UnknownStandard struct {
	Opcode uint8
	Args   []uint64
}

// Extended opcodes.
type (
	EndSequence      struct{}
	SetAddress       struct{ Addr uint64 }
	DefineFile       struct{ File FileEntry }
	SetDiscriminator struct{ N uint64 }
)

// UnknownExtended is an extended opcode the decoder does not execute,
// vendor extensions included.
type UnknownExtended struct {
	Opcode uint8
	Data   []byte
}

func (Special) isOpcode()          {}
func (Copy) isOpcode()             {}
func (AdvancePc) isOpcode()        {}
func (AdvanceLine) isOpcode()      {}
func (SetFile) isOpcode()          {}
func (SetColumn) isOpcode()        {}
func (NegateStmt) isOpcode()       {}
func (SetBasicBlock) isOpcode()    {}
func (ConstAddPc) isOpcode()       {}
func (FixedAdvancePc) isOpcode()   {}
func (SetPrologueEnd) isOpcode()   {}
func (SetEpilogueBegin) isOpcode() {}
func (SetIsa) isOpcode()           {}
func (UnknownStandard) isOpcode()  {}
func (EndSequence) isOpcode()      {}
func (SetAddress) isOpcode()       {}
func (DefineFile) isOpcode()       {}
func (SetDiscriminator) isOpcode() {}
func (UnknownExtended) isOpcode()  {}

func (o Special) String() string          { return fmt.Sprintf("special %d", o.Opcode) }
func (Copy) String() string               { return "DW_LNS_copy" }
func (o AdvancePc) String() string        { return fmt.Sprintf("DW_LNS_advance_pc %d", o.N) }
func (o AdvanceLine) String() string      { return fmt.Sprintf("DW_LNS_advance_line %d", o.N) }
func (o SetFile) String() string          { return fmt.Sprintf("DW_LNS_set_file %d", o.N) }
func (o SetColumn) String() string        { return fmt.Sprintf("DW_LNS_set_column %d", o.N) }
func (NegateStmt) String() string         { return "DW_LNS_negate_stmt" }
func (SetBasicBlock) String() string      { return "DW_LNS_set_basic_block" }
func (ConstAddPc) String() string         { return "DW_LNS_const_add_pc" }
func (o FixedAdvancePc) String() string   { return fmt.Sprintf("DW_LNS_fixed_advance_pc %d", o.N) }
func (SetPrologueEnd) String() string     { return "DW_LNS_set_prologue_end" }
func (SetEpilogueBegin) String() string   { return "DW_LNS_set_epilogue_begin" }
func (o SetIsa) String() string           { return fmt.Sprintf("DW_LNS_set_isa %d", o.N) }
func (o UnknownStandard) String() string  { return fmt.Sprintf("standard opcode %#x %v", o.Opcode, o.Args) }
func (EndSequence) String() string        { return "DW_LNE_end_sequence" }
func (o SetAddress) String() string       { return fmt.Sprintf("DW_LNE_set_address %#x", o.Addr) }
func (o DefineFile) String() string       { return fmt.Sprintf("DW_LNE_define_file %q", o.File.Name) }
func (o SetDiscriminator) String() string { return fmt.Sprintf("DW_LNE_set_discriminator %d", o.N) }
func (o UnknownExtended) String() string  { return fmt.Sprintf("extended opcode %#x % x", o.Opcode, o.Data) }

// OpcodeIterator decodes a line number program one opcode at a time.
type OpcodeIterator struct {
	h   *Header
	buf util.Buf
	err error
}

// Offset returns the .debug_line offset of the next opcode.
func (it *OpcodeIterator) Offset() uint64 { return it.buf.Offset() }

// Next returns the next opcode, or nil at the end of the program. Once it
// fails it keeps returning the same error.
func (it *OpcodeIterator) Next() (Opcode, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.buf.Empty() {
		return nil, nil
	}
	op, err := it.decode()
	if err != nil {
		it.err = util.Reclassify(err, util.ErrUnexpectedEOF, util.ErrMalformedOpcode)
		return nil, it.err
	}
	return op, nil
}

func (it *OpcodeIterator) decode() (Opcode, error) {
	op, err := it.buf.U8()
	if err != nil {
		return nil, err
	}
	switch {
	case op >= it.h.OpcodeBase:
		return Special{Opcode: op}, nil
	case op == 0:
		return it.extended()
	}
	return it.standard(op)
}

func (it *OpcodeIterator) standard(op uint8) (Opcode, error) {
	declared := it.h.StdOpcodeLengths[op-1]
	if int(op) > len(godwarf.StandardOpcodeLengths) || godwarf.StandardOpcodeLengths[op-1] != declared {
		args := make([]uint64, declared)
		for i := range args {
			v, err := it.buf.ULEB128()
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return UnknownStandard{Opcode: op, Args: args}, nil
	}

	switch op {
	case godwarf.LNSCopy:
		return Copy{}, nil
	case godwarf.LNSAdvancePc:
		n, err := it.buf.ULEB128()
		return AdvancePc{N: n}, err
	case godwarf.LNSAdvanceLine:
		n, err := it.buf.SLEB128()
		return AdvanceLine{N: n}, err
	case godwarf.LNSSetFile:
		n, err := it.buf.ULEB128()
		return SetFile{N: n}, err
	case godwarf.LNSSetColumn:
		n, err := it.buf.ULEB128()
		return SetColumn{N: n}, err
	case godwarf.LNSNegateStmt:
		return NegateStmt{}, nil
	case godwarf.LNSSetBasicBlock:
		return SetBasicBlock{}, nil
	case godwarf.LNSConstAddPc:
		return ConstAddPc{}, nil
	case godwarf.LNSFixedAdvancePc:
		n, err := it.buf.U16()
		return FixedAdvancePc{N: n}, err
	case godwarf.LNSSetPrologueEnd:
		return SetPrologueEnd{}, nil
	case godwarf.LNSSetEpilogueBegin:
		return SetEpilogueBegin{}, nil
	default: // godwarf.LNSSetIsa
		n, err := it.buf.ULEB128()
		return SetIsa{N: n}, err
	}
}

func (it *OpcodeIterator) extended() (Opcode, error) {
	start := it.buf.Offset() - 1
	length, err := it.buf.ULEB128()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, it.buf.ErrorAt(start, util.ErrMalformedOpcode, "extended opcode of length 0")
	}
	if length > uint64(it.buf.Remaining()) {
		return nil, it.buf.ErrorAt(start, util.ErrMalformedOpcode,
			"extended opcode length %d, %d bytes left", length, it.buf.Remaining())
	}
	body, _ := it.buf.Truncate(int(length))
	op, _ := body.U8()

	switch op {
	case godwarf.LNEEndSequence:
		return EndSequence{}, nil
	case godwarf.LNESetAddress:
		n := body.Remaining()
		if it.h.AddressSize != 0 && n != int(it.h.AddressSize) {
			return nil, it.buf.ErrorAt(start, util.ErrMalformedOpcode,
				"set_address operand of %d bytes, address size is %d", n, it.h.AddressSize)
		}
		switch n {
		case 1, 2, 4, 8:
		default:
			return nil, it.buf.ErrorAt(start, util.ErrMalformedOpcode, "set_address operand of %d bytes", n)
		}
		addr, err := body.Uint(n)
		return SetAddress{Addr: addr}, err
	case godwarf.LNEDefineFile:
		f, done, err := readFileEntry(&body)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, it.buf.ErrorAt(start, util.ErrMalformedOpcode, "define_file with an empty name")
		}
		return DefineFile{File: f}, nil
	case godwarf.LNESetDiscriminator:
		n, err := body.ULEB128()
		return SetDiscriminator{N: n}, err
	}
	return UnknownExtended{Opcode: op, Data: append([]byte(nil), body.Bytes()...)}, nil
}
