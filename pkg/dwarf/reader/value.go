package reader

import (
	"fmt"
)

// Value is a decoded attribute value. Its concrete type is chosen by the
// attribute's form alone:
//
//	addr                               Address
//	data1, data2, data4, data8, udata  Udata
//	sdata, implicit_const              Sdata
//	data16                             Data16
//	block, block1, block2, block4      Block
//	exprloc                            Exprloc
//	string                             String
//	strp, strp_sup                     StrRef
//	line_strp                          LineStrRef
//	strx, strx1..strx4                 StrIndex
//	addrx, addrx1..addrx4              AddrIndex
//	ref1, ref2, ref4, ref8, ref_udata  UnitRef
//	ref_addr                           InfoRef
//	ref_sup4, ref_sup8                 SupRef
//	ref_sig8                           SigRef
//	flag, flag_present                 Flag
//	sec_offset                         SecOffset
//	loclistx, rnglistx                 ListIndex
type Value interface {
	isValue()
}

type (
	// Address is a target machine address.
	Address uint64
	// Udata is an unsigned constant.
	Udata uint64
	// Sdata is a signed constant.
	Sdata int64
	// Data16 is a 16-byte constant.
	Data16 []byte
	// Block is an uninterpreted block of bytes.
	Block []byte
	// Exprloc is a DWARF expression.
	Exprloc []byte
	// String is a string stored inline in the entry.
	String string
	// StrRef is an offset into .debug_str.
	StrRef uint64
	// LineStrRef is an offset into .debug_line_str.
	LineStrRef uint64
	// StrIndex is an index into the unit's string offsets table.
	StrIndex uint64
	// AddrIndex is an index into the unit's address table.
	AddrIndex uint64
	// UnitRef is the offset of an entry relative to the start of the unit.
	UnitRef uint64
	// InfoRef is the offset of an entry in .debug_info.
	InfoRef uint64
	// SupRef is the offset of an entry in the supplementary object file.
	SupRef uint64
	// SigRef is the 8-byte signature of a type unit.
	SigRef uint64
	// Flag is a boolean.
	Flag bool
	// SecOffset is an offset into another debug section, e.g.
	// .debug_line for DW_AT_stmt_list.
	SecOffset uint64
	// ListIndex is an index into a location or range list table.
	ListIndex uint64
)

func (Address) isValue()    {}
func (Udata) isValue()      {}
func (Sdata) isValue()      {}
func (Data16) isValue()     {}
func (Block) isValue()      {}
func (Exprloc) isValue()    {}
func (String) isValue()     {}
func (StrRef) isValue()     {}
func (LineStrRef) isValue() {}
func (StrIndex) isValue()   {}
func (AddrIndex) isValue()  {}
func (UnitRef) isValue()    {}
func (InfoRef) isValue()    {}
func (SupRef) isValue()     {}
func (SigRef) isValue()     {}
func (Flag) isValue()       {}
func (SecOffset) isValue()  {}
func (ListIndex) isValue()  {}

// Uint returns v as an unsigned integer when v is an address, a constant
// or a section offset. Data forms of DWARF 2 and 3 are also used for
// section offsets, e.g. DW_AT_stmt_list.
func Uint(v Value) (uint64, bool) {
	switch v := v.(type) {
	case Address:
		return uint64(v), true
	case Udata:
		return uint64(v), true
	case Sdata:
		return uint64(v), v >= 0
	case SecOffset:
		return uint64(v), true
	}
	return 0, false
}

// Int returns v as a signed integer when v is a constant.
func Int(v Value) (int64, bool) {
	switch v := v.(type) {
	case Udata:
		return int64(v), true
	case Sdata:
		return int64(v), true
	}
	return 0, false
}

// Format returns a human readable rendering of v.
func Format(v Value) string {
	switch v := v.(type) {
	case Address:
		return fmt.Sprintf("%#x", uint64(v))
	case Udata:
		return fmt.Sprintf("%d", uint64(v))
	case Sdata:
		return fmt.Sprintf("%d", int64(v))
	case Data16:
		return fmt.Sprintf("%x", []byte(v))
	case Block:
		return fmt.Sprintf("block[%d] %x", len(v), []byte(v))
	case Exprloc:
		return fmt.Sprintf("exprloc[%d] %x", len(v), []byte(v))
	case String:
		return fmt.Sprintf("%q", string(v))
	case StrRef:
		return fmt.Sprintf("(.debug_str+%#x)", uint64(v))
	case LineStrRef:
		return fmt.Sprintf("(.debug_line_str+%#x)", uint64(v))
	case StrIndex:
		return fmt.Sprintf("(strx %d)", uint64(v))
	case AddrIndex:
		return fmt.Sprintf("(addrx %d)", uint64(v))
	case UnitRef:
		return fmt.Sprintf("<%#x>", uint64(v))
	case InfoRef:
		return fmt.Sprintf("<.debug_info+%#x>", uint64(v))
	case SupRef:
		return fmt.Sprintf("<sup+%#x>", uint64(v))
	case SigRef:
		return fmt.Sprintf("signature %#016x", uint64(v))
	case Flag:
		return fmt.Sprintf("%t", bool(v))
	case SecOffset:
		return fmt.Sprintf("%#x", uint64(v))
	case ListIndex:
		return fmt.Sprintf("(listx %d)", uint64(v))
	}
	return fmt.Sprintf("%v", v)
}
