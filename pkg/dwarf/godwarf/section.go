package godwarf

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// Section is the raw, already decompressed content of one debug section.
//
// Base is the offset of Data[0] within the section; it is non-zero only
// when the host hands over a slice of a larger section.
type Section struct {
	Name  string
	Data  []byte
	Order binary.ByteOrder
	Base  uint64
}

// NewSection creates a section named name.
func NewSection(name string, data []byte, order binary.ByteOrder) *Section {
	return &Section{Name: name, Data: data, Order: order}
}

// Len returns the section size, 0 for a nil section.
func (s *Section) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Data)
}

// Contains reports whether section offset off addresses a byte of the
// section.
func (s *Section) Contains(off uint64) bool {
	return s != nil && off >= s.Base && off-s.Base < uint64(len(s.Data))
}

// Buf returns a new cursor positioned at the start of the section.
func (s *Section) Buf() util.Buf {
	return util.MakeBuf(s.Name, s.Order, s.Base, s.Data)
}

// BufAt returns a new cursor positioned at section offset off.
func (s *Section) BufAt(off uint64) (util.Buf, error) {
	if off < s.Base || off-s.Base > uint64(len(s.Data)) {
		b := s.Buf()
		return util.Buf{}, b.ErrorAt(off, util.ErrBadOffset, "section is %d bytes", len(s.Data))
	}
	return util.MakeBuf(s.Name, s.Order, off, s.Data[off-s.Base:]), nil
}

// GetDebugSection returns the data contents of the specified debug
// section, e.g. "info" for .debug_info. Sections compressed with
// SHF_COMPRESSED are decompressed by debug/elf.
func GetDebugSection(f *elf.File, name string) ([]byte, error) {
	sec := f.Section(".debug_" + name)
	if sec == nil {
		return nil, fmt.Errorf("could not find .debug_%s section", name)
	}
	if sec.Type == elf.SHT_NOBITS {
		return nil, fmt.Errorf(".debug_%s section has no data", name)
	}
	return sec.Data()
}

// DwarfEndian determines the endianness of the DWARF by using the version number field in the debug_info section
// Trick borrowed from "debug/dwarf".New()
func DwarfEndian(infoSec []byte) binary.ByteOrder {
	if len(infoSec) < 6 {
		return binary.BigEndian
	}
	x, y := infoSec[4], infoSec[5]
	switch {
	case x == 0 && y == 0:
		return binary.BigEndian
	case x == 0:
		return binary.BigEndian
	case y == 0:
		return binary.LittleEndian
	default:
		return binary.BigEndian
	}
}
