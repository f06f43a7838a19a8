package reader

import (
	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// Data gives access to the sections a DIE tree is decoded from. Str and
// LineStr may be nil; string references into a missing section then fail
// when resolved.
type Data struct {
	Info    *godwarf.Section
	Abbrev  *godwarf.Section
	Str     *godwarf.Section
	LineStr *godwarf.Section
}

// New returns a Data over the given sections. info and abbrev are
// required, str and lineStr are optional.
func New(info, abbrev, str, lineStr *godwarf.Section) *Data {
	return &Data{Info: info, Abbrev: abbrev, Str: str, LineStr: lineStr}
}

// Units returns an iterator over the units of .debug_info.
func (d *Data) Units() *UnitIterator {
	return &UnitIterator{data: d, buf: d.Info.Buf()}
}

// UnitAt parses the unit header at section offset off of .debug_info.
func (d *Data) UnitAt(off uint64) (*Unit, error) {
	b, err := d.Info.BufAt(off)
	if err != nil {
		return nil, err
	}
	return parseUnit(&b, d)
}

// AbbrevTable parses the abbreviation table at offset off of .debug_abbrev.
func (d *Data) AbbrevTable(off uint64) (*AbbrevTable, error) {
	return ParseAbbrevTable(d.Abbrev, off)
}

// Unit is a unit header of .debug_info, DWARFv4 7.5.1.
type Unit struct {
	// Offset of the unit length field in .debug_info.
	Offset uint64
	// Length is the unit_length field: the size of the unit not counting
	// the length field itself.
	Length       uint64
	Dwarf64      bool
	Version      uint16
	UnitType     uint8
	AbbrevOffset uint64
	AddressSize  uint8

	// DWOID is set for DWARF 5 skeleton and split compile units.
	DWOID uint64
	// TypeSignature and TypeOffset are set for type units.
	TypeSignature uint64
	TypeOffset    uint64

	data    *Data
	entries util.Buf
}

// UnitIterator walks the units of .debug_info in section order.
type UnitIterator struct {
	data *Data
	buf  util.Buf
	err  error
}

// Next returns the next unit, or nil at the end of the section. Once it
// fails it keeps returning the same error.
func (it *UnitIterator) Next() (*Unit, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.buf.Empty() {
		return nil, nil
	}
	u, err := parseUnit(&it.buf, it.data)
	if err != nil {
		it.err = err
		return nil, err
	}
	return u, nil
}

func parseUnit(b *util.Buf, d *Data) (*Unit, error) {
	start := b.Offset()

	length, dwarf64, err := b.InitialLength()
	if err != nil {
		return nil, util.Reclassify(err, util.ErrUnexpectedEOF, util.ErrUnitHeaderTooShort)
	}
	if length > uint64(b.Remaining()) {
		return nil, b.ErrorAt(start, util.ErrUnitHeaderTooShort,
			"unit length %#x runs past the end of the section (%#x bytes left)", length, b.Remaining())
	}
	body, _ := b.Truncate(int(length))

	u := &Unit{Offset: start, Length: length, Dwarf64: dwarf64, data: d}
	if err := u.parseHeader(&body); err != nil {
		return nil, util.Reclassify(err, util.ErrUnexpectedEOF, util.ErrUnitHeaderTooShort)
	}
	u.entries = body
	return u, nil
}

func (u *Unit) parseHeader(b *util.Buf) error {
	versionOff := b.Offset()

	var err error
	if u.Version, err = b.U16(); err != nil {
		return err
	}
	if u.Version < 2 || u.Version > 5 {
		return b.ErrorAt(versionOff, util.ErrUnsupportedVersion, "unit version %d", u.Version)
	}

	if u.Version < 5 {
		u.UnitType = godwarf.UTCompile
		if u.AbbrevOffset, err = b.OffsetField(u.Dwarf64); err != nil {
			return err
		}
		if u.AddressSize, err = b.U8(); err != nil {
			return err
		}
	} else {
		if u.UnitType, err = b.U8(); err != nil {
			return err
		}
		if u.AddressSize, err = b.U8(); err != nil {
			return err
		}
		if u.AbbrevOffset, err = b.OffsetField(u.Dwarf64); err != nil {
			return err
		}
		switch u.UnitType {
		case godwarf.UTSkeleton, godwarf.UTSplitCompile:
			if u.DWOID, err = b.U64(); err != nil {
				return err
			}
		case godwarf.UTType, godwarf.UTSplitType:
			if u.TypeSignature, err = b.U64(); err != nil {
				return err
			}
			if u.TypeOffset, err = b.OffsetField(u.Dwarf64); err != nil {
				return err
			}
		}
	}

	switch u.AddressSize {
	case 1, 2, 4, 8:
	default:
		return b.ErrorAt(u.Offset, util.ErrUnsupportedVersion, "address size %d", u.AddressSize)
	}
	if !u.data.Abbrev.Contains(u.AbbrevOffset) {
		return b.ErrorAt(u.Offset, util.ErrBadOffset,
			"abbrev offset %#x past .debug_abbrev (%#x bytes)", u.AbbrevOffset, u.data.Abbrev.Len())
	}
	return nil
}

// Size returns the number of bytes the unit occupies, length field included.
func (u *Unit) Size() uint64 {
	if u.Dwarf64 {
		return u.Length + 12
	}
	return u.Length + 4
}

// OffsetSize returns the size of offsets in this unit: 8 in 64-bit DWARF,
// 4 otherwise.
func (u *Unit) OffsetSize() int {
	if u.Dwarf64 {
		return 8
	}
	return 4
}

// HeaderSize returns the number of bytes before the first entry.
func (u *Unit) HeaderSize() uint64 {
	return u.entries.Offset() - u.Offset
}

// EntriesRange returns the .debug_info offsets [start, end) holding the DIE
// tree of the unit.
func (u *Unit) EntriesRange() (start, end uint64) {
	return u.entries.Offset(), u.Offset + u.Size()
}

// Data returns the sections the unit was read from.
func (u *Unit) Data() *Data {
	return u.data
}

// AbbrevTable parses the unit's abbreviation table. Callers decoding many
// units should cache tables by AbbrevOffset.
func (u *Unit) AbbrevTable() (*AbbrevTable, error) {
	return u.data.AbbrevTable(u.AbbrevOffset)
}

// Entries returns a cursor over the unit's DIE tree, rooted at the unit
// entry.
func (u *Unit) Entries(abbrevs *AbbrevTable) *EntriesCursor {
	return &EntriesCursor{unit: u, abbrevs: abbrevs, buf: u.entries}
}

// EntriesAt returns a cursor over the subtree rooted at the entry at
// unit-relative offset off. The entry there is reported at depth 0.
func (u *Unit) EntriesAt(abbrevs *AbbrevTable, off uint64) (*EntriesCursor, error) {
	if off < u.HeaderSize() || off >= u.Size() {
		return nil, u.entries.ErrorAt(u.Offset+off, util.ErrBadOffset,
			"entry offset %#x outside unit [%#x, %#x)", off, u.HeaderSize(), u.Size())
	}
	// the body cursor starts right after the initial length field
	b, err := u.entries.Seek(int(off - (u.Size() - u.Length)))
	if err != nil {
		return nil, err
	}
	return &EntriesCursor{unit: u, abbrevs: abbrevs, buf: b}, nil
}

// EntryAt returns the entry at unit-relative offset off.
func (u *Unit) EntryAt(abbrevs *AbbrevTable, off uint64) (*Entry, error) {
	c, err := u.EntriesAt(abbrevs, off)
	if err != nil {
		return nil, err
	}
	_, e, err := c.NextDFS()
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, u.entries.ErrorAt(u.Offset+off, util.ErrBadOffset, "null entry at %#x", off)
	}
	return e, nil
}
