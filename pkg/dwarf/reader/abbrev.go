package reader

import (
	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// AttrSpec is one (attribute, form) pair of an abbreviation declaration.
type AttrSpec struct {
	Attr godwarf.Attr
	Form godwarf.Form
	// ImplicitConst holds the value of a DW_FORM_implicit_const attribute,
	// which is stored in the declaration rather than in the entry.
	ImplicitConst int64
}

// Abbrev is an abbreviation declaration, see DWARFv4 7.5.3.
type Abbrev struct {
	Code     uint64
	Tag      godwarf.Tag
	Children bool
	Fields   []AttrSpec
}

// AbbrevTable maps abbreviation codes to their declarations. It is
// immutable once parsed.
type AbbrevTable struct {
	// Offset of the table in .debug_abbrev.
	Offset uint64

	abbrevs map[uint64]*Abbrev
	codes   []uint64
}

// ParseAbbrevTable parses the abbreviation table starting at offset off of
// the .debug_abbrev section.
//
// The table is a sequence of declarations ended by a 0 code. Each
// declaration is: code, tag, children flag, then (attribute, form) pairs
// ended by (0, 0).
func ParseAbbrevTable(sec *godwarf.Section, off uint64) (*AbbrevTable, error) {
	b, err := sec.BufAt(off)
	if err != nil {
		return nil, err
	}

	table := &AbbrevTable{Offset: off, abbrevs: make(map[uint64]*Abbrev)}
	for {
		declOff := b.Offset()

		code, err := b.ULEB128()
		if err != nil {
			return nil, malformed(err)
		}
		if code == 0 {
			return table, nil
		}
		if _, dup := table.abbrevs[code]; dup {
			return nil, b.ErrorAt(declOff, util.ErrMalformedAbbreviation, "duplicate abbreviation code %d", code)
		}

		abbrev, err := parseAbbrev(&b, code)
		if err != nil {
			return nil, err
		}
		table.abbrevs[code] = abbrev
		table.codes = append(table.codes, code)
	}
}

func parseAbbrev(b *util.Buf, code uint64) (*Abbrev, error) {
	tag, err := b.ULEB128()
	if err != nil {
		return nil, malformed(err)
	}

	childrenOff := b.Offset()
	children, err := b.U8()
	if err != nil {
		return nil, malformed(err)
	}
	if children > 1 {
		return nil, b.ErrorAt(childrenOff, util.ErrMalformedAbbreviation, "children flag %#x of abbreviation %d", children, code)
	}

	abbrev := &Abbrev{Code: code, Tag: godwarf.Tag(tag), Children: children == 1}
	for {
		specOff := b.Offset()
		attr, err := b.ULEB128()
		if err != nil {
			return nil, malformed(err)
		}
		form, err := b.ULEB128()
		if err != nil {
			return nil, malformed(err)
		}
		if attr == 0 && form == 0 {
			return abbrev, nil
		}
		if attr == 0 || form == 0 {
			return nil, b.ErrorAt(specOff, util.ErrMalformedAbbreviation, "half-null attribute specification (%#x, %#x)", attr, form)
		}

		spec := AttrSpec{Attr: godwarf.Attr(attr), Form: godwarf.Form(form)}
		if spec.Form == godwarf.FormImplicitConst {
			if spec.ImplicitConst, err = b.SLEB128(); err != nil {
				return nil, malformed(err)
			}
		}
		abbrev.Fields = append(abbrev.Fields, spec)
	}
}

// malformed reports running out of data mid-table as a missing terminator.
func malformed(err error) error {
	return util.Reclassify(err, util.ErrUnexpectedEOF, util.ErrMalformedAbbreviation)
}

// Get returns the declaration of code. Code 0 never has one.
func (t *AbbrevTable) Get(code uint64) (*Abbrev, bool) {
	a, ok := t.abbrevs[code]
	return a, ok
}

// Len returns the number of declarations.
func (t *AbbrevTable) Len() int {
	return len(t.abbrevs)
}

// Codes returns the declared codes in declaration order.
func (t *AbbrevTable) Codes() []uint64 {
	codes := make([]uint64, len(t.codes))
	copy(codes, t.codes)
	return codes
}
