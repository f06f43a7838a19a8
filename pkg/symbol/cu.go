package symbol

import (
	"github.com/rs/zerolog/log"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/line"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/reader"
)

// CompileUnit compilation unit
//
// see DWARFv4 3.1.1 normal and partial compilation unit entries
type CompileUnit struct {
	// Offset of the unit header in .debug_info.
	Offset   uint64
	Name     string
	CompDir  string
	Producer string
	Language uint64
	LowPC    uint64
	HighPC   uint64
	// StmtList is the offset of the unit's line program in .debug_line,
	// valid if HasLines.
	StmtList uint64
	HasLines bool

	functions []*Function
	unit      *reader.Unit
}

// Functions returns the subprograms declared in the unit.
func (c *CompileUnit) Functions() []*Function {
	return c.functions
}

// Unit returns the decoded unit header.
func (c *CompileUnit) Unit() *reader.Unit {
	return c.unit
}

func (c *CompileUnit) parseFrom(d *reader.Data, entry *reader.Entry) error {
	var high reader.Value

	it := entry.Attrs()
	for {
		field, err := it.Next()
		if err != nil {
			return err
		}
		if field == nil {
			break
		}

		switch field.Name {
		case godwarf.AttrName:
			c.Name = stringValue(d, field.Value)
		case godwarf.AttrCompDir:
			c.CompDir = stringValue(d, field.Value)
		case godwarf.AttrProducer:
			c.Producer = stringValue(d, field.Value)
		case godwarf.AttrLanguage:
			c.Language, _ = reader.Uint(field.Value)
		case godwarf.AttrLowPc:
			c.LowPC, _ = reader.Uint(field.Value)
		case godwarf.AttrHighPc:
			high = field.Value
		case godwarf.AttrStmtList:
			c.StmtList, c.HasLines = reader.Uint(field.Value)
		}
	}
	if high != nil {
		c.HighPC = highPC(c.LowPC, high)
	}
	return nil
}

// parseLineProgram executes the unit's line program and returns its rows
// with file names resolved against the unit's comp_dir.
//
// note: one compile unit may contains more than one source files.
func (c *CompileUnit) parseLineProgram(sec *godwarf.Section, strict bool) ([]*LineEntry, error) {
	h, err := line.ParseHeader(sec, c.StmtList, c.unit.AddressSize)
	if err != nil {
		return nil, err
	}

	var opts []line.Option
	if strict {
		opts = append(opts, line.WithStrictEndSequence())
	}
	m := line.NewStateMachine(h, opts...)

	var lines []*LineEntry
	names := make(map[uint64]string)
	for {
		row, err := m.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}

		name, ok := names[row.File]
		if !ok {
			f, err := m.File(row.File)
			if err != nil {
				return nil, err
			}
			if name, err = h.FilePath(f, c.CompDir); err != nil {
				return nil, err
			}
			names[row.File] = name
		}

		lines = append(lines, &LineEntry{
			Address:     row.Address,
			File:        name,
			Line:        int(row.Line),
			Column:      int(row.Column),
			IsStmt:      row.IsStmt,
			PrologueEnd: row.PrologueEnd,
			EndSequence: row.EndSequence,
		})
	}
	return lines, nil
}

// stringValue resolves a string attribute. Strings that cannot be
// resolved, e.g. DWARF 5 string indexes, read as "".
func stringValue(d *reader.Data, v reader.Value) string {
	s, err := d.String(v)
	if err != nil {
		log.Debug().Err(err).Str("value", reader.Format(v)).Msg("unresolved string attribute")
		return ""
	}
	return s
}
