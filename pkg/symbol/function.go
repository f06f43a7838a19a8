package symbol

import (
	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/reader"
)

// Function function
//
// see DWARFv4 3.3 subroutine and entry point entries
type Function struct {
	name      string
	lowpc     uint64
	highpc    uint64
	frameBase []byte
	declFile  int64
	declLine  int64
	external  bool

	entry     *reader.Entry
	variables []*reader.Entry
	cu        *CompileUnit
}

func (f *Function) Name() string {
	return f.name
}

// LowPC returns the address of the first instruction.
func (f *Function) LowPC() uint64 {
	return f.lowpc
}

// HighPC returns the address past the last instruction.
func (f *Function) HighPC() uint64 {
	return f.highpc
}

func (f *Function) FrameBase() []byte {
	return f.frameBase
}

// DeclFile returns the index of the declaring file in the unit's line
// program file table, 0 if unknown.
func (f *Function) DeclFile() int64 {
	return f.declFile
}

func (f *Function) DeclLine() int64 {
	return f.declLine
}

func (f *Function) External() bool {
	return f.external
}

// CompileUnit returns the unit declaring the function, nil for a
// subprogram outside of any compile unit entry.
func (f *Function) CompileUnit() *CompileUnit {
	return f.cu
}

func (f *Function) Entry() *reader.Entry {
	return f.entry
}

// Variables returns the variables and formal parameters declared in the
// function.
func (f *Function) Variables() []*reader.Entry {
	return f.variables
}

// Contains reports whether pc is inside [LowPC, HighPC).
func (f *Function) Contains(pc uint64) bool {
	return f.lowpc <= pc && pc < f.highpc
}

func (f *Function) parseFrom(d *reader.Data, curEntry *reader.Entry) error {
	var high reader.Value

	it := curEntry.Attrs()
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
			f.name = stringValue(d, field.Value)
		case godwarf.AttrLowPc:
			f.lowpc, _ = reader.Uint(field.Value)
		case godwarf.AttrHighPc:
			high = field.Value
		case godwarf.AttrFrameBase:
			switch v := field.Value.(type) {
			case reader.Exprloc:
				f.frameBase = v
			case reader.Block:
				f.frameBase = v
			}
		case godwarf.AttrDeclFile:
			f.declFile, _ = reader.Int(field.Value)
		case godwarf.AttrDeclLine:
			f.declLine, _ = reader.Int(field.Value)
		case godwarf.AttrExternal:
			if v, ok := field.Value.(reader.Flag); ok {
				f.external = bool(v)
			}
		}
	}

	if high != nil {
		f.highpc = highPC(f.lowpc, high)
	}
	f.entry = curEntry
	return nil
}

// highPC resolves DW_AT_high_pc. Since DWARF 4 a constant class value is
// the length of the range starting at low_pc.
func highPC(low uint64, v reader.Value) uint64 {
	if addr, ok := v.(reader.Address); ok {
		return uint64(addr)
	}
	n, _ := reader.Uint(v)
	return low + n
}
