package line

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarfbuilder"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

func run(t *testing.T, p *dwarfbuilder.LineProgram, opts ...Option) []Row {
	t.Helper()
	rows, err := NewStateMachine(parse(t, p), opts...).Rows()
	require.NoError(t, err)
	return rows
}

func checkRows(t *testing.T, want, got []Row) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSpecialOpcode(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.Special(18)

	checkRows(t, []Row{{Address: 0, File: 1, Line: 1, IsStmt: true}}, run(t, p))
}

func TestSpecialOpcodeAdvancesAddressAndLine(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	// adjusted 31: address += 31/14, line += -5 + 31%14
	p.AdvanceLine(9).Special(13 + 31).Special(255)

	checkRows(t, []Row{
		{Address: 2, File: 1, Line: 8, IsStmt: true},
		// adjusted 242: address += 17, line += -5 + 4
		{Address: 19, File: 1, Line: 7, IsStmt: true},
	}, run(t, p))
}

func TestEndSequenceResetsRegisters(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.SetAddress(0x1000).
		AdvanceLine(9).
		SetColumn(3).
		SetFile(2).
		NegateStmt().
		Copy().
		AdvancePc(4).
		EndSequence().
		Special(18)

	checkRows(t, []Row{
		{Address: 0x1000, File: 2, Line: 10, Column: 3},
		{Address: 0x1004, File: 2, Line: 10, Column: 3, EndSequence: true},
		{Address: 0, File: 1, Line: 1, IsStmt: true},
	}, run(t, p))
}

func TestAddressAdvanceOpcodes(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.MinInstLength = 2
	p.SetAddress(0x2000).
		ConstAddPc().
		Copy().
		FixedAdvancePc(0x100).
		Copy().
		AdvancePc(3).
		EndSequence()

	checkRows(t, []Row{
		// const_add_pc advances by (255-13)/14 = 17 instructions
		{Address: 0x2000 + 17*2, File: 1, Line: 1, IsStmt: true},
		// fixed_advance_pc ignores minimum_instruction_length
		{Address: 0x2000 + 17*2 + 0x100, File: 1, Line: 1, IsStmt: true},
		{Address: 0x2000 + 17*2 + 0x100 + 3*2, File: 1, Line: 1, IsStmt: true, EndSequence: true},
	}, run(t, p))
}

func TestOneShotRegisters(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.SetPrologueEnd().
		SetBasicBlock().
		SetEpilogueBegin().
		SetDiscriminator(3).
		SetIsa(5).
		Copy().
		Copy()

	checkRows(t, []Row{
		{File: 1, Line: 1, IsStmt: true, BasicBlock: true, PrologueEnd: true, EpilogueBegin: true, Isa: 5, Discriminator: 3},
		{File: 1, Line: 1, IsStmt: true, Isa: 5},
	}, run(t, p))
}

func TestOpIndex(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.MinInstLength = 4
	p.MaxOps = 4
	p.AdvancePc(6).
		Copy().
		// adjusted 47: operation advance 3, line += 0
		Special(13 + 47).
		SetAddress(0x100).
		Copy()

	checkRows(t, []Row{
		{Address: 4, OpIndex: 2, File: 1, Line: 1, IsStmt: true},
		{Address: 8, OpIndex: 1, File: 1, Line: 1, IsStmt: true},
		{Address: 0x100, File: 1, Line: 1, IsStmt: true},
	}, run(t, p))
}

func TestDefineFile(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.Files = []dwarfbuilder.LineFile{{Name: "a.c"}}
	p.DefineFile(dwarfbuilder.LineFile{Name: "b.c", Mtime: 1, Length: 2}).SetFile(2).Copy()

	h := parse(t, p)
	m := NewStateMachine(h)
	rows, err := m.Rows()
	require.NoError(t, err)
	checkRows(t, []Row{{File: 2, Line: 1, IsStmt: true}}, rows)

	f, err := m.File(2)
	require.NoError(t, err)
	assert.Equal(t, FileEntry{Name: "b.c", Mtime: 1, Length: 2}, *f)
	assert.Len(t, m.Files(), 2)

	_, err = h.File(2)
	assert.ErrorIs(t, err, util.ErrBadOffset)
	_, err = m.File(3)
	assert.ErrorIs(t, err, util.ErrBadOffset)
}

func TestLineRegisterWraps(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.AdvanceLine(-2).Copy().AdvanceLine(3).Copy()

	rows := run(t, p)
	require.Len(t, rows, 2)
	assert.Equal(t, ^uint64(0), rows[0].Line)
	assert.Equal(t, uint64(2), rows[1].Line)
}

func TestBigEndianProgram(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.Order = binary.BigEndian
	p.SetAddress(0x401000).FixedAdvancePc(0x0102).Copy()

	checkRows(t, []Row{{Address: 0x401102, File: 1, Line: 1, IsStmt: true}}, run(t, p))
}

func TestMissingEndSequence(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.SetAddress(0x1000).Copy().AdvancePc(2).EndSequence().SetAddress(0x2000).Special(18)

	rows := run(t, p)
	assert.Len(t, rows, 3)

	m := NewStateMachine(parse(t, p), WithStrictEndSequence())
	rows, err := m.Rows()
	assert.ErrorIs(t, err, util.ErrMissingEndSequence)
	assert.Len(t, rows, 3)
	_, err2 := m.Next()
	assert.Equal(t, err, err2)

	p = dwarfbuilder.NewLineProgram()
	p.SetAddress(0x1000).Copy().EndSequence()
	assert.Len(t, run(t, p, WithStrictEndSequence()), 2)

	assert.Empty(t, run(t, dwarfbuilder.NewLineProgram(), WithStrictEndSequence()))
}

func TestMalformedOpcodeIsSticky(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.Special(18).Raw(0x00, 0x00).Special(18)

	m := NewStateMachine(parse(t, p))
	row, err := m.Next()
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, uint64(1), row.Line)

	_, err = m.Next()
	assert.ErrorIs(t, err, util.ErrMalformedOpcode)
	_, err2 := m.Next()
	assert.Equal(t, err, err2)
	assert.Equal(t, uint64(1), row.Line)
}

func TestStepDrivesOneOpcode(t *testing.T) {
	h := parse(t, dwarfbuilder.NewLineProgram())
	m := NewStateMachine(h)

	_, ok := m.Step(SetAddress{Addr: 0x10})
	assert.False(t, ok)
	_, ok = m.Step(AdvanceLine{N: 4})
	assert.False(t, ok)
	row, ok := m.Step(Copy{})
	require.True(t, ok)
	assert.Equal(t, Row{Address: 0x10, File: 1, Line: 5, IsStmt: true}, row)

	_, ok = m.Step(UnknownStandard{Opcode: 0x0d, Args: []uint64{1}})
	assert.False(t, ok)
	assert.Equal(t, row, m.Registers())

	// opcode 5 is below opcode_base 13, so it is no special opcode
	_, ok = m.Step(Special{Opcode: 5})
	assert.False(t, ok)
	assert.Equal(t, row, m.Registers())

	row, ok = m.Step(Special{Opcode: 13 + 1*14 + 5})
	require.True(t, ok)
	assert.Equal(t, Row{Address: 0x11, File: 1, Line: 5, IsStmt: true}, row)

	row, ok = m.Step(EndSequence{})
	require.True(t, ok)
	assert.True(t, row.EndSequence)
	assert.Equal(t, Row{File: 1, Line: 1, IsStmt: true}, m.Registers())
}
