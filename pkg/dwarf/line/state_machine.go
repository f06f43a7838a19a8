package line

import (
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// Row is one row of the line number matrix.
type Row struct {
	Address       uint64
	OpIndex       uint64
	File          uint64
	Line          uint64
	Column        uint64
	IsStmt        bool
	BasicBlock    bool
	EndSequence   bool
	PrologueEnd   bool
	EpilogueBegin bool
	Isa           uint64
	Discriminator uint64
}

// StateMachine executes a line number program and yields the rows it
// appends to the matrix.
type StateMachine struct {
	h      *Header
	ops    *OpcodeIterator
	regs   Row
	files  []FileEntry
	strict bool
	// open reports opcodes executed since the last end_sequence.
	open bool
	err  error
}

// Option configures a StateMachine.
type Option func(*StateMachine)

// WithStrictEndSequence makes the machine fail with ErrMissingEndSequence
// when the program ends in the middle of a sequence. By default the
// trailing rows are kept and the end is silent.
func WithStrictEndSequence() Option {
	return func(m *StateMachine) { m.strict = true }
}

// NewStateMachine returns a machine positioned at the start of h's
// program.
func NewStateMachine(h *Header, opts ...Option) *StateMachine {
	m := &StateMachine{
		h:     h,
		ops:   h.Opcodes(),
		files: append([]FileEntry(nil), h.FileNames...),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.reset()
	return m
}

func (m *StateMachine) reset() {
	m.regs = Row{File: 1, Line: 1, IsStmt: m.h.DefaultIsStmt}
}

// Header returns the program header.
func (m *StateMachine) Header() *Header { return m.h }

// Registers returns the current register values.
func (m *StateMachine) Registers() Row { return m.regs }

// Files returns the file table, header entries followed by those added by
// DW_LNE_define_file.
func (m *StateMachine) Files() []FileEntry { return m.files }

// File returns file i of the current file table. Files are numbered
// from 1.
func (m *StateMachine) File(i uint64) (*FileEntry, error) {
	return file(m.h, m.files, i)
}

// Next executes opcodes until one appends a row and returns it. It returns
// nil at the end of the program. Once it fails it keeps returning the same
// error.
func (m *StateMachine) Next() (*Row, error) {
	if m.err != nil {
		return nil, m.err
	}
	for {
		off := m.ops.Offset()
		op, err := m.ops.Next()
		if err != nil {
			m.err = err
			return nil, err
		}
		if op == nil {
			if m.strict && m.open {
				m.err = m.h.program.ErrorAt(off, util.ErrMissingEndSequence, "program ends inside a sequence")
				return nil, m.err
			}
			return nil, nil
		}
		if row, ok := m.Step(op); ok {
			return &row, nil
		}
	}
}

// Rows runs the program to its end and returns every row.
func (m *StateMachine) Rows() ([]Row, error) {
	var rows []Row
	for {
		row, err := m.Next()
		if err != nil {
			return rows, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, *row)
	}
}

// Step executes a single opcode. ok reports whether it appended a row,
// which is then returned. A Special whose opcode is below the header's
// opcode_base is not a special opcode and is ignored.
func (m *StateMachine) Step(op Opcode) (row Row, ok bool) {
	h := m.h
	if sp, isSpecial := op.(Special); isSpecial && sp.Opcode < h.OpcodeBase {
		return Row{}, false
	}
	m.open = true

	switch op := op.(type) {
	case Special:
		adjusted := uint64(op.Opcode - h.OpcodeBase)
		m.advance(adjusted / uint64(h.LineRange))
		m.addLine(int64(h.LineBase) + int64(adjusted%uint64(h.LineRange)))
		return m.emit(), true
	case Copy:
		return m.emit(), true
	case AdvancePc:
		m.advance(op.N)
	case AdvanceLine:
		m.addLine(op.N)
	case SetFile:
		m.regs.File = op.N
	case SetColumn:
		m.regs.Column = op.N
	case NegateStmt:
		m.regs.IsStmt = !m.regs.IsStmt
	case SetBasicBlock:
		m.regs.BasicBlock = true
	case ConstAddPc:
		adjusted := uint64(255 - h.OpcodeBase)
		m.advance(adjusted / uint64(h.LineRange))
	case FixedAdvancePc:
		m.regs.Address += uint64(op.N)
		m.regs.OpIndex = 0
	case SetPrologueEnd:
		m.regs.PrologueEnd = true
	case SetEpilogueBegin:
		m.regs.EpilogueBegin = true
	case SetIsa:
		m.regs.Isa = op.N
	case EndSequence:
		m.regs.EndSequence = true
		row = m.regs
		m.reset()
		m.open = false
		return row, true
	case SetAddress:
		m.regs.Address = op.Addr
		m.regs.OpIndex = 0
	case DefineFile:
		m.files = append(m.files, op.File)
	case SetDiscriminator:
		m.regs.Discriminator = op.N
	}
	return Row{}, false
}

// emit returns the current registers as a row and clears the registers
// that only apply to one row.
func (m *StateMachine) emit() Row {
	row := m.regs
	m.regs.BasicBlock = false
	m.regs.PrologueEnd = false
	m.regs.EpilogueBegin = false
	m.regs.Discriminator = 0
	return row
}

// advance applies an operation advance to address and op_index.
func (m *StateMachine) advance(opAdvance uint64) {
	minInst := uint64(m.h.MinInstLength)
	maxOps := uint64(m.h.MaxOpsPerInst)
	if maxOps == 1 {
		m.regs.Address += minInst * opAdvance
		return
	}
	t := m.regs.OpIndex + opAdvance
	m.regs.Address += minInst * (t / maxOps)
	m.regs.OpIndex = t % maxOps
}

// addLine adds a signed delta to the line register, wrapping on overflow.
func (m *StateMachine) addLine(delta int64) {
	m.regs.Line += uint64(delta)
}
