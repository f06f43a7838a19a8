package line

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarfbuilder"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

func section(data []byte) *godwarf.Section {
	return godwarf.NewSection(".debug_line", data, binary.LittleEndian)
}

func parse(t *testing.T, p *dwarfbuilder.LineProgram) *Header {
	t.Helper()
	h, err := ParseHeader(godwarf.NewSection(".debug_line", p.Bytes(), p.Order), 0, 0)
	require.NoError(t, err)
	return h
}

func TestParseHeader(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.IncludeDirs = []string{"/usr/include", "internal"}
	p.Files = []dwarfbuilder.LineFile{
		{Name: "main.c"},
		{Name: "stdio.h", DirIndex: 1, Mtime: 7, Length: 1024},
		{Name: "util.h", DirIndex: 2},
	}
	p.Special(18)

	h := parse(t, p)
	assert.Equal(t, uint16(4), h.Version)
	assert.False(t, h.Dwarf64)
	assert.Equal(t, uint8(1), h.MinInstLength)
	assert.Equal(t, uint8(1), h.MaxOpsPerInst)
	assert.True(t, h.DefaultIsStmt)
	assert.Equal(t, int8(-5), h.LineBase)
	assert.Equal(t, uint8(14), h.LineRange)
	assert.Equal(t, uint8(13), h.OpcodeBase)
	assert.Equal(t, godwarf.StandardOpcodeLengths[:], h.StdOpcodeLengths)
	assert.Equal(t, []string{"/usr/include", "internal"}, h.IncludeDirs)
	require.Len(t, h.FileNames, 3)
	assert.Equal(t, FileEntry{Name: "stdio.h", DirIndex: 1, Mtime: 7, Length: 1024}, h.FileNames[1])

	start, end := h.ProgramRange()
	assert.Equal(t, uint64(1), end-start)
	assert.Equal(t, uint64(len(p.Bytes())), h.Size())

	f, err := h.File(2)
	require.NoError(t, err)
	assert.Equal(t, "stdio.h", f.Name)
	_, err = h.File(0)
	assert.ErrorIs(t, err, util.ErrBadOffset)
	_, err = h.File(4)
	assert.ErrorIs(t, err, util.ErrBadOffset)

	paths := map[uint64]string{1: "/src/main.c", 2: "/usr/include/stdio.h", 3: "/src/internal/util.h"}
	for i, want := range paths {
		f, err := h.File(i)
		require.NoError(t, err)
		got, err := h.FilePath(f, "/src")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = h.FilePath(&FileEntry{Name: "x.c", DirIndex: 3}, "/src")
	assert.ErrorIs(t, err, util.ErrBadOffset)
}

func TestParseHeaderVersions(t *testing.T) {
	for _, version := range []uint16{2, 3} {
		p := dwarfbuilder.NewLineProgram()
		p.Version = version
		p.MaxOps = 9 // not encoded before version 4
		p.Special(18)

		h := parse(t, p)
		assert.Equal(t, version, h.Version)
		assert.Equal(t, uint8(1), h.MaxOpsPerInst)
		rows, err := NewStateMachine(h).Rows()
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	}

	p := dwarfbuilder.NewLineProgram()
	p.Dwarf64 = true
	p.Special(18)
	h := parse(t, p)
	assert.True(t, h.Dwarf64)
	assert.Equal(t, uint64(len(p.Bytes())), h.Size())
}

func TestParseHeaderTrustsHeaderLength(t *testing.T) {
	p := dwarfbuilder.NewLineProgram()
	p.Files = []dwarfbuilder.LineFile{{Name: "a.c"}}
	p.HeaderPadding = 5
	p.AdvanceLine(41).Copy()

	h := parse(t, p)
	rows, err := NewStateMachine(h).Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(42), rows[0].Line)
}

func TestParseHeaderErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *dwarfbuilder.LineProgram)
		patch  func(data []byte) []byte
		kind   error
	}{
		{
			name:   "line range 0",
			modify: func(p *dwarfbuilder.LineProgram) { p.LineRange = 0 },
			kind:   util.ErrMalformedLineHeader,
		},
		{
			name:   "opcode base 0",
			modify: func(p *dwarfbuilder.LineProgram) { p.OpcodeBase = 0 },
			kind:   util.ErrMalformedLineHeader,
		},
		{
			name:   "max ops 0",
			modify: func(p *dwarfbuilder.LineProgram) { p.MaxOps = 0 },
			kind:   util.ErrMalformedLineHeader,
		},
		{
			name:   "version 5",
			modify: func(p *dwarfbuilder.LineProgram) { p.Version = 5 },
			kind:   util.ErrUnsupportedVersion,
		},
		{
			name:   "version 1",
			modify: func(p *dwarfbuilder.LineProgram) { p.Version = 1 },
			kind:   util.ErrUnsupportedVersion,
		},
		{
			name:  "unit length past the section",
			patch: func(data []byte) []byte { return data[:len(data)-1] },
			kind:  util.ErrUnitHeaderTooShort,
		},
		{
			name:  "length field cut",
			patch: func(data []byte) []byte { return data[:3] },
			kind:  util.ErrUnitHeaderTooShort,
		},
		{
			name: "header length past the program",
			patch: func(data []byte) []byte {
				binary.LittleEndian.PutUint32(data[6:], 0xffff)
				return data
			},
			kind: util.ErrBadOffset,
		},
		{
			name: "tables cut by the unit length",
			patch: func(data []byte) []byte {
				// unit ends right after opcode_base
				binary.LittleEndian.PutUint32(data[0:], 2+4+6)
				binary.LittleEndian.PutUint32(data[6:], 6)
				return data
			},
			kind: util.ErrUnitHeaderTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := dwarfbuilder.NewLineProgram()
			p.Files = []dwarfbuilder.LineFile{{Name: "a.c"}}
			if tt.modify != nil {
				tt.modify(p)
			}
			p.Special(18)
			data := p.Bytes()
			if tt.patch != nil {
				data = tt.patch(data)
			}
			_, err := ParseHeader(section(data), 0, 0)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	_, err := ParseHeader(section(nil), 4, 0)
	assert.ErrorIs(t, err, util.ErrBadOffset)
}

func TestPrograms(t *testing.T) {
	first := dwarfbuilder.NewLineProgram()
	first.Files = []dwarfbuilder.LineFile{{Name: "a.c"}}
	first.SetAddress(0x1000).Copy().AdvancePc(4).EndSequence()

	second := dwarfbuilder.NewLineProgram()
	second.Dwarf64 = true
	second.Files = []dwarfbuilder.LineFile{{Name: "b.c"}}
	second.SetAddress(0x2000).Copy().AdvancePc(8).EndSequence()

	data := append(first.Bytes(), second.Bytes()...)
	it := Programs(section(data), 8)

	var offsets []uint64
	var files []string
	for {
		h, err := it.Next()
		require.NoError(t, err)
		if h == nil {
			break
		}
		offsets = append(offsets, h.Offset)
		files = append(files, h.FileNames[0].Name)
	}
	assert.Equal(t, []uint64{0, uint64(len(first.Bytes()))}, offsets)
	assert.Equal(t, []string{"a.c", "b.c"}, files)

	it = Programs(section(append(data, 0x01, 0x02)), 8)
	for i := 0; i < 2; i++ {
		h, err := it.Next()
		require.NoError(t, err)
		require.NotNil(t, h)
	}
	_, err := it.Next()
	assert.ErrorIs(t, err, util.ErrUnitHeaderTooShort)
	_, err2 := it.Next()
	assert.Equal(t, err, err2)
}
