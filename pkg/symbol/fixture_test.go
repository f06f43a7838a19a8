package symbol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarfbuilder"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
)

type field = dwarfbuilder.Field

// fixture describes a binary with two compile units:
//
//	/src/main.c      main   [0x1000, 0x1020) lines 3, 4, 4 (prologue end)
//	                 helper [0x1020, 0x1040) line 10
//	/src/lib/util.c  no functions, line 5 at 0x2000
type fixture struct {
	// utilStmtList overrides util.c's DW_AT_stmt_list.
	utilStmtList *uint64
	// openMain drops main.c's final end_sequence.
	openMain bool
}

func (fx fixture) sections(t *testing.T) *Sections {
	t.Helper()

	mainProg := dwarfbuilder.NewLineProgram()
	mainProg.Files = []dwarfbuilder.LineFile{{Name: "main.c"}}
	mainProg.SetAddress(0x1000).
		AdvanceLine(2).
		Copy().
		Special(13 + 4*14 + 6). // address += 4, line += 1
		SetPrologueEnd().
		Special(13 + 4*14 + 5). // address += 4
		AdvancePc(0x18).
		AdvanceLine(6).
		Copy()
	if !fx.openMain {
		mainProg.AdvancePc(0x20).EndSequence()
	}

	utilProg := dwarfbuilder.NewLineProgram()
	utilProg.IncludeDirs = []string{"lib"}
	utilProg.Files = []dwarfbuilder.LineFile{{Name: "util.c", DirIndex: 1}}
	utilProg.SetAddress(0x2000).AdvanceLine(4).Copy().AdvancePc(8).EndSequence()

	mainLine := mainProg.Bytes()
	lineData := append(append([]byte{}, mainLine...), utilProg.Bytes()...)
	utilStmtList := uint64(len(mainLine))
	if fx.utilStmtList != nil {
		utilStmtList = *fx.utilStmtList
	}

	b := dwarfbuilder.New()
	b.TagOpen(godwarf.TagCompileUnit,
		field{Attr: godwarf.AttrProducer, Form: godwarf.FormStrp, Val: "gcc"},
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "main.c"},
		field{Attr: godwarf.AttrCompDir, Form: godwarf.FormStrp, Val: "/src"},
		field{Attr: godwarf.AttrLanguage, Form: godwarf.FormData1, Val: uint64(0x0c)},
		field{Attr: godwarf.AttrLowPc, Form: godwarf.FormAddr, Val: uint64(0x1000)},
		field{Attr: godwarf.AttrHighPc, Form: godwarf.FormData4, Val: uint64(0x40)},
		field{Attr: godwarf.AttrStmtList, Form: godwarf.FormSecOffset, Val: uint64(0)})
	b.TagOpen(godwarf.TagSubprogram,
		field{Attr: godwarf.AttrExternal, Form: godwarf.FormFlagPresent},
		field{Attr: godwarf.AttrName, Form: godwarf.FormStrp, Val: "main"},
		field{Attr: godwarf.AttrDeclFile, Form: godwarf.FormData1, Val: uint64(1)},
		field{Attr: godwarf.AttrDeclLine, Form: godwarf.FormData1, Val: uint64(3)},
		field{Attr: godwarf.AttrLowPc, Form: godwarf.FormAddr, Val: uint64(0x1000)},
		field{Attr: godwarf.AttrHighPc, Form: godwarf.FormData4, Val: uint64(0x20)},
		field{Attr: godwarf.AttrFrameBase, Form: godwarf.FormExprloc, Val: []byte{0x9c}})
	b.Tag(godwarf.TagFormalParameter,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "argc"})
	b.Tag(godwarf.TagVariable,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "x"})
	b.TagClose()
	b.TagOpen(godwarf.TagSubprogram,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "helper"},
		field{Attr: godwarf.AttrLowPc, Form: godwarf.FormAddr, Val: uint64(0x1020)},
		field{Attr: godwarf.AttrHighPc, Form: godwarf.FormAddr, Val: uint64(0x1040)})
	b.TagClose()
	b.Tag(godwarf.TagVariable,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "global"})
	b.TagClose()

	b.Unit()
	b.Tag(godwarf.TagCompileUnit,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "lib/util.c"},
		field{Attr: godwarf.AttrCompDir, Form: godwarf.FormStrp, Val: "/src"},
		field{Attr: godwarf.AttrStmtList, Form: godwarf.FormSecOffset, Val: utilStmtList})

	info, abbrev, str, err := b.Sections()
	require.NoError(t, err)

	// push %rbp; mov %rsp,%rbp; pop %rbp; ret; then nops
	text := make([]byte, 0x40)
	for i := range text {
		text[i] = 0x90
	}
	copy(text, []byte{0x55, 0x48, 0x89, 0xe5, 0x5d, 0xc3})

	return &Sections{
		Info:     info,
		Abbrev:   abbrev,
		Str:      str,
		Line:     godwarf.NewSection(".debug_line", lineData, binary.LittleEndian),
		Text:     text,
		TextAddr: 0x1000,
	}
}

func (fx fixture) load(t *testing.T, opts ...Option) *BinaryInfo {
	t.Helper()
	bi, err := Load(fx.sections(t), opts...)
	require.NoError(t, err)
	return bi
}
