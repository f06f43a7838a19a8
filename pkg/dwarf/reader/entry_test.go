package reader

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/dwarfbuilder"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

type field = dwarfbuilder.Field

func build(t *testing.T, b *dwarfbuilder.Builder) *Data {
	t.Helper()
	info, abbrev, str, err := b.Sections()
	require.NoError(t, err)
	return New(info, abbrev, str, nil)
}

func firstUnit(t *testing.T, d *Data) (*Unit, *AbbrevTable) {
	t.Helper()
	u, err := d.Units().Next()
	require.NoError(t, err)
	require.NotNil(t, u)
	abbrevs, err := u.AbbrevTable()
	require.NoError(t, err)
	return u, abbrevs
}

// smallTree is a compile unit with two children, the first of which has
// one child of its own.
func smallTree() *dwarfbuilder.Builder {
	b := dwarfbuilder.New()
	b.TagOpen(godwarf.TagCompileUnit,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "main.c"},
		field{Attr: godwarf.AttrLanguage, Form: godwarf.FormData1, Val: uint64(0x0c)})
	b.TagOpen(godwarf.TagSubprogram,
		field{Attr: godwarf.AttrName, Form: godwarf.FormStrp, Val: "main"},
		field{Attr: godwarf.AttrLowPc, Form: godwarf.FormAddr, Val: uint64(0x401000)},
		field{Attr: godwarf.AttrHighPc, Form: godwarf.FormData4, Val: uint64(0x40)},
		field{Attr: godwarf.AttrFrameBase, Form: godwarf.FormExprloc, Val: []byte{0x9c}})
	b.Tag(godwarf.TagVariable,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "x"},
		field{Attr: godwarf.AttrExternal, Form: godwarf.FormFlagPresent})
	b.TagClose()
	b.Tag(godwarf.TagBaseType,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "int"},
		field{Attr: godwarf.AttrByteSize, Form: godwarf.FormData1, Val: uint64(4)},
		field{Attr: godwarf.AttrEncoding, Form: godwarf.FormSdata, Val: int64(5)})
	b.TagClose()
	return b
}

func TestNextDFSDepths(t *testing.T) {
	d := build(t, smallTree())
	u, abbrevs := firstUnit(t, d)

	var (
		depths []int
		tags   []godwarf.Tag
	)
	c := u.Entries(abbrevs)
	for {
		depth, e, err := c.NextDFS()
		require.NoError(t, err)
		if e == nil {
			break
		}
		depths = append(depths, depth)
		tags = append(tags, e.Tag())
	}

	assert.Equal(t, []int{0, 1, 2, 1}, depths)
	assert.Equal(t, []godwarf.Tag{godwarf.TagCompileUnit, godwarf.TagSubprogram, godwarf.TagVariable, godwarf.TagBaseType}, tags)

	// terminal, not restartable
	for i := 0; i < 3; i++ {
		_, e, err := c.NextDFS()
		require.NoError(t, err)
		assert.Nil(t, e)
	}
}

func TestNextDFSSkipsUnreadAttributes(t *testing.T) {
	d := build(t, smallTree())
	u, abbrevs := firstUnit(t, d)

	c := u.Entries(abbrevs)
	_, root, err := c.NextDFS()
	require.NoError(t, err)

	// consume only part of the root's attributes
	it := root.Attrs()
	a, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, String("main.c"), a.Value)

	_, sub, err := c.NextDFS()
	require.NoError(t, err)
	require.Equal(t, godwarf.TagSubprogram, sub.Tag())

	name, err := sub.Val(godwarf.AttrName)
	require.NoError(t, err)
	s, err := d.String(name)
	require.NoError(t, err)
	assert.Equal(t, "main", s)

	// the root's iterator is independent of the cursor
	a, err = it.Next()
	require.NoError(t, err)
	assert.Equal(t, Udata(0x0c), a.Value)
	a, err = it.Next()
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestAttributesDecodeByForm(t *testing.T) {
	d := build(t, smallTree())
	u, abbrevs := firstUnit(t, d)

	c := u.Entries(abbrevs)
	_, _, err := c.NextDFS()
	require.NoError(t, err)
	_, sub, err := c.NextDFS()
	require.NoError(t, err)

	var attrs []Attr
	it := sub.Attrs()
	for {
		a, err := it.Next()
		require.NoError(t, err)
		if a == nil {
			break
		}
		attrs = append(attrs, *a)
	}
	assert.Equal(t, []Attr{
		{Name: godwarf.AttrName, Form: godwarf.FormStrp, Value: StrRef(0)},
		{Name: godwarf.AttrLowPc, Form: godwarf.FormAddr, Value: Address(0x401000)},
		{Name: godwarf.AttrHighPc, Form: godwarf.FormData4, Value: Udata(0x40)},
		{Name: godwarf.AttrFrameBase, Form: godwarf.FormExprloc, Value: Exprloc{0x9c}},
	}, attrs)

	_, v, err := c.NextDFS()
	require.NoError(t, err)
	ext, err := v.Val(godwarf.AttrExternal)
	require.NoError(t, err)
	assert.Equal(t, Flag(true), ext)

	_, bt, err := c.NextDFS()
	require.NoError(t, err)
	enc, err := bt.Val(godwarf.AttrEncoding)
	require.NoError(t, err)
	assert.Equal(t, Sdata(5), enc)
	missing, err := bt.Val(godwarf.AttrLowPc)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNextSiblingPrunesSubtrees(t *testing.T) {
	d := build(t, smallTree())
	u, abbrevs := firstUnit(t, d)

	c := u.Entries(abbrevs)
	root, err := c.NextSibling()
	require.NoError(t, err)
	assert.Equal(t, godwarf.TagCompileUnit, root.Tag())

	depth, sub, err := c.NextDFS()
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	assert.Equal(t, godwarf.TagSubprogram, sub.Tag())

	// skips the variable under the subprogram
	next, err := c.NextSibling()
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, godwarf.TagBaseType, next.Tag())
	assert.Equal(t, 1, c.Depth())

	next, err = c.NextSibling()
	require.NoError(t, err)
	assert.Nil(t, next)

	_, e, err := c.NextDFS()
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestEntryAt(t *testing.T) {
	b := dwarfbuilder.New()
	b.TagOpen(godwarf.TagCompileUnit)
	typeOff := b.UnitOffset()
	b.Tag(godwarf.TagBaseType, field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "long"})
	b.Tag(godwarf.TagVariable,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "counter"},
		field{Attr: godwarf.AttrType, Form: godwarf.FormRef4, Val: typeOff})
	b.TagClose()
	d := build(t, b)
	u, abbrevs := firstUnit(t, d)

	c := u.Entries(abbrevs)
	var variable *Entry
	for {
		_, e, err := c.NextDFS()
		require.NoError(t, err)
		if e == nil {
			break
		}
		if e.Tag() == godwarf.TagVariable {
			variable = e
		}
	}
	require.NotNil(t, variable)

	ref, err := variable.Val(godwarf.AttrType)
	require.NoError(t, err)
	assert.Equal(t, UnitRef(typeOff), ref)

	typ, err := u.EntryAt(abbrevs, uint64(ref.(UnitRef)))
	require.NoError(t, err)
	assert.Equal(t, godwarf.TagBaseType, typ.Tag())
	assert.Equal(t, typeOff, typ.Offset)
	assert.Equal(t, u.Offset+typeOff, typ.SectionOffset())

	root, err := u.EntryAt(abbrevs, u.HeaderSize())
	require.NoError(t, err)
	assert.Equal(t, godwarf.TagCompileUnit, root.Tag())
	assert.Equal(t, u.HeaderSize(), root.Offset)

	sub, err := u.EntriesAt(abbrevs, typeOff)
	require.NoError(t, err)
	depth, e, err := sub.NextDFS()
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
	assert.Equal(t, typeOff, e.Offset)
	e, err = sub.NextSibling()
	require.NoError(t, err)
	assert.Nil(t, e, "the subtree ends with its root")

	_, err = u.EntryAt(abbrevs, u.Size())
	assert.ErrorIs(t, err, util.ErrBadOffset)
	_, err = u.EntryAt(abbrevs, 0)
	assert.ErrorIs(t, err, util.ErrBadOffset)
}

func TestBadReferenceLeavesEarlierAttributesReadable(t *testing.T) {
	b := dwarfbuilder.New()
	b.TagOpen(godwarf.TagCompileUnit)
	b.Tag(godwarf.TagVariable,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "v"},
		field{Attr: godwarf.AttrType, Form: godwarf.FormRef4, Val: uint64(0x1000)},
		field{Attr: godwarf.AttrDeclLine, Form: godwarf.FormData1, Val: uint64(7)})
	b.Tag(godwarf.TagVariable,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "w"},
		field{Attr: godwarf.AttrSpecification, Form: godwarf.FormRefAddr, Val: uint64(0x1000)})
	b.TagClose()
	d := build(t, b)
	u, abbrevs := firstUnit(t, d)

	c := u.Entries(abbrevs)
	_, _, err := c.NextDFS()
	require.NoError(t, err)
	_, v, err := c.NextDFS()
	require.NoError(t, err)

	it := v.Attrs()
	a, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, String("v"), a.Value)

	_, err = it.Next()
	assert.ErrorIs(t, err, util.ErrBadOffset)
	_, err = it.Next()
	assert.ErrorIs(t, err, util.ErrBadOffset)

	line, err := v.Val(godwarf.AttrDeclLine)
	require.NoError(t, err)
	assert.Equal(t, Udata(7), line)

	// the cursor still advances past the entry
	_, w, err := c.NextDFS()
	require.NoError(t, err)
	_, err = w.Val(godwarf.AttrSpecification)
	assert.ErrorIs(t, err, util.ErrBadOffset)
	name, err := w.Val(godwarf.AttrName)
	require.NoError(t, err)
	assert.Equal(t, String("w"), name)
}

func TestUnsupportedFormStopsTraversal(t *testing.T) {
	b := dwarfbuilder.New()
	b.TagOpen(godwarf.TagCompileUnit,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "a.c"},
		field{Attr: godwarf.AttrProducer, Form: godwarf.Form(0x7f), Val: []byte{1, 2, 3}})
	b.Tag(godwarf.TagVariable)
	b.TagClose()
	d := build(t, b)
	u, abbrevs := firstUnit(t, d)

	c := u.Entries(abbrevs)
	_, root, err := c.NextDFS()
	require.NoError(t, err)
	require.NotNil(t, root)

	it := root.Attrs()
	_, err = it.Next()
	require.NoError(t, err)
	_, err = it.Next()
	assert.ErrorIs(t, err, util.ErrUnsupportedForm)

	_, _, err = c.NextDFS()
	assert.ErrorIs(t, err, util.ErrUnsupportedForm)
	_, e, err := c.NextDFS()
	assert.ErrorIs(t, err, util.ErrUnsupportedForm)
	assert.Nil(t, e)
}

func TestUnknownAbbreviationCode(t *testing.T) {
	b := dwarfbuilder.New()
	b.TagOpen(godwarf.TagCompileUnit)
	b.Raw(0x05)
	b.TagClose()
	d := build(t, b)
	u, abbrevs := firstUnit(t, d)

	c := u.Entries(abbrevs)
	_, _, err := c.NextDFS()
	require.NoError(t, err)
	_, _, err = c.NextDFS()
	assert.ErrorIs(t, err, util.ErrMalformedAbbreviation)
}

func TestEmptyChildListAndMissingTrailingNulls(t *testing.T) {
	b := dwarfbuilder.New()
	b.TagOpen(godwarf.TagCompileUnit)
	b.TagOpen(godwarf.TagSubprogram)
	b.TagClose()
	b.TagOpen(godwarf.TagLexicalBlock)
	b.Tag(godwarf.TagVariable)
	b.TagClose()
	b.TagClose()
	info, abbrev, str, err := b.Build()
	require.NoError(t, err)

	// drop the nulls closing the lexical block and the compile unit
	info = info[:len(info)-2]
	binary.LittleEndian.PutUint32(info, uint32(len(info)-4))

	d := New(godwarf.NewSection(".debug_info", info, binary.LittleEndian),
		godwarf.NewSection(".debug_abbrev", abbrev, binary.LittleEndian),
		godwarf.NewSection(".debug_str", str, binary.LittleEndian), nil)
	u, abbrevs := firstUnit(t, d)

	var depths []int
	c := u.Entries(abbrevs)
	for {
		depth, e, err := c.NextDFS()
		require.NoError(t, err)
		if e == nil {
			break
		}
		depths = append(depths, depth)
	}
	assert.Equal(t, []int{0, 1, 1, 2}, depths)
}

func TestStringOffsetsHonorSectionBase(t *testing.T) {
	b := dwarfbuilder.New()
	b.TagOpen(godwarf.TagCompileUnit,
		field{Attr: godwarf.AttrName, Form: godwarf.FormLineStrp, Val: uint64(0x107)})
	b.Tag(godwarf.TagVariable,
		field{Attr: godwarf.AttrName, Form: godwarf.FormLineStrp, Val: uint64(0x3)})
	b.TagClose()
	info, abbrev, str, err := b.Sections()
	require.NoError(t, err)

	lineStr := godwarf.NewSection(".debug_line_str", []byte("main.c\x00/src\x00"), binary.LittleEndian)
	lineStr.Base = 0x100
	d := New(info, abbrev, str, lineStr)
	u, abbrevs := firstUnit(t, d)

	c := u.Entries(abbrevs)
	_, cu, err := c.NextDFS()
	require.NoError(t, err)
	name, err := cu.Val(godwarf.AttrName)
	require.NoError(t, err)
	assert.Equal(t, LineStrRef(0x107), name)
	s, err := d.String(name)
	require.NoError(t, err)
	assert.Equal(t, "/src", s)

	// below the base of the section
	_, v, err := c.NextDFS()
	require.NoError(t, err)
	_, err = v.Val(godwarf.AttrName)
	assert.ErrorIs(t, err, util.ErrBadOffset)
	_, err = d.String(LineStrRef(0x3))
	assert.ErrorIs(t, err, util.ErrBadOffset)
	_, err = d.String(LineStrRef(0x10c))
	assert.ErrorIs(t, err, util.ErrBadOffset)
}

func TestIndirectFormChain(t *testing.T) {
	chain := make([]byte, 0, 1<<16+2)
	for i := 0; i < 1<<16; i++ {
		chain = append(chain, byte(godwarf.FormIndirect))
	}
	chain = append(chain, byte(godwarf.FormData1), 0x2a)

	b := dwarfbuilder.New()
	b.TagOpen(godwarf.TagCompileUnit)
	b.Tag(godwarf.TagVariable,
		field{Attr: godwarf.AttrConstValue, Form: godwarf.FormIndirect, Val: chain},
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "answer"})
	b.Tag(godwarf.TagBaseType,
		field{Attr: godwarf.AttrName, Form: godwarf.FormString, Val: "int"})
	b.TagClose()
	d := build(t, b)
	u, abbrevs := firstUnit(t, d)

	c := u.Entries(abbrevs)
	_, _, err := c.NextDFS()
	require.NoError(t, err)
	_, v, err := c.NextDFS()
	require.NoError(t, err)

	a, err := v.Attr(godwarf.AttrConstValue)
	require.NoError(t, err)
	assert.Equal(t, godwarf.FormIndirect, a.Form)
	assert.Equal(t, Udata(0x2a), a.Value)

	// skipping the chain lands on the next attribute and entry
	name, err := v.Val(godwarf.AttrName)
	require.NoError(t, err)
	assert.Equal(t, String("answer"), name)
	_, bt, err := c.NextDFS()
	require.NoError(t, err)
	assert.Equal(t, godwarf.TagBaseType, bt.Tag())
}
