package reader

import (
	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// Entry is a debugging information entry. It borrows its declaration from
// the unit's AbbrevTable and its bytes from .debug_info; attributes are
// decoded only when asked for.
type Entry struct {
	// Offset of the entry relative to the start of its unit.
	Offset uint64
	Abbrev *Abbrev

	unit  *Unit
	attrs util.Buf
}

// Tag returns the entry's tag.
func (e *Entry) Tag() godwarf.Tag {
	return e.Abbrev.Tag
}

// HasChildren reports whether the entry is followed by a list of children.
func (e *Entry) HasChildren() bool {
	return e.Abbrev.Children
}

// Unit returns the unit holding the entry.
func (e *Entry) Unit() *Unit {
	return e.unit
}

// SectionOffset returns the offset of the entry in .debug_info.
func (e *Entry) SectionOffset() uint64 {
	return e.unit.Offset + e.Offset
}

// Attrs returns an iterator over the entry's attributes. Each call returns
// an iterator starting at the first attribute.
func (e *Entry) Attrs() *AttrIterator {
	return &AttrIterator{entry: e, buf: e.attrs}
}

// Attr returns the first attribute named name, or nil if the entry has
// none. Attributes before it are skipped, not decoded.
func (e *Entry) Attr(name godwarf.Attr) (*Attr, error) {
	b := e.attrs
	for _, spec := range e.Abbrev.Fields {
		if spec.Attr == name {
			v, err := e.unit.decodeForm(&b, spec.Form, spec)
			if err != nil {
				return nil, err
			}
			return &Attr{Name: spec.Attr, Form: spec.Form, Value: v}, nil
		}
		if err := e.unit.skipForm(&b, spec.Form); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// Val returns the value of attribute name, or nil if the entry has none.
func (e *Entry) Val(name godwarf.Attr) (Value, error) {
	a, err := e.Attr(name)
	if a == nil || err != nil {
		return nil, err
	}
	return a.Value, nil
}

// size returns the number of attribute bytes following the entry's code.
func (e *Entry) size() (int, error) {
	b := e.attrs
	for _, spec := range e.Abbrev.Fields {
		if err := e.unit.skipForm(&b, spec.Form); err != nil {
			return 0, err
		}
	}
	return b.Pos() - e.attrs.Pos(), nil
}

// EntriesCursor walks a DIE tree depth-first.
//
// The encoding has no child or sibling pointers: an entry whose
// abbreviation has children is followed by its children, and every list
// of children ends with a null entry (code 0). The cursor tracks the
// current depth while it reads, so the tree is never built in memory.
//
// A cursor is forward-only and cannot be restarted.
type EntriesCursor struct {
	unit    *Unit
	abbrevs *AbbrevTable
	buf     util.Buf

	cur     *Entry
	depth   int
	started bool
	done    bool
	err     error
}

// Current returns the entry most recently returned, or nil.
func (c *EntriesCursor) Current() *Entry {
	return c.cur
}

// Depth returns the depth of the current entry, the root being 0.
func (c *EntriesCursor) Depth() int {
	return c.depth
}

// NextDFS returns the next entry in depth-first order and its depth
// relative to the first entry. It returns a nil entry once the tree is
// exhausted, and keeps doing so on later calls. Once it fails it keeps
// returning the same error.
func (c *EntriesCursor) NextDFS() (int, *Entry, error) {
	if !c.started {
		c.started = true
		e, err := c.readEntry()
		if err != nil || e == nil {
			c.done = true
			c.err = err
			return 0, nil, err
		}
		c.cur = e
		return 0, e, nil
	}
	e, err := c.next(1)
	if err != nil || e == nil {
		return 0, nil, err
	}
	return c.depth, e, nil
}

// NextSibling skips the children of the current entry and returns its next
// sibling, or nil when the current entry is the last of its list. After a
// nil return NextDFS resumes with the entry following the parent.
//
// Before the first call to NextDFS it returns the root.
func (c *EntriesCursor) NextSibling() (*Entry, error) {
	if !c.started {
		_, e, err := c.NextDFS()
		return e, err
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.cur == nil {
		return nil, nil
	}

	start := c.depth
	for {
		e, err := c.next(start)
		if err != nil || e == nil {
			return nil, err
		}
		if c.depth == start {
			return e, nil
		}
	}
}

// next moves past the current entry and returns the following one, unless
// a null entry lowers the depth below minDepth first.
func (c *EntriesCursor) next(minDepth int) (*Entry, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.done {
		return nil, nil
	}

	if c.cur != nil {
		n, err := c.cur.size()
		if err == nil {
			err = c.buf.Skip(n)
		}
		if err != nil {
			c.err = err
			return nil, err
		}
		if c.cur.Abbrev.Children {
			c.depth++
		}
		c.cur = nil
	}

	for {
		if c.depth <= 0 {
			c.done = true
			return nil, nil
		}
		if c.depth < minDepth {
			return nil, nil
		}
		// producers may drop the null entries that close the last lists
		if c.buf.Empty() {
			c.done = true
			return nil, nil
		}

		e, err := c.readEntry()
		if err != nil {
			c.err = err
			return nil, err
		}
		if e == nil {
			c.depth--
			continue
		}
		c.cur = e
		return e, nil
	}
}

// readEntry reads an abbreviation code and returns the entry it starts,
// or nil for a null entry or the end of the unit.
func (c *EntriesCursor) readEntry() (*Entry, error) {
	if c.buf.Empty() {
		return nil, nil
	}
	start := c.buf.Offset()
	code, err := c.buf.ULEB128()
	if err != nil {
		return nil, err
	}
	if code == 0 {
		return nil, nil
	}
	abbrev, ok := c.abbrevs.Get(code)
	if !ok {
		return nil, c.buf.ErrorAt(start, util.ErrMalformedAbbreviation,
			"abbreviation code %d not in table at %#x", code, c.abbrevs.Offset)
	}
	return &Entry{Offset: start - c.unit.Offset, Abbrev: abbrev, unit: c.unit, attrs: c.buf}, nil
}
