// Package reader decodes .debug_abbrev and .debug_info: abbreviation
// tables, unit headers, the DIE tree of each unit and the attributes of
// each DIE.
//
// Nothing is materialized ahead of the caller. Units are read one at a
// time by UnitIterator, the DIE tree is walked depth-first by
// EntriesCursor, and attribute values are decoded one by one by
// AttrIterator. Tree shape is reported as a depth relative to the cursor's
// starting entry; DIEs never point at their parents, children or siblings.
//
// Everything here reads immutable byte slices, so independent cursors may
// run on different goroutines. An AbbrevTable is read-only once parsed and
// may be shared by any number of cursors.
package reader
