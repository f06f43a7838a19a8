// Package line decodes .debug_line: line number program headers, the
// opcode stream following them, and the state machine that executes the
// opcodes to rebuild the address to source line matrix.
//
// see DWARFv4 6.2 Line Number Information.
package line

import (
	"path"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/util"
)

// FileEntry is an entry of the file name table.
type FileEntry struct {
	Name     string
	DirIndex uint64
	Mtime    uint64 // modification time, or 0 if unknown
	Length   uint64 // file length, or 0 if unknown
}

// Header is a line number program header.
type Header struct {
	// Offset of the header in .debug_line.
	Offset        uint64
	UnitLength    uint64
	Dwarf64       bool
	Version       uint16
	HeaderLength  uint64
	MinInstLength uint8
	MaxOpsPerInst uint8
	DefaultIsStmt bool
	LineBase      int8
	LineRange     uint8
	OpcodeBase    uint8
	// StdOpcodeLengths holds the operand count of standard opcode i at
	// index i-1.
	StdOpcodeLengths []uint8
	IncludeDirs      []string
	FileNames        []FileEntry
	// AddressSize of DW_LNE_set_address operands, 0 if not known.
	AddressSize uint8

	program util.Buf
}

// ParseHeader parses the line number program header at offset off of
// .debug_line. addressSize is the address size of the unit referring to
// the program, or 0 to accept any set_address operand size.
//
// The program starts header_length bytes after the header_length field
// whatever the tables decode to, producers sometimes pad the header.
func ParseHeader(sec *godwarf.Section, off uint64, addressSize uint8) (*Header, error) {
	b, err := sec.BufAt(off)
	if err != nil {
		return nil, err
	}
	h, err := parseHeader(&b, addressSize)
	if err != nil {
		return nil, util.Reclassify(err, util.ErrUnexpectedEOF, util.ErrUnitHeaderTooShort)
	}
	return h, nil
}

func parseHeader(b *util.Buf, addressSize uint8) (*Header, error) {
	h := &Header{Offset: b.Offset(), AddressSize: addressSize}

	var err error
	if h.UnitLength, h.Dwarf64, err = b.InitialLength(); err != nil {
		return nil, err
	}
	if h.UnitLength > uint64(b.Remaining()) {
		return nil, b.ErrorAt(h.Offset, util.ErrUnitHeaderTooShort,
			"unit length %#x runs past the end of the section (%#x bytes left)", h.UnitLength, b.Remaining())
	}
	unit, _ := b.Truncate(int(h.UnitLength))

	versionOff := unit.Offset()
	if h.Version, err = unit.U16(); err != nil {
		return nil, err
	}
	if h.Version < 2 || h.Version > 4 {
		return nil, unit.ErrorAt(versionOff, util.ErrUnsupportedVersion, "line program version %d", h.Version)
	}

	if h.HeaderLength, err = unit.OffsetField(h.Dwarf64); err != nil {
		return nil, err
	}
	if h.HeaderLength > uint64(unit.Remaining()) {
		return nil, unit.Errorf(util.ErrBadOffset, "header length %#x past the end of the program", h.HeaderLength)
	}
	programStart := unit.Pos() + int(h.HeaderLength)

	if err := h.parseFields(&unit); err != nil {
		return nil, err
	}
	if err := h.parseTables(&unit); err != nil {
		return nil, err
	}

	h.program, _ = unit.Seek(programStart)
	return h, nil
}

func (h *Header) parseFields(b *util.Buf) error {
	var err error
	if h.MinInstLength, err = b.U8(); err != nil {
		return err
	}
	h.MaxOpsPerInst = 1
	if h.Version >= 4 {
		if h.MaxOpsPerInst, err = b.U8(); err != nil {
			return err
		}
	}
	isStmt, err := b.U8()
	if err != nil {
		return err
	}
	h.DefaultIsStmt = isStmt != 0

	lineBase, err := b.U8()
	if err != nil {
		return err
	}
	h.LineBase = int8(lineBase)
	if h.LineRange, err = b.U8(); err != nil {
		return err
	}
	if h.OpcodeBase, err = b.U8(); err != nil {
		return err
	}

	switch {
	case h.LineRange == 0:
		return b.Errorf(util.ErrMalformedLineHeader, "line_range is 0")
	case h.OpcodeBase == 0:
		return b.Errorf(util.ErrMalformedLineHeader, "opcode_base is 0")
	case h.MaxOpsPerInst == 0:
		return b.Errorf(util.ErrMalformedLineHeader, "maximum_operations_per_instruction is 0")
	}

	lengths, err := b.Slice(int(h.OpcodeBase) - 1)
	if err != nil {
		return err
	}
	h.StdOpcodeLengths = append([]uint8(nil), lengths...)
	return nil
}

func (h *Header) parseTables(b *util.Buf) error {
	for {
		dir, err := b.CString()
		if err != nil {
			return err
		}
		if len(dir) == 0 {
			break
		}
		h.IncludeDirs = append(h.IncludeDirs, string(dir))
	}

	for {
		f, done, err := readFileEntry(b)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		h.FileNames = append(h.FileNames, f)
	}
}

// readFileEntry reads a file entry from either the header or a
// DW_LNE_define_file operand. done reports the empty name ending the
// header's table.
func readFileEntry(b *util.Buf) (f FileEntry, done bool, err error) {
	name, err := b.CString()
	if err != nil {
		return f, false, err
	}
	if len(name) == 0 {
		return f, true, nil
	}
	f.Name = string(name)
	if f.DirIndex, err = b.ULEB128(); err != nil {
		return f, false, err
	}
	if f.Mtime, err = b.ULEB128(); err != nil {
		return f, false, err
	}
	if f.Length, err = b.ULEB128(); err != nil {
		return f, false, err
	}
	return f, false, nil
}

// Size returns the number of bytes the program occupies in .debug_line,
// length field included.
func (h *Header) Size() uint64 {
	if h.Dwarf64 {
		return h.UnitLength + 12
	}
	return h.UnitLength + 4
}

// ProgramRange returns the .debug_line offsets [start, end) of the opcode
// stream.
func (h *Header) ProgramRange() (start, end uint64) {
	return h.program.Offset(), h.Offset + h.Size()
}

// Opcodes returns an iterator over the program's opcodes.
func (h *Header) Opcodes() *OpcodeIterator {
	return &OpcodeIterator{h: h, buf: h.program}
}

// File returns file i of the header's table. Files are numbered from 1.
func (h *Header) File(i uint64) (*FileEntry, error) {
	return file(h, h.FileNames, i)
}

// IncludeDir returns include directory i. Directory 0 is the compilation
// directory, which the header does not record; it is returned as "".
func (h *Header) IncludeDir(i uint64) (string, error) {
	if i == 0 {
		return "", nil
	}
	if i > uint64(len(h.IncludeDirs)) {
		return "", h.program.ErrorAt(h.Offset, util.ErrBadOffset,
			"include directory %d, table has %d", i, len(h.IncludeDirs))
	}
	return h.IncludeDirs[i-1], nil
}

// FilePath returns the path of f joined with its include directory and,
// for relative directories, with compDir.
func (h *Header) FilePath(f *FileEntry, compDir string) (string, error) {
	if path.IsAbs(f.Name) {
		return f.Name, nil
	}
	dir, err := h.IncludeDir(f.DirIndex)
	if err != nil {
		return "", err
	}
	if !path.IsAbs(dir) {
		dir = path.Join(compDir, dir)
	}
	return path.Join(dir, f.Name), nil
}

func file(h *Header, files []FileEntry, i uint64) (*FileEntry, error) {
	if i == 0 || i > uint64(len(files)) {
		return nil, h.program.ErrorAt(h.Offset, util.ErrBadOffset, "file index %d, table has %d", i, len(files))
	}
	return &files[i-1], nil
}

// Programs returns an iterator over every line number program of
// .debug_line, in section order.
func Programs(sec *godwarf.Section, addressSize uint8) *ProgramIterator {
	return &ProgramIterator{sec: sec, addressSize: addressSize, buf: sec.Buf()}
}

// ProgramIterator walks the line number programs of .debug_line.
type ProgramIterator struct {
	sec         *godwarf.Section
	addressSize uint8
	buf         util.Buf
	err         error
}

// Next returns the next program header, or nil at the end of the section.
// Once it fails it keeps returning the same error.
func (it *ProgramIterator) Next() (*Header, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.buf.Empty() {
		return nil, nil
	}
	h, err := ParseHeader(it.sec, it.buf.Offset(), it.addressSize)
	if err != nil {
		it.err = err
		return nil, err
	}
	if err := it.buf.Skip(int(h.Size())); err != nil {
		it.err = err
		return nil, err
	}
	return h, nil
}
