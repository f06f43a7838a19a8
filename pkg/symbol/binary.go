package symbol

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/reader"
)

// LineEntry one row of a line table, attributed to its source file
type LineEntry struct {
	Address     uint64
	File        string
	Line        int
	Column      int
	IsStmt      bool
	PrologueEnd bool
	EndSequence bool
}

// BinaryInfo binary info
type BinaryInfo struct {
	Sources      map[string]map[int][]*LineEntry // key=filename, val=map[lineno]lineEntries
	Functions    []*Function
	CompileUnits []*CompileUnit

	Text     []byte
	TextAddr uint64

	data    *reader.Data
	abbrevs *AbbrevCache
	strict  bool
	lines   []*LineEntry // sorted by address once parsed
}

// Option configures Analyze and Load.
type Option func(*BinaryInfo)

// WithStrictLines rejects units whose line program ends inside a
// sequence.
func WithStrictLines() Option {
	return func(bi *BinaryInfo) { bi.strict = true }
}

// WithAbbrevCache shares c with other BinaryInfos.
func WithAbbrevCache(c *AbbrevCache) Option {
	return func(bi *BinaryInfo) { bi.abbrevs = c }
}

// Analyze Analyze executable `execFile` and return the binary info
func Analyze(execFile string, opts ...Option) (*BinaryInfo, error) {
	secs, err := LoadELF(execFile)
	if err != nil {
		return nil, err
	}
	return Load(secs, opts...)
}

// Load builds the binary info from already loaded sections.
func Load(secs *Sections, opts ...Option) (*BinaryInfo, error) {
	bi := &BinaryInfo{
		Sources:  make(map[string]map[int][]*LineEntry),
		Text:     secs.Text,
		TextAddr: secs.TextAddr,
		data:     reader.New(secs.Info, secs.Abbrev, secs.Str, secs.LineStr),
	}
	for _, opt := range opts {
		opt(bi)
	}
	if bi.abbrevs == nil {
		bi.abbrevs = NewAbbrevCache()
	}

	if err := bi.ParseLineAndInfo(secs.Line); err != nil {
		return nil, err
	}
	return bi, nil
}

// Data returns the decoder over the binary's .debug_info.
func (bi *BinaryInfo) Data() *reader.Data {
	return bi.data
}

// AbbrevCache returns the abbreviation table cache.
func (bi *BinaryInfo) AbbrevCache() *AbbrevCache {
	return bi.abbrevs
}

// ParseLineAndInfo parse .debug_info and, for every compile unit with a
// DW_AT_stmt_list, its program in .debug_line. A unit that fails to decode
// is logged and skipped; only failing to locate the next unit is fatal.
//
// unit entries: see DWARF v4 chapter 3.1.1 normal and partial compilation unit entries
func (bi *BinaryInfo) ParseLineAndInfo(lineSec *godwarf.Section) error {
	units := bi.data.Units()
	for {
		u, err := units.Next()
		if err != nil {
			return err
		}
		if u == nil { // reaches the end
			break
		}

		if err := bi.parseUnit(u, lineSec); err != nil {
			log.Warn().Err(err).Uint64("unit", u.Offset).Msg("skipping malformed unit")
			continue
		}
		log.Debug().Uint64("unit", u.Offset).Uint16("version", u.Version).Msg("unit parsed")
	}

	sort.SliceStable(bi.lines, func(i, j int) bool {
		a, b := bi.lines[i], bi.lines[j]
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		// a sequence may start where the previous one ends
		return a.EndSequence && !b.EndSequence
	})
	return nil
}

// unitParser collects what one unit contributes. Nothing reaches the
// BinaryInfo unless the whole unit decodes.
type unitParser struct {
	bi           *BinaryInfo
	compileUnits []*CompileUnit
	functions    []*Function
	lines        []*LineEntry

	// only used for parsing purpose
	curCompileUnit *CompileUnit
	curFunction    *Function
	curFuncDepth   int
}

func (bi *BinaryInfo) parseUnit(u *reader.Unit, lineSec *godwarf.Section) error {
	abbrevs, err := bi.abbrevs.Get(bi.data, u.AbbrevOffset)
	if err != nil {
		return err
	}

	p := &unitParser{bi: bi}
	if err := p.parseEntries(u, abbrevs); err != nil {
		return err
	}
	if err := p.parseLines(lineSec); err != nil {
		return err
	}

	bi.CompileUnits = append(bi.CompileUnits, p.compileUnits...)
	bi.Functions = append(bi.Functions, p.functions...)
	for _, entry := range p.lines {
		bi.addLine(entry)
	}
	return nil
}

func (p *unitParser) parseEntries(u *reader.Unit, abbrevs *reader.AbbrevTable) error {
	data := p.bi.data

	cur := u.Entries(abbrevs)
	for {
		depth, entry, err := cur.NextDFS()
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		if p.curFunction != nil && depth <= p.curFuncDepth {
			p.curFunction = nil
		}

		switch entry.Tag() {
		// parse compile unit
		case godwarf.TagCompileUnit, godwarf.TagPartialUnit:
			cu := &CompileUnit{Offset: u.Offset, unit: u}
			if err := cu.parseFrom(data, entry); err != nil {
				return err
			}
			p.compileUnits = append(p.compileUnits, cu)
			p.curCompileUnit = cu

		// parse subprogram
		case godwarf.TagSubprogram:
			fn := &Function{cu: p.curCompileUnit}
			if err := fn.parseFrom(data, entry); err != nil {
				return err
			}
			p.functions = append(p.functions, fn)
			if p.curCompileUnit != nil {
				p.curCompileUnit.functions = append(p.curCompileUnit.functions, fn)
			}
			p.curFunction, p.curFuncDepth = fn, depth

		// parse variables defined in subprogram
		case godwarf.TagVariable, godwarf.TagFormalParameter:
			if p.curFunction != nil {
				p.curFunction.variables = append(p.curFunction.variables, entry)
			}
		}
	}
}

func (p *unitParser) parseLines(lineSec *godwarf.Section) error {
	cu := p.curCompileUnit
	if cu == nil || !cu.HasLines {
		return nil
	}
	if lineSec == nil {
		log.Debug().Str("cu", cu.Name).Msg("no .debug_line, line table skipped")
		return nil
	}
	lines, err := cu.parseLineProgram(lineSec, p.bi.strict)
	if err != nil {
		return fmt.Errorf("line program of %s: %w", cu.Name, err)
	}
	p.lines = lines
	return nil
}

func (bi *BinaryInfo) addLine(entry *LineEntry) {
	bi.lines = append(bi.lines, entry)
	if entry.EndSequence {
		return
	}
	mp, ok := bi.Sources[entry.File]
	if !ok {
		mp = make(map[int][]*LineEntry)
		bi.Sources[entry.File] = mp
	}
	mp[entry.Line] = append(mp[entry.Line], entry)
}

// SourceFiles returns the names of all files with line table rows, sorted.
func (bi *BinaryInfo) SourceFiles() []string {
	files := make([]string, 0, len(bi.Sources))
	for f := range bi.Sources {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// PCToFunction returns the function whose range covers PC
//
// note: not considered inline function
func (bi *BinaryInfo) PCToFunction(pc uint64) (*Function, error) {
	for _, f := range bi.Functions {
		if f.Contains(pc) {
			return f, nil
		}
	}
	return nil, ErrNoFunctionForPC{PC: pc}
}

// FunctionByName returns the first function named name.
func (bi *BinaryInfo) FunctionByName(name string) (*Function, bool) {
	for _, f := range bi.Functions {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

// parseLoc parse location `loc` to file:lineno
func parseLoc(loc string) (string, int, error) {
	idx := strings.LastIndex(loc, ":")
	if idx <= 0 {
		return "", 0, errors.New("wrong loc should be like filename:lineno")
	}
	filename, linenostr := loc[:idx], loc[idx+1:]
	lineno, err := strconv.Atoi(linenostr)
	if err != nil {
		return "", 0, errors.New("wrong loc should be like filename:lineno")
	}
	return filename, lineno, nil
}

// LocToPC convert location `loc` to PC
func (bi *BinaryInfo) LocToPC(loc string) (uint64, error) {
	filename, lineno, err := parseLoc(loc)
	if err != nil {
		return 0, err
	}
	return bi.FileLineToPC(filename, lineno)
}

// lineEntries returns the rows of filename:lineno. A filename that is not
// a known path matches the single source file ending in /filename.
func (bi *BinaryInfo) lineEntries(filename string, lineno int) []*LineEntry {
	mp, ok := bi.Sources[filename]
	if !ok {
		var match string
		for f := range bi.Sources {
			if strings.HasSuffix(f, "/"+filename) {
				if match != "" {
					return nil
				}
				match = f
			}
		}
		mp = bi.Sources[match]
	}
	return mp[lineno]
}

// FileLineToPC convert location `filename:lineno` to PC
func (bi *BinaryInfo) FileLineToPC(filename string, lineno int) (uint64, error) {
	entries := bi.lineEntries(filename, lineno)
	if len(entries) == 0 {
		return 0, ErrNoPCForLine{File: filename, Line: lineno}
	}
	return entries[0].Address, nil
}

// FileLineToPCForBreakpoint convert location `filename:lineno` to PC, used for breakpoint address
func (bi *BinaryInfo) FileLineToPCForBreakpoint(filename string, lineno int) (uint64, error) {
	lineEntries := bi.lineEntries(filename, lineno)
	if len(lineEntries) == 0 {
		return 0, ErrNoPCForLine{File: filename, Line: lineno}
	}
	// skip prologue
	for _, v := range lineEntries {
		if v.PrologueEnd {
			return v.Address, nil
		}
	}
	// otherwise the lowest address of the line
	addr := lineEntries[0].Address
	for _, v := range lineEntries[1:] {
		if v.Address < addr {
			addr = v.Address
		}
	}
	return addr, nil
}

// PCToFileLine returns the source position of the row covering pc: the
// last row at or before pc, unless it closes a sequence.
func (bi *BinaryInfo) PCToFileLine(pc uint64) (string, int, error) {
	i := sort.Search(len(bi.lines), func(i int) bool {
		return bi.lines[i].Address > pc
	}) - 1
	if i < 0 || bi.lines[i].EndSequence {
		return "", 0, ErrNoLineForPC{PC: pc}
	}
	return bi.lines[i].File, bi.lines[i].Line, nil
}

// Dump writes the parsed compile units, functions, variables and line
// tables to w.
func (bi *BinaryInfo) Dump(w io.Writer) {

	// debug compile unit
	for _, cu := range bi.CompileUnits {
		fmt.Fprintf(w, "compile unit: %s, comp_dir: %s, range: [%#x, %#x)\n", cu.Name, cu.CompDir, cu.LowPC, cu.HighPC)
	}

	// dump functions
	for _, fn := range bi.Functions {
		fmt.Fprintf(w, "function: %s, range: [%#x, %#x), external: %v\n", fn.name, fn.lowpc, fn.highpc, fn.external)

		// debug variables
		for _, entry := range fn.variables {
			name, _ := entry.Val(godwarf.AttrName)
			fmt.Fprintf(w, "\t%s %s\n", entry.Tag(), stringValue(bi.data, name))
		}
	}

	// debug source log
	for _, file := range bi.SourceFiles() {
		mp := bi.Sources[file]
		lines := make([]int, 0, len(mp))
		for ln := range mp {
			lines = append(lines, ln)
		}
		sort.Ints(lines)
		for _, ln := range lines {
			for _, entry := range mp[ln] {
				fmt.Fprintf(w, "bi.sources file: %s, line: %d, addr: %#x\n", file, ln, entry.Address)
			}
		}
	}
}
