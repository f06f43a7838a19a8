package symbol

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
)

// Sections debug sections and the text a BinaryInfo is built from.
// Str, LineStr and Line may be nil.
type Sections struct {
	Info    *godwarf.Section
	Abbrev  *godwarf.Section
	Str     *godwarf.Section
	LineStr *godwarf.Section
	Line    *godwarf.Section

	Text     []byte
	TextAddr uint64
}

// LoadELF reads the debug sections and .text of the ELF file execFile.
func LoadELF(execFile string) (*Sections, error) {
	file, err := elf.Open(execFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	load := func(name string, required bool) (*godwarf.Section, error) {
		data, err := godwarf.GetDebugSection(file, name)
		if err != nil {
			if required {
				return nil, err
			}
			log.Debug().Str("section", name).Err(err).Msg("optional section not loaded")
			return nil, nil
		}
		return godwarf.NewSection(".debug_"+name, data, file.ByteOrder), nil
	}

	secs := &Sections{}
	if secs.Info, err = load("info", true); err != nil {
		return nil, err
	}
	if secs.Abbrev, err = load("abbrev", true); err != nil {
		return nil, err
	}
	secs.Str, _ = load("str", false)
	secs.LineStr, _ = load("line_str", false)
	secs.Line, _ = load("line", false)

	if text := file.Section(".text"); text != nil && text.Type != elf.SHT_NOBITS {
		data, err := text.Data()
		if err != nil {
			return nil, fmt.Errorf("read .text: %w", err)
		}
		secs.Text, secs.TextAddr = data, text.Addr
	}
	return secs, nil
}

// LoadDir reads raw sections from the files debug_info, debug_abbrev,
// debug_str, debug_line_str and debug_line of dir, as dumped by
// `objcopy --dump-section`. A nil order is guessed from debug_info.
func LoadDir(dir string, order binary.ByteOrder) (*Sections, error) {
	read := func(name string, required bool) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil && (required || !os.IsNotExist(err)) {
			return nil, err
		}
		return data, nil
	}

	info, err := read("debug_info", true)
	if err != nil {
		return nil, err
	}
	if order == nil {
		order = godwarf.DwarfEndian(info)
	}
	abbrev, err := read("debug_abbrev", true)
	if err != nil {
		return nil, err
	}

	secs := &Sections{
		Info:   godwarf.NewSection(".debug_info", info, order),
		Abbrev: godwarf.NewSection(".debug_abbrev", abbrev, order),
	}
	for name, dst := range map[string]**godwarf.Section{
		"debug_str":      &secs.Str,
		"debug_line_str": &secs.LineStr,
		"debug_line":     &secs.Line,
	} {
		data, err := read(name, false)
		if err != nil {
			return nil, err
		}
		if data != nil {
			*dst = godwarf.NewSection("."+name, data, order)
		}
	}
	return secs, nil
}
