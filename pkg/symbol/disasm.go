package symbol

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Instruction one disassembled instruction, annotated with its source
// position when the line table covers it.
type Instruction struct {
	Addr  uint64
	Bytes []byte
	Asm   string
	File  string
	Line  int
}

// Disassemble decodes the amd64 instructions of fn from the binary's
// .text. syntax is one of go, gnu, intel.
func (bi *BinaryInfo) Disassemble(fn *Function, syntax string) ([]Instruction, error) {
	return bi.DisassembleRange(fn.lowpc, fn.highpc, syntax)
}

// DisassembleRange decodes the amd64 instructions of [low, high). Bytes
// that do not decode are reported one at a time as "(bad)".
func (bi *BinaryInfo) DisassembleRange(low, high uint64, syntax string) ([]Instruction, error) {
	switch syntax {
	case "go", "gnu", "intel":
	default:
		return nil, fmt.Errorf("invalid asm syntax %q, should be go, gnu or intel", syntax)
	}
	end := bi.TextAddr + uint64(len(bi.Text))
	if low < bi.TextAddr || high > end || low > high {
		return nil, fmt.Errorf("range [%#x, %#x) is outside .text [%#x, %#x)", low, high, bi.TextAddr, end)
	}
	dat := bi.Text[low-bi.TextAddr : high-bi.TextAddr]

	var insts []Instruction
	for offset := 0; offset < len(dat); {
		pc := low + uint64(offset)
		var (
			asm  = "(bad)"
			size = 1
		)
		inst, err := x86asm.Decode(dat[offset:], 64)
		if err == nil {
			if asm, err = instSyntax(inst, pc, syntax); err != nil {
				return nil, err
			}
			size = inst.Len
		}

		in := Instruction{Addr: pc, Bytes: dat[offset : offset+size], Asm: asm}
		if file, lineno, err := bi.PCToFileLine(pc); err == nil {
			in.File, in.Line = file, lineno
		}
		insts = append(insts, in)
		offset += size
	}
	return insts, nil
}

func instSyntax(inst x86asm.Inst, pc uint64, syntax string) (string, error) {
	asm := ""
	switch syntax {
	case "go":
		asm = x86asm.GoSyntax(inst, pc, nil)
	case "gnu":
		asm = x86asm.GNUSyntax(inst, pc, nil)
	case "intel":
		asm = x86asm.IntelSyntax(inst, pc, nil)
	default:
		return "", fmt.Errorf("invalid asm syntax %q, should be go, gnu or intel", syntax)
	}
	return asm, nil
}
