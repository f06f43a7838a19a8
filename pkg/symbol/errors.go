package symbol

import "fmt"

// ErrNoFunctionForPC no function covers the pc
type ErrNoFunctionForPC struct {
	PC uint64
}

func (e ErrNoFunctionForPC) Error() string {
	return fmt.Sprintf("no function covers pc %#x", e.PC)
}

// ErrNoLineForPC no line table row covers the pc
type ErrNoLineForPC struct {
	PC uint64
}

func (e ErrNoLineForPC) Error() string {
	return fmt.Sprintf("no line covers pc %#x", e.PC)
}

// ErrNoPCForLine no instruction is attributed to file:line
type ErrNoPCForLine struct {
	File string
	Line int
}

func (e ErrNoPCForLine) Error() string {
	return fmt.Sprintf("no pc for %s:%d", e.File, e.Line)
}
