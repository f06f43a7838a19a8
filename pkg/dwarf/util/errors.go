package util

import (
	"errors"
	"fmt"
)

// Error kinds. Every *DecodeError unwraps to exactly one of them.
var (
	ErrUnexpectedEOF         = errors.New("unexpected end of data")
	ErrOverflow              = errors.New("variable-length integer overflows")
	ErrMalformedAbbreviation = errors.New("malformed abbreviation")
	ErrUnsupportedForm       = errors.New("unsupported attribute form")
	ErrUnitHeaderTooShort    = errors.New("unit header too short")
	ErrMalformedOpcode       = errors.New("malformed line program opcode")
	ErrBadOffset             = errors.New("offset out of bounds")
	ErrUnsupportedVersion    = errors.New("unsupported DWARF version")
	ErrMalformedLineHeader   = errors.New("malformed line program header")
	ErrMissingEndSequence    = errors.New("line program ended without DW_LNE_end_sequence")
)

// DecodeError describes where and why decoding a section failed.
type DecodeError struct {
	Section string
	Offset  uint64
	Err     error
	Detail  string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("decoding %s at offset %#x: %v", e.Section, e.Offset, e.Err)
	}
	return fmt.Sprintf("decoding %s at offset %#x: %v: %s", e.Section, e.Offset, e.Err, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Reclassify returns err with its kind replaced by kind when err is a
// *DecodeError of kind `from`. Other errors are returned untouched.
//
// It lets a caller report a short read inside a length-delimited structure
// as the structure's own error kind, e.g. an opcode operand running past
// the program as ErrMalformedOpcode.
func Reclassify(err error, from, kind error) error {
	var de *DecodeError
	if errors.As(err, &de) && de.Err == from {
		detail := de.Err.Error()
		if de.Detail != "" {
			detail += ": " + de.Detail
		}
		return &DecodeError{Section: de.Section, Offset: de.Offset, Err: kind, Detail: detail}
	}
	return err
}
