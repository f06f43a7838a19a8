package util

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/leb128"
)

// Buf is a forward-only cursor over a section's bytes with a fixed byte
// order. Copying a Buf yields an independent cursor over the same bytes.
//
// Every read either consumes exactly the bytes it decodes or fails without
// moving the cursor.
type Buf struct {
	name  string
	order binary.ByteOrder
	base  uint64
	data  []byte
	off   int
}

// MakeBuf returns a cursor over data, which starts at section offset base.
func MakeBuf(name string, order binary.ByteOrder, base uint64, data []byte) Buf {
	return Buf{name: name, order: order, base: base, data: data}
}

// Name of the section being read.
func (b *Buf) Name() string { return b.name }

// Order byte order of the section.
func (b *Buf) Order() binary.ByteOrder { return b.order }

// Pos returns the number of bytes consumed so far.
func (b *Buf) Pos() int { return b.off }

// Offset returns the section offset of the next byte to read.
func (b *Buf) Offset() uint64 { return b.base + uint64(b.off) }

// Remaining returns the number of unread bytes.
func (b *Buf) Remaining() int { return len(b.data) - b.off }

// Empty reports whether every byte has been consumed.
func (b *Buf) Empty() bool { return b.off >= len(b.data) }

// Bytes returns the unread bytes without consuming them.
func (b *Buf) Bytes() []byte { return b.data[b.off:] }

// Errorf builds a *DecodeError of the given kind at the cursor's position.
func (b *Buf) Errorf(kind error, format string, args ...interface{}) error {
	return b.ErrorAt(b.Offset(), kind, format, args...)
}

// ErrorAt builds a *DecodeError of the given kind at section offset off.
func (b *Buf) ErrorAt(off uint64, kind error, format string, args ...interface{}) error {
	var detail string
	if format != "" {
		detail = fmt.Sprintf(format, args...)
	}
	return &DecodeError{Section: b.name, Offset: off, Err: kind, Detail: detail}
}

func (b *Buf) need(n int, what string) error {
	if n < 0 || b.Remaining() < n {
		return b.Errorf(ErrUnexpectedEOF, "reading %s: need %d bytes, %d left", what, n, b.Remaining())
	}
	return nil
}

// U8 reads one byte.
func (b *Buf) U8() (uint8, error) {
	if err := b.need(1, "u8"); err != nil {
		return 0, err
	}
	v := b.data[b.off]
	b.off++
	return v, nil
}

// U16 reads a 2-byte integer.
func (b *Buf) U16() (uint16, error) {
	if err := b.need(2, "u16"); err != nil {
		return 0, err
	}
	v := b.order.Uint16(b.data[b.off:])
	b.off += 2
	return v, nil
}

// U32 reads a 4-byte integer.
func (b *Buf) U32() (uint32, error) {
	if err := b.need(4, "u32"); err != nil {
		return 0, err
	}
	v := b.order.Uint32(b.data[b.off:])
	b.off += 4
	return v, nil
}

// U64 reads an 8-byte integer.
func (b *Buf) U64() (uint64, error) {
	if err := b.need(8, "u64"); err != nil {
		return 0, err
	}
	v := b.order.Uint64(b.data[b.off:])
	b.off += 8
	return v, nil
}

// Uint reads an unsigned integer of size bytes, size being 1, 2, 4 or 8.
func (b *Buf) Uint(size int) (uint64, error) {
	switch size {
	case 1:
		v, err := b.U8()
		return uint64(v), err
	case 2:
		v, err := b.U16()
		return uint64(v), err
	case 4:
		v, err := b.U32()
		return uint64(v), err
	case 8:
		return b.U64()
	}
	return 0, b.Errorf(ErrOverflow, "unsupported integer size %d", size)
}

// ULEB128 reads an unsigned LEB128 integer.
func (b *Buf) ULEB128() (uint64, error) {
	return b.ULEB128Bits(64)
}

// ULEB128Bits reads an unsigned LEB128 integer that must fit in bits bits.
func (b *Buf) ULEB128Bits(bits uint) (uint64, error) {
	v, n, err := leb128.DecodeUnsigned(b.Bytes(), bits)
	if err != nil {
		return 0, b.lebError(err)
	}
	b.off += n
	return v, nil
}

// SLEB128 reads a signed LEB128 integer.
func (b *Buf) SLEB128() (int64, error) {
	v, n, err := leb128.DecodeSigned(b.Bytes(), 64)
	if err != nil {
		return 0, b.lebError(err)
	}
	b.off += n
	return v, nil
}

func (b *Buf) lebError(err error) error {
	if err == leb128.ErrOverflow {
		return b.Errorf(ErrOverflow, "")
	}
	return b.Errorf(ErrUnexpectedEOF, "reading LEB128")
}

// CString reads a NUL-terminated string. The terminator is consumed but not
// returned.
func (b *Buf) CString() ([]byte, error) {
	i := bytes.IndexByte(b.Bytes(), 0)
	if i < 0 {
		return nil, b.Errorf(ErrUnexpectedEOF, "unterminated string")
	}
	s := b.data[b.off : b.off+i]
	b.off += i + 1
	return s, nil
}

// Slice reads the next n bytes. The returned slice aliases the section.
func (b *Buf) Slice(n int) ([]byte, error) {
	if err := b.need(n, "slice"); err != nil {
		return nil, err
	}
	s := b.data[b.off : b.off+n : b.off+n]
	b.off += n
	return s, nil
}

// Skip discards the next n bytes.
func (b *Buf) Skip(n int) error {
	if err := b.need(n, "skip"); err != nil {
		return err
	}
	b.off += n
	return nil
}

// Truncate returns a cursor over the next n bytes and advances b past them.
// The sub-cursor keeps section-relative offsets.
func (b *Buf) Truncate(n int) (Buf, error) {
	off := b.Offset()
	data, err := b.Slice(n)
	if err != nil {
		return Buf{}, err
	}
	return MakeBuf(b.name, b.order, off, data), nil
}

// Seek returns a cursor positioned at pos bytes from the start of b.
func (b *Buf) Seek(pos int) (Buf, error) {
	if pos < 0 || pos > len(b.data) {
		return Buf{}, b.ErrorAt(b.base+uint64(pos), ErrBadOffset, "seek past %d bytes", len(b.data))
	}
	c := *b
	c.off = pos
	return c, nil
}

// InitialLength reads a unit length field. A 32-bit value of 0xffffffff
// escapes to a 64-bit length that follows it, and marks the structure as
// 64-bit DWARF.
func (b *Buf) InitialLength() (length uint64, dwarf64 bool, err error) {
	save := b.off
	v, err := b.U32()
	if err != nil {
		return 0, false, err
	}
	switch {
	case v == 0xffffffff:
		length, err = b.U64()
		if err != nil {
			b.off = save
			return 0, false, err
		}
		return length, true, nil
	case v >= 0xfffffff0:
		b.off = save
		return 0, false, b.Errorf(ErrUnitHeaderTooShort, "reserved initial length %#x", v)
	}
	return uint64(v), false, nil
}

// OffsetField reads a section offset, 8 bytes wide in 64-bit DWARF and 4
// bytes otherwise.
func (b *Buf) OffsetField(dwarf64 bool) (uint64, error) {
	if dwarf64 {
		return b.U64()
	}
	v, err := b.U32()
	return uint64(v), err
}
