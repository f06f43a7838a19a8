package leb128

import "errors"

var (
	// ErrTruncated the encoding ended before a byte without the continuation bit.
	ErrTruncated = errors.New("leb128: truncated encoding")
	// ErrOverflow the encoded value does not fit the requested width.
	ErrOverflow = errors.New("leb128: value overflows")
)

// DecodeUnsigned decodes an unsigned LEB128 value of at most `bits` bits
// from the head of data. It returns the value and the number of bytes
// consumed.
func DecodeUnsigned(data []byte, bits uint) (uint64, int, error) {
	var (
		result uint64
		shift  uint
	)

	for i, b := range data {
		low := uint64(b & 0x7f)
		if low != 0 {
			if shift >= bits || (bits-shift < 7 && low>>(bits-shift) != 0) {
				return 0, 0, ErrOverflow
			}
			result |= low << shift
		}
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrTruncated
}

// DecodeSigned decodes a signed LEB128 value of at most `bits` bits from
// the head of data, sign-extending from the sign bit of the last byte.
func DecodeSigned(data []byte, bits uint) (int64, int, error) {
	var (
		result int64
		shift  uint
	)

	for i, b := range data {
		low := int64(b & 0x7f)
		switch {
		case shift < 63:
			result |= low << shift
		case shift == 63:
			if low != 0 && low != 0x7f {
				return 0, 0, ErrOverflow
			}
			result |= low << shift
		default:
			// only sign-extension padding may follow the value bits
			if (result < 0 && low != 0x7f) || (result >= 0 && low != 0) {
				return 0, 0, ErrOverflow
			}
		}
		shift += 7

		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			if bits < 64 {
				min, max := -int64(1)<<(bits-1), int64(1)<<(bits-1)-1
				if result < min || result > max {
					return 0, 0, ErrOverflow
				}
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, ErrTruncated
}
