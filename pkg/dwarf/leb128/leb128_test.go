package leb128

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsignedRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 2, 127, 128, 129, 255, 256, 624485, 1 << 32, math.MaxUint32, math.MaxUint64 - 1, math.MaxUint64}
	for _, v := range values {
		var buf bytes.Buffer
		EncodeUnsigned(&buf, v)

		got, n, err := DecodeUnsigned(buf.Bytes(), 64)
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got)
		assert.Equal(t, buf.Len(), n)
	}
}

func TestSignedRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 2, -2, 63, 64, -64, -65, 127, -128, -123456, 1 << 40, math.MaxInt64, math.MinInt64}
	for _, v := range values {
		var buf bytes.Buffer
		EncodeSigned(&buf, v)

		got, n, err := DecodeSigned(buf.Bytes(), 64)
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got)
		assert.Equal(t, buf.Len(), n)
	}
}

func TestDecodeKnownEncodings(t *testing.T) {
	// DWARF v4 figure 22 and 23
	u, n, err := DecodeUnsigned([]byte{0x80, 0x01}, 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(128), u)
	assert.Equal(t, 2, n)

	u, _, err = DecodeUnsigned([]byte{0xe5, 0x8e, 0x26, 0xff}, 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(624485), u)

	s, _, err := DecodeSigned([]byte{0x7f}, 64)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), s)

	s, _, err = DecodeSigned([]byte{0x80, 0x7f}, 64)
	require.NoError(t, err)
	assert.Equal(t, int64(-128), s)

	// redundant padding is accepted
	u, n, err = DecodeUnsigned([]byte{0x81, 0x80, 0x80, 0x00}, 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), u)
	assert.Equal(t, 4, n)
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := DecodeUnsigned([]byte{0x80, 0x80}, 64)
	assert.Equal(t, ErrTruncated, err)

	_, _, err = DecodeSigned(nil, 64)
	assert.Equal(t, ErrTruncated, err)
}

func TestDecodeOverflow(t *testing.T) {
	// 2^64
	_, _, err := DecodeUnsigned([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x02}, 64)
	assert.Equal(t, ErrOverflow, err)

	_, _, err = DecodeUnsigned([]byte{0x80, 0x80, 0x04}, 16)
	assert.Equal(t, ErrOverflow, err)

	v, _, err := DecodeUnsigned([]byte{0xff, 0xff, 0x03}, 16)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffff), v)

	_, _, err = DecodeSigned([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, 64)
	assert.Equal(t, ErrOverflow, err)

	_, _, err = DecodeSigned([]byte{0x80, 0x01}, 8)
	assert.Equal(t, ErrOverflow, err)
}
