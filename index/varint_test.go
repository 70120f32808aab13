package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 2, 127, 128, 129, 1<<14 - 1, 1 << 14, 1<<21 - 1, 1 << 21, 1<<24 - 1, 1<<32 - 1, 1<<63 - 1}

	for _, v := range values {
		b := appendUvarint(nil, v)
		require.Equal(t, uvarintLen(v), len(b), "encoded length for %d", v)

		got, n := uvarint(b)
		require.Positive(t, n)
		assert.Equal(t, len(b), n)
		assert.Equal(t, v, got)
	}
}

func TestUvarintContinuationBits(t *testing.T) {
	// All bytes but the last carry the continuation bit.
	b := appendUvarint(nil, 1<<21-1)
	require.Len(t, b, 3)
	assert.NotZero(t, b[0]&0x80)
	assert.NotZero(t, b[1]&0x80)
	assert.Zero(t, b[2]&0x80)
}

func TestUvarintTruncated(t *testing.T) {
	b := appendUvarint(nil, 1<<21-1)
	_, n := uvarint(b[:2])
	assert.LessOrEqual(t, n, 0)
}

func TestUvarintAppend(t *testing.T) {
	b := appendUvarint([]byte{0xff}, 300)
	assert.Equal(t, byte(0xff), b[0])

	v, n := uvarint(b[1:])
	assert.Equal(t, uint64(300), v)
	assert.Equal(t, 2, n)
}
