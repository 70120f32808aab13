package index

import "encoding/binary"

// Varint helpers shared by the writer, reader and merger. The encoding is
// the unsigned varint of encoding/binary: 7 data bits per byte, least
// significant group first, continuation bit set on all but the last byte.

// appendUvarint appends the varint encoding of x to dst.
func appendUvarint(dst []byte, x uint64) []byte {
	return binary.AppendUvarint(dst, x)
}

// uvarint decodes a varint from the start of b. It returns the value and
// the number of bytes consumed; n <= 0 means b is truncated (n == 0) or
// the value overflows 64 bits (n < 0).
func uvarint(b []byte) (uint64, int) {
	return binary.Uvarint(b)
}

// uvarintLen reports how many bytes the varint encoding of x occupies.
func uvarintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}
