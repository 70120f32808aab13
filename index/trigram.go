package index

import (
	"bufio"
	"io"
	"slices"
)

// Limits bound what the extractor will accept before it declares a file
// unindexable. Binary and generated files have no useful trigram
// structure; these thresholds keep them out of the index cheaply.
type Limits struct {
	// MaxFileLen is the file size ceiling in bytes.
	MaxFileLen int64
	// MaxLineLen is the longest line, in bytes, an indexed file may have.
	MaxLineLen int
	// MaxTrigrams is the most distinct trigrams an indexed file may have.
	MaxTrigrams int
	// MaxInvalidUTF8Ratio is the tolerated ratio of invalid UTF-8 bytes
	// to total bytes.
	MaxInvalidUTF8Ratio float64
}

// DefaultLimits returns the default extraction limits. They are generous:
// ordinary source files pass, while binaries and minified blobs fall out.
func DefaultLimits() Limits {
	return Limits{
		MaxFileLen:          1 << 30,
		MaxLineLen:          2000,
		MaxTrigrams:         30000,
		MaxInvalidUTF8Ratio: 0.1,
	}
}

// extract scans r and returns the sorted set of distinct trigrams in it.
// size is the total length of the stream, checked against MaxFileLen
// before any byte is read. A limit violation returns a *SkipError naming
// the file; an I/O failure returns the underlying error.
func extract(name string, r io.Reader, size int64, lim Limits) ([]uint32, error) {
	if size > lim.MaxFileLen {
		return nil, &SkipError{Name: name, Reason: TooLarge}
	}

	var (
		seen     = make(map[uint32]struct{})
		br       = bufio.NewReader(r)
		tv       uint32 // rolling 3-byte window
		n        int    // valid bytes in the window
		linelen  int
		total    int64
		invalid  int64
		lastByte uint32
	)
	for {
		c, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		total++
		linelen++

		// An invalid byte pair (or a NUL) resets the window so trigrams
		// never span an encoding boundary.
		if c == 0x00 || (total > 1 && !validUTF8(lastByte, uint32(c))) {
			invalid++
			n = 0
			tv = 0
			lastByte = uint32(c)
			continue
		}
		lastByte = uint32(c)

		if c == '\n' {
			linelen = 0
		} else if linelen > lim.MaxLineLen {
			return nil, &SkipError{Name: name, Reason: LineTooLong}
		}

		tv = (tv<<8 | uint32(c)) & (1<<24 - 1)
		if n++; n >= 3 {
			if _, ok := seen[tv]; !ok {
				seen[tv] = struct{}{}
				if len(seen) > lim.MaxTrigrams {
					return nil, &SkipError{Name: name, Reason: TooManyTrigrams}
				}
			}
		}
	}

	if total > 0 && float64(invalid)/float64(total) > lim.MaxInvalidUTF8Ratio {
		return nil, &SkipError{Name: name, Reason: InvalidEncoding}
	}

	trigrams := make([]uint32, 0, len(seen))
	for t := range seen {
		trigrams = append(trigrams, t)
	}
	slices.Sort(trigrams)
	return trigrams, nil
}

// validUTF8 reports whether the byte pair c1, c2 can appear in that order
// in well-formed UTF-8. The check is local (it does not track full
// sequences) but rejects the byte patterns that matter for telling text
// from binary.
func validUTF8(c1, c2 uint32) bool {
	switch {
	case c1 < 0x80:
		// 1-byte sequence, must not be followed by a continuation byte.
		return c2 < 0x80 || 0xc0 <= c2
	case c1 < 0xc0:
		// Continuation byte, can be followed by nearly anything.
		return c2 < 0xf8
	case c1 < 0xf8:
		// Start of a multi-byte sequence, needs a continuation byte.
		return 0x80 <= c2 && c2 < 0xc0
	}
	return false
}

// trigramString renders a trigram value as its 3-byte string form.
func trigramString(t uint32) string {
	return string([]byte{byte(t >> 16), byte(t >> 8), byte(t)})
}
