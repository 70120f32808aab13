package index

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a name or file ID has no entry.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyFlushed is returned when Flush is called twice on the
	// same writer.
	ErrAlreadyFlushed = errors.New("index already flushed")

	// ErrOutOfOrder is returned when AddFile is called with a name that
	// does not sort after every previously added name. File IDs must
	// follow sorted-name order, so the caller has to feed names sorted
	// and de-duplicated.
	ErrOutOfOrder = errors.New("file name out of order")

	// ErrDuplicatePath is returned by Merge when the same file name
	// appears in both source indexes.
	ErrDuplicatePath = errors.New("file indexed by both sources")
)

// CorruptError reports an index file that failed validation: bad magic,
// truncated sections, offsets out of bounds, or malformed posting data.
// No data read from the offending file can be trusted.
type CorruptError struct {
	File   string
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt index %s: %s", e.File, e.Reason)
}

// SkipReason explains why a file was excluded from the index.
type SkipReason int

const (
	// TooLarge: the file exceeds the configured size ceiling.
	TooLarge SkipReason = iota + 1
	// LineTooLong: a single line exceeds the configured byte length.
	LineTooLong
	// TooManyTrigrams: the file has more distinct trigrams than allowed.
	TooManyTrigrams
	// InvalidEncoding: too high a ratio of invalid UTF-8 bytes.
	InvalidEncoding
)

func (r SkipReason) String() string {
	switch r {
	case TooLarge:
		return "file too large"
	case LineTooLong:
		return "line too long"
	case TooManyTrigrams:
		return "too many trigrams"
	case InvalidEncoding:
		return "invalid UTF-8 encoding"
	}
	return fmt.Sprintf("skip reason %d", int(r))
}

// SkipError reports a file excluded from the index. It is a non-fatal
// per-file condition: the build goes on without the file. Use IsSkip (or
// errors.As) to tell it apart from real I/O failures.
type SkipError struct {
	Name   string
	Reason SkipReason
	Detail string
}

func (e *SkipError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("skipping %s: %s (%s)", e.Name, e.Reason, e.Detail)
	}
	return fmt.Sprintf("skipping %s: %s", e.Name, e.Reason)
}

// IsSkip reports whether err marks a skipped file rather than a failure.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}
