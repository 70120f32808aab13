package index

import (
	"io"
	"log/slog"

	"github.com/csearch-go/csearch/internal/fs"
)

type options struct {
	fsys           fs.FileSystem
	limits         Limits
	postBufferSize int
	compressRuns   bool
	logger         *slog.Logger
}

// Option configures index building and merging.
type Option func(*options)

// WithFileSystem overrides the file system used for the output and for
// scratch files. Intended for tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fsys = fsys
		}
	}
}

// WithLimits replaces the extraction limits wholesale.
func WithLimits(lim Limits) Option {
	return func(o *options) { o.limits = lim }
}

// WithMaxFileLen sets the indexed file size ceiling in bytes.
func WithMaxFileLen(n int64) Option {
	return func(o *options) { o.limits.MaxFileLen = n }
}

// WithMaxLineLen sets the per-line byte length ceiling.
func WithMaxLineLen(n int) Option {
	return func(o *options) { o.limits.MaxLineLen = n }
}

// WithMaxTrigrams sets the distinct-trigram ceiling per file.
func WithMaxTrigrams(n int) Option {
	return func(o *options) { o.limits.MaxTrigrams = n }
}

// WithMaxInvalidUTF8Ratio sets the tolerated ratio of invalid UTF-8
// bytes per file.
func WithMaxInvalidUTF8Ratio(r float64) Option {
	return func(o *options) { o.limits.MaxInvalidUTF8Ratio = r }
}

// WithPostBufferSize sets the in-memory budget, in bytes, for buffered
// (trigram, file ID) pairs before they are spilled to a sorted run on
// disk. Smaller budgets bound memory at the cost of more runs to merge.
func WithPostBufferSize(bytes int) Option {
	return func(o *options) {
		if bytes > 0 {
			o.postBufferSize = bytes
		}
	}
}

// WithRunCompression toggles zstd compression of spilled runs.
func WithRunCompression(on bool) Option {
	return func(o *options) { o.compressRuns = on }
}

// WithLogger sets the structured logger used for build progress and
// per-file skip reporting. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		fsys:           fs.Default,
		limits:         DefaultLimits(),
		postBufferSize: 64 << 20,
		compressRuns:   true,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
