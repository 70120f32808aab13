package csearch

import (
	"github.com/csearch-go/csearch/index"
)

type options struct {
	limits    index.Limits
	indexOpts []index.Option
	excludes  []string
	logger    *Logger

	caseInsensitive bool
	fileFilter      string
	namesOnly       bool
}

// Option configures Build and Search behavior.
type Option func(*options)

// WithLogger configures the logger. If nil is passed, logging is
// disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLimits replaces the file-extraction limits wholesale.
func WithLimits(lim index.Limits) Option {
	return func(o *options) {
		o.limits = lim
	}
}

// WithMaxFileLen sets the largest file size indexed, in bytes.
func WithMaxFileLen(n int64) Option {
	return func(o *options) { o.limits.MaxFileLen = n }
}

// WithMaxLineLen sets the longest line indexed, in bytes.
func WithMaxLineLen(n int) Option {
	return func(o *options) { o.limits.MaxLineLen = n }
}

// WithMaxTrigrams sets the most distinct trigrams a single file may
// contribute.
func WithMaxTrigrams(n int) Option {
	return func(o *options) { o.limits.MaxTrigrams = n }
}

// WithMaxInvalidUTF8Ratio sets the tolerated ratio of invalid UTF-8
// bytes before a file is treated as binary and skipped.
func WithMaxInvalidUTF8Ratio(r float64) Option {
	return func(o *options) { o.limits.MaxInvalidUTF8Ratio = r }
}

// WithExcludes adds glob patterns for paths the walker skips. Patterns
// use doublestar syntax, so "**/node_modules/**" works as expected. A
// pattern matching a directory prunes the whole subtree.
func WithExcludes(patterns ...string) Option {
	return func(o *options) {
		o.excludes = append(o.excludes, patterns...)
	}
}

// WithIndexOptions passes options through to the underlying index
// writer, for knobs Build does not surface itself (post buffer size,
// spill compression, alternate filesystems).
func WithIndexOptions(optFns ...index.Option) Option {
	return func(o *options) {
		o.indexOpts = append(o.indexOpts, optFns...)
	}
}

// WithCaseInsensitive makes Search match without regard to case.
func WithCaseInsensitive(on bool) Option {
	return func(o *options) { o.caseInsensitive = on }
}

// WithFileFilter restricts Search to candidate files whose path matches
// the given regular expression.
func WithFileFilter(pattern string) Option {
	return func(o *options) { o.fileFilter = pattern }
}

// WithNamesOnly makes Search report each matching file once, without
// per-line matches.
func WithNamesOnly(on bool) Option {
	return func(o *options) { o.namesOnly = on }
}

func applyOptions(optFns []Option) options {
	opts := options{
		limits: index.DefaultLimits(),
		logger: NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}
