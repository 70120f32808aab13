package csearch

import "errors"

var (
	// ErrNoRoots is returned by Build when there is nothing to index.
	ErrNoRoots = errors.New("no roots to index")
)
