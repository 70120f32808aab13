package csearch

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/csearch-go/csearch/index"
)

// File returns the name of the index file to use: $CSEARCHINDEX if set,
// else .csearchindex under the user's home directory.
func File() string {
	return index.File()
}

// BuildStats summarizes a completed build.
type BuildStats struct {
	// Indexed is the number of files committed to the index.
	Indexed int
	// Skipped counts files excluded by the extraction limits.
	Skipped int
	// Errors counts files that could not be read. Like skips, read
	// failures do not abort the build.
	Errors int
}

// Build walks the given roots and writes a new index over every regular
// file found, replacing any index at indexPath. The walk skips dotfiles,
// editor backups and anything matched by WithExcludes patterns.
//
// The index is written to a side path and renamed into place on success,
// so an existing index stays usable while the build runs and a failed or
// cancelled build leaves it untouched.
//
// Roots are walked concurrently; files are indexed in one pass in sorted
// path order. A file reachable from more than one root is indexed once.
func Build(ctx context.Context, indexPath string, roots []string, optFns ...Option) (*BuildStats, error) {
	opts := applyOptions(optFns)
	log := opts.logger.WithIndex(indexPath)

	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	norm := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolve root %s: %w", r, err)
		}
		norm = append(norm, abs)
	}
	sort.Strings(norm)
	norm = slices.Compact(norm)

	tmp := indexPath + "~"

	paths := make(chan string, 256)
	g, gctx := errgroup.WithContext(ctx)
	for _, root := range norm {
		root := root
		g.Go(func() error {
			return walkRoot(gctx, root, opts.excludes, paths, log.WithRoot(root))
		})
	}

	// Collect and de-duplicate while the walkers run. Overlapping roots
	// can reach the same file twice; the index file itself and its temp
	// sibling never belong in the index.
	var collected []string
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		seen := make(map[string]struct{})
		for p := range paths {
			if p == indexPath || p == tmp {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			collected = append(collected, p)
		}
	}()

	walkErr := g.Wait()
	close(paths)
	<-collectDone
	if walkErr != nil {
		return nil, walkErr
	}
	sort.Strings(collected)

	indexOpts := append([]index.Option{
		index.WithLimits(opts.limits),
		index.WithLogger(log.Logger),
	}, opts.indexOpts...)

	w, err := index.Create(tmp, indexOpts...)
	if err != nil {
		return nil, err
	}
	w.AddPaths(norm)

	stats := &BuildStats{}
	for _, p := range collected {
		if err := ctx.Err(); err != nil {
			w.Abort()
			return nil, err
		}
		switch err := w.AddFile(p); {
		case err == nil:
			stats.Indexed++
		case index.IsSkip(err):
			stats.Skipped++
			var skip *index.SkipError
			if errors.As(err, &skip) {
				log.LogSkip(skip)
			}
		default:
			stats.Errors++
			log.LogReadError(p, err)
		}
	}

	if err := w.Flush(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, indexPath); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("install index %s: %w", indexPath, err)
	}

	log.Info("index built", "files", stats.Indexed, "skipped", stats.Skipped, "errors", stats.Errors)
	return stats, nil
}

func walkRoot(ctx context.Context, root string, excludes []string, out chan<- string, log *Logger) error {
	return filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal: a large tree
			// always has a few.
			log.Warn("walk error", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if excluded(excludes, path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
			return nil
		}
		if excluded(excludes, path) {
			return nil
		}

		select {
		case out <- path:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// excluded reports whether any pattern matches the path.
func excluded(patterns []string, path string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, path); err == nil && ok {
			return true
		}
	}
	return false
}
