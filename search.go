package csearch

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"regexp/syntax"

	"github.com/csearch-go/csearch/index"
)

// A Match is one line of a file matched by a Search.
type Match struct {
	File string
	Line int
	Text string
}

// Search runs a regular expression over every file in the index at
// indexPath. The expression is first decomposed into a trigram query and
// evaluated against the posting lists; only the candidate files that
// survive are actually opened and scanned, so the cost scales with the
// result set, not the tree.
//
// Files indexed earlier but unreadable now are skipped with a log line,
// matching the per-file failure semantics of Build.
func Search(ctx context.Context, indexPath, pattern string, optFns ...Option) ([]Match, error) {
	opts := applyOptions(optFns)

	expr := pattern
	if opts.caseInsensitive {
		expr = "(?i)" + pattern
	}
	syn, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("parse pattern %q: %w", pattern, err)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("parse pattern %q: %w", pattern, err)
	}
	var fileRe *regexp.Regexp
	if opts.fileFilter != "" {
		if fileRe, err = regexp.Compile(opts.fileFilter); err != nil {
			return nil, fmt.Errorf("parse file filter %q: %w", opts.fileFilter, err)
		}
	}

	ix, err := index.Open(indexPath)
	if err != nil {
		return nil, err
	}
	defer ix.Close()

	candidates, err := ix.PostingQuery(index.RegexpQuery(syn))
	if err != nil {
		return nil, err
	}

	var matches []Match
	it := candidates.Iterator()
	for it.HasNext() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := ix.Name(int(it.Next()))
		if err != nil {
			return nil, err
		}
		if fileRe != nil && !fileRe.MatchString(name) {
			continue
		}
		found, err := grepFile(name, re, opts.namesOnly)
		if err != nil {
			opts.logger.Warn("cannot search file", "name", name, "error", err)
			continue
		}
		matches = append(matches, found...)
	}
	return matches, nil
}

// grepFile scans one candidate file line by line. The trigram filter
// only guarantees a superset, so a candidate can legitimately have no
// matches.
func grepFile(name string, re *regexp.Regexp, namesOnly bool) ([]Match, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64<<10), 1<<20)

	var out []Match
	for line := 1; sc.Scan(); line++ {
		if !re.Match(sc.Bytes()) {
			continue
		}
		if namesOnly {
			return []Match{{File: name}}, nil
		}
		out = append(out, Match{File: name, Line: line, Text: string(sc.Bytes())})
	}
	return out, sc.Err()
}
