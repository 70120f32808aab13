// Package csearch provides trigram-indexed regular-expression search
// over filesystem trees.
//
// An index is a single immutable file mapping every trigram (3-byte
// sequence) to the sorted list of files containing it. Building the
// index walks a tree once; a query then decomposes a regular expression
// into a boolean combination of required trigrams, evaluates it against
// the index, and runs the actual regexp only over the small candidate
// set. Large trees become searchable in milliseconds instead of a full
// scan per query.
//
// # Quick start
//
// Build an index over one or more roots and search it:
//
//	ctx := context.Background()
//	stats, err := csearch.Build(ctx, csearch.File(), []string{"/path/to/src"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("indexed %d files (%d skipped)", stats.Indexed, stats.Skipped)
//
//	matches, err := csearch.Search(ctx, csearch.File(), `func (\w+) Close\(\)`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, m := range matches {
//	    fmt.Printf("%s:%d:%s\n", m.File, m.Line, m.Text)
//	}
//
// The default index file is $CSEARCHINDEX, falling back to
// $HOME/.csearchindex.
//
// Lower-level control, such as streaming files into a writer yourself
// or merging two indexes, lives in the index subpackage. The cmd/cindex
// and cmd/csearch commands are thin wrappers over this package.
//
// Index files are written to a temporary path and renamed into place,
// so readers never observe a partial index and an existing index stays
// valid while a rebuild is running.
package csearch
