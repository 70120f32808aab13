package index

import (
	"fmt"
	"io"
	"os"
	"sort"
)

const (
	magic        = "csearch index 1\n"
	trailerMagic = "\ncsearch trailr\n"
)

// An IndexWriter builds an index file from a stream of file contents.
//
// Usage: Create the writer, AddPaths the indexed roots, AddFile every
// file in sorted name order, then Flush once. A writer owns mutable
// build state (the post buffer, spilled runs, scratch files) and must
// not be shared between goroutines.
type IndexWriter struct {
	opts options

	outPath   string
	out       *bufWriter // final index file
	nameData  *bufWriter // scratch: NUL-terminated names
	nameIndex *bufWriter // scratch: name offset table
	postIndex *bufWriter // scratch: trigram offset table

	paths []string

	post []postEntry // buffered (trigram, fileid) pairs
	runs []string    // spilled sorted runs

	numName  int
	lastName string
	flushed  bool
}

// Create opens path for writing and returns a writer for it. The file is
// not valid until Flush succeeds.
func Create(path string, optFns ...Option) (*IndexWriter, error) {
	opts := applyOptions(optFns)

	out, err := bufCreate(opts.fsys, path)
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", path, err)
	}
	w := &IndexWriter{
		opts:    opts,
		outPath: path,
		out:     out,
		post:    make([]postEntry, 0, max(opts.postBufferSize/8, 16)),
	}
	for _, p := range []**bufWriter{&w.nameData, &w.nameIndex, &w.postIndex} {
		if *p, err = bufCreate(opts.fsys, ""); err != nil {
			w.Abort()
			return nil, fmt.Errorf("create index %s: %w", path, err)
		}
	}
	return w, nil
}

// AddPaths records top-level roots covered by this index. The roots are
// informational: they are listed by readers and used to decide what to
// reindex, but do not affect queries.
func (w *IndexWriter) AddPaths(paths []string) {
	w.paths = append(w.paths, paths...)
}

// AddFile reads the named file and adds it to the index. A *SkipError
// return means the file was excluded by the extraction limits; the build
// can go on. Any other error is an I/O failure reading the file, also
// non-fatal to the build as a whole.
func (w *IndexWriter) AddFile(name string) error {
	f, err := w.opts.fsys.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	return w.Add(name, f, fi.Size())
}

// Add indexes the contents of r under the given name. size must be the
// total stream length. Names must arrive in sorted order without
// duplicates; file IDs are assigned densely in arrival order so that ID
// order and name order agree.
func (w *IndexWriter) Add(name string, r io.Reader, size int64) error {
	if w.flushed {
		return ErrAlreadyFlushed
	}
	if w.numName > 0 && name <= w.lastName {
		return fmt.Errorf("%w: %q after %q", ErrOutOfOrder, name, w.lastName)
	}

	trigrams, err := extract(name, r, size, w.opts.limits)
	if err != nil {
		return err
	}

	fileid := uint32(w.numName)
	for _, t := range trigrams {
		if len(w.post) >= cap(w.post) {
			if err := w.flushPost(); err != nil {
				return fmt.Errorf("spill run: %w", err)
			}
		}
		w.post = append(w.post, makePostEntry(t, fileid))
	}

	if err := w.addName(name); err != nil {
		return err
	}
	w.opts.logger.Debug("indexed file", "name", name, "fileid", fileid, "trigrams", len(trigrams))
	return nil
}

func (w *IndexWriter) addName(name string) error {
	if err := w.nameIndex.writeUint32(w.nameData.offset()); err != nil {
		return w.nameIndex.wrapErr(err)
	}
	if err := w.nameData.writeString(name); err != nil {
		return w.nameData.wrapErr(err)
	}
	if err := w.nameData.writeByte(0); err != nil {
		return w.nameData.wrapErr(err)
	}
	if name != "" {
		w.numName++
		w.lastName = name
	}
	return nil
}

// Flush assembles and syncs the final index file: path list, name list,
// merged posting lists, name index, posting index, trailer. It may be
// called once; further calls return ErrAlreadyFlushed. On error all
// scratch state and the partial output file are removed.
func (w *IndexWriter) Flush() (err error) {
	if w.flushed {
		return ErrAlreadyFlushed
	}
	w.flushed = true
	defer w.cleanup()
	defer func() {
		// A failed flush must not leave a half-written index behind.
		if err != nil && w.out != nil {
			w.out.discard()
			w.out = nil
		}
	}()

	if err := w.addName(""); err != nil {
		return err
	}

	var off [5]uint32
	if err := w.out.writeString(magic); err != nil {
		return w.out.wrapErr(err)
	}

	off[0] = w.out.offset()
	sort.Strings(w.paths)
	for _, p := range w.paths {
		if err := w.out.writeString(p); err != nil {
			return w.out.wrapErr(err)
		}
		if err := w.out.writeByte(0); err != nil {
			return w.out.wrapErr(err)
		}
	}
	if err := w.out.writeByte(0); err != nil {
		return w.out.wrapErr(err)
	}

	off[1] = w.out.offset()
	if err := w.nameData.flush(); err != nil {
		return w.nameData.wrapErr(err)
	}
	if err := w.out.writeFileAt(w.nameData.file); err != nil {
		return w.out.wrapErr(err)
	}

	off[2] = w.out.offset()
	if err := w.mergePost(w.out); err != nil {
		return err
	}

	off[3] = w.out.offset()
	if err := w.nameIndex.flush(); err != nil {
		return w.nameIndex.wrapErr(err)
	}
	if err := w.out.writeFileAt(w.nameIndex.file); err != nil {
		return w.out.wrapErr(err)
	}

	off[4] = w.out.offset()
	if err := w.postIndex.flush(); err != nil {
		return w.postIndex.wrapErr(err)
	}
	if err := w.out.writeFileAt(w.postIndex.file); err != nil {
		return w.out.wrapErr(err)
	}

	for _, v := range off {
		if err := w.out.writeUint32(v); err != nil {
			return w.out.wrapErr(err)
		}
	}
	if err := w.out.writeString(trailerMagic); err != nil {
		return w.out.wrapErr(err)
	}
	if err := w.out.finish(); err != nil {
		return w.out.wrapErr(err)
	}
	w.out = nil

	w.opts.logger.Info("index flushed",
		"path", w.outPath,
		"files", w.numName,
		"bytes", off[4],
	)
	return nil
}

// Abort discards all build state, including the partially written output
// file. Used when a build is cancelled; the output path is never left
// holding a half-written index.
func (w *IndexWriter) Abort() error {
	w.flushed = true
	w.cleanup()
	if w.out != nil {
		w.out.discard()
		w.out = nil
	}
	return nil
}

// cleanup removes scratch files and spilled runs.
func (w *IndexWriter) cleanup() {
	for _, b := range []*bufWriter{w.nameData, w.nameIndex, w.postIndex} {
		b.discard()
	}
	w.nameData, w.nameIndex, w.postIndex = nil, nil, nil
	for _, run := range w.runs {
		_ = w.opts.fsys.Remove(run)
	}
	w.runs = nil
	w.post = nil
}
