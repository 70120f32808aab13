package index

import (
	"bufio"
	"container/heap"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/klauspost/compress/zstd"

	"github.com/csearch-go/csearch/internal/fs"
)

// A postEntry is a (trigram, fileid) pair packed into a uint64 with the
// trigram in the high bits, so sorting entries numerically sorts them by
// trigram and then by file ID.
type postEntry uint64

func makePostEntry(trigram, fileid uint32) postEntry {
	return postEntry(trigram)<<32 | postEntry(fileid)
}

func (e postEntry) trigram() uint32 { return uint32(e >> 32) }
func (e postEntry) fileid() uint32  { return uint32(e) }

// invalidTrigram sorts after every real trigram; it terminates the
// posting-list section and marks an exhausted merge source.
const invalidTrigram = 1<<24 - 1

// flushPost sorts the buffered pairs and spills them as one run to a
// scratch file, bounding peak memory no matter how large the tree is.
func (w *IndexWriter) flushPost() error {
	slices.Sort(w.post)

	f, err := w.opts.fsys.CreateTemp("", "csearch-run")
	if err != nil {
		return err
	}
	var (
		dst io.Writer = f
		zw  *zstd.Encoder
	)
	if w.opts.compressRuns {
		if zw, err = zstd.NewWriter(f); err != nil {
			f.Close()
			_ = w.opts.fsys.Remove(f.Name())
			return err
		}
		dst = zw
	}

	bw := bufio.NewWriterSize(dst, 1<<16)
	var buf [8]byte
	for _, e := range w.post {
		binary.BigEndian.PutUint64(buf[:], uint64(e))
		if _, err = bw.Write(buf[:]); err != nil {
			break
		}
	}
	if err == nil {
		err = bw.Flush()
	}
	if err == nil && zw != nil {
		err = zw.Close()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = w.opts.fsys.Remove(f.Name())
		return err
	}

	w.opts.logger.Debug("spilled run", "run", len(w.runs), "entries", len(w.post))
	w.runs = append(w.runs, f.Name())
	w.post = w.post[:0]
	return nil
}

// A postSource feeds sorted postEntries into the merge, either from the
// final in-memory buffer or from one spilled run.
type postSource struct {
	e   postEntry
	mem []postEntry // in-memory source; nil for run sources

	br   *bufio.Reader
	dec  *zstd.Decoder
	file fs.File
	name string
}

// advance loads the next entry into s.e; false means the source is done.
func (s *postSource) advance() (bool, error) {
	if s.mem != nil || s.br == nil {
		if len(s.mem) == 0 {
			return false, nil
		}
		s.e = s.mem[0]
		s.mem = s.mem[1:]
		return true, nil
	}
	var buf [8]byte
	if _, err := io.ReadFull(s.br, buf[:]); err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("reading run %s: %w", s.name, err)
	}
	s.e = postEntry(binary.BigEndian.Uint64(buf[:]))
	return true, nil
}

func (s *postSource) close() {
	if s.dec != nil {
		s.dec.Close()
	}
	if s.file != nil {
		s.file.Close()
	}
}

// postHeap is a min-heap of merge sources keyed by their current entry.
type postHeap struct {
	ch []*postSource
}

func (h *postHeap) Len() int            { return len(h.ch) }
func (h *postHeap) Less(i, j int) bool  { return h.ch[i].e < h.ch[j].e }
func (h *postHeap) Swap(i, j int)       { h.ch[i], h.ch[j] = h.ch[j], h.ch[i] }
func (h *postHeap) Push(x any)          { h.ch = append(h.ch, x.(*postSource)) }
func (h *postHeap) Pop() any {
	n := len(h.ch) - 1
	s := h.ch[n]
	h.ch = h.ch[:n]
	return s
}

// next returns the smallest pending entry across all sources, or an
// entry with the invalid trigram once every source is exhausted.
func (h *postHeap) next() (postEntry, error) {
	if len(h.ch) == 0 {
		return makePostEntry(invalidTrigram, 0), nil
	}
	s := h.ch[0]
	e := s.e
	ok, err := s.advance()
	if err != nil {
		return 0, err
	}
	if ok {
		heap.Fix(h, 0)
	} else {
		heap.Pop(h)
		s.close()
	}
	return e, nil
}

func (h *postHeap) closeAll() {
	for _, s := range h.ch {
		s.close()
	}
	h.ch = nil
}

// mergePost streams the k-way merge of all spilled runs plus the sorted
// in-memory remainder into out as the posting-list section, writing one
// posting index entry per list. Equal trigrams across sources coalesce
// into a single list; duplicate file IDs collapse.
func (w *IndexWriter) mergePost(out *bufWriter) error {
	slices.Sort(w.post)

	var h postHeap
	defer h.closeAll()

	if len(w.post) > 0 {
		s := &postSource{mem: w.post}
		if ok, _ := s.advance(); ok {
			h.ch = append(h.ch, s)
		}
	}
	for _, name := range w.runs {
		s, err := w.openRun(name)
		if err != nil {
			return err
		}
		ok, err := s.advance()
		if err != nil {
			s.close()
			return err
		}
		if ok {
			h.ch = append(h.ch, s)
		} else {
			s.close()
		}
	}
	heap.Init(&h)

	offset0 := out.offset()
	e, err := h.next()
	if err != nil {
		return err
	}
	for {
		trigram := e.trigram()
		offset := out.offset() - offset0

		if err := out.writeTrigram(trigram); err != nil {
			return out.wrapErr(err)
		}

		// Posting list: uvarint deltas from the previous file ID,
		// starting from -1, terminated by a zero delta.
		fileid := ^uint32(0)
		nfile := uint32(0)
		for ; e.trigram() == trigram && trigram != invalidTrigram; e, err = h.next() {
			if err != nil {
				return err
			}
			if e.fileid() == fileid {
				continue
			}
			if err := out.writeUvarint(uint64(e.fileid() - fileid)); err != nil {
				return out.wrapErr(err)
			}
			fileid = e.fileid()
			nfile++
		}
		if err != nil {
			return err
		}
		if err := out.writeUvarint(0); err != nil {
			return out.wrapErr(err)
		}

		// The sentinel list terminates the posting data but gets no
		// index entry: index entries exist only for non-empty lists.
		if trigram == invalidTrigram {
			break
		}
		if err := w.postIndex.writeTrigram(trigram); err != nil {
			return w.postIndex.wrapErr(err)
		}
		if err := w.postIndex.writeUint32(nfile); err != nil {
			return w.postIndex.wrapErr(err)
		}
		if err := w.postIndex.writeUint32(offset); err != nil {
			return w.postIndex.wrapErr(err)
		}
	}
	return nil
}

func (w *IndexWriter) openRun(name string) (*postSource, error) {
	f, err := w.opts.fsys.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open run %s: %w", name, err)
	}
	s := &postSource{file: f, name: name}
	if w.opts.compressRuns {
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open run %s: %w", name, err)
		}
		s.dec = dec
		s.br = bufio.NewReaderSize(dec, 1<<16)
	} else {
		s.br = bufio.NewReaderSize(f, 1<<16)
	}
	return s, nil
}
