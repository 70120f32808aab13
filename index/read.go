package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/csearch-go/csearch/internal/mmap"
)

// postEntrySize is the size of one posting index entry:
// trigram [3] + file count [4] + offset [4].
const postEntrySize = 3 + 4 + 4

// An Index provides read-only access to a finished index file. The file
// is memory-mapped on Open; all lookups are pure reads over the mapping,
// so one Index may serve any number of concurrent queries.
type Index struct {
	m    *mmap.File
	path string

	pathData  int
	nameData  int
	postData  int
	nameIndex int
	postIndex int
	numName   int
	numPost   int
}

// Open maps the index file at path and validates its framing. A bad
// header, trailer or section table yields a *CorruptError; nothing read
// from such a file can be trusted.
func Open(path string) (*Index, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ix := &Index{m: m, path: path}
	if err := ix.validate(); err != nil {
		m.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) validate() error {
	d := ix.m.Data
	if len(d) < len(magic)+len(trailerMagic)+5*4 {
		return ix.corrupt("file truncated")
	}
	if string(d[:len(magic)]) != magic {
		return ix.corrupt("bad header magic")
	}
	if string(d[len(d)-len(trailerMagic):]) != trailerMagic {
		return ix.corrupt("bad trailer magic")
	}

	n := len(d) - len(trailerMagic) - 5*4
	ix.pathData = int(binary.BigEndian.Uint32(d[n:]))
	ix.nameData = int(binary.BigEndian.Uint32(d[n+4:]))
	ix.postData = int(binary.BigEndian.Uint32(d[n+8:]))
	ix.nameIndex = int(binary.BigEndian.Uint32(d[n+12:]))
	ix.postIndex = int(binary.BigEndian.Uint32(d[n+16:]))

	if ix.pathData < len(magic) ||
		ix.nameData < ix.pathData ||
		ix.postData < ix.nameData ||
		ix.nameIndex < ix.postData ||
		ix.postIndex < ix.nameIndex ||
		ix.postIndex > n {
		return ix.corrupt("section offsets out of order")
	}
	if (ix.postIndex-ix.nameIndex)%4 != 0 || ix.postIndex == ix.nameIndex {
		return ix.corrupt("malformed name index")
	}
	if (n-ix.postIndex)%postEntrySize != 0 {
		return ix.corrupt("malformed posting list index")
	}
	ix.numName = (ix.postIndex-ix.nameIndex)/4 - 1
	ix.numPost = (n - ix.postIndex) / postEntrySize
	return nil
}

// Close unmaps the index. Lookups must not be used afterwards.
func (ix *Index) Close() error {
	return ix.m.Close()
}

// Path returns the file name the index was opened from.
func (ix *Index) Path() string { return ix.path }

// NumNames returns the number of indexed files.
func (ix *Index) NumNames() int { return ix.numName }

func (ix *Index) corrupt(reason string) error {
	return &CorruptError{File: ix.path, Reason: reason}
}

// slice returns n bytes at offset off, or all remaining bytes if n < 0.
func (ix *Index) slice(off, n int) ([]byte, error) {
	if off < 0 || off > len(ix.m.Data) {
		return nil, ix.corrupt("offset out of bounds")
	}
	if n < 0 {
		return ix.m.Data[off:], nil
	}
	if off+n < off || off+n > len(ix.m.Data) {
		return nil, ix.corrupt("offset out of bounds")
	}
	return ix.m.Data[off : off+n], nil
}

func (ix *Index) uint32At(off int) (uint32, error) {
	b, err := ix.slice(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// str reads the NUL-terminated string starting at off.
func (ix *Index) str(off int) ([]byte, error) {
	b, err := ix.slice(off, -1)
	if err != nil {
		return nil, err
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return nil, ix.corrupt("unterminated string")
	}
	return b[:i], nil
}

// Paths returns the list of indexed root paths recorded at build time.
func (ix *Index) Paths() ([]string, error) {
	off := ix.pathData
	var x []string
	for {
		s, err := ix.str(off)
		if err != nil {
			return nil, err
		}
		if len(s) == 0 {
			return x, nil
		}
		x = append(x, string(s))
		off += len(s) + 1
	}
}

// NameBytes returns the name of the file with the given ID as a view
// into the mapped index data.
func (ix *Index) NameBytes(fileid int) ([]byte, error) {
	if fileid < 0 || fileid >= ix.numName {
		return nil, ErrNotFound
	}
	off, err := ix.uint32At(ix.nameIndex + 4*fileid)
	if err != nil {
		return nil, err
	}
	return ix.str(ix.nameData + int(off))
}

// Name returns the name of the file with the given ID.
func (ix *Index) Name(fileid int) (string, error) {
	b, err := ix.NameBytes(fileid)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FileID returns the ID of the named file, found by binary search over
// the sorted name list. ErrNotFound means the file is not in the index.
func (ix *Index) FileID(name string) (int, error) {
	var searchErr error
	i := sort.Search(ix.numName, func(i int) bool {
		b, err := ix.NameBytes(i)
		if err != nil {
			searchErr = err
			return true
		}
		return string(b) >= name
	})
	if searchErr != nil {
		return 0, searchErr
	}
	if i >= ix.numName {
		return 0, ErrNotFound
	}
	b, err := ix.NameBytes(i)
	if err != nil {
		return 0, err
	}
	if string(b) != name {
		return 0, ErrNotFound
	}
	return i, nil
}

// listAt decodes the posting index entry at the given byte offset within
// the posting index section.
func (ix *Index) listAt(off int) (trigram uint32, count, offset int, err error) {
	d, err := ix.slice(ix.postIndex+off, postEntrySize)
	if err != nil {
		return 0, 0, 0, err
	}
	trigram = uint32(d[0])<<16 | uint32(d[1])<<8 | uint32(d[2])
	count = int(binary.BigEndian.Uint32(d[3:]))
	offset = int(binary.BigEndian.Uint32(d[3+4:]))
	return trigram, count, offset, nil
}

// findList locates the posting list for trigram via binary search over
// the posting index. count == 0 means no file contains the trigram.
func (ix *Index) findList(trigram uint32) (count, offset int, err error) {
	d, err := ix.slice(ix.postIndex, postEntrySize*ix.numPost)
	if err != nil {
		return 0, 0, err
	}
	i := sort.Search(ix.numPost, func(i int) bool {
		i *= postEntrySize
		t := uint32(d[i])<<16 | uint32(d[i+1])<<8 | uint32(d[i+2])
		return t >= trigram
	})
	if i >= ix.numPost {
		return 0, 0, nil
	}
	t, count, offset, err := ix.listAt(i * postEntrySize)
	if err != nil {
		return 0, 0, err
	}
	if t != trigram {
		return 0, 0, nil
	}
	return count, offset, nil
}

// A postReader decodes one posting list incrementally: deltas are only
// decoded as the caller advances.
type postReader struct {
	ix     *Index
	count  int
	fileid int
	d      []byte
	err    error
}

func (r *postReader) init(ix *Index, trigram uint32) {
	count, offset, err := ix.findList(trigram)
	if err != nil {
		r.err = err
		return
	}
	if count == 0 {
		return
	}
	d, err := ix.slice(ix.postData+offset+3, -1)
	if err != nil {
		r.err = err
		return
	}
	r.ix = ix
	r.count = count
	r.fileid = -1
	r.d = d
}

func (r *postReader) max() int { return r.count }

func (r *postReader) next() bool {
	if r.err != nil {
		return false
	}
	if r.count > 0 {
		r.count--
		delta, n := uvarint(r.d)
		if n <= 0 || delta == 0 || delta > uint64(^uint32(0)) {
			r.err = r.ix.corrupt("bad posting list delta")
			return false
		}
		r.d = r.d[n:]
		r.fileid += int(delta)
		return true
	}
	// A well-formed list ends with a zero delta.
	if r.d != nil && (len(r.d) == 0 || r.d[0] != 0) {
		r.err = r.ix.corrupt("missing posting list terminator")
	}
	r.fileid = -1
	return false
}

// PostingList returns the sorted, strictly increasing file IDs of every
// file containing the trigram. An unknown trigram yields an empty list;
// absence is a valid outcome, not an error.
func (ix *Index) PostingList(trigram uint32) ([]uint32, error) {
	var r postReader
	r.init(ix, trigram)
	x := make([]uint32, 0, r.max())
	for r.next() {
		x = append(x, uint32(r.fileid))
	}
	return x, r.err
}

// postingBitmap decodes the posting list for trigram into a bitmap.
func (ix *Index) postingBitmap(trigram uint32) (*roaring.Bitmap, error) {
	var r postReader
	r.init(ix, trigram)
	bm := roaring.New()
	for r.next() {
		bm.Add(uint32(r.fileid))
	}
	return bm, r.err
}

// allFiles returns the full file ID universe as a bitmap.
func (ix *Index) allFiles() *roaring.Bitmap {
	bm := roaring.New()
	if ix.numName > 0 {
		bm.AddRange(0, uint64(ix.numName))
	}
	return bm
}

// PostingQuery evaluates a trigram query against the index and returns
// the candidate file ID set. AND nodes intersect posting lists, OR nodes
// union them, and an unconstrained node stands in for every indexed
// file. The result is a superset of the files matching the regexp the
// query was derived from; the exact scan over candidate contents is the
// caller's job.
func (ix *Index) PostingQuery(q *Query) (*roaring.Bitmap, error) {
	switch q.Op {
	case QNone:
		return roaring.New(), nil

	case QAll:
		return ix.allFiles(), nil

	case QAnd:
		var list *roaring.Bitmap
		for _, t := range q.Trigram {
			bm, err := ix.postingBitmap(trigramValue(t))
			if err != nil {
				return nil, err
			}
			if list == nil {
				list = bm
			} else {
				list.And(bm)
			}
			if list.IsEmpty() {
				return list, nil
			}
		}
		for _, sub := range q.Sub {
			bm, err := ix.PostingQuery(sub)
			if err != nil {
				return nil, err
			}
			if list == nil {
				list = bm
			} else {
				list.And(bm)
			}
			if list.IsEmpty() {
				return list, nil
			}
		}
		if list == nil {
			list = ix.allFiles()
		}
		return list, nil

	case QOr:
		list := roaring.New()
		for _, t := range q.Trigram {
			bm, err := ix.postingBitmap(trigramValue(t))
			if err != nil {
				return nil, err
			}
			list.Or(bm)
		}
		for _, sub := range q.Sub {
			bm, err := ix.PostingQuery(sub)
			if err != nil {
				return nil, err
			}
			list.Or(bm)
		}
		return list, nil
	}
	return nil, fmt.Errorf("invalid query op %d", q.Op)
}

// trigramValue packs the first three bytes of s into a trigram value.
func trigramValue(s string) uint32 {
	return uint32(s[0])<<16 | uint32(s[1])<<8 | uint32(s[2])
}

// File returns the name of the index file to use: $CSEARCHINDEX if set,
// else .csearchindex under the user's home directory.
func File() string {
	if f := os.Getenv("CSEARCHINDEX"); f != "" {
		return f
	}
	home := os.Getenv("HOME")
	if runtime.GOOS == "windows" && home == "" {
		home = os.Getenv("USERPROFILE")
	}
	return filepath.Clean(home + "/.csearchindex")
}
