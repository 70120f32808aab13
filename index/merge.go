package index

import (
	"bytes"
	"fmt"
)

// Merging two indexes.
//
// The name lists of both sources are merge-joined first, assigning new
// dense file IDs in combined sorted order and recording, per source, the
// ranges [lo, hi) of old IDs and the new ID the range starts at. The
// posting sections are then merge-joined by trigram, remapping every file
// ID through its source's range table, and the result is written with the
// ordinary section layout. Everything streams: trigram by trigram, with
// only the range tables and small buffers held in memory.

// An idrange records that old IDs [lo, hi) map to [new, new+hi-lo).
type idrange struct {
	lo, hi, new int
}

// exhaustedTrigram marks a merge cursor that has run out of posting
// lists. It is distinct from the on-disk sentinel trigram 0xffffff.
const exhaustedTrigram = ^uint32(0)

// Merge creates a new index in the file dst combining the indexes in
// src1 and src2. The merged file set is the union of the two sources,
// renumbered so that file IDs still follow sorted-name order. The same
// file appearing in both sources is a caller error reported as
// ErrDuplicatePath; nothing is silently preferred.
//
// Merging streams both sources, so its memory use is bounded by the
// renumbering tables, not by index size. dst is not valid unless Merge
// returns nil; callers replacing a live index should merge to a
// temporary path and rename over the old file.
func Merge(dst, src1, src2 string, optFns ...Option) error {
	opts := applyOptions(optFns)

	ix1, err := Open(src1)
	if err != nil {
		return err
	}
	defer ix1.Close()
	ix2, err := Open(src2)
	if err != nil {
		return err
	}
	defer ix2.Close()

	map1, map2, numName, err := mergeNameMaps(ix1, ix2)
	if err != nil {
		return err
	}

	out, err := bufCreate(opts.fsys, dst)
	if err != nil {
		return fmt.Errorf("create index %s: %w", dst, err)
	}
	nameIndexFile, err := bufCreate(opts.fsys, "")
	if err != nil {
		out.discard()
		return err
	}
	defer nameIndexFile.discard()
	postIndexFile, err := bufCreate(opts.fsys, "")
	if err != nil {
		out.discard()
		return err
	}
	defer postIndexFile.discard()

	if err := mergeTo(out, nameIndexFile, postIndexFile, ix1, ix2, map1, map2, numName); err != nil {
		out.discard()
		return err
	}
	if err := out.finish(); err != nil {
		out.discard()
		return out.wrapErr(err)
	}

	opts.logger.Info("indexes merged", "dst", dst, "src1", src1, "src2", src2, "files", numName)
	return nil
}

// mergeNameMaps merge-joins the sorted name lists, building the old→new
// renumbering table for each source.
func mergeNameMaps(ix1, ix2 *Index) (map1, map2 []idrange, numName int, err error) {
	i1, i2 := 0, 0
	for i1 < ix1.numName || i2 < ix2.numName {
		var c int
		switch {
		case i2 >= ix2.numName:
			c = -1
		case i1 >= ix1.numName:
			c = +1
		default:
			var n1, n2 []byte
			if n1, err = ix1.NameBytes(i1); err != nil {
				return nil, nil, 0, err
			}
			if n2, err = ix2.NameBytes(i2); err != nil {
				return nil, nil, 0, err
			}
			c = bytes.Compare(n1, n2)
			if c == 0 {
				return nil, nil, 0, fmt.Errorf("%w: %s", ErrDuplicatePath, n1)
			}
		}
		if c < 0 {
			map1 = appendIDRange(map1, i1, numName)
			i1++
		} else {
			map2 = appendIDRange(map2, i2, numName)
			i2++
		}
		numName++
	}
	return map1, map2, numName, nil
}

// appendIDRange extends the last range when old and new are both
// contiguous with it, otherwise starts a new one.
func appendIDRange(m []idrange, old, new int) []idrange {
	if n := len(m); n > 0 && m[n-1].hi == old && m[n-1].new+(m[n-1].hi-m[n-1].lo) == new {
		m[n-1].hi++
		return m
	}
	return append(m, idrange{old, old + 1, new})
}

func mergeTo(out, nameIndexFile, postIndexFile *bufWriter, ix1, ix2 *Index, map1, map2 []idrange, numName int) error {
	var off [5]uint32

	if err := out.writeString(magic); err != nil {
		return out.wrapErr(err)
	}

	// Union of the root path lists, de-duplicated.
	off[0] = out.offset()
	paths1, err := ix1.Paths()
	if err != nil {
		return err
	}
	paths2, err := ix2.Paths()
	if err != nil {
		return err
	}
	for _, p := range mergePaths(paths1, paths2) {
		if err := out.writeString(p); err != nil {
			return out.wrapErr(err)
		}
		if err := out.writeByte(0); err != nil {
			return out.wrapErr(err)
		}
	}
	if err := out.writeByte(0); err != nil {
		return out.wrapErr(err)
	}

	// Merged name list, copied range by range in new-ID order, with the
	// name index built alongside.
	off[1] = out.offset()
	nameDataStart := out.offset()
	count := 0
	m1, m2 := map1, map2
	for count < numName {
		var (
			src *Index
			rng idrange
		)
		switch {
		case len(m1) > 0 && m1[0].new == count:
			src, rng = ix1, m1[0]
			m1 = m1[1:]
		case len(m2) > 0 && m2[0].new == count:
			src, rng = ix2, m2[0]
			m2 = m2[1:]
		default:
			return &CorruptError{File: out.name, Reason: "inconsistent merge renumbering"}
		}
		for id := rng.lo; id < rng.hi; id++ {
			name, err := src.NameBytes(id)
			if err != nil {
				return err
			}
			if err := nameIndexFile.writeUint32(out.offset() - nameDataStart); err != nil {
				return nameIndexFile.wrapErr(err)
			}
			if err := out.write(name); err != nil {
				return out.wrapErr(err)
			}
			if err := out.writeByte(0); err != nil {
				return out.wrapErr(err)
			}
			count++
		}
	}
	if err := nameIndexFile.writeUint32(out.offset() - nameDataStart); err != nil {
		return nameIndexFile.wrapErr(err)
	}
	if err := out.writeByte(0); err != nil {
		return out.wrapErr(err)
	}

	// Merged posting lists.
	off[2] = out.offset()
	pw := mergePostWriter{out: out, postIndex: postIndexFile, base: out.offset()}
	var r1, r2 postMapReader
	if err := r1.init(ix1, map1); err != nil {
		return err
	}
	if err := r2.init(ix2, map2); err != nil {
		return err
	}
	if err := mergePostings(&pw, &r1, &r2); err != nil {
		return err
	}

	off[3] = out.offset()
	if err := nameIndexFile.flush(); err != nil {
		return nameIndexFile.wrapErr(err)
	}
	if err := out.writeFileAt(nameIndexFile.file); err != nil {
		return out.wrapErr(err)
	}

	off[4] = out.offset()
	if err := postIndexFile.flush(); err != nil {
		return postIndexFile.wrapErr(err)
	}
	if err := out.writeFileAt(postIndexFile.file); err != nil {
		return out.wrapErr(err)
	}

	for _, v := range off {
		if err := out.writeUint32(v); err != nil {
			return out.wrapErr(err)
		}
	}
	if err := out.writeString(trailerMagic); err != nil {
		return out.wrapErr(err)
	}
	return nil
}

// mergePaths returns the sorted union of two sorted path lists.
func mergePaths(a, b []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var p string
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			p = a[i]
			i++
		case i >= len(a) || b[j] < a[i]:
			p = b[j]
			j++
		default: // equal
			p = a[i]
			i++
			j++
		}
		if len(out) == 0 || out[len(out)-1] != p {
			out = append(out, p)
		}
	}
	return out
}

// mergePostings walks both trigram cursors in sorted order, copying
// one-sided lists and union-merging shared ones, all through the
// renumbering tables.
func mergePostings(pw *mergePostWriter, r1, r2 *postMapReader) error {
	for {
		switch {
		case r1.trigram < r2.trigram:
			if err := copyList(pw, r1); err != nil {
				return err
			}
		case r2.trigram < r1.trigram:
			if err := copyList(pw, r2); err != nil {
				return err
			}
		default:
			if r1.trigram == exhaustedTrigram {
				// Both sources done: close the posting data with the
				// sentinel list.
				if err := pw.begin(invalidTrigram); err != nil {
					return err
				}
				return pw.end()
			}
			if err := pw.begin(r1.trigram); err != nil {
				return err
			}
			ok1, err := r1.nextID()
			if err != nil {
				return err
			}
			ok2, err := r2.nextID()
			if err != nil {
				return err
			}
			for ok1 || ok2 {
				switch {
				case !ok2 || (ok1 && r1.fileid < r2.fileid):
					if err := pw.fileid(r1.fileid); err != nil {
						return err
					}
					if ok1, err = r1.nextID(); err != nil {
						return err
					}
				case !ok1 || r2.fileid < r1.fileid:
					if err := pw.fileid(r2.fileid); err != nil {
						return err
					}
					if ok2, err = r2.nextID(); err != nil {
						return err
					}
				default:
					// Disjoint ID spaces: equal remapped IDs are impossible
					// unless a source is corrupt.
					return &CorruptError{File: r1.ix.path, Reason: "duplicate file id in merge"}
				}
			}
			if err := pw.end(); err != nil {
				return err
			}
			if err := r1.load(); err != nil {
				return err
			}
			if err := r2.load(); err != nil {
				return err
			}
		}
	}
}

// copyList writes r's current posting list, remapped, and advances r.
func copyList(pw *mergePostWriter, r *postMapReader) error {
	if err := pw.begin(r.trigram); err != nil {
		return err
	}
	for {
		ok, err := r.nextID()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := pw.fileid(r.fileid); err != nil {
			return err
		}
	}
	if err := pw.end(); err != nil {
		return err
	}
	return r.load()
}

// A postMapReader walks one source index's posting lists in trigram
// order, translating old file IDs to merged ones.
type postMapReader struct {
	ix      *Index
	idmap   []idrange
	triNum  int
	trigram uint32
	count   int
	d       []byte
	oldid   int
	fileid  int
	i       int
}

func (r *postMapReader) init(ix *Index, idmap []idrange) error {
	r.ix = ix
	r.idmap = idmap
	r.triNum = -1
	return r.load()
}

// load advances to the next posting list, or marks the cursor exhausted.
func (r *postMapReader) load() error {
	r.triNum++
	if r.triNum >= r.ix.numPost {
		r.trigram = exhaustedTrigram
		r.count = 0
		return nil
	}
	trigram, count, offset, err := r.ix.listAt(r.triNum * postEntrySize)
	if err != nil {
		return err
	}
	r.trigram, r.count = trigram, count
	if count == 0 {
		return nil
	}
	d, err := r.ix.slice(r.ix.postData+offset+3, -1)
	if err != nil {
		return err
	}
	r.d = d
	r.oldid = -1
	r.i = 0
	return nil
}

// nextID decodes the next file ID of the current list into r.fileid,
// already renumbered.
func (r *postMapReader) nextID() (bool, error) {
	for r.count > 0 {
		r.count--
		delta, n := uvarint(r.d)
		if n <= 0 || delta == 0 || delta > uint64(^uint32(0)) {
			return false, r.ix.corrupt("bad posting list delta")
		}
		r.d = r.d[n:]
		r.oldid += int(delta)
		for r.i < len(r.idmap) && r.idmap[r.i].hi <= r.oldid {
			r.i++
		}
		if r.i >= len(r.idmap) {
			r.count = 0
			break
		}
		if r.oldid < r.idmap[r.i].lo {
			continue
		}
		r.fileid = r.idmap[r.i].new + r.oldid - r.idmap[r.i].lo
		return true, nil
	}
	return false, nil
}

// mergePostWriter writes posting lists and their index entries for a
// merged index.
type mergePostWriter struct {
	out       *bufWriter
	postIndex *bufWriter
	base      uint32

	trigram uint32
	offset  uint32
	prev    uint32
	nfile   uint32
}

func (w *mergePostWriter) begin(trigram uint32) error {
	w.trigram = trigram
	w.offset = w.out.offset() - w.base
	w.prev = ^uint32(0)
	w.nfile = 0
	if err := w.out.writeTrigram(trigram); err != nil {
		return w.out.wrapErr(err)
	}
	return nil
}

func (w *mergePostWriter) fileid(id int) error {
	if err := w.out.writeUvarint(uint64(uint32(id) - w.prev)); err != nil {
		return w.out.wrapErr(err)
	}
	w.prev = uint32(id)
	w.nfile++
	return nil
}

func (w *mergePostWriter) end() error {
	if err := w.out.writeUvarint(0); err != nil {
		return w.out.wrapErr(err)
	}
	if w.trigram == invalidTrigram {
		return nil
	}
	if err := w.postIndex.writeTrigram(w.trigram); err != nil {
		return w.postIndex.wrapErr(err)
	}
	if err := w.postIndex.writeUint32(w.nfile); err != nil {
		return w.postIndex.wrapErr(err)
	}
	if err := w.postIndex.writeUint32(w.offset); err != nil {
		return w.postIndex.wrapErr(err)
	}
	return nil
}
