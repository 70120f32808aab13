// Package index builds, merges and queries trigram indexes over file trees.
//
// An index maps every 3-byte sequence (trigram) that occurs in an indexed
// file to the sorted list of files containing it. A regular expression is
// compiled into a boolean query over trigrams (RegexpQuery); evaluating the
// query against the index yields a candidate file set that is a superset of
// the true matches, so the caller only has to run the regexp over the
// candidates instead of the whole tree.
//
// # File format
//
// An index stored on disk has the form:
//
//	"csearch index 1\n"
//	list of paths
//	list of names
//	list of posting lists
//	name index
//	posting list index
//	trailer
//
// The list of paths is a sorted sequence of NUL-terminated root paths the
// index was built from, ending with an empty name ("\x00").
//
// The list of names is a sorted sequence of NUL-terminated file names,
// ending with an empty name. The first entry is file #0, the next file #1,
// and so on; file IDs are dense and follow name order.
//
// Each posting list has the form:
//
//	trigram [3]
//	deltas [v]...
//
// The delta list is a sequence of varint-coded differences between
// successive file IDs, ending with a zero delta. The first delta is
// relative to file ID -1, so the delta list [1,10,0] encodes the file ID
// list 0, 10. The list of posting lists ends with an entry for the
// trigram "\xff\xff\xff" whose delta list is a single zero.
//
// The name index is a sequence of 4-byte big-endian values giving the byte
// offset of each name in the name list, with one extra entry pointing at
// the terminating empty name. The posting list index is a sequence of
// entries:
//
//	trigram [3]
//	file count [4]
//	offset [4]
//
// sorted by trigram and written only for non-empty posting lists, so
// looking up a trigram is a binary search and an absent trigram simply
// means no file contains it.
//
// The trailer holds the offsets needed to find every section:
//
//	offset of path list [4]
//	offset of name list [4]
//	offset of posting lists [4]
//	offset of name index [4]
//	offset of posting list index [4]
//	"\ncsearch trailr\n"
//
// All fixed-width integers are big-endian; deltas use the varint encoding
// of encoding/binary (7 data bits per byte, continuation bit set on all
// but the final byte, least-significant group first).
//
// Index files are immutable: a rebuild writes to a temporary path and
// renames over the old file, so concurrent readers never observe a
// partially written index.
package index
