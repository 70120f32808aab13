package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csearch-go/csearch/internal/fs"
)

// buildIndex writes an index over the given name→content map and returns
// its path. Names are fed in sorted order, as the writer requires.
func buildIndex(t *testing.T, files map[string]string, optFns ...Option) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "index")
	w, err := Create(path, optFns...)
	require.NoError(t, err)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		content := files[name]
		err := w.Add(name, strings.NewReader(content), int64(len(content)))
		require.NoError(t, err)
	}
	require.NoError(t, w.Flush())
	return path
}

func mustOpen(t *testing.T, path string) *Index {
	t.Helper()
	ix, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func tri(s string) uint32 {
	return uint32(s[0])<<16 | uint32(s[1])<<8 | uint32(s[2])
}

func TestIndexRoundTrip(t *testing.T) {
	path := buildIndex(t, map[string]string{
		"/src/a.txt": "hello world",
		"/src/b.txt": "goodbye world",
	})
	ix := mustOpen(t, path)

	require.Equal(t, 2, ix.NumNames())

	a, err := ix.FileID("/src/a.txt")
	require.NoError(t, err)
	b, err := ix.FileID("/src/b.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)

	// "wor" appears in both files, "hel" only in the first.
	list, err := ix.PostingList(tri("wor"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{uint32(a), uint32(b)}, list)

	list, err = ix.PostingList(tri("hel"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{uint32(a)}, list)

	list, err = ix.PostingList(tri("goo"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{uint32(b)}, list)

	// Absent trigram: empty list, no error.
	list, err = ix.PostingList(tri("zzz"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIndexNameLookups(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 50; i++ {
		files[fmt.Sprintf("/dir/file%03d.go", i)] = fmt.Sprintf("package p%d\n", i)
	}
	ix := mustOpen(t, buildIndex(t, files))

	require.Equal(t, len(files), ix.NumNames())
	for i := 0; i < ix.NumNames(); i++ {
		name, err := ix.Name(i)
		require.NoError(t, err)

		id, err := ix.FileID(name)
		require.NoError(t, err)
		assert.Equal(t, i, id)
	}

	_, err := ix.Name(ix.NumNames())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ix.Name(-1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ix.FileID("/dir/nope.go")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndexPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	w, err := Create(path)
	require.NoError(t, err)
	w.AddPaths([]string{"/src/b", "/src/a"})
	require.NoError(t, w.Add("/src/a/x.txt", strings.NewReader("alpha"), 5))
	require.NoError(t, w.Flush())

	ix := mustOpen(t, path)
	paths, err := ix.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/a", "/src/b"}, paths)
}

func TestPostingListsStrictlyIncreasing(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 30; i++ {
		files[fmt.Sprintf("/f/%02d", i)] = "shared content here " + strings.Repeat("x", i)
	}
	ix := mustOpen(t, buildIndex(t, files))

	for _, s := range []string{"sha", "are", "con", "here", "xxx"} {
		list, err := ix.PostingList(tri(s))
		require.NoError(t, err)
		for i := 1; i < len(list); i++ {
			assert.Less(t, list[i-1], list[i], "trigram %q", s)
		}
	}
}

func TestWriterOutOfOrder(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	defer w.Abort()

	require.NoError(t, w.Add("/b", strings.NewReader("content b"), 9))
	err = w.Add("/a", strings.NewReader("content a"), 9)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	// Duplicates are out of order too.
	err = w.Add("/b", strings.NewReader("content b"), 9)
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestWriterFlushTwice(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, err)
	require.NoError(t, w.Add("/a", strings.NewReader("aaa"), 3))
	require.NoError(t, w.Flush())

	assert.ErrorIs(t, w.Flush(), ErrAlreadyFlushed)
	assert.ErrorIs(t, w.Add("/b", strings.NewReader("bbb"), 3), ErrAlreadyFlushed)
}

func TestWriterSkippedFileAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	w, err := Create(path, WithMaxFileLen(1_000_000))
	require.NoError(t, err)

	require.NoError(t, w.Add("/a", strings.NewReader("hello"), 5))

	// 10 MB against a 1 MB ceiling: skipped, build continues.
	big := strings.Repeat("x", 16)
	err = w.Add("/big", strings.NewReader(big), 10<<20)
	require.True(t, IsSkip(err))

	require.NoError(t, w.Add("/c", strings.NewReader("world"), 5))
	require.NoError(t, w.Flush())

	ix := mustOpen(t, path)
	assert.Equal(t, 2, ix.NumNames())
	_, err = ix.FileID("/big")
	assert.ErrorIs(t, err, ErrNotFound)
	list, err := ix.PostingList(tri("xxx"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWriterSpillMatchesInMemory(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 40; i++ {
		files[fmt.Sprintf("/spill/%02d.txt", i)] = fmt.Sprintf("file number %d has some trigram content", i)
	}

	// A tiny buffer forces many spilled runs; the output must be
	// byte-identical to the all-in-memory build.
	small := buildIndex(t, files, WithPostBufferSize(1))
	large := buildIndex(t, files)

	a, err := os.ReadFile(small)
	require.NoError(t, err)
	b, err := os.ReadFile(large)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestWriterSpillUncompressedRuns(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 25; i++ {
		files[fmt.Sprintf("/u/%02d", i)] = fmt.Sprintf("uncompressed run content %d", i)
	}
	plain := buildIndex(t, files, WithPostBufferSize(1), WithRunCompression(false))
	ref := buildIndex(t, files)

	a, err := os.ReadFile(plain)
	require.NoError(t, err)
	b, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestWriterAbortRemovesOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Add("/a", strings.NewReader("abandon"), 7))
	require.NoError(t, w.Abort())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriterAddFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello world"), 0o644))

	path := filepath.Join(dir, "index")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.AddFile(file))
	require.NoError(t, w.Flush())

	ix := mustOpen(t, path)
	id, err := ix.FileID(file)
	require.NoError(t, err)

	list, err := ix.PostingList(tri("hel"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{uint32(id)}, list)
}

func TestWriterFlushFailureDiscardsOutput(t *testing.T) {
	faulty := fs.NewFaultyFS(fs.LocalFS{})
	faulty.AddRule("broken-index", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

	path := filepath.Join(t.TempDir(), "broken-index")
	w, err := Create(path, WithFileSystem(faulty))
	require.NoError(t, err)
	require.NoError(t, w.Add("/a", strings.NewReader("some content"), 12))

	err = w.Flush()
	require.ErrorIs(t, err, fs.ErrInjected)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenRejectsCorrupt(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", []byte("csearch index 1\n")},
		{"bad magic", []byte(strings.Repeat("z", 200))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-"))
			require.NoError(t, os.WriteFile(path, tt.data, 0o644))

			_, err := Open(path)
			require.Error(t, err)
			var ce *CorruptError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestOpenRejectsTamperedTrailer(t *testing.T) {
	path := buildIndex(t, map[string]string{"/a": "hello world"})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip a byte inside the trailer magic.
	data[len(data)-2] ^= 0xff
	tampered := filepath.Join(t.TempDir(), "tampered")
	require.NoError(t, os.WriteFile(tampered, data, 0o644))

	_, err = Open(tampered)
	var ce *CorruptError
	assert.ErrorAs(t, err, &ce)
}
