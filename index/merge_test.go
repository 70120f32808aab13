package index

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndexWithRoots(t *testing.T, roots []string, files map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "index")
	w, err := Create(path)
	require.NoError(t, err)
	w.AddPaths(roots)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		content := files[name]
		require.NoError(t, w.Add(name, strings.NewReader(content), int64(len(content))))
	}
	require.NoError(t, w.Flush())
	return path
}

func TestMergeRenumbers(t *testing.T) {
	// Interleaved names: the merged ID space must follow global sorted
	// order, not source order.
	src1 := buildIndexWithRoots(t, []string{"/one"}, map[string]string{
		"/one/a.txt": "alpha common",
		"/one/c.txt": "charlie common",
	})
	src2 := buildIndexWithRoots(t, []string{"/two"}, map[string]string{
		"/two/b.txt": "bravo common",
		"/two/d.txt": "delta common",
	})

	dst := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, Merge(dst, src1, src2))

	ix := mustOpen(t, dst)
	require.Equal(t, 4, ix.NumNames())

	wantNames := []string{"/one/a.txt", "/one/c.txt", "/two/b.txt", "/two/d.txt"}
	for i, want := range wantNames {
		name, err := ix.Name(i)
		require.NoError(t, err)
		assert.Equal(t, want, name)
	}

	paths, err := ix.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/one", "/two"}, paths)

	// "com" appears in every file; one-sided trigrams map to the new IDs.
	list, err := ix.PostingList(tri("com"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3}, list)

	list, err = ix.PostingList(tri("alp"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, list)

	list, err = ix.PostingList(tri("bra"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, list)

	list, err = ix.PostingList(tri("del"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{3}, list)
}

func TestMergeEquivalentToCombinedBuild(t *testing.T) {
	files1 := map[string]string{
		"/p/aa.go": "package main\nfunc main() {}\n",
		"/p/mm.go": "package main\nvar x = 42\n",
	}
	files2 := map[string]string{
		"/p/bb.go": "package other\nconst y = 7\n",
		"/p/zz.go": "package main\nfunc helper() {}\n",
	}

	src1 := buildIndexWithRoots(t, []string{"/p"}, files1)
	src2 := buildIndexWithRoots(t, []string{"/p"}, files2)

	dst := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, Merge(dst, src1, src2))

	combined := map[string]string{}
	for k, v := range files1 {
		combined[k] = v
	}
	for k, v := range files2 {
		combined[k] = v
	}
	direct := buildIndexWithRoots(t, []string{"/p"}, combined)

	// The merged index is byte-identical to building over the union.
	a, err := os.ReadFile(dst)
	require.NoError(t, err)
	b, err := os.ReadFile(direct)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestMergeDuplicatePath(t *testing.T) {
	src1 := buildIndexWithRoots(t, []string{"/p"}, map[string]string{
		"/p/same.txt": "from the first index",
	})
	src2 := buildIndexWithRoots(t, []string{"/p"}, map[string]string{
		"/p/same.txt": "from the second index",
	})

	dst := filepath.Join(t.TempDir(), "merged")
	err := Merge(dst, src1, src2)
	require.ErrorIs(t, err, ErrDuplicatePath)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMergeWithEmptyIndex(t *testing.T) {
	empty := buildIndexWithRoots(t, []string{"/e"}, nil)
	full := buildIndexWithRoots(t, []string{"/f"}, map[string]string{
		"/f/a.txt": "hello world",
		"/f/b.txt": "goodbye world",
	})

	dst := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, Merge(dst, empty, full))

	ix := mustOpen(t, dst)
	require.Equal(t, 2, ix.NumNames())

	list, err := ix.PostingList(tri("wor"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, list)

	paths, err := ix.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/e", "/f"}, paths)
}

func TestMergeSharedRootDeduplicated(t *testing.T) {
	src1 := buildIndexWithRoots(t, []string{"/shared"}, map[string]string{
		"/shared/a": "one",
	})
	src2 := buildIndexWithRoots(t, []string{"/shared"}, map[string]string{
		"/shared/b": "two",
	})

	dst := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, Merge(dst, src1, src2))

	ix := mustOpen(t, dst)
	paths, err := ix.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/shared"}, paths)
}
