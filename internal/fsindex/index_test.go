package fsindex_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/JohnDoee/autotorrent/internal/fsindex"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func openIndex(t *testing.T, modes fsindex.Modes) *fsindex.Index {
	t.Helper()
	idx, err := fsindex.Open(filepath.Join(t.TempDir(), "index.db"), nil, modes, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestNormalizationCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b_c"), 16)

	idx := openIndex(t, fsindex.Modes{Normal: true})
	require.NoError(t, idx.Rebuild([]string{root}, true))

	p1, ok1 := idx.FindNormal("B C", 16)
	p2, ok2 := idx.FindNormal("b_c", 16)
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, p1, p2)
}

func TestUnsplitableGrouping(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Some-CD-Release")
	writeFile(t, filepath.Join(release, "CD1", "somestuff-1.r00"), 11)
	// .rar alongside .sfv is the signature that marks CD1 unsplitable
	writeFile(t, filepath.Join(release, "CD1", "somestuff-1.rar"), 7)
	writeFile(t, filepath.Join(release, "CD1", "somestuff-1.sfv"), 5)
	// an unrelated 11-byte file with the same base name, outside the release
	writeFile(t, filepath.Join(root, "other", "somestuff-1.r00"), 11)

	idx := openIndex(t, fsindex.Modes{Unsplitable: true, Normal: true})
	require.NoError(t, idx.Rebuild([]string{root}, true))

	p, ok := idx.FindUnsplitable("Some-CD-Release", []string{"CD1"}, "somestuff-1.r00", 11)
	require.True(t, ok)
	require.Equal(t, filepath.Join(release, "CD1", "somestuff-1.r00"), p)
}

func TestExactAndHashTables(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dir1", "file.bin"), 100)
	writeFile(t, filepath.Join(root, "dir2", "file.bin"), 100)

	idx := openIndex(t, fsindex.Modes{Exact: true, HashName: true, HashSize: true})
	require.NoError(t, idx.Rebuild([]string{root}, true))

	files := idx.FindExact(fsindex.ExactFile, "file.bin")
	require.Len(t, files, 2)

	dirs := idx.FindExact(fsindex.ExactDir, "dir1")
	require.Len(t, dirs, 1)

	byName := idx.FindHashByName("file.bin")
	require.Len(t, byName, 2)

	bySize := idx.FindHashBySize(100)
	require.Len(t, bySize, 2)
}

func TestFindHashByVaryingSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"), 100)
	writeFile(t, filepath.Join(root, "b"), 105)
	writeFile(t, filepath.Join(root, "c"), 200)

	idx := openIndex(t, fsindex.Modes{HashSize: true})
	require.NoError(t, idx.Rebuild([]string{root}, true))
	require.NoError(t, idx.BuildSizeTable())
	defer idx.ClearSizeTable()

	results := idx.FindHashByVaryingSize(100)
	require.Len(t, results, 2) // 100 and 105 are within 10%; 200 is not
}

func TestRebuildDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x"), 50)

	idx := openIndex(t, fsindex.Modes{Normal: true})
	require.NoError(t, idx.Rebuild([]string{root}, true))
	first, _ := idx.FindNormal("x", 50)

	require.NoError(t, idx.Rebuild([]string{root}, true))
	second, _ := idx.FindNormal("x", 50)

	require.Equal(t, first, second)
}
