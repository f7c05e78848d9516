package matcher_test

import (
	"crypto/sha1"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/JohnDoee/autotorrent/internal/fsindex"
	"github.com/JohnDoee/autotorrent/internal/matcher"
	"github.com/JohnDoee/autotorrent/internal/pieceverify"
	"github.com/JohnDoee/autotorrent/pkg/bencode"
	"github.com/JohnDoee/autotorrent/pkg/metainfo"
)

const pieceLen = 65536

func buildMultiFile(t *testing.T, name string, files map[string][]byte) *metainfo.Metainfo {
	t.Helper()

	// concatenate in map-stable order by sorting keys for determinism
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	// simple insertion sort, avoids importing sort for 3-4 element sets
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}

	var concatenated []byte
	fileEntries := make([]bencode.Value, 0, len(keys))
	for _, k := range keys {
		content := files[k]
		concatenated = append(concatenated, content...)
		var pathParts []bencode.Value
		for _, part := range strings.Split(k, "/") {
			pathParts = append(pathParts, bencode.String(part))
		}
		fileEntries = append(fileEntries, bencode.Dict(
			bencode.Entry("length", bencode.Int64(int64(len(content)))),
			bencode.Entry("path", bencode.List(pathParts...)),
		))
	}

	var pieces []byte
	for i := 0; i < len(concatenated); i += pieceLen {
		end := i + pieceLen
		if end > len(concatenated) {
			end = len(concatenated)
		}
		h := sha1.Sum(concatenated[i:end])
		pieces = append(pieces, h[:]...)
	}
	if len(concatenated) == 0 {
		pieces = []byte{}
	}

	v := bencode.Dict(bencode.Entry("info", bencode.Dict(
		bencode.Entry("name", bencode.String(name)),
		bencode.Entry("piece length", bencode.Int64(pieceLen)),
		bencode.Entry("pieces", bencode.Bytes(pieces)),
		bencode.Entry("files", bencode.Value{Kind: bencode.KindList, List: fileEntries}),
	)))

	m, err := metainfo.Parse(v)
	require.NoError(t, err)
	return m
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func openIndex(t *testing.T, modes fsindex.Modes) *fsindex.Index {
	t.Helper()
	idx, err := fsindex.Open(filepath.Join(t.TempDir(), "index.db"), nil, modes, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSeedScenario1MultiFileExactMatch(t *testing.T) {
	root := t.TempDir()
	a, b, c := make([]byte, 11), make([]byte, 11), make([]byte, 11)
	for i := range a {
		a[i], b[i], c[i] = byte(i), byte(i+1), byte(i+2)
	}
	writeFile(t, filepath.Join(root, "file_a.txt"), a)
	writeFile(t, filepath.Join(root, "file_b.txt"), b)
	writeFile(t, filepath.Join(root, "file_c.txt"), c)

	idx := openIndex(t, fsindex.Modes{Normal: true})
	require.NoError(t, idx.Rebuild([]string{root}, true))

	m := buildMultiFile(t, "torrent_name", map[string][]byte{
		"file_a.txt": a, "file_b.txt": b, "file_c.txt": c,
	})
	v := pieceverify.New(m)

	res, err := matcher.Match(m, idx, matcher.Options{}, v)
	require.NoError(t, err)
	require.Equal(t, matcher.ModeLink, res.Mode)
	require.Equal(t, int64(33), res.FoundBytes)
	require.Equal(t, int64(0), res.MissingBytes)
	for _, d := range res.Files {
		require.Equal(t, matcher.Completed, d.Kind)
	}
}

func TestSeedScenario2OneMissingFile(t *testing.T) {
	root := t.TempDir()
	a, b, c := make([]byte, 11), make([]byte, 11), make([]byte, 11)
	writeFile(t, filepath.Join(root, "file_a.txt"), a)
	writeFile(t, filepath.Join(root, "file_c.txt"), c)

	idx := openIndex(t, fsindex.Modes{Normal: true})
	require.NoError(t, idx.Rebuild([]string{root}, true))

	m := buildMultiFile(t, "torrent_name", map[string][]byte{
		"file_a.txt": a, "file_b.txt": b, "file_c.txt": c,
	})
	v := pieceverify.New(m)

	res, err := matcher.Match(m, idx, matcher.Options{}, v)
	require.NoError(t, err)
	require.Equal(t, int64(22), res.FoundBytes)
	require.Equal(t, int64(11), res.MissingBytes)

	require.True(t, matcher.Admit(res, 12, 50.0))
	require.False(t, matcher.Admit(res, 0, 0))
}

func TestSeedScenario3UnsplitableMultiCDRelease(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Some-CD-Release")
	r00 := make([]byte, 11)
	for i := range r00 {
		r00[i] = byte(i)
	}
	writeFile(t, filepath.Join(release, "CD1", "somestuff-1.r00"), r00)
	// .rar alongside .sfv is the signature that marks CD1 unsplitable
	writeFile(t, filepath.Join(release, "CD1", "somestuff-1.rar"), []byte("rar"))
	writeFile(t, filepath.Join(release, "CD1", "somestuff-1.sfv"), []byte("sfv"))
	// unrelated file with the same base name and size elsewhere
	writeFile(t, filepath.Join(root, "unrelated", "somestuff-1.r00"), make([]byte, 11))

	idx := openIndex(t, fsindex.Modes{Unsplitable: true, Normal: true})
	require.NoError(t, idx.Rebuild([]string{root}, true))

	m := buildMultiFile(t, "Some-CD-Release", map[string][]byte{
		"CD1/somestuff-1.r00": r00,
		"CD1/somestuff-1.rar": []byte("rar"),
		"CD1/somestuff-1.sfv": []byte("sfv"),
	})
	v := pieceverify.New(m)

	res, err := matcher.Match(m, idx, matcher.Options{}, v)
	require.NoError(t, err)
	for i, f := range m.Files {
		if f.JoinedPath() == "CD1/somestuff-1.r00" {
			require.Equal(t, matcher.Completed, res.Files[i].Kind)
			require.Equal(t, filepath.Join(release, "CD1", "somestuff-1.r00"), res.Files[i].ActualPath)
		}
	}
}

func TestSeedScenario4HashAugmentedNameChange(t *testing.T) {
	root := t.TempDir()
	content := make([]byte, 20480)
	for i := range content {
		content[i] = byte(i % 256)
	}
	writeFile(t, filepath.Join(root, "randomname"), content)

	// the file was renamed, so the name lookup cannot surface it; the size
	// lookup supplies the candidate that piece hashing then confirms
	idx := openIndex(t, fsindex.Modes{Normal: true, HashName: true, HashSize: true})
	require.NoError(t, idx.Rebuild([]string{root}, true))

	m := buildMultiFile(t, "torrent_name", map[string][]byte{"file_a": content})
	v := pieceverify.New(m)

	res, err := matcher.Match(m, idx, matcher.Options{HashName: true, HashSize: true}, v)
	require.NoError(t, err)
	require.Equal(t, matcher.ModeHash, res.Mode)
	require.Equal(t, matcher.Completed, res.Files[0].Kind)
	require.Equal(t, filepath.Join(root, "randomname"), res.Files[0].ActualPath)
}
