package handler_test

import (
	"crypto/sha1"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/JohnDoee/autotorrent/internal/assembler"
	"github.com/JohnDoee/autotorrent/internal/client/noop"
	"github.com/JohnDoee/autotorrent/internal/fsindex"
	"github.com/JohnDoee/autotorrent/internal/handler"
	"github.com/JohnDoee/autotorrent/internal/status"
	"github.com/JohnDoee/autotorrent/pkg/bencode"
	"github.com/JohnDoee/autotorrent/pkg/metainfo"
)

func buildSingleFile(t *testing.T, name string, content []byte, pieceLen int64) *metainfo.Metainfo {
	t.Helper()
	var pieces []byte
	for i := int64(0); i < int64(len(content)); i += pieceLen {
		end := i + pieceLen
		if end > int64(len(content)) {
			end = int64(len(content))
		}
		h := sha1.Sum(content[i:end])
		pieces = append(pieces, h[:]...)
	}
	v := bencode.Dict(bencode.Entry("info", bencode.Dict(
		bencode.Entry("name", bencode.String(name)),
		bencode.Entry("piece length", bencode.Int64(pieceLen)),
		bencode.Entry("pieces", bencode.Bytes(pieces)),
		bencode.Entry("length", bencode.Int64(int64(len(content)))),
	)))
	m, err := metainfo.Parse(v)
	require.NoError(t, err)
	return m
}

func TestHandleCompletedMatchAddsToClient(t *testing.T) {
	root := t.TempDir()
	store := filepath.Join(root, "store")
	require.NoError(t, os.MkdirAll(store, 0o755))

	content := []byte("seeded content, fully on disk already")
	seedDir := filepath.Join(root, "seed")
	require.NoError(t, os.MkdirAll(seedDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "movie.bin"), content, 0o644))

	idx, err := fsindex.Open(filepath.Join(root, "index.db"), nil, fsindex.Modes{Normal: true}, zerolog.Nop())
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, idx.Rebuild([]string{seedDir}, true))

	m := buildSingleFile(t, "movie.bin", content, 16)
	adapter := noop.New()

	outcome := handler.Handle(m, []byte("torrentbytes"), idx, adapter, handler.Options{
		StorePath:       store,
		AddLimitSize:    0,
		AddLimitPercent: 0,
		LinkType:        assembler.LinkSoft,
	})

	require.NoError(t, outcome.Err)
	require.Equal(t, status.OK, outcome.Status)

	torrents, err := adapter.GetTorrents()
	require.NoError(t, err)
	require.True(t, torrents[m.InfoHashHex()])
}

func TestHandleAlreadySeedingShortCircuits(t *testing.T) {
	root := t.TempDir()
	idx, err := fsindex.Open(filepath.Join(root, "index.db"), nil, fsindex.Modes{Normal: true}, zerolog.Nop())
	require.NoError(t, err)
	defer idx.Close()

	content := []byte("some content")
	m := buildSingleFile(t, "movie.bin", content, 16)

	adapter := noop.New()
	_, err = adapter.AddTorrent(m, nil, "", nil, false)
	require.NoError(t, err)

	// every file is missing; a 100% limit admits the torrent past the
	// admission gate, which runs before the client check
	outcome := handler.Handle(m, []byte("x"), idx, adapter, handler.Options{
		StorePath:       filepath.Join(root, "store"),
		AddLimitPercent: 100,
	})
	require.Equal(t, status.AlreadySeeding, outcome.Status)
}

func TestHandleMissingFilesRefusedByAdmissionGate(t *testing.T) {
	root := t.TempDir()
	idx, err := fsindex.Open(filepath.Join(root, "index.db"), nil, fsindex.Modes{Normal: true}, zerolog.Nop())
	require.NoError(t, err)
	defer idx.Close()

	content := make([]byte, 1024)
	m := buildSingleFile(t, "nowhere.bin", content, 256)
	adapter := noop.New()

	outcome := handler.Handle(m, []byte("x"), idx, adapter, handler.Options{
		StorePath:       filepath.Join(root, "store"),
		AddLimitSize:    10,
		AddLimitPercent: 1,
	})
	require.Equal(t, status.MissingFiles, outcome.Status)

	torrents, err := adapter.GetTorrents()
	require.NoError(t, err)
	require.False(t, torrents[m.InfoHashHex()])
}
