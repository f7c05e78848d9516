package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JohnDoee/autotorrent/internal/config"
)

func TestLoadParsesGeneralDisksAndClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autotorrent.conf")
	contents := `[general]
db = /var/lib/autotorrent/db
store_path = /data/store
ignore_files = .DS_Store,Thumbs.db
add_limit_size = 1048576
add_limit_percent = 5.5
link_type = hard
delete_torrents = true
scan_mode = normal,unsplitable,hash_name

[disks]
disk1 = /mnt/disk1
disk2 = /mnt/disk2

[client]
client = rtorrent
url = scgi://127.0.0.1:5000
label = cross-seed
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "/var/lib/autotorrent/db", c.DBPath)
	require.Equal(t, "/data/store", c.StorePath)
	require.Equal(t, []string{".DS_Store", "Thumbs.db"}, c.IgnoreFiles)
	require.Equal(t, int64(1048576), c.AddLimitSize)
	require.InDelta(t, 5.5, c.AddLimitPercent, 0.0001)
	require.Equal(t, config.LinkHard, c.LinkType)
	require.True(t, c.DeleteTorrents)
	require.True(t, c.HasMode(config.ScanUnsplitable))
	require.Equal(t, []string{"/mnt/disk1", "/mnt/disk2"}, c.Disks)
	require.Equal(t, "rtorrent", c.ClientName)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := &config.Config{
		DBPath:          "/db",
		StorePath:       "/store",
		IgnoreFiles:     []string{"a", "b"},
		AddLimitSize:    2048,
		AddLimitPercent: 10,
		LinkType:        config.LinkSoft,
		DeleteTorrents:  false,
		ScanMode:        []config.ScanMode{config.ScanNormal, config.ScanHashSize},
		Disks:           []string{"/mnt/a"},
		ClientName:      "rtorrent",
		ClientURL:       "scgi://localhost:5000",
		ClientLabel:     "label",
	}

	path := filepath.Join(t.TempDir(), "out.conf")
	require.NoError(t, c.Save(path))

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, c.DBPath, reloaded.DBPath)
	require.Equal(t, c.StorePath, reloaded.StorePath)
	require.Equal(t, c.IgnoreFiles, reloaded.IgnoreFiles)
	require.Equal(t, c.AddLimitSize, reloaded.AddLimitSize)
	require.InDelta(t, c.AddLimitPercent, reloaded.AddLimitPercent, 0.0001)
	require.Equal(t, c.LinkType, reloaded.LinkType)
	require.Equal(t, c.ScanMode, reloaded.ScanMode)
	require.Equal(t, c.Disks, reloaded.Disks)
	require.Equal(t, c.ClientName, reloaded.ClientName)
}
