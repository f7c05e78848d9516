// Package client defines the abstract torrent-client adapter contract. The
// core matcher/assembler treats every adapter as an opaque sink; concrete
// adapters live in sub-packages.
package client

import "github.com/JohnDoee/autotorrent/pkg/metainfo"

// StagedFile describes one file already materialized under the staging
// destination, for the adapter's fast-resume bookkeeping.
type StagedFile struct {
	Path      []string
	Length    int64
	Completed bool
}

// Adapter is the opaque capability every concrete torrent client
// implements. The core never branches on which concrete adapter is in use.
type Adapter interface {
	// TestConnection returns a descriptive string on success, or an error.
	TestConnection() (string, error)

	// GetTorrents returns the set of info-hashes (lowercase hex) currently
	// known to the client.
	GetTorrents() (map[string]bool, error)

	// AddTorrent hands a metainfo and its staged files to the client.
	// torrentBytes is the fully-encoded metainfo to hand to the client
	// verbatim (already carrying a libtorrent_resume dict when fastResume
	// was requested and granted by the assembler).
	AddTorrent(m *metainfo.Metainfo, torrentBytes []byte, destinationPath string, files []StagedFile, fastResume bool) (bool, error)
}
