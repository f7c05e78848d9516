// Package noop implements an in-memory client.Adapter for dry runs and
// tests: it records added torrents without touching any real client.
package noop

import (
	"sync"

	"github.com/JohnDoee/autotorrent/internal/client"
	"github.com/JohnDoee/autotorrent/pkg/metainfo"
)

// Adapter is a client.Adapter backed by an in-memory set of info-hashes.
type Adapter struct {
	mu    sync.Mutex
	added map[string]bool
}

// New builds an empty Adapter.
func New() *Adapter {
	return &Adapter{added: map[string]bool{}}
}

func (a *Adapter) TestConnection() (string, error) {
	return "noop adapter, always reachable", nil
}

func (a *Adapter) GetTorrents() (map[string]bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]bool, len(a.added))
	for k := range a.added {
		out[k] = true
	}
	return out, nil
}

func (a *Adapter) AddTorrent(m *metainfo.Metainfo, torrentBytes []byte, destinationPath string, files []client.StagedFile, fastResume bool) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.added[m.InfoHashHex()] = true
	return true, nil
}

var _ client.Adapter = (*Adapter)(nil)
