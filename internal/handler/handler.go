// Package handler composes the index lookup, matcher, admission gate,
// client-adapter check, and assembler into the single per-torrent
// transaction described by original_source/autotorrent/at.py's
// handle_torrentfile.
package handler

import (
	"errors"
	"fmt"

	"github.com/JohnDoee/autotorrent/internal/assembler"
	"github.com/JohnDoee/autotorrent/internal/client"
	"github.com/JohnDoee/autotorrent/internal/fsindex"
	"github.com/JohnDoee/autotorrent/internal/matcher"
	"github.com/JohnDoee/autotorrent/internal/pieceverify"
	"github.com/JohnDoee/autotorrent/internal/status"
	"github.com/JohnDoee/autotorrent/pkg/metainfo"
)

// Options carries the per-run configuration a Handle call needs: where to
// stage, the admission-gate thresholds, which matcher strategies to run,
// and which link type to materialize Completed files with.
type Options struct {
	StorePath       string
	AddLimitSize    int64
	AddLimitPercent float64
	LinkType        assembler.LinkType
	Matcher         matcher.Options
}

// Outcome is the result of handling a single torrent.
type Outcome struct {
	Status status.Status
	Result *matcher.Result
	Err    error
}

// Handle runs the full transaction for one torrent: match, admit, check
// whether the client already has it, assemble, and hand it to the client.
func Handle(m *metainfo.Metainfo, torrentBytes []byte, idx *fsindex.Index, adapter client.Adapter, opts Options) Outcome {
	verifier := pieceverify.New(m)

	res, err := matcher.Match(m, idx, opts.Matcher, verifier)
	if err != nil {
		return Outcome{Status: status.MissingFiles, Err: fmt.Errorf("handler: match: %w", err)}
	}

	if !matcher.Admit(res, opts.AddLimitSize, opts.AddLimitPercent) {
		return Outcome{Status: status.MissingFiles, Result: res}
	}

	existing, err := adapter.GetTorrents()
	if err != nil {
		return Outcome{Status: status.FailedToAddToClient, Result: res, Err: fmt.Errorf("handler: get_torrents: %w", err)}
	}
	if existing[m.InfoHashHex()] {
		return Outcome{Status: status.AlreadySeeding, Result: res}
	}

	plan, err := assembler.Assemble(m, res, opts.StorePath, opts.LinkType, torrentBytes)
	if err != nil {
		if errors.Is(err, assembler.ErrStagingExists) {
			return Outcome{Status: status.FolderExistNotSeeding, Result: res, Err: err}
		}
		return Outcome{Status: status.MissingFiles, Result: res, Err: fmt.Errorf("handler: assemble: %w", err)}
	}

	files := make([]client.StagedFile, len(m.Files))
	for i, f := range m.Files {
		files[i] = client.StagedFile{
			Path:      f.Path,
			Length:    f.Length,
			Completed: res.Files[i].Kind == matcher.Completed,
		}
	}

	ok, err := adapter.AddTorrent(m, plan.TorrentBytes, plan.Destination, files, res.Mode == matcher.ModeLink)
	if err != nil || !ok {
		return Outcome{Status: status.FailedToAddToClient, Result: res, Err: err}
	}

	return Outcome{Status: status.OK, Result: res}
}
