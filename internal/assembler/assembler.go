// Package assembler materializes a matcher.Result into a staging tree —
// linking Completed files and splicing NeedsRewrite files at their
// breakpoint — and synthesizes the libtorrent_resume fast-resume dict for
// link-mode matches where every file completed.
package assembler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohnDoee/autotorrent/internal/matcher"
	"github.com/JohnDoee/autotorrent/pkg/bencode"
	"github.com/JohnDoee/autotorrent/pkg/bitfield"
	"github.com/JohnDoee/autotorrent/pkg/metainfo"
)

// LinkType selects how Completed files are materialized into the staging
// tree.
type LinkType int

const (
	LinkSoft LinkType = iota
	LinkHard
)

// ErrStagingExists is returned when the computed destination directory
// already exists, per §4.7's "fail if the destination already exists as a
// directory" rule.
var ErrStagingExists = errors.New("assembler: staging destination already exists")

// ErrUnknownLinkType is returned for a LinkType value outside the closed
// enum.
var ErrUnknownLinkType = errors.New("assembler: unknown link type")

const chunkSize = 64 * 1024

// Plan is the outcome of assembling a matcher.Result: the destination root
// and, for link-mode matches where every file completed, the resume-ready
// metainfo bytes.
type Plan struct {
	Destination  string
	TorrentBytes []byte // original bytes when fast-resume does not apply
}

// Assemble materializes res under storePath (for link/hash mode) and
// returns the destination root plus the bytes the client adapter should
// load. torrentBytes is the original, unmodified .torrent file content.
// When a step fails part-way, the directories and links already created
// under the destination are left in place; Assemble does not remove them.
func Assemble(m *metainfo.Metainfo, res *matcher.Result, storePath string, linkType LinkType, torrentBytes []byte) (*Plan, error) {
	switch linkType {
	case LinkSoft, LinkHard:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownLinkType, linkType)
	}

	var destination string
	if res.Mode == matcher.ModeExact {
		destination = res.SourcePath
	} else {
		destination = filepath.Join(storePath, baseWithoutExt(m.Name))
		if info, err := os.Stat(destination); err == nil && info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrStagingExists, destination)
		}
		for i, f := range m.Files {
			dst := filepath.Join(destination, f.JoinedPath())
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return nil, fmt.Errorf("assembler: create staging dir: %w", err)
			}

			switch res.Files[i].Kind {
			case matcher.Completed:
				if err := materializeLink(res.Files[i].ActualPath, dst, linkType); err != nil {
					return nil, fmt.Errorf("assembler: link %s: %w", dst, err)
				}
			case matcher.NeedsRewrite:
				if err := spliceRewrite(res.Files[i].ActualPath, dst, res.Files[i].Breakpoint, f.Length); err != nil {
					return nil, fmt.Errorf("assembler: rewrite %s: %w", dst, err)
				}
			case matcher.Missing:
				// no on-disk artifact; the client will download it
			}
		}
	}

	out := torrentBytes
	if res.Mode == matcher.ModeLink && allCompleted(res) {
		resume := buildResumeData(m, res)
		out = bencode.Encode(m.WithResumeData(resume))
	}

	return &Plan{Destination: destination, TorrentBytes: out}, nil
}

func allCompleted(res *matcher.Result) bool {
	for _, d := range res.Files {
		if d.Kind != matcher.Completed {
			return false
		}
	}
	return true
}

func baseWithoutExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func materializeLink(src, dst string, linkType LinkType) error {
	switch linkType {
	case LinkHard:
		return os.Link(src, dst)
	case LinkSoft:
		return os.Symlink(src, dst)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownLinkType, linkType)
	}
}

// spliceRewrite streams src into dst, splicing at breakpoint per §4.7: bytes
// [0, breakpoint) are copied verbatim; then the size discrepancy between the
// candidate and the target length is resolved by either inserting zero
// bytes (add) or skipping candidate bytes (remove); then the remainder is
// copied. All I/O moves in chunkSize-byte chunks.
func spliceRewrite(src, dst string, breakpoint, targetLength int64) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	candidateSize := info.Size()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := copyN(out, in, breakpoint); err != nil {
		return err
	}

	if candidateSize < targetLength {
		if err := writeZeros(out, targetLength-candidateSize); err != nil {
			return err
		}
	} else if candidateSize > targetLength {
		if _, err := in.Seek(candidateSize-targetLength, io.SeekCurrent); err != nil {
			return err
		}
	}

	remaining := targetLength - breakpoint
	if candidateSize < targetLength {
		remaining -= targetLength - candidateSize
	}
	if remaining > 0 {
		if err := copyN(out, in, remaining); err != nil {
			return err
		}
	}
	return nil
}

func copyN(dst io.Writer, src io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := io.CopyN(dst, src, n)
	return err
}

func writeZeros(dst io.Writer, n int64) error {
	buf := make([]byte, chunkSize)
	for n > 0 {
		chunk := int64(chunkSize)
		if n < chunk {
			chunk = n
		}
		if _, err := dst.Write(buf[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// buildResumeData derives the libtorrent_resume dict from res: a bitfield
// (or the piece count when every piece is available) and a per-file
// priority/completed/mtime entry.
func buildResumeData(m *metainfo.Metainfo, res *matcher.Result) bencode.Value {
	pieceCount := m.PieceCount()
	available := pieceAvailability(m, res, pieceCount)

	allSet := true
	for i := 0; i < pieceCount; i++ {
		if !available.Has(i) {
			allSet = false
			break
		}
	}

	var bitfieldValue bencode.Value
	if allSet {
		bitfieldValue = bencode.Int64(int64(pieceCount))
	} else {
		bitfieldValue = bencode.Bytes(available.Bytes())
	}

	fileEntries := make([]bencode.Value, len(m.Files))
	now := resumeMtime()
	for i := range m.Files {
		completed := int64(0)
		if res.Files[i].Kind == matcher.Completed {
			completed = 1
		}
		entries := []bencode.DictEntry{
			bencode.Entry("priority", bencode.Int64(1)),
			bencode.Entry("completed", bencode.Int64(completed)),
		}
		if completed == 1 {
			entries = append(entries, bencode.Entry("mtime", bencode.Int64(fileMtime(res.Files[i].ActualPath, now))))
		}
		fileEntries[i] = bencode.Value{Kind: bencode.KindDict, Dict: entries}
	}

	return bencode.Dict(
		bencode.Entry("bitfield", bitfieldValue),
		bencode.Entry("files", bencode.Value{Kind: bencode.KindList, List: fileEntries}),
	)
}

// pieceAvailability derives, for each piece, whether every file overlapping
// it is Completed: iterate files in declared order tracking a cumulative
// byte position, AND-combining each overlapping file's completion state.
func pieceAvailability(m *metainfo.Metainfo, res *matcher.Result, pieceCount int) bitfield.Bitfield {
	bf := bitfield.NewSize(pieceCount)
	for i := 0; i < pieceCount; i++ {
		bf.Set(i)
	}

	for i, f := range m.Files {
		completed := res.Files[i].Kind == matcher.Completed
		if completed {
			continue
		}
		start := f.Offset / m.PieceLen
		end := (f.Offset + f.Length - 1) / m.PieceLen
		if f.Length == 0 {
			continue
		}
		for p := start; p <= end && int(p) < pieceCount; p++ {
			bf.Clear(int(p))
		}
	}
	return bf
}

func resumeMtime() int64 { return 0 }

func fileMtime(path string, fallback int64) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return fallback
	}
	return info.ModTime().Unix()
}
