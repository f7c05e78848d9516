// Package matcher reconciles a torrent's file list against the file index,
// selecting the first successful strategy (exact, link, hash-augmented) and
// producing a per-file decision plus aggregate found/missing byte counts.
package matcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/JohnDoee/autotorrent/internal/fsindex"
	"github.com/JohnDoee/autotorrent/internal/pieceverify"
	"github.com/JohnDoee/autotorrent/internal/unsplitable"
	"github.com/JohnDoee/autotorrent/pkg/metainfo"
)

// Mode is the sum type of strategies a Result settled on.
type Mode int

const (
	ModeLink Mode = iota
	ModeHash
	ModeExact
)

func (m Mode) String() string {
	switch m {
	case ModeLink:
		return "link"
	case ModeHash:
		return "hash"
	case ModeExact:
		return "exact"
	default:
		return "unknown"
	}
}

// Action is the sum type of rewrite operations a NeedsRewrite decision may
// require.
type Action int

const (
	ActionAdd Action = iota
	ActionRemove
)

// DecisionKind is the sum type of per-file match outcomes.
type DecisionKind int

const (
	Completed DecisionKind = iota
	NeedsRewrite
	Missing
)

func (k DecisionKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case NeedsRewrite:
		return "needs-rewrite"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Decision is the outcome of matching a single torrent file.
type Decision struct {
	Kind       DecisionKind
	ActualPath string
	Action     Action
	Breakpoint int64
}

// Result is the outcome of matching an entire torrent.
type Result struct {
	Mode         Mode
	SourcePath   string // populated only when Mode == ModeExact
	Files        []Decision
	FoundBytes   int64
	MissingBytes int64
}

// Options configures which strategies participate in a match.
type Options struct {
	Exact    bool
	HashName bool
	HashSize bool
	HashSlow bool
}

// Match runs the strategy cascade (exact, then link, then hash-augmentation)
// for m against idx, using verifier for piece-level probing.
func Match(m *metainfo.Metainfo, idx *fsindex.Index, opts Options, verifier *pieceverify.Verifier) (*Result, error) {
	if opts.Exact {
		if res, ok, err := matchExact(m, idx); err != nil {
			return nil, err
		} else if ok {
			return res, nil
		}
	}

	res := matchLink(m, idx)

	if opts.HashName || opts.HashSize || opts.HashSlow {
		if opts.HashSlow {
			if err := idx.BuildSizeTable(); err != nil {
				return nil, err
			}
			defer idx.ClearSizeTable()
		}
		matchHash(m, idx, opts, verifier, res)
	}

	computeAggregate(m, res)
	return res, nil
}

func matchExact(m *metainfo.Metainfo, idx *fsindex.Index) (*Result, bool, error) {
	if len(m.Files) == 1 && m.Files[0].JoinedPath() == m.Name {
		for _, candidate := range idx.FindExact(fsindex.ExactFile, m.Name) {
			info, err := os.Stat(candidate)
			if err != nil {
				continue
			}
			if info.Size() == m.Files[0].Length {
				res := &Result{Mode: ModeExact, SourcePath: candidate}
				res.Files = []Decision{{Kind: Completed, ActualPath: candidate}}
				computeAggregate(m, res)
				return res, true, nil
			}
		}
		return nil, false, nil
	}

	for _, candidate := range idx.FindExact(fsindex.ExactDir, m.Name) {
		decisions := make([]Decision, len(m.Files))
		ok := true
		for i, f := range m.Files {
			full := filepath.Join(candidate, f.JoinedPath())
			info, err := os.Stat(full)
			if err != nil || info.Size() != f.Length {
				ok = false
				break
			}
			decisions[i] = Decision{Kind: Completed, ActualPath: full}
		}
		if ok {
			res := &Result{Mode: ModeExact, SourcePath: candidate, Files: decisions}
			computeAggregate(m, res)
			return res, true, nil
		}
	}
	return nil, false, nil
}

// torrentUnsplitableRoots groups the torrent's own file list by directory
// and applies the unsplitable detector to the torrent's virtual layout,
// returning a set of release-root names (not disk paths — the torrent has
// none) that the Link-mode strategy should resolve via the Unsplitable
// table instead of Normal.
func torrentUnsplitableRoots(m *metainfo.Metainfo) map[string]bool {
	byDir := map[string][]string{}
	for _, f := range m.Files {
		dir := strings.Join(f.Path[:len(f.Path)-1], "/")
		byDir[dir] = append(byDir[dir], f.Path[len(f.Path)-1])
	}

	roots := map[string]bool{}
	for dir, names := range byDir {
		if dir == "" {
			continue
		}
		if unsplitable.IsUnsplitable(names) {
			root := unsplitable.ReleaseRoot(filepath.Join(m.Name, dir))
			roots[filepath.Base(root)] = true
		}
	}
	return roots
}

func matchLink(m *metainfo.Metainfo, idx *fsindex.Index) *Result {
	roots := torrentUnsplitableRoots(m)
	decisions := make([]Decision, len(m.Files))

	for i, f := range m.Files {
		dir := strings.Join(f.Path[:len(f.Path)-1], "/")
		name := f.Path[len(f.Path)-1]

		var candidate string
		var ok bool

		if dir != "" {
			virtualDir := filepath.Join(m.Name, dir)
			rootPath := unsplitable.ReleaseRoot(virtualDir)
			root := filepath.Base(rootPath)
			if roots[root] {
				rel, rerr := filepath.Rel(rootPath, virtualDir)
				var subpath []string
				if rerr == nil && rel != "." && rel != "" {
					subpath = strings.Split(rel, "/")
				}
				candidate, ok = idx.FindUnsplitable(root, subpath, name, f.Length)
			}
		}
		if !ok {
			candidate, ok = idx.FindNormal(name, f.Length)
		}

		if ok {
			decisions[i] = Decision{Kind: Completed, ActualPath: candidate}
		} else {
			decisions[i] = Decision{Kind: Missing}
		}
	}

	return &Result{Mode: ModeLink, Files: decisions}
}

func matchHash(m *metainfo.Metainfo, idx *fsindex.Index, opts Options, verifier *pieceverify.Verifier, res *Result) {
	for i, f := range m.Files {
		if res.Files[i].Kind != Missing {
			continue
		}

		var candidates []string
		seen := map[string]bool{}
		add := func(paths []string) {
			for _, p := range paths {
				if !seen[p] {
					seen[p] = true
					candidates = append(candidates, p)
				}
			}
		}
		if opts.HashSize {
			add(idx.FindHashBySize(f.Length))
		}
		if opts.HashName {
			add(idx.FindHashByName(f.Path[len(f.Path)-1]))
		}
		if opts.HashSlow {
			add(idx.FindHashByVaryingSize(f.Length))
		}

		for _, candidate := range candidates {
			info, err := os.Stat(candidate)
			if err != nil {
				continue
			}

			head, tail, err := verifier.MatchFile(candidate, f.Offset, f.Offset+f.Length)
			if err != nil {
				continue
			}

			candidateSize := info.Size()
			switch {
			case head && tail && candidateSize == f.Length:
				res.Files[i] = Decision{Kind: Completed, ActualPath: candidate}
				res.Mode = ModeHash
			case head && tail:
				bp, err := verifier.FindPieceBreakpoint(candidate, f.Offset, f.Offset+f.Length)
				if err != nil {
					continue
				}
				action := ActionAdd
				if candidateSize > f.Length {
					action = ActionRemove
				}
				res.Files[i] = Decision{Kind: NeedsRewrite, ActualPath: candidate, Action: action, Breakpoint: bp}
				res.Mode = ModeHash
			case head:
				bp := f.Length
				if candidateSize < bp {
					bp = candidateSize
				}
				action := ActionAdd
				if candidateSize > f.Length {
					action = ActionRemove
				}
				res.Files[i] = Decision{Kind: NeedsRewrite, ActualPath: candidate, Action: action, Breakpoint: bp}
				res.Mode = ModeHash
			case tail:
				action := ActionAdd
				if candidateSize > f.Length {
					action = ActionRemove
				}
				res.Files[i] = Decision{Kind: NeedsRewrite, ActualPath: candidate, Action: action, Breakpoint: 0}
				res.Mode = ModeHash
			default:
				continue
			}
			break
		}
	}
}

func computeAggregate(m *metainfo.Metainfo, res *Result) {
	var found, missing int64
	for i, f := range m.Files {
		switch res.Files[i].Kind {
		case Completed, NeedsRewrite:
			found += f.Length
		default:
			missing += f.Length
		}
	}
	res.FoundBytes = found
	res.MissingBytes = missing
}

// Admit implements the admission gate of §4.6: a torrent is refused only
// when all three conditions hold simultaneously.
func Admit(res *Result, addLimitSize int64, addLimitPercent float64) bool {
	if res.MissingBytes == 0 {
		return true
	}
	total := res.FoundBytes + res.MissingBytes
	if total == 0 {
		return true
	}
	percent := float64(res.MissingBytes) / float64(total) * 100
	if percent > addLimitPercent && res.MissingBytes > addLimitSize {
		return false
	}
	return true
}
