// Package pieceverify checks a candidate on-disk file against the piece
// hash table of a torrent's metainfo, and searches for the piece-aligned
// offset at which a candidate that otherwise matches must be spliced to
// reach the torrent's exact byte length.
package pieceverify

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"

	"github.com/JohnDoee/autotorrent/pkg/metainfo"
)

// Verifier computes and checks SHA-1 hashes over whole pieces of a
// metainfo's piece table.
type Verifier struct {
	m *metainfo.Metainfo
}

// New builds a Verifier over m's piece table.
func New(m *metainfo.Metainfo) *Verifier {
	return &Verifier{m: m}
}

func (v *Verifier) pieceBounds(i int) (start, end int64) {
	start = int64(i) * v.m.PieceLen
	end = start + v.m.PieceLen
	if end > v.m.TotalLength {
		end = v.m.TotalLength
	}
	return
}

// Window returns the slice of the piece table wholly contained within
// [fileStart, fileEnd): headOffset is the bytes to skip at the file's start
// to reach the first contained piece boundary, tailOffset is bytes to
// ignore at the file's end past the last contained piece boundary, and
// pieces holds the contained piece indices in order.
func (v *Verifier) Window(fileStart, fileEnd int64) (headOffset, tailOffset int64, pieces []int) {
	first, last := -1, -1
	for i := 0; i < v.m.PieceCount(); i++ {
		s, e := v.pieceBounds(i)
		if s >= fileStart && e <= fileEnd {
			if first == -1 {
				first = i
			}
			last = i
		}
		if s >= fileEnd {
			break
		}
	}
	if first == -1 {
		return fileEnd - fileStart, 0, nil
	}
	firstStart, _ := v.pieceBounds(first)
	_, lastEnd := v.pieceBounds(last)
	headOffset = firstStart - fileStart
	tailOffset = fileEnd - lastEnd
	for i := first; i <= last; i++ {
		pieces = append(pieces, i)
	}
	return
}

func matchThreshold(k int) int {
	switch {
	case k < 4:
		return 1
	case k < 10:
		return 2
	default:
		if v := k / 10; v > 3 {
			return v
		}
		return 3
	}
}

func readPieceAt(f *os.File, offset, length int64) ([20]byte, error) {
	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return [20]byte{}, err
	}
	return sha1.Sum(buf), nil
}

// MatchFile reads up to k pieces from the head and k from the tail of path
// (k derived from the window size) and compares their SHA-1 against the
// piece table, anchoring head reads to the file's start and tail reads to
// the file's actual end so that an interior size discrepancy does not
// perturb either probe.
func (v *Verifier) MatchFile(path string, fileStart, fileEnd int64) (matchesHead, matchesTail bool, err error) {
	_, _, pieces := v.Window(fileStart, fileEnd)
	if len(pieces) == 0 {
		return false, false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, false, fmt.Errorf("pieceverify: open candidate: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, false, fmt.Errorf("pieceverify: stat candidate: %w", err)
	}
	candidateSize := info.Size()

	k := len(pieces) / 10
	if k < 1 {
		k = 1
	}
	if k > len(pieces) {
		k = len(pieces)
	}
	threshold := matchThreshold(k)

	headMatches := 0
	for _, idx := range pieces[:k] {
		s, e := v.pieceBounds(idx)
		localOff := s - fileStart
		want, werr := v.m.PieceHash(idx)
		if werr != nil {
			return false, false, werr
		}
		got, rerr := readPieceAt(f, localOff, e-s)
		if rerr != nil {
			return false, false, fmt.Errorf("pieceverify: read head piece %d: %w", idx, rerr)
		}
		if got == want {
			headMatches++
		}
	}

	tailMatches := 0
	for _, idx := range pieces[len(pieces)-k:] {
		s, e := v.pieceBounds(idx)
		distFromDeclaredEnd := fileEnd - e
		localOff := candidateSize - distFromDeclaredEnd - (e - s)
		want, werr := v.m.PieceHash(idx)
		if werr != nil {
			return false, false, werr
		}
		if localOff < 0 {
			continue
		}
		got, rerr := readPieceAt(f, localOff, e-s)
		if rerr != nil {
			return false, false, fmt.Errorf("pieceverify: read tail piece %d: %w", idx, rerr)
		}
		if got == want {
			tailMatches++
		}
	}

	return headMatches >= threshold, tailMatches >= threshold, nil
}

// FindPieceBreakpoint probes whole pieces from the head of the candidate,
// decrementing a tolerance budget on each miss, until the budget is
// exhausted. It returns the offset (measured from the file's start) of the
// last piece boundary preceded by an unbroken run of matching pieces, so
// that every piece before the returned offset hashes correctly.
func (v *Verifier) FindPieceBreakpoint(path string, fileStart, fileEnd int64) (int64, error) {
	head, _, pieces := v.Window(fileStart, fileEnd)
	if len(pieces) == 0 {
		return head, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("pieceverify: open candidate: %w", err)
	}
	defer f.Close()

	budget := len(pieces) / 20
	if budget < 1 {
		budget = 1
	}

	run := 0
	for i, idx := range pieces {
		s, e := v.pieceBounds(idx)
		localOff := s - fileStart
		want, werr := v.m.PieceHash(idx)
		if werr != nil {
			return 0, werr
		}
		got, rerr := readPieceAt(f, localOff, e-s)
		if rerr != nil {
			return 0, fmt.Errorf("pieceverify: read piece %d: %w", idx, rerr)
		}
		if got == want && i == run {
			run++
			continue
		}
		if got != want {
			budget--
			if budget <= 0 {
				break
			}
		}
	}

	return head + v.m.PieceLen*int64(run), nil
}
