// Copyright © 2021 Rak Laptudirm <raklaptudirm@gmail.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metainfo exposes a typed view over a decoded bencode.Value holding
// a BitTorrent metainfo dictionary: name, piece table, and an ordered file
// list, single- or multi-file.
package metainfo

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JohnDoee/autotorrent/pkg/bencode"
)

// ErrIllegalPath is returned when a file path component is ".", "..", or
// contains a path separator.
var ErrIllegalPath = errors.New("metainfo: illegal path component")

// ErrMalformed is returned when a required metainfo field is missing or
// structurally invalid.
var ErrMalformed = errors.New("metainfo: malformed metainfo")

// TorrentFile is one file entry of a metainfo, in original declaration
// order.
type TorrentFile struct {
	Path   []string // decoded path components, in order
	Length int64
	Index  int   // ordinal position in the file list
	Offset int64 // cumulative byte offset of this file's first byte
}

// JoinedPath joins Path with "/", the conventional on-disk relative path.
func (f TorrentFile) JoinedPath() string {
	return strings.Join(f.Path, "/")
}

// Metainfo is a typed view over a decoded torrent metainfo dictionary.
type Metainfo struct {
	raw  bencode.Value // the full top-level dict, exactly as decoded
	info bencode.Value // the info sub-dict, exactly as decoded

	Name        string
	PieceLen    int64
	Pieces      []byte
	Files       []TorrentFile
	TotalLength int64

	infoHash [20]byte
}

// Parse builds a Metainfo from a decoded top-level bencode.Value.
func Parse(raw bencode.Value) (*Metainfo, error) {
	info, ok := raw.Get("info")
	if !ok || info.Kind != bencode.KindDict {
		return nil, fmt.Errorf("%w: missing info dict", ErrMalformed)
	}

	name, ok := info.Get("name")
	if !ok || name.Kind != bencode.KindString {
		return nil, fmt.Errorf("%w: missing info.name", ErrMalformed)
	}

	pieceLen, ok := info.Get("piece length")
	if !ok || pieceLen.Kind != bencode.KindInteger || pieceLen.Int <= 0 {
		return nil, fmt.Errorf("%w: missing or non-positive piece length", ErrMalformed)
	}

	pieces, ok := info.Get("pieces")
	if !ok || pieces.Kind != bencode.KindString || len(pieces.Str)%20 != 0 {
		return nil, fmt.Errorf("%w: pieces field missing or not a multiple of 20 bytes", ErrMalformed)
	}

	m := &Metainfo{
		raw:      raw,
		info:     info,
		Name:     decodeName(name.Str),
		PieceLen: pieceLen.Int,
		Pieces:   pieces.Str,
	}

	filesVal, multiFile := info.Get("files")
	var offset int64
	if !multiFile {
		length, ok := info.Get("length")
		if !ok || length.Kind != bencode.KindInteger || length.Int < 0 {
			return nil, fmt.Errorf("%w: single-file torrent missing length", ErrMalformed)
		}
		m.Files = append(m.Files, TorrentFile{
			Path:   []string{m.Name},
			Length: length.Int,
			Index:  0,
			Offset: 0,
		})
		offset = length.Int
	} else {
		if filesVal.Kind != bencode.KindList {
			return nil, fmt.Errorf("%w: info.files is not a list", ErrMalformed)
		}
		for i, entry := range filesVal.List {
			length, ok := entry.Get("length")
			if !ok || length.Kind != bencode.KindInteger || length.Int < 0 {
				return nil, fmt.Errorf("%w: file entry %d missing length", ErrMalformed, i)
			}
			pathVal, ok := entry.Get("path")
			if !ok || pathVal.Kind != bencode.KindList || len(pathVal.List) == 0 {
				return nil, fmt.Errorf("%w: file entry %d missing path", ErrMalformed, i)
			}

			path, err := decodePath(pathVal)
			if err != nil {
				return nil, err
			}

			m.Files = append(m.Files, TorrentFile{
				Path:   path,
				Length: length.Int,
				Index:  i,
				Offset: offset,
			})
			offset += length.Int
		}
	}
	m.TotalLength = offset

	hash, err := m.computeInfoHash()
	if err != nil {
		return nil, err
	}
	m.infoHash = hash

	return m, nil
}

// decodePath decodes every component of a bencode path list, dropping empty
// components and rejecting "." ".." and separator-containing components.
func decodePath(pathVal bencode.Value) ([]string, error) {
	var out []string
	for _, comp := range pathVal.List {
		if comp.Kind != bencode.KindString {
			return nil, fmt.Errorf("%w: non-string path component", ErrMalformed)
		}
		if len(comp.Str) == 0 {
			continue
		}
		s := decodeName(comp.Str)
		if s == "." || s == ".." || strings.ContainsRune(s, '/') || strings.ContainsRune(s, '\\') {
			return nil, fmt.Errorf("%w: %q", ErrIllegalPath, s)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: path has no usable components", ErrIllegalPath)
	}
	return out, nil
}

// decodeName decodes raw bytes as UTF-8, falling back to ISO-8859-1 (each
// byte maps directly to the Unicode code point of the same value) when the
// bytes are not valid UTF-8.
func decodeName(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

// computeInfoHash returns SHA1(encode(info_dict)), using the raw decoded
// info Value rather than any re-derived struct so that non-UTF-8 path bytes
// are preserved exactly as seen on the wire.
func (m *Metainfo) computeInfoHash() ([20]byte, error) {
	return sha1.Sum(bencode.Encode(m.info)), nil
}

// InfoHash returns the raw 20-byte SHA-1 info-hash.
func (m *Metainfo) InfoHash() [20]byte { return m.infoHash }

// InfoHashHex returns the info-hash as lowercase hex.
func (m *Metainfo) InfoHashHex() string { return hex.EncodeToString(m.infoHash[:]) }

// PieceCount returns the number of pieces described by the piece table.
func (m *Metainfo) PieceCount() int { return len(m.Pieces) / 20 }

// PieceHash returns the SHA-1 recorded for piece i.
func (m *Metainfo) PieceHash(i int) ([20]byte, error) {
	var h [20]byte
	if i < 0 || i >= m.PieceCount() {
		return h, fmt.Errorf("metainfo: piece index %d out of range [0,%d)", i, m.PieceCount())
	}
	copy(h[:], m.Pieces[i*20:(i+1)*20])
	return h, nil
}

// RawInfo returns the info sub-dict exactly as decoded, unmodified.
func (m *Metainfo) RawInfo() bencode.Value { return m.info }

// WithResumeData returns a copy of the full top-level metainfo Value with a
// libtorrent_resume dict merged in as a sibling of info.
func (m *Metainfo) WithResumeData(resume bencode.Value) bencode.Value {
	return m.raw.WithEntry("libtorrent_resume", resume)
}
