// Package fsindex implements the content-addressable file index: a
// persistent mapping from (size, name) style keys to on-disk paths, used by
// the matcher to locate already-downloaded files satisfying a torrent's
// layout without touching the network.
package fsindex

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/JohnDoee/autotorrent/internal/unsplitable"
	"github.com/JohnDoee/autotorrent/pkg/bencode"
)

var buckets = []string{"normal", "unsplitable", "exact_file", "exact_dir", "hash_name", "hash_size"}

// Modes selects which logical tables are populated during rebuild.
type Modes struct {
	Normal      bool
	Unsplitable bool
	Exact       bool
	HashName    bool
	HashSize    bool
	HashSlow    bool // enables build_size_table-backed varying-size lookups
}

// Index is the persistent, ordered key/value file index described in the
// metainfo-matching design: four logical query families backed by one bbolt
// database, opened exclusively for the lifetime of the process.
type Index struct {
	db          *bolt.DB
	ignoreGlobs []string
	modes       Modes
	log         zerolog.Logger

	sizeTable []int64 // lazily built, see BuildSizeTable/ClearSizeTable
}

// Open opens (creating if absent) the bbolt-backed index at path.
func Open(path string, ignoreGlobs []string, modes Modes, log zerolog.Logger) (*Index, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("fsindex: open %s: %w", path, err)
	}
	idx := &Index{db: db, ignoreGlobs: ignoreGlobs, modes: modes, log: log}
	if err := idx.ensureBuckets(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// Close releases the underlying database file.
func (idx *Index) Close() error { return idx.db.Close() }

func (idx *Index) ensureBuckets() error {
	return idx.db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Normalize implements normalize(name) = lowercase(replace(name, ' ', '_')).
func Normalize(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

func keyifyTuple(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

func normalKey(size int64, name string) []byte {
	return []byte(keyifyTuple(fmt.Sprintf("%d", size), Normalize(name)))
}

// unsplitableKey hashes (size, release root *name* — not full path, since
// the torrent side of a match has no disk path to compare against —,
// subpath components, name).
func unsplitableKey(size int64, releaseRootName string, subpath []string, name string) []byte {
	parts := []string{fmt.Sprintf("%d", size), Normalize(releaseRootName)}
	for _, p := range subpath {
		parts = append(parts, Normalize(p))
	}
	parts = append(parts, Normalize(name))
	return []byte(keyifyTuple(parts...))
}

func exactKey(kind, rawName string) []byte {
	return []byte(kind + ":" + rawName)
}

func hashNameKey(name string) []byte {
	h := sha256.Sum256([]byte(Normalize(name)))
	return []byte(hex.EncodeToString(h[:]))
}

func hashSizeKey(size int64) []byte {
	return []byte(fmt.Sprintf("s:%d", size))
}

// encodeList/decodeList persist a multi-valued table entry as a bencode list
// of byte strings, reusing the project's own codec as the storage format.
func encodeList(paths []string) []byte {
	items := make([]bencode.Value, len(paths))
	for i, p := range paths {
		items[i] = bencode.String(p)
	}
	return bencode.Encode(bencode.Value{Kind: bencode.KindList, List: items})
}

func decodeList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	v, err := bencode.Decode(raw)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(v.List))
	for _, item := range v.List {
		out = append(out, string(item.Str))
	}
	return out
}

func matchesIgnore(globs []string, name string) bool {
	normalized := Normalize(name)
	for _, g := range globs {
		if ok, _ := filepath.Match(g, normalized); ok {
			return true
		}
	}
	return false
}

// Rebuild walks each of roots and (re)populates the index. If truncate is
// true, every bucket is emptied first; otherwise entries are merged in,
// extending the index with the listed roots.
func (idx *Index) Rebuild(roots []string, truncate bool) error {
	if truncate {
		if err := idx.db.Update(func(tx *bolt.Tx) error {
			for _, b := range buckets {
				if err := tx.DeleteBucket([]byte(b)); err != nil && err != bolt.ErrBucketNotFound {
					return err
				}
				if _, err := tx.CreateBucket([]byte(b)); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return fmt.Errorf("fsindex: truncate: %w", err)
		}
	}

	for _, root := range roots {
		if err := idx.rebuildRoot(root); err != nil {
			return err
		}
	}
	idx.ClearSizeTable()
	return nil
}

type dirEntry struct {
	dir   string
	names []string
}

func (idx *Index) rebuildRoot(root string) error {
	unsplitableRoots := map[string]bool{}
	if idx.modes.Unsplitable {
		if err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				idx.log.Warn().Err(err).Str("path", p).Msg("fsindex: skipping unreadable path")
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			names, rerr := readDirNames(p)
			if rerr != nil {
				idx.log.Warn().Err(rerr).Str("path", p).Msg("fsindex: skipping unreadable directory")
				return nil
			}
			if unsplitable.IsUnsplitable(names) {
				unsplitableRoots[unsplitable.ReleaseRoot(p)] = true
			}
			return nil
		}); err != nil {
			return fmt.Errorf("fsindex: walk %s: %w", root, err)
		}
	}

	return idx.db.Update(func(tx *bolt.Tx) error {
		return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				idx.log.Warn().Err(err).Str("path", p).Msg("fsindex: skipping unreadable path")
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			return idx.indexDirectory(tx, p, unsplitableRoots)
		})
	})
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (idx *Index) indexDirectory(tx *bolt.Tx, dir string, unsplitableRoots map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		idx.log.Warn().Err(err).Str("path", dir).Msg("fsindex: skipping unreadable directory")
		return nil
	}

	releaseRoot, underUnsplitableRoot := idx.containingUnsplitableRoot(dir, unsplitableRoots)

	for _, e := range entries {
		full := filepath.Join(dir, e.Name())

		if e.IsDir() {
			if idx.modes.Exact {
				if err := appendList(tx, "exact_dir", exactKey("d", e.Name()), full); err != nil {
					return err
				}
			}
			continue
		}

		info, err := e.Info()
		if err != nil {
			idx.log.Warn().Err(err).Str("path", full).Msg("fsindex: skipping unreadable file")
			continue
		}
		size := info.Size()

		if underUnsplitableRoot && idx.modes.Unsplitable {
			rel, rerr := filepath.Rel(releaseRoot, dir)
			if rerr != nil {
				rel = ""
			}
			var subpath []string
			if rel != "." && rel != "" {
				subpath = strings.Split(rel, string(filepath.Separator))
			}
			key := unsplitableKey(size, filepath.Base(releaseRoot), subpath, e.Name())
			if err := idx.putSingle(tx, "unsplitable", key, full, info); err != nil {
				return err
			}
		} else if idx.modes.Normal {
			if !matchesIgnore(idx.ignoreGlobs, e.Name()) {
				key := normalKey(size, e.Name())
				if err := idx.putSingle(tx, "normal", key, full, info); err != nil {
					return err
				}
			}
		}

		if idx.modes.Exact {
			if err := appendList(tx, "exact_file", exactKey("f", e.Name()), full); err != nil {
				return err
			}
		}
		if idx.modes.HashName {
			if err := appendList(tx, "hash_name", hashNameKey(e.Name()), full); err != nil {
				return err
			}
		}
		if idx.modes.HashSize || idx.modes.HashSlow {
			if err := appendList(tx, "hash_size", hashSizeKey(size), full); err != nil {
				return err
			}
		}
	}
	return nil
}

func (idx *Index) containingUnsplitableRoot(dir string, roots map[string]bool) (string, bool) {
	clean := filepath.Clean(dir)
	for {
		if roots[clean] {
			return clean, true
		}
		parent := filepath.Dir(clean)
		if parent == clean {
			return "", false
		}
		clean = parent
	}
}

func (idx *Index) putSingle(tx *bolt.Tx, bucket string, key []byte, path string, info os.FileInfo) error {
	b := tx.Bucket([]byte(bucket))
	if existing := b.Get(key); existing != nil && string(existing) != path {
		if existingInfo, err := os.Stat(string(existing)); err == nil {
			if !os.SameFile(existingInfo, info) {
				idx.log.Warn().
					Str("bucket", bucket).
					Str("existing", string(existing)).
					Str("new", path).
					Msg("fsindex: duplicate key with different inode, overwriting")
			}
		}
	}
	return b.Put(key, []byte(path))
}

func appendList(tx *bolt.Tx, bucket string, key []byte, path string) error {
	b := tx.Bucket([]byte(bucket))
	existing := decodeList(b.Get(key))
	existing = append(existing, path)
	return b.Put(key, encodeList(existing))
}

func (idx *Index) getSingle(bucket string, key []byte) (string, bool) {
	var out string
	idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucket)).Get(key)
		if v != nil {
			out = string(v)
		}
		return nil
	})
	return out, out != ""
}

func (idx *Index) getList(bucket string, key []byte) []string {
	var out []string
	idx.db.View(func(tx *bolt.Tx) error {
		out = decodeList(tx.Bucket([]byte(bucket)).Get(key))
		return nil
	})
	return out
}

// FindNormal looks up a path by (size, name) via the Normal table.
func (idx *Index) FindNormal(name string, size int64) (string, bool) {
	return idx.getSingle("normal", normalKey(size, name))
}

// FindUnsplitable looks up a path by (size, release root name, subpath,
// name) via the Unsplitable table. releaseRootName is the bare directory
// name of the release root, not a full path: the torrent side of a match
// only ever knows the name, never a disk path.
func (idx *Index) FindUnsplitable(releaseRootName string, subpath []string, name string, size int64) (string, bool) {
	return idx.getSingle("unsplitable", unsplitableKey(size, releaseRootName, subpath, name))
}

// ExactKind selects the Exact-file or Exact-dir table.
type ExactKind string

const (
	ExactFile ExactKind = "f"
	ExactDir  ExactKind = "d"
)

// FindExact looks up every path matching a raw (un-normalized) name in the
// Exact-file or Exact-dir table.
func (idx *Index) FindExact(kind ExactKind, rawName string) []string {
	bucket := "exact_file"
	if kind == ExactDir {
		bucket = "exact_dir"
	}
	return idx.getList(bucket, exactKey(string(kind), rawName))
}

// FindHashByName looks up every path sharing a normalized name.
func (idx *Index) FindHashByName(name string) []string {
	return idx.getList("hash_name", hashNameKey(name))
}

// FindHashBySize looks up every path of an exact size.
func (idx *Index) FindHashBySize(size int64) []string {
	return idx.getList("hash_size", hashSizeKey(size))
}

// BuildSizeTable materializes the sorted set of all known file sizes. It
// must be called before FindHashByVaryingSize and should be paired with a
// ClearSizeTable once the matching pass that needed it is done.
func (idx *Index) BuildSizeTable() error {
	seen := map[int64]bool{}
	err := idx.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("hash_size")).ForEach(func(k, _ []byte) error {
			var size int64
			if _, err := fmt.Sscanf(string(k), "s:%d", &size); err == nil {
				seen[size] = true
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("fsindex: build size table: %w", err)
	}
	sizes := make([]int64, 0, len(seen))
	for s := range seen {
		sizes = append(sizes, s)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	idx.sizeTable = sizes
	return nil
}

// ClearSizeTable invalidates any previously built size table.
func (idx *Index) ClearSizeTable() { idx.sizeTable = nil }

// FindHashByVaryingSize returns paths whose size lies within ±10% of size,
// ordered by ascending distance from size. BuildSizeTable must have been
// called first.
func (idx *Index) FindHashByVaryingSize(size int64) []string {
	lo := int64(float64(size) * 0.9)
	hi := int64(float64(size) * 1.1)

	type candidate struct {
		size int64
		dist int64
	}
	var candidates []candidate
	for _, s := range idx.sizeTable {
		if s >= lo && s <= hi {
			dist := s - size
			if dist < 0 {
				dist = -dist
			}
			candidates = append(candidates, candidate{size: s, dist: dist})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	var out []string
	for _, c := range candidates {
		out = append(out, idx.FindHashBySize(c.size)...)
	}
	return out
}
