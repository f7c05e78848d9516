// Package unsplitable identifies release directories that must be matched
// as a whole rather than file-by-file: DVD/Blu-ray structures and
// multi-part archive sets where no single file is independently meaningful.
package unsplitable

import (
	"path"
	"regexp"
	"strings"
)

// protectedExtensionPairs are file-extension sets whose joint presence in a
// directory marks it unsplitable (e.g. a .rar set accompanied by its .sfv
// checksum listing).
var protectedExtensionPairs = [][2]string{
	{".rar", ".sfv"},
	{".mp3", ".sfv"},
	{".vob", ".ifo"},
}

// bdmvMagicFile is the case-insensitive marker file of a Blu-ray structure.
const bdmvMagicFile = "movieobject.bdmv"

// packagingName matches directory-name components that are mere packaging
// around an unsplitable release (disc/cd indices, samples, proofs, subtitle
// folders, BDMV internals) and so are skipped when walking up to the
// release root.
var packagingName = regexp.MustCompile(`(?i)^(cd[1-9]|samples?|proofs?|(vob)?sub(title)?s?|bdmv|disc\d*|video_ts)$`)

// IsUnsplitable reports whether a directory containing the given file names
// must be treated as a single unsplitable release.
func IsUnsplitable(names []string) bool {
	extensions := make(map[string]bool, len(names))
	for _, name := range names {
		ext := strings.ToLower(path.Ext(name))
		if ext != "" {
			extensions[ext] = true
		}
		if strings.EqualFold(name, bdmvMagicFile) {
			return true
		}
	}
	for _, pair := range protectedExtensionPairs {
		if extensions[pair[0]] && extensions[pair[1]] {
			return true
		}
	}
	return false
}

// ReleaseRoot returns the nearest ancestor of dir (a slash-separated path)
// whose final component is not a packaging name. Walking from dir upward,
// the first non-matching component is the root; the returned path
// terminates at that component.
func ReleaseRoot(dir string) string {
	clean := path.Clean(dir)
	for clean != "." && clean != "/" && clean != "" {
		base := path.Base(clean)
		if !packagingName.MatchString(base) {
			return clean
		}
		clean = path.Dir(clean)
	}
	return clean
}
