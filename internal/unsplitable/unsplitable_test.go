package unsplitable_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JohnDoee/autotorrent/internal/unsplitable"
)

func TestIsUnsplitable(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  bool
	}{
		{"rar+sfv", []string{"movie.rar", "movie.sfv"}, true},
		{"mp3+sfv", []string{"track01.mp3", "album.sfv"}, true},
		{"vob+ifo", []string{"VTS_01_1.VOB", "VTS_01_0.IFO"}, true},
		{"bdmv magic file", []string{"MovieObject.bdmv"}, true},
		{"plain files", []string{"readme.txt", "cover.jpg"}, false},
		{"only rar no sfv", []string{"movie.rar"}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, unsplitable.IsUnsplitable(test.files))
		})
	}
}

func TestReleaseRoot(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"/media/Some-CD-Release/CD1", "/media/Some-CD-Release"},
		{"/media/Some-CD-Release/Samples", "/media/Some-CD-Release"},
		{"/media/Movie/VIDEO_TS", "/media/Movie"},
		{"/media/Movie/BDMV", "/media/Movie"},
		{"/media/Movie", "/media/Movie"},
		{"/media/Release/disc2/subs", "/media/Release"},
	}

	for _, test := range tests {
		t.Run(test.dir, func(t *testing.T) {
			require.Equal(t, test.want, unsplitable.ReleaseRoot(test.dir))
		})
	}
}
