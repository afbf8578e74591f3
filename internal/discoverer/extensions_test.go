package discoverer

import (
	"sort"
	"testing"
)

func TestSupportedExtensionsAreSorted(t *testing.T) {
	if !sort.StringsAreSorted(supportedExtensions) {
		t.Fatal("extension whitelist must stay alphabetically sorted for binary search")
	}
}

func TestIsExtensionSupported(t *testing.T) {
	cases := []struct {
		ext  string
		want bool
	}{
		{"mp3", true},
		{"MP3", true},
		{"Flac", true},
		{"mkv", true},
		{"3gp", true},
		{"xspf", true},
		{"txt", false},
		{"exe", false},
		{"", false},
		{"mp", false},
	}
	for _, c := range cases {
		if got := IsExtensionSupported(c.ext); got != c.want {
			t.Errorf("IsExtensionSupported(%q) = %v, want %v", c.ext, got, c.want)
		}
	}
}

func TestIsPlaylistExtension(t *testing.T) {
	for _, ext := range []string{"m3u", "M3U8", "pls", "xspf"} {
		if !IsPlaylistExtension(ext) {
			t.Errorf("%q should be a playlist extension", ext)
		}
	}
	if IsPlaylistExtension("mp3") {
		t.Error("mp3 is not a playlist extension")
	}
}
