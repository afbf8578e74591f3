package discoverer

import (
	"sort"
	"strings"
)

// supportedExtensions is the whitelist of file extensions the crawler
// picks up. MUST be ordered alphabetically: lookup is a binary search.
var supportedExtensions = []string{
	"3gp", "a52", "aac", "ac3", "acelive", "aif", "aifc", "aiff", "alac", "amr",
	"amv", "aob", "ape", "asf", "asx", "avi", "b4s", "conf",
	"divx", "dts", "dv", "flac", "flv", "gxf", "ifo", "iso",
	"it", "itml", "m1v", "m2t", "m2ts", "m2v", "m3u", "m3u8",
	"m4a", "m4b", "m4p", "m4v", "mid", "mka", "mkv", "mlp",
	"mod", "mov", "mp1", "mp2", "mp3", "mp4", "mpc", "mpeg",
	"mpeg1", "mpeg2", "mpeg4", "mpg", "mts", "mxf", "nsv",
	"nuv", "oga", "ogg", "ogm", "ogv", "ogx", "oma", "opus",
	"pls", "ps", "qtl", "ram", "rec", "rm", "rmi", "rmvb",
	"s3m", "sdp", "spx", "tod", "torrent", "trp", "ts", "tta", "vlc",
	"vob", "voc", "vqf", "vro", "w64", "wav", "wax", "webm",
	"wma", "wmv", "wmx", "wpl", "wv", "wvx", "xa", "xm", "xspf",
}

// playlistExtensions are the subset treated as playlist files.
var playlistExtensions = map[string]bool{
	"asx": true, "b4s": true, "m3u": true, "m3u8": true,
	"pls": true, "wpl": true, "xspf": true,
}

// IsExtensionSupported does a case-insensitive binary search over the
// whitelist.
func IsExtensionSupported(ext string) bool {
	ext = strings.ToLower(ext)
	i := sort.SearchStrings(supportedExtensions, ext)
	return i < len(supportedExtensions) && supportedExtensions[i] == ext
}

// IsPlaylistExtension reports whether the extension denotes a playlist
// container.
func IsPlaylistExtension(ext string) bool {
	return playlistExtensions[strings.ToLower(ext)]
}

// SupportedExtensions returns the whitelist, alphabetically sorted.
func SupportedExtensions() []string {
	out := make([]string, len(supportedExtensions))
	copy(out, supportedExtensions)
	return out
}
