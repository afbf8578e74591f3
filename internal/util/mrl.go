package util

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ToMrl converts a local filesystem path to a file:// MRL. Paths that
// already carry a scheme are passed through untouched.
func ToMrl(p string) string {
	if strings.Contains(p, "://") {
		return p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}

// MrlToPath converts a file:// MRL back to a local path. Non-file MRLs
// are returned as-is, minus the scheme.
func MrlToPath(mrl string) string {
	u, err := url.Parse(mrl)
	if err != nil {
		return mrl
	}
	if u.Scheme == "" {
		return mrl
	}
	if u.Host != "" {
		return "//" + u.Host + u.Path
	}
	return u.Path
}

// MrlScheme returns the scheme of an MRL, or "" when it has none.
func MrlScheme(mrl string) string {
	idx := strings.Index(mrl, "://")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(mrl[:idx])
}

// MrlDirectory returns the MRL of the directory containing the given MRL,
// with a trailing slash.
func MrlDirectory(mrl string) string {
	trimmed := strings.TrimRight(mrl, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return mrl
	}
	return trimmed[:idx+1]
}

// MrlExtension returns the lowercased extension of an MRL, without the dot.
func MrlExtension(mrl string) string {
	ext := path.Ext(mrl)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// MrlFilename returns the last path component of an MRL, percent-decoded.
func MrlFilename(mrl string) string {
	base := path.Base(strings.TrimRight(mrl, "/"))
	if decoded, err := url.PathUnescape(base); err == nil {
		return decoded
	}
	return base
}

// ReencodeMrl normalizes the percent-encoding of an MRL. Characters that
// have a reserved meaning in URLs but commonly appear raw in stored paths
// ('#' in particular) are escaped. Used by schema migrations that repair
// MRLs written by older releases.
func ReencodeMrl(mrl string) string {
	scheme := MrlScheme(mrl)
	if scheme == "" {
		return mrl
	}
	rest := mrl[len(scheme)+3:]
	// Decode first so already-encoded MRLs do not get double-escaped.
	if decoded, err := url.PathUnescape(rest); err == nil {
		rest = decoded
	}
	segments := strings.Split(rest, "/")
	for i, seg := range segments {
		seg = strings.ReplaceAll(seg, "#", "%23")
		segments[i] = escapeSegment(seg)
	}
	return scheme + "://" + strings.Join(segments, "/")
}

func escapeSegment(seg string) string {
	// PathEscape would also escape the already-encoded '#'; keep it.
	escaped := url.PathEscape(seg)
	return strings.ReplaceAll(escaped, "%2523", "%23")
}

// NormalizeTitle returns the NFC form of a title, for stable full-text
// indexing and pattern matching across composed/decomposed unicode input.
func NormalizeTitle(title string) string {
	return norm.NFC.String(title)
}
