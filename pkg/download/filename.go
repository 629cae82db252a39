package download

import (
	"fmt"
	"hash/crc32"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var dispositionFilename = regexp.MustCompile(`(?i)filename\*?=\s*(?:[\w-]+'[\w-]*')?"?([^";]+)"?`)

var videoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}

// ResolveFilename derives a safe local file name for rawURL.
//
// Precedence: Content-Disposition filename, then the last URL path segment
// when it has an extension, then a synthesized name keyed by a CRC-32 of the URL.
func ResolveFilename(rawURL string, header http.Header) string {
	if name := usable(Sanitize(filenameFromDisposition(header.Get("Content-Disposition")))); name != "" {
		return name
	}

	if name := usable(Sanitize(filenameFromURL(rawURL))); name != "" {
		return name
	}

	return SyntheticFilename(rawURL, header.Get("Content-Type"))
}

// SyntheticFilename builds document_/video_/file_<hash> names from a coarse type sniff.
func SyntheticFilename(rawURL string, contentType string) string {
	sum := URLHash(rawURL)
	contentType = strings.ToLower(contentType)
	lowered := strings.ToLower(rawURL)

	switch {
	case strings.Contains(contentType, "pdf") || strings.Contains(lowered, ".pdf"):
		return fmt.Sprintf("document_%d.pdf", sum)
	case strings.Contains(contentType, "video") || containsAny(lowered, videoExtensions):
		return fmt.Sprintf("video_%d.mp4", sum)
	default:
		return fmt.Sprintf("file_%d.bin", sum)
	}
}

// URLHash is a stable digest of rawURL, identical across runs and processes.
func URLHash(rawURL string) uint32 {
	return crc32.ChecksumIEEE([]byte(rawURL))
}

// Sanitize replaces characters invalid in file names with '_' and trims whitespace.
func Sanitize(name string) string {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)

	return strings.TrimSpace(replaced)
}

func filenameFromDisposition(value string) string {
	if !strings.Contains(strings.ToLower(value), "filename") {
		return ""
	}

	if _, params, err := mime.ParseMediaType(value); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return name
		}
	}

	match := dispositionFilename.FindStringSubmatch(value)
	if len(match) < 2 {
		return ""
	}

	name := match[1]
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	return strings.TrimSpace(name)
}

func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	// A trailing slash leaves an empty last segment, which falls through to a synthesized name.
	segment := parsed.Path[strings.LastIndex(parsed.Path, "/")+1:]
	if !strings.Contains(segment, ".") {
		return ""
	}

	return segment
}

// usable rejects names that would not name a regular file inside a directory.
func usable(name string) string {
	if name == "" || name == "." || name == ".." || strings.Trim(name, ".") == "" {
		return ""
	}

	return name
}

// uniqueName suffixes name with " (n)" until it is not in used, then records it.
func uniqueName(name string, used map[string]struct{}) string {
	candidate := name
	if _, taken := used[candidate]; taken {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		for n := 1; ; n++ {
			candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
			if _, taken := used[candidate]; !taken {
				break
			}
		}
	}

	used[candidate] = struct{}{}
	return candidate
}

func containsAny(value string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(value, needle) {
			return true
		}
	}

	return false
}
