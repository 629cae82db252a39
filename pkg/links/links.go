package links

import (
	"regexp"
	"strings"
)

// urlPattern matches http(s) tokens up to whitespace, angle brackets, or a double quote.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// DefaultExtensions lists the file extensions that qualify a URL for download.
var DefaultExtensions = []string{".pdf", ".mp4", ".mp3", ".mov", ".avi", ".mkv", ".webm"}

// DefaultTrustedDomains lists host substrings that qualify a URL regardless of extension.
var DefaultTrustedDomains = []string{"utkarshapp.com", "cloudfront.net"}

// Match describes why a URL was accepted.
type Match string

const (
	MatchNone      Match = ""
	MatchExtension Match = "extension"
	MatchDomain    Match = "domain"
)

// Extractor filters free text down to download-worthy URLs.
//
// The zero value uses DefaultExtensions and DefaultTrustedDomains.
type Extractor struct {
	extensions []string
	domains    []string
}

// NewExtractor builds an extractor from allow-lists. Empty lists fall back to defaults.
func NewExtractor(extensions, trustedDomains []string) Extractor {
	return Extractor{
		extensions: normalizeExtensions(extensions),
		domains:    compact(trustedDomains),
	}
}

// Extract scans text with the default allow-lists.
func Extract(text string) []string {
	return Extractor{}.Extract(text)
}

// Extract returns accepted URLs in first-appearance order without duplicates.
func (e Extractor) Extract(text string) []string {
	candidates := urlPattern.FindAllString(text, -1)
	if len(candidates) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(candidates))
	accepted := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if e.Classify(candidate) == MatchNone {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		accepted = append(accepted, candidate)
	}

	if len(accepted) == 0 {
		return nil
	}

	return accepted
}

// Classify reports whether url matches the extension or the trusted-domain allow-list.
//
// The extension test is case-insensitive; the domain test is a plain substring check.
func (e Extractor) Classify(url string) Match {
	lowered := strings.ToLower(url)
	for _, ext := range e.extensionList() {
		if strings.Contains(lowered, ext) {
			return MatchExtension
		}
	}

	for _, domain := range e.domainList() {
		if strings.Contains(url, domain) {
			return MatchDomain
		}
	}

	return MatchNone
}

// Extensions returns a copy of the effective extension allow-list.
func (e Extractor) Extensions() []string {
	return append([]string(nil), e.extensionList()...)
}

func (e Extractor) extensionList() []string {
	if len(e.extensions) == 0 {
		return DefaultExtensions
	}

	return e.extensions
}

func (e Extractor) domainList() []string {
	if len(e.domains) == 0 {
		return DefaultTrustedDomains
	}

	return e.domains
}

func normalizeExtensions(values []string) []string {
	clean := compact(values)
	for i, value := range clean {
		value = strings.ToLower(value)
		if !strings.HasPrefix(value, ".") {
			value = "." + value
		}
		clean[i] = value
	}

	return clean
}

func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	if len(clean) == 0 {
		return nil
	}

	return clean
}
