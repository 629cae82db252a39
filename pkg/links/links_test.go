package links

import (
	"slices"
	"testing"
)

func TestExtractEndToEndScenario(t *testing.T) {
	text := "check this https://x.com/doc.pdf and https://cdn.example/video.mp4 also https://nomatch.com/page"

	got := Extract(text)
	want := []string{"https://x.com/doc.pdf", "https://cdn.example/video.mp4"}
	if !slices.Equal(got, want) {
		t.Fatalf("Extract = %v, want %v", got, want)
	}
}

func TestExtractDeduplicates(t *testing.T) {
	text := "https://a.test/one.pdf https://a.test/one.pdf\nhttps://a.test/two.mp3 https://a.test/one.pdf"

	got := Extract(text)
	want := []string{"https://a.test/one.pdf", "https://a.test/two.mp3"}
	if !slices.Equal(got, want) {
		t.Fatalf("Extract = %v, want %v", got, want)
	}
}

func TestExtractExtensionCaseInsensitive(t *testing.T) {
	got := Extract("http://files.test/FILE.PDF and http://files.test/file.pdf")
	if len(got) != 2 {
		t.Fatalf("Extract len = %d, want 2 (%v)", len(got), got)
	}
}

func TestExtractTrustedDomainWithoutExtension(t *testing.T) {
	got := Extract("stream https://d111.cloudfront.net/abc?token=1 here")
	if !slices.Equal(got, []string{"https://d111.cloudfront.net/abc?token=1"}) {
		t.Fatalf("Extract = %v, want the cloudfront URL", got)
	}
}

func TestExtractStopsAtDelimiters(t *testing.T) {
	got := Extract(`<a href="https://x.test/a.pdf">link</a> <https://x.test/b.mp4>`)
	want := []string{"https://x.test/a.pdf", "https://x.test/b.mp4"}
	if !slices.Equal(got, want) {
		t.Fatalf("Extract = %v, want %v", got, want)
	}
}

func TestExtractEmptyAndNonMatching(t *testing.T) {
	for _, text := range []string{"", "   ", "no links here", "https://example.com/page.html ftp://x.test/a.pdf"} {
		if got := Extract(text); len(got) != 0 {
			t.Fatalf("Extract(%q) = %v, want empty", text, got)
		}
	}
}

func TestExtractIsPure(t *testing.T) {
	text := "https://a.test/x.mkv https://b.test/y.webm https://a.test/x.mkv"

	first := Extract(text)
	second := Extract(text)
	if !slices.Equal(first, second) {
		t.Fatalf("Extract not stable: %v vs %v", first, second)
	}
}

func TestCustomAllowLists(t *testing.T) {
	extractor := NewExtractor([]string{"ZIP", " "}, []string{"files.example.org"})

	if got := extractor.Classify("https://x.test/archive.zip"); got != MatchExtension {
		t.Fatalf("Classify zip = %q, want %q", got, MatchExtension)
	}
	if got := extractor.Classify("https://files.example.org/download?id=4"); got != MatchDomain {
		t.Fatalf("Classify domain = %q, want %q", got, MatchDomain)
	}
	if got := extractor.Classify("https://x.test/doc.pdf"); got != MatchNone {
		t.Fatalf("Classify pdf = %q, want none with custom list", got)
	}
}
