package download

import (
	"net/http"
	"regexp"
	"testing"
)

func TestResolveFilenameFromContentDisposition(t *testing.T) {
	cases := map[string]string{
		`attachment; filename="report.pdf"`:          "report.pdf",
		`attachment; filename=notes.pdf`:             "notes.pdf",
		`attachment; filename="a/b?.pdf"`:            "a_b_.pdf",
		`attachment; filename*=UTF-8''caf%C3%A9.pdf`: "café.pdf",
		`attachment; filename="  spaced.mp4  "`:      "spaced.mp4",
	}

	for disposition, want := range cases {
		header := http.Header{}
		header.Set("Content-Disposition", disposition)

		if got := ResolveFilename("https://x.test/ignored.bin", header); got != want {
			t.Fatalf("ResolveFilename(%q) = %q, want %q", disposition, got, want)
		}
	}
}

func TestResolveFilenameFromURLPath(t *testing.T) {
	got := ResolveFilename("https://x.test/files/notes.pdf?sig=abc", http.Header{})
	if got != "notes.pdf" {
		t.Fatalf("ResolveFilename = %q, want %q", got, "notes.pdf")
	}
}

func TestResolveFilenameTrailingSlashIsSynthesized(t *testing.T) {
	rawURL := "https://h.example/notes.pdf/"

	got := ResolveFilename(rawURL, http.Header{})
	if want := SyntheticFilename(rawURL, ""); got != want {
		t.Fatalf("ResolveFilename = %q, want %q", got, want)
	}
	if !regexp.MustCompile(`^document_\d+\.pdf$`).MatchString(got) {
		t.Fatalf("ResolveFilename = %q, want document_<digits>.pdf", got)
	}
}

func TestResolveFilenameSynthesized(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Type", "application/pdf")

	got := ResolveFilename("https://x.test/download?id=7", header)
	if !regexp.MustCompile(`^document_\d+\.pdf$`).MatchString(got) {
		t.Fatalf("ResolveFilename = %q, want document_<digits>.pdf", got)
	}

	header.Set("Content-Type", "video/mp4")
	if got := ResolveFilename("https://x.test/stream", header); !regexp.MustCompile(`^video_\d+\.mp4$`).MatchString(got) {
		t.Fatalf("ResolveFilename video = %q, want video_<digits>.mp4", got)
	}

	header.Set("Content-Type", "application/octet-stream")
	if got := ResolveFilename("https://x.test/blob", header); !regexp.MustCompile(`^file_\d+\.bin$`).MatchString(got) {
		t.Fatalf("ResolveFilename other = %q, want file_<digits>.bin", got)
	}
}

func TestResolveFilenameRejectsDotNames(t *testing.T) {
	header := http.Header{}
	header.Set("Content-Disposition", `attachment; filename=".."`)

	got := ResolveFilename("https://x.test/real.mp3", header)
	if got != "real.mp3" {
		t.Fatalf("ResolveFilename = %q, want fallback to %q", got, "real.mp3")
	}
}

func TestSyntheticFilenameIsStable(t *testing.T) {
	const url = "https://x.test/download?id=7"

	first := SyntheticFilename(url, "application/pdf")
	second := SyntheticFilename(url, "application/pdf")
	if first != second {
		t.Fatalf("SyntheticFilename not stable: %q vs %q", first, second)
	}

	// CRC-32 (IEEE) of the URL; pinned so names stay reproducible across releases.
	if got, want := URLHash("hello"), uint32(0x3610a686); got != want {
		t.Fatalf("URLHash = %#x, want %#x", got, want)
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize(` a<b>c:d"e/f\g|h?i*j `); got != "a_b_c_d_e_f_g_h_i_j" {
		t.Fatalf("Sanitize = %q", got)
	}
}

func TestUniqueNameSuffixesCollisions(t *testing.T) {
	used := map[string]struct{}{}

	names := []string{
		uniqueName("report.pdf", used),
		uniqueName("report.pdf", used),
		uniqueName("report.pdf", used),
		uniqueName("other", used),
		uniqueName("other", used),
	}
	want := []string{"report.pdf", "report (1).pdf", "report (2).pdf", "other", "other (1)"}

	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("uniqueName[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
