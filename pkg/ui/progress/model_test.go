package progress

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"fetchbot/pkg/download"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModelTracksProgressAndQuitsOnSummary(t *testing.T) {
	t.Parallel()

	m := newModel("2 links", nil)

	m.Update(startedMsg{index: 1, total: 2, url: "https://x.test/a.pdf"})
	if view := m.View(); !strings.Contains(view, "https://x.test/a.pdf") || !strings.Contains(view, "(1/2)") {
		t.Fatalf("expected current download in view, got %q", view)
	}

	m.Update(finishedMsg{result: download.Result{Index: 1, Total: 2, URL: "https://x.test/a.pdf", Status: download.StatusSucceeded, Filename: "a.pdf", Bytes: 2048}})
	m.Update(finishedMsg{result: download.Result{Index: 2, Total: 2, URL: "https://x.test/b.pdf", Status: download.StatusFailed, Reason: "HTTP 404"}})
	if len(m.lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(m.lines))
	}

	_, cmd := m.Update(doneMsg{summary: download.Summary{Total: 2, Succeeded: 1, Failed: 1, Dir: "downloads_cli", FailedURLs: []string{"https://x.test/b.pdf"}}})
	if cmd == nil {
		t.Fatal("expected quit command after summary")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg after summary")
	}

	view := m.View()
	for _, want := range []string{"a.pdf", "2.0 KiB", "HTTP 404", "Succeeded: 1/2", "downloads_cli"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModelCtrlCCancelsWork(t *testing.T) {
	t.Parallel()

	canceled := false
	m := newModel("1 link", func() { canceled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Fatal("ctrl+c should wait for the summary instead of quitting")
	}
	if !canceled || !m.canceling {
		t.Fatal("expected ctrl+c to cancel the batch")
	}
	if !strings.Contains(m.View(), "canceling") {
		t.Fatalf("expected canceling status, got %q", m.View())
	}
}

func TestLineReporter(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	reporter := NewLineReporter(&out)

	reporter.Downloading(context.Background(), 1, 1, "https://x.test/a.pdf")
	reporter.Finished(context.Background(), download.Result{Index: 1, Total: 1, URL: "https://x.test/a.pdf", Status: download.StatusSucceeded, Filename: "a.pdf", Bytes: 10})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "https://x.test/a.pdf") || !strings.Contains(lines[1], "a.pdf") || !strings.Contains(lines[1], "10 B") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRenderSummaryTruncatesFailures(t *testing.T) {
	t.Parallel()

	failed := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	rendered := RenderSummary(download.Summary{Total: 6, Failed: 6, Dir: "/tmp/downloads_cli", FailedURLs: failed})

	if !strings.Contains(rendered, "u5") || strings.Contains(rendered, "u6") {
		t.Fatalf("expected first five failures only:\n%s", rendered)
	}
	if !strings.Contains(rendered, "... and 1 more") {
		t.Fatalf("expected overflow marker:\n%s", rendered)
	}
}

func TestHumanBytes(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1536:    "1.5 KiB",
		5 << 20: "5.0 MiB",
		3 << 30: "3.0 GiB",
	}
	for input, want := range cases {
		if got := humanBytes(input); got != want {
			t.Fatalf("humanBytes(%d) = %q, want %q", input, got, want)
		}
	}
}
