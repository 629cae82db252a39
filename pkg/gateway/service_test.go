package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"fetchbot/pkg/bus"
	"fetchbot/pkg/download"
)

func TestIsReady(t *testing.T) {
	t.Parallel()

	svc := &Service{channelStates: map[string]channelState{"telegram": {}}}
	if svc.isReady() {
		t.Fatal("expected not ready before any channel runs")
	}

	svc.channelStates["telegram"] = channelState{Running: true}
	if !svc.isReady() {
		t.Fatal("expected ready with running channel")
	}

	svc.channelStates["telegram"] = channelState{Error: "poll failed"}
	if svc.isReady() {
		t.Fatal("expected not ready after channel stopped")
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		want string
		ok   bool
	}{
		"/start":                   {"start", true},
		" /Status ":                {"status", true},
		"/download@fetch_bot now":  {"download", true},
		"/":                        {"", false},
		"https://x.test/a.pdf":     {"", false},
		"see /start for more help": {"", false},
	}

	for input, tc := range cases {
		got, ok := parseCommand(input)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseCommand(%q) = (%q, %v), want (%q, %v)", input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestIsTextDocument(t *testing.T) {
	t.Parallel()

	cases := []struct {
		doc  bus.Document
		want bool
	}{
		{bus.Document{FileName: "links.txt"}, true},
		{bus.Document{FileName: "LINKS.TXT", MimeType: "application/octet-stream"}, true},
		{bus.Document{FileName: "links", MimeType: "text/plain; charset=utf-8"}, true},
		{bus.Document{FileName: "book.pdf", MimeType: "application/pdf"}, false},
	}

	for _, tc := range cases {
		if got := isTextDocument(tc.doc); got != tc.want {
			t.Fatalf("isTextDocument(%+v) = %v, want %v", tc.doc, got, tc.want)
		}
	}
}

func TestSummaryMessageTruncatesFailures(t *testing.T) {
	t.Parallel()

	failed := []string{
		"https://x.test/1.pdf", "https://x.test/2.pdf", "https://x.test/3.pdf", "https://x.test/4.pdf",
		"https://x.test/5.pdf", "https://x.test/6.pdf", "https://x.test/7.pdf",
	}
	summary := download.Summary{Total: 9, Succeeded: 2, Failed: 7, FailedURLs: failed}

	msg := summaryMessage(summary, "downloads_42", false)

	for _, want := range []string{"Download complete!", "Succeeded: 2/9 files", "Failed: 7/9 files", "downloads_42", "https://x.test/5.pdf", "... and 2 more"} {
		if !strings.Contains(msg.Plain, want) {
			t.Fatalf("summary missing %q:\n%s", want, msg.Plain)
		}
	}
	if strings.Contains(msg.Plain, "https://x.test/6.pdf") {
		t.Fatalf("summary should stop after %d failed links:\n%s", download.MaxFailedPreview, msg.Plain)
	}
	if !strings.Contains(msg.Markdown, "`downloads_42`") {
		t.Fatalf("markdown should render the directory as code:\n%s", msg.Markdown)
	}
}

func TestSummaryMessageCanceled(t *testing.T) {
	t.Parallel()

	msg := summaryMessage(download.Summary{Total: 1, Succeeded: 1}, "downloads_1", true)
	if !strings.Contains(msg.Plain, "Download canceled") {
		t.Fatalf("summary = %q, want canceled heading", msg.Plain)
	}
	if strings.Contains(msg.Plain, "Failed links") {
		t.Fatalf("summary = %q, want no failed list", msg.Plain)
	}
}

func TestStatusAndCancelMessages(t *testing.T) {
	t.Parallel()

	if got := statusMessage(nil).Plain; !strings.Contains(got, "No active downloads") {
		t.Fatalf("status = %q", got)
	}

	got := statusMessage([]batchProgress{
		{Total: 4, Done: 2, Succeeded: 1, Failed: 1, Running: true},
		{Total: 3},
	}).Plain
	if !strings.Contains(got, "2/4 done") || !strings.Contains(got, "Queued: 3 links") {
		t.Fatalf("status = %q", got)
	}

	if got := cancelMessage(0).Plain; got != "Nothing to cancel." {
		t.Fatalf("cancel(0) = %q", got)
	}
	if got := cancelMessage(2).Plain; !strings.Contains(got, "2 downloads") {
		t.Fatalf("cancel(2) = %q", got)
	}
}

func TestBatchTrackerSerializesPerChat(t *testing.T) {
	t.Parallel()

	tracker := newBatchTracker()
	canceled := 0
	cancel := func() { canceled++ }

	first, releaseFirst := tracker.add("1", "a", 2, cancel)
	second, releaseSecond := tracker.add("1", "b", 3, cancel)
	other, releaseOther := tracker.add("2", "c", 1, cancel)

	if !tracker.acquire(context.Background(), first) {
		t.Fatal("expected first batch to acquire")
	}

	// Another chat is never blocked.
	if !tracker.acquire(context.Background(), other) {
		t.Fatal("expected batch in other chat to acquire")
	}
	releaseOther()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelWait()
	if tracker.acquire(waitCtx, second) {
		t.Fatal("expected second batch to wait behind the first")
	}

	tracker.record(first, true)
	snapshot := tracker.snapshot("1")
	if len(snapshot) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snapshot))
	}
	if !snapshot[0].Running || snapshot[0].Done != 1 || snapshot[0].Succeeded != 1 {
		t.Fatalf("first progress = %+v", snapshot[0])
	}
	if snapshot[1].Running {
		t.Fatalf("second progress = %+v, want queued", snapshot[1])
	}

	if n := tracker.cancel("1"); n != 2 || canceled != 2 {
		t.Fatalf("cancel = %d (funcs called %d), want 2", n, canceled)
	}

	releaseFirst()

	if !tracker.acquire(context.Background(), second) {
		t.Fatal("expected second batch to acquire after first finished")
	}
	releaseSecond()

	if tracker.active() != 0 {
		t.Fatalf("active = %d, want 0", tracker.active())
	}
	if tracker.snapshot("1") != nil {
		t.Fatal("expected chat entry to be dropped")
	}
}

func TestBatchTrackerReleaseOfQueuedBatch(t *testing.T) {
	t.Parallel()

	tracker := newBatchTracker()
	_, releaseFirst := tracker.add("1", "a", 1, func() {})
	_, releaseSecond := tracker.add("1", "b", 1, func() {})
	third, releaseThird := tracker.add("1", "c", 1, func() {})

	// Dropping a queued batch must not skip the line.
	releaseSecond()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelWait()
	if tracker.acquire(waitCtx, third) {
		t.Fatal("third batch should still wait for the first")
	}

	releaseFirst()
	if !tracker.acquire(context.Background(), third) {
		t.Fatal("expected third batch to run after the first")
	}
	releaseThird()
}

func TestBatchStatsApply(t *testing.T) {
	t.Parallel()

	stats := &batchStats{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	stats.apply(bus.Event{Type: bus.EventBatchStarted, At: at})
	stats.apply(bus.Event{Type: bus.EventItemFinished, At: at})
	stats.apply(bus.Event{Type: bus.EventItemFinished, At: at, Error: "HTTP 404"})
	stats.apply(bus.Event{Type: bus.EventBatchCompleted, At: at})
	stats.apply(bus.Event{Type: bus.EventIngestFailed, At: at})
	stats.apply(bus.Event{Type: "unknown", At: at.Add(time.Hour)})

	got := stats.snapshot()
	want := statsSnapshot{
		BatchesStarted:   1,
		BatchesCompleted: 1,
		FilesDownloaded:  1,
		FilesFailed:      1,
		IngestFailures:   1,
		LastEventAt:      "2026-01-02T03:04:05Z",
	}
	if got != want {
		t.Fatalf("snapshot = %+v, want %+v", got, want)
	}
}
