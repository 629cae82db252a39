package download

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// MaxFailedPreview bounds how many failed URLs a rendered summary lists.
const MaxFailedPreview = 5

// ErrCanceled marks items skipped because the batch context ended.
var ErrCanceled = errors.New("canceled")

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Batch is the set of unique links extracted from one inbound message.
type Batch struct {
	ID     string   `json:"id"`
	ChatID string   `json:"chat_id"`
	URLs   []string `json:"urls"`
	Dir    string   `json:"dir"`
}

// NewBatch builds a batch with a fresh ID, dropping blank and repeated URLs.
func NewBatch(chatID string, dir string, urls []string) Batch {
	seen := make(map[string]struct{}, len(urls))
	unique := make([]string, 0, len(urls))
	for _, url := range urls {
		trimmed := strings.TrimSpace(url)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		unique = append(unique, trimmed)
	}

	return Batch{
		ID:     uuid.NewString(),
		ChatID: chatID,
		URLs:   unique,
		Dir:    dir,
	}
}

// Result is the outcome of one URL in a batch.
type Result struct {
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	URL      string `json:"url"`
	Status   Status `json:"status"`
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Err      error  `json:"-"`
}

// OK reports whether the URL was downloaded.
func (r Result) OK() bool {
	return r.Status == StatusSucceeded
}

func (r Result) fail(err error) Result {
	r.Status = StatusFailed
	r.Err = err
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

// Summary aggregates the results of one batch.
type Summary struct {
	BatchID    string   `json:"batch_id"`
	Total      int      `json:"total"`
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	Dir        string   `json:"dir"`
	Files      []string `json:"files,omitempty"`
	FailedURLs []string `json:"failed_urls,omitempty"`
}

func (s *Summary) add(result Result) {
	if result.OK() {
		s.Succeeded++
		s.Files = append(s.Files, result.Filename)
		return
	}

	s.Failed++
	s.FailedURLs = append(s.FailedURLs, result.URL)
}

// FailedPreview returns at most limit failed URLs and how many were left out.
func (s Summary) FailedPreview(limit int) ([]string, int) {
	if limit <= 0 || len(s.FailedURLs) <= limit {
		return s.FailedURLs, 0
	}

	return s.FailedURLs[:limit], len(s.FailedURLs) - limit
}

// Reporter receives per-item progress from a Runner.
//
// Implementations own delivery failures; the runner never stops because a
// report could not be sent.
type Reporter interface {
	Downloading(ctx context.Context, index int, total int, url string)
	Finished(ctx context.Context, result Result)
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) Downloading(context.Context, int, int, string) {}

func (NopReporter) Finished(context.Context, Result) {}
