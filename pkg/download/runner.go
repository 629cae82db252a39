package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"fetchbot/pkg/storage"
)

const (
	DefaultTimeout = 300 * time.Second
	DefaultDelay   = time.Second

	// DefaultUserAgent mimics a desktop browser; some hosts reject Go's default client string.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Doer is the HTTP surface the runner needs; *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options tunes one Runner.
type Options struct {
	UserAgent string
	// Timeout bounds each request including the body transfer. Zero means DefaultTimeout.
	Timeout time.Duration
	// Delay is the pause between items. Zero disables it.
	Delay time.Duration
}

// Runner downloads the URLs of a batch one at a time.
type Runner struct {
	client    Doer
	userAgent string
	timeout   time.Duration
	delay     time.Duration
	log       *slog.Logger
}

// NewRunner builds a runner around a shared client. The client is owned by the caller.
func NewRunner(client Doer, opts Options, log *slog.Logger) (*Runner, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}

	return &Runner{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		delay:     delay,
		log:       log.With("component", "download.runner"),
	}, nil
}

// Run processes batch.URLs in order and returns the aggregated summary.
//
// A failed item never stops the loop. When ctx ends, the remaining items are
// recorded as failed with ErrCanceled without being reported individually.
func (r *Runner) Run(ctx context.Context, batch Batch, reporter Reporter) Summary {
	if ctx == nil {
		ctx = context.Background()
	}
	if reporter == nil {
		reporter = NopReporter{}
	}

	total := len(batch.URLs)
	summary := Summary{BatchID: batch.ID, Total: total, Dir: batch.Dir}
	used := make(map[string]struct{}, total)
	log := r.log.With("batch_id", batch.ID, "chat_id", batch.ChatID)

	log.Info("Batch started", "total", total, "dir", batch.Dir)
	started := time.Now()

	for i, rawURL := range batch.URLs {
		index := i + 1
		if ctx.Err() != nil {
			summary.add(Result{Index: index, Total: total, URL: rawURL}.fail(ErrCanceled))
			continue
		}

		reporter.Downloading(ctx, index, total, rawURL)

		result := r.fetch(ctx, batch.Dir, rawURL, used)
		result.Index = index
		result.Total = total
		summary.add(result)

		if result.OK() {
			log.Info("Downloaded file", "index", index, "url", rawURL, "filename", result.Filename, "bytes", result.Bytes)
		} else {
			log.Error("Download failed", "index", index, "url", rawURL, "error", result.Reason)
		}

		reporter.Finished(ctx, result)

		if index < total && r.delay > 0 {
			_ = sleepContext(ctx, r.delay)
		}
	}

	log.Info("Batch finished", "succeeded", summary.Succeeded, "failed", summary.Failed, "elapsed", time.Since(started))
	return summary
}

func (r *Runner) fetch(ctx context.Context, dir string, rawURL string, used map[string]struct{}) Result {
	result := Result{URL: rawURL}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return result.fail(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return result.fail(ErrCanceled)
		}
		return result.fail(fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result.fail(fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	name := uniqueName(ResolveFilename(rawURL, resp.Header), used)
	target, err := storage.Contain(dir, name)
	if err != nil {
		return result.fail(err)
	}

	written, err := writeFile(target, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return result.fail(ErrCanceled)
		}
		return result.fail(err)
	}

	result.Status = StatusSucceeded
	result.Filename = name
	result.Path = target
	result.Bytes = written
	return result
}

// writeFile streams body to path and removes the partial file on failure.
func writeFile(path string, body io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	written, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if copyErr != nil {
			return written, fmt.Errorf("write file: %w", copyErr)
		}
		return written, fmt.Errorf("close file: %w", closeErr)
	}

	return written, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
