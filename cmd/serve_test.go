package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	channelpkg "fetchbot/pkg/channel"
	"fetchbot/pkg/config"
	"fetchbot/pkg/download"
)

type testAdapter struct{ name string }

func (a testAdapter) Name() string { return a.name }

func (a testAdapter) Run(_ context.Context, _ channelpkg.Handler) error { return nil }

func TestEnabledAdaptersRequiresAtLeastOneChannel(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	if _, err := enabledAdapters(cfg, http.DefaultClient, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("expected error when no channels are enabled")
	}
}

func TestEnabledAdaptersRejectsMissingToken(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Channels.Telegram.Enabled = true
	if _, err := enabledAdapters(cfg, http.DefaultClient, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("expected error for telegram without a token")
	}
}

func TestEnabledAdaptersBuildsTelegram(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = "123:abc"

	adapters, err := enabledAdapters(cfg, http.DefaultClient, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("enabledAdapters returned error: %v", err)
	}
	if got := enabledChannelNames(adapters); got != telegramChannelName {
		t.Fatalf("enabledChannelNames = %q, want %q", got, telegramChannelName)
	}
}

func TestEnabledChannelNames(t *testing.T) {
	t.Parallel()

	adapters := []channelpkg.Adapter{testAdapter{name: "telegram"}, testAdapter{name: "cli"}}
	if got := enabledChannelNames(adapters); got != "telegram,cli" {
		t.Fatalf("enabledChannelNames = %q, want %q", got, "telegram,cli")
	}
}

func TestNewHTTPClientHasNoGlobalTimeout(t *testing.T) {
	t.Parallel()

	client := newHTTPClient()
	if client.Timeout != 0 {
		t.Fatalf("client timeout = %s, want 0", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport = %T, want *http.Transport", client.Transport)
	}
	if transport.ResponseHeaderTimeout != 0 && transport.ResponseHeaderTimeout < download.DefaultTimeout {
		t.Fatalf("response header timeout = %s, shorter than the %s download timeout", transport.ResponseHeaderTimeout, download.DefaultTimeout)
	}
}

func TestNewHTTPClientWaitsForSlowHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer server.Close()

	runner, err := download.NewRunner(newHTTPClient(), download.Options{Timeout: 3 * time.Second}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewRunner returned error: %v", err)
	}

	batch := download.NewBatch("slow", t.TempDir(), []string{server.URL + "/report.pdf"})
	summary := runner.Run(context.Background(), batch, download.NopReporter{})
	if summary.Succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1 (failed: %v)", summary.Succeeded, summary.FailedURLs)
	}
}
