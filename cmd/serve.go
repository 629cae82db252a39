package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fetchbot/pkg/channel"
	"fetchbot/pkg/channel/telegram"
	"fetchbot/pkg/config"
	"fetchbot/pkg/gateway"
	"fetchbot/pkg/logger"

	"github.com/spf13/cobra"
)

const telegramChannelName = "telegram"

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"gateway"},
	Short:   "Run the Telegram bot",
	Long:    "Runs fetchbot as a Telegram bot with health and readiness endpoints. Uses a webhook when WEBHOOK_URL is set, long polling otherwise.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		if err := cfg.Validate(); err != nil {
			log.Error("Configuration invalid", "error", err)
			return err
		}

		client := newHTTPClient()

		adapters, err := enabledAdapters(cfg, client, log)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return err
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, client, adapters, log)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return err
		}

		log.Info("Bot started",
			"channels", enabledChannelNames(adapters),
			"webhook", cfg.Channels.Telegram.UsesWebhook(),
			"port", cfg.Gateway.Port,
			"download_root", cfg.Download.Root,
		)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error("Gateway runtime failed", "error", err)
			return err
		}

		log.Info("Bot stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func enabledAdapters(cfg *config.Config, client *http.Client, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, client, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}

// newHTTPClient builds the process-wide client shared by every download.
// Per-request deadlines come only from the runner's context; neither the
// client nor the transport sets one of its own.
func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.MaxIdleConnsPerHost = 4

	return &http.Client{Transport: transport}
}
