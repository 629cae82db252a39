package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fetchbot/pkg/config"
	"fetchbot/pkg/download"
	"fetchbot/pkg/links"
	"fetchbot/pkg/logger"
	"fetchbot/pkg/storage"
	"fetchbot/pkg/ui/progress"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const cliChatID = "cli"

var fetchOpts struct {
	root    string
	chat    string
	delay   time.Duration
	timeout time.Duration
	plain   bool
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [file]",
	Short: "Download the links found in a file or stdin",
	Long: "Extracts PDF and media links from a text file (or stdin when no file or \"-\" is given)\n" +
		"and downloads them one at a time into downloads_<chat> under the download root.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		text, err := readLinkInput(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		urls := links.NewExtractor(cfg.Download.Extensions, cfg.Download.TrustedDomains).Extract(text)
		if len(urls) == 0 {
			fmt.Fprintln(out, "No valid links found.")
			return nil
		}

		interactive := !fetchOpts.plain && isTerminal(out)
		log, err := fetchLogger(cfg.Logging, interactive)
		if err != nil {
			return err
		}

		root := cfg.Download.Root
		if cmd.Flags().Changed("root") {
			root = fetchOpts.root
		}
		store, err := storage.NewStore(root)
		if err != nil {
			return fmt.Errorf("resolve download root: %w", err)
		}
		dir, err := store.ChatDir(fetchOpts.chat)
		if err != nil {
			return fmt.Errorf("prepare download directory: %w", err)
		}

		opts := download.Options{
			UserAgent: cfg.Download.UserAgent,
			Timeout:   cfg.Download.Timeout(),
			Delay:     cfg.Download.Delay(),
		}
		if cmd.Flags().Changed("delay") {
			opts.Delay = fetchOpts.delay
		}
		if cmd.Flags().Changed("timeout") {
			opts.Timeout = fetchOpts.timeout
		}

		runner, err := download.NewRunner(newHTTPClient(), opts, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		batch := download.NewBatch(fetchOpts.chat, dir, urls)

		var summary download.Summary
		if interactive {
			title := fmt.Sprintf("%d links → %s", len(batch.URLs), dir)
			summary, err = progress.Run(ctx, out, title, func(ctx context.Context, reporter download.Reporter) download.Summary {
				return runner.Run(ctx, batch, reporter)
			})
			if err != nil {
				return fmt.Errorf("progress view: %w", err)
			}
		} else {
			summary = runner.Run(ctx, batch, progress.NewLineReporter(out))
			fmt.Fprintln(out, progress.RenderSummary(summary))
		}

		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d downloads failed", summary.Failed, summary.Total)
		}

		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOpts.root, "root", "", "download root (default: download.root from config, else the working directory)")
	fetchCmd.Flags().StringVar(&fetchOpts.chat, "chat", cliChatID, "name used for the downloads_<chat> folder")
	fetchCmd.Flags().DurationVar(&fetchOpts.delay, "delay", time.Second, "pause between downloads")
	fetchCmd.Flags().DurationVar(&fetchOpts.timeout, "timeout", download.DefaultTimeout, "per-download timeout")
	fetchCmd.Flags().BoolVar(&fetchOpts.plain, "plain", false, "print one line per event instead of the live view")
	rootCmd.AddCommand(fetchCmd)
}

// fetchLogger keeps runner logs off the terminal while the live view owns it.
func fetchLogger(cfg config.LoggingConfig, interactive bool) (*slog.Logger, error) {
	if interactive {
		return slog.New(slog.DiscardHandler), nil
	}

	log, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return log, nil
}

// readLinkInput reads the named file, or stdin for no argument or "-".
// Invalid UTF-8 is dropped rather than rejected.
func readLinkInput(args []string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)

	if len(args) == 0 || strings.TrimSpace(args[0]) == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read links: %w", err)
	}

	return strings.ToValidUTF8(string(data), ""), nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd()))
}
