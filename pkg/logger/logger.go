package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"fetchbot/pkg/config"
)

const (
	defaultFormat = "text"
	defaultLevel  = "info"
)

// New builds the process logger writing to stderr.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LoggingConfig, writer io.Writer) (*slog.Logger, error) {
	formatter, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	handler := charmLog.NewWithOptions(writer, charmLog.Options{
		Level:           charmLevel(level),
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		ReportCaller:    cfg.AddSource,
		Formatter:       formatter,
	})

	return slog.New(handler), nil
}

func parseFormat(input string) (charmLog.Formatter, error) {
	format := strings.ToLower(strings.TrimSpace(input))
	if format == "" {
		format = defaultFormat
	}

	switch format {
	case "text":
		return charmLog.TextFormatter, nil
	case "json":
		return charmLog.JSONFormatter, nil
	case "logfmt":
		return charmLog.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("unsupported log format %q", format)
	}
}

func charmLevel(level slog.Level) charmLog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmLog.DebugLevel
	case level <= slog.LevelInfo:
		return charmLog.InfoLevel
	case level <= slog.LevelWarn:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}

func parseLevel(input string) (slog.Level, error) {
	levelText := strings.ToLower(strings.TrimSpace(input))
	if levelText == "" {
		levelText = defaultLevel
	}

	switch levelText {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", levelText)
	}
}
