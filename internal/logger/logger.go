// Package logger builds the slog logger shared by every component.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultLogFile is used when Output is "file" and no FilePath is given.
const DefaultLogFile = "precedent.log"

// Config holds the logger configuration.
type Config struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// OpenOutput resolves cfg.Output to a writer. The returned close function is
// never nil; it only closes files this function opened.
func OpenOutput(cfg Config) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Output {
	case "", "stdout":
		return os.Stdout, noop, nil
	case "stderr":
		return os.Stderr, noop, nil
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = DefaultLogFile
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		return f, f.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported log output: %q", cfg.Output)
	}
}

// NewLogger initializes a new slog logger writing to output. Unknown levels
// fall back to info.
func NewLogger(cfg Config, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stdout
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
