// Package applog implements the newline-delimited JSON logs used for
// feedback and review metrics. Logs are only ever appended to; rotation and
// archiving happen outside the process.
package applog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// maxLineBytes bounds a single record when scanning.
const maxLineBytes = 1 << 20

// Log is an append-only NDJSON file of T values.
type Log[T any] struct {
	path   string
	mu     sync.RWMutex
	logger *slog.Logger
}

// New returns a log stored at path. The file and its directory are created
// on first append.
func New[T any](path string, logger *slog.Logger) *Log[T] {
	return &Log[T]{path: path, logger: logger}
}

// Path returns the file the log writes to.
func (l *Log[T]) Path() string {
	return l.path
}

// Append writes v as one line. The line is encoded before the lock is taken
// and written with a single call, then synced. Nothing is written if ctx is
// already done.
func (l *Log[T]) Append(ctx context.Context, v T) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode log record: %w", err)
	}
	line = append(line, '\n')

	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Reopened per append so an externally rotated file is picked up.
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", l.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			l.logger.Warn("failed to close log file", "path", l.path, "error", cerr)
		}
	}()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append to log %s: %w", l.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to flush log %s: %w", l.path, err)
	}
	return nil
}

// Scan decodes every line in file order and passes it to fn. Lines that do
// not decode are skipped and counted. A missing file is an empty log.
func (l *Log[T]) Scan(ctx context.Context, fn func(T) error) (malformed int, err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open log %s: %w", l.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return malformed, err
			}
		}

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			malformed++
			l.logger.Debug("skipping malformed log line", "path", l.path, "line", lineNo, "error", err)
			continue
		}
		if err := fn(v); err != nil {
			return malformed, err
		}
	}
	if err := scanner.Err(); err != nil {
		return malformed, fmt.Errorf("failed to read log %s: %w", l.path, err)
	}
	return malformed, nil
}
