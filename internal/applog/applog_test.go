package applog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	N    int    `json:"n"`
	Text string `json:"text"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestLog_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.jsonl")
	l := New[entry](path, testLogger())

	const n = 200
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append(context.Background(), entry{N: i, Text: strings.Repeat("x", 500)}))
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, n)

	seen := make(map[int]bool)
	for _, line := range lines {
		var e entry
		require.NoError(t, json.Unmarshal([]byte(line), &e), "line must be well formed: %q", line)
		seen[e.N] = true
	}
	assert.Len(t, seen, n)
}

func TestLog_Scan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	l := New[entry](path, testLogger())
	ctx := context.Background()

	t.Run("missing file is empty", func(t *testing.T) {
		malformed, err := l.Scan(ctx, func(entry) error {
			t.Fatal("no records expected")
			return nil
		})
		require.NoError(t, err)
		assert.Zero(t, malformed)
	})

	require.NoError(t, l.Append(ctx, entry{N: 1}))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, l.Append(ctx, entry{N: 2}))

	t.Run("malformed lines are counted and skipped", func(t *testing.T) {
		var got []int
		malformed, err := l.Scan(ctx, func(e entry) error {
			got = append(got, e.N)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, malformed)
		assert.Equal(t, []int{1, 2}, got)
	})

	t.Run("callback error stops the scan", func(t *testing.T) {
		stop := fmt.Errorf("stop")
		_, err := l.Scan(ctx, func(entry) error { return stop })
		require.ErrorIs(t, err, stop)
	})
}

func TestLog_AppendCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	l := New[entry](path, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Append(ctx, entry{N: 1}), context.Canceled)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "a cancelled append must not touch the file")
}
