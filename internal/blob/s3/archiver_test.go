package s3blob

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobWriter struct {
	mu      sync.Mutex
	objects map[string]string
}

func newFakeBlobWriter() *fakeBlobWriter {
	return &fakeBlobWriter{objects: make(map[string]string)}
}

func (f *fakeBlobWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = string(body)
	return nil
}

func (f *fakeBlobWriter) snapshot() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.objects))
	for k, v := range f.objects {
		out[k] = v
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventArchiverFlush(t *testing.T) {
	writer := newFakeBlobWriter()
	arch := NewEventArchiver(writer, testLogger())

	arch.Append([]byte(`{"event_type":"book","asset_id":"a"}`))
	arch.Append([]byte(`{"event_type":"price_change","asset_id":"a"}`))
	arch.Flush(context.Background())

	objects := writer.snapshot()
	require.Len(t, objects, 1)
	for key, body := range objects {
		assert.True(t, strings.HasPrefix(key, "events/"))
		assert.True(t, strings.HasSuffix(key, ".jsonl"))

		lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], `"book"`)
		assert.Contains(t, lines[1], `"price_change"`)
	}
}

func TestEventArchiverFlushEmptyIsNoop(t *testing.T) {
	writer := newFakeBlobWriter()
	arch := NewEventArchiver(writer, testLogger())

	arch.Flush(context.Background())
	assert.Empty(t, writer.snapshot())
}

func TestEventArchiverAutoFlushOnThreshold(t *testing.T) {
	writer := newFakeBlobWriter()
	arch := NewEventArchiver(writer, testLogger(), WithFlushFrames(3))

	for i := 0; i < 3; i++ {
		arch.Append([]byte(`{"event_type":"book"}`))
	}

	require.Eventually(t, func() bool {
		return len(writer.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestArchiveKeyLayout(t *testing.T) {
	key := archiveKey(time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "events/2025-03-14/"))
	assert.True(t, strings.HasSuffix(key, ".jsonl"))
}
