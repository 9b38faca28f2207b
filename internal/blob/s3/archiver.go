package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketlab/bookkeeper/internal/domain"
)

const (
	// defaultFlushFrames flushes a batch once this many frames accumulate.
	defaultFlushFrames = 500

	// defaultFlushInterval flushes a partial batch after this long.
	defaultFlushInterval = 30 * time.Second

	// flushTimeout bounds each upload.
	flushTimeout = 15 * time.Second
)

// EventArchiver buffers raw feed frames and uploads them as JSONL batches
// under events/{date}/{uuid}.jsonl. The raw archive makes the feed
// replayable for offline analysis; it never sits on the hot path, and upload
// failures are logged and dropped rather than propagated to the feed.
type EventArchiver struct {
	writer        domain.BlobWriter
	logger        *slog.Logger
	flushFrames   int
	flushInterval time.Duration

	mu  sync.Mutex
	buf bytes.Buffer
	n   int
}

// ArchiverOption customises an EventArchiver.
type ArchiverOption func(*EventArchiver)

// WithFlushFrames overrides the frame-count flush threshold.
func WithFlushFrames(n int) ArchiverOption {
	return func(a *EventArchiver) {
		if n > 0 {
			a.flushFrames = n
		}
	}
}

// WithFlushInterval overrides the time-based flush threshold.
func WithFlushInterval(d time.Duration) ArchiverOption {
	return func(a *EventArchiver) {
		if d > 0 {
			a.flushInterval = d
		}
	}
}

// NewEventArchiver creates an archiver writing through the given BlobWriter.
func NewEventArchiver(writer domain.BlobWriter, logger *slog.Logger, opts ...ArchiverOption) *EventArchiver {
	a := &EventArchiver{
		writer:        writer,
		logger:        logger.With(slog.String("component", "event_archiver")),
		flushFrames:   defaultFlushFrames,
		flushInterval: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Append buffers one raw frame. Frames are stored one per line; a frame that
// fills the batch triggers an asynchronous flush.
func (a *EventArchiver) Append(raw []byte) {
	a.mu.Lock()
	a.buf.Write(raw)
	a.buf.WriteByte('\n')
	a.n++
	full := a.n >= a.flushFrames
	a.mu.Unlock()

	if full {
		go a.Flush(context.Background())
	}
}

// Run flushes partial batches on a ticker until ctx is cancelled, then
// performs a final flush.
func (a *EventArchiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			a.Flush(ctx)
		}
	}
}

// Flush uploads the buffered frames, if any, as one JSONL object.
func (a *EventArchiver) Flush(ctx context.Context) {
	a.mu.Lock()
	if a.n == 0 {
		a.mu.Unlock()
		return
	}
	payload := make([]byte, a.buf.Len())
	copy(payload, a.buf.Bytes())
	count := a.n
	a.buf.Reset()
	a.n = 0
	a.mu.Unlock()

	key := archiveKey(time.Now().UTC())

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	if err := a.writer.Put(ctx, key, bytes.NewReader(payload), "application/x-ndjson"); err != nil {
		a.logger.Error("archive flush failed",
			slog.String("key", key),
			slog.Int("frames", count),
			slog.String("error", err.Error()))
		return
	}
	a.logger.Debug("archive batch uploaded",
		slog.String("key", key),
		slog.Int("frames", count))
}

func archiveKey(now time.Time) string {
	return fmt.Sprintf("events/%s/%s.jsonl", now.Format("2006-01-02"), uuid.NewString())
}
