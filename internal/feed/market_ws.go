// Package feed owns the long-running consumption loop: it keeps a market
// WebSocket connection alive and pushes every decoded event into the book
// router.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marketlab/bookkeeper/internal/domain"
	"github.com/marketlab/bookkeeper/internal/platform/polymarket"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 60 * time.Second
)

// Dispatcher accepts decoded events for ordered application. Satisfied by
// book.Router.
type Dispatcher interface {
	Dispatch(ev domain.Event) error
}

// MarketFeed connects to the CLOB market channel, subscribes to the
// configured asset IDs, and dispatches every decoded event. It reconnects
// with capped exponential backoff; a fresh connection always begins with a
// new book snapshot from the venue, so no replay is needed.
type MarketFeed struct {
	wsURL    string
	assetIDs []string
	router   Dispatcher
	onRaw    polymarket.RawHandler
	logger   *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewMarketFeed creates a feed for the given endpoint and asset IDs.
func NewMarketFeed(wsURL string, assetIDs []string, router Dispatcher, logger *slog.Logger) *MarketFeed {
	return &MarketFeed{
		wsURL:    wsURL,
		assetIDs: assetIDs,
		router:   router,
		logger:   logger.With(slog.String("component", "market_feed")),
		done:     make(chan struct{}),
	}
}

// OnRaw registers an optional raw-frame observer (the event archiver). Must
// be set before Run.
func (f *MarketFeed) OnRaw(h polymarket.RawHandler) { f.onRaw = h }

// Run connects and consumes until ctx is cancelled or Close is called.
// Disconnects trigger a reconnect after backoff; the backoff resets once a
// connection subscribes successfully.
func (f *MarketFeed) Run(ctx context.Context) error {
	if len(f.assetIDs) == 0 {
		f.logger.Info("no asset IDs to subscribe, feed exiting")
		return nil
	}

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		started := time.Now()
		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > maxBackoff {
			backoff = initialBackoff
		}

		f.logger.Warn("market ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runConnection runs a single connection lifecycle: connect, subscribe, read
// until the socket drops or ctx is cancelled.
func (f *MarketFeed) runConnection(ctx context.Context) error {
	client := polymarket.NewWSClient(f.wsURL)
	defer client.Close()

	client.OnEvent(func(ev domain.Event) {
		if err := f.router.Dispatch(ev); err != nil {
			f.logger.Warn("event dropped",
				slog.String("kind", string(ev.Kind())),
				slog.String("error", err.Error()))
		}
	})
	client.OnFault(func(err error, raw []byte) {
		f.logger.Warn("frame decode failed",
			slog.String("error", err.Error()),
			slog.Int("frame_bytes", len(raw)))
	})
	if f.onRaw != nil {
		client.OnRaw(f.onRaw)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := client.Connect(dialCtx); err != nil {
		return err
	}
	if err := client.Subscribe(ctx, f.assetIDs); err != nil {
		return err
	}
	f.logger.Info("market ws subscribed", slog.Int("assets", len(f.assetIDs)))

	// Close the socket when ctx or the feed shuts down so ReadLoop unblocks.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
		case <-readDone:
		}
		client.Close()
	}()

	return client.ReadLoop()
}

// Close stops the feed. Safe to call more than once.
func (f *MarketFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
