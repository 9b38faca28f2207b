// Package service coordinates the book engine with the cache, bus, and
// stores: fan-out after each applied event, and periodic best-price sampling.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/marketlab/bookkeeper/internal/book"
	"github.com/marketlab/bookkeeper/internal/domain"
)

// booksChannel carries one top-of-book JSON message per applied event.
const booksChannel = "books"

// fanoutTimeout bounds each post-apply side effect. The engine never waits
// on the cache or store longer than this.
const fanoutTimeout = 5 * time.Second

// BookService fans out engine state after each applied event: it mirrors the
// top-of-book to the quote cache, publishes an update message, and persists
// trade prints. Every side effect is best-effort; failures are logged and
// never reach the apply path.
type BookService struct {
	mirror domain.QuoteMirror
	bus    domain.SignalBus
	trades domain.TradeStore
	logger *slog.Logger
}

// NewBookService creates a BookService. mirror, bus, and trades may each be
// nil when the corresponding backend is not configured; the matching side
// effect is skipped.
func NewBookService(
	mirror domain.QuoteMirror,
	bus domain.SignalBus,
	trades domain.TradeStore,
	logger *slog.Logger,
) *BookService {
	return &BookService{
		mirror: mirror,
		bus:    bus,
		trades: trades,
		logger: logger.With(slog.String("component", "book_service")),
	}
}

// OnApplied is the post-apply hook wired into the router. It runs on the
// per-asset lane goroutine, so all side effects are bounded by
// fanoutTimeout.
func (s *BookService) OnApplied(ev domain.Event, b *book.OrderBook) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
	defer cancel()

	top := b.TopOfBook()

	if s.mirror != nil {
		if err := s.mirror.SetTop(ctx, top); err != nil {
			s.logger.Warn("quote mirror update failed",
				slog.String("asset_id", top.AssetID),
				slog.String("error", err.Error()))
		}
	}

	if s.bus != nil {
		msg, _ := json.Marshal(map[string]any{
			"event":     string(ev.Kind()),
			"asset_id":  top.AssetID,
			"best_bid":  top.BestBid,
			"best_ask":  top.BestAsk,
			"tick_size": top.TickSize,
			"timestamp": top.Timestamp.Format(time.RFC3339Nano),
		})
		if err := s.bus.Publish(ctx, booksChannel, msg); err != nil {
			s.logger.Warn("book update publish failed",
				slog.String("asset_id", top.AssetID),
				slog.String("error", err.Error()))
		}
	}

	if trade, ok := ev.(domain.TradeEvent); ok && s.trades != nil {
		if err := s.trades.Insert(ctx, trade); err != nil {
			s.logger.Warn("trade insert failed",
				slog.String("asset_id", trade.AssetID),
				slog.String("error", err.Error()))
		}
	}
}
