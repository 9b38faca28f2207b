package book

import (
	"log/slog"
	"sync"

	"github.com/marketlab/bookkeeper/internal/domain"
)

// DefaultLaneBuffer is the per-asset queue depth when none is configured.
const DefaultLaneBuffer = 256

// AppliedHook is invoked after an event has mutated its book, on the asset's
// lane goroutine. Implementations must not retain the book pointer beyond
// the call for writing.
type AppliedHook func(ev domain.Event, b *OrderBook)

// RouterConfig tunes the Router.
type RouterConfig struct {
	// LaneBuffer is the queue depth of each per-asset lane (<= 0 uses
	// DefaultLaneBuffer). Dispatch blocks when a lane is full so
	// per-asset ordering is never sacrificed for throughput.
	LaneBuffer int
	// OnApplied, when set, is called after each successfully applied event.
	OnApplied AppliedHook
}

// Router classifies inbound events and applies them to the right book.
// Each asset gets one ordered processing lane, so events for an asset apply
// in arrival order while distinct assets proceed in parallel. Malformed or
// unroutable events are reported and dropped, never fatal.
type Router struct {
	registry *Registry
	laneBuf  int
	applied  AppliedHook
	logger   *slog.Logger

	mu     sync.Mutex
	lanes  map[string]chan domain.Event
	wg     sync.WaitGroup
	closed bool
}

// NewRouter creates a Router over the given registry.
func NewRouter(registry *Registry, cfg RouterConfig, logger *slog.Logger) *Router {
	laneBuf := cfg.LaneBuffer
	if laneBuf <= 0 {
		laneBuf = DefaultLaneBuffer
	}
	return &Router{
		registry: registry,
		laneBuf:  laneBuf,
		applied:  cfg.OnApplied,
		logger:   logger.With(slog.String("component", "book_router")),
		lanes:    make(map[string]chan domain.Event),
	}
}

// Dispatch enqueues the event on its asset's lane, creating the lane on
// first sight. Events without an asset ID cannot be routed and are dropped
// with a reported error. Returns domain.ErrMissingAssetID or
// domain.ErrRouterClosed for the caller's accounting; processing failures
// never propagate.
func (r *Router) Dispatch(ev domain.Event) error {
	if ev == nil {
		return domain.ErrUnknownEventType
	}
	if ev.Asset() == "" {
		r.logger.Warn("dropping event without asset id",
			slog.String("kind", string(ev.Kind())),
		)
		return domain.ErrMissingAssetID
	}

	// Enqueue under the lock so a send can never race Close closing the
	// lane. Lanes drain without the lock, so a full lane still makes
	// progress while Dispatch blocks here.
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ErrRouterClosed
	}
	r.laneLocked(ev.Asset()) <- ev
	return nil
}

// laneLocked returns the asset's queue, spawning the lane goroutine on first
// use. Caller holds r.mu.
func (r *Router) laneLocked(assetID string) chan domain.Event {
	if lane, ok := r.lanes[assetID]; ok {
		return lane
	}
	lane := make(chan domain.Event, r.laneBuf)
	r.lanes[assetID] = lane
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for ev := range lane {
			r.apply(ev)
		}
	}()
	return lane
}

// apply runs on the asset's lane goroutine and is the single writer for the
// asset's book.
func (r *Router) apply(ev domain.Event) {
	b := r.registry.GetOrCreate(ev.Asset())

	r.reportFaults(ev, ev.ParseFaults())

	switch e := ev.(type) {
	case domain.BookSnapshotEvent:
		b.ApplySnapshot(e)
	case domain.PriceChangeEvent:
		r.reportFaults(ev, b.ApplyDelta(e))
	case domain.TickSizeChangeEvent:
		b.ApplyTickSizeChange(e)
	case domain.TradeEvent:
		b.ApplyTrade(e)
	default:
		r.logger.Warn("dropping event of unknown kind",
			slog.String("kind", string(ev.Kind())),
			slog.String("asset_id", ev.Asset()),
		)
		return
	}

	if r.applied != nil {
		r.applied(ev, b)
	}
}

// reportFaults surfaces degraded fields carried on the event or produced
// while applying it. Reporting is the recovery: the event itself has already
// been applied best-effort.
func (r *Router) reportFaults(ev domain.Event, faults []domain.ParseFault) {
	for _, f := range faults {
		r.logger.Warn("degraded event field",
			slog.String("kind", string(ev.Kind())),
			slog.String("asset_id", ev.Asset()),
			slog.String("field", f.Field),
			slog.String("raw", f.Raw),
			slog.String("reason", f.Reason),
		)
	}
}

// Close stops accepting events, drains every lane, and waits for in-flight
// applies to finish.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, lane := range r.lanes {
		close(lane)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
