package book

import (
	"sync"
	"time"

	"github.com/marketlab/bookkeeper/internal/domain"
)

// DefaultTickSize applies until the venue announces one.
const DefaultTickSize = 0.01

// OrderBook replicates one asset's two-sided ladder from the venue feed.
// Writes arrive from a single lane per asset; reads may come from any
// goroutine and always observe a consistent state via the RWMutex. No
// operation panics or returns an error: malformed inputs degrade and are
// reported by the caller from the fault notes.
type OrderBook struct {
	mu sync.RWMutex

	assetID  string
	marketID string

	bids *Ladder
	asks *Ladder

	tickSize     float64
	lastTrade    float64
	hasLastTrade bool
	hash         string
	updatedAt    time.Time

	history *sampleRing
}

// NewOrderBook creates an empty book for the asset with the default tick
// size and a best-price history capped at historyCap samples (<= 0 uses
// DefaultHistoryCap).
func NewOrderBook(assetID string, historyCap int) *OrderBook {
	return &OrderBook{
		assetID:  assetID,
		bids:     NewBidLadder(),
		asks:     NewAskLadder(),
		tickSize: DefaultTickSize,
		history:  newSampleRing(historyCap),
	}
}

// ApplySnapshot replaces both ladders with the event's levels. The snapshot
// is authoritative: no prior level survives.
func (b *OrderBook) ApplySnapshot(ev domain.BookSnapshotEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids.replaceAll(ev.Bids)
	b.asks.replaceAll(ev.Asks)
	if ev.MarketID != "" {
		b.marketID = ev.MarketID
	}
	if ev.Hash != "" {
		b.hash = ev.Hash
	}
	b.touch(ev.Timestamp)
}

// ApplyDelta upserts each change into the matching ladder in the order
// given, so duplicate price buckets resolve last-write-wins. Entries with an
// unrecognized side token are skipped; a fault note per skipped entry is
// returned for the caller to report.
func (b *OrderBook) ApplyDelta(ev domain.PriceChangeEvent) []domain.ParseFault {
	b.mu.Lock()
	defer b.mu.Unlock()

	var faults []domain.ParseFault
	for _, ch := range ev.Changes {
		side, err := domain.ParseSide(ch.Side)
		if err != nil {
			faults = append(faults, domain.ParseFault{
				Field:  "side",
				Raw:    ch.Side,
				Reason: "unknown side token",
			})
			continue
		}
		if side == domain.SideBuy {
			b.bids.Upsert(ch.Price, ch.Size)
		} else {
			b.asks.Upsert(ch.Price, ch.Size)
		}
	}
	if ev.MarketID != "" {
		b.marketID = ev.MarketID
	}
	if ev.Hash != "" {
		b.hash = ev.Hash
	}
	b.touch(ev.Timestamp)
	return faults
}

// ApplyTickSizeChange replaces the tick size. Existing levels are not
// re-bucketed.
func (b *OrderBook) ApplyTickSizeChange(ev domain.TickSizeChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.NewTickSize > 0 {
		b.tickSize = ev.NewTickSize
	}
	b.touch(ev.Timestamp)
}

// ApplyTrade records the last trade price. Ladders are untouched; the venue
// follows with a delta or snapshot reflecting the consumed liquidity.
func (b *OrderBook) ApplyTrade(ev domain.TradeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastTrade = ev.Price
	b.hasLastTrade = true
	b.touch(ev.Timestamp)
}

// touch advances the last-update timestamp. Caller holds b.mu.
func (b *OrderBook) touch(ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	b.updatedAt = ts
}

// SampleBest reads the current best of each ladder, appends the sample to
// the bounded history, and returns it. It is the only history mutator and is
// invoked by the caller, so sampling cadence stays under the caller's
// control.
func (b *OrderBook) SampleBest() domain.BestSample {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := domain.BestSample{
		AssetID:   b.assetID,
		Timestamp: time.Now(),
	}
	if best, ok := b.bids.Best(); ok {
		lvl := best
		s.BestBid = &lvl
	}
	if best, ok := b.asks.Best(); ok {
		lvl := best
		s.BestAsk = &lvl
	}
	b.history.append(s)
	return s
}

// History returns the retained best-price samples oldest-first.
func (b *OrderBook) History() []domain.BestSample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.history.list()
}

func (b *OrderBook) ladder(side domain.Side) *Ladder {
	if side == domain.SideBuy {
		return b.bids
	}
	return b.asks
}

// Best returns the most competitive level of the given side.
func (b *OrderBook) Best(side domain.Side) (domain.PriceLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ladder(side).Best()
}

// TopN returns up to n levels of the given side ordered best to worst.
func (b *OrderBook) TopN(side domain.Side, n int) []domain.PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ladder(side).TopN(n)
}

// SizeAt returns the resting size at the price bucket, if present.
func (b *OrderBook) SizeAt(side domain.Side, price float64) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ladder(side).SizeAt(price)
}

// TotalSizeAt sums resting size within tolerance of price on one side.
func (b *OrderBook) TotalSizeAt(side domain.Side, price float64) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ladder(side).TotalSizeAt(price)
}

// AggregateSize sums every level's size on one side.
func (b *OrderBook) AggregateSize(side domain.Side) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ladder(side).AggregateSize()
}

// AssetID returns the instrument identifier this book replicates.
func (b *OrderBook) AssetID() string { return b.assetID }

// MarketID returns the venue market this asset belongs to, when known.
func (b *OrderBook) MarketID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.marketID
}

// TickSize returns the current minimum price increment.
func (b *OrderBook) TickSize() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tickSize
}

// LastTradePrice returns the most recent trade print price. The second
// return is false until the first trade arrives.
func (b *OrderBook) LastTradePrice() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastTrade, b.hasLastTrade
}

// Hash returns the venue-supplied integrity hash of the last snapshot or
// delta, stored verbatim.
func (b *OrderBook) Hash() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hash
}

// UpdatedAt returns the timestamp of the last applied event.
func (b *OrderBook) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}

// View is a consistent copy of a book's full state for query responses.
type View struct {
	AssetID        string              `json:"asset_id"`
	MarketID       string              `json:"market_id"`
	Bids           []domain.PriceLevel `json:"bids"`
	Asks           []domain.PriceLevel `json:"asks"`
	TickSize       float64             `json:"tick_size"`
	LastTradePrice *float64            `json:"last_trade_price"`
	Hash           string              `json:"hash,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Snapshot returns a consistent copy of the full book state, ladders ordered
// best to worst.
func (b *OrderBook) Snapshot() View {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v := View{
		AssetID:   b.assetID,
		MarketID:  b.marketID,
		Bids:      b.bids.TopN(b.bids.Len()),
		Asks:      b.asks.TopN(b.asks.Len()),
		TickSize:  b.tickSize,
		Hash:      b.hash,
		UpdatedAt: b.updatedAt,
	}
	if b.hasLastTrade {
		p := b.lastTrade
		v.LastTradePrice = &p
	}
	return v
}

// TopOfBook builds the downstream mirror payload under one lock acquisition.
func (b *OrderBook) TopOfBook() domain.TopOfBook {
	b.mu.RLock()
	defer b.mu.RUnlock()

	top := domain.TopOfBook{
		AssetID:   b.assetID,
		MarketID:  b.marketID,
		TickSize:  b.tickSize,
		Timestamp: b.updatedAt,
	}
	if best, ok := b.bids.Best(); ok {
		lvl := best
		top.BestBid = &lvl
	}
	if best, ok := b.asks.Best(); ok {
		lvl := best
		top.BestAsk = &lvl
	}
	if b.hasLastTrade {
		p := b.lastTrade
		top.LastTradePrice = &p
	}
	return top
}
