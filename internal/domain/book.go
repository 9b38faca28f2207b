// Package domain holds the value types, events, and collaborator interfaces
// shared by the book engine and its surrounding plumbing.
package domain

import (
	"strings"
	"time"
)

// PriceLevel is a single price+size entry in an order book ladder.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Side identifies which ladder of a book a change or query targets.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalizes a side token from the feed or a query string.
// Accepted spellings: buy/bid and sell/ask, any case.
func ParseSide(raw string) (Side, error) {
	switch {
	case strings.EqualFold(raw, "BUY"), strings.EqualFold(raw, "BID"):
		return SideBuy, nil
	case strings.EqualFold(raw, "SELL"), strings.EqualFold(raw, "ASK"):
		return SideSell, nil
	default:
		return "", ErrUnknownSide
	}
}

// BestSample is one point in a book's best-price time series.
// A nil BestBid or BestAsk means that side of the ladder was empty.
type BestSample struct {
	AssetID   string      `json:"asset_id"`
	Timestamp time.Time   `json:"timestamp"`
	BestBid   *PriceLevel `json:"best_bid"`
	BestAsk   *PriceLevel `json:"best_ask"`
}

// TopOfBook is the per-asset summary published to downstream consumers after
// every applied event.
type TopOfBook struct {
	AssetID        string      `json:"asset_id"`
	MarketID       string      `json:"market_id"`
	BestBid        *PriceLevel `json:"best_bid"`
	BestAsk        *PriceLevel `json:"best_ask"`
	TickSize       float64     `json:"tick_size"`
	LastTradePrice *float64    `json:"last_trade_price"`
	Timestamp      time.Time   `json:"timestamp"`
}

// ParseFault records a numeric field that could not be parsed from the wire
// and was coerced to zero instead of aborting the event. Faults ride along on
// the decoded event so the degradation is visible to observability, never
// silent.
type ParseFault struct {
	Field  string
	Raw    string
	Reason string
}

// EventKind is the type discriminator of an inbound market-data event.
type EventKind string

const (
	EventKindBook           EventKind = "book"
	EventKindPriceChange    EventKind = "price_change"
	EventKindTickSizeChange EventKind = "tick_size_change"
	EventKindTrade          EventKind = "trade"
)

// Event is a decoded market-data event ready to be routed to a book.
type Event interface {
	Kind() EventKind
	Asset() string
	EventTime() time.Time
	ParseFaults() []ParseFault
}

// BookSnapshotEvent is a full two-sided snapshot. It supersedes all prior
// state for the asset.
type BookSnapshotEvent struct {
	AssetID   string
	MarketID  string
	Hash      string
	Timestamp time.Time
	Bids      []PriceLevel
	Asks      []PriceLevel
	Faults    []ParseFault
}

func (e BookSnapshotEvent) Kind() EventKind           { return EventKindBook }
func (e BookSnapshotEvent) Asset() string             { return e.AssetID }
func (e BookSnapshotEvent) EventTime() time.Time      { return e.Timestamp }
func (e BookSnapshotEvent) ParseFaults() []ParseFault { return e.Faults }

// LevelChange is one entry of a price_change event. Side carries the raw
// token from the wire; validation happens at apply time so an unknown side
// skips only that entry.
type LevelChange struct {
	Side  string
	Price float64
	Size  float64
}

// PriceChangeEvent is an incremental update of one or more price levels.
type PriceChangeEvent struct {
	AssetID   string
	MarketID  string
	Hash      string
	Timestamp time.Time
	Changes   []LevelChange
	Faults    []ParseFault
}

func (e PriceChangeEvent) Kind() EventKind           { return EventKindPriceChange }
func (e PriceChangeEvent) Asset() string             { return e.AssetID }
func (e PriceChangeEvent) EventTime() time.Time      { return e.Timestamp }
func (e PriceChangeEvent) ParseFaults() []ParseFault { return e.Faults }

// TickSizeChangeEvent announces a new minimum price increment for the asset.
type TickSizeChangeEvent struct {
	AssetID     string
	MarketID    string
	Timestamp   time.Time
	OldTickSize float64
	NewTickSize float64
	Faults      []ParseFault
}

func (e TickSizeChangeEvent) Kind() EventKind           { return EventKindTickSizeChange }
func (e TickSizeChangeEvent) Asset() string             { return e.AssetID }
func (e TickSizeChangeEvent) EventTime() time.Time      { return e.Timestamp }
func (e TickSizeChangeEvent) ParseFaults() []ParseFault { return e.Faults }

// TradeEvent is a trade print. Only the price feeds the book (last trade
// price); the rest is retained for persistence.
type TradeEvent struct {
	AssetID   string
	MarketID  string
	Timestamp time.Time
	Price     float64
	Size      float64
	Side      string
	Status    string
	Faults    []ParseFault
}

func (e TradeEvent) Kind() EventKind           { return EventKindTrade }
func (e TradeEvent) Asset() string             { return e.AssetID }
func (e TradeEvent) EventTime() time.Time      { return e.Timestamp }
func (e TradeEvent) ParseFaults() []ParseFault { return e.Faults }
