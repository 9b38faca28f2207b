// Package polymarket implements the CLOB WebSocket market-data transport:
// wire DTOs, decoding into domain events, and the client that feeds them to
// the book engine.
package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marketlab/bookkeeper/internal/domain"
)

// ----------------------------------------------------------------------------
// Wire DTOs
//
// The venue sends every numeric as a JSON string. Decoding coerces malformed
// numerics to zero and tags a ParseFault on the event instead of failing the
// whole frame: availability of the ladder view beats strict validation.
// ----------------------------------------------------------------------------

// WireLevel is a single bid/ask level as sent on the wire.
type WireLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookFrame is a full snapshot frame. The market channel names the sides
// bids/asks while the user channel names them buys/sells; both are accepted.
type BookFrame struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Market    string      `json:"market"`
	Timestamp string      `json:"timestamp"`
	Hash      string      `json:"hash"`
	Buys      []WireLevel `json:"buys"`
	Sells     []WireLevel `json:"sells"`
	Bids      []WireLevel `json:"bids"`
	Asks      []WireLevel `json:"asks"`
}

// WireChange is one entry of a price_change frame.
type WireChange struct {
	Price string `json:"price"`
	Side  string `json:"side"`
	Size  string `json:"size"`
}

// PriceChangeFrame is an incremental level-update frame. Older feed versions
// put a single change at the top level instead of a changes array; both are
// accepted.
type PriceChangeFrame struct {
	EventType string       `json:"event_type"`
	AssetID   string       `json:"asset_id"`
	Market    string       `json:"market"`
	Timestamp string       `json:"timestamp"`
	Hash      string       `json:"hash"`
	Changes   []WireChange `json:"changes"`
	Price     string       `json:"price"`
	Side      string       `json:"side"`
	Size      string       `json:"size"`
}

// TickSizeChangeFrame announces a new minimum price increment.
type TickSizeChangeFrame struct {
	EventType   string `json:"event_type"`
	AssetID     string `json:"asset_id"`
	Market      string `json:"market"`
	Timestamp   string `json:"timestamp"`
	OldTickSize string `json:"old_tick_size"`
	NewTickSize string `json:"new_tick_size"`
}

// TradeFrame is a trade print ("trade" on the user channel,
// "last_trade_price" on the market channel).
type TradeFrame struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Timestamp string `json:"timestamp"`
	Price     string `json:"price"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Status    string `json:"status"`
}

// ----------------------------------------------------------------------------
// Decoding
// ----------------------------------------------------------------------------

// DecodeFrames decodes a raw WebSocket frame into domain events. The venue
// batches messages into JSON arrays, so a frame yields zero or more events.
// Unknown event types produce an error per element; decodable elements are
// still returned.
func DecodeFrames(raw []byte) ([]domain.Event, []error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, []error{fmt.Errorf("polymarket: decode frame array: %w", err)}
		}
		var events []domain.Event
		var errs []error
		for _, e := range elems {
			ev, err := DecodeEvent(e)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			events = append(events, ev)
		}
		return events, errs
	}

	ev, err := DecodeEvent(raw)
	if err != nil {
		return nil, []error{err}
	}
	return []domain.Event{ev}, nil
}

// DecodeEvent decodes a single JSON object by its event_type discriminator.
func DecodeEvent(raw []byte) (domain.Event, error) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("polymarket: decode envelope: %w", err)
	}

	switch envelope.EventType {
	case "book":
		var f BookFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("polymarket: decode book frame: %w", err)
		}
		return f.ToDomain(), nil
	case "price_change":
		var f PriceChangeFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("polymarket: decode price_change frame: %w", err)
		}
		return f.ToDomain(), nil
	case "tick_size_change":
		var f TickSizeChangeFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("polymarket: decode tick_size_change frame: %w", err)
		}
		return f.ToDomain(), nil
	case "trade", "last_trade_price":
		var f TradeFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("polymarket: decode trade frame: %w", err)
		}
		return f.ToDomain(), nil
	default:
		return nil, fmt.Errorf("polymarket: event_type %q: %w",
			envelope.EventType, domain.ErrUnknownEventType)
	}
}

// ----------------------------------------------------------------------------
// Conversion to domain events
// ----------------------------------------------------------------------------

// parseDecimal parses a wire numeric, degrading to zero with a tagged fault
// when the field is empty or malformed.
func parseDecimal(field, raw string, faults *[]domain.ParseFault) float64 {
	if raw == "" {
		*faults = append(*faults, domain.ParseFault{
			Field: field, Raw: raw, Reason: "empty numeric field",
		})
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*faults = append(*faults, domain.ParseFault{
			Field: field, Raw: raw, Reason: "not a number",
		})
		return 0
	}
	return v
}

// parseTimestamp accepts unix milliseconds or seconds (the feed has sent
// both) and RFC3339, falling back to the receive time.
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n)
		}
		return time.Unix(n, 0)
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	return time.Now()
}

func convertLevels(field string, levels []WireLevel, faults *[]domain.ParseFault) []domain.PriceLevel {
	if len(levels) == 0 {
		return nil
	}
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, domain.PriceLevel{
			Price: parseDecimal(field+".price", lvl.Price, faults),
			Size:  parseDecimal(field+".size", lvl.Size, faults),
		})
	}
	return out
}

// ToDomain converts the frame to a BookSnapshotEvent.
func (f *BookFrame) ToDomain() domain.BookSnapshotEvent {
	ev := domain.BookSnapshotEvent{
		AssetID:   f.AssetID,
		MarketID:  f.Market,
		Hash:      f.Hash,
		Timestamp: parseTimestamp(f.Timestamp),
	}

	bids, asks := f.Buys, f.Sells
	if len(bids) == 0 && len(asks) == 0 {
		bids, asks = f.Bids, f.Asks
	}
	ev.Bids = convertLevels("buys", bids, &ev.Faults)
	ev.Asks = convertLevels("sells", asks, &ev.Faults)
	return ev
}

// ToDomain converts the frame to a PriceChangeEvent.
func (f *PriceChangeFrame) ToDomain() domain.PriceChangeEvent {
	ev := domain.PriceChangeEvent{
		AssetID:   f.AssetID,
		MarketID:  f.Market,
		Hash:      f.Hash,
		Timestamp: parseTimestamp(f.Timestamp),
	}

	changes := f.Changes
	if len(changes) == 0 && (f.Price != "" || f.Size != "" || f.Side != "") {
		changes = []WireChange{{Price: f.Price, Side: f.Side, Size: f.Size}}
	}
	ev.Changes = make([]domain.LevelChange, 0, len(changes))
	for _, ch := range changes {
		ev.Changes = append(ev.Changes, domain.LevelChange{
			Side:  ch.Side,
			Price: parseDecimal("changes.price", ch.Price, &ev.Faults),
			Size:  parseDecimal("changes.size", ch.Size, &ev.Faults),
		})
	}
	return ev
}

// ToDomain converts the frame to a TickSizeChangeEvent.
func (f *TickSizeChangeFrame) ToDomain() domain.TickSizeChangeEvent {
	ev := domain.TickSizeChangeEvent{
		AssetID:   f.AssetID,
		MarketID:  f.Market,
		Timestamp: parseTimestamp(f.Timestamp),
	}
	ev.OldTickSize = parseDecimal("old_tick_size", f.OldTickSize, &ev.Faults)
	ev.NewTickSize = parseDecimal("new_tick_size", f.NewTickSize, &ev.Faults)
	return ev
}

// ToDomain converts the frame to a TradeEvent.
func (f *TradeFrame) ToDomain() domain.TradeEvent {
	ev := domain.TradeEvent{
		AssetID:   f.AssetID,
		MarketID:  f.Market,
		Timestamp: parseTimestamp(f.Timestamp),
		Side:      f.Side,
		Status:    f.Status,
	}
	ev.Price = parseDecimal("price", f.Price, &ev.Faults)
	if f.Size != "" {
		ev.Size = parseDecimal("size", f.Size, &ev.Faults)
	}
	return ev
}
