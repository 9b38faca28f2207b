package polymarket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlab/bookkeeper/internal/domain"
)

func TestDecodeEventBook(t *testing.T) {
	raw := []byte(`{
		"event_type": "book",
		"asset_id": "65818619657568813474341868652308942079804919287380422192892211131408793125422",
		"market": "0xbd31dc8a20211944f6b70f31557f1001557b59905b7738480ca09bd4532f84af",
		"timestamp": "1672290701300",
		"hash": "0x0b5a7f",
		"bids": [
			{"price": "0.48", "size": "30"},
			{"price": "0.49", "size": "20"},
			{"price": "0.50", "size": "15"}
		],
		"asks": [
			{"price": "0.52", "size": "25"},
			{"price": "0.53", "size": "60"}
		]
	}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)

	snap, ok := ev.(domain.BookSnapshotEvent)
	require.True(t, ok)
	assert.Equal(t, domain.EventKindBook, snap.Kind())
	assert.Equal(t, "0xbd31dc8a20211944f6b70f31557f1001557b59905b7738480ca09bd4532f84af", snap.MarketID)
	assert.Equal(t, "0x0b5a7f", snap.Hash)
	require.Len(t, snap.Bids, 3)
	require.Len(t, snap.Asks, 2)
	assert.Equal(t, domain.PriceLevel{Price: 0.50, Size: 15}, snap.Bids[2])
	assert.Equal(t, domain.PriceLevel{Price: 0.52, Size: 25}, snap.Asks[0])
	assert.Empty(t, snap.Faults)

	// timestamp is unix milliseconds
	assert.Equal(t, time.UnixMilli(1672290701300), snap.EventTime())
}

func TestDecodeEventBookBuysSells(t *testing.T) {
	raw := []byte(`{
		"event_type": "book",
		"asset_id": "token-1",
		"market": "0xmarket",
		"timestamp": "1672290701",
		"buys": [{"price": "0.41", "size": "10"}],
		"sells": [{"price": "0.59", "size": "5"}]
	}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)

	snap := ev.(domain.BookSnapshotEvent)
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, 0.41, snap.Bids[0].Price)
	assert.Equal(t, 0.59, snap.Asks[0].Price)

	// timestamp in seconds also accepted
	assert.Equal(t, time.Unix(1672290701, 0), snap.EventTime())
}

func TestDecodeEventPriceChange(t *testing.T) {
	raw := []byte(`{
		"event_type": "price_change",
		"asset_id": "token-1",
		"market": "0xmarket",
		"timestamp": "1672290701300",
		"changes": [
			{"price": "0.51", "side": "BUY", "size": "40"},
			{"price": "0.52", "side": "SELL", "size": "0"}
		]
	}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)

	pc, ok := ev.(domain.PriceChangeEvent)
	require.True(t, ok)
	require.Len(t, pc.Changes, 2)
	assert.Equal(t, domain.LevelChange{Side: "BUY", Price: 0.51, Size: 40}, pc.Changes[0])
	assert.Equal(t, domain.LevelChange{Side: "SELL", Price: 0.52, Size: 0}, pc.Changes[1])
	assert.Empty(t, pc.Faults)
}

func TestDecodeEventPriceChangeLegacySingle(t *testing.T) {
	raw := []byte(`{
		"event_type": "price_change",
		"asset_id": "token-1",
		"market": "0xmarket",
		"timestamp": "1672290701300",
		"price": "0.47",
		"side": "SELL",
		"size": "12.5"
	}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)

	pc := ev.(domain.PriceChangeEvent)
	require.Len(t, pc.Changes, 1)
	assert.Equal(t, domain.LevelChange{Side: "SELL", Price: 0.47, Size: 12.5}, pc.Changes[0])
}

func TestDecodeEventTickSizeChange(t *testing.T) {
	raw := []byte(`{
		"event_type": "tick_size_change",
		"asset_id": "token-1",
		"market": "0xmarket",
		"timestamp": "1672290701300",
		"old_tick_size": "0.01",
		"new_tick_size": "0.001"
	}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)

	tc, ok := ev.(domain.TickSizeChangeEvent)
	require.True(t, ok)
	assert.Equal(t, 0.01, tc.OldTickSize)
	assert.Equal(t, 0.001, tc.NewTickSize)
}

func TestDecodeEventTrade(t *testing.T) {
	for _, eventType := range []string{"trade", "last_trade_price"} {
		t.Run(eventType, func(t *testing.T) {
			raw := []byte(`{
				"event_type": "` + eventType + `",
				"asset_id": "token-1",
				"market": "0xmarket",
				"timestamp": "1672290701300",
				"price": "0.55",
				"side": "BUY",
				"size": "120",
				"status": "MATCHED"
			}`)

			ev, err := DecodeEvent(raw)
			require.NoError(t, err)

			tr, ok := ev.(domain.TradeEvent)
			require.True(t, ok)
			assert.Equal(t, 0.55, tr.Price)
			assert.Equal(t, 120.0, tr.Size)
			assert.Equal(t, "BUY", tr.Side)
			assert.Equal(t, "MATCHED", tr.Status)
		})
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	raw := []byte(`{"event_type": "market_resolved", "asset_id": "token-1"}`)

	_, err := DecodeEvent(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownEventType)
}

func TestDecodeEventMalformedNumerics(t *testing.T) {
	raw := []byte(`{
		"event_type": "book",
		"asset_id": "token-1",
		"market": "0xmarket",
		"timestamp": "1672290701300",
		"bids": [
			{"price": "abc", "size": "30"},
			{"price": "0.49", "size": ""}
		],
		"asks": []
	}`)

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)

	snap := ev.(domain.BookSnapshotEvent)
	require.Len(t, snap.Bids, 2)
	assert.Equal(t, 0.0, snap.Bids[0].Price)
	assert.Equal(t, 30.0, snap.Bids[0].Size)
	assert.Equal(t, 0.49, snap.Bids[1].Price)
	assert.Equal(t, 0.0, snap.Bids[1].Size)

	require.Len(t, snap.Faults, 2)
	assert.Equal(t, "buys.price", snap.Faults[0].Field)
	assert.Equal(t, "abc", snap.Faults[0].Raw)
	assert.Equal(t, "buys.size", snap.Faults[1].Field)
	assert.Equal(t, "empty numeric field", snap.Faults[1].Reason)
}

func TestDecodeFramesArray(t *testing.T) {
	raw := []byte(`[
		{"event_type": "book", "asset_id": "token-1", "market": "0xm", "timestamp": "1672290701300",
		 "bids": [{"price": "0.50", "size": "15"}], "asks": []},
		{"event_type": "price_change", "asset_id": "token-2", "market": "0xm", "timestamp": "1672290701400",
		 "changes": [{"price": "0.60", "side": "SELL", "size": "8"}]}
	]`)

	events, errs := DecodeFrames(raw)
	require.Empty(t, errs)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventKindBook, events[0].Kind())
	assert.Equal(t, "token-1", events[0].Asset())
	assert.Equal(t, domain.EventKindPriceChange, events[1].Kind())
	assert.Equal(t, "token-2", events[1].Asset())
}

func TestDecodeFramesArrayPartialFailure(t *testing.T) {
	raw := []byte(`[
		{"event_type": "something_else", "asset_id": "token-1"},
		{"event_type": "book", "asset_id": "token-2", "market": "0xm", "timestamp": "1672290701300",
		 "bids": [], "asks": [{"price": "0.52", "size": "25"}]}
	]`)

	events, errs := DecodeFrames(raw)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrUnknownEventType)
	require.Len(t, events, 1)
	assert.Equal(t, "token-2", events[0].Asset())
}

func TestDecodeFramesGarbage(t *testing.T) {
	events, errs := DecodeFrames([]byte(`not json at all`))
	assert.Empty(t, events)
	require.Len(t, errs, 1)
}

func TestParseTimestampRFC3339(t *testing.T) {
	ts := parseTimestamp("2023-01-15T10:30:00Z")
	assert.Equal(t, time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC), ts)
}
