package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlab/bookkeeper/internal/book"
	"github.com/marketlab/bookkeeper/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSampleStore struct {
	samples []domain.BestSample
	err     error
}

func (s *stubSampleStore) InsertBatch(ctx context.Context, samples []domain.BestSample) error {
	return nil
}

func (s *stubSampleStore) ListByAsset(ctx context.Context, assetID string, limit int) ([]domain.BestSample, error) {
	return s.samples, s.err
}

type stubTradeStore struct {
	trades []domain.TradeEvent
	err    error
}

func (s *stubTradeStore) Insert(ctx context.Context, trade domain.TradeEvent) error {
	return nil
}

func (s *stubTradeStore) ListByAsset(ctx context.Context, assetID string, limit int) ([]domain.TradeEvent, error) {
	return s.trades, s.err
}

// newTestMux builds a mux with the same route patterns the server uses, so
// PathValue works in handler tests.
func newTestMux(h *BookHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/books", h.ListBooks)
	mux.HandleFunc("GET /api/books/{asset}", h.GetBook)
	mux.HandleFunc("GET /api/books/{asset}/top", h.GetTop)
	mux.HandleFunc("GET /api/books/{asset}/bbo", h.GetBBO)
	mux.HandleFunc("GET /api/books/{asset}/depth", h.GetDepth)
	mux.HandleFunc("GET /api/books/{asset}/history", h.GetHistory)
	mux.HandleFunc("GET /api/books/{asset}/trades", h.ListTrades)
	return mux
}

func seedRegistry(t *testing.T) *book.Registry {
	t.Helper()
	registry := book.NewRegistry(16)
	registry.GetOrCreate("token-1").ApplySnapshot(domain.BookSnapshotEvent{
		AssetID:   "token-1",
		MarketID:  "0xmarket",
		Timestamp: time.Now(),
		Bids: []domain.PriceLevel{
			{Price: 0.48, Size: 30},
			{Price: 0.49, Size: 20},
			{Price: 0.50, Size: 15},
		},
		Asks: []domain.PriceLevel{
			{Price: 0.52, Size: 25},
			{Price: 0.53, Size: 60},
		},
	})
	return registry
}

func doRequest(t *testing.T, mux *http.ServeMux, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestBookHandlerListBooks(t *testing.T) {
	h := NewBookHandler(seedRegistry(t), nil, nil, testLogger())
	mux := newTestMux(h)

	rec, body := doRequest(t, mux, "/api/books")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestBookHandlerGetBook(t *testing.T) {
	h := NewBookHandler(seedRegistry(t), nil, nil, testLogger())
	mux := newTestMux(h)

	rec, body := doRequest(t, mux, "/api/books/token-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "token-1", body["asset_id"])
	assert.Equal(t, "0xmarket", body["market_id"])

	bids := body["bids"].([]any)
	require.Len(t, bids, 3)
	best := bids[0].(map[string]any)
	assert.Equal(t, 0.50, best["price"])
}

func TestBookHandlerGetBookNotFound(t *testing.T) {
	h := NewBookHandler(seedRegistry(t), nil, nil, testLogger())
	mux := newTestMux(h)

	rec, _ := doRequest(t, mux, "/api/books/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookHandlerGetTop(t *testing.T) {
	h := NewBookHandler(seedRegistry(t), nil, nil, testLogger())
	mux := newTestMux(h)

	rec, body := doRequest(t, mux, "/api/books/token-1/top?levels=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["bids"].([]any), 2)
	assert.Len(t, body["asks"].([]any), 2)
}

func TestBookHandlerGetBBO(t *testing.T) {
	h := NewBookHandler(seedRegistry(t), nil, nil, testLogger())
	mux := newTestMux(h)

	rec, body := doRequest(t, mux, "/api/books/token-1/bbo")
	require.Equal(t, http.StatusOK, rec.Code)

	bid := body["best_bid"].(map[string]any)
	ask := body["best_ask"].(map[string]any)
	assert.Equal(t, 0.50, bid["price"])
	assert.Equal(t, 0.52, ask["price"])
}

func TestBookHandlerGetDepth(t *testing.T) {
	h := NewBookHandler(seedRegistry(t), nil, nil, testLogger())
	mux := newTestMux(h)

	t.Run("aggregate only", func(t *testing.T) {
		rec, body := doRequest(t, mux, "/api/books/token-1/depth?side=buy")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 65.0, body["aggregate_size"])
	})

	t.Run("at price", func(t *testing.T) {
		rec, body := doRequest(t, mux, "/api/books/token-1/depth?side=buy&price=0.48")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 30.0, body["size"])
		assert.Equal(t, 30.0, body["total_size"])
	})

	t.Run("bad side", func(t *testing.T) {
		rec, _ := doRequest(t, mux, "/api/books/token-1/depth?side=up")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad price", func(t *testing.T) {
		rec, _ := doRequest(t, mux, "/api/books/token-1/depth?side=sell&price=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBookHandlerGetHistory(t *testing.T) {
	registry := seedRegistry(t)
	b, _ := registry.Get("token-1")
	b.SampleBest()
	b.SampleBest()

	t.Run("memory", func(t *testing.T) {
		h := NewBookHandler(registry, nil, nil, testLogger())
		rec, body := doRequest(t, newTestMux(h), "/api/books/token-1/history")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "memory", body["source"])
		assert.Len(t, body["samples"].([]any), 2)
	})

	t.Run("memory with limit", func(t *testing.T) {
		h := NewBookHandler(registry, nil, nil, testLogger())
		rec, body := doRequest(t, newTestMux(h), "/api/books/token-1/history?limit=1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, body["samples"].([]any), 1)
	})

	t.Run("store", func(t *testing.T) {
		store := &stubSampleStore{samples: []domain.BestSample{
			{AssetID: "token-1", Timestamp: time.Now()},
		}}
		h := NewBookHandler(registry, store, nil, testLogger())
		rec, body := doRequest(t, newTestMux(h), "/api/books/token-1/history?source=store")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "store", body["source"])
		assert.Len(t, body["samples"].([]any), 1)
	})

	t.Run("store not configured", func(t *testing.T) {
		h := NewBookHandler(registry, nil, nil, testLogger())
		rec, _ := doRequest(t, newTestMux(h), "/api/books/token-1/history?source=store")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestBookHandlerListTrades(t *testing.T) {
	registry := seedRegistry(t)

	t.Run("with store", func(t *testing.T) {
		store := &stubTradeStore{trades: []domain.TradeEvent{
			{AssetID: "token-1", Price: 0.51, Size: 100, Side: "BUY"},
		}}
		h := NewBookHandler(registry, nil, store, testLogger())
		rec, body := doRequest(t, newTestMux(h), "/api/books/token-1/trades")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, body["trades"].([]any), 1)
	})

	t.Run("not configured", func(t *testing.T) {
		h := NewBookHandler(registry, nil, nil, testLogger())
		rec, _ := doRequest(t, newTestMux(h), "/api/books/token-1/trades")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
