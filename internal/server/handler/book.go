package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/marketlab/bookkeeper/internal/book"
	"github.com/marketlab/bookkeeper/internal/domain"
)

// BookHandler serves order book queries from the in-memory registry, with
// the sample and trade stores backing the persisted history endpoints.
type BookHandler struct {
	registry *book.Registry
	samples  domain.SampleStore
	trades   domain.TradeStore
	logger   *slog.Logger
}

// NewBookHandler creates a BookHandler. samples and trades may be nil when
// persistence is not configured; the corresponding endpoints then answer
// from memory only or report the store as unavailable.
func NewBookHandler(registry *book.Registry, samples domain.SampleStore, trades domain.TradeStore, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		registry: registry,
		samples:  samples,
		trades:   trades,
		logger:   logger.With(slog.String("handler", "book")),
	}
}

// lookup resolves the asset path parameter to its book. A miss writes the
// 404 and returns nil.
func (h *BookHandler) lookup(w http.ResponseWriter, r *http.Request) *book.OrderBook {
	assetID := r.PathValue("asset")
	b, ok := h.registry.Get(assetID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown asset")
		return nil
	}
	return b
}

// ListBooks returns the top of book for every tracked asset.
// GET /api/books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	assetIDs := h.registry.AssetIDs()

	tops := make([]domain.TopOfBook, 0, len(assetIDs))
	for _, id := range assetIDs {
		if b, ok := h.registry.Get(id); ok {
			tops = append(tops, b.TopOfBook())
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(tops),
		"books": tops,
	})
}

// GetBook returns the full ladder state of one book.
// GET /api/books/{asset}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	b := h.lookup(w, r)
	if b == nil {
		return
	}
	writeJSON(w, http.StatusOK, b.Snapshot())
}

// GetTop returns up to `levels` levels per side, best first.
// GET /api/books/{asset}/top?levels=N
func (h *BookHandler) GetTop(w http.ResponseWriter, r *http.Request) {
	b := h.lookup(w, r)
	if b == nil {
		return
	}
	levels := queryInt(r, "levels", 10, 100)

	writeJSON(w, http.StatusOK, map[string]any{
		"asset_id": b.AssetID(),
		"bids":     b.TopN(domain.SideBuy, levels),
		"asks":     b.TopN(domain.SideSell, levels),
	})
}

// GetBBO returns only the best bid and ask with book metadata.
// GET /api/books/{asset}/bbo
func (h *BookHandler) GetBBO(w http.ResponseWriter, r *http.Request) {
	b := h.lookup(w, r)
	if b == nil {
		return
	}
	writeJSON(w, http.StatusOK, b.TopOfBook())
}

// GetDepth reports resting size on one side: the size at a specific price
// bucket, the tolerance-banded total around it, and the side's aggregate.
// GET /api/books/{asset}/depth?side=buy[&price=0.48]
func (h *BookHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	b := h.lookup(w, r)
	if b == nil {
		return
	}

	side, err := domain.ParseSide(r.URL.Query().Get("side"))
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSide) {
			writeError(w, http.StatusBadRequest, "side must be buy or sell")
			return
		}
		writeError(w, http.StatusInternalServerError, "depth query failed")
		return
	}

	resp := map[string]any{
		"asset_id":       b.AssetID(),
		"side":           string(side),
		"aggregate_size": b.AggregateSize(side),
	}

	if rawPrice := r.URL.Query().Get("price"); rawPrice != "" {
		price, err := strconv.ParseFloat(rawPrice, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "price must be a number")
			return
		}
		size, _ := b.SizeAt(side, price)
		resp["price"] = price
		resp["size"] = size
		resp["total_size"] = b.TotalSizeAt(side, price)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetHistory returns retained best-price samples. The in-memory ring answers
// by default; source=store reads the persisted series instead.
// GET /api/books/{asset}/history?limit=N&source=store
func (h *BookHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100, 1000)

	if r.URL.Query().Get("source") == "store" {
		if h.samples == nil {
			writeError(w, http.StatusServiceUnavailable, "sample store not configured")
			return
		}
		assetID := r.PathValue("asset")
		samples, err := h.samples.ListByAsset(r.Context(), assetID, limit)
		if err != nil {
			h.logger.Error("persisted history query failed",
				slog.String("asset_id", assetID),
				slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "history query failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"asset_id": assetID,
			"source":   "store",
			"samples":  samples,
		})
		return
	}

	b := h.lookup(w, r)
	if b == nil {
		return
	}
	samples := b.History()
	if len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"asset_id": b.AssetID(),
		"source":   "memory",
		"samples":  samples,
	})
}

// ListTrades returns recent persisted trade prints for the asset.
// GET /api/books/{asset}/trades?limit=N
func (h *BookHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	if h.trades == nil {
		writeError(w, http.StatusServiceUnavailable, "trade store not configured")
		return
	}

	assetID := r.PathValue("asset")
	limit := queryInt(r, "limit", 100, 1000)

	trades, err := h.trades.ListByAsset(r.Context(), assetID, limit)
	if err != nil {
		h.logger.Error("trade query failed",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "trade query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"asset_id": assetID,
		"trades":   trades,
	})
}
