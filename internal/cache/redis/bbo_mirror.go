package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketlab/bookkeeper/internal/domain"
)

// quoteTTL bounds staleness: a mirror entry that outlives the feed by this
// long disappears rather than serving a dead quote.
const quoteTTL = 24 * time.Hour

// BBOMirror implements domain.QuoteMirror on a per-asset Redis hash. Each
// applied event refreshes the full hash, so readers always see a coherent
// top-of-book without JSON round-trips.
type BBOMirror struct {
	rdb *redis.Client
}

// NewBBOMirror creates a BBOMirror backed by the given Client.
func NewBBOMirror(c *Client) *BBOMirror {
	return &BBOMirror{rdb: c.Underlying()}
}

func quoteKey(assetID string) string {
	return "quote:" + assetID
}

// SetTop writes the top-of-book hash for the asset. Empty sides are stored
// as absent fields so GetTop can reconstruct nil levels.
func (m *BBOMirror) SetTop(ctx context.Context, top domain.TopOfBook) error {
	key := quoteKey(top.AssetID)

	fields := map[string]interface{}{
		"market_id": top.MarketID,
		"tick_size": strconv.FormatFloat(top.TickSize, 'f', -1, 64),
		"ts":        strconv.FormatInt(top.Timestamp.UnixMilli(), 10),
	}
	if top.BestBid != nil {
		fields["bid_price"] = strconv.FormatFloat(top.BestBid.Price, 'f', -1, 64)
		fields["bid_size"] = strconv.FormatFloat(top.BestBid.Size, 'f', -1, 64)
	}
	if top.BestAsk != nil {
		fields["ask_price"] = strconv.FormatFloat(top.BestAsk.Price, 'f', -1, 64)
		fields["ask_size"] = strconv.FormatFloat(top.BestAsk.Size, 'f', -1, 64)
	}
	if top.LastTradePrice != nil {
		fields["last_trade"] = strconv.FormatFloat(*top.LastTradePrice, 'f', -1, 64)
	}

	pipe := m.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, quoteTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", top.AssetID, err)
	}
	return nil
}

// GetTop reads the mirrored top-of-book for the asset. Returns
// domain.ErrNotFound when the asset has no mirror entry.
func (m *BBOMirror) GetTop(ctx context.Context, assetID string) (domain.TopOfBook, error) {
	fields, err := m.rdb.HGetAll(ctx, quoteKey(assetID)).Result()
	if err != nil && err != redis.Nil {
		return domain.TopOfBook{}, fmt.Errorf("redis: get quote %s: %w", assetID, err)
	}
	if len(fields) == 0 {
		return domain.TopOfBook{}, domain.ErrNotFound
	}

	top := domain.TopOfBook{
		AssetID:  assetID,
		MarketID: fields["market_id"],
	}
	top.TickSize, _ = strconv.ParseFloat(fields["tick_size"], 64)
	if ms, err := strconv.ParseInt(fields["ts"], 10, 64); err == nil {
		top.Timestamp = time.UnixMilli(ms)
	}
	if lvl, ok := parseQuoteLevel(fields, "bid_price", "bid_size"); ok {
		top.BestBid = lvl
	}
	if lvl, ok := parseQuoteLevel(fields, "ask_price", "ask_size"); ok {
		top.BestAsk = lvl
	}
	if raw, ok := fields["last_trade"]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			top.LastTradePrice = &v
		}
	}
	return top, nil
}

func parseQuoteLevel(fields map[string]string, priceField, sizeField string) (*domain.PriceLevel, bool) {
	rawPrice, ok := fields[priceField]
	if !ok {
		return nil, false
	}
	price, err := strconv.ParseFloat(rawPrice, 64)
	if err != nil {
		return nil, false
	}
	size, _ := strconv.ParseFloat(fields[sizeField], 64)
	return &domain.PriceLevel{Price: price, Size: size}, true
}

// Compile-time interface check.
var _ domain.QuoteMirror = (*BBOMirror)(nil)
