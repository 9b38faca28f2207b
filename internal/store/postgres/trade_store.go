package postgres

import (
	"context"
	"fmt"

	"github.com/marketlab/bookkeeper/internal/domain"
)

// TradeStore implements domain.TradeStore on the trades table.
type TradeStore struct {
	client *Client
}

// NewTradeStore creates a TradeStore backed by the given Client.
func NewTradeStore(c *Client) *TradeStore {
	return &TradeStore{client: c}
}

// Insert persists one trade print.
func (s *TradeStore) Insert(ctx context.Context, trade domain.TradeEvent) error {
	const query = `
		INSERT INTO trades (asset_id, market_id, traded_at, price, size, side, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.client.Pool().Exec(ctx, query,
		trade.AssetID, trade.MarketID, trade.Timestamp,
		trade.Price, trade.Size, trade.Side, trade.Status)
	if err != nil {
		return fmt.Errorf("postgres: insert trade for %s: %w", trade.AssetID, err)
	}
	return nil
}

// ListByAsset returns the most recent trades for the asset, newest first.
func (s *TradeStore) ListByAsset(ctx context.Context, assetID string, limit int) ([]domain.TradeEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT asset_id, market_id, traded_at, price, size, side, status
		FROM trades
		WHERE asset_id = $1
		ORDER BY traded_at DESC
		LIMIT $2`

	rows, err := s.client.Pool().Query(ctx, query, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", assetID, err)
	}
	defer rows.Close()

	var trades []domain.TradeEvent
	for rows.Next() {
		var tr domain.TradeEvent
		if err := rows.Scan(&tr.AssetID, &tr.MarketID, &tr.Timestamp,
			&tr.Price, &tr.Size, &tr.Side, &tr.Status); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		trades = append(trades, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", assetID, err)
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
