package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marketlab/bookkeeper/internal/domain"
)

// SampleStore implements domain.SampleStore on the best_samples table.
type SampleStore struct {
	client *Client
}

// NewSampleStore creates a SampleStore backed by the given Client.
func NewSampleStore(c *Client) *SampleStore {
	return &SampleStore{client: c}
}

const insertSampleSQL = `
	INSERT INTO best_samples (asset_id, sampled_at, bid_price, bid_size, ask_price, ask_size)
	VALUES ($1, $2, $3, $4, $5, $6)`

// InsertBatch writes all samples in a single pipelined batch. A nil bid or
// ask side is stored as NULL columns.
func (s *SampleStore) InsertBatch(ctx context.Context, samples []domain.BestSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, smp := range samples {
		var bidPrice, bidSize, askPrice, askSize *float64
		if smp.BestBid != nil {
			bidPrice, bidSize = &smp.BestBid.Price, &smp.BestBid.Size
		}
		if smp.BestAsk != nil {
			askPrice, askSize = &smp.BestAsk.Price, &smp.BestAsk.Size
		}
		batch.Queue(insertSampleSQL,
			smp.AssetID, smp.Timestamp, bidPrice, bidSize, askPrice, askSize)
	}

	results := s.client.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range samples {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert sample batch: %w", err)
		}
	}
	return nil
}

// ListByAsset returns the most recent samples for the asset, newest first.
func (s *SampleStore) ListByAsset(ctx context.Context, assetID string, limit int) ([]domain.BestSample, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT asset_id, sampled_at, bid_price, bid_size, ask_price, ask_size
		FROM best_samples
		WHERE asset_id = $1
		ORDER BY sampled_at DESC
		LIMIT $2`

	rows, err := s.client.Pool().Query(ctx, query, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list samples for %s: %w", assetID, err)
	}
	defer rows.Close()

	var samples []domain.BestSample
	for rows.Next() {
		var (
			smp                                  domain.BestSample
			bidPrice, bidSize, askPrice, askSize *float64
		)
		if err := rows.Scan(&smp.AssetID, &smp.Timestamp,
			&bidPrice, &bidSize, &askPrice, &askSize); err != nil {
			return nil, fmt.Errorf("postgres: scan sample: %w", err)
		}
		if bidPrice != nil {
			smp.BestBid = &domain.PriceLevel{Price: *bidPrice}
			if bidSize != nil {
				smp.BestBid.Size = *bidSize
			}
		}
		if askPrice != nil {
			smp.BestAsk = &domain.PriceLevel{Price: *askPrice}
			if askSize != nil {
				smp.BestAsk.Size = *askSize
			}
		}
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list samples for %s: %w", assetID, err)
	}
	return samples, nil
}

// Compile-time interface check.
var _ domain.SampleStore = (*SampleStore)(nil)
