package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/marketlab/bookkeeper/internal/book"
	"github.com/marketlab/bookkeeper/internal/domain"
)

// samplesStream is the capped Redis stream receiving every sample.
const samplesStream = "samples"

// DefaultSampleInterval is used when no interval is configured.
const DefaultSampleInterval = 5 * time.Second

// Sampler periodically records the best bid/ask of every tracked book into
// its in-memory history, persists the batch, and appends each sample to the
// durable stream. Persistence failures are logged; the in-memory history is
// always updated first so the query API keeps working without a store.
type Sampler struct {
	registry *book.Registry
	store    domain.SampleStore
	bus      domain.SignalBus
	interval time.Duration
	logger   *slog.Logger
}

// NewSampler creates a Sampler over the registry. store and bus may be nil
// when the corresponding backend is not configured.
func NewSampler(
	registry *book.Registry,
	store domain.SampleStore,
	bus domain.SignalBus,
	interval time.Duration,
	logger *slog.Logger,
) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{
		registry: registry,
		store:    store,
		bus:      bus,
		interval: interval,
		logger:   logger.With(slog.String("component", "sampler")),
	}
}

// Run samples on a ticker until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sampler started", slog.Duration("interval", s.interval))
	defer s.logger.Info("sampler stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SampleAll(ctx)
		}
	}
}

// SampleAll takes one sample of every tracked book.
func (s *Sampler) SampleAll(ctx context.Context) {
	assetIDs := s.registry.AssetIDs()
	if len(assetIDs) == 0 {
		return
	}

	samples := make([]domain.BestSample, 0, len(assetIDs))
	for _, id := range assetIDs {
		b, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		samples = append(samples, b.SampleBest())
	}

	if s.store != nil {
		if err := s.store.InsertBatch(ctx, samples); err != nil {
			s.logger.Warn("sample batch insert failed",
				slog.Int("samples", len(samples)),
				slog.String("error", err.Error()))
		}
	}

	if s.bus != nil {
		for _, smp := range samples {
			payload, _ := json.Marshal(smp)
			if err := s.bus.StreamAppend(ctx, samplesStream, payload); err != nil {
				s.logger.Warn("sample stream append failed",
					slog.String("asset_id", smp.AssetID),
					slog.String("error", err.Error()))
				break
			}
		}
	}
}
