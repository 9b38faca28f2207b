package domain

import (
	"context"
	"io"
)

// SampleStore persists best-price history samples.
type SampleStore interface {
	InsertBatch(ctx context.Context, samples []BestSample) error
	ListByAsset(ctx context.Context, assetID string, limit int) ([]BestSample, error)
}

// TradeStore persists trade prints delivered on the feed.
type TradeStore interface {
	Insert(ctx context.Context, trade TradeEvent) error
	ListByAsset(ctx context.Context, assetID string, limit int) ([]TradeEvent, error)
}

// QuoteMirror mirrors each book's top-of-book state into a shared cache so
// out-of-process consumers can read it without touching the engine.
type QuoteMirror interface {
	SetTop(ctx context.Context, top TopOfBook) error
	GetTop(ctx context.Context, assetID string) (TopOfBook, error)
}

// SignalBus provides pub/sub fan-out of book events and a capped durable
// stream of best-price samples.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// BlobWriter uploads raw objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// RateLimiter provides request rate limiting for the query API.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, windowSeconds int) (bool, error)
}
