package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/marketlab/bookkeeper/internal/blob/s3"
	"github.com/marketlab/bookkeeper/internal/book"
	"github.com/marketlab/bookkeeper/internal/feed"
	"github.com/marketlab/bookkeeper/internal/server"
	"github.com/marketlab/bookkeeper/internal/server/handler"
	"github.com/marketlab/bookkeeper/internal/service"
)

// shutdownGrace is the deadline for draining in-flight HTTP requests.
const shutdownGrace = 10 * time.Second

// engine bundles the book replication core built for a mode.
type engine struct {
	registry *book.Registry
	router   *book.Router
}

// buildEngine assembles registry, fan-out service, and router.
func (a *App) buildEngine(deps *Dependencies) *engine {
	registry := book.NewRegistry(a.cfg.Book.HistoryCap)

	bookSvc := service.NewBookService(deps.QuoteMirror, deps.SignalBus, deps.TradeStore, a.logger)

	router := book.NewRouter(registry, book.RouterConfig{
		LaneBuffer: a.cfg.Book.LaneBuffer,
		OnApplied:  bookSvc.OnApplied,
	}, a.logger)

	return &engine{registry: registry, router: router}
}

// resolveAssetIDs returns the token IDs to subscribe, loading the tokens
// file when configured.
func (a *App) resolveAssetIDs() ([]string, error) {
	if a.cfg.Polymarket.TokensFile != "" {
		ids, err := feed.LoadTokenIDs(a.cfg.Polymarket.TokensFile, a.cfg.Polymarket.TokenFilters)
		if err != nil {
			return nil, fmt.Errorf("app: load tokens file: %w", err)
		}
		return ids, nil
	}
	return a.cfg.Polymarket.AssetIDs, nil
}

// startFeed adds the market feed (and the optional frame archiver) to the
// errgroup.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine) error {
	assetIDs, err := a.resolveAssetIDs()
	if err != nil {
		return err
	}

	wsFeed := feed.NewMarketFeed(a.cfg.Polymarket.WsHost, assetIDs, eng.router, a.logger)

	if deps.BlobWriter != nil {
		archiver := s3blob.NewEventArchiver(deps.BlobWriter, a.logger,
			s3blob.WithFlushFrames(a.cfg.Archive.FlushFrames),
			s3blob.WithFlushInterval(a.cfg.Archive.FlushInterval.Duration),
		)
		wsFeed.OnRaw(archiver.Append)
		g.Go(func() error {
			return archiver.Run(ctx)
		})
	}

	g.Go(func() error {
		defer wsFeed.Close()
		return wsFeed.Run(ctx)
	})
	return nil
}

// startSampler adds the best-price sampler to the errgroup when enabled.
func (a *App) startSampler(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine) {
	if !a.cfg.Sampler.Enabled {
		return
	}
	sampler := service.NewSampler(eng.registry, deps.SampleStore, deps.SignalBus,
		a.cfg.Sampler.Interval.Duration, a.logger)
	g.Go(func() error {
		return sampler.Run(ctx)
	})
}

// startHTTPServer adds the query API server to the errgroup with graceful
// shutdown on context cancellation.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Books:  handler.NewBookHandler(eng.registry, deps.SampleStore, deps.TradeStore, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:              a.cfg.Server.Port,
		CORSOrigins:       a.cfg.Server.CORSOrigins,
		RateLimit:         a.cfg.Server.RateLimit,
		RateWindowSeconds: a.cfg.Server.RateWindowSeconds,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// ReplicateMode consumes the market feed into local books without serving
// queries over HTTP. The mirror, bus, and stores still fan out when wired.
func (a *App) ReplicateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting replicate mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)
	defer eng.router.Close()

	if err := a.startFeed(ctx, g, deps, eng); err != nil {
		return err
	}
	a.startSampler(ctx, g, deps, eng)

	return g.Wait()
}

// ServerMode serves the query API without consuming the feed. Books stay
// empty unless another process feeds the shared backends; the persisted
// history and trade endpoints remain fully functional.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)
	defer eng.router.Close()

	a.startHTTPServer(ctx, g, deps, eng)

	return g.Wait()
}

// FullMode runs the feed, sampler, and query API in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	eng := a.buildEngine(deps)
	defer eng.router.Close()

	if err := a.startFeed(ctx, g, deps, eng); err != nil {
		return err
	}
	a.startSampler(ctx, g, deps, eng)
	a.startHTTPServer(ctx, g, deps, eng)

	return g.Wait()
}
