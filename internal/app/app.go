package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ballast/internal/config"
	"ballast/internal/logger"
	"ballast/internal/market"
	"ballast/internal/profile"
	"ballast/internal/server"
	"ballast/internal/store/gormstore"
)

// App owns the process-level orchestration: dependency wiring, the HTTP
// server and the background candle refresh.
type App struct {
	cfg       *config.Config
	store     *gormstore.GormStore
	cache     *market.Cache
	profiles  *profile.Registry
	snapshots *market.SnapshotBuilder
	http      *server.Server
}

// New builds the application from configuration without starting it.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run starts the HTTP server and the candle refresh loop, blocking until ctx
// is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infof("http server listening on %s", a.http.Addr())
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if len(a.cfg.Market.WatchSymbols) > 0 {
		group.Go(func() error {
			a.refreshLoop(ctx)
			return nil
		})
	}

	return group.Wait()
}

// refreshLoop keeps the candle cache warm for the watched symbols, so
// evaluations can fall back to cached history when the source is down.
func (a *App) refreshLoop(ctx context.Context) {
	interval := refreshInterval(a.cfg.Market.Interval)
	logger.Infof("warming candle cache for %d symbols every %s", len(a.cfg.Market.WatchSymbols), interval)
	a.refreshOnce(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refreshOnce(ctx)
		}
	}
}

func (a *App) refreshOnce(ctx context.Context) {
	state, err := a.snapshots.Build(ctx, a.cfg.Market.WatchSymbols)
	if err != nil {
		logger.Warnf("candle refresh failed: %v", err)
		return
	}
	logger.Debugf("candle refresh: %d of %d symbols have fresh bars", len(state.Bars), len(a.cfg.Market.WatchSymbols))
}

func (a *App) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warnf("closing candle cache: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("closing store: %v", err)
		}
	}
}

// refreshInterval derives a refresh cadence from the bar interval: a quarter
// of a bar, clamped to [30s, 15m].
func refreshInterval(interval string) time.Duration {
	dur := time.Hour
	if d, ok := market.IntervalDuration(interval); ok {
		dur = d
	}
	dur = dur / 4
	if dur < 30*time.Second {
		dur = 30 * time.Second
	}
	if dur > 15*time.Minute {
		dur = 15 * time.Minute
	}
	return dur
}
