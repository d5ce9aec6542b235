package app

import (
	"fmt"
	"time"

	"ballast/internal/config"
	"ballast/internal/logger"
	"ballast/internal/market"
	"ballast/internal/market/binance"
	"ballast/internal/profile"
	"ballast/internal/server"
	"ballast/internal/store/gormstore"
)

// build wires the dependency graph from configuration: market source, candle
// cache, snapshot builder, evaluation store, profile registry and the HTTP
// server.
func build(cfg *config.Config) (*App, error) {
	source, err := buildSource(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("market source: %w", err)
	}

	var cache *market.Cache
	if cfg.Market.CachePath != "" {
		cache, err = market.NewCache(cfg.Market.CachePath)
		if err != nil {
			return nil, fmt.Errorf("candle cache: %w", err)
		}
	}

	snapshots := market.NewSnapshotBuilder(source, cache, market.SnapshotConfig{
		Interval:     cfg.Market.Interval,
		ATRPeriod:    cfg.Market.ATRPeriod,
		LookbackBars: cfg.Market.LookbackBars,
	})

	store, err := gormstore.NewGormStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("evaluation store: %w", err)
	}

	profiles, err := profile.NewRegistry(cfg.Profiles.Path)
	if err != nil {
		return nil, fmt.Errorf("profile registry: %w", err)
	}
	profiles.Subscribe(func(snap profile.Snapshot) {
		logger.Infof("profiles active: %d (version %d)", len(snap.Profiles), snap.Version)
	})

	router := server.NewRouter(store, profiles, snapshots, cfg.Risk)
	httpServer := server.New(cfg.App.HTTPAddr, router)

	return &App{
		cfg:       cfg,
		store:     store,
		cache:     cache,
		profiles:  profiles,
		snapshots: snapshots,
		http:      httpServer,
	}, nil
}

func buildSource(cfg config.MarketConfig) (market.Source, error) {
	src := cfg.ResolveActiveSource()
	switch src.Name {
	case "", "binance":
		return binance.New(binance.Config{
			RESTBaseURL:  src.RESTBaseURL,
			HTTPTimeout:  15 * time.Second,
			ProxyEnabled: src.Proxy.Enabled,
			RESTProxyURL: src.Proxy.RESTURL,
		})
	default:
		return nil, fmt.Errorf("unknown market source %q", src.Name)
	}
}
