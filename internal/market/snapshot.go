package market

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ballast/internal/logger"
	"ballast/internal/risk"
)

// errSourceUnavailable marks a fetch skipped because the breaker is open.
var errSourceUnavailable = errors.New("market source unavailable")

// SnapshotConfig shapes how a market snapshot is built.
type SnapshotConfig struct {
	Interval     string
	ATRPeriod    int
	LookbackBars int
}

// SnapshotBuilder turns raw candle history into the market snapshot the risk
// pipeline consumes: latest bar plus ATR per symbol. History comes from the
// source and falls back to the cache when the source is unavailable.
type SnapshotBuilder struct {
	source  Source
	cache   *Cache
	cfg     SnapshotConfig
	breaker *sourceBreaker
}

func NewSnapshotBuilder(source Source, cache *Cache, cfg SnapshotConfig) *SnapshotBuilder {
	if cfg.ATRPeriod <= 1 {
		cfg.ATRPeriod = 14
	}
	if cfg.LookbackBars <= cfg.ATRPeriod {
		cfg.LookbackBars = cfg.ATRPeriod * 10
	}
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	return &SnapshotBuilder{
		source:  source,
		cache:   cache,
		cfg:     cfg,
		breaker: newSourceBreaker("candles", 5, time.Minute),
	}
}

// Build assembles a snapshot for symbols, fetching history concurrently.
// Symbols with insufficient history are left out of the maps; the pipeline
// treats that as a data gap and skips them, so a partial snapshot is still
// usable.
func (b *SnapshotBuilder) Build(ctx context.Context, symbols []string) (risk.MarketState, error) {
	state := risk.MarketState{
		Bars:       make(map[string]risk.Bar),
		Volatility: make(map[string]decimal.Decimal),
		Liquidity:  make(map[string]decimal.Decimal),
		Timestamp:  time.Now().UTC(),
	}
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, symbol := range symbols {
		symbol := symbol
		group.Go(func() error {
			candles, err := b.history(ctx, symbol)
			if err != nil {
				logger.Warnf("snapshot: history for %s unavailable: %v", symbol, err)
				return nil
			}
			if len(candles) <= b.cfg.ATRPeriod {
				logger.Warnf("snapshot: %s has %d candles, need more than %d for ATR", symbol, len(candles), b.cfg.ATRPeriod)
				return nil
			}
			last := candles[len(candles)-1]
			bar := risk.Bar{
				Open:      decimal.NewFromFloat(last.Open),
				High:      decimal.NewFromFloat(last.High),
				Low:       decimal.NewFromFloat(last.Low),
				Close:     decimal.NewFromFloat(last.Close),
				Volume:    decimal.NewFromFloat(last.Volume),
				Timestamp: time.UnixMilli(last.CloseTime).UTC(),
			}
			atr, atrOK := lastATR(candles, b.cfg.ATRPeriod)
			mu.Lock()
			state.Bars[symbol] = bar
			if atrOK {
				state.Volatility[symbol] = decimal.NewFromFloat(atr)
			}
			state.Liquidity[symbol] = decimal.NewFromFloat(last.Close * last.Volume)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return state, err
	}
	return state, nil
}

// history prefers a fresh fetch and persists it; on source failure or an open
// breaker it serves whatever the cache has.
func (b *SnapshotBuilder) history(ctx context.Context, symbol string) ([]Candle, error) {
	var candles []Candle
	err := errSourceUnavailable
	if b.breaker.Allow() {
		candles, err = b.source.FetchHistory(ctx, symbol, b.cfg.Interval, b.cfg.LookbackBars)
		if err != nil {
			b.breaker.RecordFailure()
		} else {
			b.breaker.RecordSuccess()
		}
	}
	if err == nil && len(candles) > 0 {
		if b.cache != nil {
			if _, cacheErr := b.cache.Put(ctx, symbol, b.cfg.Interval, candles); cacheErr != nil {
				logger.Warnf("snapshot: caching %s failed: %v", symbol, cacheErr)
			}
		}
		return candles, nil
	}
	if b.cache != nil {
		cached, cacheErr := b.cache.Recent(ctx, symbol, b.cfg.Interval, b.cfg.LookbackBars)
		if cacheErr == nil && len(cached) > 0 {
			logger.Warnf("snapshot: serving %s from cache after fetch error: %v", symbol, err)
			return cached, nil
		}
	}
	return nil, err
}

func lastATR(candles []Candle, period int) (float64, bool) {
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	series := talib.Atr(highs, lows, closes, period)
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] > 0 {
			return series[i], true
		}
	}
	return 0, false
}
