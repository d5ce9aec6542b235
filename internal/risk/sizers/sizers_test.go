package sizers

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballast/internal/risk"
)

var fixtureTime = time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)

func cashOnly(cash int64) risk.PortfolioState {
	return risk.PortfolioState{Cash: decimal.NewFromInt(cash), Timestamp: fixtureTime}
}

func marketWith(bars map[string]string, vols map[string]string) risk.MarketState {
	m := risk.MarketState{
		Bars:       make(map[string]risk.Bar),
		Volatility: make(map[string]decimal.Decimal),
		Timestamp:  fixtureTime,
	}
	for symbol, close := range bars {
		m.Bars[symbol] = risk.Bar{Close: decimal.RequireFromString(close), Timestamp: fixtureTime}
	}
	for symbol, vol := range vols {
		m.Volatility[symbol] = decimal.RequireFromString(vol)
	}
	return m
}

func longSignal(symbol string, strength float64) risk.Signal {
	return risk.Signal{Symbol: symbol, Direction: risk.DirectionLong, Strength: strength, Timestamp: fixtureTime}
}

func TestVolatilitySizing(t *testing.T) {
	market := marketWith(map[string]string{"AAPL": "151.00"}, map[string]string{"AAPL": "2.50"})
	cfg := risk.DefaultConfig()
	cfg.RiskPerTrade = 0.01

	orders := Volatility{}.Size([]risk.Signal{longSignal("AAPL", 0.8)}, cashOnly(100000), market, cfg)
	require.Len(t, orders, 1)

	// 100000 * 0.01 / (2.50 * 151.00) = 2.6490...
	assert.Equal(t, "2.649", orders[0].Quantity.Round(3).String())
	assert.Equal(t, risk.SideBuy, orders[0].Side)
	assert.Equal(t, "AAPL", orders[0].Symbol)
}

func TestVolatilityShortSignalSells(t *testing.T) {
	market := marketWith(map[string]string{"AAPL": "151.00"}, map[string]string{"AAPL": "2.50"})
	s := risk.Signal{Symbol: "AAPL", Direction: risk.DirectionShort, Strength: 0.8, Timestamp: fixtureTime}

	orders := Volatility{}.Size([]risk.Signal{s}, cashOnly(100000), market, risk.DefaultConfig())
	require.Len(t, orders, 1)
	assert.Equal(t, risk.SideSell, orders[0].Side)
}

func TestVolatilitySkipsDataGaps(t *testing.T) {
	// AAPL has both bar and ATR, MSFT is missing its ATR, TSLA has no bar.
	market := marketWith(
		map[string]string{"AAPL": "151.00", "MSFT": "400.00"},
		map[string]string{"AAPL": "2.50"},
	)
	signals := []risk.Signal{longSignal("AAPL", 0.8), longSignal("MSFT", 0.9), longSignal("TSLA", 0.7)}

	orders := Volatility{}.Size(signals, cashOnly(100000), market, risk.DefaultConfig())
	require.Len(t, orders, 1)
	assert.Equal(t, "AAPL", orders[0].Symbol)
}

func TestEqualWeightSplitsEquity(t *testing.T) {
	market := marketWith(map[string]string{"AAPL": "100", "MSFT": "200"}, nil)
	signals := []risk.Signal{longSignal("AAPL", 0.8), longSignal("MSFT", 0.6)}

	orders := EqualWeight{}.Size(signals, cashOnly(100000), market, risk.DefaultConfig())
	require.Len(t, orders, 2)
	// 50000 per slot.
	assert.True(t, orders[0].Quantity.Equal(decimal.NewFromInt(500)))
	assert.True(t, orders[1].Quantity.Equal(decimal.NewFromInt(250)))
}

func TestEqualWeightAllocationStableAcrossGaps(t *testing.T) {
	// MSFT has no bar but still occupies a slot, so AAPL gets half, not all.
	market := marketWith(map[string]string{"AAPL": "100"}, nil)
	signals := []risk.Signal{longSignal("AAPL", 0.8), longSignal("MSFT", 0.6)}

	orders := EqualWeight{}.Size(signals, cashOnly(100000), market, risk.DefaultConfig())
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Quantity.Equal(decimal.NewFromInt(500)))
}

func TestKellyNoEdgeNoOrder(t *testing.T) {
	market := marketWith(map[string]string{"AAPL": "100"}, nil)

	orders := Kelly{}.Size([]risk.Signal{longSignal("AAPL", 0.5)}, cashOnly(100000), market, risk.DefaultConfig())
	assert.Empty(t, orders)

	orders = Kelly{}.Size([]risk.Signal{longSignal("AAPL", 0.3)}, cashOnly(100000), market, risk.DefaultConfig())
	assert.Empty(t, orders)
}

func TestKellySizing(t *testing.T) {
	market := marketWith(map[string]string{"AAPL": "100"}, nil)
	cfg := risk.DefaultConfig()
	cfg.KellyFraction = 0.25

	orders := Kelly{}.Size([]risk.Signal{longSignal("AAPL", 0.8)}, cashOnly(100000), market, cfg)
	require.Len(t, orders, 1)
	// full kelly 2*0.8-1 = 0.6, scaled 0.15 of equity: 15000 / 100 = 150.
	assert.True(t, orders[0].Quantity.Equal(decimal.NewFromInt(150)))
}

func TestFixedFractionalSizing(t *testing.T) {
	market := marketWith(map[string]string{"AAPL": "100"}, nil)
	cfg := risk.DefaultConfig()
	cfg.RiskPerTrade = 0.02

	orders := FixedFractional{}.Size([]risk.Signal{longSignal("AAPL", 0.8)}, cashOnly(100000), market, cfg)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Quantity.Equal(decimal.NewFromInt(20)))
}

func TestRiskParityInverseVolWeights(t *testing.T) {
	market := marketWith(
		map[string]string{"AAPL": "100", "MSFT": "100"},
		map[string]string{"AAPL": "0.02", "MSFT": "0.04"},
	)
	signals := []risk.Signal{longSignal("AAPL", 0.8), longSignal("MSFT", 0.6)}

	orders := RiskParity{}.Size(signals, cashOnly(90000), market, risk.DefaultConfig())
	require.Len(t, orders, 2)
	// Inverse vols 50 and 25: weights 2/3 and 1/3 of 90000.
	assert.InDelta(t, 600, orders[0].Quantity.InexactFloat64(), 1e-6)
	assert.InDelta(t, 300, orders[1].Quantity.InexactFloat64(), 1e-6)
}

func TestRiskParityNoValidCandidates(t *testing.T) {
	market := marketWith(map[string]string{"AAPL": "100"}, nil)
	orders := RiskParity{}.Size([]risk.Signal{longSignal("AAPL", 0.8)}, cashOnly(100000), market, risk.DefaultConfig())
	assert.Empty(t, orders)
}

func TestCryptoFractionalStepFloor(t *testing.T) {
	market := marketWith(map[string]string{"BTCUSDT": "30000"}, nil)
	cfg := risk.DefaultConfig()
	cfg.CryptoFraction = 0.02
	cfg.StepQty = decimal.RequireFromString("0.0001")
	cfg.MinQty = decimal.RequireFromString("0.0001")

	orders := CryptoFractional{}.Size([]risk.Signal{longSignal("BTCUSDT", 0.8)}, cashOnly(100000), market, cfg)
	require.Len(t, orders, 1)
	// 2000 / 30000 = 0.06666..., floored to the step.
	assert.Equal(t, "0.0666", orders[0].Quantity.String())
}

func TestCryptoFractionalDropsDust(t *testing.T) {
	market := marketWith(map[string]string{"BTCUSDT": "54321"}, nil)
	cfg := risk.DefaultConfig()
	cfg.CryptoFraction = 0.02

	// 2 / 54321 floors to zero steps.
	orders := CryptoFractional{}.Size([]risk.Signal{longSignal("BTCUSDT", 0.8)}, cashOnly(100), market, cfg)
	assert.Empty(t, orders)
}
