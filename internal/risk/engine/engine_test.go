package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballast/internal/risk"
	"ballast/internal/risk/constraints"
	"ballast/internal/risk/sizers"
)

var fixtureTime = time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)

func fixtureMarket() risk.MarketState {
	return risk.MarketState{
		Bars: map[string]risk.Bar{
			"AAPL": {Close: decimal.RequireFromString("151.00"), Timestamp: fixtureTime},
			"MSFT": {Close: decimal.RequireFromString("400.00"), Timestamp: fixtureTime},
		},
		Volatility: map[string]decimal.Decimal{
			"AAPL": decimal.RequireFromString("2.50"),
			"MSFT": decimal.RequireFromString("6.00"),
		},
		Timestamp: fixtureTime,
	}
}

func fixturePortfolio(cash int64) risk.PortfolioState {
	return risk.PortfolioState{Cash: decimal.NewFromInt(cash), Timestamp: fixtureTime}
}

func longSignal(symbol string) risk.Signal {
	return risk.Signal{Symbol: symbol, Direction: risk.DirectionLong, Strength: 0.8, Timestamp: fixtureTime}
}

func TestProcessEmptySignals(t *testing.T) {
	res, err := New().Process(nil, fixturePortfolio(100000), fixtureMarket(), risk.DefaultConfig(), risk.Marks{})
	require.NoError(t, err)
	assert.Empty(t, res.Orders)
	assert.False(t, res.Halted)
	assert.Empty(t, res.Violations)
}

func TestProcessSizesAndConstrains(t *testing.T) {
	cfg := risk.DefaultConfig()
	cfg.MinPositionValue = decimal.NewFromInt(100)

	res, err := New().Process([]risk.Signal{longSignal("AAPL")}, fixturePortfolio(100000), fixtureMarket(), cfg, risk.Marks{})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "AAPL", res.Orders[0].Symbol)
	assert.Equal(t, risk.SideBuy, res.Orders[0].Side)
	assert.Equal(t, "2.649", res.Orders[0].Quantity.Round(3).String())

	// Stop two ATRs below entry; targets disabled by default.
	stop, ok := res.StopLosses["AAPL"]
	require.True(t, ok)
	assert.Equal(t, "146", stop.String())
	assert.Nil(t, res.TakeProfits)
}

func TestProcessTakeProfitsWhenEnabled(t *testing.T) {
	cfg := risk.DefaultConfig()
	cfg.TakeProfitATRMult = 3.0

	res, err := New().Process([]risk.Signal{longSignal("AAPL")}, fixturePortfolio(100000), fixtureMarket(), cfg, risk.Marks{})
	require.NoError(t, err)
	target, ok := res.TakeProfits["AAPL"]
	require.True(t, ok)
	assert.Equal(t, "158.5", target.String())
}

func TestProcessIdempotent(t *testing.T) {
	signals := []risk.Signal{longSignal("AAPL"), longSignal("MSFT")}
	cfg := risk.DefaultConfig()

	first, err := New().Process(signals, fixturePortfolio(100000), fixtureMarket(), cfg, risk.Marks{})
	require.NoError(t, err)
	second, err := New().Process(signals, fixturePortfolio(100000), fixtureMarket(), cfg, risk.Marks{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, first.Orders[0].ClientOrderID, second.Orders[0].ClientOrderID)
}

func TestProcessHaltFiltersToReducingSignals(t *testing.T) {
	// Equity 100000 against a 120000 high-water mark breaches the 15% limit.
	portfolio := risk.PortfolioState{
		Cash: decimal.NewFromInt(85000),
		Positions: map[string]risk.Position{
			"AAPL": {Symbol: "AAPL", Quantity: decimal.NewFromInt(100), AvgEntryPrice: decimal.NewFromInt(140)},
		},
		Timestamp: fixtureTime,
	}
	market := fixtureMarket()
	market.Bars["AAPL"] = risk.Bar{Close: decimal.NewFromInt(150), Timestamp: fixtureTime}
	marks := risk.Marks{HighWaterMark: decimal.NewNullDecimal(decimal.NewFromInt(120000))}

	signals := []risk.Signal{
		{Symbol: "AAPL", Direction: risk.DirectionShort, Strength: 0.8, Timestamp: fixtureTime},
		longSignal("MSFT"),
	}
	res, err := New().Process(signals, portfolio, market, risk.DefaultConfig(), marks)
	require.NoError(t, err)

	assert.True(t, res.Halted)
	assert.Contains(t, res.HaltReason, "drawdown")
	// Only the position-reducing sell survives; the new long is filtered.
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "AAPL", res.Orders[0].Symbol)
	assert.Equal(t, risk.SideSell, res.Orders[0].Side)
}

func TestProcessHaltTrimsSellsToHeldQuantity(t *testing.T) {
	// Equity 100000 against a 120000 high-water mark breaches the 15% limit.
	portfolio := risk.PortfolioState{
		Cash: decimal.NewFromInt(99700),
		Positions: map[string]risk.Position{
			"AAPL": {Symbol: "AAPL", Quantity: decimal.NewFromInt(2), AvgEntryPrice: decimal.NewFromInt(140)},
		},
		Timestamp: fixtureTime,
	}
	market := fixtureMarket()
	market.Bars["AAPL"] = risk.Bar{Close: decimal.NewFromInt(150), Timestamp: fixtureTime}
	marks := risk.Marks{HighWaterMark: decimal.NewNullDecimal(decimal.NewFromInt(120000))}

	signals := []risk.Signal{
		{Symbol: "AAPL", Direction: risk.DirectionShort, Strength: 0.8, Timestamp: fixtureTime},
	}
	res, err := New().Process(signals, portfolio, market, risk.DefaultConfig(), marks)
	require.NoError(t, err)
	require.True(t, res.Halted)

	// The sizer asks for ~2.67 shares; the halt caps the sell at the 2 held
	// so no short opens while halted.
	require.Len(t, res.Orders, 1)
	assert.Equal(t, risk.SideSell, res.Orders[0].Side)
	assert.True(t, res.Orders[0].Quantity.Equal(decimal.NewFromInt(2)))
	notional, _ := res.Orders[0].Notional.Float64()
	assert.InDelta(t, 300, notional, 1e-6)
}

func TestProcessInputErrors(t *testing.T) {
	bad := []risk.Signal{{Symbol: "", Direction: risk.DirectionLong, Strength: 0.8, Timestamp: fixtureTime}}
	_, err := New().Process(bad, fixturePortfolio(100000), fixtureMarket(), risk.DefaultConfig(), risk.Marks{})
	var inputErr *risk.InputError
	require.ErrorAs(t, err, &inputErr)

	cfg := risk.DefaultConfig()
	cfg.MaxPositionPct = -1
	_, err = New().Process(nil, fixturePortfolio(100000), fixtureMarket(), cfg, risk.Marks{})
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "config.max_position_pct", inputErr.Field)

	_, err = New().Process(nil, risk.PortfolioState{}, fixtureMarket(), risk.DefaultConfig(), risk.Marks{})
	require.ErrorAs(t, err, &inputErr)
}

func TestProcessRecordsViolations(t *testing.T) {
	cfg := risk.DefaultConfig()
	cfg.MaxPositionPct = 0.001

	res, err := New().Process([]risk.Signal{longSignal("AAPL")}, fixturePortfolio(100000), fixtureMarket(), cfg, risk.Marks{})
	require.NoError(t, err)
	require.Contains(t, res.Violations, "max_position")
	assert.NotEmpty(t, res.Violations["max_position"])
}

func TestProcessCustomSizerAndChain(t *testing.T) {
	eng := New(
		WithSizer(sizers.EqualWeight{}),
		WithConstraints(constraints.BuyingPower{}),
	)
	res, err := eng.Process([]risk.Signal{longSignal("AAPL"), longSignal("MSFT")}, fixturePortfolio(100000), fixtureMarket(), risk.DefaultConfig(), risk.Marks{})
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	// Equal weight: 50000 notional each, no position cap in the custom chain.
	assert.InDelta(t, 50000, res.Orders[0].Notional.InexactFloat64(), 0.01)
}

func TestProcessDataGapSkipsSymbol(t *testing.T) {
	res, err := New().Process([]risk.Signal{longSignal("TSLA")}, fixturePortfolio(100000), fixtureMarket(), risk.DefaultConfig(), risk.Marks{})
	require.NoError(t, err)
	assert.Empty(t, res.Orders)
}
