package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decimalFrom(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// stubSource serves canned candles per symbol and can be told to fail.
type stubSource struct {
	candles map[string][]Candle
	err     error
	calls   int
}

func (s *stubSource) FetchHistory(_ context.Context, symbol, _ string, _ int) ([]Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.candles[symbol], nil
}

// flatCandles builds n bars with a constant 2-point range so the ATR converges
// to exactly 2.
func flatCandles(n int) []Candle {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	out := make([]Candle, 0, n)
	for i := 0; i < n; i++ {
		open := base + int64(i)*3600_000
		out = append(out, Candle{
			OpenTime:  open,
			CloseTime: open + 3599_999,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    50,
			Trades:    10,
		})
	}
	return out
}

func TestSnapshotBuilderComputesBarsAndATR(t *testing.T) {
	src := &stubSource{candles: map[string][]Candle{"BTCUSDT": flatCandles(20)}}
	b := NewSnapshotBuilder(src, nil, SnapshotConfig{Interval: "1h", ATRPeriod: 3, LookbackBars: 20})

	state, err := b.Build(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)

	bar, ok := state.Bars["BTCUSDT"]
	require.True(t, ok)
	assert.True(t, bar.Close.Equal(decimalFrom(100)))
	assert.True(t, bar.High.Equal(decimalFrom(101)))

	atr, ok := state.Volatility["BTCUSDT"]
	require.True(t, ok)
	f, _ := atr.Float64()
	assert.InDelta(t, 2.0, f, 1e-9)

	liq, ok := state.Liquidity["BTCUSDT"]
	require.True(t, ok)
	assert.True(t, liq.Equal(decimalFrom(5000)))
}

func TestSnapshotBuilderSkipsShortHistory(t *testing.T) {
	src := &stubSource{candles: map[string][]Candle{"BTCUSDT": flatCandles(2)}}
	b := NewSnapshotBuilder(src, nil, SnapshotConfig{Interval: "1h", ATRPeriod: 3, LookbackBars: 20})

	state, err := b.Build(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)
	assert.Empty(t, state.Bars)
	assert.Empty(t, state.Volatility)
}

func TestSnapshotBuilderFallsBackToCache(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	_, err = cache.Put(ctx, "BTCUSDT", "1h", flatCandles(20))
	require.NoError(t, err)

	src := &stubSource{err: errors.New("exchange down")}
	b := NewSnapshotBuilder(src, cache, SnapshotConfig{Interval: "1h", ATRPeriod: 3, LookbackBars: 20})

	state, err := b.Build(ctx, []string{"BTCUSDT"})
	require.NoError(t, err)
	_, ok := state.Bars["BTCUSDT"]
	assert.True(t, ok)
	assert.Positive(t, src.calls)
}

func TestSnapshotBuilderSkipsUnavailableSymbols(t *testing.T) {
	src := &stubSource{err: errors.New("exchange down")}
	b := NewSnapshotBuilder(src, nil, SnapshotConfig{Interval: "1h", ATRPeriod: 3, LookbackBars: 20})

	state, err := b.Build(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	assert.Empty(t, state.Bars)
}

func TestIntervalDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1m", time.Minute, true},
		{"15m", 15 * time.Minute, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{"", 0, false},
		{"h", 0, false},
		{"1x", 0, false},
		{"0m", 0, false},
	}
	for _, tc := range cases {
		got, ok := IntervalDuration(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
