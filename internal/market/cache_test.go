package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCandles() []Candle {
	return []Candle{
		{OpenTime: 1000, CloseTime: 1999, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10, Trades: 5},
		{OpenTime: 2000, CloseTime: 2999, Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 12, Trades: 7},
		{OpenTime: 3000, CloseTime: 3999, Open: 101, High: 103, Low: 100.5, Close: 102, Volume: 8, Trades: 3},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	n, err := cache.Put(ctx, "BTCUSDT", "1h", sampleCandles())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := cache.Recent(ctx, "BTCUSDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Ascending open-time order.
	assert.Equal(t, int64(1000), got[0].OpenTime)
	assert.Equal(t, int64(3000), got[2].OpenTime)
	assert.Equal(t, 102.0, got[2].Close)

	last, err := cache.LastOpenTime(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), last)
}

func TestCacheUpsertsByOpenTime(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	_, err = cache.Put(ctx, "ETHUSDT", "1h", sampleCandles())
	require.NoError(t, err)

	revised := []Candle{{OpenTime: 3000, CloseTime: 3999, Open: 101, High: 104, Low: 100, Close: 103, Volume: 9, Trades: 4}}
	_, err = cache.Put(ctx, "ETHUSDT", "1h", revised)
	require.NoError(t, err)

	got, err := cache.Recent(ctx, "ETHUSDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 103.0, got[2].Close)
}

func TestCacheLimitsToNewest(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	_, err = cache.Put(ctx, "BTCUSDT", "1h", sampleCandles())
	require.NoError(t, err)

	got, err := cache.Recent(ctx, "BTCUSDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[0].OpenTime)
	assert.Equal(t, int64(3000), got[1].OpenTime)
}

func TestCacheSeparatesIntervals(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	_, err = cache.Put(ctx, "BTCUSDT", "1h", sampleCandles())
	require.NoError(t, err)

	got, err := cache.Recent(ctx, "BTCUSDT", "4h", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCacheEmptySymbolRejected(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Recent(context.Background(), "", "1h", 10)
	require.Error(t, err)
}
