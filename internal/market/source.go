package market

import "context"

// Source fetches candle history for a symbol at an interval. Implementations
// return candles in ascending open-time order with the unclosed bar dropped.
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}
