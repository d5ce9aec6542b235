package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"ballast/internal/market"
)

const maxHistoryLimit = 1500

// Source implements market.Source against the Binance futures REST API.
type Source struct {
	cfg    Config
	client *futures.Client
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = strings.TrimSpace(final.RESTBaseURL)
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	// Binance wants symbols without separators (ETHUSDT, not ETH/USDT).
	cleanSymbol := strings.ToUpper(strings.NewReplacer("/", "", "-", "", ":", "").Replace(symbol))

	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	kls, err := s.client.NewKlinesService().Symbol(cleanSymbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	if dur, ok := market.IntervalDuration(interval); ok {
		out = dropUnclosed(out, dur)
	}
	return out, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// dropUnclosed removes the still-forming bar at the tail. Binance returns the
// in-progress kline, which would let a half-bar leak into ATR.
func dropUnclosed(candles []market.Candle, interval time.Duration) []market.Candle {
	if len(candles) == 0 {
		return candles
	}
	last := candles[len(candles)-1]
	closeAt := time.UnixMilli(last.OpenTime).Add(interval)
	if time.Now().Before(closeAt) {
		return candles[:len(candles)-1]
	}
	return candles
}
