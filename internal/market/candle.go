package market

// Candle is one OHLCV bar as delivered by an exchange. Floats are fine here:
// candles only feed indicator math, and every money computation downstream
// converts to decimal at the boundary.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}
