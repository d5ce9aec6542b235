package risk

import "fmt"

// InputError marks a malformed input: zero timestamps, negative prices or
// volatilities, config values outside their domain. It is the only condition
// the pipeline fails hard on; everything else shapes the result instead.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// ValidateSignals rejects malformed signals. Symbols missing from market data
// are not checked here: that is a data gap handled by skipping, not an error.
func ValidateSignals(signals []Signal) error {
	for i, s := range signals {
		if s.Symbol == "" {
			return &InputError{Field: fmt.Sprintf("signals[%d].symbol", i), Reason: "must not be empty"}
		}
		if s.Direction != DirectionLong && s.Direction != DirectionShort {
			return &InputError{Field: fmt.Sprintf("signals[%d].direction", i), Reason: fmt.Sprintf("unknown direction %q", s.Direction)}
		}
		if s.Strength < -1 || s.Strength > 1 {
			return &InputError{Field: fmt.Sprintf("signals[%d].strength", i), Reason: "must be in [-1, 1]"}
		}
		if s.Timestamp.IsZero() {
			return &InputError{Field: fmt.Sprintf("signals[%d].timestamp", i), Reason: "must be set"}
		}
	}
	return nil
}

// ValidatePortfolio rejects structurally invalid snapshots.
func ValidatePortfolio(p PortfolioState) error {
	if p.Timestamp.IsZero() {
		return &InputError{Field: "portfolio.timestamp", Reason: "must be set"}
	}
	for symbol, pos := range p.Positions {
		if pos.AvgEntryPrice.IsNegative() {
			return &InputError{Field: "portfolio.positions." + symbol, Reason: "avg entry price must be >= 0"}
		}
	}
	return nil
}

// ValidateMarket rejects negative prices and volatilities and unset timestamps.
func ValidateMarket(m MarketState) error {
	if m.Timestamp.IsZero() {
		return &InputError{Field: "market.timestamp", Reason: "must be set"}
	}
	for symbol, bar := range m.Bars {
		if bar.Open.IsNegative() || bar.High.IsNegative() || bar.Low.IsNegative() || bar.Close.IsNegative() {
			return &InputError{Field: "market.bars." + symbol, Reason: "prices must be >= 0"}
		}
		if bar.Volume.IsNegative() {
			return &InputError{Field: "market.bars." + symbol, Reason: "volume must be >= 0"}
		}
	}
	for symbol, vol := range m.Volatility {
		if vol.IsNegative() {
			return &InputError{Field: "market.volatility." + symbol, Reason: "must be >= 0"}
		}
	}
	return nil
}
