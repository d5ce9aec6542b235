package sizers

import (
	"ballast/internal/risk"

	"github.com/shopspring/decimal"
)

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func barClose(market risk.MarketState, symbol string) (decimal.Decimal, bool) {
	bar, ok := market.Bars[symbol]
	if !ok || !bar.Close.IsPositive() {
		return decimal.Zero, false
	}
	return bar.Close, true
}

func volatility(market risk.MarketState, symbol string) (decimal.Decimal, bool) {
	vol, ok := market.Volatility[symbol]
	if !ok || !vol.IsPositive() {
		return decimal.Zero, false
	}
	return vol, true
}

func sideFor(d risk.Direction) risk.Side {
	if d == risk.DirectionShort {
		return risk.SideSell
	}
	return risk.SideBuy
}

// sizable reports whether the signal has a tradable direction. Symbols with
// missing market data are filtered later, per sizer, since requirements differ.
func sizable(s risk.Signal) bool {
	return s.Direction == risk.DirectionLong || s.Direction == risk.DirectionShort
}
