package risk

import "github.com/shopspring/decimal"

// StopLoss places the protective stop an ATR multiple away from entry:
// below entry for longs (buys), above for shorts (sells).
func StopLoss(side Side, entry, atr decimal.Decimal, atrMult float64) decimal.Decimal {
	distance := atr.Mul(decimal.NewFromFloat(atrMult))
	if side == SideSell {
		return entry.Add(distance)
	}
	return entry.Sub(distance)
}

// TakeProfit mirrors StopLoss on the profit side: above entry for longs,
// below for shorts.
func TakeProfit(side Side, entry, atr decimal.Decimal, atrMult float64) decimal.Decimal {
	distance := atr.Mul(decimal.NewFromFloat(atrMult))
	if side == SideSell {
		return entry.Sub(distance)
	}
	return entry.Add(distance)
}
