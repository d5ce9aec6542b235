package constraints

import (
	"ballast/internal/risk"

	"github.com/shopspring/decimal"
)

func passAll(orders []risk.Order) risk.Outcome {
	out := make([]risk.Order, len(orders))
	copy(out, orders)
	return risk.Outcome{Orders: out}
}

func priceFor(market risk.MarketState, symbol string) (decimal.Decimal, bool) {
	bar, ok := market.Bars[symbol]
	if !ok || !bar.Close.IsPositive() {
		return decimal.Zero, false
	}
	return bar.Close, true
}

// markPrice values an existing position: latest close when available,
// average entry otherwise. Mirrors PortfolioState.Equity.
func markPrice(market risk.MarketState, pos risk.Position) decimal.Decimal {
	if bar, ok := market.Bars[pos.Symbol]; ok && bar.Close.IsPositive() {
		return bar.Close
	}
	return pos.AvgEntryPrice
}

// grossExposure sums absolute position values across the portfolio.
func grossExposure(portfolio risk.PortfolioState, market risk.MarketState) decimal.Decimal {
	total := decimal.Zero
	for _, pos := range portfolio.Positions {
		total = total.Add(pos.Quantity.Abs().Mul(markPrice(market, pos)))
	}
	return total
}

// netExposure sums signed position values across the portfolio.
func netExposure(portfolio risk.PortfolioState, market risk.MarketState) decimal.Decimal {
	total := decimal.Zero
	for _, pos := range portfolio.Positions {
		total = total.Add(pos.Quantity.Mul(markPrice(market, pos)))
	}
	return total
}

func heldPositionCount(portfolio risk.PortfolioState) int {
	n := 0
	for _, pos := range portfolio.Positions {
		if !pos.Quantity.IsZero() {
			n++
		}
	}
	return n
}
