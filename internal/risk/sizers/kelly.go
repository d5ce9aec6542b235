package sizers

import (
	"ballast/internal/risk"

	"github.com/shopspring/decimal"
)

// Kelly sizes by the Kelly criterion with signal strength as the win
// probability proxy. Full Kelly for symmetric payoffs is f* = 2p - 1; the
// configured kelly_fraction shrinks it for safety:
//
//	qty = equity * clamp(2p-1, 0, 1) * kelly_fraction / price
//
// Strength at or below 0.5 means no edge and produces no order.
type Kelly struct{}

func (Kelly) Name() string { return "kelly" }

func (Kelly) Size(signals []risk.Signal, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) []risk.Order {
	equity := portfolio.Equity(market)
	kellyFraction := decimalFromFloat(cfg.KellyFraction)
	one := decimal.NewFromInt(1)
	two := decimal.NewFromInt(2)

	orders := make([]risk.Order, 0, len(signals))
	for _, s := range signals {
		if !sizable(s) {
			continue
		}
		price, ok := barClose(market, s.Symbol)
		if !ok {
			continue
		}
		fullKelly := two.Mul(decimalFromFloat(s.Strength)).Sub(one)
		if !fullKelly.IsPositive() {
			continue
		}
		if fullKelly.GreaterThan(one) {
			fullKelly = one
		}
		fraction := fullKelly.Mul(kellyFraction)
		qty := equity.Mul(fraction).Div(price)
		if !qty.IsPositive() {
			continue
		}
		orders = append(orders, risk.NewOrder(s.Symbol, sideFor(s.Direction), qty, price, s.Strength, s.Timestamp))
	}
	return orders
}
