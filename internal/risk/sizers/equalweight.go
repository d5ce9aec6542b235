package sizers

import (
	"ballast/internal/risk"

	"github.com/shopspring/decimal"
)

// EqualWeight splits equity evenly across the batch, ignoring volatility:
//
//	qty = equity / n_signals / price
//
// n_signals counts every tradable signal in the batch, including ones later
// skipped for missing bars, so the allocation per slot is stable.
type EqualWeight struct{}

func (EqualWeight) Name() string { return "equal_weight" }

func (EqualWeight) Size(signals []risk.Signal, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) []risk.Order {
	n := 0
	for _, s := range signals {
		if sizable(s) {
			n++
		}
	}
	if n == 0 {
		return nil
	}

	allocation := portfolio.Equity(market).Div(decimal.NewFromInt(int64(n)))

	orders := make([]risk.Order, 0, n)
	for _, s := range signals {
		if !sizable(s) {
			continue
		}
		price, ok := barClose(market, s.Symbol)
		if !ok {
			continue
		}
		qty := allocation.Div(price)
		if !qty.IsPositive() {
			continue
		}
		orders = append(orders, risk.NewOrder(s.Symbol, sideFor(s.Direction), qty, price, s.Strength, s.Timestamp))
	}
	return orders
}
