package sizers

import (
	"ballast/internal/risk"

	"github.com/shopspring/decimal"
)

// RiskParity gives every position an equal risk contribution by weighting
// inverse to volatility across the batch:
//
//	weight_i = (1/vol_i) / sum(1/vol_j)
//	qty_i    = equity * weight_i / price_i
//
// The normalization is batch-level, so weights depend on every valid signal
// supplied, not just the one being sized.
type RiskParity struct{}

func (RiskParity) Name() string { return "risk_parity" }

func (RiskParity) Size(signals []risk.Signal, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) []risk.Order {
	type candidate struct {
		signal     risk.Signal
		price      decimal.Decimal
		inverseVol decimal.Decimal
	}

	one := decimal.NewFromInt(1)
	candidates := make([]candidate, 0, len(signals))
	totalInverse := decimal.Zero
	for _, s := range signals {
		if !sizable(s) {
			continue
		}
		price, ok := barClose(market, s.Symbol)
		if !ok {
			continue
		}
		vol, ok := volatility(market, s.Symbol)
		if !ok {
			continue
		}
		inv := one.Div(vol)
		candidates = append(candidates, candidate{signal: s, price: price, inverseVol: inv})
		totalInverse = totalInverse.Add(inv)
	}
	if len(candidates) == 0 || !totalInverse.IsPositive() {
		return nil
	}

	equity := portfolio.Equity(market)
	orders := make([]risk.Order, 0, len(candidates))
	for _, c := range candidates {
		weight := c.inverseVol.Div(totalInverse)
		qty := equity.Mul(weight).Div(c.price)
		if !qty.IsPositive() {
			continue
		}
		orders = append(orders, risk.NewOrder(c.signal.Symbol, sideFor(c.signal.Direction), qty, c.price, c.signal.Strength, c.signal.Timestamp))
	}
	return orders
}
