package sizers

import "ballast/internal/risk"

// FixedFractional allocates a constant fraction of equity per position,
// ignoring signal strength and volatility:
//
//	qty = equity * risk_per_trade / price
type FixedFractional struct{}

func (FixedFractional) Name() string { return "fixed_fractional" }

func (FixedFractional) Size(signals []risk.Signal, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) []risk.Order {
	allocation := portfolio.Equity(market).Mul(decimalFromFloat(cfg.RiskPerTrade))

	orders := make([]risk.Order, 0, len(signals))
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
