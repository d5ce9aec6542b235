package sizers

import "ballast/internal/risk"

// CryptoFractional allocates a fixed equity fraction with exchange lot rules:
// the raw quantity is floored to a multiple of step_qty and orders below
// min_qty are dropped entirely.
//
//	qty = floor_to_step(equity * crypto_fraction / price, step_qty)
type CryptoFractional struct{}

func (CryptoFractional) Name() string { return "crypto_fractional" }

func (CryptoFractional) Size(signals []risk.Signal, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) []risk.Order {
	allocation := portfolio.Equity(market).Mul(decimalFromFloat(cfg.CryptoFraction))

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
		if cfg.StepQty.IsPositive() {
			qty = qty.Div(cfg.StepQty).Floor().Mul(cfg.StepQty)
		}
		if !qty.IsPositive() || qty.LessThan(cfg.MinQty) {
			continue
		}
		orders = append(orders, risk.NewOrder(s.Symbol, sideFor(s.Direction), qty, price, s.Strength, s.Timestamp))
	}
	return orders
}
