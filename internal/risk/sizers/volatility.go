package sizers

import "ballast/internal/risk"

// Volatility scales position size inversely with ATR so every trade risks
// roughly the same fraction of equity:
//
//	qty = (equity * risk_per_trade) / (ATR * price)
//
// Higher volatility means a smaller position. This is the default sizer.
type Volatility struct{}

func (Volatility) Name() string { return "volatility" }

func (Volatility) Size(signals []risk.Signal, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) []risk.Order {
	equity := portfolio.Equity(market)
	riskAmount := equity.Mul(decimalFromFloat(cfg.RiskPerTrade))

	orders := make([]risk.Order, 0, len(signals))
	for _, s := range signals {
		if !sizable(s) {
			continue
		}
		price, ok := barClose(market, s.Symbol)
		if !ok {
			continue
		}
		atr, ok := volatility(market, s.Symbol)
		if !ok {
			continue
		}
		divisor := atr.Mul(price)
		if !divisor.IsPositive() {
			continue
		}
		qty := riskAmount.Div(divisor)
		if !qty.IsPositive() {
			continue
		}
		orders = append(orders, risk.NewOrder(s.Symbol, sideFor(s.Direction), qty, price, s.Strength, s.Timestamp))
	}
	return orders
}
