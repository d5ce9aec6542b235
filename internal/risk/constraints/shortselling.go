package constraints

import "ballast/internal/risk"

// ShortSelling keeps the book long-only when shorting is disabled. Sells may
// close an existing long but never open a short: a sell above the held
// quantity is trimmed to the position, so even a flip into a smaller short is
// cut at flat. The net-effect exposure classification deliberately does not
// apply here.
type ShortSelling struct{}

func (ShortSelling) Name() string { return "short_selling" }

func (ShortSelling) Apply(orders []risk.Order, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) risk.Outcome {
	if cfg.AllowShorts {
		return passAll(orders)
	}

	var out risk.Outcome
	for _, o := range orders {
		if o.Side != risk.SideSell {
			out.Orders = append(out.Orders, o)
			continue
		}
		current := portfolio.PositionQty(o.Symbol)
		if !current.IsPositive() {
			out.Rejections = append(out.Rejections, risk.Rejection{Symbol: o.Symbol, Reason: "shorting disabled"})
			continue
		}
		if o.Quantity.GreaterThan(current) {
			price, ok := priceFor(market, o.Symbol)
			if !ok {
				price = o.Notional.Div(o.Quantity)
			}
			out.Orders = append(out.Orders, o.WithQuantity(current, price))
			out.Rejections = append(out.Rejections, risk.Rejection{Symbol: o.Symbol, Reason: "short leg trimmed, shorting disabled"})
			continue
		}
		out.Orders = append(out.Orders, o)
	}
	return out
}
