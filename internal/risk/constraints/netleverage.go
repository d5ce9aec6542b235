package constraints

import (
	"fmt"

	"ballast/internal/risk"

	"github.com/shopspring/decimal"
)

// NetLeverage bounds |net exposure| at max_net_leverage times equity. Only
// orders pushing net exposure further from zero in its own direction are
// scaled; everything else passes.
type NetLeverage struct{}

func (NetLeverage) Name() string { return "net_leverage" }

func (NetLeverage) Apply(orders []risk.Order, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) risk.Outcome {
	equity := portfolio.Equity(market)
	maxNet := equity.Mul(decimal.NewFromFloat(cfg.MaxNetLeverage))
	net := netExposure(portfolio, market)

	// Projected net after all orders decides whether anything needs trimming.
	projected := net
	for _, o := range orders {
		projected = projected.Add(o.SignedQty().Mul(o.Notional.Div(o.Quantity)))
	}
	if projected.Abs().LessThanOrEqual(maxNet) {
		return passAll(orders)
	}

	// Scale the orders pushing net in the breaching direction.
	breachSign := projected.Sign()
	pushing := make(map[int]bool)
	pushed := decimal.Zero
	for i, o := range orders {
		delta := o.SignedQty().Mul(o.Notional.Div(o.Quantity))
		if delta.Sign() == breachSign && !risk.ReducesExposure(o, portfolio) {
			pushing[i] = true
			pushed = pushed.Add(delta.Abs())
		}
	}
	if len(pushing) == 0 || !pushed.IsPositive() {
		return passAll(orders)
	}

	// Capacity left for pushing orders once passive flow is accounted for.
	var base, capacity decimal.Decimal
	if breachSign > 0 {
		base = projected.Sub(pushed)
		capacity = maxNet.Sub(base)
	} else {
		base = projected.Add(pushed)
		capacity = maxNet.Add(base)
	}

	var out risk.Outcome
	if !capacity.IsPositive() {
		for i, o := range orders {
			if pushing[i] {
				out.Rejections = append(out.Rejections, risk.Rejection{Symbol: o.Symbol, Reason: "net leverage limit reached"})
				continue
			}
			out.Orders = append(out.Orders, o)
		}
		return out
	}

	scale := capacity.Div(pushed)
	if scale.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return passAll(orders)
	}
	for i, o := range orders {
		if !pushing[i] {
			out.Orders = append(out.Orders, o)
			continue
		}
		price := o.Notional.Div(o.Quantity)
		qty := o.Quantity.Mul(scale)
		out.Orders = append(out.Orders, o.WithQuantity(qty, price))
		out.Rejections = append(out.Rejections, risk.Rejection{
			Symbol: o.Symbol,
			Reason: fmt.Sprintf("scaled from %s to %s (net leverage cap %.2fx)", o.Quantity, qty, cfg.MaxNetLeverage),
		})
	}
	return out
}
