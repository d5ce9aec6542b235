package constraints

import (
	"fmt"

	"ballast/internal/risk"

	"github.com/shopspring/decimal"
)

// BuyingPower keeps total buy cost, including commission, within available
// cash. Sells pass untouched; when buys exceed cash every buy is scaled by
// the same factor so relative sizing survives.
type BuyingPower struct{}

func (BuyingPower) Name() string { return "buying_power" }

func (BuyingPower) Apply(orders []risk.Order, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) risk.Outcome {
	costMult := decimal.NewFromInt(1).Add(decimal.NewFromFloat(cfg.CommissionPct))

	totalCost := decimal.Zero
	for _, o := range orders {
		if o.Side == risk.SideBuy {
			totalCost = totalCost.Add(o.Notional.Mul(costMult))
		}
	}
	if totalCost.LessThanOrEqual(portfolio.Cash) {
		return passAll(orders)
	}

	var out risk.Outcome
	if !portfolio.Cash.IsPositive() {
		for _, o := range orders {
			if o.Side == risk.SideBuy {
				out.Rejections = append(out.Rejections, risk.Rejection{Symbol: o.Symbol, Reason: "no buying power"})
				continue
			}
			out.Orders = append(out.Orders, o)
		}
		return out
	}

	scale := portfolio.Cash.Div(totalCost)
	for _, o := range orders {
		if o.Side != risk.SideBuy {
			out.Orders = append(out.Orders, o)
			continue
		}
		price := o.Notional.Div(o.Quantity)
		scaled := o.Quantity.Mul(scale)
		out.Orders = append(out.Orders, o.WithQuantity(scaled, price))
		out.Rejections = append(out.Rejections, risk.Rejection{
			Symbol: o.Symbol,
			Reason: fmt.Sprintf("scaled from %s to %s (insufficient buying power)", o.Quantity, scaled),
		})
	}
	return out
}
