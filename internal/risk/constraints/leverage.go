package constraints

import (
	"fmt"

	"ballast/internal/risk"

	"github.com/shopspring/decimal"
)

// GrossLeverage keeps gross exposure, current positions plus new orders,
// within max_gross_leverage times equity. Exposure-increasing orders are
// scaled proportionally into the remaining capacity; reducing orders pass.
type GrossLeverage struct{}

func (GrossLeverage) Name() string { return "gross_leverage" }

func (GrossLeverage) Apply(orders []risk.Order, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) risk.Outcome {
	equity := portfolio.Equity(market)
	maxExposure := equity.Mul(decimal.NewFromFloat(cfg.MaxGrossLeverage))
	capacity := maxExposure.Sub(grossExposure(portfolio, market))

	increasing := make([]int, 0, len(orders))
	added := decimal.Zero
	for i, o := range orders {
		if risk.ReducesExposure(o, portfolio) {
			continue
		}
		increasing = append(increasing, i)
		added = added.Add(o.Notional)
	}
	if len(increasing) == 0 || added.LessThanOrEqual(capacity) {
		return passAll(orders)
	}

	var out risk.Outcome
	if !capacity.IsPositive() {
		skip := make(map[int]bool, len(increasing))
		for _, i := range increasing {
			skip[i] = true
			out.Rejections = append(out.Rejections, risk.Rejection{Symbol: orders[i].Symbol, Reason: "gross leverage limit reached"})
		}
		for i, o := range orders {
			if !skip[i] {
				out.Orders = append(out.Orders, o)
			}
		}
		return out
	}

	scale := capacity.Div(added)
	scaled := make(map[int]bool, len(increasing))
	for _, i := range increasing {
		scaled[i] = true
	}
	for i, o := range orders {
		if !scaled[i] {
			out.Orders = append(out.Orders, o)
			continue
		}
		price := o.Notional.Div(o.Quantity)
		qty := o.Quantity.Mul(scale)
		out.Orders = append(out.Orders, o.WithQuantity(qty, price))
		out.Rejections = append(out.Rejections, risk.Rejection{
			Symbol: o.Symbol,
			Reason: fmt.Sprintf("scaled from %s to %s (gross leverage cap %.2fx)", o.Quantity, qty, cfg.MaxGrossLeverage),
		})
	}
	return out
}
