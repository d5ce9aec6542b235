package constraints

import (
	"fmt"

	"ballast/internal/risk"

	"github.com/shopspring/decimal"
)

// MaxPosition caps each resulting position at max_position_pct of equity.
// Exposure-reducing orders pass untouched; exposure-increasing orders are
// scaled down to the remaining room or dropped when no room is left.
type MaxPosition struct{}

func (MaxPosition) Name() string { return "max_position" }

func (MaxPosition) Apply(orders []risk.Order, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) risk.Outcome {
	equity := portfolio.Equity(market)
	cap := equity.Mul(decimal.NewFromFloat(cfg.MaxPositionPct))

	var out risk.Outcome
	for _, o := range orders {
		if risk.ReducesExposure(o, portfolio) {
			out.Orders = append(out.Orders, o)
			continue
		}
		price, ok := priceFor(market, o.Symbol)
		if !ok {
			out.Rejections = append(out.Rejections, risk.Rejection{Symbol: o.Symbol, Reason: "no bar data"})
			continue
		}
		current := portfolio.PositionQty(o.Symbol)
		resulting := current.Add(o.SignedQty()).Abs().Mul(price)
		if resulting.LessThanOrEqual(cap) {
			out.Orders = append(out.Orders, o)
			continue
		}

		// Room depends on whether the order builds on the current position or
		// flips through zero into the opposite direction.
		maxAbsQty := cap.Div(price)
		var allowed decimal.Decimal
		if current.IsZero() || current.Sign() == o.SignedQty().Sign() {
			allowed = maxAbsQty.Sub(current.Abs())
		} else {
			allowed = maxAbsQty.Add(current.Abs())
		}
		if !allowed.IsPositive() {
			out.Rejections = append(out.Rejections, risk.Rejection{
				Symbol: o.Symbol,
				Reason: fmt.Sprintf("position already at max (%.2f%% of equity)", cfg.MaxPositionPct*100),
			})
			continue
		}
		out.Orders = append(out.Orders, o.WithQuantity(allowed, price))
		out.Rejections = append(out.Rejections, risk.Rejection{
			Symbol: o.Symbol,
			Reason: fmt.Sprintf("scaled from %s to %s (max position %.2f%% of equity)", o.Quantity, allowed, cfg.MaxPositionPct*100),
		})
	}
	return out
}
