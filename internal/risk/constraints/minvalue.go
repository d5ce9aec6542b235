package constraints

import (
	"fmt"

	"ballast/internal/risk"
)

// MinPositionValue drops exposure-increasing orders whose notional is below
// the configured floor. Tiny orders cost more in fees and churn than they
// contribute.
type MinPositionValue struct{}

func (MinPositionValue) Name() string { return "min_position_value" }

func (MinPositionValue) Apply(orders []risk.Order, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) risk.Outcome {
	if !cfg.MinPositionValue.IsPositive() {
		return passAll(orders)
	}

	var out risk.Outcome
	for _, o := range orders {
		if risk.ReducesExposure(o, portfolio) || o.Notional.GreaterThanOrEqual(cfg.MinPositionValue) {
			out.Orders = append(out.Orders, o)
			continue
		}
		out.Rejections = append(out.Rejections, risk.Rejection{
			Symbol: o.Symbol,
			Reason: fmt.Sprintf("notional %s below minimum %s", o.Notional, cfg.MinPositionValue),
		})
	}
	return out
}
