package constraints

import (
	"fmt"

	"ballast/internal/risk"

	"github.com/shopspring/decimal"
)

// Sector caps exposure per sector at max_sector_pct of equity. Symbols
// without a sector mapping are unconstrained, and the whole check is a no-op
// when no sector data is supplied. Orders fill sector capacity in input
// order; an order that would breach its cap is scaled to the remainder.
type Sector struct{}

func (Sector) Name() string { return "sector" }

func (Sector) Apply(orders []risk.Order, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) risk.Outcome {
	if len(market.Sectors) == 0 || cfg.MaxSectorPct <= 0 {
		return passAll(orders)
	}

	equity := portfolio.Equity(market)
	cap := equity.Mul(decimal.NewFromFloat(cfg.MaxSectorPct))

	used := make(map[string]decimal.Decimal)
	for _, pos := range portfolio.Positions {
		sector, ok := market.Sectors[pos.Symbol]
		if !ok || pos.Quantity.IsZero() {
			continue
		}
		used[sector] = sectorUsed(used, sector).Add(pos.Quantity.Abs().Mul(markPrice(market, pos)))
	}

	var out risk.Outcome
	for _, o := range orders {
		sector, ok := market.Sectors[o.Symbol]
		if !ok || risk.ReducesExposure(o, portfolio) {
			out.Orders = append(out.Orders, o)
			continue
		}
		remaining := cap.Sub(sectorUsed(used, sector))
		if o.Notional.LessThanOrEqual(remaining) {
			out.Orders = append(out.Orders, o)
			used[sector] = sectorUsed(used, sector).Add(o.Notional)
			continue
		}
		if !remaining.IsPositive() {
			out.Rejections = append(out.Rejections, risk.Rejection{
				Symbol: o.Symbol,
				Reason: fmt.Sprintf("sector %s at cap (%.2f%% of equity)", sector, cfg.MaxSectorPct*100),
			})
			continue
		}
		price := o.Notional.Div(o.Quantity)
		qty := remaining.Div(price)
		out.Orders = append(out.Orders, o.WithQuantity(qty, price))
		out.Rejections = append(out.Rejections, risk.Rejection{
			Symbol: o.Symbol,
			Reason: fmt.Sprintf("scaled from %s to %s (sector %s cap)", o.Quantity, qty, sector),
		})
		used[sector] = cap
	}
	return out
}

func sectorUsed(used map[string]decimal.Decimal, sector string) decimal.Decimal {
	if v, ok := used[sector]; ok {
		return v
	}
	return decimal.Zero
}
