package constraints

import (
	"fmt"
	"sort"

	"ballast/internal/risk"
)

// MaxPositions limits the total number of distinct positions. Orders against
// symbols already held always pass; orders opening new positions compete for
// the remaining slots, strongest signal first. Ties keep the earlier order.
type MaxPositions struct{}

func (MaxPositions) Name() string { return "max_positions" }

func (MaxPositions) Apply(orders []risk.Order, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) risk.Outcome {
	if cfg.MaxPositions <= 0 {
		return passAll(orders)
	}

	var opening []int
	seen := make(map[string]bool)
	for i, o := range orders {
		if portfolio.PositionQty(o.Symbol).IsZero() && !seen[o.Symbol] {
			opening = append(opening, i)
			seen[o.Symbol] = true
		}
	}

	room := cfg.MaxPositions - heldPositionCount(portfolio)
	if room < 0 {
		room = 0
	}
	if len(opening) <= room {
		return passAll(orders)
	}

	ranked := make([]int, len(opening))
	copy(ranked, opening)
	sort.SliceStable(ranked, func(a, b int) bool {
		return orders[ranked[a]].Strength > orders[ranked[b]].Strength
	})

	dropped := make(map[int]bool)
	for _, idx := range ranked[room:] {
		dropped[idx] = true
	}

	var out risk.Outcome
	for i, o := range orders {
		if dropped[i] {
			out.Rejections = append(out.Rejections, risk.Rejection{
				Symbol: o.Symbol,
				Reason: fmt.Sprintf("portfolio at max positions (%d)", cfg.MaxPositions),
			})
			continue
		}
		out.Orders = append(out.Orders, o)
	}
	return out
}
