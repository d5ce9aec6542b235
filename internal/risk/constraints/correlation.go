package constraints

import (
	"fmt"
	"math"

	"ballast/internal/risk"
)

// Correlation drops one of each pair of exposure-increasing orders whose
// symbols correlate beyond max_correlation: the weaker signal loses, ties
// keep the earlier order. A no-op when correlation data is absent or the
// limit is disabled.
type Correlation struct{}

func (Correlation) Name() string { return "correlation" }

func (Correlation) Apply(orders []risk.Order, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config) risk.Outcome {
	if cfg.MaxCorrelation <= 0 || len(market.Correlations) == 0 {
		return passAll(orders)
	}

	var increasing []int
	for i, o := range orders {
		if !risk.ReducesExposure(o, portfolio) {
			increasing = append(increasing, i)
		}
	}

	dropped := make(map[int]string)
	for ai := 0; ai < len(increasing); ai++ {
		i := increasing[ai]
		if _, gone := dropped[i]; gone {
			continue
		}
		for bi := ai + 1; bi < len(increasing); bi++ {
			j := increasing[bi]
			if _, gone := dropped[j]; gone {
				continue
			}
			corr, ok := market.Correlation(orders[i].Symbol, orders[j].Symbol)
			if !ok || math.Abs(corr) <= cfg.MaxCorrelation {
				continue
			}
			loser := j
			if orders[i].Strength < orders[j].Strength {
				loser = i
			}
			winner := i + j - loser
			dropped[loser] = fmt.Sprintf("correlation %.2f with %s exceeds %.2f", corr, orders[winner].Symbol, cfg.MaxCorrelation)
			if loser == i {
				break
			}
		}
	}
	if len(dropped) == 0 {
		return passAll(orders)
	}

	var out risk.Outcome
	for i, o := range orders {
		if reason, gone := dropped[i]; gone {
			out.Rejections = append(out.Rejections, risk.Rejection{Symbol: o.Symbol, Reason: reason})
			continue
		}
		out.Orders = append(out.Orders, o)
	}
	return out
}
