package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EvaluateHalt recomputes the trading-halt state from caller-supplied marks.
// It holds no history: the caller owns high-water-mark and day-start equity
// persistence. Checks run in severity order: equity floor, drawdown, daily loss.
func EvaluateHalt(equity decimal.Decimal, cfg Config, marks Marks) (bool, string) {
	if !equity.IsPositive() {
		return true, fmt.Sprintf("equity floor breached: equity is %s", equity)
	}

	if marks.HighWaterMark.Valid && marks.HighWaterMark.Decimal.IsPositive() {
		hwm := marks.HighWaterMark.Decimal
		threshold := hwm.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(cfg.MaxDrawdownHalt)))
		if equity.LessThan(threshold) {
			drawdown := hwm.Sub(equity).Div(hwm)
			return true, fmt.Sprintf("drawdown %s exceeds limit %.2f (hwm=%s equity=%s)",
				drawdown.Round(4), cfg.MaxDrawdownHalt, hwm, equity)
		}
	}

	if cfg.MaxDailyLossHalt > 0 && marks.DayStartEquity.Valid && marks.DayStartEquity.Decimal.IsPositive() {
		dayStart := marks.DayStartEquity.Decimal
		loss := dayStart.Sub(equity).Div(dayStart)
		if loss.GreaterThanOrEqual(decimal.NewFromFloat(cfg.MaxDailyLossHalt)) {
			return true, fmt.Sprintf("daily loss %s exceeds limit %.2f", loss.Round(4), cfg.MaxDailyLossHalt)
		}
	}

	return false, ""
}
