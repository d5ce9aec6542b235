package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config holds every risk parameter. Percentages are fractions (0.05 = 5%).
// Zero-config use is valid: DefaultConfig returns a conservative starting
// point and a zero value for the optional knobs means disabled.
type Config struct {
	// Position limits.
	MaxPositionPct   float64         `json:"max_position_pct" mapstructure:"max_position_pct"`
	MaxPositions     int             `json:"max_positions" mapstructure:"max_positions"`
	MinPositionValue decimal.Decimal `json:"min_position_value" mapstructure:"min_position_value"`

	// Exposure limits.
	MaxSectorPct     float64 `json:"max_sector_pct" mapstructure:"max_sector_pct"`
	MaxGrossLeverage float64 `json:"max_gross_leverage" mapstructure:"max_gross_leverage"`
	MaxNetLeverage   float64 `json:"max_net_leverage" mapstructure:"max_net_leverage"`
	// MaxCorrelation <= 0 disables the correlation constraint.
	MaxCorrelation float64 `json:"max_correlation" mapstructure:"max_correlation"`

	// Sizing parameters.
	RiskPerTrade  float64 `json:"risk_per_trade" mapstructure:"risk_per_trade"`
	KellyFraction float64 `json:"kelly_fraction" mapstructure:"kelly_fraction"`

	// Crypto fractional sizing.
	CryptoFraction float64         `json:"crypto_fraction" mapstructure:"crypto_fraction"`
	MinQty         decimal.Decimal `json:"min_qty" mapstructure:"min_qty"`
	StepQty        decimal.Decimal `json:"step_qty" mapstructure:"step_qty"`

	// Protective levels. TakeProfitATRMult <= 0 disables take-profits.
	StopLossATRMult   float64 `json:"stop_loss_atr_mult" mapstructure:"stop_loss_atr_mult"`
	TakeProfitATRMult float64 `json:"take_profit_atr_mult" mapstructure:"take_profit_atr_mult"`

	// Halts. MaxDailyLossHalt <= 0 disables the daily-loss halt.
	MaxDrawdownHalt  float64 `json:"max_drawdown_halt" mapstructure:"max_drawdown_halt"`
	MaxDailyLossHalt float64 `json:"max_daily_loss_halt" mapstructure:"max_daily_loss_halt"`

	// Trading rules and cost assumptions.
	AllowShorts   bool    `json:"allow_shorts" mapstructure:"allow_shorts"`
	CommissionPct float64 `json:"commission_pct" mapstructure:"commission_pct"`
}

// DefaultConfig returns the zero-config defaults.
func DefaultConfig() Config {
	return Config{
		MaxPositionPct:   0.05,
		MaxPositions:     50,
		MinPositionValue: decimal.NewFromInt(100),
		MaxSectorPct:     0.30,
		MaxGrossLeverage: 1.0,
		MaxNetLeverage:   1.0,
		MaxCorrelation:   0,
		RiskPerTrade:     0.01,
		KellyFraction:    0.25,
		CryptoFraction:   0.02,
		MinQty:           decimal.RequireFromString("0.0001"),
		StepQty:          decimal.RequireFromString("0.0001"),
		StopLossATRMult:  2.0,
		MaxDrawdownHalt:  0.15,
		AllowShorts:      true,
	}
}

// Validate checks every field against its valid domain. Violations are input
// errors, not risk decisions.
func (c Config) Validate() error {
	checks := []struct {
		ok     bool
		field  string
		reason string
	}{
		{c.MaxPositionPct > 0 && c.MaxPositionPct <= 1, "max_position_pct", "must be in (0, 1]"},
		{c.MaxPositions > 0, "max_positions", "must be positive"},
		{!c.MinPositionValue.IsNegative(), "min_position_value", "must be >= 0"},
		{c.MaxSectorPct > 0 && c.MaxSectorPct <= 1, "max_sector_pct", "must be in (0, 1]"},
		{c.MaxGrossLeverage > 0, "max_gross_leverage", "must be positive"},
		{c.MaxNetLeverage > 0, "max_net_leverage", "must be positive"},
		{c.MaxCorrelation <= 1, "max_correlation", "must be <= 1"},
		{c.RiskPerTrade > 0 && c.RiskPerTrade <= 1, "risk_per_trade", "must be in (0, 1]"},
		{c.KellyFraction > 0 && c.KellyFraction <= 1, "kelly_fraction", "must be in (0, 1]"},
		{c.CryptoFraction > 0 && c.CryptoFraction <= 1, "crypto_fraction", "must be in (0, 1]"},
		{c.MinQty.IsPositive(), "min_qty", "must be positive"},
		{c.StepQty.IsPositive(), "step_qty", "must be positive"},
		{c.StopLossATRMult > 0, "stop_loss_atr_mult", "must be positive"},
		{c.TakeProfitATRMult >= 0, "take_profit_atr_mult", "must be >= 0"},
		{c.MaxDrawdownHalt > 0 && c.MaxDrawdownHalt <= 1, "max_drawdown_halt", "must be in (0, 1]"},
		{c.MaxDailyLossHalt >= 0 && c.MaxDailyLossHalt <= 1, "max_daily_loss_halt", "must be in [0, 1]"},
		{c.CommissionPct >= 0 && c.CommissionPct < 1, "commission_pct", "must be in [0, 1)"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return &InputError{Field: "config." + chk.field, Reason: chk.reason}
		}
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("risk.Config{max_position_pct=%.4f max_positions=%d max_gross=%.2fx risk_per_trade=%.4f dd_halt=%.2f}",
		c.MaxPositionPct, c.MaxPositions, c.MaxGrossLeverage, c.RiskPerTrade, c.MaxDrawdownHalt)
}
