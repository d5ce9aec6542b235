package engine

import (
	"github.com/shopspring/decimal"

	"ballast/internal/logger"
	"ballast/internal/risk"
	"ballast/internal/risk/constraints"
	"ballast/internal/risk/sizers"
)

// Engine runs the full risk pipeline for one invocation: validate inputs,
// evaluate halt state, size the surviving signals, run the constraint chain
// in order, then attach stops and targets. It holds no cross-call state, so
// one Engine is safe for concurrent use.
type Engine struct {
	sizer       risk.Sizer
	constraints []risk.Constraint
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithSizer replaces the default volatility sizer.
func WithSizer(s risk.Sizer) Option {
	return func(e *Engine) { e.sizer = s }
}

// WithConstraints replaces the default constraint chain. Order matters:
// constraints run exactly in the order given.
func WithConstraints(cs ...risk.Constraint) Option {
	return func(e *Engine) { e.constraints = cs }
}

// DefaultConstraints is the standard chain. Per-order checks run before
// portfolio-wide ones so cheap rejections happen first, and buying power runs
// after the position caps so scaling compounds in a predictable order.
func DefaultConstraints() []risk.Constraint {
	return []risk.Constraint{
		constraints.ShortSelling{},
		constraints.MinPositionValue{},
		constraints.MaxPosition{},
		constraints.MaxPositions{},
		constraints.BuyingPower{},
		constraints.GrossLeverage{},
		constraints.NetLeverage{},
	}
}

// New builds an Engine with the volatility sizer and default chain unless
// options override them.
func New(opts ...Option) *Engine {
	e := &Engine{
		sizer:       sizers.Volatility{},
		constraints: DefaultConstraints(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process converts signals into a sized, constrained result. It is pure with
// respect to its inputs: identical inputs yield an identical result. The only
// error it returns is a malformed input; data gaps and policy rejections
// shape the result instead of failing it.
func (e *Engine) Process(signals []risk.Signal, portfolio risk.PortfolioState, market risk.MarketState, cfg risk.Config, marks risk.Marks) (*risk.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := risk.ValidateSignals(signals); err != nil {
		return nil, err
	}
	if err := risk.ValidatePortfolio(portfolio); err != nil {
		return nil, err
	}
	if err := risk.ValidateMarket(market); err != nil {
		return nil, err
	}

	equity := portfolio.Equity(market)
	halted, reason := risk.EvaluateHalt(equity, cfg, marks)
	if halted {
		logger.Warnf("trading halted: %s", reason)
		// Only exposure-reducing signals survive a halt; new risk waits until
		// the halt clears.
		filtered := make([]risk.Signal, 0, len(signals))
		for _, s := range signals {
			if risk.SignalReducesExposure(s, portfolio) {
				filtered = append(filtered, s)
			}
		}
		signals = filtered
	}

	orders := e.sizer.Size(signals, portfolio, market, cfg)
	if halted {
		orders = closeOnly(orders, portfolio)
	}

	violations := make(map[string][]string)
	for _, c := range e.constraints {
		outcome := c.Apply(orders, portfolio, market, cfg)
		for _, rej := range outcome.Rejections {
			logger.Debugf("constraint %s rejected %s: %s", c.Name(), rej.Symbol, rej.Reason)
			violations[c.Name()] = append(violations[c.Name()], rej.Symbol+": "+rej.Reason)
		}
		orders = outcome.Orders
	}

	stops, targets := protectiveLevels(orders, market, cfg)

	res := &risk.Result{
		Orders:      orders,
		StopLosses:  stops,
		TakeProfits: targets,
		Halted:      halted,
		HaltReason:  reason,
	}
	if len(violations) > 0 {
		res.Violations = violations
	}
	return res, nil
}

// closeOnly caps each order at the held quantity. During a halt the book may
// only shrink toward flat, so a sized order larger than the position it trades
// against is trimmed and orders without a position are dropped.
func closeOnly(orders []risk.Order, portfolio risk.PortfolioState) []risk.Order {
	out := make([]risk.Order, 0, len(orders))
	for _, o := range orders {
		held := portfolio.PositionQty(o.Symbol).Abs()
		if !held.IsPositive() {
			continue
		}
		if o.Quantity.GreaterThan(held) {
			price := o.Notional.Div(o.Quantity)
			logger.Debugf("halt: trimming %s %s from %s to %s", o.Symbol, o.Side, o.Quantity, held)
			o = o.WithQuantity(held, price)
		}
		out = append(out, o)
	}
	return out
}

// protectiveLevels computes per-symbol stop and target prices from the latest
// close and ATR. Symbols without a bar or volatility entry are skipped.
// Targets are omitted entirely when the take-profit multiple is disabled.
func protectiveLevels(orders []risk.Order, market risk.MarketState, cfg risk.Config) (stops, targets map[string]decimal.Decimal) {
	stops = make(map[string]decimal.Decimal)
	if cfg.TakeProfitATRMult > 0 {
		targets = make(map[string]decimal.Decimal)
	}
	for _, o := range orders {
		bar, ok := market.Bars[o.Symbol]
		if !ok || !bar.Close.IsPositive() {
			continue
		}
		atr, ok := market.Volatility[o.Symbol]
		if !ok || !atr.IsPositive() {
			continue
		}
		stops[o.Symbol] = risk.StopLoss(o.Side, bar.Close, atr, cfg.StopLossATRMult)
		if targets != nil {
			targets[o.Symbol] = risk.TakeProfit(o.Side, bar.Close, atr, cfg.TakeProfitATRMult)
		}
	}
	return stops, targets
}
