package risk

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the directional intent of a signal.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Side is the execution side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Signal is a candidate trade produced by an upstream signal generator.
// Strength is a confidence proxy in [0, 1] (Kelly treats it as win probability).
type Signal struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"`
	Timestamp time.Time `json:"timestamp"`
}

// Bar is the latest OHLCV bar for a symbol. Prices are decimal because every
// downstream money computation is decimal.
type Bar struct {
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// Position is a single holding. Quantity is signed: positive long, negative short.
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
}

// PortfolioState is an immutable per-invocation snapshot of holdings.
// The caller owns mutation between invocations.
type PortfolioState struct {
	Cash      decimal.Decimal     `json:"cash"`
	Positions map[string]Position `json:"positions"`
	Timestamp time.Time           `json:"timestamp"`
}

// PositionQty returns the signed held quantity for symbol, zero when flat.
func (p PortfolioState) PositionQty(symbol string) decimal.Decimal {
	if pos, ok := p.Positions[symbol]; ok {
		return pos.Quantity
	}
	return decimal.Zero
}

// Equity marks the portfolio to market: cash plus the signed value of every
// position at the latest close. Positions without a current bar fall back to
// their average entry price so a data gap never zeroes out a holding.
func (p PortfolioState) Equity(market MarketState) decimal.Decimal {
	equity := p.Cash
	for symbol, pos := range p.Positions {
		price := pos.AvgEntryPrice
		if bar, ok := market.Bars[symbol]; ok {
			price = bar.Close
		}
		equity = equity.Add(pos.Quantity.Mul(price))
	}
	return equity
}

// MarketState is the per-invocation market snapshot. Bars and Volatility are
// required for sizing; the remaining maps are optional and their absence turns
// the constraints that need them into no-ops.
type MarketState struct {
	Bars         map[string]Bar                `json:"bars"`
	Volatility   map[string]decimal.Decimal    `json:"volatility"`
	Liquidity    map[string]decimal.Decimal    `json:"liquidity"`
	Sectors      map[string]string             `json:"sectors,omitempty"`
	BorrowRates  map[string]float64            `json:"borrow_rates,omitempty"`
	Correlations map[string]map[string]float64 `json:"correlations,omitempty"`
	Regime       string                        `json:"regime,omitempty"`
	Timestamp    time.Time                     `json:"timestamp"`
}

// Correlation looks up the pairwise correlation between two symbols in either
// orientation. The second return is false when the pair is absent.
func (m MarketState) Correlation(a, b string) (float64, bool) {
	if row, ok := m.Correlations[a]; ok {
		if c, ok := row[b]; ok {
			return c, true
		}
	}
	if row, ok := m.Correlations[b]; ok {
		if c, ok := row[a]; ok {
			return c, true
		}
	}
	return 0, false
}

// Order is a sized candidate order. Quantity is unsigned; Side carries the
// direction. Constraints may shrink Quantity (and Notional with it) or drop
// the order, never grow it.
type Order struct {
	ClientOrderID string          `json:"client_order_id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Strength      float64         `json:"strength"`
	Notional      decimal.Decimal `json:"notional"`
	Timestamp     time.Time       `json:"timestamp"`
}

// orderIDNamespace keeps client order IDs deterministic: identical inputs must
// produce a byte-identical result, so IDs are name-based UUIDs rather than random.
var orderIDNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// NewOrder builds an order for qty units at price, deriving notional and a
// deterministic client order ID. Quantity is part of the seed so two
// same-side orders for one symbol at one timestamp still get distinct IDs.
func NewOrder(symbol string, side Side, qty, price decimal.Decimal, strength float64, ts time.Time) Order {
	seed := symbol + "|" + string(side) + "|" + qty.String() + "|" + ts.UTC().Format(time.RFC3339Nano)
	return Order{
		ClientOrderID: uuid.NewSHA1(orderIDNamespace, []byte(seed)).String(),
		Symbol:        symbol,
		Side:          side,
		Quantity:      qty,
		Strength:      strength,
		Notional:      qty.Mul(price),
		Timestamp:     ts,
	}
}

// WithQuantity returns a copy scaled to qty with notional recomputed at price.
func (o Order) WithQuantity(qty, price decimal.Decimal) Order {
	o.Quantity = qty
	o.Notional = qty.Mul(price)
	return o
}

// SignedQty maps the order onto the position axis: buys positive, sells negative.
func (o Order) SignedQty() decimal.Decimal {
	if o.Side == SideSell {
		return o.Quantity.Neg()
	}
	return o.Quantity
}

// ReducesExposure reports whether applying the order shrinks the absolute
// position for its symbol. A sell that flips a long into a smaller short still
// counts as reducing; classification is by net effect.
func ReducesExposure(o Order, portfolio PortfolioState) bool {
	current := portfolio.PositionQty(o.Symbol)
	resulting := current.Add(o.SignedQty())
	return resulting.Abs().LessThan(current.Abs())
}

// SignalReducesExposure reports whether a signal, if sized, would trade against
// an existing position: a short signal into a long holding or a long signal
// into a short holding.
func SignalReducesExposure(s Signal, portfolio PortfolioState) bool {
	current := portfolio.PositionQty(s.Symbol)
	switch s.Direction {
	case DirectionShort:
		return current.IsPositive()
	case DirectionLong:
		return current.IsNegative()
	}
	return false
}

// Marks carries the caller-owned reference equities for halt evaluation.
type Marks struct {
	HighWaterMark  decimal.NullDecimal `json:"high_water_mark"`
	DayStartEquity decimal.NullDecimal `json:"day_start_equity"`
}

// Rejection records why a constraint dropped or shrank an order.
type Rejection struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Outcome is the structured result of one constraint application.
type Outcome struct {
	Orders     []Order
	Rejections []Rejection
}

// Result is the immutable output of one pipeline invocation.
type Result struct {
	Orders      []Order                    `json:"orders"`
	StopLosses  map[string]decimal.Decimal `json:"stop_losses"`
	TakeProfits map[string]decimal.Decimal `json:"take_profits"`
	Halted      bool                       `json:"halted"`
	HaltReason  string                     `json:"halt_reason,omitempty"`
	Violations  map[string][]string        `json:"violations,omitempty"`
}

// Sizer turns signals into candidate orders. Implementations are stateless and
// must preserve the input signal order; signals lacking required market data
// are skipped, not errors.
type Sizer interface {
	Name() string
	Size(signals []Signal, portfolio PortfolioState, market MarketState, cfg Config) []Order
}

// Constraint filters or scales a full candidate order set. Implementations see
// the whole batch because several limits need cross-order visibility. They may
// shrink or drop orders but never grow quantities or add orders. Risk-limit
// constraints pass exposure-reducing orders unmodified; ShortSelling is the
// one rule-based exception, capping sells at the held long so a reducing flip
// still cannot open a short.
type Constraint interface {
	Name() string
	Apply(orders []Order, portfolio PortfolioState, market MarketState, cfg Config) Outcome
}
