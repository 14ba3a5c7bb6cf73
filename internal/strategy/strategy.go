// Package strategy implements trading decision rules.
package strategy

import (
	"github.com/shopspring/decimal"

	"sessiontrader/internal/types"
	"sessiontrader/pkg/indicator"
)

// Indicators is the named indicator state computed from candle history.
// Series are ordered most-recent first, matching candle ordering.
type Indicators struct {
	MACD []indicator.MACDValue
	EMA  map[int][]decimal.Decimal
	RSI  []decimal.Decimal
}

// Decision is the transient value a decision function produces for one
// tick. A nil *Decision means no opinion at all. OrderTypeNone means the
// decision carries no actionable order update (it may still move the
// order point); OrderTypeWait is an explicit cancel signal.
type Decision struct {
	Side           types.Side
	OrderType      types.OrderType
	Description    string
	Price          decimal.Decimal
	StopPrice      decimal.Decimal
	StopLimitPrice decimal.Decimal

	// OrderPoint visualises progress through multi-step conditions.
	OrderPoint    string
	HasOrderPoint bool

	// SellFraction is the share of the last filled quantity to sell.
	// Zero sells the full quantity.
	SellFraction decimal.Decimal
}

// HasPrice reports whether the decision carries a price field.
func (d *Decision) HasPrice() bool {
	return !d.Price.IsZero()
}

// DecisionFunc evaluates one side of one position type for a tick.
type DecisionFunc func(cp types.PositionContext, ind Indicators, prices types.PriceBook, candles []types.Candle) *Decision

// Table is the side × position-type lookup of decision functions. The
// trade manager resolves exactly one cell per context per tick.
type Table struct {
	LongEntry  DecisionFunc
	LongExit   DecisionFunc
	ShortEntry DecisionFunc
	ShortExit  DecisionFunc
}

// Resolve returns the decision function for the context's current side
// and position type. BUY resolves to entry conditions, SELL to exit.
func (t Table) Resolve(side types.Side, position types.PositionType) DecisionFunc {
	if side == types.SideSell {
		if position == types.PositionShort {
			return t.ShortExit
		}
		return t.LongExit
	}
	if position == types.PositionShort {
		return t.ShortEntry
	}
	return t.LongEntry
}

// Rules is the strategy collaborator the session drives each tick.
type Rules interface {
	// Indicators computes the named indicator series from candle
	// history (most-recent first).
	Indicators(candles []types.Candle) Indicators

	// Table returns the decision lookup table, resolved once per tick.
	Table() Table

	// OtherConditions is the custom-condition hook run for every
	// position type before decisions are evaluated. It re-derives
	// CanOrder and clears a COMPLETE_TRADE market status.
	OtherConditions(cp types.PositionContext, ledger []types.TradeRecord, position types.PositionType, candles []types.Candle, ind Indicators) types.PositionContext

	// Name returns the rules identifier.
	Name() string
}
