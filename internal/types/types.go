// Package types defines shared types used across the trading system.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradingMode selects the account the session trades against.
type TradingMode int

const (
	TradingSpot TradingMode = iota
	TradingMargin
)

func (m TradingMode) String() string {
	if m == TradingMargin {
		return "MARGIN"
	}
	return "SPOT"
}

// RunMode selects live execution or simulated fills.
type RunMode int

const (
	RunLive RunMode = iota
	RunSimulated
)

func (m RunMode) String() string {
	if m == RunSimulated {
		return "SIMULATED"
	}
	return "LIVE"
}

// Side represents the direction of an order.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "SELL"
	}
	return "BUY"
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PositionType distinguishes long and short position contexts.
// PositionNone marks a context with no active position type bound.
type PositionType int

const (
	PositionNone PositionType = iota
	PositionLong
	PositionShort
)

func (p PositionType) String() string {
	switch p {
	case PositionLong:
		return "LONG"
	case PositionShort:
		return "SHORT"
	default:
		return "NONE"
	}
}

// OrderType represents the kind of order a context currently tracks.
// OrderTypeNone means a decision carried no actionable order type at all,
// which is distinct from an explicit WAIT (cancel) signal.
type OrderType int

const (
	OrderTypeNone OrderType = iota
	OrderTypeWait
	OrderTypeMarket
	OrderTypeLimit
	OrderTypeStopLossLimit
	OrderTypeOCOLimit
	OrderTypeComplete
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeWait:
		return "WAIT"
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeStopLossLimit:
		return "STOP_LOSS_LIMIT"
	case OrderTypeOCOLimit:
		return "OCO_LIMIT"
	case OrderTypeComplete:
		return "COMPLETE"
	default:
		return "NONE"
	}
}

// OrderState represents the placement state of a context's order.
type OrderState int

const (
	OrderNone OrderState = iota
	OrderPlaced
	// OrderLocked freezes strategy-driven placement for the context
	// while a partial fill is unresolved.
	OrderLocked
)

func (s OrderState) String() string {
	switch s {
	case OrderPlaced:
		return "PLACED"
	case OrderLocked:
		return "LOCKED"
	default:
		return "NONE"
	}
}

// MarketStatus is the per-context trading status.
type MarketStatus int

const (
	MarketUnset MarketStatus = iota
	MarketTrading
	MarketCompleteTrade
)

func (s MarketStatus) String() string {
	switch s {
	case MarketTrading:
		return "TRADING"
	case MarketCompleteTrade:
		return "COMPLETE_TRADE"
	default:
		return "UNSET"
	}
}

// RuntimeState is the session-wide state machine value.
type RuntimeState int

const (
	StateSetup RuntimeState = iota
	StateRun
	StateStandby
	StateForceStandby
	StateForcePause
	StateForcePreventBuy
	StatePauseInsufficientBalance
	StateCheckOrders
	StateStop
)

func (s RuntimeState) String() string {
	switch s {
	case StateSetup:
		return "SETUP"
	case StateRun:
		return "RUN"
	case StateStandby:
		return "STANDBY"
	case StateForceStandby:
		return "FORCE_STANDBY"
	case StateForcePause:
		return "FORCE_PAUSE"
	case StateForcePreventBuy:
		return "FORCE_PREVENT_BUY"
	case StatePauseInsufficientBalance:
		return "PAUSE_INSUFFICIENT_BALANCE"
	case StateCheckOrders:
		return "CHECK_ORDERS"
	case StateStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the state ends the control loop.
func (s RuntimeState) IsTerminal() bool {
	return s == StateStop
}

// runtimeTransitions lists every legal runtime-state transition. Any
// transition not listed here is rejected by the session.
var runtimeTransitions = map[RuntimeState][]RuntimeState{
	StateSetup: {StateRun, StateStop},
	StateRun: {
		StateStandby, StateForceStandby, StateForcePause, StateForcePreventBuy,
		StatePauseInsufficientBalance, StateCheckOrders, StateStop,
	},
	StateStandby:                  {StateRun, StateStop},
	StateForceStandby:             {StateRun, StateStop},
	StateForcePause:               {StateRun, StateStop},
	StateForcePreventBuy:          {StateRun, StateStop},
	StatePauseInsufficientBalance: {StateRun, StateStop},
	StateCheckOrders:              {StateRun, StateStop},
	StateStop:                     {},
}

// CanTransition reports whether from → to is a legal runtime-state change.
func CanTransition(from, to RuntimeState) bool {
	if from == to {
		return true
	}
	for _, next := range runtimeTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Candle is one OHLCV bar. Candle sequences are ordered most-recent first.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// PriceLevel is one order-book level.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Depth is an order-book snapshot. Nil means the feed has not yet
// delivered one.
type Depth struct {
	Asks []PriceLevel
	Bids []PriceLevel
}

// PriceBook holds the last observed market prices for the symbol.
type PriceBook struct {
	Last decimal.Decimal
	Ask  decimal.Decimal
	Bid  decimal.Decimal
}

// ReportStatus is the execution status carried on an execution report.
type ReportStatus string

const (
	ReportFilled          ReportStatus = "FILLED"
	ReportPartiallyFilled ReportStatus = "PARTIALLY_FILLED"
	ReportNew             ReportStatus = "NEW"
	ReportCanceled        ReportStatus = "CANCELED"
)

// ExecutionReport is a per-symbol order update delivered by the user
// data stream for one tick.
type ExecutionReport struct {
	Symbol    string
	OrderID   int64
	Side      Side
	Status    ReportStatus
	LastPrice decimal.Decimal
	Quantity  decimal.Decimal
	EventTime int64 // exchange event time, ms
}

// Balance is one asset's wallet entry.
type Balance struct {
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// WalletPair maps asset identifier to its balance. A session tracks only
// its base and quote assets.
type WalletPair map[string]Balance

// AccountUpdate is an outbound account-position event from the user data
// stream. Updates are compared by EventTime so stale or duplicate events
// are ignored.
type AccountUpdate struct {
	EventTime int64 // exchange event time, ms
	Balances  map[string]Balance
}

// TradeRecord is one immutable ledger entry. A completed round trip is
// exactly two consecutive records (BUY then SELL) for one context.
type TradeRecord struct {
	ID          string
	Time        time.Time
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Description string
	Side        Side
}

// RoundTrip pairs a BUY record with its closing SELL record.
type RoundTrip struct {
	Symbol  string
	Buy     TradeRecord
	Sell    TradeRecord
	Outcome decimal.Decimal
}

// ComputeOutcome returns (sellPrice − buyPrice) × sellQuantity.
func ComputeOutcome(buy, sell TradeRecord) decimal.Decimal {
	return sell.Price.Sub(buy.Price).Mul(sell.Quantity)
}

// PrecisionRules holds the symbol's precision filters as decimal places:
// tick size for prices, lot size for quantities.
type PrecisionRules struct {
	TickSize int32
	LotSize  int32
}

// FormatPrice rounds a price to the symbol's tick precision.
func (r PrecisionRules) FormatPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(r.TickSize)
}

// TruncateQuantity truncates a quantity to the symbol's lot precision.
func (r PrecisionRules) TruncateQuantity(q decimal.Decimal) decimal.Decimal {
	return q.RoundFloor(r.LotSize)
}

// PositionContext is the per-position-type mutable record of the
// currently active (or most recently active) order. Created once at
// session setup, reset to defaults after a completed SELL, never
// destroyed. Owned exclusively by the session's control loop.
type PositionContext struct {
	CanOrder       bool
	Side           Side
	OrderType      OrderType
	State          OrderState
	OrderID        int64 // 0 = none
	Price          decimal.Decimal
	StopPrice      decimal.Decimal
	StopLimitPrice decimal.Decimal
	TokensHolding  decimal.Decimal
	BuyPrice       decimal.Decimal
	OrderPoint     string
	Description    string
	ActiveType     PositionType // position type bound by the open order
	MarketStatus   MarketStatus

	// Margin bookkeeping, used only under TradingMargin.
	LoanID   int64
	LoanCost decimal.Decimal
}

// NewPositionContext returns a context with setup defaults.
func NewPositionContext() PositionContext {
	return PositionContext{
		CanOrder:  true,
		Side:      SideBuy,
		OrderType: OrderTypeWait,
	}
}

// PrintPair renders the readable QUOTE-BASE market label used in logs
// and journal lines.
func PrintPair(quoteAsset, baseAsset string) string {
	return fmt.Sprintf("%s-%s", quoteAsset, baseAsset)
}
