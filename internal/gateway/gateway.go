// Package gateway abstracts exchange order entry and margin lending.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/types"
)

// Exchange business error codes surfaced through Result.Code.
const (
	CodeInsufficientBalance int64 = -2010
	CodeUnknownOrder        int64 = -2011
)

// Request describes an order to place. Limit-style fields are read only
// for the order types that need them; StopPrice and StopLimitPrice are
// set for stop-loss-limit and OCO orders.
type Request struct {
	Symbol         string
	Side           types.Side
	Type           types.OrderType
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	StopPrice      decimal.Decimal
	StopLimitPrice decimal.Decimal
	Margin         bool
}

// Result is the gateway response. A non-zero Code carries a business
// rejection the session handles (insufficient balance, unknown order);
// transport and other failures come back as errors instead.
type Result struct {
	OrderID int64
	ListID  int64 // OCO order list, zero otherwise
	Code    int64
	Status  types.ReportStatus
	Price   decimal.Decimal // average fill price, zero when not yet filled
}

// Rejected reports whether the exchange refused the request.
func (r Result) Rejected() bool { return r.Code != 0 }

// Gateway is the order entry surface the session drives. Simulated runs
// use no gateway at all.
type Gateway interface {
	// PlaceOrder submits an order of any supported type, including OCO
	// pairs.
	PlaceOrder(ctx context.Context, req Request) (Result, error)

	// CancelOrder cancels a resting order.
	CancelOrder(ctx context.Context, symbol string, orderID int64) (Result, error)

	// CancelOCO cancels an OCO order list.
	CancelOCO(ctx context.Context, symbol string, listID int64) (Result, error)

	// Borrow takes a margin loan and returns the transaction id.
	Borrow(ctx context.Context, asset string, amount decimal.Decimal) (int64, error)

	// Repay settles a margin loan.
	Repay(ctx context.Context, asset string, amount decimal.Decimal) error

	// ListenKey opens a user data stream and returns its key.
	ListenKey(ctx context.Context) (string, error)

	// KeepAlive extends a user data stream's lifetime.
	KeepAlive(ctx context.Context, key string) error

	// Name returns the gateway identifier.
	Name() string
}
