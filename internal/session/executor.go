package session

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/alerting"
	"sessiontrader/internal/gateway"
	"sessiontrader/internal/strategy"
	"sessiontrader/internal/types"
)

// placeOrder sizes, formats and submits the order described by the
// context's prepared fields. Simulated runs synthesize a result without
// gateway I/O.
func (s *Session) placeOrder(ctx context.Context, cp *types.PositionContext, pt types.PositionType, decision *strategy.Decision, prices types.PriceBook) (gateway.Result, error) {
	qty, err := s.orderQuantity(cp, decision, prices)
	if err != nil {
		return gateway.Result{}, err
	}

	// A resting order is cancelled before its replacement goes out.
	if err := s.cancelResting(ctx, cp); err != nil {
		return gateway.Result{}, err
	}

	// A short entry sells borrowed tokens, so the loan comes first.
	if cp.Side == types.SideBuy && pt == types.PositionShort &&
		s.opts.TradingMode == types.TradingMargin && s.opts.RunMode == types.RunLive {
		loanID, err := s.opts.Gateway.Borrow(ctx, s.opts.BaseAsset, qty)
		if err != nil {
			return gateway.Result{}, fmt.Errorf("borrow before short entry: %w", err)
		}
		cp.LoanID = loanID
		cp.LoanCost = qty
		if s.opts.Recorder != nil {
			s.opts.Recorder.RecordLoan(s.opts.Symbol, s.opts.BaseAsset, qty)
		}
		if s.opts.Alerter != nil {
			_ = s.opts.Alerter.Alert(ctx, alerting.EventSeverity(alerting.EventLoanTaken),
				"margin loan taken", "asset", s.opts.BaseAsset, "amount", qty)
		}
	}

	if s.opts.RunMode == types.RunSimulated {
		return s.simulatedResult(cp, qty, prices), nil
	}

	req := gateway.Request{
		Symbol:         s.opts.Symbol,
		Side:           wireSide(cp.Side, pt),
		Type:           cp.OrderType,
		Quantity:       qty,
		Price:          cp.Price,
		StopPrice:      cp.StopPrice,
		StopLimitPrice: cp.StopLimitPrice,
		Margin:         s.opts.TradingMode == types.TradingMargin,
	}
	return s.opts.Gateway.PlaceOrder(ctx, req)
}

// orderQuantity sizes the order: buys spend the configured quote
// allowance at the current bid, sells dispose the held tokens (or the
// configured fraction of them). Quantities are truncated to the lot
// size.
func (s *Session) orderQuantity(cp *types.PositionContext, decision *strategy.Decision, prices types.PriceBook) (decimal.Decimal, error) {
	var qty decimal.Decimal
	if cp.Side == types.SideBuy {
		if prices.Bid.IsZero() {
			return decimal.Zero, fmt.Errorf("size buy order: %w", types.ErrDataUnavailable)
		}
		qty = s.opts.QuotePerTrade.Div(prices.Bid)
	} else {
		fraction := s.opts.SellFraction
		if decision != nil && !decision.SellFraction.IsZero() {
			fraction = decision.SellFraction
		}
		qty = cp.TokensHolding.Mul(fraction)
	}

	qty = s.opts.Precision.TruncateQuantity(qty)
	if qty.IsZero() {
		return decimal.Zero, fmt.Errorf("order quantity truncates to zero (side %s)", cp.Side)
	}
	return qty, nil
}

// cancelResting cancels the context's open exchange order, if any,
// before a replacement is submitted.
func (s *Session) cancelResting(ctx context.Context, cp *types.PositionContext) error {
	if cp.OrderID == 0 {
		cp.State = types.OrderNone
		return nil
	}
	if s.opts.RunMode != types.RunLive || s.opts.Gateway == nil {
		cp.OrderID = 0
		cp.State = types.OrderNone
		return nil
	}

	var res gateway.Result
	var err error
	if cp.OrderType == types.OrderTypeOCOLimit {
		res, err = s.opts.Gateway.CancelOCO(ctx, s.opts.Symbol, cp.OrderID)
	} else {
		res, err = s.opts.Gateway.CancelOrder(ctx, s.opts.Symbol, cp.OrderID)
	}
	if err != nil {
		return fmt.Errorf("cancel before replace: %w", err)
	}
	// An unknown-order rejection here means the order already filled or
	// was cancelled. The order id is kept so the next reconcile pass
	// recognizes the context and recovers.
	if res.Code == gateway.CodeUnknownOrder {
		s.setState(types.StateCheckOrders)
		return fmt.Errorf("cancel before replace: %w", types.ErrOrderRejected)
	}
	cp.OrderID = 0
	cp.State = types.OrderNone
	return nil
}

// simulatedResult synthesizes a placement result. The computed quantity
// is captured on the context so the fill check can use it.
func (s *Session) simulatedResult(cp *types.PositionContext, qty decimal.Decimal, prices types.PriceBook) gateway.Result {
	s.nextSimID++
	res := gateway.Result{OrderID: s.nextSimID}
	if cp.OrderType == types.OrderTypeMarket {
		res.Price = prices.Last
	}
	cp.TokensHolding = qty
	return res
}

// wireSide maps the logical context side to the exchange side. Short
// positions are inverted: entering a short sells borrowed tokens,
// closing it buys them back.
func wireSide(side types.Side, pt types.PositionType) types.Side {
	if pt == types.PositionShort {
		return side.Opposite()
	}
	return side
}
