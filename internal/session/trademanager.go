package session

import (
	"context"

	"sessiontrader/internal/alerting"
	"sessiontrader/internal/gateway"
	"sessiontrader/internal/strategy"
	"sessiontrader/internal/types"
)

// tradeManager resolves the strategy decision for the context's current
// side and position type and translates it into a place, cancel or
// no-op.
func (s *Session) tradeManager(ctx context.Context, cp types.PositionContext, pt types.PositionType, ind strategy.Indicators, prices types.PriceBook, candles []types.Candle) types.PositionContext {
	// A locked context waits for the partial fill to resolve.
	if cp.State == types.OrderLocked {
		return cp
	}
	if !cp.CanOrder {
		return cp
	}
	// Re-entry suppressed while buys are forced off.
	if cp.Side == types.SideBuy && s.State() == types.StateForcePreventBuy {
		return cp
	}

	fn := s.opts.Rules.Table().Resolve(cp.Side, pt)
	if fn == nil {
		return cp
	}
	decision := fn(cp, ind, prices, candles)
	if decision == nil {
		return cp
	}
	if decision.HasOrderPoint {
		cp.OrderPoint = decision.OrderPoint
	}
	if decision.OrderType == types.OrderTypeNone {
		return cp
	}

	if decision.OrderType == types.OrderTypeWait {
		return s.cancelActive(ctx, cp)
	}

	// Resubmission suppression: an unchanged formatted price, or an
	// unchanged order type when the decision carries no price, is churn.
	price := s.opts.Precision.FormatPrice(decision.Price)
	if decision.HasPrice() {
		if price.Equal(cp.Price) {
			return cp
		}
	} else if decision.OrderType == cp.OrderType {
		return cp
	}

	cp.Price = price
	cp.StopPrice = s.opts.Precision.FormatPrice(decision.StopPrice)
	cp.StopLimitPrice = s.opts.Precision.FormatPrice(decision.StopLimitPrice)
	cp.OrderType = decision.OrderType
	cp.Description = decision.Description

	res, err := s.placeOrder(ctx, &cp, pt, decision, prices)
	if err != nil {
		s.log.Error("order placement failed", "error", err, "side", cp.Side, "type", cp.OrderType)
		if s.opts.Recorder != nil {
			s.opts.Recorder.RecordOrder(s.opts.Symbol, cp.Side.String(), cp.OrderType.String(), "error")
		}
		return cp
	}
	if res.Rejected() {
		return s.handleRejection(ctx, cp, res)
	}

	// Effective price: market fills report an execution price,
	// limit-style orders keep the submitted price.
	if !res.Price.IsZero() {
		cp.Price = res.Price
	}
	cp.OrderID = res.OrderID
	if res.ListID != 0 {
		// An OCO pair is tracked and cancelled by its list id.
		cp.OrderID = res.ListID
	}
	cp.State = types.OrderPlaced
	if cp.Side == types.SideBuy {
		cp.ActiveType = pt
	}

	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordOrder(s.opts.Symbol, cp.Side.String(), cp.OrderType.String(), "placed")
	}
	s.log.Info("order placed", "pair", s.Pair(), "side", cp.Side, "type", cp.OrderType,
		"price", cp.Price, "order_id", cp.OrderID, "description", cp.Description)

	// A simulated market order has no resting phase: it fills in the
	// tick that placed it.
	if s.opts.RunMode == types.RunSimulated && cp.OrderType == types.OrderTypeMarket {
		return s.completeTrade(ctx, cp, pt, cp.Price, cp.TokensHolding)
	}
	return cp
}

// cancelActive handles an explicit WAIT decision: clear the order state
// and cancel any resting exchange order.
func (s *Session) cancelActive(ctx context.Context, cp types.PositionContext) types.PositionContext {
	hadOrder := cp.OrderID != 0
	orderID := cp.OrderID
	wasOCO := cp.OrderType == types.OrderTypeOCOLimit

	cp.State = types.OrderNone
	cp.OrderType = types.OrderTypeWait
	cp.OrderID = 0
	if cp.Side == types.SideBuy {
		cp.ActiveType = types.PositionNone
	}

	if hadOrder && s.opts.RunMode == types.RunLive && s.opts.Gateway != nil {
		var err error
		if wasOCO {
			_, err = s.opts.Gateway.CancelOCO(ctx, s.opts.Symbol, orderID)
		} else {
			_, err = s.opts.Gateway.CancelOrder(ctx, s.opts.Symbol, orderID)
		}
		if err != nil {
			s.log.Error("cancel failed", "order_id", orderID, "error", err)
		}
	}
	return cp
}

// handleRejection maps exchange business codes onto runtime-state
// transitions. Context fields set before submission are kept.
func (s *Session) handleRejection(ctx context.Context, cp types.PositionContext, res gateway.Result) types.PositionContext {
	switch res.Code {
	case gateway.CodeInsufficientBalance:
		s.log.Warn("order rejected, insufficient balance", "pair", s.Pair())
		s.setState(types.StatePauseInsufficientBalance)
		if s.opts.Alerter != nil {
			_ = s.opts.Alerter.Alert(ctx, alerting.EventSeverity(alerting.EventInsufficientBalance),
				"insufficient balance, session paused", "pair", s.Pair())
		}
	case gateway.CodeUnknownOrder:
		s.log.Warn("order rejected, unknown order", "pair", s.Pair(), "order_id", cp.OrderID)
		s.setState(types.StateCheckOrders)
		if s.opts.Alerter != nil {
			_ = s.opts.Alerter.Alert(ctx, alerting.EventSeverity(alerting.EventOrderRejected),
				"unknown order, reconciling", "pair", s.Pair(), "order_id", cp.OrderID)
		}
	default:
		s.log.Error("order rejected with unhandled code", "code", res.Code)
	}
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordOrder(s.opts.Symbol, cp.Side.String(), cp.OrderType.String(), "rejected")
	}
	return cp
}
