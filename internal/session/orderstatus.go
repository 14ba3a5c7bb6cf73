package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sessiontrader/internal/alerting"
	"sessiontrader/internal/types"
)

// orderStatus reconciles the context's active order against this tick's
// execution reports (live) or price crossings (simulated), driving the
// side switch and journaling on completion.
func (s *Session) orderStatus(ctx context.Context, cp types.PositionContext, pt types.PositionType, prices types.PriceBook, reports []types.ExecutionReport) types.PositionContext {
	var report *types.ExecutionReport
	active := false

	if s.opts.RunMode == types.RunLive {
		for i := range reports {
			if cp.OrderID != 0 && reports[i].OrderID == cp.OrderID {
				report = &reports[i]
				active = true
			}
		}
	} else {
		active = cp.State == types.OrderPlaced
	}

	// Recovery after an unknown-order rejection: clear the global flag
	// and this context's order state, then evaluate completion normally.
	if s.State() == types.StateCheckOrders && (cp.OrderID != 0 || cp.State != types.OrderNone) {
		s.setState(types.StateRun)
		cp.State = types.OrderNone
		if report == nil {
			// The order is gone on the exchange with no report in
			// hand; drop the stale id so the next placement does not
			// try to cancel it again.
			cp.OrderID = 0
			active = false
		}
	}

	if !active {
		return cp
	}

	if report != nil && report.Status == types.ReportPartiallyFilled {
		if cp.State != types.OrderLocked {
			cp.State = types.OrderLocked
			s.log.Info("partial fill, context locked", "order_id", cp.OrderID, "side", cp.Side)
		}
		return cp
	}

	done, price, qty := s.checkActiveTrade(cp, pt, prices, report)
	if !done {
		return cp
	}
	return s.completeTrade(ctx, cp, pt, price, qty)
}

// checkActiveTrade decides whether the active order has completed and
// with what price and quantity.
func (s *Session) checkActiveTrade(cp types.PositionContext, pt types.PositionType, prices types.PriceBook, report *types.ExecutionReport) (bool, decimal.Decimal, decimal.Decimal) {
	if s.opts.RunMode == types.RunLive {
		return s.checkLive(cp, pt, report)
	}
	return s.checkSimulated(cp, pt, prices)
}

func (s *Session) checkLive(cp types.PositionContext, pt types.PositionType, report *types.ExecutionReport) (bool, decimal.Decimal, decimal.Decimal) {
	if report == nil || report.Status != types.ReportFilled {
		return false, decimal.Zero, decimal.Zero
	}

	// Short positions trade the inverted wire side.
	expected := cp.Side
	if pt == types.PositionShort {
		expected = cp.Side.Opposite()
	}
	if report.Side != expected {
		return false, decimal.Zero, decimal.Zero
	}

	if cp.Side == types.SideBuy {
		// Guard against acting on a stale wallet snapshot: the bought
		// amount must have landed before the entry is declared done.
		s.mu.RLock()
		var have, need decimal.Decimal
		if pt == types.PositionLong {
			have = s.wallet[s.opts.BaseAsset].Free
			need = report.Quantity
		} else {
			have = s.wallet[s.opts.QuoteAsset].Free
			need = report.Quantity.Mul(report.LastPrice)
		}
		s.mu.RUnlock()
		if have.LessThan(need) {
			s.log.Debug("fill reported but wallet not yet updated", "order_id", cp.OrderID)
			return false, decimal.Zero, decimal.Zero
		}
	}

	return true, report.LastPrice, report.Quantity
}

func (s *Session) checkSimulated(cp types.PositionContext, pt types.PositionType, prices types.PriceBook) (bool, decimal.Decimal, decimal.Decimal) {
	last := prices.Last
	if last.IsZero() {
		return false, decimal.Zero, decimal.Zero
	}
	qty := cp.TokensHolding

	if cp.OrderType == types.OrderTypeMarket {
		price := cp.Price
		if price.IsZero() {
			price = last
		}
		return true, price, qty
	}

	if cp.Side == types.SideBuy {
		done := false
		if pt == types.PositionLong {
			done = last.LessThanOrEqual(cp.Price)
		} else {
			done = last.GreaterThanOrEqual(cp.Price)
		}
		return done, cp.Price, qty
	}

	// SELL. A stop-loss-limit completes only on the stop-consistent
	// crossing direction, even if the plain limit was also crossed.
	if cp.OrderType == types.OrderTypeStopLossLimit {
		done := false
		if pt == types.PositionLong {
			done = last.LessThanOrEqual(cp.StopPrice)
		} else {
			done = last.GreaterThanOrEqual(cp.StopPrice)
		}
		return done, cp.StopPrice, qty
	}

	limitCrossed, stopCrossed := false, false
	if pt == types.PositionLong {
		limitCrossed = !cp.Price.IsZero() && last.GreaterThanOrEqual(cp.Price)
		stopCrossed = !cp.StopLimitPrice.IsZero() && last.LessThanOrEqual(cp.StopLimitPrice)
	} else {
		limitCrossed = !cp.Price.IsZero() && last.LessThanOrEqual(cp.Price)
		stopCrossed = !cp.StopLimitPrice.IsZero() && last.GreaterThanOrEqual(cp.StopLimitPrice)
	}
	switch {
	case limitCrossed:
		return true, cp.Price, qty
	case stopCrossed:
		return true, cp.StopLimitPrice, qty
	}
	return false, decimal.Zero, decimal.Zero
}

// completeTrade appends the ledger entry and resets the context for the
// next phase of the round trip.
func (s *Session) completeTrade(ctx context.Context, cp types.PositionContext, pt types.PositionType, price, qty decimal.Decimal) types.PositionContext {
	rec := types.TradeRecord{
		ID:          uuid.NewString(),
		Time:        time.Now(),
		Price:       price,
		Quantity:    qty,
		Description: cp.Description,
		Side:        cp.Side,
	}
	s.appendRecord(pt, rec)
	if s.opts.Repo != nil {
		if err := s.opts.Repo.SaveRecord(ctx, s.opts.Symbol, pt, rec); err != nil {
			s.log.Error("persist trade record", "error", err)
		}
	}
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordFill(s.opts.Symbol, cp.Side.String(), string(types.ReportFilled))
	}
	s.log.Info("trade complete", "pair", s.Pair(), "side", cp.Side, "price", price, "quantity", qty)

	completedSide := cp.Side

	if completedSide == types.SideBuy {
		cp.Side = types.SideSell
		cp.BuyPrice = price
		cp.TokensHolding = qty
		cp.ActiveType = pt
		cp.OrderPoint = ""
	} else {
		s.closeRoundTrip(ctx, cp, pt)
		cp.LoanID = 0
		cp.LoanCost = decimal.Zero
		cp.Side = types.SideBuy
		cp.BuyPrice = decimal.Zero
		cp.TokensHolding = decimal.Zero
		cp.ActiveType = types.PositionNone
		cp.OrderPoint = ""
		cp.MarketStatus = types.MarketCompleteTrade
	}

	cp.OrderType = types.OrderTypeComplete
	cp.Price = decimal.Zero
	cp.StopPrice = decimal.Zero
	cp.StopLimitPrice = decimal.Zero
	cp.OrderID = 0
	cp.State = types.OrderNone
	cp.Description = ""
	return cp
}

// closeRoundTrip journals the completed BUY/SELL pair, records the
// outcome and settles any margin loan.
func (s *Session) closeRoundTrip(ctx context.Context, cp types.PositionContext, pt types.PositionType) {
	records := s.records(pt)
	if len(records) < 2 {
		s.log.Error("round trip close without paired records", "records", len(records))
		return
	}
	buy, sell := records[len(records)-2], records[len(records)-1]
	rt := types.RoundTrip{Symbol: s.opts.Symbol, Buy: buy, Sell: sell}
	outcome := types.ComputeOutcome(buy, sell)

	s.mu.Lock()
	s.outcomeTotal = s.outcomeTotal.Add(outcome)
	total := s.outcomeTotal
	s.mu.Unlock()

	if s.opts.Journal != nil {
		if err := s.opts.Journal.Record(rt); err != nil {
			s.log.Error("journal round trip", "error", err)
		}
	}
	if s.opts.Repo != nil {
		if err := s.opts.Repo.SaveRoundTrip(ctx, rt); err != nil {
			s.log.Error("persist round trip", "error", err)
		}
	}
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordRoundTrip(s.opts.Symbol, outcome, total)
	}
	if s.opts.Alerter != nil {
		_ = s.opts.Alerter.Alert(ctx, alerting.EventSeverity(alerting.EventRoundTripClosed),
			"round trip closed", "pair", s.Pair(), "outcome", outcome.StringFixed(8))
	}
	s.log.Info("round trip closed", "pair", s.Pair(), "outcome", outcome.StringFixed(8), "total", total.StringFixed(8))

	// Margin loans are settled as soon as the position closes.
	if s.opts.TradingMode == types.TradingMargin && s.opts.RunMode == types.RunLive &&
		!cp.LoanCost.IsZero() && s.opts.Gateway != nil {
		if err := s.opts.Gateway.Repay(ctx, s.opts.BaseAsset, cp.LoanCost); err != nil {
			s.log.Error("margin repay failed", "error", err)
		} else {
			if s.opts.Recorder != nil {
				s.opts.Recorder.RecordLoan(s.opts.Symbol, s.opts.BaseAsset, decimal.Zero)
			}
			if s.opts.Alerter != nil {
				_ = s.opts.Alerter.Alert(ctx, alerting.EventSeverity(alerting.EventLoanRepaid),
					"margin loan repaid", "asset", s.opts.BaseAsset, "amount", cp.LoanCost)
			}
		}
	}
}
