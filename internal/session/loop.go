package session

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/alerting"
	"sessiontrader/internal/feed"
	"sessiontrader/internal/types"
)

const dataWaitInterval = 250 * time.Millisecond

// Start validates collaborators, blocks until market data is available,
// then spawns the control loop. A missing feed is fatal; a live session
// without a gateway is fatal.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return types.ErrAlreadyRunning
	}
	if s.state == types.StateStop {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", s.opts.Symbol, types.ErrSessionStopped)
	}
	if s.opts.Feed == nil {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", s.opts.Symbol, types.ErrNoFeed)
	}
	if s.opts.Rules == nil {
		s.mu.Unlock()
		return fmt.Errorf("session %s: strategy rules required: %w", s.opts.Symbol, types.ErrInvalidConfig)
	}
	if s.opts.RunMode == types.RunLive && s.opts.Gateway == nil {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", s.opts.Symbol, types.ErrGatewayRequired)
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	if err := s.waitForData(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	if s.opts.Alerter != nil {
		_ = s.opts.Alerter.Alert(ctx, alerting.EventSeverity(alerting.EventSessionStarted),
			"session started", "symbol", s.opts.Symbol, "mode", s.opts.RunMode.String())
	}
	go s.run(ctx)
	return nil
}

// waitForData blocks until the feed has produced candles and depth at
// least once.
func (s *Session) waitForData(ctx context.Context) error {
	for {
		if s.opts.Stepper != nil {
			if !s.opts.Stepper.Step() {
				return fmt.Errorf("session %s: replay empty: %w", s.opts.Symbol, types.ErrDataUnavailable)
			}
		}
		_, candleErr := s.opts.Feed.Candles()
		_, depthErr := s.opts.Feed.Depth()
		if candleErr == nil && depthErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dataWaitInterval):
		}
	}
}

// Stop requests a cooperative stop. The in-flight tick completes first.
func (s *Session) Stop() {
	s.setState(types.StateStop)
}

// Wait blocks until the control loop has exited.
func (s *Session) Wait() {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// run is the control loop. One iteration per tick, a fixed delay
// between iterations, exit only on STOP.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if s.opts.Alerter != nil {
			_ = s.opts.Alerter.Alert(context.Background(),
				alerting.EventSeverity(alerting.EventSessionStopped),
				"session stopped", "symbol", s.opts.Symbol)
		}
	}()

	for {
		if s.State() == types.StateStop {
			return
		}
		select {
		case <-ctx.Done():
			s.setState(types.StateStop)
			return
		default:
		}

		started := time.Now()
		s.tick(ctx)
		if s.opts.Recorder != nil {
			s.opts.Recorder.RecordTick(s.opts.Symbol, time.Since(started))
		}
		if s.State() == types.StateStop {
			return
		}

		select {
		case <-ctx.Done():
			s.setState(types.StateStop)
			return
		case <-time.After(s.opts.PollInterval):
		}
	}
}

// tick runs one control loop iteration.
func (s *Session) tick(ctx context.Context) {
	// Replays advance one candle per tick and stop at the end of data.
	if s.opts.Stepper != nil {
		if !s.opts.Stepper.Step() {
			s.log.Info("replay exhausted")
			s.setState(types.StateStop)
			return
		}
	}

	if s.opts.StaleAfter > 0 && time.Since(s.opts.Feed.LastUpdate()) > s.opts.StaleAfter {
		s.log.Warn("skipping tick", "error", types.ErrStaleData)
		if s.opts.Alerter != nil {
			_ = s.opts.Alerter.Alert(ctx, alerting.EventSeverity(alerting.EventFeedStale),
				"market data stale", "symbol", s.opts.Symbol)
		}
		return
	}

	candles, err := s.opts.Feed.Candles()
	if err != nil {
		s.log.Warn("candles unavailable", "error", err)
		return
	}
	depth, err := s.opts.Feed.Depth()
	if err != nil {
		s.log.Warn("depth unavailable", "error", err)
		return
	}

	ind := s.opts.Rules.Indicators(candles)

	// Account events: drain the tick's report buffer and apply the
	// newest wallet update.
	var reports []types.ExecutionReport
	if s.opts.User != nil {
		for _, rep := range s.opts.User.Reports() {
			if rep.Symbol != "" && rep.Symbol != s.opts.Symbol {
				s.log.Warn("execution report dropped", "error", types.ErrInvalidSymbol, "symbol", rep.Symbol)
				continue
			}
			reports = append(reports, rep)
		}
		if update, ok := s.opts.User.Account(); ok {
			s.refreshWallet(update)
		}
	}

	s.mu.Lock()
	s.prices = feed.PriceBookFrom(candles, depth)
	prices := s.prices
	s.mu.Unlock()

	// Resume once the quote allowance is covered again.
	if s.State() == types.StatePauseInsufficientBalance {
		if s.quoteFree().GreaterThan(s.opts.QuotePerTrade) {
			s.setState(types.StateRun)
		}
	}

	state := s.State()
	if state != types.StateStandby && state != types.StateForceStandby && state != types.StateForcePause {
		for _, pt := range s.opts.PositionTypes {
			if !s.contextApplicable(pt) {
				continue
			}
			cp := s.contexts[pt]

			next := s.opts.Rules.OtherConditions(*cp, s.records(pt), pt, candles, ind)
			next = s.orderStatus(ctx, next, pt, prices, reports)
			next = s.tradeManager(ctx, next, pt, ind, prices, candles)
			if next.MarketStatus == types.MarketUnset {
				next.MarketStatus = types.MarketTrading
			}

			s.mu.Lock()
			*cp = next
			s.mu.Unlock()

			if s.State() == types.StateStop {
				return
			}
		}
	}

	s.mu.Lock()
	s.lastTick = time.Now()
	s.mu.Unlock()

	if s.State() == types.StateSetup {
		s.setState(types.StateRun)
	}
}

// contextApplicable reports whether a position type should be evaluated
// this tick. While one context holds an open position, the others are
// skipped.
func (s *Session) contextApplicable(pt types.PositionType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for other, cp := range s.contexts {
		if other == pt {
			continue
		}
		if cp.ActiveType != types.PositionNone {
			return false
		}
	}
	return true
}

// quoteFree returns the free quote-asset balance.
func (s *Session) quoteFree() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wallet[s.opts.QuoteAsset].Free
}
