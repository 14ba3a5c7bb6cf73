// Package session implements the order lifecycle and execution state
// machine: one control loop per traded symbol driving order status
// reconciliation, strategy decisions and order execution.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/alerting"
	"sessiontrader/internal/feed"
	"sessiontrader/internal/gateway"
	"sessiontrader/internal/journal"
	"sessiontrader/internal/metrics"
	"sessiontrader/internal/strategy"
	"sessiontrader/internal/types"
)

// Stepper advances a replayed feed by one candle per tick. Live feeds
// do not implement it.
type Stepper interface {
	Step() bool
}

// Options wires a session's collaborators and trading parameters.
type Options struct {
	Symbol     string
	QuoteAsset string
	BaseAsset  string

	TradingMode   types.TradingMode
	RunMode       types.RunMode
	Precision     types.PrecisionRules
	QuotePerTrade decimal.Decimal
	SellFraction  decimal.Decimal // share of last fill to sell; zero sells all
	PositionTypes []types.PositionType
	PollInterval  time.Duration
	StaleAfter    time.Duration // zero disables the staleness check

	Feed     feed.MarketFeed
	User     feed.UserStream // nil for simulated runs
	Stepper  Stepper         // nil for live runs
	Gateway  gateway.Gateway // nil for simulated runs
	Rules    strategy.Rules
	Journal  *journal.Journal    // optional
	Repo     *journal.Repository // optional
	Alerter  alerting.Alerter    // optional
	Recorder *metrics.Recorder   // optional
	Logger   *slog.Logger
}

// Session owns one symbol's trading state. All mutation happens inside
// the control loop; the mutex exists only so Snapshot can be read from
// other goroutines (the metrics server).
type Session struct {
	opts Options
	log  *slog.Logger

	mu              sync.RWMutex
	state           types.RuntimeState
	contexts        map[types.PositionType]*types.PositionContext
	wallet          types.WalletPair
	walletEventTime int64
	prices          types.PriceBook
	ledger          map[types.PositionType][]types.TradeRecord
	outcomeTotal    decimal.Decimal
	lastTick        time.Time

	// synthetic order ids for simulated placements
	nextSimID int64

	running bool
	done    chan struct{}
}

// New creates a session in the SETUP state.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.SellFraction.IsZero() {
		opts.SellFraction = decimal.NewFromInt(1)
	}
	if len(opts.PositionTypes) == 0 {
		opts.PositionTypes = []types.PositionType{types.PositionLong}
	}

	s := &Session{
		opts:     opts,
		log:      logger.With("component", "session", "symbol", opts.Symbol),
		state:    types.StateSetup,
		contexts: make(map[types.PositionType]*types.PositionContext),
		wallet:   types.WalletPair{},
		ledger:   make(map[types.PositionType][]types.TradeRecord),
	}
	for _, pt := range opts.PositionTypes {
		cp := types.NewPositionContext()
		s.contexts[pt] = &cp
	}
	return s
}

// State returns the current runtime state.
func (s *Session) State() types.RuntimeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState applies a runtime-state transition. Transitions not in the
// table are logged and ignored.
func (s *Session) setState(to types.RuntimeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == to {
		return
	}
	if !types.CanTransition(s.state, to) {
		s.log.Error("runtime-state transition rejected", "error", types.ErrInvalidState, "from", s.state, "to", to)
		return
	}
	s.log.Info("runtime state", "from", s.state, "to", to)
	s.state = to
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordRuntimeState(s.opts.Symbol, int(to))
	}
}

// Pair returns the readable market label.
func (s *Session) Pair() string {
	return types.PrintPair(s.opts.QuoteAsset, s.opts.BaseAsset)
}

// refreshWallet applies an account update if it is newer than the one
// already applied. Assets tracked by the session but missing from the
// event are zeroed.
func (s *Session) refreshWallet(update types.AccountUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if update.EventTime <= s.walletEventTime {
		return
	}
	s.walletEventTime = update.EventTime
	for _, asset := range []string{s.opts.BaseAsset, s.opts.QuoteAsset} {
		if bal, ok := update.Balances[asset]; ok {
			s.wallet[asset] = bal
		} else {
			s.wallet[asset] = types.Balance{}
		}
	}
	if s.opts.Recorder != nil {
		for asset, bal := range s.wallet {
			s.opts.Recorder.RecordWallet(s.opts.Symbol, asset, bal.Free)
		}
	}
}

// appendRecord appends one immutable ledger entry for a context.
func (s *Session) appendRecord(pt types.PositionType, rec types.TradeRecord) {
	s.mu.Lock()
	s.ledger[pt] = append(s.ledger[pt], rec)
	s.mu.Unlock()
}

// records returns a copy of a context's ledger, oldest first.
func (s *Session) records(pt types.PositionType) []types.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.ledger[pt]
	out := make([]types.TradeRecord, len(entries))
	copy(out, entries)
	return out
}

// Snapshot is the read-only session view served to monitoring
// collaborators.
type Snapshot struct {
	Symbol       string                           `json:"symbol"`
	Pair         string                           `json:"pair"`
	RuntimeState string                           `json:"runtime_state"`
	TradingMode  string                           `json:"trading_mode"`
	RunMode      string                           `json:"run_mode"`
	Prices       types.PriceBook                  `json:"prices"`
	Wallet       types.WalletPair                 `json:"wallet"`
	Contexts     map[string]types.PositionContext `json:"contexts"`
	Ledger       map[string][]types.TradeRecord   `json:"ledger"`
	OutcomeTotal decimal.Decimal                  `json:"outcome_total"`
	Precision    types.PrecisionRules             `json:"precision"`
	LastTick     time.Time                        `json:"last_tick"`
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Symbol:       s.opts.Symbol,
		Pair:         types.PrintPair(s.opts.QuoteAsset, s.opts.BaseAsset),
		RuntimeState: s.state.String(),
		TradingMode:  s.opts.TradingMode.String(),
		RunMode:      s.opts.RunMode.String(),
		Prices:       s.prices,
		Wallet:       types.WalletPair{},
		Contexts:     make(map[string]types.PositionContext, len(s.contexts)),
		Ledger:       make(map[string][]types.TradeRecord, len(s.ledger)),
		OutcomeTotal: s.outcomeTotal,
		Precision:    s.opts.Precision,
		LastTick:     s.lastTick,
	}
	for asset, bal := range s.wallet {
		snap.Wallet[asset] = bal
	}
	for pt, cp := range s.contexts {
		snap.Contexts[pt.String()] = *cp
	}
	for pt, entries := range s.ledger {
		records := make([]types.TradeRecord, len(entries))
		copy(records, entries)
		snap.Ledger[pt.String()] = records
	}
	return snap
}

// Healthy reports whether the session is running and its data is fresh.
func (s *Session) Healthy() (bool, string) {
	state := s.State()
	if state == types.StateStop {
		return false, "session stopped"
	}
	if s.opts.StaleAfter > 0 && s.opts.Feed != nil {
		if age := time.Since(s.opts.Feed.LastUpdate()); age > s.opts.StaleAfter {
			return false, "market data stale"
		}
	}
	return true, ""
}
