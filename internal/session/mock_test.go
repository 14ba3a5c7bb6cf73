package session

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/gateway"
	"sessiontrader/internal/strategy"
	"sessiontrader/internal/types"
)

// mockFeed serves fixed candles and depth.
type mockFeed struct {
	candles []types.Candle
	depth   types.Depth
}

func (m *mockFeed) Candles() ([]types.Candle, error) {
	if len(m.candles) == 0 {
		return nil, types.ErrDataUnavailable
	}
	return m.candles, nil
}

func (m *mockFeed) Depth() (types.Depth, error) {
	if len(m.depth.Bids) == 0 && len(m.depth.Asks) == 0 {
		return types.Depth{}, types.ErrDataUnavailable
	}
	return m.depth, nil
}

func (m *mockFeed) LastUpdate() time.Time { return time.Now() }
func (m *mockFeed) Close() error          { return nil }
func (m *mockFeed) Name() string          { return "mock" }

// setPrice points the whole book at one price.
func (m *mockFeed) setPrice(p decimal.Decimal) {
	m.candles = []types.Candle{{OpenTime: time.Now(), Close: p}}
	level := []types.PriceLevel{{Price: p, Quantity: decimal.NewFromInt(1)}}
	m.depth = types.Depth{Asks: level, Bids: level}
}

// mockUser queues execution reports and account updates.
type mockUser struct {
	reports []types.ExecutionReport
	account *types.AccountUpdate
}

func (m *mockUser) Reports() []types.ExecutionReport {
	out := m.reports
	m.reports = nil
	return out
}

func (m *mockUser) Account() (types.AccountUpdate, bool) {
	if m.account == nil {
		return types.AccountUpdate{}, false
	}
	a := *m.account
	m.account = nil
	return a, true
}

// mockGateway records calls and returns a scripted result.
type mockGateway struct {
	requests   []gateway.Request
	cancels    []int64
	ocoCancels []int64
	borrowed   []decimal.Decimal
	repaid     []decimal.Decimal

	result       *gateway.Result // nil auto-assigns an order id
	cancelResult *gateway.Result
	err          error
	nextID       int64
}

func (m *mockGateway) PlaceOrder(_ context.Context, req gateway.Request) (gateway.Result, error) {
	if m.err != nil {
		return gateway.Result{}, m.err
	}
	m.requests = append(m.requests, req)
	if m.result != nil {
		return *m.result, nil
	}
	m.nextID++
	return gateway.Result{OrderID: m.nextID}, nil
}

func (m *mockGateway) CancelOrder(_ context.Context, _ string, orderID int64) (gateway.Result, error) {
	m.cancels = append(m.cancels, orderID)
	if m.cancelResult != nil {
		return *m.cancelResult, nil
	}
	return gateway.Result{OrderID: orderID}, nil
}

func (m *mockGateway) CancelOCO(_ context.Context, _ string, listID int64) (gateway.Result, error) {
	m.ocoCancels = append(m.ocoCancels, listID)
	if m.cancelResult != nil {
		return *m.cancelResult, nil
	}
	return gateway.Result{ListID: listID}, nil
}

func (m *mockGateway) Borrow(_ context.Context, _ string, amount decimal.Decimal) (int64, error) {
	m.borrowed = append(m.borrowed, amount)
	return 900 + int64(len(m.borrowed)), nil
}

func (m *mockGateway) Repay(_ context.Context, _ string, amount decimal.Decimal) error {
	m.repaid = append(m.repaid, amount)
	return nil
}

func (m *mockGateway) ListenKey(context.Context) (string, error) { return "test-key", nil }
func (m *mockGateway) KeepAlive(context.Context, string) error   { return nil }
func (m *mockGateway) Name() string                              { return "mock" }

// mockRules returns scripted entry/exit decisions for every position
// type.
type mockRules struct {
	entry *strategy.Decision
	exit  *strategy.Decision
}

func (m *mockRules) Name() string { return "mock" }

func (m *mockRules) Indicators([]types.Candle) strategy.Indicators {
	return strategy.Indicators{}
}

func (m *mockRules) Table() strategy.Table {
	serve := func(d **strategy.Decision) strategy.DecisionFunc {
		return func(types.PositionContext, strategy.Indicators, types.PriceBook, []types.Candle) *strategy.Decision {
			if *d == nil {
				return nil
			}
			out := **d
			return &out
		}
	}
	return strategy.Table{
		LongEntry:  serve(&m.entry),
		LongExit:   serve(&m.exit),
		ShortEntry: serve(&m.entry),
		ShortExit:  serve(&m.exit),
	}
}

func (m *mockRules) OtherConditions(cp types.PositionContext, _ []types.TradeRecord, _ types.PositionType, _ []types.Candle, _ strategy.Indicators) types.PositionContext {
	if cp.MarketStatus == types.MarketCompleteTrade {
		cp.MarketStatus = types.MarketTrading
	}
	cp.CanOrder = true
	return cp
}
