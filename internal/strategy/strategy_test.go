package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/types"
	"sessiontrader/pkg/indicator"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// candlesFromCloses builds a most-recent-first candle slice from closes
// listed oldest first.
func candlesFromCloses(t *testing.T, closes []string) []types.Candle {
	t.Helper()
	out := make([]types.Candle, len(closes))
	for i, c := range closes {
		out[len(closes)-1-i] = types.Candle{Close: dec(c)}
	}
	return out
}

func indicatorsWith(macdCurr, macdPrev indicator.MACDValue, ema string) Indicators {
	return Indicators{
		MACD: []indicator.MACDValue{macdCurr, macdPrev},
		EMA:  map[int][]decimal.Decimal{emaTrend: {dec(ema)}},
	}
}

func TestTableResolve(t *testing.T) {
	mark := func(name string) DecisionFunc {
		return func(types.PositionContext, Indicators, types.PriceBook, []types.Candle) *Decision {
			return &Decision{Description: name}
		}
	}
	table := Table{
		LongEntry:  mark("long-entry"),
		LongExit:   mark("long-exit"),
		ShortEntry: mark("short-entry"),
		ShortExit:  mark("short-exit"),
	}

	tests := []struct {
		side     types.Side
		position types.PositionType
		want     string
	}{
		{types.SideBuy, types.PositionLong, "long-entry"},
		{types.SideSell, types.PositionLong, "long-exit"},
		{types.SideBuy, types.PositionShort, "short-entry"},
		{types.SideSell, types.PositionShort, "short-exit"},
	}
	for _, tt := range tests {
		d := table.Resolve(tt.side, tt.position)(types.PositionContext{}, Indicators{}, types.PriceBook{}, nil)
		if d.Description != tt.want {
			t.Errorf("Resolve(%v, %v) = %q, want %q", tt.side, tt.position, d.Description, tt.want)
		}
	}
}

func TestIndicators_SeriesOrdering(t *testing.T) {
	m := NewMACDCross(decimal.Zero, decimal.Zero)

	closes := make([]string, 0, 60)
	price := decimal.NewFromInt(100)
	for i := 0; i < 60; i++ {
		closes = append(closes, price.String())
		price = price.Add(decimal.NewFromInt(1))
	}
	ind := m.Indicators(candlesFromCloses(t, closes))

	if len(ind.MACD) != indicatorDepth {
		t.Fatalf("MACD depth = %d, want %d", len(ind.MACD), indicatorDepth)
	}
	if len(ind.EMA[emaTrend]) != indicatorDepth {
		t.Fatalf("EMA depth = %d, want %d", len(ind.EMA[emaTrend]), indicatorDepth)
	}
	// Newest value corresponds to the highest close, so on a rising
	// series the trend EMA at index 0 exceeds index 1.
	if !ind.EMA[emaTrend][0].GreaterThan(ind.EMA[emaTrend][1]) {
		t.Errorf("EMA not most-recent first: %v then %v", ind.EMA[emaTrend][0], ind.EMA[emaTrend][1])
	}
	if ind.MACD[0].MACD.LessThanOrEqual(decimal.Zero) {
		t.Errorf("rising series should give positive MACD, got %v", ind.MACD[0].MACD)
	}
}

func TestLongEntry(t *testing.T) {
	m := NewMACDCross(decimal.Zero, decimal.Zero)
	candles := []types.Candle{{Close: dec("105")}}

	tests := []struct {
		name     string
		ind      Indicators
		wantType types.OrderType
		wantSide types.Side
	}{
		{
			name: "all conditions met",
			ind: indicatorsWith(
				indicator.MACDValue{MACD: dec("2"), Signal: dec("1"), Histogram: dec("1")},
				indicator.MACDValue{MACD: dec("1.5"), Signal: dec("1"), Histogram: dec("0.5")},
				"100",
			),
			wantType: types.OrderTypeMarket,
			wantSide: types.SideBuy,
		},
		{
			name: "histogram flat",
			ind: indicatorsWith(
				indicator.MACDValue{MACD: dec("2"), Signal: dec("1"), Histogram: dec("1")},
				indicator.MACDValue{MACD: dec("2"), Signal: dec("1"), Histogram: dec("1")},
				"100",
			),
			wantType: types.OrderTypeNone,
		},
		{
			name: "no crossing",
			ind: indicatorsWith(
				indicator.MACDValue{MACD: dec("1"), Signal: dec("2"), Histogram: dec("-1")},
				indicator.MACDValue{MACD: dec("1"), Signal: dec("2"), Histogram: dec("-1")},
				"100",
			),
			wantType: types.OrderTypeNone,
		},
		{
			name: "below trend",
			ind: indicatorsWith(
				indicator.MACDValue{MACD: dec("2"), Signal: dec("1"), Histogram: dec("1")},
				indicator.MACDValue{MACD: dec("1.5"), Signal: dec("1"), Histogram: dec("0.5")},
				"110",
			),
			wantType: types.OrderTypeNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := m.longEntry(types.PositionContext{}, tt.ind, types.PriceBook{}, candles)
			if d == nil {
				t.Fatal("expected a decision")
			}
			if d.OrderType != tt.wantType {
				t.Errorf("OrderType = %v, want %v", d.OrderType, tt.wantType)
			}
			if tt.wantType != types.OrderTypeNone && d.Side != tt.wantSide {
				t.Errorf("Side = %v, want %v", d.Side, tt.wantSide)
			}
			if tt.wantType == types.OrderTypeNone && !d.HasOrderPoint {
				t.Error("non-actionable decision should carry an order point")
			}
		})
	}
}

func TestLongExit_Crossing(t *testing.T) {
	m := NewMACDCross(decimal.Zero, decimal.Zero)
	ind := indicatorsWith(
		indicator.MACDValue{MACD: dec("1"), Signal: dec("2"), Histogram: dec("-1")},
		indicator.MACDValue{MACD: dec("1.5"), Signal: dec("2"), Histogram: dec("-0.5")},
		"100",
	)

	d := m.longExit(types.PositionContext{}, ind, types.PriceBook{}, nil)
	if d == nil || d.OrderType != types.OrderTypeMarket || d.Side != types.SideSell {
		t.Fatalf("expected MARKET SELL, got %+v", d)
	}
}

func TestLongExit_StopLoss(t *testing.T) {
	m := NewMACDCross(decimal.Zero, decimal.Zero)
	// Holding: MACD still above signal, no exit crossing.
	ind := indicatorsWith(
		indicator.MACDValue{MACD: dec("2"), Signal: dec("1"), Histogram: dec("1")},
		indicator.MACDValue{MACD: dec("2"), Signal: dec("1"), Histogram: dec("1")},
		"100",
	)
	cp := types.PositionContext{BuyPrice: dec("50")}

	d := m.longExit(cp, ind, types.PriceBook{Last: dec("50")}, nil)
	if d == nil || d.OrderType != types.OrderTypeStopLossLimit {
		t.Fatalf("expected STOP_LOSS_LIMIT, got %+v", d)
	}
	want := dec("49.8")
	if !d.StopPrice.Equal(want) {
		t.Errorf("StopPrice = %v, want %v", d.StopPrice, want)
	}
	if !d.Price.Equal(want) || !d.StopLimitPrice.Equal(want) {
		t.Errorf("Price/StopLimitPrice = %v/%v, want %v", d.Price, d.StopLimitPrice, want)
	}

	// A resting stop is not re-placed.
	cp.OrderType = types.OrderTypeStopLossLimit
	d = m.longExit(cp, ind, types.PriceBook{Last: dec("50")}, nil)
	if d == nil || d.OrderType != types.OrderTypeNone {
		t.Fatalf("resting stop should yield no new order, got %+v", d)
	}
	if !d.HasOrderPoint {
		t.Error("resting stop should report an order point")
	}
}

func TestLongExit_TakeProfit(t *testing.T) {
	m := NewMACDCross(decimal.Zero, decimal.Zero)
	ind := indicatorsWith(
		indicator.MACDValue{MACD: dec("2"), Signal: dec("1"), Histogram: dec("1")},
		indicator.MACDValue{MACD: dec("2"), Signal: dec("1"), Histogram: dec("1")},
		"100",
	)
	cp := types.PositionContext{BuyPrice: dec("50")}

	d := m.longExit(cp, ind, types.PriceBook{Last: dec("50.5")}, nil)
	if d == nil || d.OrderType != types.OrderTypeMarket || d.Side != types.SideSell {
		t.Fatalf("expected take-profit MARKET SELL at 1%% gain, got %+v", d)
	}

	d = m.longExit(cp, ind, types.PriceBook{Last: dec("50.4")}, nil)
	if d != nil && d.OrderType == types.OrderTypeMarket {
		t.Fatalf("take-profit fired below target: %+v", d)
	}
}

func TestShortExit_StopAboveEntry(t *testing.T) {
	m := NewMACDCross(decimal.Zero, decimal.Zero)
	ind := indicatorsWith(
		indicator.MACDValue{MACD: dec("-2"), Signal: dec("-1"), Histogram: dec("-1")},
		indicator.MACDValue{MACD: dec("-2"), Signal: dec("-1"), Histogram: dec("-1")},
		"100",
	)
	cp := types.PositionContext{BuyPrice: dec("50")}

	d := m.shortExit(cp, ind, types.PriceBook{}, nil)
	if d == nil || d.OrderType != types.OrderTypeStopLossLimit {
		t.Fatalf("expected STOP_LOSS_LIMIT, got %+v", d)
	}
	if !d.StopPrice.Equal(dec("50.2")) {
		t.Errorf("short stop = %v, want 50.2", d.StopPrice)
	}
}

func TestOtherConditions(t *testing.T) {
	m := NewMACDCross(decimal.Zero, decimal.Zero)

	cp := types.PositionContext{MarketStatus: types.MarketCompleteTrade}
	cp = m.OtherConditions(cp, nil, types.PositionLong, nil, Indicators{})
	if cp.MarketStatus != types.MarketTrading {
		t.Errorf("MarketStatus = %v, want trading", cp.MarketStatus)
	}
	if !cp.CanOrder {
		t.Error("trading status should allow ordering")
	}

	cp = types.PositionContext{MarketStatus: types.MarketUnset}
	cp = m.OtherConditions(cp, nil, types.PositionLong, nil, Indicators{})
	if cp.CanOrder {
		t.Error("unset market status should block ordering")
	}
}
