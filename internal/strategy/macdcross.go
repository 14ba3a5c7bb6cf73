package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/types"
	"sessiontrader/pkg/indicator"
)

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	emaTrend   = 23

	// indicatorDepth is how many trailing values each series keeps. Two
	// would do for the crossings; three leaves room for inspection.
	indicatorDepth = 3

	pricePrecision = 8
)

var (
	one           = decimal.NewFromInt(1)
	defaultStop   = decimal.RequireFromString("0.004")
	defaultProfit = decimal.RequireFromString("0.01")
)

// MACDCross trades MACD/signal crossings gated by a trend EMA. Long
// entries require price above the trend EMA with the histogram rising;
// exits fire on the opposite crossing, a protective stop-loss-limit, or
// a take-profit market sell.
type MACDCross struct {
	stopLossPct   decimal.Decimal
	takeProfitPct decimal.Decimal
}

// NewMACDCross builds the rules with the given protective offsets.
// Zero offsets fall back to 0.4% stop and 1% take-profit.
func NewMACDCross(stopLossPct, takeProfitPct decimal.Decimal) *MACDCross {
	if stopLossPct.IsZero() {
		stopLossPct = defaultStop
	}
	if takeProfitPct.IsZero() {
		takeProfitPct = defaultProfit
	}
	return &MACDCross{stopLossPct: stopLossPct, takeProfitPct: takeProfitPct}
}

func (m *MACDCross) Name() string { return "macd-cross" }

// Indicators streams candle closes oldest to newest through the
// calculators and returns the trailing values most-recent first.
func (m *MACDCross) Indicators(candles []types.Candle) Indicators {
	macd := indicator.NewMACD(macdFast, macdSlow, macdSignal)
	ema := indicator.NewEMA(emaTrend)
	rsi := indicator.NewRSI(14)

	ind := Indicators{EMA: map[int][]decimal.Decimal{}}
	for i := len(candles) - 1; i >= 0; i-- {
		close := candles[i].Close

		mv := macd.Update(close)
		if macd.Ready() {
			ind.MACD = prependMACD(ind.MACD, mv)
		}
		ema.Update(close)
		if ema.Ready() {
			ind.EMA[emaTrend] = prepend(ind.EMA[emaTrend], ema.Value())
		}
		rsi.Update(close)
		if rsi.Ready() {
			ind.RSI = prepend(ind.RSI, rsi.Value())
		}
	}
	return ind
}

func prepend(s []decimal.Decimal, v decimal.Decimal) []decimal.Decimal {
	s = append([]decimal.Decimal{v}, s...)
	if len(s) > indicatorDepth {
		s = s[:indicatorDepth]
	}
	return s
}

func prependMACD(s []indicator.MACDValue, v indicator.MACDValue) []indicator.MACDValue {
	s = append([]indicator.MACDValue{v}, s...)
	if len(s) > indicatorDepth {
		s = s[:indicatorDepth]
	}
	return s
}

func (m *MACDCross) Table() Table {
	return Table{
		LongEntry:  m.longEntry,
		LongExit:   m.longExit,
		ShortEntry: m.shortEntry,
		ShortExit:  m.shortExit,
	}
}

// OtherConditions clears a completed round trip back to trading and
// re-derives whether the context may place orders.
func (m *MACDCross) OtherConditions(cp types.PositionContext, ledger []types.TradeRecord, position types.PositionType, candles []types.Candle, ind Indicators) types.PositionContext {
	if cp.MarketStatus == types.MarketCompleteTrade {
		cp.MarketStatus = types.MarketTrading
	}
	cp.CanOrder = cp.MarketStatus == types.MarketTrading
	return cp
}

func (m *MACDCross) longEntry(cp types.PositionContext, ind Indicators, prices types.PriceBook, candles []types.Candle) *Decision {
	if len(ind.MACD) < 2 || len(ind.EMA[emaTrend]) < 1 || len(candles) < 1 {
		return nil
	}
	curr, prev := ind.MACD[0], ind.MACD[1]
	aboveTrend := candles[0].Close.GreaterThan(ind.EMA[emaTrend][0])
	crossedUp := curr.MACD.GreaterThan(curr.Signal)
	rising := curr.Histogram.GreaterThan(prev.Histogram)

	if aboveTrend && crossedUp && rising {
		return &Decision{
			Side:        types.SideBuy,
			OrderType:   types.OrderTypeMarket,
			Description: "LONG entry signal 1",
		}
	}
	if aboveTrend && crossedUp {
		return &Decision{OrderPoint: "entry: waiting histogram rise", HasOrderPoint: true}
	}
	if aboveTrend {
		return &Decision{OrderPoint: "entry: waiting MACD crossing", HasOrderPoint: true}
	}
	return &Decision{OrderPoint: "entry: below trend EMA", HasOrderPoint: true}
}

func (m *MACDCross) longExit(cp types.PositionContext, ind Indicators, prices types.PriceBook, candles []types.Candle) *Decision {
	if len(ind.MACD) < 2 {
		return nil
	}
	curr, prev := ind.MACD[0], ind.MACD[1]

	if curr.Signal.GreaterThan(curr.MACD) && curr.Histogram.LessThan(prev.Histogram) {
		return &Decision{
			Side:        types.SideSell,
			OrderType:   types.OrderTypeMarket,
			Description: "LONG exit signal 1",
		}
	}

	if !cp.BuyPrice.IsZero() {
		if d := m.takeProfit(cp, prices, types.SideSell); d != nil {
			return d
		}
		if d := m.stopLoss(cp, types.SideSell); d != nil {
			return d
		}
	}
	return &Decision{OrderPoint: "exit: holding", HasOrderPoint: true}
}

func (m *MACDCross) shortEntry(cp types.PositionContext, ind Indicators, prices types.PriceBook, candles []types.Candle) *Decision {
	if len(ind.MACD) < 2 || len(ind.EMA[emaTrend]) < 1 || len(candles) < 1 {
		return nil
	}
	curr, prev := ind.MACD[0], ind.MACD[1]
	belowTrend := candles[0].Close.LessThan(ind.EMA[emaTrend][0])
	crossedDown := curr.Signal.GreaterThan(curr.MACD)
	falling := curr.Histogram.LessThan(prev.Histogram)

	if belowTrend && crossedDown && falling {
		return &Decision{
			Side:        types.SideBuy,
			OrderType:   types.OrderTypeMarket,
			Description: "SHORT entry signal 1",
		}
	}
	return &Decision{OrderPoint: "entry: waiting short setup", HasOrderPoint: true}
}

func (m *MACDCross) shortExit(cp types.PositionContext, ind Indicators, prices types.PriceBook, candles []types.Candle) *Decision {
	if len(ind.MACD) < 2 {
		return nil
	}
	curr, prev := ind.MACD[0], ind.MACD[1]

	if curr.MACD.GreaterThan(curr.Signal) && curr.Histogram.GreaterThan(prev.Histogram) {
		return &Decision{
			Side:        types.SideSell,
			OrderType:   types.OrderTypeMarket,
			Description: "SHORT exit signal 1",
		}
	}
	if !cp.BuyPrice.IsZero() {
		if d := m.stopLoss(cp, types.SideSell); d != nil {
			// A short position is underwater when price rises, so the
			// protective stop sits above the entry.
			stop := cp.BuyPrice.Mul(one.Add(m.stopLossPct)).Round(pricePrecision)
			d.Price = stop
			d.StopPrice = stop
			d.StopLimitPrice = stop
			d.Description = "SHORT exit stop-loss"
			return d
		}
	}
	return &Decision{OrderPoint: "exit: holding short", HasOrderPoint: true}
}

// stopLoss produces the protective stop-loss-limit below the entry
// price, or just an order point when one is already resting.
func (m *MACDCross) stopLoss(cp types.PositionContext, side types.Side) *Decision {
	stop := cp.BuyPrice.Mul(one.Sub(m.stopLossPct)).Round(pricePrecision)
	if cp.OrderType == types.OrderTypeStopLossLimit {
		return &Decision{
			OrderPoint:    fmt.Sprintf("exit: stop-loss resting at %s", stop.StringFixed(pricePrecision)),
			HasOrderPoint: true,
		}
	}
	return &Decision{
		Side:           side,
		OrderType:      types.OrderTypeStopLossLimit,
		Description:    "LONG exit stop-loss",
		Price:          stop,
		StopPrice:      stop,
		StopLimitPrice: stop,
		OrderPoint:     fmt.Sprintf("exit: placing stop-loss at %s", stop.StringFixed(pricePrecision)),
		HasOrderPoint:  true,
	}
}

// takeProfit sells at market once price reaches the profit target.
func (m *MACDCross) takeProfit(cp types.PositionContext, prices types.PriceBook, side types.Side) *Decision {
	if prices.Last.IsZero() {
		return nil
	}
	target := cp.BuyPrice.Mul(one.Add(m.takeProfitPct)).Round(pricePrecision)
	if prices.Last.GreaterThanOrEqual(target) && cp.OrderType != types.OrderTypeMarket {
		return &Decision{
			Side:        side,
			OrderType:   types.OrderTypeMarket,
			Description: "LONG exit take-profit",
		}
	}
	return nil
}
