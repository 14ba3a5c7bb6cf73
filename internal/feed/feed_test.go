package feed

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuffer_PushCandle(t *testing.T) {
	b := NewBuffer(3)
	t0 := time.Unix(1000, 0)

	b.PushCandle(types.Candle{OpenTime: t0, Close: dec("10")})
	b.PushCandle(types.Candle{OpenTime: t0, Close: dec("11")}) // same kline updates in place
	candles := b.Candles()
	if len(candles) != 1 {
		t.Fatalf("len = %d, want 1 after in-place update", len(candles))
	}
	if !candles[0].Close.Equal(dec("11")) {
		t.Errorf("Close = %v, want 11", candles[0].Close)
	}

	for i := 1; i <= 4; i++ {
		b.PushCandle(types.Candle{OpenTime: t0.Add(time.Duration(i) * time.Minute), Close: dec("20")})
	}
	candles = b.Candles()
	if len(candles) != 3 {
		t.Errorf("len = %d, want capped at 3", len(candles))
	}
	if !candles[0].OpenTime.Equal(t0.Add(4 * time.Minute)) {
		t.Errorf("head OpenTime = %v, want newest first", candles[0].OpenTime)
	}
}

func TestBuffer_DrainSemantics(t *testing.T) {
	b := NewBuffer(10)
	b.PushReport(types.ExecutionReport{OrderID: 1})
	b.PushReport(types.ExecutionReport{OrderID: 2})

	reports := b.Reports()
	if len(reports) != 2 || reports[0].OrderID != 1 {
		t.Fatalf("reports = %+v, want [1 2] in arrival order", reports)
	}
	if got := b.Reports(); len(got) != 0 {
		t.Errorf("second drain returned %d reports, want 0", len(got))
	}

	b.SetAccount(types.AccountUpdate{EventTime: 5})
	if a, ok := b.Account(); !ok || a.EventTime != 5 {
		t.Errorf("Account() = %+v, %v", a, ok)
	}
	if _, ok := b.Account(); ok {
		t.Error("second Account() should report nothing pending")
	}
}

func TestPriceBookFrom(t *testing.T) {
	candles := []types.Candle{{Close: dec("50")}}
	depth := types.Depth{
		Asks: []types.PriceLevel{{Price: dec("50.1")}},
		Bids: []types.PriceLevel{{Price: dec("49.9")}},
	}

	pb := PriceBookFrom(candles, depth)
	if !pb.Last.Equal(dec("50")) || !pb.Ask.Equal(dec("50.1")) || !pb.Bid.Equal(dec("49.9")) {
		t.Errorf("PriceBookFrom = %+v", pb)
	}

	// Empty book falls back to last price.
	pb = PriceBookFrom(candles, types.Depth{})
	if !pb.Ask.Equal(dec("50")) || !pb.Bid.Equal(dec("50")) {
		t.Errorf("fallback PriceBookFrom = %+v", pb)
	}
}

func TestParseCSV(t *testing.T) {
	csvData := `timestamp,open,high,low,close,volume
1609459200,29000.0,29100.0,28900.0,29050.0,120.5
2021-01-01 01:00:00,29050.0,29200.0,29000.0,29150.0,98.2
not-a-row,x,y,z,w,v
1609466400,29150.0,29300.0,29100.0,29280.0,76.1
`
	candles, err := ParseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("len = %d, want 3 (header and bad row skipped)", len(candles))
	}
	if !candles[0].Close.Equal(dec("29050.0")) {
		t.Errorf("first close = %v, want 29050.0", candles[0].Close)
	}
	if candles[0].OpenTime.Unix() != 1609459200 {
		t.Errorf("first open time = %v", candles[0].OpenTime)
	}
	if !candles[2].Volume.Equal(dec("76.1")) {
		t.Errorf("third volume = %v, want 76.1", candles[2].Volume)
	}
}

func TestHistory_Replay(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/candles.csv"
	csvData := "1000,1,1,1,10,5\n1060,1,1,1,11,5\n1120,1,1,1,12,5\n"
	if err := os.WriteFile(path, []byte(csvData), 0o644); err != nil {
		t.Fatal(err)
	}

	h := NewHistory(path, 2)
	if _, err := h.Candles(); err == nil {
		t.Fatal("Candles before first Step should fail")
	}

	if !h.Step() {
		t.Fatal("first Step failed")
	}
	candles, err := h.Candles()
	if err != nil || len(candles) != 1 {
		t.Fatalf("after one step: %v candles, err %v", len(candles), err)
	}
	if !candles[0].Close.Equal(dec("10")) {
		t.Errorf("close = %v, want 10", candles[0].Close)
	}

	h.Step()
	h.Step()
	candles, _ = h.Candles()
	if len(candles) != 2 {
		t.Fatalf("window len = %d, want capped at 2", len(candles))
	}
	if !candles[0].Close.Equal(dec("12")) || !candles[1].Close.Equal(dec("11")) {
		t.Errorf("window = %v,%v, want 12,11 most-recent first", candles[0].Close, candles[1].Close)
	}

	depth, err := h.Depth()
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if !depth.Asks[0].Price.Equal(dec("12")) || !depth.Bids[0].Price.Equal(dec("12")) {
		t.Errorf("synthesized depth = %+v, want current close on both sides", depth)
	}

	if h.Step() {
		t.Error("Step past end should return false")
	}
	if h.CandleCount() != 3 {
		t.Errorf("CandleCount = %d, want 3", h.CandleCount())
	}
}

func TestHandleMarketMessage(t *testing.T) {
	f := NewBinanceWS(WSOptions{Symbol: "BTCUSDT", Interval: "1m"})

	kline := `{"stream":"btcusdt@kline_1m","data":{"e":"kline","k":{"t":1609459200000,"o":"29000","h":"29100","l":"28900","c":"29050","v":"12.5"}}}`
	f.handleMarketMessage([]byte(kline))
	candles, err := f.Candles()
	if err != nil || len(candles) != 1 {
		t.Fatalf("candles = %v, err %v", candles, err)
	}
	if !candles[0].Close.Equal(dec("29050")) {
		t.Errorf("close = %v, want 29050", candles[0].Close)
	}

	depth := `{"stream":"btcusdt@depth5@100ms","data":{"lastUpdateId":7,"bids":[["29040","1.2"]],"asks":[["29060","0.8"]]}}`
	f.handleMarketMessage([]byte(depth))
	d, err := f.Depth()
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if !d.Bids[0].Price.Equal(dec("29040")) || !d.Asks[0].Quantity.Equal(dec("0.8")) {
		t.Errorf("depth = %+v", d)
	}

	// Garbage is dropped without state change.
	f.handleMarketMessage([]byte(`{"stream":`))
	if _, err := f.Candles(); err != nil {
		t.Errorf("garbage message should not clear candles: %v", err)
	}
}

func TestHandleUserMessage(t *testing.T) {
	f := NewBinanceWS(WSOptions{Symbol: "BTCUSDT", Interval: "1m"})

	report := `{"e":"executionReport","E":1700000000500,"s":"BTCUSDT","S":"SELL","i":42,"X":"FILLED","L":"29100","z":"0.010"}`
	f.handleUserMessage([]byte(report))
	reports := f.Reports()
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	r := reports[0]
	if r.OrderID != 42 || r.Side != types.SideSell || r.Status != types.ReportFilled {
		t.Errorf("report = %+v", r)
	}
	if !r.LastPrice.Equal(dec("29100")) || !r.Quantity.Equal(dec("0.010")) {
		t.Errorf("report prices = %v @ %v", r.Quantity, r.LastPrice)
	}

	wallet := `{"e":"outboundAccountPosition","E":1700000001000,"B":[{"a":"BTC","f":"0.5","l":"0.1"},{"a":"USDT","f":"1000","l":"0"}]}`
	f.handleUserMessage([]byte(wallet))
	update, ok := f.Account()
	if !ok || update.EventTime != 1700000001000 {
		t.Fatalf("account update = %+v, %v", update, ok)
	}
	if !update.Balances["BTC"].Free.Equal(dec("0.5")) || !update.Balances["USDT"].Free.Equal(dec("1000")) {
		t.Errorf("balances = %+v", update.Balances)
	}
}
