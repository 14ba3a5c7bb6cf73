package journal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleRoundTrip() types.RoundTrip {
	return types.RoundTrip{
		Symbol: "BTCUSDT",
		Buy: types.TradeRecord{
			ID:       "buy-1",
			Time:     time.Date(2021, 1, 1, 10, 0, 0, 0, time.UTC),
			Price:       dec("100"),
			Quantity:    dec("0.2"),
			Description: "Signal MARKET",
			Side:        types.SideBuy,
		},
		Sell: types.TradeRecord{
			ID:       "sell-1",
			Time:     time.Date(2021, 1, 1, 11, 30, 0, 0, time.UTC),
			Price:       dec("200"),
			Quantity:    dec("0.2"),
			Description: "Profit LIMIT",
			Side:        types.SideSell,
		},
	}
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(sampleRoundTrip())
	want := "BuyTime:2021-01-01 10:00:00, BuyPrice:100.00000000, BuyQuantity:0.20000000, BuyType:Signal MARKET, " +
		"SellTime:2021-01-01 11:30:00, SellPrice:200.00000000, SellQuantity:0.20000000, SellType:Profit LIMIT, " +
		"Outcome:20.00000000\n"
	if line != want {
		t.Errorf("FormatLine =\n%qwant\n%q", line, want)
	}
}

func TestJournal_Record(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJournal(dir, "BTCUSDT")
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	if j.Path() != filepath.Join(dir, "BTCUSDT.txt") {
		t.Errorf("Path() = %s", j.Path())
	}

	rt := sampleRoundTrip()
	if err := j.Record(rt); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(rt); err != nil {
		t.Fatalf("second record: %v", err)
	}

	data, err := os.ReadFile(j.Path())
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2 (appends, never truncates)", len(lines))
	}
	if !strings.Contains(lines[0], "Outcome:20.00000000") {
		t.Errorf("line = %q", lines[0])
	}
}

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trades.db")
	repo, err := NewRepository(path)
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_RecordsRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	rt := sampleRoundTrip()

	if err := repo.SaveRecord(ctx, rt.Symbol, types.PositionLong, rt.Buy); err != nil {
		t.Fatalf("save buy: %v", err)
	}
	if err := repo.SaveRecord(ctx, rt.Symbol, types.PositionLong, rt.Sell); err != nil {
		t.Fatalf("save sell: %v", err)
	}
	if err := repo.SaveRoundTrip(ctx, rt); err != nil {
		t.Fatalf("save round trip: %v", err)
	}

	records, err := repo.Records(ctx, rt.Symbol, types.PositionLong)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Side != types.SideBuy || records[1].Side != types.SideSell {
		t.Errorf("record order = %v then %v, want BUY then SELL", records[0].Side, records[1].Side)
	}
	if !records[0].Price.Equal(dec("100")) {
		t.Errorf("buy price = %v, want 100", records[0].Price)
	}

	// Other position types see nothing.
	records, err = repo.Records(ctx, rt.Symbol, types.PositionShort)
	if err != nil {
		t.Fatalf("records short: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("short records = %d, want 0", len(records))
	}

	total, err := repo.TotalOutcome(ctx, rt.Symbol)
	if err != nil {
		t.Fatalf("total outcome: %v", err)
	}
	if !total.Equal(dec("20")) {
		t.Errorf("total outcome = %v, want 20", total)
	}
}
