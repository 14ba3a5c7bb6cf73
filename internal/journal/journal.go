// Package journal records completed round trips.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sessiontrader/internal/types"
)

const timeLayout = "2006-01-02 15:04:05"

// Journal appends completed round trips to a per-symbol text file, one
// line per trade.
type Journal struct {
	mu   sync.Mutex
	path string
}

// NewJournal creates the journal directory if needed and returns a
// journal writing to <dir>/<symbol>.txt.
func NewJournal(dir, symbol string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &Journal{path: filepath.Join(dir, symbol+".txt")}, nil
}

// Record appends one completed round trip.
func (j *Journal) Record(rt types.RoundTrip) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(rt)); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// FormatLine renders one round trip as a journal line. Prices,
// quantities and the outcome are written with eight decimal places.
func FormatLine(rt types.RoundTrip) string {
	outcome := types.ComputeOutcome(rt.Buy, rt.Sell)
	return fmt.Sprintf("BuyTime:%s, BuyPrice:%s, BuyQuantity:%s, BuyType:%s, SellTime:%s, SellPrice:%s, SellQuantity:%s, SellType:%s, Outcome:%s\n",
		rt.Buy.Time.Format(timeLayout),
		rt.Buy.Price.StringFixed(8),
		rt.Buy.Quantity.StringFixed(8),
		rt.Buy.Description,
		rt.Sell.Time.Format(timeLayout),
		rt.Sell.Price.StringFixed(8),
		rt.Sell.Quantity.StringFixed(8),
		rt.Sell.Description,
		outcome.StringFixed(8))
}
