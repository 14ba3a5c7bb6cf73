package feed

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/types"
)

// History replays candles from a CSV file for simulated runs. The
// session advances the cursor one candle per tick; Candles exposes the
// window seen so far, most-recent first.
type History struct {
	filePath string
	window   int
	candles  []types.Candle // chronological
	cursor   int
	loaded   bool
}

// NewHistory creates a history feed from a CSV file.
// CSV format: timestamp,open,high,low,close,volume
// Timestamp format: 2006-01-02 15:04:05 or Unix timestamp
func NewHistory(filePath string, window int) *History {
	if window <= 0 {
		window = 500
	}
	return &History{filePath: filePath, window: window}
}

// Load reads and parses the CSV file. Step and Candles call it lazily.
func (h *History) Load() error {
	if h.loaded {
		return nil
	}
	file, err := os.Open(h.filePath)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	candles, err := ParseCSV(file)
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("history file %s: %w", h.filePath, types.ErrDataUnavailable)
	}
	h.candles = candles
	h.loaded = true
	return nil
}

// Step advances to the next candle. It returns false when the replay is
// exhausted.
func (h *History) Step() bool {
	if err := h.Load(); err != nil {
		return false
	}
	if h.cursor >= len(h.candles) {
		return false
	}
	h.cursor++
	return true
}

// Candles returns the replay window up to the cursor, most-recent first.
func (h *History) Candles() ([]types.Candle, error) {
	if err := h.Load(); err != nil {
		return nil, err
	}
	if h.cursor == 0 {
		return nil, types.ErrDataUnavailable
	}
	start := h.cursor - h.window
	if start < 0 {
		start = 0
	}
	visible := h.candles[start:h.cursor]
	out := make([]types.Candle, len(visible))
	for i, c := range visible {
		out[len(visible)-1-i] = c
	}
	return out, nil
}

// Depth synthesizes a one-level book at the current close. Replays have
// no spread.
func (h *History) Depth() (types.Depth, error) {
	if h.cursor == 0 || h.cursor > len(h.candles) {
		return types.Depth{}, types.ErrDataUnavailable
	}
	current := h.candles[h.cursor-1]
	level := []types.PriceLevel{{Price: current.Close, Quantity: current.Volume}}
	return types.Depth{Asks: level, Bids: level}, nil
}

// LastUpdate returns the wall clock so staleness checks never trip
// during a replay.
func (h *History) LastUpdate() time.Time { return time.Now() }

// Close releases resources.
func (h *History) Close() error {
	h.candles = nil
	h.loaded = false
	h.cursor = 0
	return nil
}

// Name returns the feed identifier.
func (h *History) Name() string { return "history" }

// CandleCount returns the number of loaded candles.
func (h *History) CandleCount() int {
	return len(h.candles)
}

// ParseCSV parses candle data from a CSV reader. An optional header row
// is skipped; rows that fail to parse are dropped.
func ParseCSV(r io.Reader) ([]types.Candle, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true

	var candles []types.Candle
	lineNum := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		lineNum++

		// Skip header row
		if lineNum == 1 && isHeader(record) {
			continue
		}

		if len(record) < 5 {
			continue // Skip invalid rows
		}

		candle, err := parseRecord(record)
		if err != nil {
			// Skip invalid rows instead of failing
			continue
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
	if err == nil {
		return false
	}
	_, err = time.Parse("2006-01-02 15:04:05", strings.TrimSpace(record[0]))
	return err != nil
}

func parseRecord(record []string) (types.Candle, error) {
	var c types.Candle
	ts, err := parseTimestamp(strings.TrimSpace(record[0]))
	if err != nil {
		return c, err
	}
	c.OpenTime = ts

	fields := []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close}
	for i, dst := range fields {
		v, err := decimal.NewFromString(strings.TrimSpace(record[i+1]))
		if err != nil {
			return c, err
		}
		*dst = v
	}
	if len(record) > 5 {
		if v, err := decimal.NewFromString(strings.TrimSpace(record[5])); err == nil {
			c.Volume = v
		}
	}
	return c, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Millisecond timestamps are thirteen digits.
		if unix > 1e12 {
			return time.UnixMilli(unix), nil
		}
		return time.Unix(unix, 0), nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
