// Package feed provides market data and account event feeds.
package feed

import (
	"sync"
	"time"

	"sessiontrader/internal/types"
)

// MarketFeed defines the interface for market data sources. The session
// polls snapshots each tick rather than consuming a stream directly.
type MarketFeed interface {
	// Candles returns the candle window, most-recent first.
	Candles() ([]types.Candle, error)

	// Depth returns the current order book snapshot.
	Depth() (types.Depth, error)

	// LastUpdate returns the time of the most recent market update.
	LastUpdate() time.Time

	// Close shuts down the feed and releases resources.
	Close() error

	// Name returns the feed identifier (e.g., "binance-ws", "history").
	Name() string
}

// UserStream buffers account events between session ticks. Reads drain
// the buffer.
type UserStream interface {
	// Reports returns and clears the buffered execution reports, in
	// arrival order.
	Reports() []types.ExecutionReport

	// Account returns the latest wallet update, if one arrived since
	// the previous call.
	Account() (types.AccountUpdate, bool)
}

// PriceBookFrom derives the working price snapshot from candles and
// depth. Last is the newest close; Ask and Bid come from the top of
// book, falling back to Last when a side is empty.
func PriceBookFrom(candles []types.Candle, depth types.Depth) types.PriceBook {
	var pb types.PriceBook
	if len(candles) > 0 {
		pb.Last = candles[0].Close
	}
	pb.Ask = pb.Last
	pb.Bid = pb.Last
	if len(depth.Asks) > 0 {
		pb.Ask = depth.Asks[0].Price
	}
	if len(depth.Bids) > 0 {
		pb.Bid = depth.Bids[0].Price
	}
	return pb
}

// Buffer is the mutex-guarded snapshot store shared by feed
// implementations. Writers replace market snapshots and append account
// events; readers take copies.
type Buffer struct {
	mu          sync.Mutex
	candles     []types.Candle
	candleLimit int
	depth       types.Depth
	lastUpdate  time.Time

	reports    []types.ExecutionReport
	account    types.AccountUpdate
	hasAccount bool
}

// NewBuffer creates a buffer keeping at most limit candles.
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = 500
	}
	return &Buffer{candleLimit: limit}
}

// PushCandle inserts a candle at the front. A candle with the same open
// time as the current head replaces it, so in-progress klines update in
// place.
func (b *Buffer) PushCandle(c types.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.candles) > 0 && b.candles[0].OpenTime.Equal(c.OpenTime) {
		b.candles[0] = c
	} else {
		b.candles = append([]types.Candle{c}, b.candles...)
		if len(b.candles) > b.candleLimit {
			b.candles = b.candles[:b.candleLimit]
		}
	}
	b.lastUpdate = time.Now()
}

// SetCandles replaces the whole window (most-recent first).
func (b *Buffer) SetCandles(candles []types.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.candles = candles
	if len(b.candles) > b.candleLimit {
		b.candles = b.candles[:b.candleLimit]
	}
	b.lastUpdate = time.Now()
}

// SetDepth replaces the order book snapshot.
func (b *Buffer) SetDepth(d types.Depth) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.depth = d
	b.lastUpdate = time.Now()
}

// PushReport appends an execution report.
func (b *Buffer) PushReport(r types.ExecutionReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports = append(b.reports, r)
}

// SetAccount stores the latest wallet update.
func (b *Buffer) SetAccount(a types.AccountUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.account = a
	b.hasAccount = true
}

// Candles returns a copy of the candle window, most-recent first.
func (b *Buffer) Candles() []types.Candle {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Candle, len(b.candles))
	copy(out, b.candles)
	return out
}

// Depth returns the current order book snapshot.
func (b *Buffer) Depth() types.Depth {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depth
}

// LastUpdate returns the time of the most recent market update.
func (b *Buffer) LastUpdate() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpdate
}

// Reports drains the buffered execution reports.
func (b *Buffer) Reports() []types.ExecutionReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.reports
	b.reports = nil
	return out
}

// Account drains the latest wallet update.
func (b *Buffer) Account() (types.AccountUpdate, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasAccount {
		return types.AccountUpdate{}, false
	}
	b.hasAccount = false
	return b.account, true
}
