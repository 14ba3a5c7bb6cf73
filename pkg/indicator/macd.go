package indicator

import (
	"github.com/shopspring/decimal"
)

// MACDValue is one MACD observation: the MACD line, its signal line
// and the histogram (macd − signal).
type MACDValue struct {
	MACD      decimal.Decimal
	Signal    decimal.Decimal
	Histogram decimal.Decimal
}

// MACD calculates Moving Average Convergence Divergence with the usual
// fast/slow/signal EMA construction.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
}

// NewMACD creates a new MACD calculator. The conventional setup is
// NewMACD(12, 26, 9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

// Update adds a new value and returns the current MACD observation.
// Returns zeros until the slow EMA and the signal EMA are both seeded.
func (m *MACD) Update(value decimal.Decimal) MACDValue {
	fast := m.fast.Update(value)
	slow := m.slow.Update(value)

	if !m.slow.Ready() {
		return MACDValue{}
	}

	line := fast.Sub(slow)
	signal := m.signal.Update(line)
	if !m.signal.Ready() {
		return MACDValue{MACD: line}
	}

	return MACDValue{
		MACD:      line,
		Signal:    signal,
		Histogram: line.Sub(signal),
	}
}

// Ready returns true once a full observation (including the signal
// line) is available.
func (m *MACD) Ready() bool {
	return m.slow.Ready() && m.signal.Ready()
}

// Reset clears all data.
func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
}
