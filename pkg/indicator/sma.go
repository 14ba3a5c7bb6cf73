// Package indicator provides technical indicator calculations.
package indicator

import (
	"github.com/shopspring/decimal"
)

// SMA calculates a Simple Moving Average over a fixed period.
type SMA struct {
	period int
	window []decimal.Decimal
	sum    decimal.Decimal
}

// NewSMA creates a new SMA calculator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		window: make([]decimal.Decimal, 0, period),
		sum:    decimal.Zero,
	}
}

// Update adds a new value and returns the current SMA.
// Returns zero until the window is full.
func (s *SMA) Update(value decimal.Decimal) decimal.Decimal {
	s.window = append(s.window, value)
	s.sum = s.sum.Add(value)

	if len(s.window) > s.period {
		s.sum = s.sum.Sub(s.window[0])
		s.window = s.window[1:]
	}

	return s.Value()
}

// Value returns the current SMA without adding new data.
func (s *SMA) Value() decimal.Decimal {
	if !s.Ready() {
		return decimal.Zero
	}
	return s.sum.Div(decimal.NewFromInt(int64(s.period)))
}

// Ready returns true once the window is full.
func (s *SMA) Ready() bool {
	return len(s.window) >= s.period
}

// Reset clears all data.
func (s *SMA) Reset() {
	s.window = s.window[:0]
	s.sum = decimal.Zero
}
