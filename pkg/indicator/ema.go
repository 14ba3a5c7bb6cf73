package indicator

import (
	"github.com/shopspring/decimal"
)

// EMA calculates an Exponential Moving Average. The first value is
// seeded with the SMA of the initial period, after which the standard
// 2/(period+1) multiplier applies.
type EMA struct {
	period     int
	multiplier decimal.Decimal
	seed       *SMA
	value      decimal.Decimal
	ready      bool
}

// NewEMA creates a new EMA calculator with the given period.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	two := decimal.NewFromInt(2)
	return &EMA{
		period:     period,
		multiplier: two.Div(decimal.NewFromInt(int64(period) + 1)),
		seed:       NewSMA(period),
	}
}

// Update adds a new value and returns the current EMA.
// Returns zero until the seed window is full.
func (e *EMA) Update(value decimal.Decimal) decimal.Decimal {
	if !e.ready {
		seeded := e.seed.Update(value)
		if e.seed.Ready() {
			e.value = seeded
			e.ready = true
		}
		return e.Value()
	}

	e.value = value.Sub(e.value).Mul(e.multiplier).Add(e.value)
	return e.value
}

// Value returns the current EMA without adding new data.
func (e *EMA) Value() decimal.Decimal {
	if !e.ready {
		return decimal.Zero
	}
	return e.value
}

// Ready returns true once the seed window is full.
func (e *EMA) Ready() bool {
	return e.ready
}

// Reset clears all data.
func (e *EMA) Reset() {
	e.seed.Reset()
	e.value = decimal.Zero
	e.ready = false
}
