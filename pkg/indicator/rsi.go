package indicator

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RSI calculates the Relative Strength Index with Wilder's smoothing.
type RSI struct {
	period  int
	prev    decimal.Decimal
	hasPrev bool
	seen    int
	avgUp   decimal.Decimal
	avgDown decimal.Decimal
}

// NewRSI creates a new RSI calculator with the given period.
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{period: period}
}

// Update adds a new price and returns the current RSI.
// Returns zero until one full period of deltas has been observed.
func (r *RSI) Update(price decimal.Decimal) decimal.Decimal {
	if !r.hasPrev {
		r.prev = price
		r.hasPrev = true
		return decimal.Zero
	}

	delta := price.Sub(r.prev)
	r.prev = price

	up := decimal.Zero
	down := decimal.Zero
	if delta.IsPositive() {
		up = delta
	} else {
		down = delta.Abs()
	}

	n := decimal.NewFromInt(int64(r.period))
	if r.seen < r.period {
		// Accumulate the seed averages.
		r.avgUp = r.avgUp.Add(up.Div(n))
		r.avgDown = r.avgDown.Add(down.Div(n))
		r.seen++
		if r.seen < r.period {
			return decimal.Zero
		}
	} else {
		nMinusOne := decimal.NewFromInt(int64(r.period - 1))
		r.avgUp = r.avgUp.Mul(nMinusOne).Add(up).Div(n)
		r.avgDown = r.avgDown.Mul(nMinusOne).Add(down).Div(n)
	}

	return r.Value()
}

// Value returns the current RSI without adding new data.
func (r *RSI) Value() decimal.Decimal {
	if !r.Ready() {
		return decimal.Zero
	}
	if r.avgDown.IsZero() {
		return hundred
	}
	rs := r.avgUp.Div(r.avgDown)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// Ready returns true once a full period of deltas has been observed.
func (r *RSI) Ready() bool {
	return r.seen >= r.period
}

// Reset clears all data.
func (r *RSI) Reset() {
	r.prev = decimal.Zero
	r.hasPrev = false
	r.seen = 0
	r.avgUp = decimal.Zero
	r.avgDown = decimal.Zero
}
