package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recorder provides methods for recording metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordTick records one control loop iteration.
func (r *Recorder) RecordTick(symbol string, duration time.Duration) {
	TicksTotal.WithLabelValues(symbol).Inc()
	TickDuration.Observe(duration.Seconds())
}

// RecordOrder records an order placement attempt.
func (r *Recorder) RecordOrder(symbol, side, orderType, result string) {
	OrdersTotal.WithLabelValues(symbol, side, orderType, result).Inc()
}

// RecordFill records an applied fill.
func (r *Recorder) RecordFill(symbol, side, status string) {
	FillsTotal.WithLabelValues(symbol, side, status).Inc()
}

// RecordRoundTrip records a completed round trip and the running
// outcome total.
func (r *Recorder) RecordRoundTrip(symbol string, outcome, total decimal.Decimal) {
	result := "loss"
	if outcome.IsPositive() {
		result = "win"
	}
	RoundTripsTotal.WithLabelValues(symbol, result).Inc()
	OutcomeTotal.WithLabelValues(symbol).Set(total.InexactFloat64())
}

// RecordRuntimeState records the current runtime state code.
func (r *Recorder) RecordRuntimeState(symbol string, state int) {
	RuntimeState.WithLabelValues(symbol).Set(float64(state))
}

// RecordWallet records a free wallet balance.
func (r *Recorder) RecordWallet(symbol, asset string, free decimal.Decimal) {
	WalletFree.WithLabelValues(symbol, asset).Set(free.InexactFloat64())
}

// RecordLoan records outstanding margin loan principal.
func (r *Recorder) RecordLoan(symbol, asset string, amount decimal.Decimal) {
	LoanOutstanding.WithLabelValues(symbol, asset).Set(amount.InexactFloat64())
}
