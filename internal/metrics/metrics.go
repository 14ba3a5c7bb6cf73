// Package metrics exposes Prometheus metrics for the trading session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksTotal counts control loop iterations.
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_ticks_total",
		Help: "Control loop iterations by symbol.",
	}, []string{"symbol"})

	// TickDuration observes control loop iteration time.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_tick_duration_seconds",
		Help:    "Control loop iteration duration.",
		Buckets: prometheus.DefBuckets,
	})

	// OrdersTotal counts order placements by result.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_orders_total",
		Help: "Orders placed by symbol, side, type and result.",
	}, []string{"symbol", "side", "type", "result"})

	// FillsTotal counts applied fills.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_fills_total",
		Help: "Fills applied by symbol, side and status.",
	}, []string{"symbol", "side", "status"})

	// RoundTripsTotal counts completed round trips.
	RoundTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_round_trips_total",
		Help: "Completed round trips by symbol and outcome.",
	}, []string{"symbol", "outcome"})

	// OutcomeTotal tracks cumulative realized outcome in quote units.
	OutcomeTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_outcome_total",
		Help: "Cumulative realized outcome in quote asset units.",
	}, []string{"symbol"})

	// RuntimeState reports the session runtime state as its numeric
	// code.
	RuntimeState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_runtime_state",
		Help: "Current runtime state code.",
	}, []string{"symbol"})

	// WalletFree reports free wallet balances.
	WalletFree = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_wallet_free",
		Help: "Free wallet balance by asset.",
	}, []string{"symbol", "asset"})

	// LoanOutstanding reports open margin loan principal.
	LoanOutstanding = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_loan_outstanding",
		Help: "Outstanding margin loan by asset.",
	}, []string{"symbol", "asset"})
)
