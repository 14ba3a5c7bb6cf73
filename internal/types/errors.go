package types

import "errors"

// Sentinel errors for the trading system.
var (
	// Session errors
	ErrNoFeed         = errors.New("no market data feed: neither live nor historical feed supplied")
	ErrAlreadyRunning = errors.New("session already running")
	ErrInvalidState   = errors.New("runtime state transition not allowed")
	ErrSessionStopped = errors.New("session stopped")

	// Data errors
	ErrDataUnavailable = errors.New("market data unavailable")
	ErrStaleData       = errors.New("market data is stale")

	// Gateway errors
	ErrGatewayRequired = errors.New("exchange gateway required for live runs")
	ErrOrderRejected   = errors.New("order rejected by exchange")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidSymbol = errors.New("invalid symbol")
)
