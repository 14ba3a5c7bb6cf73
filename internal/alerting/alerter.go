// Package alerting provides notification capabilities for the session.
package alerting

import (
	"context"
	"fmt"
)

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityHigh is for high priority alerts.
	SeverityHigh
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// FormatFields converts variadic key-value fields to a formatted string.
func FormatFields(fields ...any) string {
	if len(fields) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		value := fields[i+1]
		if result != "" {
			result += "\n"
		}
		result += fmt.Sprintf("• %s: %v", key, value)
	}
	return result
}

// AlertEvent represents a pre-defined alert event type.
type AlertEvent string

const (
	// EventSessionStarted is sent when the session starts.
	EventSessionStarted AlertEvent = "session_started"
	// EventSessionStopped is sent when the session stops.
	EventSessionStopped AlertEvent = "session_stopped"
	// EventOrderPlaced is sent when an order is placed.
	EventOrderPlaced AlertEvent = "order_placed"
	// EventOrderFilled is sent when an order is filled.
	EventOrderFilled AlertEvent = "order_filled"
	// EventOrderRejected is sent when an order is rejected.
	EventOrderRejected AlertEvent = "order_rejected"
	// EventRoundTripClosed is sent when a round trip completes.
	EventRoundTripClosed AlertEvent = "round_trip_closed"
	// EventInsufficientBalance is sent when the session pauses on a
	// balance rejection.
	EventInsufficientBalance AlertEvent = "insufficient_balance"
	// EventLoanTaken is sent when a margin loan is taken.
	EventLoanTaken AlertEvent = "loan_taken"
	// EventLoanRepaid is sent when a margin loan is repaid.
	EventLoanRepaid AlertEvent = "loan_repaid"
	// EventFeedStale is sent when market data goes stale.
	EventFeedStale AlertEvent = "feed_stale"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventInsufficientBalance:
		return SeverityHigh
	case EventOrderRejected, EventFeedStale:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
