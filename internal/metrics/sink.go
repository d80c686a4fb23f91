package metrics

import (
	"strings"
	"time"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the metrics backend is unavailable, implementations
// log warnings and continue.
type Sink interface {
	// Engine metrics
	VehicleChangeProcessed()
	MalformedPayload(field string)
	EventEmitted(kind string)
	DispatchOutcome(kind string, outcome string)
	RecipientsResolved(count int)

	// Deadline scheduler metrics
	DeadlineTick()
	DeadlineArmedSet(armed bool)
	ActiveVehiclesObserved(count int)

	// Push dispatcher metrics
	PushAttemptCompleted(statusClass string, duration time.Duration)

	// Feed bus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()
}

// Outcome constants for DispatchOutcome.
const (
	OutcomeDelivered    = "delivered"
	OutcomeFailed       = "failed"
	OutcomeNoRecipients = "no_recipients"
	OutcomeLookupFailed = "lookup_failed"
)

// StatusClass constants for PushAttemptCompleted. Bounded cardinality.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
	StatusClassSuppressed      = "suppressed"
)

// ClassifyStatus maps a status code and error to a status class.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
			return StatusClassTimeout
		}
		if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
			strings.Contains(msg, "network is unreachable") || strings.Contains(msg, "dial") {
			return StatusClassConnectionError
		}
		return StatusClassOtherError
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}
