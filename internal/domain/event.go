package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventVehicleAlert     EventKind = "vehicle_alert"
	EventExpirySoon       EventKind = "expiry_soon"
	EventDeadlineWarning  EventKind = "deadline_warning"
	EventDeadlineExceeded EventKind = "deadline_exceeded"
)

// Event is a notification candidate produced by the engine's evaluators.
type Event struct {
	ID      uuid.UUID
	Kind    EventKind
	Vehicle VehicleKey

	// RemainingMinutes is set for expiry_soon events only.
	RemainingMinutes int

	FiredAt time.Time
}
