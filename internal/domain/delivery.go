package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryRecord is the audit entry written after a dispatch attempt.
type DeliveryRecord struct {
	ID      uuid.UUID
	EventID uuid.UUID

	Kind       EventKind
	Vehicle    VehicleKey
	TokenCount int
	Title      string

	// Error is empty on success.
	Error string

	SentAt time.Time
}
