package domain

import "time"

// VehicleKey identifies a tracked vehicle by its license-plate string.
// Stable across updates; primary or secondary plates share the same type.
type VehicleKey string

// VehicleChange is one normalized change-feed delivery for a vehicle record.
// Fields that were absent or failed boundary validation are nil.
type VehicleChange struct {
	Key VehicleKey

	// AlertFlag is the observed boolean alert state. nil when the payload
	// carried no flag or a non-boolean value.
	AlertFlag *bool

	// ExpiresAt is the raw per-vehicle expiry time in "2006-01-02 15:04:05"
	// civil format. nil when absent.
	ExpiresAt *string

	ReceivedAt time.Time
}

// DeadlineChange is a shared-deadline update from the change feed.
// Value is a civil time-of-day "15:04:05"; nil clears the deadline.
type DeadlineChange struct {
	Value *string

	ReceivedAt time.Time
}
