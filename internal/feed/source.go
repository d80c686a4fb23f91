// Package feed defines the change-feed contract the engine consumes and an
// in-memory bus implementation for embedding and tests. Dynamic payloads
// are validated here, at the boundary: anything that fails validation is
// dropped with a diagnostic and never reaches the engine.
package feed

import (
	"context"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
)

// Source is a push-based change feed. The channels carry a lazy, infinite
// sequence of validated changes; Close cancels the underlying subscription
// and is the only way to end the streams.
type Source interface {
	// VehicleChanges streams per-vehicle record updates.
	VehicleChanges() <-chan domain.VehicleChange

	// DeadlineChanges streams shared-deadline updates.
	DeadlineChanges() <-chan domain.DeadlineChange

	// ActiveVehicles reads the current active vehicle set. Used only to
	// enumerate keys for broadcast events.
	ActiveVehicles(ctx context.Context) ([]domain.VehicleKey, error)

	Close() error
}
