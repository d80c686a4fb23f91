// Package alertflag tracks the per-vehicle boolean alert state and detects
// transitions. Only a transition to true produces a notification candidate;
// re-delivery of an unchanged flag must never re-fire.
package alertflag

import (
	"sync"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
)

type Tracker struct {
	mu   sync.Mutex
	prev map[domain.VehicleKey]bool
}

func New() *Tracker {
	return &Tracker{
		prev: make(map[domain.VehicleKey]bool),
	}
}

// Observe records the newly delivered flag for key and reports whether an
// alert fired. An absent previous value counts as not-equal, so a first
// observation of true fires. A transition to false is stored but never
// fires.
func (t *Tracker) Observe(key domain.VehicleKey, flag bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, seen := t.prev[key]
	if seen && prev == flag {
		return false
	}

	t.prev[key] = flag
	return flag
}

// Tracked returns the number of vehicle keys with a stored flag.
func (t *Tracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.prev)
}
