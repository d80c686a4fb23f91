package deadline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
)

var ict = time.FixedZone("UTC+7", 7*60*60)

type mockActiveSet struct {
	mu   sync.Mutex
	keys []domain.VehicleKey
	err  error
}

func (m *mockActiveSet) ActiveVehicles(ctx context.Context) ([]domain.VehicleKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys, m.err
}

type mockEmitter struct {
	mu     sync.Mutex
	events []domain.Event
}

func (e *mockEmitter) Emit(ctx context.Context, event domain.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *mockEmitter) count(kind domain.EventKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// newTestScheduler arms nothing yet; the tick interval is large so the real
// timer goroutine stays quiet and tests drive tick() directly.
func newTestScheduler(active *mockActiveSet, emitter *mockEmitter) *Scheduler {
	return New(Config{TickInterval: time.Hour, Location: ict}, active, emitter)
}

func TestScheduler_SetResolvesCivilTime(t *testing.T) {
	active := &mockActiveSet{}
	emitter := &mockEmitter{}
	s := newTestScheduler(active, emitter)
	defer s.Stop()

	// 05:00 UTC is 12:00 at +07:00, so "today" is 2025-07-26 in both zones.
	now := time.Date(2025, 7, 26, 5, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	if err := s.Set(context.Background(), "18:30:00"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, armed := s.Current()
	if !armed {
		t.Fatal("scheduler should be armed after Set")
	}
	// 18:30 at +07:00 is 11:30 UTC, regardless of the host timezone.
	want := time.Date(2025, 7, 26, 11, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("deadline = %v, want %v", got.UTC(), want)
	}
}

func TestScheduler_SetInvalidValue(t *testing.T) {
	active := &mockActiveSet{}
	emitter := &mockEmitter{}
	s := newTestScheduler(active, emitter)
	defer s.Stop()

	for _, raw := range []string{"", "29:00:00", "18h30", "18:30"} {
		if err := s.Set(context.Background(), raw); err == nil {
			t.Errorf("Set(%q) should fail", raw)
		}
	}
	if _, armed := s.Current(); armed {
		t.Error("invalid value must not arm the scheduler")
	}
}

func TestScheduler_WarningFiresExactlyOnce(t *testing.T) {
	active := &mockActiveSet{keys: []domain.VehicleKey{"51H-12345", "60A-99999"}}
	emitter := &mockEmitter{}
	s := newTestScheduler(active, emitter)
	defer s.Stop()

	base := time.Date(2025, 7, 26, 18, 0, 0, 0, ict)
	now := base
	s.clock = func() time.Time { return now }

	if err := s.Set(context.Background(), "18:30:00"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ctx := context.Background()

	// diffMinutes == 30: warning fires, once per active vehicle.
	s.tick(ctx)
	if got := emitter.count(domain.EventDeadlineWarning); got != 2 {
		t.Fatalf("warnings after first tick = %d, want 2", got)
	}

	// Subsequent ticks at 29, 28, ... must not re-fire.
	for i := 1; i <= 5; i++ {
		now = base.Add(time.Duration(i) * time.Minute)
		s.tick(ctx)
	}
	if got := emitter.count(domain.EventDeadlineWarning); got != 2 {
		t.Errorf("warnings after repeated ticks = %d, want 2", got)
	}
}

func TestScheduler_WarningOnlyAtThirtyMinutes(t *testing.T) {
	active := &mockActiveSet{keys: []domain.VehicleKey{"51H-12345"}}
	emitter := &mockEmitter{}
	s := newTestScheduler(active, emitter)
	defer s.Stop()

	now := time.Date(2025, 7, 26, 17, 59, 0, 0, ict) // 31 minutes out
	s.clock = func() time.Time { return now }

	if err := s.Set(context.Background(), "18:30:00"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s.tick(context.Background())
	if got := emitter.count(domain.EventDeadlineWarning); got != 0 {
		t.Errorf("warning fired at 31 minutes out, want none")
	}
}

func TestScheduler_ReplaceResetsWarnedFlag(t *testing.T) {
	active := &mockActiveSet{keys: []domain.VehicleKey{"51H-12345"}}
	emitter := &mockEmitter{}
	s := newTestScheduler(active, emitter)
	defer s.Stop()

	now := time.Date(2025, 7, 26, 18, 0, 0, 0, ict)
	s.clock = func() time.Time { return now }

	ctx := context.Background()
	if err := s.Set(ctx, "18:30:00"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s.tick(ctx)
	if got := emitter.count(domain.EventDeadlineWarning); got != 1 {
		t.Fatalf("warnings = %d, want 1", got)
	}

	// Replace with a later deadline; the warned flag resets so the next
	// cycle warns again.
	if err := s.Set(ctx, "18:45:00"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	now = time.Date(2025, 7, 26, 18, 15, 0, 0, ict) // 30 minutes out again
	s.tick(ctx)
	if got := emitter.count(domain.EventDeadlineWarning); got != 2 {
		t.Errorf("warnings after replace = %d, want 2", got)
	}
}

func TestScheduler_OverrunBroadcastsAndStops(t *testing.T) {
	active := &mockActiveSet{keys: []domain.VehicleKey{"51H-12345", "60A-99999"}}
	emitter := &mockEmitter{}
	s := newTestScheduler(active, emitter)
	defer s.Stop()

	now := time.Date(2025, 7, 26, 18, 0, 0, 0, ict)
	s.clock = func() time.Time { return now }

	ctx := context.Background()
	if err := s.Set(ctx, "18:30:00"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	now = time.Date(2025, 7, 26, 18, 30, 0, 0, ict)
	if stop := s.tick(ctx); !stop {
		t.Error("tick at the deadline should stop the timer")
	}
	if got := emitter.count(domain.EventDeadlineExceeded); got != 2 {
		t.Errorf("exceeded events = %d, want 2 (one per active vehicle)", got)
	}
	if _, armed := s.Current(); armed {
		t.Error("scheduler should be idle after overrun")
	}

	// Further ticks while idle emit nothing.
	s.tick(ctx)
	if got := emitter.count(domain.EventDeadlineExceeded); got != 2 {
		t.Errorf("exceeded events after idle tick = %d, want 2", got)
	}
}

func TestScheduler_ClearCancelsTimer(t *testing.T) {
	active := &mockActiveSet{keys: []domain.VehicleKey{"51H-12345"}}
	emitter := &mockEmitter{}
	s := newTestScheduler(active, emitter)

	now := time.Date(2025, 7, 26, 18, 0, 0, 0, ict)
	s.clock = func() time.Time { return now }

	ctx := context.Background()
	if err := s.Set(ctx, "18:30:00"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s.Clear()

	if _, armed := s.Current(); armed {
		t.Error("scheduler should be idle after Clear")
	}

	// Even past the old deadline, nothing fires.
	now = time.Date(2025, 7, 26, 19, 0, 0, 0, ict)
	s.tick(ctx)
	if len(emitter.events) != 0 {
		t.Errorf("events after Clear = %d, want 0", len(emitter.events))
	}

	// Stop after Clear must be safe, repeatedly.
	s.Stop()
	s.Stop()
}

func TestScheduler_SnapshotFailureSkipsBroadcast(t *testing.T) {
	active := &mockActiveSet{err: errors.New("connection refused")}
	emitter := &mockEmitter{}
	s := newTestScheduler(active, emitter)
	defer s.Stop()

	now := time.Date(2025, 7, 26, 18, 30, 0, 0, ict)
	s.clock = func() time.Time { return now }

	ctx := context.Background()
	if err := s.Set(ctx, "18:30:00"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	s.tick(ctx)

	if len(emitter.events) != 0 {
		t.Errorf("events after snapshot failure = %d, want 0", len(emitter.events))
	}
}
