// Package deadline owns the shared closing-time deadline and its single
// recurring timer. The deadline arrives from the change feed as a civil
// time-of-day and is resolved against "today" in a fixed civil zone.
//
// State machine: Idle -> Set(value) -> Armed. While Armed, every tick
// evaluates two thresholds: a warning on the tick where exactly 30 whole
// minutes remain, and an overrun once now >= deadline. The overrun
// broadcasts to every active vehicle, cancels the timer, and returns to
// Idle. Replacing the deadline always cancels the previous timer first;
// two timers never coexist.
package deadline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
)

// Layout is the time-of-day format delivered by the change feed.
const Layout = "15:04:05"

// DefaultTickInterval is the evaluation cadence. The warning check is
// level-triggered at whole-minute granularity, so the cadence must stay at
// one minute to hit diffMinutes == 30 on exactly one tick.
const DefaultTickInterval = time.Minute

const warnMinutes = 30

// ActiveSet enumerates the vehicles currently in the facility. Broadcast
// events fire once per returned key.
type ActiveSet interface {
	ActiveVehicles(ctx context.Context) ([]domain.VehicleKey, error)
}

// EventEmitter receives broadcast events. Implementations must not block
// on downstream delivery.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.Event) error
}

// MetricsSink records scheduler metrics. All methods are fire-and-forget.
type MetricsSink interface {
	DeadlineTick()
	DeadlineArmedSet(armed bool)
	ActiveVehiclesObserved(count int)
}

type Config struct {
	TickInterval time.Duration
	Location     *time.Location
}

type Scheduler struct {
	config  Config
	active  ActiveSet
	emitter EventEmitter
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time

	mu        sync.Mutex
	deadline  time.Time // zero while idle
	warned    bool
	stopTimer context.CancelFunc // nil while idle
	timerDone chan struct{}
}

func New(config Config, active ActiveSet, emitter EventEmitter) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.Location == nil {
		config.Location = time.FixedZone("UTC+7", 7*60*60)
	}
	return &Scheduler{
		config:  config,
		active:  active,
		emitter: emitter,
		clock:   time.Now,
	}
}

// WithMetrics attaches a metrics sink to the scheduler.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// Set replaces the deadline with value ("15:04:05"), resolved for today in
// the configured zone. Any running timer is cancelled before the new one is
// armed, and the 30-minute warning is re-enabled.
func (s *Scheduler) Set(ctx context.Context, value string) error {
	tod, err := time.ParseInLocation(Layout, value, s.config.Location)
	if err != nil {
		return fmt.Errorf("parse deadline %q: %w", value, err)
	}

	now := s.clock().In(s.config.Location)
	deadline := time.Date(now.Year(), now.Month(), now.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0, s.config.Location)

	s.stopTimerAndWait()

	timerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.deadline = deadline
	s.warned = false
	s.stopTimer = cancel
	s.timerDone = done
	s.mu.Unlock()

	go s.runTimer(timerCtx, done)

	if s.metrics != nil {
		s.metrics.DeadlineArmedSet(true)
	}
	log.Printf("deadline: armed at %s (tick=%s)", deadline.Format(time.RFC3339), s.config.TickInterval)
	return nil
}

// Clear cancels any running timer and drops the deadline. Safe to call in
// any state.
func (s *Scheduler) Clear() {
	s.stopTimerAndWait()

	s.mu.Lock()
	cleared := !s.deadline.IsZero()
	s.deadline = time.Time{}
	s.warned = false
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.DeadlineArmedSet(false)
	}
	if cleared {
		log.Println("deadline: cleared")
	}
}

// Stop shuts the scheduler down. Safe to call multiple times; no event is
// emitted after Stop returns.
func (s *Scheduler) Stop() {
	s.Clear()
}

// Current returns the armed deadline, if any.
func (s *Scheduler) Current() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline, !s.deadline.IsZero()
}

// stopTimerAndWait cancels the live timer and waits for its goroutine to
// exit, guaranteeing no tick runs after return.
func (s *Scheduler) stopTimerAndWait() {
	s.mu.Lock()
	cancel, done := s.stopTimer, s.timerDone
	s.stopTimer, s.timerDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Scheduler) runTimer(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.tick(ctx) {
				return
			}
		}
	}
}

// tick evaluates the armed deadline against the clock. Returns true when
// the deadline was overrun and the timer must stop.
func (s *Scheduler) tick(ctx context.Context) bool {
	if s.metrics != nil {
		s.metrics.DeadlineTick()
	}

	now := s.clock()

	s.mu.Lock()
	if s.deadline.IsZero() {
		s.mu.Unlock()
		return true
	}
	deadline := s.deadline

	if !now.Before(deadline) {
		// Overrun: broadcast once, then back to idle.
		s.deadline = time.Time{}
		s.warned = false
		cancel := s.stopTimer
		s.stopTimer = nil
		s.timerDone = nil
		s.mu.Unlock()

		if s.metrics != nil {
			s.metrics.DeadlineArmedSet(false)
		}
		log.Printf("deadline: %s overrun, broadcasting", deadline.Format(time.RFC3339))
		s.broadcast(ctx, domain.EventDeadlineExceeded)
		if cancel != nil {
			cancel()
		}
		return true
	}

	diffMinutes := int(deadline.Sub(now) / time.Minute)
	warn := diffMinutes == warnMinutes && !s.warned
	if warn {
		s.warned = true
	}
	s.mu.Unlock()

	if warn {
		log.Printf("deadline: %d minutes remain, broadcasting warning", diffMinutes)
		s.broadcast(ctx, domain.EventDeadlineWarning)
	}
	return false
}

// broadcast emits one event per active vehicle. A snapshot failure skips
// the whole cycle; an emit failure skips that vehicle only.
func (s *Scheduler) broadcast(ctx context.Context, kind domain.EventKind) {
	keys, err := s.active.ActiveVehicles(ctx)
	if err != nil {
		log.Printf("deadline: active vehicle snapshot failed: %v", err)
		return
	}
	if s.metrics != nil {
		s.metrics.ActiveVehiclesObserved(len(keys))
	}
	if len(keys) == 0 {
		log.Printf("deadline: no active vehicles for %s broadcast", kind)
		return
	}

	now := s.clock()
	for _, key := range keys {
		event := domain.Event{
			ID:      uuid.New(),
			Kind:    kind,
			Vehicle: key,
			FiredAt: now,
		}
		if err := s.emitter.Emit(ctx, event); err != nil {
			log.Printf("deadline: emit %s for vehicle=%s failed: %v", kind, key, err)
		}
	}
	log.Printf("deadline: broadcast %s to %d vehicles", kind, len(keys))
}
