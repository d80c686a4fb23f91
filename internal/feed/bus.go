package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Toru2004/PlateVision-BE/internal/domain"
)

// ErrBufferFull is returned when a publish cannot be accepted within the
// emit timeout.
var ErrBufferFull = errors.New("feed buffer full")

// DefaultEmitTimeout bounds how long a publish blocks on a full buffer.
const DefaultEmitTimeout = 5 * time.Second

// MetricsSink records bus metrics. Methods are fire-and-forget.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()
}

type Option func(*Bus)

func WithEmitTimeout(d time.Duration) Option {
	return func(b *Bus) { b.emitTimeout = d }
}

func WithMetrics(sink MetricsSink) Option {
	return func(b *Bus) { b.metrics = sink }
}

// Bus is an in-memory Source. The host publishes changes; the engine
// consumes them. It also maintains the active-vehicle snapshot.
type Bus struct {
	vehicles    chan domain.VehicleChange
	deadlines   chan domain.DeadlineChange
	emitTimeout time.Duration
	metrics     MetricsSink

	mu        sync.Mutex
	active    map[domain.VehicleKey]struct{}
	closeOnce sync.Once
}

func NewBus(buffer int, opts ...Option) *Bus {
	b := &Bus{
		vehicles:    make(chan domain.VehicleChange, buffer),
		deadlines:   make(chan domain.DeadlineChange, buffer),
		emitTimeout: DefaultEmitTimeout,
		active:      make(map[domain.VehicleKey]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// PublishVehicle delivers a vehicle-record change to the engine. A vehicle
// with a change is by definition in the facility, so the key joins the
// active set.
func (b *Bus) PublishVehicle(ctx context.Context, change domain.VehicleChange) error {
	b.mu.Lock()
	b.active[change.Key] = struct{}{}
	b.mu.Unlock()

	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.vehicles <- change:
		if b.metrics != nil {
			b.metrics.BufferSizeUpdate(len(b.vehicles))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	}
}

// PublishDeadline delivers a shared-deadline change to the engine.
func (b *Bus) PublishDeadline(ctx context.Context, change domain.DeadlineChange) error {
	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.deadlines <- change:
		if b.metrics != nil {
			b.metrics.BufferSizeUpdate(len(b.deadlines))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	}
}

// RemoveVehicle drops a key from the active set (vehicle left the facility).
func (b *Bus) RemoveVehicle(key domain.VehicleKey) {
	b.mu.Lock()
	delete(b.active, key)
	b.mu.Unlock()
}

func (b *Bus) VehicleChanges() <-chan domain.VehicleChange {
	return b.vehicles
}

func (b *Bus) DeadlineChanges() <-chan domain.DeadlineChange {
	return b.deadlines
}

func (b *Bus) ActiveVehicles(ctx context.Context) ([]domain.VehicleKey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]domain.VehicleKey, 0, len(b.active))
	for key := range b.active {
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		close(b.vehicles)
		close(b.deadlines)
	})
	return nil
}
