// Package engine coordinates the notification pipeline: it consumes both
// change-feed streams, runs the alert-flag tracker and the expiry window
// evaluator against each vehicle change, forwards shared-deadline values to
// the deadline scheduler, and fans out recipient resolution and push
// dispatch per event.
//
// All collaborator failures are contained here: they are logged and the
// engine keeps processing. Nothing escalates to the process.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Toru2004/PlateVision-BE/internal/alertflag"
	"github.com/Toru2004/PlateVision-BE/internal/deadline"
	"github.com/Toru2004/PlateVision-BE/internal/domain"
	"github.com/Toru2004/PlateVision-BE/internal/expiry"
	"github.com/Toru2004/PlateVision-BE/internal/feed"
	"github.com/Toru2004/PlateVision-BE/internal/metrics"
)

// Notification texts shown to drivers.
const (
	alertTitle  = "🚨 Cảnh báo xe"
	alertBody   = "Bạn đang chuẩn bị ra khỏi nhà xe đúng không?"
	expiryTitle = "⏰ Biển phụ sắp hết hạn"
	expiryBody  = "Biển số phụ %s sẽ hết hạn sau 30 phút nữa."

	warningTitle  = "⏰ Nhà xe sắp đóng cửa"
	warningBody   = "Nhà xe sẽ đóng cửa sau 30 phút nữa."
	exceededTitle = "🚨 Nhà xe đã đóng cửa"
	exceededBody  = "Xe %s vẫn còn trong nhà xe sau giờ đóng cửa."
)

// RecipientResolver looks up push tokens for a vehicle key. An empty result
// is not an error.
type RecipientResolver interface {
	ByPlate(ctx context.Context, key domain.VehicleKey) ([]string, error)
	BySecondaryPlate(ctx context.Context, key domain.VehicleKey) ([]string, error)
}

// Dispatcher delivers one notification job, best-effort, at most once.
type Dispatcher interface {
	Send(ctx context.Context, job domain.NotificationJob) error
}

// HistorySink records dispatch outcomes for audit. Optional.
type HistorySink interface {
	RecordDelivery(ctx context.Context, rec domain.DeliveryRecord) error
}

// AnalyticsSink counts emitted events. Optional; must handle its own errors.
type AnalyticsSink interface {
	Record(ctx context.Context, event domain.Event)
}

// MetricsSink records engine metrics, plus the deadline scheduler's.
// All methods are non-blocking and fire-and-forget.
type MetricsSink interface {
	VehicleChangeProcessed()
	MalformedPayload(field string)
	EventEmitted(kind string)
	DispatchOutcome(kind string, outcome string)
	RecipientsResolved(count int)

	deadline.MetricsSink
}

type Config struct {
	// Location is the civil zone for expiry and deadline arithmetic.
	// Defaults to the fixed +07:00 offset.
	Location *time.Location

	// DeadlineTick overrides the deadline evaluation cadence. Leave zero in
	// production; the 30-minute warning depends on the one-minute default.
	DeadlineTick time.Duration
}

type Engine struct {
	config     Config
	source     feed.Source
	resolver   RecipientResolver
	dispatcher Dispatcher
	deadline   *deadline.Scheduler
	flags      *alertflag.Tracker

	history   HistorySink   // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled

	clock func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	loops   sync.WaitGroup
}

func New(config Config, source feed.Source, resolver RecipientResolver, dispatcher Dispatcher) *Engine {
	if config.Location == nil {
		config.Location = time.FixedZone("UTC+7", 7*60*60)
	}
	e := &Engine{
		config:     config,
		source:     source,
		resolver:   resolver,
		dispatcher: dispatcher,
		flags:      alertflag.New(),
		clock:      time.Now,
	}
	e.deadline = deadline.New(deadline.Config{
		TickInterval: config.DeadlineTick,
		Location:     config.Location,
	}, source, e)
	return e
}

// WithHistory attaches a delivery audit sink.
func (e *Engine) WithHistory(sink HistorySink) *Engine {
	e.history = sink
	return e
}

// WithAnalytics attaches an event counter sink.
func (e *Engine) WithAnalytics(sink AnalyticsSink) *Engine {
	e.analytics = sink
	return e
}

// WithMetrics attaches a metrics sink to the engine and its scheduler.
func (e *Engine) WithMetrics(sink MetricsSink) *Engine {
	e.metrics = sink
	e.deadline.WithMetrics(sink)
	return e
}

// Start subscribes to both feed streams and returns. The engine runs until
// Stop.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	e.started = true
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	e.loops.Add(2)
	go e.consumeVehicles(ctx)
	go e.consumeDeadlines(ctx)

	log.Println("engine: started")
	return nil
}

// Stop cancels the deadline timer and both stream loops. Safe to call
// multiple times. In-flight dispatches finish in the background; Stop does
// not await them.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	e.loops.Wait()
	e.deadline.Stop()
	log.Println("engine: stopped")
}

// Status is a point-in-time snapshot for the ops surface.
type Status struct {
	TrackedVehicles int       `json:"tracked_vehicles"`
	DeadlineArmed   bool      `json:"deadline_armed"`
	Deadline        time.Time `json:"deadline,omitempty"`
}

func (e *Engine) Status() Status {
	at, armed := e.deadline.Current()
	return Status{
		TrackedVehicles: e.flags.Tracked(),
		DeadlineArmed:   armed,
		Deadline:        at,
	}
}

func (e *Engine) consumeVehicles(ctx context.Context) {
	defer e.loops.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-e.source.VehicleChanges():
			if !ok {
				return
			}
			e.handleVehicleChange(ctx, change)
		}
	}
}

func (e *Engine) consumeDeadlines(ctx context.Context) {
	defer e.loops.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-e.source.DeadlineChanges():
			if !ok {
				return
			}
			e.handleDeadlineChange(ctx, change)
		}
	}
}

// handleVehicleChange runs both evaluators against one change. They are
// independent: either, both, or neither may fire for the same payload.
func (e *Engine) handleVehicleChange(ctx context.Context, change domain.VehicleChange) {
	if e.metrics != nil {
		e.metrics.VehicleChangeProcessed()
	}
	now := e.clock()

	if change.AlertFlag != nil {
		if e.flags.Observe(change.Key, *change.AlertFlag) {
			log.Printf("engine: alert raised for vehicle=%s", change.Key)
			e.Emit(ctx, domain.Event{
				ID:      uuid.New(),
				Kind:    domain.EventVehicleAlert,
				Vehicle: change.Key,
				FiredAt: now,
			})
		}
	}

	if change.ExpiresAt != nil {
		expiresAt, err := expiry.Parse(*change.ExpiresAt, e.config.Location)
		if err != nil {
			log.Printf("engine: vehicle=%s %v", change.Key, err)
			if e.metrics != nil {
				e.metrics.MalformedPayload("timeExpired")
			}
			return
		}
		remaining, fire := expiry.Evaluate(expiresAt, now)
		if !fire {
			return
		}
		minutes := expiry.RemainingMinutes(remaining)
		log.Printf("engine: vehicle=%s expires in %d minutes", change.Key, minutes)
		e.Emit(ctx, domain.Event{
			ID:               uuid.New(),
			Kind:             domain.EventExpirySoon,
			Vehicle:          change.Key,
			RemainingMinutes: minutes,
			FiredAt:          now,
		})
	}
}

func (e *Engine) handleDeadlineChange(ctx context.Context, change domain.DeadlineChange) {
	if change.Value == nil {
		e.deadline.Clear()
		return
	}
	if err := e.deadline.Set(ctx, *change.Value); err != nil {
		log.Printf("engine: %v", err)
		if e.metrics != nil {
			e.metrics.MalformedPayload("deadline")
		}
	}
}

// Emit accepts a notification candidate and fans out resolution and
// dispatch in the background, so no vehicle's delivery blocks the next.
// It never returns an error: failures are contained and logged.
func (e *Engine) Emit(ctx context.Context, event domain.Event) error {
	if e.metrics != nil {
		e.metrics.EventEmitted(string(event.Kind))
	}
	// Detached from the loop context: dispatches in flight at Stop are
	// allowed to complete.
	go e.deliver(context.WithoutCancel(ctx), event)
	return nil
}

func (e *Engine) deliver(ctx context.Context, event domain.Event) {
	if e.analytics != nil {
		e.analytics.Record(ctx, event)
	}

	job, lookup := e.composeJob(event)

	tokens, err := lookup(ctx, event.Vehicle)
	if err != nil {
		// Treated as zero recipients for this cycle.
		log.Printf("engine: recipient lookup failed for vehicle=%s kind=%s: %v", event.Vehicle, event.Kind, err)
		e.observeOutcome(event.Kind, metrics.OutcomeLookupFailed)
		return
	}
	if e.metrics != nil {
		e.metrics.RecipientsResolved(len(tokens))
	}
	if len(tokens) == 0 {
		log.Printf("engine: no recipients for vehicle=%s kind=%s", event.Vehicle, event.Kind)
		e.observeOutcome(event.Kind, metrics.OutcomeNoRecipients)
		return
	}
	job.Tokens = tokens

	sendErr := e.dispatcher.Send(ctx, job)
	if sendErr != nil {
		log.Printf("engine: dispatch failed for vehicle=%s kind=%s title=%q: %v",
			event.Vehicle, event.Kind, job.Title, sendErr)
		e.observeOutcome(event.Kind, metrics.OutcomeFailed)
	} else {
		e.observeOutcome(event.Kind, metrics.OutcomeDelivered)
	}

	e.recordDelivery(ctx, event, job, sendErr)
}

func (e *Engine) composeJob(event domain.Event) (domain.NotificationJob, func(context.Context, domain.VehicleKey) ([]string, error)) {
	switch event.Kind {
	case domain.EventExpirySoon:
		// Expiry notifications go to the secondary-plate registration.
		return domain.NotificationJob{
			Title: expiryTitle,
			Body:  fmt.Sprintf(expiryBody, event.Vehicle),
		}, e.resolver.BySecondaryPlate
	case domain.EventDeadlineWarning:
		return domain.NotificationJob{
			Title: warningTitle,
			Body:  warningBody,
		}, e.resolver.ByPlate
	case domain.EventDeadlineExceeded:
		return domain.NotificationJob{
			Title: exceededTitle,
			Body:  fmt.Sprintf(exceededBody, event.Vehicle),
		}, e.resolver.ByPlate
	default: // domain.EventVehicleAlert
		return domain.NotificationJob{
			Title: alertTitle,
			Body:  alertBody,
		}, e.resolver.ByPlate
	}
}

func (e *Engine) observeOutcome(kind domain.EventKind, outcome string) {
	if e.metrics != nil {
		e.metrics.DispatchOutcome(string(kind), outcome)
	}
}

// recordDelivery writes the audit entry, best-effort.
func (e *Engine) recordDelivery(ctx context.Context, event domain.Event, job domain.NotificationJob, sendErr error) {
	if e.history == nil {
		return
	}
	rec := domain.DeliveryRecord{
		ID:         uuid.New(),
		EventID:    event.ID,
		Kind:       event.Kind,
		Vehicle:    event.Vehicle,
		TokenCount: len(job.Tokens),
		Title:      job.Title,
		SentAt:     e.clock(),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := e.history.RecordDelivery(ctx, rec); err != nil {
		log.Printf("engine: failed to record delivery for vehicle=%s: %v", event.Vehicle, err)
	}
}
