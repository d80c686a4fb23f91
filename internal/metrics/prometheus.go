package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Engine metrics
	vehicleChangesTotal   prometheus.Counter
	malformedTotal        *prometheus.CounterVec
	eventsEmittedTotal    *prometheus.CounterVec
	dispatchOutcomesTotal *prometheus.CounterVec
	recipientsResolved    prometheus.Histogram

	// Deadline scheduler metrics
	deadlineTicksTotal prometheus.Counter
	deadlineArmed      prometheus.Gauge
	activeVehicles     prometheus.Gauge

	// Push dispatcher metrics
	pushAttemptsTotal *prometheus.CounterVec
	pushDuration      prometheus.Histogram

	// Feed bus metrics
	bufferSize      prometheus.Gauge
	bufferCapacity  prometheus.Gauge
	emitErrorsTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initEngineMetrics(reg)
	s.initDeadlineMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initFeedMetrics(reg)
	return s
}

func (s *PrometheusSink) initEngineMetrics(reg prometheus.Registerer) {
	s.vehicleChangesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "platevision_engine_vehicle_changes_total",
		Help: "Total number of vehicle-record changes processed.",
	})
	s.malformedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platevision_engine_malformed_payloads_total",
		Help: "Total number of change-feed fields dropped by validation.",
	}, []string{"field"})
	s.eventsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platevision_engine_events_emitted_total",
		Help: "Total number of notification candidate events emitted.",
	}, []string{"kind"})
	s.dispatchOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platevision_engine_dispatch_outcomes_total",
		Help: "Total number of per-event dispatch outcomes.",
	}, []string{"kind", "outcome"})
	s.recipientsResolved = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "platevision_engine_recipients_resolved",
		Help:    "Number of push tokens resolved per event.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	s.register(reg, s.vehicleChangesTotal, "platevision_engine_vehicle_changes_total")
	s.register(reg, s.malformedTotal, "platevision_engine_malformed_payloads_total")
	s.register(reg, s.eventsEmittedTotal, "platevision_engine_events_emitted_total")
	s.register(reg, s.dispatchOutcomesTotal, "platevision_engine_dispatch_outcomes_total")
	s.register(reg, s.recipientsResolved, "platevision_engine_recipients_resolved")
}

func (s *PrometheusSink) initDeadlineMetrics(reg prometheus.Registerer) {
	s.deadlineTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "platevision_deadline_ticks_total",
		Help: "Total number of deadline scheduler ticks.",
	})
	s.deadlineArmed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "platevision_deadline_armed",
		Help: "Whether a shared deadline is currently armed (0 or 1).",
	})
	s.activeVehicles = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "platevision_deadline_active_vehicles",
		Help: "Active vehicle count observed on the last broadcast.",
	})

	s.register(reg, s.deadlineTicksTotal, "platevision_deadline_ticks_total")
	s.register(reg, s.deadlineArmed, "platevision_deadline_armed")
	s.register(reg, s.activeVehicles, "platevision_deadline_active_vehicles")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.pushAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platevision_dispatcher_push_attempts_total",
		Help: "Total number of push delivery attempts.",
	}, []string{"status_class"})
	s.pushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "platevision_dispatcher_push_duration_seconds",
		Help:    "Push request latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	s.register(reg, s.pushAttemptsTotal, "platevision_dispatcher_push_attempts_total")
	s.register(reg, s.pushDuration, "platevision_dispatcher_push_duration_seconds")
}

func (s *PrometheusSink) initFeedMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "platevision_feed_buffer_size",
		Help: "Current number of changes in the feed buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "platevision_feed_buffer_capacity",
		Help: "Capacity of the feed buffer.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "platevision_feed_emit_errors_total",
		Help: "Total number of publish errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "platevision_feed_buffer_size")
	s.register(reg, s.bufferCapacity, "platevision_feed_buffer_capacity")
	s.register(reg, s.emitErrorsTotal, "platevision_feed_emit_errors_total")
}

// register attempts to register a collector, logging any errors without
// propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) VehicleChangeProcessed() {
	s.vehicleChangesTotal.Inc()
}

func (s *PrometheusSink) MalformedPayload(field string) {
	s.malformedTotal.WithLabelValues(field).Inc()
}

func (s *PrometheusSink) EventEmitted(kind string) {
	s.eventsEmittedTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) DispatchOutcome(kind string, outcome string) {
	s.dispatchOutcomesTotal.WithLabelValues(kind, outcome).Inc()
}

func (s *PrometheusSink) RecipientsResolved(count int) {
	s.recipientsResolved.Observe(float64(count))
}

func (s *PrometheusSink) DeadlineTick() {
	s.deadlineTicksTotal.Inc()
}

func (s *PrometheusSink) DeadlineArmedSet(armed bool) {
	if armed {
		s.deadlineArmed.Set(1)
	} else {
		s.deadlineArmed.Set(0)
	}
}

func (s *PrometheusSink) ActiveVehiclesObserved(count int) {
	s.activeVehicles.Set(float64(count))
}

func (s *PrometheusSink) PushAttemptCompleted(statusClass string, duration time.Duration) {
	s.pushAttemptsTotal.WithLabelValues(statusClass).Inc()
	s.pushDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}
