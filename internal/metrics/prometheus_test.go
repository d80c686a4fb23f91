package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusSink_RegistersAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	var sink Sink = NewPrometheusSink(reg)

	sink.VehicleChangeProcessed()
	sink.MalformedPayload("timeExpired")
	sink.EventEmitted("expiry_soon")
	sink.DispatchOutcome("expiry_soon", OutcomeDelivered)
	sink.RecipientsResolved(2)
	sink.DeadlineTick()
	sink.DeadlineArmedSet(true)
	sink.ActiveVehiclesObserved(4)
	sink.PushAttemptCompleted(StatusClass2xx, 120*time.Millisecond)
	sink.BufferSizeUpdate(3)
	sink.BufferCapacitySet(100)
	sink.EmitError()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	got := make(map[string]bool, len(families))
	for _, mf := range families {
		got[mf.GetName()] = true
	}

	want := []string{
		"platevision_engine_vehicle_changes_total",
		"platevision_engine_malformed_payloads_total",
		"platevision_engine_events_emitted_total",
		"platevision_engine_dispatch_outcomes_total",
		"platevision_engine_recipients_resolved",
		"platevision_deadline_ticks_total",
		"platevision_deadline_armed",
		"platevision_deadline_active_vehicles",
		"platevision_dispatcher_push_attempts_total",
		"platevision_dispatcher_push_duration_seconds",
		"platevision_feed_buffer_size",
		"platevision_feed_buffer_capacity",
		"platevision_feed_emit_errors_total",
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestPrometheusSink_DuplicateRegistrationIsNotFatal(t *testing.T) {
	reg := prometheus.NewRegistry()

	// Second sink on the same registry collides on every collector; the
	// constructor must survive and return a usable sink.
	NewPrometheusSink(reg)
	sink := NewPrometheusSink(reg)

	sink.VehicleChangeProcessed()
	sink.DeadlineTick()
}
