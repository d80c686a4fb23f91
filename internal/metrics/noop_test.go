package metrics

import (
	"testing"
	"time"
)

// TestNoopSink_ImplementsSink verifies NoopSink satisfies the interface and
// that every method is safely callable.
func TestNoopSink_ImplementsSink(t *testing.T) {
	var sink Sink = NewNoopSink()

	sink.VehicleChangeProcessed()
	sink.MalformedPayload("alertFlag")
	sink.EventEmitted("vehicle_alert")
	sink.DispatchOutcome("vehicle_alert", OutcomeDelivered)
	sink.RecipientsResolved(3)
	sink.DeadlineTick()
	sink.DeadlineArmedSet(true)
	sink.ActiveVehiclesObserved(5)
	sink.PushAttemptCompleted(StatusClass2xx, time.Second)
	sink.BufferSizeUpdate(1)
	sink.BufferCapacitySet(100)
	sink.EmitError()
}
