package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) VehicleChangeProcessed()                                      {}
func (n *NoopSink) MalformedPayload(field string)                                {}
func (n *NoopSink) EventEmitted(kind string)                                     {}
func (n *NoopSink) DispatchOutcome(kind string, outcome string)                  {}
func (n *NoopSink) RecipientsResolved(count int)                                 {}
func (n *NoopSink) DeadlineTick()                                                {}
func (n *NoopSink) DeadlineArmedSet(armed bool)                                  {}
func (n *NoopSink) ActiveVehiclesObserved(count int)                             {}
func (n *NoopSink) PushAttemptCompleted(statusClass string, d time.Duration)     {}
func (n *NoopSink) BufferSizeUpdate(size int)                                    {}
func (n *NoopSink) BufferCapacitySet(capacity int)                               {}
func (n *NoopSink) EmitError()                                                   {}
