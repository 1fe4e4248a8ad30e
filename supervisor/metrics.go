package supervisor

import (
	"time"
)

// MetricsCollector receives supervisor lifecycle events.
type MetricsCollector interface {
	// ProcessStarted records a successful spawn.
	ProcessStarted()

	// ProcessReady records the time from spawn to the first successful probe.
	ProcessReady(elapsed time.Duration)

	// ProbeCompleted records a single readiness probe attempt.
	ProbeCompleted(success bool)

	// ProcessStopped records teardown, with the final state and how long the
	// shutdown took.
	ProcessStopped(finalState State, elapsed time.Duration)
}

type nopCollector struct{}

func (nopCollector) ProcessStarted()                                  {}
func (nopCollector) ProcessReady(elapsed time.Duration)               {}
func (nopCollector) ProbeCompleted(success bool)                      {}
func (nopCollector) ProcessStopped(finalState State, d time.Duration) {}

// NewNopCollector returns a collector that discards everything.
func NewNopCollector() MetricsCollector {
	return nopCollector{}
}
