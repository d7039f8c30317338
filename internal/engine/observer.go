package engine

import "context"

// Observer receives a snapshot after the initial load and after every step.
//
// Observers run on the stepping goroutine, in registration order, before the
// next step may start. A returned error is logged; it never fails the step.
type Observer interface {
	ObserveStep(ctx context.Context, snap Snapshot, rep StepReport) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, snap Snapshot, rep StepReport) error

// ObserveStep calls f.
func (f ObserverFunc) ObserveStep(ctx context.Context, snap Snapshot, rep StepReport) error {
	return f(ctx, snap, rep)
}
