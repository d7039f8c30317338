package store

import (
	"context"
	"fmt"

	"github.com/nikonych/fliessfertigung/internal/engine"
)

// Recorder persists every observed step: the run row on first sight, the
// step's events, and the snapshot.
type Recorder struct {
	store  *Store
	source string
}

// NewRecorder returns an observer recording into s. source labels the runs
// it creates, e.g. "sqlite" or "postgres".
func NewRecorder(s *Store, source string) *Recorder {
	return &Recorder{store: s, source: source}
}

// ObserveStep implements engine.Observer.
func (r *Recorder) ObserveStep(ctx context.Context, snap engine.Snapshot, rep engine.StepReport) error {
	if snap.RunID == "" {
		return fmt.Errorf("record step: snapshot has no run id")
	}
	if err := r.store.CreateRun(ctx, Run{
		ID:       snap.RunID,
		StartDay: snap.Day - snap.Step,
		Source:   r.source,
	}); err != nil {
		return err
	}
	if err := r.store.WriteEvents(ctx, snap.RunID, rep.Events); err != nil {
		return err
	}
	return r.store.WriteSnapshot(ctx, snap)
}

var _ engine.Observer = (*Recorder)(nil)
