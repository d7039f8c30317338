package engine

import (
	"context"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

// Replay
//
// A run is fully determined by its catalog and start day: there is no
// randomness and no wall-clock input, and event seq numbers come from a
// logical clock that restarts with every run. Replaying the catalog
// therefore has to reproduce the recorded event log byte for byte. Any
// divergence means the catalog changed since the recording, or the engine
// lost its determinism.

// Divergence describes the first mismatch between a recorded and a
// replayed event log. Expected or Got is nil when one log is shorter.
type Divergence struct {
	Index    int    `json:"index"`
	Expected *Event `json:"expected,omitempty"`
	Got      *Event `json:"got,omitempty"`
}

// ReplayResult is the outcome of Replay.
type ReplayResult struct {
	Deterministic bool        `json:"deterministic"`
	Compared      int         `json:"compared"`
	Steps         int         `json:"steps"`
	Divergence    *Divergence `json:"divergence,omitempty"`
}

// Replay re-runs cat from initialDay up to the last day present in recorded
// and compares the produced events with the recording.
func Replay(ctx context.Context, cat *catalog.Catalog, initialDay int, recorded []Event) (*ReplayResult, error) {
	lastDay := initialDay
	for _, ev := range recorded {
		if ev.Day > lastDay {
			lastDay = ev.Day
		}
	}

	eng := NewEngine(cat)
	st, rep, err := eng.Initialize(initialDay)
	produced := append([]Event(nil), rep.Events...)
	steps := 0
	for err == nil && st.Day < lastDay {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		st, rep, err = eng.Step(st)
		produced = append(produced, rep.Events...)
		steps++
	}
	// A fatal fault ends replay where it ended the recorded run.

	res := &ReplayResult{Deterministic: true, Steps: steps}
	n := max(len(recorded), len(produced))
	for i := 0; i < n; i++ {
		var want, got *Event
		if i < len(recorded) {
			want = &recorded[i]
		}
		if i < len(produced) {
			got = &produced[i]
		}
		if want == nil || got == nil || *want != *got {
			res.Deterministic = false
			res.Divergence = &Divergence{Index: i, Expected: want, Got: got}
			break
		}
		res.Compared++
	}
	return res, nil
}
