package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nikonych/fliessfertigung/internal/engine"
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Run describes one recorded simulation run.
type Run struct {
	ID       string `json:"id"`
	StartDay int    `json:"start_day"`
	Source   string `json:"source,omitempty"`
}

// CreateRun registers a run. Creating an existing run is a no-op.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, start_day, source)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.StartDay, run.Source)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns all runs in creation order.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_day, source
		FROM runs
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartDay, &r.Source); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently created run, or ErrNotFound.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, start_day, source
		FROM runs
		ORDER BY rowid DESC
		LIMIT 1
	`).Scan(&r.ID, &r.StartDay, &r.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// GetRun returns one run by id, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, start_day, source FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.StartDay, &r.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", id, err)
	}
	return r, nil
}

// WriteEvents appends events to a run's log in one transaction.
// Uses ON CONFLICT(run_id, seq) DO NOTHING, so recording a step twice is
// harmless.
func (s *Store) WriteEvents(ctx context.Context, runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(run_id, seq, day, kind, order_id, machine_id, sequence, remaining, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.ExecContext(ctx,
			runID,
			ev.Seq,
			ev.Day,
			string(ev.Kind),
			ev.OrderID,
			ev.MachineID,
			ev.Sequence,
			ev.Remaining,
			ev.Detail,
		)
		if err != nil {
			return fmt.Errorf("write event %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: commit: %w", err)
	}
	return nil
}

// EventFilter narrows ReadEvents. Zero values match everything.
type EventFilter struct {
	OrderID   string
	MachineID string
}

// ReadEvents returns a run's events ordered by seq.
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string, filter EventFilter) ([]engine.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, day, kind, order_id, machine_id, sequence, remaining, detail
		FROM events
		WHERE run_id = ?
		  AND (? = '' OR order_id = ?)
		  AND (? = '' OR machine_id = ?)
		ORDER BY seq ASC
	`, runID, filter.OrderID, filter.OrderID, filter.MachineID, filter.MachineID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []engine.Event{}
	for rows.Next() {
		var ev engine.Event
		var kind string
		err := rows.Scan(&ev.Seq, &ev.Day, &kind, &ev.OrderID, &ev.MachineID,
			&ev.Sequence, &ev.Remaining, &ev.Detail)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = engine.EventKind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// WriteSnapshot stores the snapshot of a run's day, replacing an earlier
// one for the same day.
func (s *Store) WriteSnapshot(ctx context.Context, snap engine.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("write snapshot: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, day, step, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, day) DO UPDATE SET
			step = excluded.step,
			body = excluded.body
	`, snap.RunID, snap.Day, snap.Step, string(body))
	if err != nil {
		return fmt.Errorf("write snapshot %s/%d: %w", snap.RunID, snap.Day, err)
	}
	return nil
}

// ReadSnapshot returns the snapshot a run took on day, or ErrNotFound.
func (s *Store) ReadSnapshot(ctx context.Context, runID string, day int) (engine.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT body FROM snapshots WHERE run_id = ? AND day = ?
	`, runID, day)
	return scanSnapshot(row, fmt.Sprintf("snapshot %s/%d", runID, day))
}

// LatestSnapshot returns the run's snapshot with the highest day.
func (s *Store) LatestSnapshot(ctx context.Context, runID string) (engine.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT body FROM snapshots
		WHERE run_id = ?
		ORDER BY day DESC
		LIMIT 1
	`, runID)
	return scanSnapshot(row, fmt.Sprintf("latest snapshot %s", runID))
}

func scanSnapshot(row *sql.Row, what string) (engine.Snapshot, error) {
	var body string
	err := row.Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("%s: %w", what, err)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("%s: unmarshal: %w", what, err)
	}
	return snap, nil
}
