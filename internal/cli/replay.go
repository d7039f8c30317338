package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nikonych/fliessfertigung/internal/catalog"
	"github.com/nikonych/fliessfertigung/internal/engine"
	"github.com/nikonych/fliessfertigung/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	RunID string // optional - defaults to the latest run
}

// ReplayResult holds the replay outcome of one run.
type ReplayResult struct {
	RunID    string `json:"run_id"`
	StartDay int    `json:"start_day"`
	Recorded int    `json:"recorded"`
	*engine.ReplayResult
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a recorded run and verify determinism",
		Long: `Re-run a recorded simulation over the current catalog and compare the
produced events with the recorded event log.

A difference means the catalog changed since the recording, or the
simulation is not deterministic. The first differing event is reported.

Exit codes:
  0 - Replay matches the recording
  1 - Replay diverged
  2 - Command error (database not found, no runs, etc.)

Examples:
  fliess replay --db ./fliess.db
  fliess replay --db ./fliess.db --run 0190...
  fliess replay --db ./fliess.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().String("db", "", "path to SQLite database")
	cmd.Flags().String("source", "", "catalog source (sqlite|postgres)")
	cmd.Flags().String("postgres-dsn", "", "Postgres connection string")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: latest run)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	st, err := openExistingStore(cfg.DB)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	run, err := resolveRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}

	recorded, err := st.ReadEvents(ctx, run.ID, store.EventFilter{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	src, closeSource, err := openSource(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer closeSource()

	cat, err := catalog.Load(ctx, src)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeCatalog, err.Error(), nil, nil)
	}

	formatter.VerboseLog("Replaying run %s from day %d (%d recorded events)", run.ID, run.StartDay, len(recorded))
	res, err := engine.Replay(ctx, cat, run.StartDay, recorded)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := ReplayResult{
		RunID:        run.ID,
		StartDay:     run.StartDay,
		Recorded:     len(recorded),
		ReplayResult: res,
	}

	if !res.Deterministic {
		return formatter.Fail(ExitFailure, ErrCodeReplayDiverged,
			fmt.Sprintf("replay of run %s diverged at event %d", run.ID, res.Divergence.Index),
			result, func(w io.Writer) { outputReplayText(w, result) })
	}
	return formatter.Render(result, func(w io.Writer) { outputReplayText(w, result) })
}

func outputReplayText(w io.Writer, result ReplayResult) {
	fmt.Fprintf(w, "Replay of run %s (start day %d)\n", result.RunID, result.StartDay)
	fmt.Fprintf(w, "  recorded events: %d\n", result.Recorded)
	fmt.Fprintf(w, "  matching events: %d\n", result.Compared)
	fmt.Fprintf(w, "  steps replayed:  %d\n", result.Steps)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay matches the recording")
		return
	}

	d := result.Divergence
	fmt.Fprintf(w, "✗ First difference at event %d\n", d.Index)
	fmt.Fprintf(w, "  recorded: %s\n", describeOptional(d.Expected))
	fmt.Fprintf(w, "  replayed: %s\n", describeOptional(d.Got))
}

func describeOptional(ev *engine.Event) string {
	if ev == nil {
		return "(none)"
	}
	return fmt.Sprintf("day %d %s", ev.Day, describeEvent(*ev))
}
