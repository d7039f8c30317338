package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nikonych/fliessfertigung/internal/engine"
	"github.com/nikonych/fliessfertigung/internal/store"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	RunID string
	Day   int
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Show a recorded snapshot",
		Long: `Show the recorded state of a run on one day: machines, active tasks and
the order queue.

Without --run the latest run is used; without --day its latest snapshot.

Examples:
  fliess snapshot --db ./fliess.db
  fliess snapshot --db ./fliess.db --run 0190... --day 12 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, cmd)
		},
	}

	cmd.Flags().String("db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: latest run)")
	cmd.Flags().IntVar(&opts.Day, "day", 0, "simulation day (default: latest recorded day)")

	return cmd
}

func runSnapshot(opts *SnapshotOptions, cmd *cobra.Command) error {
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

	var snap engine.Snapshot
	if cmd.Flags().Changed("day") {
		snap, err = st.ReadSnapshot(ctx, run.ID, opts.Day)
	} else {
		snap, err = st.LatestSnapshot(ctx, run.ID)
	}
	if errors.Is(err, store.ErrNotFound) {
		msg := fmt.Sprintf("no snapshot for run %s", run.ID)
		if cmd.Flags().Changed("day") {
			msg += fmt.Sprintf(" on day %d", opts.Day)
		}
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, msg, nil, nil)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}

	return formatter.Render(snap, func(w io.Writer) {
		printSnapshot(w, snap)
	})
}
