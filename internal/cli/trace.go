package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nikonych/fliessfertigung/internal/engine"
	"github.com/nikonych/fliessfertigung/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	RunID   string
	Order   string // optional - only this order's events
	Machine string // optional - only this machine's events
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID    string         `json:"run_id"`
	StartDay int            `json:"start_day"`
	Timeline []engine.Event `json:"timeline"`
	Stats    TraceStats     `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Admitted    int `json:"admitted"`
	Dispatched  int `json:"dispatched"`
	Completed   int `json:"completed"`
	Pruned      int `json:"pruned"`
	Faults      int `json:"faults"`
	LastDay     int `json:"last_day"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the event log of a run",
		Long: `Show the scheduling decisions of a recorded run in order: admissions,
dispatches, completions, prunes and faults.

Without --run the latest run is shown.

Examples:
  fliess trace --db ./fliess.db
  fliess trace --db ./fliess.db --order O17
  fliess trace --db ./fliess.db --run 0190... --machine M3 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().String("db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: latest run)")
	cmd.Flags().StringVar(&opts.Order, "order", "", "filter to one order")
	cmd.Flags().StringVar(&opts.Machine, "machine", "", "filter to one machine")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
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

	events, err := st.ReadEvents(ctx, run.ID, store.EventFilter{
		OrderID:   opts.Order,
		MachineID: opts.Machine,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		RunID:    run.ID,
		StartDay: run.StartDay,
		Timeline: events,
		Stats:    buildStats(events),
	}

	return formatter.Render(result, func(w io.Writer) {
		outputTraceText(w, result, opts.Verbose)
	})
}

func buildStats(events []engine.Event) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Kind {
		case engine.EventAdmitted:
			stats.Admitted++
		case engine.EventDispatched:
			stats.Dispatched++
		case engine.EventCompleted:
			stats.Completed++
		case engine.EventPruned:
			stats.Pruned++
		case engine.EventFault:
			stats.Faults++
		}
		stats.LastDay = max(stats.LastDay, ev.Day)
	}
	return stats
}

// outputTraceText prints the timeline grouped by day.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for run: %s (start day %d)\n", result.RunID, result.StartDay)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "\nNo events recorded.")
		return
	}

	day := result.Timeline[0].Day - 1
	for _, ev := range result.Timeline {
		if ev.Day != day {
			day = ev.Day
			fmt.Fprintf(w, "\nDay %d\n", day)
		}
		fmt.Fprintf(w, "  [%d] %s\n", ev.Seq, describeEvent(ev))
	}

	s := result.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d events (%d admitted, %d dispatched, %d completed, %d pruned, %d faults)\n",
		s.TotalEvents, s.Admitted, s.Dispatched, s.Completed, s.Pruned, s.Faults)
	if verbose {
		fmt.Fprintf(w, "Last day with events: %d\n", s.LastDay)
	}
}

func describeEvent(ev engine.Event) string {
	switch ev.Kind {
	case engine.EventAdmitted:
		return fmt.Sprintf("admitted %s", ev.OrderID)
	case engine.EventDispatched:
		return fmt.Sprintf("dispatched %s step %d to %s (%g units)", ev.OrderID, ev.Sequence, ev.MachineID, ev.Remaining)
	case engine.EventCompleted:
		return fmt.Sprintf("completed %s step %d on %s", ev.OrderID, ev.Sequence, ev.MachineID)
	case engine.EventPruned:
		return fmt.Sprintf("finished %s", ev.OrderID)
	case engine.EventFault:
		return fmt.Sprintf("fault: %s", ev.Detail)
	default:
		return string(ev.Kind)
	}
}
