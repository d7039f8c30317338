package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/nikonych/fliessfertigung/internal/config"
	"github.com/nikonych/fliessfertigung/internal/engine"
	"github.com/nikonych/fliessfertigung/internal/metrics"
	"github.com/nikonych/fliessfertigung/internal/publish"
	"github.com/nikonych/fliessfertigung/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	UntilIdle bool

	// RunIDs overrides the run id generator (for testing).
	// If nil, the simulation uses UUIDv7 ids.
	RunIDs engine.RunIDGenerator
}

// RunResult is the outcome of a simulation run.
type RunResult struct {
	RunID    string          `json:"run_id"`
	Steps    int             `json:"steps"`
	Day      int             `json:"day"`
	Idle     bool            `json:"idle"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation over the stored catalog",
		Long: `Load the catalog, run the simulation and record every step.

Without --days the simulation runs until no order is left (bounded by a
step budget). With --days N it runs N steps; --until-idle stops earlier
once nothing is left. --interval paces steps in wall-clock time.

Each step is recorded in the SQLite database, exported as Prometheus
metrics when --metrics-addr is set, and published to RabbitMQ when
--amqp-url is set.

Examples:
  fliess run --db ./fliess.db
  fliess run --db ./fliess.db --days 30 --start-day 5
  fliess run --db ./fliess.db --interval 1s --metrics-addr :9090
  fliess run --source postgres --postgres-dsn postgres://... --db runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	cmd.Flags().String("db", "", "path to SQLite database")
	cmd.Flags().Int("days", 0, "number of steps to run (0 = until idle)")
	cmd.Flags().Duration("interval", 0, "wall-clock time between steps")
	cmd.Flags().Int("start-day", 0, "day the run starts on")
	cmd.Flags().String("source", "", "catalog source (sqlite|postgres)")
	cmd.Flags().String("postgres-dsn", "", "Postgres connection string")
	cmd.Flags().String("amqp-url", "", "publish steps to this RabbitMQ server")
	cmd.Flags().String("amqp-exchange", "", "RabbitMQ fanout exchange")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.UntilIdle, "until-idle", false, "stop before --days once nothing is left")

	return cmd
}

func runSimulation(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if !opts.Verbose {
		configureLogging(cmd.ErrOrStderr(), cfg.Log.Format, cfg.SlogLevel())
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	slog.Info("opening database", "path", cfg.DB)
	st, err := openStore(cfg.DB)
	if err != nil {
		return err
	}
	defer closeStore(st)

	src, closeSource, err := openSource(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer closeSource()

	stopper := &stopCondition{days: cfg.Run.MaxDays, untilIdle: cfg.Run.MaxDays == 0 || opts.UntilIdle}
	simOpts := []engine.SimulationOption{
		engine.WithStartDay(cfg.Run.StartDay),
		engine.WithObserver(store.NewRecorder(st, cfg.Source.Kind)),
	}
	if opts.RunIDs != nil {
		simOpts = append(simOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	if cfg.Metrics.Addr != "" {
		collector := metrics.NewCollector()
		simOpts = append(simOpts, engine.WithObserver(collector))
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Addr); err != nil {
				slog.Error("metrics endpoint failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	if cfg.AMQP.URL != "" {
		pub, err := publish.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to RabbitMQ", err)
		}
		defer pub.Close()
		simOpts = append(simOpts, engine.WithObserver(pub))
	}

	simOpts = append(simOpts, engine.WithObserver(stopper))
	sim := engine.NewSimulation(src, simOpts...)
	stopper.sim = sim

	if err := sim.Load(ctx); err != nil {
		if engine.IsCatalogUnreadable(err) {
			return formatter.Fail(ExitFailure, ErrCodeCatalog, err.Error(), nil, nil)
		}
		return simulationFailed(formatter, sim, err)
	}
	slog.Info("simulation started", "run", sim.RunID(), "day", sim.Day())

	err = drive(ctx, sim, cfg, stopper)
	switch {
	case errors.Is(err, context.Canceled):
		slog.Info("simulation interrupted", "day", sim.Day())
	case engine.IsStepsExceededError(err):
		result := newRunResult(sim)
		return formatter.Fail(ExitFailure, ErrCodeSimulation, err.Error(), result, func(w io.Writer) {
			printSnapshot(w, result.Snapshot)
		})
	case err != nil:
		return simulationFailed(formatter, sim, err)
	}

	result := newRunResult(sim)
	return formatter.Render(result, func(w io.Writer) {
		printSnapshot(w, result.Snapshot)
		if result.Idle {
			fmt.Fprintf(w, "\nAll orders finished after %d steps.\n", result.Steps)
		}
	})
}

// drive advances a loaded simulation according to the run settings.
func drive(ctx context.Context, sim *engine.Simulation, cfg *config.Config, stop *stopCondition) error {
	if cfg.Run.Interval > 0 {
		if stop.reached() {
			return nil
		}
		return sim.Run(ctx, engine.NewIntervalPacer(cfg.Run.Interval))
	}

	if cfg.Run.MaxDays == 0 {
		_, err := sim.RunUntilIdle(ctx, 0)
		return err
	}
	for !stop.reached() {
		if _, err := sim.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func newRunResult(sim *engine.Simulation) RunResult {
	snap := sim.Snapshot()
	return RunResult{
		RunID:    snap.RunID,
		Steps:    snap.Step,
		Day:      snap.Day,
		Idle:     sim.Idle(),
		Snapshot: snap,
	}
}

func simulationFailed(formatter *OutputFormatter, sim *engine.Simulation, err error) error {
	result := newRunResult(sim)
	return formatter.Fail(ExitFailure, ErrCodeSimulation, err.Error(), result, func(w io.Writer) {
		printSnapshot(w, result.Snapshot)
	})
}

// stopCondition ends a paced run once the day budget is used up or, when
// enabled, once nothing is left to do.
type stopCondition struct {
	sim       *engine.Simulation
	days      int
	untilIdle bool
	steps     atomic.Int64
}

func (s *stopCondition) ObserveStep(_ context.Context, snap engine.Snapshot, _ engine.StepReport) error {
	s.steps.Store(int64(snap.Step))
	if s.reached() {
		s.sim.Stop()
	}
	return nil
}

func (s *stopCondition) reached() bool {
	if s.days > 0 && s.steps.Load() >= int64(s.days) {
		return true
	}
	return s.untilIdle && s.sim.Idle()
}
