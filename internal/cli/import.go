package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nikonych/fliessfertigung/internal/catalog"
	"github.com/nikonych/fliessfertigung/internal/config"
	"github.com/nikonych/fliessfertigung/internal/importer"
	"github.com/nikonych/fliessfertigung/internal/pgstore"
)

// ImportResult summarises an import.
type ImportResult struct {
	File         string   `json:"file"`
	Target       string   `json:"target"`
	Orders       int      `json:"orders"`
	Machines     int      `json:"machines"`
	RoutingSteps int      `json:"routing_steps"`
	Issues       []string `json:"issues,omitempty"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <catalog-file>",
		Short: "Import a catalog file into the database",
		Long: `Import a YAML or CUE catalog file, replacing the stored catalog.

The whole catalog is replaced in one transaction. Recorded runs are kept.
With --source postgres the catalog tables in Postgres are replaced instead.

Examples:
  fliess import --db ./fliess.db plant.yaml
  fliess import --source postgres --postgres-dsn postgres://... plant.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}

	cmd.Flags().String("db", "", "path to SQLite database")
	cmd.Flags().String("source", "", "import target (sqlite|postgres)")
	cmd.Flags().String("postgres-dsn", "", "Postgres connection string")

	return cmd
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}

	doc, err := importer.LoadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read catalog", err)
	}
	src := doc.Source()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cat, err := catalog.Load(ctx, src)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeCatalog, err.Error(), nil, nil)
	}

	result := ImportResult{
		File:         path,
		Target:       cfg.Source.Kind,
		Orders:       len(cat.Orders()),
		Machines:     len(cat.Machines()),
		RoutingSteps: len(src.Steps),
	}
	for _, is := range cat.Issues() {
		result.Issues = append(result.Issues, is.String())
	}

	switch cfg.Source.Kind {
	case config.SourcePostgres:
		pg, err := pgstore.Open(ctx, cfg.Postgres.DSN, pgstore.DefaultOptions())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to postgres", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to prepare postgres schema", err)
		}
		if err := pg.ReplaceCatalog(ctx, src); err != nil {
			return WrapExitError(ExitCommandError, "failed to import catalog", err)
		}
	default:
		st, err := openStore(cfg.DB)
		if err != nil {
			return err
		}
		defer closeStore(st)
		if err := st.ImportCatalog(ctx, src); err != nil {
			return WrapExitError(ExitCommandError, "failed to import catalog", err)
		}
	}

	formatter.VerboseLog("Imported %s into %s", path, cfg.Source.Kind)
	return formatter.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "Imported %s: %d orders, %d machines, %d routing steps\n",
			path, result.Orders, result.Machines, result.RoutingSteps)
		for _, is := range result.Issues {
			fmt.Fprintf(w, "  warning: %s\n", is)
		}
	})
}
