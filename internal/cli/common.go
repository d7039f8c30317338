package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nikonych/fliessfertigung/internal/catalog"
	"github.com/nikonych/fliessfertigung/internal/config"
	"github.com/nikonych/fliessfertigung/internal/pgstore"
	"github.com/nikonych/fliessfertigung/internal/store"
)

// openStore opens (and creates if needed) the SQLite database.
func openStore(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openExistingStore opens a database that must already exist.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path), err)
	}
	return openStore(path)
}

// openSource returns the configured catalog source. The sqlite source is
// st itself; the returned close func releases anything else opened.
func openSource(ctx context.Context, cfg *config.Config, st *store.Store) (catalog.Source, func(), error) {
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		pg, err := pgstore.Open(ctx, cfg.Postgres.DSN, pgstore.DefaultOptions())
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to connect to postgres", err)
		}
		return pg, func() {
			if err := pg.Close(); err != nil {
				slog.Error("error closing postgres", "error", err)
			}
		}, nil
	default:
		return st, func() {}, nil
	}
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// resolveRun returns the requested run, or the latest one when id is empty.
func resolveRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	var (
		run store.Run
		err error
	)
	if id == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.GetRun(ctx, id)
	}
	if errors.Is(err, store.ErrNotFound) {
		if id == "" {
			return run, WrapExitError(ExitCommandError, "no runs recorded", err)
		}
		return run, WrapExitError(ExitCommandError, fmt.Sprintf("run %s not found", id), err)
	}
	if err != nil {
		return run, WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return run, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
