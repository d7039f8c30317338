// Package metrics exposes simulation progress as Prometheus metrics.
//
// Collector is an engine.Observer: after every step it sets the gauges from
// the snapshot and adds the step's events to the counters.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikonych/fliessfertigung/internal/engine"
)

const namespace = "fliess"

// Collector holds the simulator's metrics in its own registry.
type Collector struct {
	registry *prometheus.Registry

	day          prometheus.Gauge
	queueLength  prometheus.Gauge
	activeTasks  prometheus.Gauge
	machinesBusy prometheus.Gauge
	machinesDown prometheus.Gauge
	halted       prometheus.Gauge
	events       *prometheus.CounterVec
	faults       *prometheus.CounterVec
}

// NewCollector creates a collector with all metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		day: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "day",
			Help:      "Current simulation day.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Orders admitted and not yet finished.",
		}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Routing steps currently bound to a machine.",
		}),
		machinesBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machines_busy",
			Help:      "Machines bound to a task.",
		}),
		machinesDown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machines_unavailable",
			Help:      "Machines outside their availability window.",
		}),
		halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "halted",
			Help:      "1 while the simulation is halted by a fatal fault.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Scheduling events by kind.",
		}, []string{"kind"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Isolated faults by code.",
		}, []string{"code"}),
	}
	c.registry.MustRegister(
		c.day,
		c.queueLength,
		c.activeTasks,
		c.machinesBusy,
		c.machinesDown,
		c.halted,
		c.events,
		c.faults,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveStep implements engine.Observer.
func (c *Collector) ObserveStep(_ context.Context, snap engine.Snapshot, rep engine.StepReport) error {
	c.day.Set(float64(snap.Day))
	c.queueLength.Set(float64(len(snap.Queue)))
	c.activeTasks.Set(float64(len(snap.ActiveTasks)))

	busy, down := 0, 0
	for _, m := range snap.Machines {
		if m.BoundOrder != "" {
			busy++
		}
		if !m.Available {
			down++
		}
	}
	c.machinesBusy.Set(float64(busy))
	c.machinesDown.Set(float64(down))

	if snap.Halted {
		c.halted.Set(1)
	} else {
		c.halted.Set(0)
	}

	for _, ev := range rep.Events {
		c.events.WithLabelValues(string(ev.Kind)).Inc()
	}
	for _, f := range rep.Faults {
		c.faults.WithLabelValues(string(f.Code)).Inc()
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

var _ engine.Observer = (*Collector)(nil)
