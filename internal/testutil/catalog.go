// Package testutil provides catalog fixtures for tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

// Machine returns a machine available on the closed window [from, to].
func Machine(id string, capacity float64, from, to int) catalog.Machine {
	return catalog.Machine{
		ID:            id,
		Name:          "Machine " + id,
		Window:        &catalog.Window{From: from, To: to},
		DailyCapacity: capacity,
	}
}

// MachineWithoutWindow returns a machine that has no availability data.
func MachineWithoutWindow(id string, capacity float64) catalog.Machine {
	return catalog.Machine{ID: id, Name: "Machine " + id, DailyCapacity: capacity}
}

// Order returns an order of quantity 1 starting on day start.
func Order(id string, start int) catalog.Order {
	return catalog.Order{ID: id, Quantity: 1, Start: start}
}

// Step returns a routing step.
func Step(orderID, machineID string, sequence int, duration float64) catalog.RoutingStep {
	return catalog.RoutingStep{
		OrderID:   orderID,
		MachineID: machineID,
		Sequence:  sequence,
		Duration:  duration,
	}
}

// Source bundles tables into a StaticSource.
func Source(machines []catalog.Machine, orders []catalog.Order, steps []catalog.RoutingStep) *catalog.StaticSource {
	return &catalog.StaticSource{Orders: orders, Machines: machines, Steps: steps}
}

// Catalog builds a catalog and fails the test on structural errors.
func Catalog(t testing.TB, machines []catalog.Machine, orders []catalog.Order, steps []catalog.RoutingStep) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(orders, machines, steps)
	require.NoError(t, err)
	return c
}
