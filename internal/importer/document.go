package importer

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

// Document is the file representation of a catalog.
type Document struct {
	Machines []MachineDoc `yaml:"machines" json:"machines,omitempty"`
	Orders   []OrderDoc   `yaml:"orders" json:"orders,omitempty"`
	Routing  []RoutingDoc `yaml:"routing" json:"routing,omitempty"`
}

// MachineDoc describes one machine. A machine missing either window bound
// has no availability window.
type MachineDoc struct {
	ID            string  `yaml:"id" json:"id"`
	Name          string  `yaml:"name,omitempty" json:"name,omitempty"`
	AvailableFrom *int    `yaml:"available_from,omitempty" json:"available_from,omitempty"`
	AvailableTo   *int    `yaml:"available_to,omitempty" json:"available_to,omitempty"`
	DailyCapacity float64 `yaml:"daily_capacity" json:"daily_capacity"`
}

// OrderDoc describes one order. Quantity defaults to 1.
type OrderDoc struct {
	ID       string `yaml:"id" json:"id"`
	Quantity *int   `yaml:"quantity,omitempty" json:"quantity,omitempty"`
	Start    int    `yaml:"start" json:"start"`
}

// RoutingDoc describes one routing step.
type RoutingDoc struct {
	Order    string  `yaml:"order" json:"order"`
	Machine  string  `yaml:"machine" json:"machine"`
	Sequence int     `yaml:"sequence" json:"sequence"`
	Duration float64 `yaml:"duration" json:"duration"`
}

// Validate checks what the file formats cannot express: non-empty ids and
// non-negative durations. Dangling references are left to the catalog,
// which reports them as issues.
func (d *Document) Validate() error {
	var errs []error
	for i, m := range d.Machines {
		if clean(m.ID) == "" {
			errs = append(errs, fmt.Errorf("machines[%d]: id is required", i))
		}
	}
	for i, o := range d.Orders {
		if clean(o.ID) == "" {
			errs = append(errs, fmt.Errorf("orders[%d]: id is required", i))
		}
		if o.Quantity != nil && *o.Quantity < 1 {
			errs = append(errs, fmt.Errorf("orders[%d]: quantity must be at least 1", i))
		}
	}
	for i, r := range d.Routing {
		if clean(r.Order) == "" {
			errs = append(errs, fmt.Errorf("routing[%d]: order is required", i))
		}
		if clean(r.Machine) == "" {
			errs = append(errs, fmt.Errorf("routing[%d]: machine is required", i))
		}
		if r.Duration < 0 {
			errs = append(errs, fmt.Errorf("routing[%d]: duration must not be negative", i))
		}
	}
	return errors.Join(errs...)
}

// Source converts the document into a catalog source.
func (d *Document) Source() *catalog.StaticSource {
	src := &catalog.StaticSource{
		Orders:   make([]catalog.Order, 0, len(d.Orders)),
		Machines: make([]catalog.Machine, 0, len(d.Machines)),
		Steps:    make([]catalog.RoutingStep, 0, len(d.Routing)),
	}
	for _, m := range d.Machines {
		cm := catalog.Machine{
			ID:            clean(m.ID),
			Name:          clean(m.Name),
			DailyCapacity: m.DailyCapacity,
		}
		if m.AvailableFrom != nil && m.AvailableTo != nil {
			cm.Window = &catalog.Window{From: *m.AvailableFrom, To: *m.AvailableTo}
		}
		src.Machines = append(src.Machines, cm)
	}
	for _, o := range d.Orders {
		qty := 1
		if o.Quantity != nil {
			qty = *o.Quantity
		}
		src.Orders = append(src.Orders, catalog.Order{ID: clean(o.ID), Quantity: qty, Start: o.Start})
	}
	for _, r := range d.Routing {
		src.Steps = append(src.Steps, catalog.RoutingStep{
			OrderID:   clean(r.Order),
			MachineID: clean(r.Machine),
			Sequence:  r.Sequence,
			Duration:  r.Duration,
		})
	}
	return src
}

// FromCatalog builds a document from a loaded catalog, e.g. to export the
// catalog stored in a database.
func FromCatalog(cat *catalog.Catalog) *Document {
	d := &Document{}
	for _, m := range cat.Machines() {
		md := MachineDoc{ID: m.ID, Name: m.Name, DailyCapacity: m.DailyCapacity}
		if m.Window != nil {
			from, to := m.Window.From, m.Window.To
			md.AvailableFrom, md.AvailableTo = &from, &to
		}
		d.Machines = append(d.Machines, md)
	}
	for _, o := range cat.Orders() {
		qty := o.Quantity
		d.Orders = append(d.Orders, OrderDoc{ID: o.ID, Quantity: &qty, Start: o.Start})
	}
	for _, rs := range cat.RoutingSteps() {
		d.Routing = append(d.Routing, RoutingDoc{
			Order:    rs.OrderID,
			Machine:  rs.MachineID,
			Sequence: rs.Sequence,
			Duration: rs.Duration,
		})
	}
	return d
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
