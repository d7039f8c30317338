package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

func TestCatalogBuilders(t *testing.T) {
	c := Catalog(t,
		[]catalog.Machine{Machine("M1", 8, 0, 100), MachineWithoutWindow("M2", 4)},
		[]catalog.Order{Order("O1", 3)},
		[]catalog.RoutingStep{Step("O1", "M1", 1, 16)},
	)

	m, ok := c.Machine("M1")
	assert.True(t, ok)
	assert.True(t, m.AvailableOn(100))
	assert.False(t, m.AvailableOn(101))

	m2, _ := c.Machine("M2")
	assert.Nil(t, m2.Window)

	o, ok := c.Order("O1")
	assert.True(t, ok)
	assert.Equal(t, 3, o.Start)
	assert.Equal(t, 1, o.Quantity)
	assert.Equal(t, 1, c.PlanLen("O1"))
}
