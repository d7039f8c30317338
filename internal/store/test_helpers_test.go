package store

import (
	"path/filepath"
	"testing"

	"github.com/nikonych/fliessfertigung/internal/catalog"
	"github.com/nikonych/fliessfertigung/internal/testutil"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// smallCatalog has two machines, one without a window, and two orders.
func smallCatalog() *catalog.StaticSource {
	return testutil.Source(
		[]catalog.Machine{
			testutil.Machine("M1", 8, 0, 100),
			testutil.MachineWithoutWindow("M2", 4),
		},
		[]catalog.Order{testutil.Order("O2", 1), testutil.Order("O1", 0)},
		[]catalog.RoutingStep{
			testutil.Step("O1", "M2", 2, 4),
			testutil.Step("O1", "M1", 1, 16),
			testutil.Step("O2", "M1", 1, 8),
		},
	)
}
