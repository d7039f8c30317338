package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

func TestSimError_Message(t *testing.T) {
	err := NewNotFoundError(4, "machine", "M9")
	assert.Equal(t, "NOT_FOUND: machine M9 not found (day=4, machine=M9)", err.Error())

	wrapped := &SimError{Code: ErrCodeCatalogUnreadable, Message: "catalog could not be loaded", Err: errors.New("disk gone")}
	assert.Equal(t, "CATALOG_UNREADABLE: catalog could not be loaded (day=0): disk gone", wrapped.Error())
}

func TestSimError_FatalByCode(t *testing.T) {
	tests := []struct {
		code  SimErrorCode
		fatal bool
	}{
		{ErrCodeDataInconsistency, false},
		{ErrCodeConfiguration, false},
		{ErrCodeNotFound, true},
		{ErrCodeStepInFlight, true},
		{ErrCodeCatalogUnreadable, true},
		{ErrCodeHalted, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := &SimError{Code: tt.code}
			assert.Equal(t, tt.fatal, err.Fatal())
			assert.Equal(t, tt.fatal, IsFatal(err))
		})
	}
}

func TestIsFatal_NonSimErrors(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(errors.New("boom")))
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	cause := NewDataInconsistencyError(2, "O1", "GHOST", "unknown machine")
	err := fmt.Errorf("step: %w", cause)

	assert.True(t, IsDataInconsistency(err))
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)

	halted := &SimError{Code: ErrCodeHalted, Err: NewNotFoundError(3, "order", "O2")}
	assert.True(t, IsHalted(halted))
	assert.True(t, IsNotFound(halted))

	unreadable := &SimError{Code: ErrCodeHalted, Err: &SimError{Code: ErrCodeCatalogUnreadable}}
	assert.True(t, IsCatalogUnreadable(unreadable))
	assert.False(t, IsCatalogUnreadable(halted))
}

func TestIssueError_MapsKind(t *testing.T) {
	cfg := issueError(1, catalog.Issue{Kind: catalog.IssueConfiguration, MachineID: "M1", Message: "no window"})
	assert.True(t, IsConfigurationError(cfg))
	assert.Equal(t, "M1", cfg.MachineID)

	data := issueError(1, catalog.Issue{Kind: catalog.IssueDataInconsistency, OrderID: "O1", Message: "bad ref"})
	assert.True(t, IsDataInconsistency(data))
	assert.Equal(t, "O1", data.OrderID)
}
