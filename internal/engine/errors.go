package engine

import (
	"errors"
	"fmt"

	"github.com/nikonych/fliessfertigung/internal/catalog"
)

// SimError represents a fault detected while simulating.
//
// Faults are either isolated (one task or order is skipped, the step goes on)
// or fatal (the step aborts and the simulation halts until Reset):
//   - DATA_INCONSISTENCY: reference to an id absent from the catalog (isolated)
//   - CONFIGURATION: unusable machine settings, e.g. no window (isolated)
//   - NOT_FOUND: an id that must exist by invariant is missing (fatal)
//   - STEP_IN_FLIGHT: a step was started while another one ran (fatal)
//   - CATALOG_UNREADABLE: the catalog could not be loaded (fatal)
//   - HALTED: the simulation refuses to advance after a fatal fault
type SimError struct {
	// Code identifies the fault category.
	Code SimErrorCode

	// Message is a human-readable description.
	Message string

	// Day is the simulation day the fault was detected on.
	Day int

	OrderID   string
	MachineID string

	// Err is the underlying cause, if any.
	Err error
}

// SimErrorCode categorizes simulation faults.
type SimErrorCode string

const (
	ErrCodeDataInconsistency SimErrorCode = "DATA_INCONSISTENCY"
	ErrCodeNotFound          SimErrorCode = "NOT_FOUND"
	ErrCodeConfiguration     SimErrorCode = "CONFIGURATION"
	ErrCodeStepInFlight      SimErrorCode = "STEP_IN_FLIGHT"
	ErrCodeCatalogUnreadable SimErrorCode = "CATALOG_UNREADABLE"
	ErrCodeHalted            SimErrorCode = "HALTED"
)

// Error implements the error interface.
func (e *SimError) Error() string {
	msg := fmt.Sprintf("%s: %s (day=%d", e.Code, e.Message, e.Day)
	if e.OrderID != "" {
		msg += ", order=" + e.OrderID
	}
	if e.MachineID != "" {
		msg += ", machine=" + e.MachineID
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SimError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the fault stops the simulation.
func (e *SimError) Fatal() bool {
	switch e.Code {
	case ErrCodeDataInconsistency, ErrCodeConfiguration:
		return false
	default:
		return true
	}
}

// hasCode walks the whole chain, so a HALTED fault still matches the code
// of the fault that caused it.
func hasCode(err error, code SimErrorCode) bool {
	var se *SimError
	for errors.As(err, &se) {
		if se.Code == code {
			return true
		}
		err = se.Err
	}
	return false
}

// IsNotFound returns true if the error is a NOT_FOUND fault.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsDataInconsistency returns true if the error is a DATA_INCONSISTENCY fault.
func IsDataInconsistency(err error) bool { return hasCode(err, ErrCodeDataInconsistency) }

// IsConfigurationError returns true if the error is a CONFIGURATION fault.
func IsConfigurationError(err error) bool { return hasCode(err, ErrCodeConfiguration) }

// IsStepInFlight returns true if a step was started while another was running.
func IsStepInFlight(err error) bool { return hasCode(err, ErrCodeStepInFlight) }

// IsHalted returns true if the simulation refused to advance.
func IsHalted(err error) bool { return hasCode(err, ErrCodeHalted) }

// IsCatalogUnreadable returns true if the catalog could not be loaded.
func IsCatalogUnreadable(err error) bool { return hasCode(err, ErrCodeCatalogUnreadable) }

// IsFatal reports whether err stops the simulation. Errors that are not
// SimErrors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *SimError
	if errors.As(err, &se) {
		return se.Fatal()
	}
	return true
}

// NewNotFoundError creates a NOT_FOUND fault.
func NewNotFoundError(day int, what, id string) *SimError {
	e := &SimError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %s not found", what, id),
		Day:     day,
	}
	switch what {
	case "machine":
		e.MachineID = id
	case "order":
		e.OrderID = id
	}
	return e
}

// NewDataInconsistencyError creates a DATA_INCONSISTENCY fault.
func NewDataInconsistencyError(day int, orderID, machineID, message string) *SimError {
	return &SimError{
		Code:      ErrCodeDataInconsistency,
		Message:   message,
		Day:       day,
		OrderID:   orderID,
		MachineID: machineID,
	}
}

// issueError converts a catalog finding into an isolated fault.
func issueError(day int, is catalog.Issue) *SimError {
	code := ErrCodeDataInconsistency
	if is.Kind == catalog.IssueConfiguration {
		code = ErrCodeConfiguration
	}
	return &SimError{
		Code:      code,
		Message:   is.Message,
		Day:       day,
		OrderID:   is.OrderID,
		MachineID: is.MachineID,
	}
}
