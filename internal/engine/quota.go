package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps bounds RunUntilIdle when no positive limit is given.
// Without a starvation policy an order waiting on a machine that never
// frees up keeps the simulation busy forever; the budget guarantees
// termination.
const DefaultMaxSteps = 10000

// stepBudget counts steps against a limit.
type stepBudget struct {
	limit   int
	current int
}

func newStepBudget(limit int) *stepBudget {
	if limit <= 0 {
		limit = DefaultMaxSteps
	}
	return &stepBudget{limit: limit}
}

// Check increments the step counter and validates it against the limit.
func (b *stepBudget) Check(day, queued int) error {
	b.current++
	if b.current > b.limit {
		return &StepsExceededError{
			Steps:  b.current - 1,
			Limit:  b.limit,
			Day:    day,
			Queued: queued,
		}
	}
	return nil
}

// StepsExceededError is returned when a simulation is still busy after its
// step budget. It is not a simulation fault: the state stays consistent and
// stepping may continue.
type StepsExceededError struct {
	Steps  int // Steps taken
	Limit  int // Maximum allowed steps
	Day    int // Day reached
	Queued int // Orders still queued
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("simulation still busy after %d steps (limit %d, day %d, %d orders queued)",
		e.Steps, e.Limit, e.Day, e.Queued)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
