package job

import (
	"errors"
	"fmt"
)

// Domain errors for job construction and stepping.
var (
	// ErrInvalidTimeStep indicates a non-positive or non-finite delta t.
	ErrInvalidTimeStep = errors.New("job: time step must be positive and finite")

	// ErrUnstable indicates particles moving further than the box in one step,
	// or non-finite positions or velocities.
	ErrUnstable = errors.New("job: simulation unstable")

	// ErrDimensionMismatch indicates an ensemble whose slices differ in length.
	ErrDimensionMismatch = errors.New("job: ensemble length mismatch")

	// ErrCheckpoint indicates the molecular state failed to sync.
	ErrCheckpoint = errors.New("job: checkpoint failed")

	// ErrCanceled indicates the run was interrupted by its context.
	ErrCanceled = errors.New("job: run canceled")

	// ErrSetupUsed indicates a second Job call on the same Setup.
	ErrSetupUsed = errors.New("job: setup already built a job")
)

// SimulationError wraps an error with the step and time it occurred at.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
