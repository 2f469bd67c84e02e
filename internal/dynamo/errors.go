package dynamo

import "errors"

var (
	// ErrInvalidState indicates a state vector holding NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDerivative indicates the system could not evaluate its derivative,
	// e.g. a singular articulated inertia.
	ErrDerivative = errors.New("dynamo: derivative evaluation failed")

	// ErrStepRejected is returned by an adaptive step whose error estimate
	// exceeds the tolerance; the suggested step is still valid.
	ErrStepRejected = errors.New("dynamo: step rejected by error control")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	ErrBadConfig = errors.New("dynamo: invalid run configuration")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return e.Wrapped.Error()
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
