package flight

import "errors"

var (
	// ErrPreconditionUnmet is returned when a command needs an armed vehicle.
	ErrPreconditionUnmet = errors.New("PRECONDITION_UNMET")

	// ErrModeTransitionTimeout is returned when the mode did not change in time.
	// Callers may continue.
	ErrModeTransitionTimeout = errors.New("MODE_TRANSITION_TIMEOUT")

	// ErrArmFailure is returned when the vehicle did not arm. Callers may continue.
	ErrArmFailure = errors.New("ARM_FAILURE")

	// ErrConvergenceTimeout is returned when altitude or position did not converge in time.
	ErrConvergenceTimeout = errors.New("CONVERGENCE_TIMEOUT")
)
