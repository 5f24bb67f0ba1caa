package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/flight-control/fcc/internal/flight"
	"github.com/flight-control/fcc/internal/link"
	"github.com/flight-control/fcc/internal/safety"
)

// codes lists sentinels in the order codeOf tries them. More specific codes come first.
var codes = []error{
	ErrMalformedCommand,
	ErrUnknownCommand,
	ErrHandlerException,
	safety.ErrHardwareNotConfirmed,
	flight.ErrPreconditionUnmet,
	ErrNoSession,
	flight.ErrModeTransitionTimeout,
	flight.ErrArmFailure,
	flight.ErrConvergenceTimeout,
	link.ErrConnectionFailure,
	link.ErrClosed,
	link.ErrRejected,
	link.ErrBusy,
	link.ErrUnsupported,
	link.ErrTimeout,
}

// codeOf returns the normalized code of err.
func codeOf(err error) string {
	if err == nil {
		return ""
	}
	for _, code := range codes {
		if errors.Is(err, code) {
			return code.Error()
		}
	}
	return ErrHandlerException.Error()
}

// classify maps a handler error to a step status and whether the sequence stops.
func classify(err error) (StepStatus, bool) {
	switch {
	case err == nil:
		return StepOK, false
	case errors.Is(err, ErrHandlerException):
		return StepFailed, true
	case errors.Is(err, ErrNoSession):
		return StepFailed, true
	case errors.Is(err, safety.ErrHardwareNotConfirmed):
		return StepFailed, true
	case errors.Is(err, flight.ErrPreconditionUnmet):
		return StepSkipped, false
	case errors.Is(err, flight.ErrModeTransitionTimeout), errors.Is(err, flight.ErrArmFailure):
		return StepWarning, false
	default:
		// Link failures, convergence timeouts and cancellation.
		return StepFailed, true
	}
}

// escalate wraps an aborting error as ErrHandlerException unless it already
// carries an aborting code of its own.
func escalate(kind Kind, err error) error {
	switch {
	case errors.Is(err, ErrHandlerException),
		errors.Is(err, ErrNoSession),
		errors.Is(err, safety.ErrHardwareNotConfirmed):
		return err
	case kind == KindConnect && errors.Is(err, link.ErrConnectionFailure):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrHandlerException, err)
	}
}

// connectionFailure wraps an open failure as ErrConnectionFailure unless the
// context ended it.
func connectionFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if errors.Is(err, link.ErrConnectionFailure) {
		return fmt.Errorf("connect: %w", err)
	}
	return fmt.Errorf("connect: %w", &link.LinkError{Code: link.ErrConnectionFailure, Original: err})
}
