package command

import "errors"

var (
	// ErrMalformedCommand marks an entry that is not a well-formed command. The entry is skipped.
	ErrMalformedCommand = errors.New("MALFORMED_COMMAND")

	// ErrUnknownCommand marks an entry naming no known command. The entry is skipped.
	ErrUnknownCommand = errors.New("UNKNOWN_COMMAND")

	// ErrHandlerException marks an unexpected failure while executing a command.
	// The rest of the sequence is abandoned.
	ErrHandlerException = errors.New("HANDLER_EXCEPTION")

	// ErrNoSession is returned for a flight command issued while disconnected.
	ErrNoSession = errors.New("NO_SESSION")

	// ErrInvalidPlan is returned when a plan document is not JSON at all.
	ErrInvalidPlan = errors.New("INVALID_PLAN")
)
