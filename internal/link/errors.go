package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Normalized link errors.
var (
	ErrConnectionFailure = errors.New("CONNECTION_FAILURE")
	ErrClosed            = errors.New("LINK_CLOSED")
	ErrRejected          = errors.New("REJECTED")
	ErrBusy              = errors.New("BUSY")
	ErrUnsupported       = errors.New("UNSUPPORTED")
	ErrTimeout           = errors.New("LINK_TIMEOUT")
)

// Result is a command acknowledgement result. Values follow MAV_RESULT.
type Result uint8

const (
	ResultAccepted            Result = 0
	ResultTemporarilyRejected Result = 1
	ResultDenied              Result = 2
	ResultUnsupported         Result = 3
	ResultFailed              Result = 4
	ResultInProgress          Result = 5
	ResultCancelled           Result = 6
)

var resultNames = map[Result]string{
	ResultAccepted:            "ACCEPTED",
	ResultTemporarilyRejected: "TEMPORARILY_REJECTED",
	ResultDenied:              "DENIED",
	ResultUnsupported:         "UNSUPPORTED",
	ResultFailed:              "FAILED",
	ResultInProgress:          "IN_PROGRESS",
	ResultCancelled:           "CANCELLED",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RESULT_%d", uint8(r))
}

// resultCodes is the deterministic ack result -> normalized error table.
// ResultAccepted maps to nil and is handled before the lookup.
var resultCodes = map[Result]error{
	ResultTemporarilyRejected: ErrBusy,
	ResultInProgress:          ErrBusy,
	ResultDenied:              ErrRejected,
	ResultFailed:              ErrRejected,
	ResultCancelled:           ErrRejected,
	ResultUnsupported:         ErrUnsupported,
}

// transportTokens maps transport error text to a normalized code.
var transportTokens = map[error][]string{
	ErrTimeout: {"TIMEOUT", "I/O TIMEOUT"},
	ErrClosed:  {"CLOSED", "TERMINATED", "EOF", "BROKEN PIPE"},
	ErrConnectionFailure: {
		"CONNECTION REFUSED",
		"NO SUCH DEVICE",
		"NO SUCH FILE",
		"NETWORK IS UNREACHABLE",
		"PERMISSION DENIED",
	},
}

// LinkError wraps a vehicle or transport error with diagnostic details.
type LinkError struct {
	Code     error       // Normalized code
	Original error       // Underlying error, may be nil for ack results
	Details  interface{} // Opaque payload (e.g. the ack)
}

func (e *LinkError) Error() string {
	if e.Original == nil {
		return e.Code.Error()
	}
	return fmt.Sprintf("%v (link: %v)", e.Code, e.Original)
}

func (e *LinkError) Unwrap() error {
	return e.Code
}

// NormalizeAck maps a command acknowledgement to a normalized error, nil when accepted.
func NormalizeAck(ack *CommandAck) error {
	if ack == nil || ack.Result == ResultAccepted {
		return nil
	}
	code, ok := resultCodes[ack.Result]
	if !ok {
		code = ErrRejected
	}
	return &LinkError{
		Code:     code,
		Original: fmt.Errorf("%s %s", ack.Opcode, ack.Result),
		Details:  *ack,
	}
}

// NormalizeTransportError maps a transport error using table-driven token matching.
// Context errors and errors that already carry a normalized code are returned unchanged.
func NormalizeTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var le *LinkError
	if errors.As(err, &le) {
		return err
	}
	for _, code := range []error{ErrConnectionFailure, ErrClosed, ErrRejected, ErrBusy, ErrUnsupported, ErrTimeout} {
		if errors.Is(err, code) {
			return err
		}
	}

	upper := strings.ToUpper(err.Error())
	for _, code := range []error{ErrTimeout, ErrClosed, ErrConnectionFailure} {
		for _, token := range transportTokens[code] {
			if strings.Contains(upper, token) {
				return &LinkError{Code: code, Original: err}
			}
		}
	}
	return &LinkError{Code: ErrConnectionFailure, Original: err}
}
