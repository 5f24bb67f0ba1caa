package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/flight-control/fcc/internal/command"
	"github.com/flight-control/fcc/internal/mission"
)

// ErrBadRequest marks a request body that could not be used.
var ErrBadRequest = errors.New("BAD_REQUEST")

// APIError is an error carrying its own HTTP status.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// NewAPIError creates an APIError.
func NewAPIError(code, message string, statusCode int, details interface{}) *APIError {
	return &APIError{Code: code, Message: message, Details: details, StatusCode: statusCode}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ToAPIError maps err to an HTTP status and a JSON error envelope.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	switch {
	case errors.Is(err, command.ErrInvalidPlan), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, marshalErrorResponse("BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, mission.ErrBusy):
		return http.StatusServiceUnavailable, marshalErrorResponse("BUSY", "A mission is already running, retry when it finishes", nil)
	case errors.Is(err, mission.ErrNotRunning):
		return http.StatusConflict, marshalErrorResponse("NOT_RUNNING", "No mission is running", nil)
	case errors.Is(err, mission.ErrClosed):
		return http.StatusServiceUnavailable, marshalErrorResponse("UNAVAILABLE", "Service is shutting down", nil)
	default:
		return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", map[string]interface{}{
			"original": err.Error(),
		})
	}
}

func marshalErrorResponse(code, message string, details interface{}) []byte {
	body, err := json.Marshal(ErrorResponse(code, message, details))
	if err != nil {
		body, _ = json.Marshal(ErrorResponse("INTERNAL", "Failed to marshal error response", nil))
	}
	return body
}
