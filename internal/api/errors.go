package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/token-gate/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondServiceError maps a service error to its HTTP status and sends it.
func respondServiceError(w http.ResponseWriter, err error) {
	var serviceErr *types.ServiceError
	if !errors.As(err, &serviceErr) {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(serviceErr.Code))
	json.NewEncoder(w).Encode(ErrorResponse{Error: *serviceErr})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Codes raised by the API layer itself.
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// statusForCode maps service error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case types.CodeUnauthorized:
		return http.StatusUnauthorized
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeInvalidValue, types.CodeInvalidAmount:
		return http.StatusBadRequest
	case types.CodeIllegalTransition, types.CodeInsufficientPrincipal:
		return http.StatusConflict
	case types.CodeAlreadyPending, types.CodeAlreadyApproved:
		// Idempotent re-requests carry the current state; the conflict
		// codes are informational, not failures.
		return http.StatusOK
	case types.CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case types.CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
