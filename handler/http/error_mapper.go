package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
)

// errorResponse is the uniform error body. Code is machine-readable so UIs
// can branch without string-matching messages.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// mapError translates domain sentinel errors to HTTP status codes and stable
// error codes. Anything unrecognized is a 500.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domainerrors.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, domainerrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domainerrors.ErrInsufficientInventory):
		return http.StatusConflict, "INSUFFICIENT_INVENTORY"
	case errors.Is(err, domainerrors.ErrInvalidState):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, domainerrors.ErrOutOfSequence):
		return http.StatusConflict, "OUT_OF_SEQUENCE"
	case errors.Is(err, domainerrors.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domainerrors.ErrUnauthorizedTransition):
		return http.StatusForbidden, "UNAUTHORIZED_TRANSITION"
	case errors.Is(err, domainerrors.ErrConflict):
		// Lost race on a concurrent mutation. Retryable: refetch and retry.
		return http.StatusConflict, "CONFLICT_RETRY"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}

	var body errorResponse
	body.Error.Code = code
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs.
		body.Error.Message = "internal server error"
	} else {
		body.Error.Message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)

	if s.metrics != nil {
		s.metrics.ErrorsCount.WithLabelValues(code).Inc()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}
