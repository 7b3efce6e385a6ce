package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("encoding response: %v", err)
	}
}

// writeError maps domain errors to HTTP statuses. Internal detail is
// logged, not returned.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, domain.ErrCodeInternal
	message := err.Error()

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, domain.ErrCodeNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrUnauthorised):
		status, code = http.StatusForbidden, domain.ErrCodeUnauthorised
	case errors.Is(err, domain.ErrRateLimited):
		status, code = http.StatusTooManyRequests, domain.ErrCodeRateLimited
	case errors.Is(err, domain.ErrGateClosed):
		status, code = http.StatusServiceUnavailable, domain.ErrCodeRateLimited
	case errors.Is(err, domain.ErrRunNotCancellable):
		status, code = http.StatusConflict, "RUN_NOT_CANCELLABLE"
	default:
		logger.Error("internal error: %v", err)
		message = "internal error"
	}

	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func decodeBody(r *http.Request, into any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}
	return nil
}
