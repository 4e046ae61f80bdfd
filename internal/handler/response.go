package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/execbox/internal/apperror"
)

// ErrorResponse is the standard error envelope returned by all API endpoints,
// so clients always know the shape regardless of status code.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind (e.g. "overloaded")
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response. Headers and status must go out before the
// body; once Encode writes, header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already gone; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps the apperror taxonomy onto HTTP status codes. The service
// layers never see HTTP; this is the only place the translation happens.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnsupportedLanguage):
			status = http.StatusBadRequest
			errorType = "unsupported_language"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrOverloaded):
			// 429 tells well-behaved clients to back off and retry; the
			// service itself never retries an execution.
			status = http.StatusTooManyRequests
			errorType = "overloaded"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error: generic 500, details stay in the logs.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
