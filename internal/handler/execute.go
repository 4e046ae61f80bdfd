// Package handler contains the HTTP handlers: thin adapters between the
// router and the dispatcher.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/execbox/internal/apperror"
	"github.com/sakif/execbox/internal/dispatch"
)

// ExecuteHandler handles code execution requests.
type ExecuteHandler struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(dispatcher *dispatch.Dispatcher, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleExecute processes an incoming execution request.
//
// HTTP: POST /api/execute
// Body: {"language": "...", "source": "...", "stdin": "...", "timeoutMs": 500}
// 200:  {"kind": "...", "stdout": "...", "stderr": "...", "exitCode": 0,
//
//	"durationMs": 12, "truncated": false}
//
// Errors use the standard envelope (400/429/500).
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req dispatch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	result, err := h.dispatcher.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleLanguages lists the registered language profiles.
//
// HTTP: GET /api/languages
func (h *ExecuteHandler) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dispatcher.Languages())
}
