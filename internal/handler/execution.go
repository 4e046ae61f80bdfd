package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/execbox/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ExecutionHandler serves the execution history: the audit trail of what ran
// through the sandbox.
type ExecutionHandler struct {
	repo   repository.ExecutionRepository
	logger *slog.Logger
}

// NewExecutionHandler creates a new ExecutionHandler.
func NewExecutionHandler(repo repository.ExecutionRepository, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleList returns recent execution records, newest first.
//
// HTTP: GET /api/executions?limit=20&offset=0
func (h *ExecutionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts := repository.ListOptions{Limit: defaultListLimit}

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = min(n, maxListLimit)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	executions, err := h.repo.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list executions", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, executions)
}

// HandleGetByID returns a single execution record.
//
// HTTP: GET /api/executions/{id}
func (h *ExecutionHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	execution, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}
