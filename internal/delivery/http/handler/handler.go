package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/delivery/http/response"
	"github.com/user/content-crawler/internal/entity"
	"github.com/user/content-crawler/internal/usecase"
)

const (
	defaultPendingBatch = 500
	maxPendingBatch     = 5000
	healthTimeout       = 2 * time.Second
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	runner  usecase.JobRunner
	manager usecase.JobManager
	checks  map[string]HealthCheck
	logger  *zap.Logger
}

func NewHandler(runner usecase.JobRunner, manager usecase.JobManager, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	return &Handler{
		runner:  runner,
		manager: manager,
		checks:  checks,
		logger:  logger,
	}
}

// HandleRunJob runs the job synchronously. Every persisted outcome, including
// failed and duplicate, is a 200 with the run result.
func (h *Handler) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewJobResponse(job))
}

func (h *Handler) HandleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Enqueue(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.EnqueueResponse{Status: "queued", Enqueued: 1})
}

// HandleRunPending queues every never-run job, up to the optional limit query parameter.
func (h *Handler) HandleRunPending(w http.ResponseWriter, r *http.Request) {
	limit := defaultPendingBatch
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxPendingBatch {
			h.writeJSON(w, http.StatusBadRequest, response.ErrorResponse{
				Error: "limit must be an integer between 1 and " + strconv.Itoa(maxPendingBatch),
			})
			return
		}
		limit = n
	}

	n, err := h.manager.EnqueuePending(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.EnqueueResponse{Status: "queued", Enqueued: n})
}

func (h *Handler) HandleRecrawl(w http.ResponseWriter, r *http.Request) {
	job, err := h.manager.Recrawl(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewJobResponse(job))
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := map[string]string{"status": "ok"}
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Error("Health check failed", zap.String("dependency", name), zap.Error(err))
			status[name] = "unhealthy"
			healthy = false
			continue
		}
		status[name] = "healthy"
	}

	if !healthy {
		status["status"] = "degraded"
		h.writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		conflict *entity.ConflictError
		urlErr   *entity.InvalidURLError
	)
	switch {
	case errors.Is(err, entity.ErrJobNotFound):
		h.writeJSON(w, http.StatusNotFound, response.ErrorResponse{Error: err.Error()})
	case errors.As(err, &conflict):
		h.writeJSON(w, http.StatusConflict, response.ErrorResponse{
			Error:  conflict.Error(),
			Reason: conflict.Reason,
			Status: string(conflict.Status),
		})
	case errors.As(err, &urlErr):
		h.writeJSON(w, http.StatusUnprocessableEntity, response.ErrorResponse{Error: urlErr.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, response.ErrorResponse{Error: "Internal server error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := response.JSON(w, status, data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
