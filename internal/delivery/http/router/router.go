package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/delivery/http/handler"
	"github.com/user/content-crawler/internal/delivery/http/middleware"
)

// New builds the HTTP router. requestTimeout bounds synchronous job runs.
func New(h *handler.Handler, logger *zap.Logger, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/run-pending", h.HandleRunPending)
		r.Get("/{id}", h.HandleGetJob)
		r.Post("/{id}/run", h.HandleRunJob)
		r.Post("/{id}/enqueue", h.HandleEnqueueJob)
		r.Post("/{id}/recrawl", h.HandleRecrawl)
	})

	return r
}
