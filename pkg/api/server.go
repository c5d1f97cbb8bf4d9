// Package api serves the allocation workflow over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mm1618bu/laborflow/pkg/configstore"
	"github.com/mm1618bu/laborflow/pkg/core/allocation"
	"github.com/mm1618bu/laborflow/pkg/core/override"
	"github.com/mm1618bu/laborflow/pkg/core/waitlist"
	"github.com/mm1618bu/laborflow/pkg/db"
	"github.com/mm1618bu/laborflow/pkg/metrics"
)

// Deps are the services the API exposes. Metrics and Health may be nil.
type Deps struct {
	Offers   db.OfferStore
	Configs  *configstore.Store
	Engine   *allocation.Engine
	Waitlist *waitlist.Manager
	Batch    *override.Batch
	Metrics  *metrics.Metrics
	Health   func(ctx context.Context) error
}

// Server holds the HTTP handlers
type Server struct {
	deps     Deps
	logger   *zap.Logger
	validate *validator.Validate
}

func NewServer(deps Deps, logger *zap.Logger) *Server {
	return &Server{
		deps:     deps,
		logger:   logger,
		validate: validator.New(),
	}
}

// Handler builds the router
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}
	r.Use(chiMiddleware.RequestID, chiMiddleware.Recoverer, s.requestLogger)

	r.Get("/healthz", s.healthz)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api/v1/labor-actions/{offerID}", func(ar chi.Router) {
		ar.Post("/process", s.process)
		ar.Get("/workflow-status", s.workflowStatus)
		ar.Post("/responses/approve", s.approve)
		ar.Post("/responses/reject", s.reject)
		ar.Post("/responses/{responseID}/withdraw", s.withdraw)
		ar.Get("/waitlist", s.listWaitlist)
		ar.Post("/waitlist/promote", s.promote)
		ar.Post("/waitlist/trim", s.trim)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.deps.Metrics.ObserveRequest(r.Method, route, ww.Status())
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
			zap.Int("status", ww.Status()))
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			s.logger.Warn("Health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
