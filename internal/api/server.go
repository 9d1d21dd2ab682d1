// Package api exposes the claim workflow over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-insurance/heron/internal/automation"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/service"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, svc *service.ClaimService, repo domain.Repository, cache domain.Cache, engine *automation.Engine, version string) *Server {
	handler := NewHandler(svc, repo, cache, engine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Claim intake and retrieval
		r.Post("/claims", handler.CreateClaim)
		r.Get("/claims", handler.ListClaims)
		r.Get("/claims/{id}", handler.GetClaim)
		r.Get("/claims/{id}/history", handler.GetHistory)
		r.Get("/claims/{id}/transitions", handler.GetTransitions)
		r.Get("/claims/{id}/sla", handler.GetSLA)

		// Lifecycle operations
		r.Post("/claims/{id}/submit", handler.SubmitClaim)
		r.Post("/claims/{id}/review", handler.ReviewClaim)
		r.Post("/claims/{id}/request-documents", handler.RequestDocuments)
		r.Post("/claims/{id}/documents", handler.AttachDocument)
		r.Post("/claims/{id}/investigate", handler.InvestigateClaim)
		r.Post("/claims/{id}/approve", handler.ApproveClaim)
		r.Post("/claims/{id}/reject", handler.RejectClaim)
		r.Post("/claims/{id}/pay", handler.PayClaim)
		r.Post("/claims/{id}/close", handler.CloseClaim)
		r.Post("/claims/{id}/reopen", handler.ReopenClaim)
		r.Post("/claims/{id}/escalate", handler.EscalateClaim)
		r.Post("/claims/{id}/assign", handler.AssignAdjuster)

		// Automated pipeline
		r.Post("/claims/{id}/process", handler.ProcessClaim)
		r.Post("/claims/{id}/fraud", handler.DetectFraud)

		// Customer aggregates
		r.Get("/customers/{id}/exposure", handler.GetCustomerExposure)

		// Multi-party approvals
		r.Post("/approvals/{id}/approve", handler.ApproveRequest)
		r.Post("/approvals/{id}/reject", handler.RejectRequest)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
