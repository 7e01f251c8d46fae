// Package web provides the HTTP server and JSON handlers for CSV import sessions.
package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/csvimport/internal/config"
	"github.com/JonMunkholm/csvimport/internal/core"
	appmw "github.com/JonMunkholm/csvimport/internal/web/middleware"
)

// Server is the HTTP server for the CSV import service.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(newIPRateLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}

	s.router.Use(appmw.APIKeyAuth(&s.cfg.Security, "/healthz"))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Uploads get their own, tighter budget on top of the global one.
	uploads := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		uploads = newIPRateLimiter(s.cfg.Rate.UploadLimit).middleware
	}

	s.router.Route("/api", func(r chi.Router) {
		// Reference data
		r.Get("/encodings", s.handleListEncodings)
		r.Get("/delimiters", s.handleListDelimiters)
		r.Get("/targets", s.handleListTargets)
		r.Get("/status", s.handleStatus)

		// Multi-file analysis
		r.With(uploads).Post("/analyze", s.handleAnalyze)

		// Import sessions
		r.With(uploads).Post("/sessions", s.handleOpenSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleCloseSession)
			r.Put("/encoding", s.handleSetEncoding)
			r.Put("/options", s.handleSetOptions)
			r.Put("/mapping/{field}", s.handleMapField)
			r.Delete("/mapping", s.handleClearMapping)
			r.Post("/automatch", s.handleAutoMatch)
			r.Get("/records", s.handleRecords)
		})

		// Import templates
		r.Get("/templates/{target}", s.handleListTemplates)
		r.Post("/templates/{target}", s.handleCreateTemplate)
		r.Get("/templates/{target}/match", s.handleMatchTemplates)
		r.Delete("/templates/{target}/{id}", s.handleDeleteTemplate)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			// Prevent MIME type sniffing
			h.Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			h.Set("X-Frame-Options", "DENY")

			// JSON API: nothing to load
			if enableCSP {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}

			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Cache-Control", "no-store")

			next.ServeHTTP(w, r)
		})
	}
}
