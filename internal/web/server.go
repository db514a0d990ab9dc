// Package web provides the HTTP API for grade ingestion and reports.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/JonMunkholm/grades/internal/config"
	"github.com/JonMunkholm/grades/internal/core"
	"github.com/JonMunkholm/grades/internal/metrics"
	"github.com/JonMunkholm/grades/internal/web/middleware"
)

// Server is the HTTP server for the grades API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	metrics *metrics.Manager
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. m may be nil, which disables /metrics and
// per-request instrumentation.
func NewServer(service *core.Service, cfg *config.Config, m *metrics.Manager) *Server {
	if m != nil && !m.Enabled() {
		m = nil
	}
	s := &Server{
		service: service,
		cfg:     cfg,
		metrics: m,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5, "application/json", "text/plain"))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)

	if len(s.cfg.Security.AllowedOrigins) > 0 {
		s.router.Use(newCORS(s.cfg.Security.AllowedOrigins).Handler)
	}

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthcheck", s.handleHealthcheck)

	upload := http.HandlerFunc(s.handleUploadGrades)
	if s.cfg.Rate.Enabled && s.cfg.Rate.UploadLimit > 0 {
		s.router.With(newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware).
			Post("/upload-grades", upload)
	} else {
		s.router.Post("/upload-grades", upload)
	}

	s.router.Route("/students", func(r chi.Router) {
		r.Get("/more-than-3-twos", s.handleMoreTwos)
		r.Get("/less-than-5-twos", s.handleFewerTwos)
	})

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}

func newCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Upload-ID", "X-Request-Id"},
		MaxAge:         600,
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

	slog.Info("starting server", "addr", s.server.Addr)
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
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
