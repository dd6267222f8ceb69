// Package web provides the JSON HTTP API for the participant tracking service.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/qrtrack/internal/config"
	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/metrics"
	"github.com/JonMunkholm/qrtrack/internal/ratelimit"
	"github.com/JonMunkholm/qrtrack/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Limiters holds the request limiters for each route scope. A nil limiter
// disables limiting for its scope.
type Limiters struct {
	API     ratelimit.Limiter
	CheckIn ratelimit.Limiter
	Import  ratelimit.Limiter
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Limiters Limiters
	Metrics  *metrics.Metrics

	// Ping reports store health for /healthz.
	Ping func(ctx context.Context) error
}

// Server is the HTTP server for the participant tracking API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	opts    Options
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config, opts Options) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		opts:    opts,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger("/healthz", s.cfg.Metrics.Path))
	if s.opts.Metrics != nil {
		s.router.Use(middleware.Instrument(s.opts.Metrics))
	}
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, s.opts.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		// Public check-in, scanned from QR codes without a login.
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			r.Use(s.limit(s.opts.Limiters.CheckIn, "checkin", rejectCheckIn))
			r.Post("/checkin", s.handleCheckIn)
			r.Get("/checkin", s.handleCheckInStatus)
		})

		r.Group(s.authenticatedRoutes)
	})
}

func (s *Server) authenticatedRoutes(r chi.Router) {
	r.Use(middleware.Identity([]byte(s.cfg.Security.JWTSecret), s.cfg.Security.RequireAuth))
	r.Use(s.limit(s.opts.Limiters.API, "api", nil))

	// Long-running builds get their own timeout and limit.
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.Import.Timeout))
		r.Use(s.limit(s.opts.Limiters.Import, "import", nil))
		r.Post("/wizard/finalize", s.handleWizardFinalize)
		r.Post("/datasets/import", s.handleImport)
		r.Get("/datasets/{id}/export", s.handleExport)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

		r.Route("/wizard", func(r chi.Router) {
			r.Get("/", s.handleWizard)
			r.Put("/steps/{step}", s.handleWizardStep)
			r.Post("/next", s.handleWizardNext)
			r.Post("/previous", s.handleWizardPrevious)
			r.Post("/goto/{step}", s.handleWizardGoTo)
			r.Post("/reset", s.handleWizardReset)
			r.Post("/complete", s.handleWizardComplete)
		})

		r.Get("/datasets", s.handleListDatasets)
		r.Route("/datasets/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDataset)
			r.Get("/records", s.handleListRecords)
			r.Post("/records", s.handleAddRecord)
			r.Get("/records/search", s.handleSearchRecords)
			r.Get("/sessions", s.handleListSessions)
			r.Post("/sessions", s.handleCreateSession)
		})

		r.Route("/records/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRecord)
			r.Patch("/", s.handleUpdateRecord)
			r.Delete("/", s.handleDeleteRecord)
		})

		r.Get("/sessions/{id}/attendance", s.handleAttendance)
		r.Get("/audit", s.handleAuditLog)
	})
}

// limit wraps the rate limit middleware, skipping it when l is nil or limits
// are turned off.
func (s *Server) limit(l ratelimit.Limiter, scope string, reject middleware.RejectFunc) func(http.Handler) http.Handler {
	if l == nil || !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	var onReject func(string)
	if s.opts.Metrics != nil {
		onReject = s.opts.Metrics.RateLimited
	}
	return middleware.RateLimit(l, scope, reject, onReject)
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ping(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.ImportLimiterStatus(),
	})
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			// The API serves no documents.
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
