// Package web provides the HTTP server for session imports.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/kartlog/internal/config"
	"github.com/JonMunkholm/kartlog/internal/core"
	mw "github.com/JonMunkholm/kartlog/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Importer runs one import. Satisfied by *core.Importer.
type Importer interface {
	Run(ctx context.Context, userID string, r io.Reader, progress core.ProgressFunc) (core.RunSummary, error)
}

// Pinger reports database health. Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Metrics is the server's view of the metrics manager.
type Metrics interface {
	mw.Observer
	ImportStarted() func()
	Handler() http.Handler
}

// Deps are the collaborators of a Server. DB and Metrics may be nil.
type Deps struct {
	Importer Importer
	DB       Pinger
	Metrics  Metrics
}

// Server is the HTTP server for session imports.
type Server struct {
	cfg      *config.Config
	importer Importer
	db       Pinger
	metrics  Metrics
	limiter  *ImportLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server with routes and middleware installed.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		importer: deps.Importer,
		db:       deps.DB,
		metrics:  deps.Metrics,
		limiter:  NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	var obs mw.Observer
	if s.metrics != nil {
		obs = s.metrics
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger(obs))
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security))
		r.Post("/imports/{userID}", s.handleImport)
	})
}

// Start listens on the configured address. It returns http.ErrServerClosed
// after Shutdown.
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

// Shutdown stops accepting requests and waits for running imports.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.server != nil {
		errs = append(errs, s.server.Shutdown(ctx))
	}
	if err := s.limiter.WaitForDrain(ctx); err != nil {
		errs = append(errs, errors.New("imports still running at shutdown"))
	}
	return errors.Join(errs...)
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
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

type healthResponse struct {
	Status   string        `json:"status"`
	Database string        `json:"database,omitempty"`
	Imports  LimiterStatus `json:"imports"`
	Time     time.Time     `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Imports: s.limiter.Status(), Time: time.Now().UTC()}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	writeJSON(w, status, resp)
}
