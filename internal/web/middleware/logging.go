// Package middleware provides HTTP middleware for the import server.
package middleware

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/kartlog/internal/logging"
	"github.com/go-chi/chi/v5"
)

// Observer receives one measurement per served request.
type Observer interface {
	ObserveHTTP(route, method string, status int, d time.Duration)
}

// Logger logs every request with its status and duration, and reports it to
// obs when obs is non-nil. Entries carry the chi request id.
//
// Log fields: method, route, path, status, duration_ms, ip, user_agent.
func Logger(obs Observer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			route := routePattern(r)

			logging.FromContext(r.Context()).Info("request",
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", ww.status,
				"duration_ms", duration.Milliseconds(),
				"ip", r.RemoteAddr, // rewritten by chi's RealIP
				"user_agent", r.UserAgent(),
			)

			if obs != nil {
				obs.ObserveHTTP(route, r.Method, ww.status, duration)
			}
		})
	}
}

// routePattern returns the matched chi pattern so metric labels stay bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying ResponseWriter to http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
