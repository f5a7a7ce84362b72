package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor"
	"github.com/netoho/hestia-app-staging-sub001/internal/address"
	"github.com/netoho/hestia-app-staging-sub001/internal/document"
	"github.com/netoho/hestia-app-staging-sub001/internal/policy"
	"github.com/netoho/hestia-app-staging-sub001/internal/staff"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
// It is intentionally simple and conservative so it works with most setups.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			// Referrer policy
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")

			// Permissions policy - tighten common features
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}

			// HSTS only makes sense over TLS.
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Handlers bundles the per-domain handlers the router mounts.
type Handlers struct {
	Staff     *staff.Handler
	Sessions  *staff.Service
	Actors    *actor.Handler
	Policies  *policy.Handler
	Documents *document.Handler
	Address   *address.Handler
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
// Actor-facing routes accept either an access token or a staff session;
// back-office routes require a staff session.
func RegisterRoutes(logger *zap.SugaredLogger, h Handlers) http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /hestia-api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// staff auth
	mux.HandleFunc("POST /hestia-api/auth/login", h.Staff.Login)

	// actor information flow (token or session)
	mux.HandleFunc("GET /hestia-api/actors", h.Actors.GetByToken)
	mux.HandleFunc("POST /hestia-api/actors/update", h.Actors.Update)
	mux.HandleFunc("POST /hestia-api/actors/submit", h.Actors.Submit)

	// actor documents (token or session)
	mux.HandleFunc("GET /hestia-api/actors/documents", h.Documents.List)
	mux.HandleFunc("POST /hestia-api/actors/documents/upload-url", h.Documents.GenerateUploadURL)
	mux.HandleFunc("POST /hestia-api/actors/documents/confirm", h.Documents.ConfirmUpload)
	mux.HandleFunc("POST /hestia-api/actors/documents/download-url", h.Documents.GetDownloadURL)
	mux.HandleFunc("POST /hestia-api/actors/documents/delete", h.Documents.Delete)

	// address lookups (token holders use these from the forms)
	mux.HandleFunc("GET /hestia-api/address/autocomplete", h.Address.Autocomplete)
	mux.HandleFunc("GET /hestia-api/address/details", h.Address.Details)

	// back office
	mux.HandleFunc("POST /hestia-api/actors/force-complete", staff.RequireSession(h.Actors.ForceComplete))
	mux.HandleFunc("POST /hestia-api/actors/regenerate-token", staff.RequireSession(h.Actors.RegenerateToken))
	mux.HandleFunc("POST /hestia-api/policies", staff.RequireSession(h.Policies.Create))
	mux.HandleFunc("GET /hestia-api/policies/{id}", staff.RequireSession(h.Policies.Get))
	mux.HandleFunc("POST /hestia-api/policies/status", staff.RequireSession(h.Policies.UpdateStatus))
	mux.HandleFunc("POST /hestia-api/policies/cancel", staff.RequireSession(h.Policies.Cancel))
	mux.HandleFunc("POST /hestia-api/policies/replace-tenant", staff.RequireSession(h.Policies.ReplaceTenant))
	mux.HandleFunc("POST /hestia-api/policies/remind-incomplete", staff.RequireSession(h.Policies.RemindIncomplete))

	// session parsing first so downstream handlers see the principal,
	// then security headers, logging outermost
	handler := h.Sessions.Middleware()(mux)
	handler = SecurityHeadersMiddleware()(handler)
	handler = LoggingMiddleware(logger)(handler)
	return handler
}
