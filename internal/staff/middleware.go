package staff

import (
	"context"
	"net/http"
	"strings"
)

type sessionKey struct{}

// SessionFrom returns the staff session carried on the context, if any.
func SessionFrom(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	return sess, ok
}

// Middleware parses an optional Bearer session token and attaches the
// staff session to the request context. Requests without a valid session
// pass through anonymously; per-route enforcement decides what anonymous
// callers may do (actor-token routes accept them).
func (s *Service) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				if sess, err := s.ParseSession(strings.TrimPrefix(auth, "Bearer ")); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession wraps a handler that only staff may call.
func RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFrom(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
