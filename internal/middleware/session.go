// Package middleware contains HTTP middleware for the information sheet server.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler
// and are composed with Stack.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/soilsheet/internal/session"
)

// =============================================================================
// Context Keys
// =============================================================================

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const sessionContextKey contextKey = "form_session"

// =============================================================================
// Context Helpers
// =============================================================================

// GetSession retrieves the form session from the request context.
//
// Returns nil if the request did not pass through WithSession.
func GetSession(ctx context.Context) *session.Session {
	s, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok {
		return nil
	}
	return s
}

// WithSessionContext stores a form session in ctx. Handlers under test use
// it to skip the cookie round trip.
func WithSessionContext(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// =============================================================================
// Form Session Middleware
// =============================================================================

// FormSessionMiddleware attaches the browser's form session to each request.
type FormSessionMiddleware struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewFormSessionMiddleware creates a new FormSessionMiddleware.
func NewFormSessionMiddleware(sessions *session.Manager, logger *slog.Logger) *FormSessionMiddleware {
	return &FormSessionMiddleware{
		sessions: sessions,
		logger:   logger,
	}
}

// WithSession loads the form session named by the cookie, creating a fresh
// one when the cookie is missing or the session expired.
//
// Only the page itself may start a session. A fragment request whose session
// has gone would otherwise edit an empty form the user cannot see, so htmx
// requests get HX-Refresh instead and API requests get 409.
func (m *FormSessionMiddleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := m.sessions.Lookup(r)
		if !ok {
			if r.Method != http.MethodGet || r.Header.Get("HX-Request") == "true" {
				m.logger.Info("request for expired form session",
					"method", r.Method,
					"path", r.URL.Path,
				)
				m.expired(w, r)
				return
			}
			s = m.sessions.Ensure(w, r)
		}

		next.ServeHTTP(w, r.WithContext(WithSessionContext(r.Context(), s)))
	})
}

func (m *FormSessionMiddleware) expired(w http.ResponseWriter, r *http.Request) {
	const message = "Your form session has expired. The page will reload."

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if isAPIRequest(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
		return
	}
	http.Error(w, message, http.StatusConflict)
}

// =============================================================================
// Helper Functions
// =============================================================================

// isAPIRequest determines if a request expects a JSON response.
//
// A request is considered an API request if:
// 1. HX-Request header is NOT present (htmx wants HTML)
// 2. Accept or Content-Type mentions application/json, or
// 3. URL path starts with /api/
func isAPIRequest(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw.Handler, sessionMw.WithSession)
//	mux.Handle("GET /", stack(formHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var _ func(http.Handler) http.Handler = (&FormSessionMiddleware{}).WithSession
