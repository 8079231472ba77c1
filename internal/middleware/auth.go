// Package middleware contains HTTP middleware for the inkwell frontend.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/inkwell/internal/api"
	"github.com/DukeRupert/inkwell/internal/auth"
	"github.com/DukeRupert/inkwell/internal/domain"
	"github.com/DukeRupert/inkwell/internal/handler"
	"github.com/DukeRupert/inkwell/internal/session"
)

// LogoutPath is exempt from the route guard so signed-in users can reach it.
const LogoutPath = "/auth/logout"

// =============================================================================
// Session Middleware Configuration
// =============================================================================

// SessionMiddleware builds the per-request session objects.
//
// Create one instance and use its methods as middleware. The gateway is shared;
// every request gets its own Store, API client and Controller.
type SessionMiddleware struct {
	gateway *api.Gateway
	opts    session.Options
	logger  *slog.Logger
}

// NewSessionMiddleware creates a new SessionMiddleware instance.
//
// Parameters:
// - gateway: Shared transport to the blog API
// - opts: Cookie attributes and optional admin-flag signer
// - logger: Structured logger for session events
func NewSessionMiddleware(gateway *api.Gateway, opts session.Options, logger *slog.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		gateway: gateway,
		opts:    opts,
		logger:  logger,
	}
}

// =============================================================================
// WithStore Middleware
// =============================================================================

// WithStore places a CookieStore for the request in its context. It makes no
// network calls, so it can run ahead of RouteGuard.
//
// Flow:
//
//	Request -> WithStore -> RouteGuard -> LoadSession -> Handler
//	           |
//	           +-> Read token and isAdmin cookies
//	           +-> Store in context (writes go to Set-Cookie)
func (m *SessionMiddleware) WithStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := session.NewCookieStore(w, r, m.opts)
		next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), store)))
	})
}

// =============================================================================
// LoadSession Middleware
// =============================================================================

// LoadSession creates the request's Controller, runs Init and stores the
// Controller in the context. It always continues to the next handler; an
// invalid token simply leaves the request anonymous with its cookies cleared.
//
// IMPORTANT: This middleware must be used AFTER WithStore in the middleware
// chain.
//
// The Controller can be retrieved in handlers using:
//
//	ctrl := auth.FromContext(r.Context())
func (m *SessionMiddleware) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := session.FromContext(r.Context())
		client := api.NewClient(m.gateway, store)
		ctrl := auth.NewController(client, m.logger)

		ctrl.Init(r.Context())

		next.ServeHTTP(w, r.WithContext(auth.WithController(r.Context(), ctrl)))
	})
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser is middleware that requires an authenticated user.
//
// IMPORTANT: This middleware must be used AFTER LoadSession.
//
// Usage:
//
//	mux.Handle("GET /blog/create", Stack(sessionMw.RequireUser)(createHandler))
func (m *SessionMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctrl := auth.FromContext(r.Context())
		if ctrl == nil || !ctrl.IsAuthenticated() {
			if isAPIRequest(r) {
				handler.UnauthorizedResponse(w, r, m.logger)
				return
			}
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// RequireAdmin Middleware
// =============================================================================

// RequireAdmin checks the loaded user's role. RouteGuard has already checked
// the admin cookie; this catches a flag that outlived a role change.
//
// IMPORTANT: Use this AFTER LoadSession in the middleware chain.
func (m *SessionMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctrl := auth.FromContext(r.Context())
		if ctrl == nil || !ctrl.IsAuthenticated() {
			if isAPIRequest(r) {
				handler.UnauthorizedResponse(w, r, m.logger)
				return
			}
			http.Redirect(w, r, AdminLoginPath, http.StatusSeeOther)
			return
		}

		if !ctrl.IsAdmin() {
			m.logger.Warn("admin flag without admin role",
				"user_id", ctrl.User().ID,
				"path", r.URL.Path,
			)
			if isAPIRequest(r) {
				handler.ErrorResponse(w, r, m.logger, domain.Forbidden("", "Admin access required"))
				return
			}
			http.Redirect(w, r, HomePath, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Request Helpers
// =============================================================================

// isAPIRequest determines if the request expects a JSON response.
//
// This is used to decide whether to redirect (HTML) or return JSON errors.
func isAPIRequest(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
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
//	page := Stack(sessionMw.WithStore, RouteGuard, sessionMw.LoadSession)
//	mux.Handle("GET /blog", page(blogHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// =============================================================================
// Compile-time checks
// =============================================================================

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).WithStore
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).LoadSession
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).RequireUser
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).RequireAdmin
	_ func(http.Handler) http.Handler = RouteGuard
)
