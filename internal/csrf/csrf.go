// Package csrf provides CSRF protection using the double-submit cookie pattern.
//
// The double-submit cookie pattern works by:
// 1. Setting a random token in a cookie (not HttpOnly, so JS can read it)
// 2. Including the same token in forms as a hidden field
// 3. On POST, comparing the cookie value with the form value
//
// This is secure because:
// - Attackers can make the browser send cookies with cross-origin requests
// - But attackers cannot read/set cookies for our domain (same-origin policy)
// - So they cannot include the correct token in the form body
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// CookieName is the name of the CSRF token cookie.
	CookieName = "csrf_token"

	// FormFieldName is the name of the CSRF token form field.
	FormFieldName = "csrf_token"

	// HeaderName carries the token for script-issued requests.
	HeaderName = "X-CSRF-Token"

	// TokenLength is the number of random bytes for the token (32 bytes = 256 bits).
	TokenLength = 32

	// CookieMaxAge is the lifetime of the CSRF cookie (1 hour).
	// This is shorter than session cookies since CSRF tokens should be refreshed.
	CookieMaxAge = 3600
)

// =============================================================================
// Token Generation
// =============================================================================

// GenerateToken generates a cryptographically secure random token.
//
// The token is 32 bytes of random data, base64 URL-encoded.
// This produces a 43-character string.
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// =============================================================================
// Token Validation
// =============================================================================

// ValidateToken compares the cookie token with the form token.
//
// Uses constant-time comparison to prevent timing attacks.
// Returns true if tokens match, false otherwise.
func ValidateToken(cookieToken, formToken string) bool {
	if cookieToken == "" || formToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(formToken)) == 1
}

// ValidateRequest validates the CSRF token from a request.
//
// It reads the token from:
// - Cookie: the csrf_token cookie
// - Form: the csrf_token form field (requires ParseForm to be called first)
//
// Returns true if the tokens match, false otherwise.
func ValidateRequest(r *http.Request) bool {
	// Get token from cookie
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}

	// Get token from form
	formToken := r.FormValue(FormFieldName)

	return ValidateToken(cookie.Value, formToken)
}

// =============================================================================
// Cookie Management
// =============================================================================

// SetCookie sets the CSRF token cookie on the response.
//
// Cookie settings:
// - HttpOnly: false - Readable by scripts that send it as X-CSRF-Token
// - Secure: configurable - true in production (HTTPS only)
// - SameSite: Strict - Maximum CSRF protection
// - Path: / - Available on all routes
// - MaxAge: 1 hour - Short lifetime for security
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: false, // Must be accessible for form submission
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// GetTokenFromRequest retrieves the CSRF token from the request cookie.
// Returns empty string if cookie doesn't exist.
func GetTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// =============================================================================
// Handler Helpers
// =============================================================================

// EnsureToken ensures a CSRF token exists for the request.
// If a valid token cookie exists, it returns that token.
// Otherwise, it generates a new token, sets the cookie, and returns it.
func EnsureToken(w http.ResponseWriter, r *http.Request, isSecure bool) (string, error) {
	if existing := GetTokenFromRequest(r); existing != "" {
		return existing, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	SetCookie(w, token, isSecure)
	return token, nil
}

// =============================================================================
// Middleware
// =============================================================================

type tokenContextKey struct{}

// Token returns the CSRF token placed in the context by Protect, or "" when
// the request did not pass through it.
func Token(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

// Protect issues a token cookie on every request and rejects unsafe methods
// whose form field (or X-CSRF-Token header) does not match it.
//
// Multipart bodies are parsed by the FormValue lookup, so handlers reading
// r.MultipartForm afterwards see the already parsed form.
func Protect(isSecure bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := EnsureToken(w, r, isSecure)
			if err != nil {
				logger.Error("failed to generate csrf token", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			if !safeMethod(r.Method) {
				submitted := r.Header.Get(HeaderName)
				if submitted == "" {
					submitted = r.FormValue(FormFieldName)
				}
				if !ValidateToken(GetTokenFromRequest(r), submitted) {
					logger.Warn("csrf token mismatch",
						"path", r.URL.Path,
						"method", r.Method,
					)
					http.Error(w, "Invalid security token. Please reload the page and try again.", http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), tokenContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
