package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveWithSecurityHeaders(isSecure bool, method string) *httptest.ResponseRecorder {
	h := NewSecurityHeadersMiddleware(isSecure).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, "/blog", nil))
	return rec
}

func TestSecurityHeadersMiddleware_Headers(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			rec := serveWithSecurityHeaders(false, method)

			assert.Equal(t, http.StatusTeapot, rec.Code, "next handler must run")
			assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
			assert.Equal(t, "1; mode=block", rec.Header().Get("X-XSS-Protection"))
			assert.Equal(t, "same-origin", rec.Header().Get("Cross-Origin-Opener-Policy"))

			pp := rec.Header().Get("Permissions-Policy")
			for _, feature := range []string{"geolocation=()", "microphone=()", "camera=()"} {
				assert.Contains(t, pp, feature)
			}
		})
	}
}

func TestSecurityHeadersMiddleware_HSTS(t *testing.T) {
	tests := []struct {
		name     string
		isSecure bool
		want     string
	}{
		{name: "secure", isSecure: true, want: "max-age=31536000; includeSubDomains"},
		{name: "development", isSecure: false, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithSecurityHeaders(tt.isSecure, http.MethodGet)
			assert.Equal(t, tt.want, rec.Header().Get("Strict-Transport-Security"))
		})
	}
}

func TestSecurityHeadersMiddleware_CSP(t *testing.T) {
	csp := serveWithSecurityHeaders(true, http.MethodGet).Header().Get("Content-Security-Policy")

	for _, directive := range []string{
		"default-src 'self'",
		"script-src 'self';",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data: https:",
		"connect-src 'self'",
		"frame-ancestors 'none'",
		"form-action 'self'",
	} {
		assert.Contains(t, csp, directive)
	}

	// Inline handlers are blocked; confirmations live in /static/js/app.js.
	assert.NotContains(t, csp, "'unsafe-eval'")
	assert.NotContains(t, csp, "script-src 'self' 'unsafe-inline'")
}
