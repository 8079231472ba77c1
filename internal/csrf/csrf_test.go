package csrf

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		form   string
		want   bool
	}{
		{"match", "abc", "abc", true},
		{"mismatch", "abc", "abd", false},
		{"empty cookie", "", "abc", false},
		{"empty form", "abc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateToken(tt.cookie, tt.form); got != tt.want {
				t.Errorf("ValidateToken(%q, %q) = %v, want %v", tt.cookie, tt.form, got, tt.want)
			}
		})
	}
}

func TestEnsureToken_ReusesCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "existing"})
	rec := httptest.NewRecorder()

	token, err := EnsureToken(rec, req, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "existing" {
		t.Errorf("expected existing token, got %q", token)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("expected no new cookie when one is present")
	}
}

func TestEnsureToken_IssuesCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	token, err := EnsureToken(rec, req, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(token) != 44 {
		t.Errorf("expected 44-character token, got %d", len(token))
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Value != token || !c.Secure || c.SameSite != http.SameSiteStrictMode {
		t.Errorf("unexpected cookie: %+v", c)
	}
}

func TestProtect(t *testing.T) {
	var seen string
	h := Protect(false, newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Token(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		method     string
		cookie     string
		form       url.Values
		header     string
		wantStatus int
	}{
		{name: "GET passes and exposes token", method: http.MethodGet, cookie: "tok", wantStatus: http.StatusNoContent},
		{name: "POST with matching field", method: http.MethodPost, cookie: "tok", form: url.Values{FormFieldName: {"tok"}}, wantStatus: http.StatusNoContent},
		{name: "POST with matching header", method: http.MethodPost, cookie: "tok", header: "tok", wantStatus: http.StatusNoContent},
		{name: "POST without field", method: http.MethodPost, cookie: "tok", form: url.Values{}, wantStatus: http.StatusForbidden},
		{name: "POST with wrong field", method: http.MethodPost, cookie: "tok", form: url.Values{FormFieldName: {"other"}}, wantStatus: http.StatusForbidden},
		{name: "POST without cookie", method: http.MethodPost, form: url.Values{FormFieldName: {"tok"}}, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(tt.method, "/auth/login", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(HeaderName, tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusNoContent && seen != tt.cookie {
				t.Errorf("expected token %q in context, got %q", tt.cookie, seen)
			}
		})
	}
}
