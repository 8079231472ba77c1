package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) *RateLimiter {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRateLimiter(ctx, "test", max, window, newTestLogger())
}

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_Allow(t *testing.T) {
	rl := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("192.168.1.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("192.168.1.1") {
		t.Error("4th request should be denied")
	}
	if !rl.Allow("192.168.1.2") {
		t.Error("a different IP has its own budget")
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl := newTestLimiter(t, 1, 20*time.Millisecond)

	if !rl.Allow("192.168.1.1") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("192.168.1.1") {
		t.Fatal("second request should be denied")
	}

	time.Sleep(30 * time.Millisecond)

	if !rl.Allow("192.168.1.1") {
		t.Error("should be allowed after the window expires")
	}
}

func TestRateLimiter_TimeUntilReset(t *testing.T) {
	rl := newTestLimiter(t, 1, time.Minute)

	if got := rl.TimeUntilReset("192.168.1.1"); got != 0 {
		t.Errorf("unknown key should reset immediately, got %v", got)
	}

	rl.Allow("192.168.1.1")
	if got := rl.TimeUntilReset("192.168.1.1"); got <= 0 || got > time.Minute {
		t.Errorf("expected remaining window in (0, 1m], got %v", got)
	}
}

// =============================================================================
// Limit Middleware Tests
// =============================================================================

func TestRateLimiter_Limit(t *testing.T) {
	tests := []struct {
		name        string
		accept      string
		wantType    string
		wantContain string
	}{
		{name: "html", accept: "text/html", wantType: "text/html; charset=utf-8", wantContain: "Too Many Requests"},
		{name: "json", accept: "application/json", wantType: "application/json", wantContain: "rate_limit_exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := newTestLimiter(t, 1, time.Minute)
			calls := 0
			wrapped := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusOK)
			}))

			var rec *httptest.ResponseRecorder
			for i := 0; i < 2; i++ {
				req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
				req.RemoteAddr = "192.168.1.1:12345"
				req.Header.Set("Accept", tt.accept)
				rec = httptest.NewRecorder()
				wrapped.ServeHTTP(rec, req)
			}

			if calls != 1 {
				t.Errorf("expected handler to run once, ran %d times", calls)
			}
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After header to be set")
			}
			if got := rec.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("expected Content-Type %q, got %q", tt.wantType, got)
			}
			if !strings.Contains(rec.Body.String(), tt.wantContain) {
				t.Errorf("expected body to contain %q, got %q", tt.wantContain, rec.Body.String())
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote addr", remoteAddr: "10.0.0.1:4000", want: "10.0.0.1"},
		{name: "remote addr without port", remoteAddr: "10.0.0.1", want: "10.0.0.1"},
		{name: "forwarded for first hop", remoteAddr: "10.0.0.1:4000", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, want: "203.0.113.7"},
		{name: "real ip", remoteAddr: "10.0.0.1:4000", headers: map[string]string{"X-Real-IP": " 203.0.113.8 "}, want: "203.0.113.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthRateLimiter_SeparateBudgets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := NewAuthRateLimiter(ctx, 2, time.Minute, newTestLogger())

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	login := a.LimitLogin(ok)
	register := a.LimitRegister(ok)

	send := func(h http.Handler, path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send(login, "/auth/login"); code != http.StatusOK {
			t.Fatalf("login %d: expected 200, got %d", i+1, code)
		}
	}
	if code := send(login, "/admin/login"); code != http.StatusTooManyRequests {
		t.Errorf("admin login shares the login budget: expected 429, got %d", code)
	}
	if code := send(register, "/auth/register"); code != http.StatusOK {
		t.Errorf("register has its own budget: expected 200, got %d", code)
	}
}
