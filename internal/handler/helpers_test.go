package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/inkwell/internal/api"
	"github.com/DukeRupert/inkwell/internal/auth"
	"github.com/DukeRupert/inkwell/internal/domain"
	"github.com/DukeRupert/inkwell/internal/session"
)

// =============================================================================
// Fake renderer
// =============================================================================

type rendered struct {
	name   string
	status int
	data   any
}

// fakeRenderer records what a handler asked to render.
type fakeRenderer struct {
	calls []rendered
}

func (f *fakeRenderer) RenderHTTP(w http.ResponseWriter, name string, data any) {
	f.RenderStatus(w, http.StatusOK, name, data)
}

func (f *fakeRenderer) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	f.calls = append(f.calls, rendered{name: name, status: status, data: data})
	w.WriteHeader(status)
}

func (f *fakeRenderer) last(t *testing.T) rendered {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("expected a template to be rendered")
	}
	return f.calls[len(f.calls)-1]
}

// =============================================================================
// Fake blog API
// =============================================================================

// fakeAPI routes "METHOD /path" to per-test handlers and records every call.
type fakeAPI struct {
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []string
	bodies map[string][]byte
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		routes: make(map[string]http.HandlerFunc),
		bodies: make(map[string][]byte),
	}
}

func (f *fakeAPI) on(method, path string, h http.HandlerFunc) *fakeAPI {
	f.routes[method+" "+path] = h
	return f
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.bodies[key] = body
	h, ok := f.routes[key]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h(w, r)
}

func (f *fakeAPI) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

func (f *fakeAPI) body(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

func reply(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if v != nil {
			_ = json.NewEncoder(w).Encode(v)
		}
	}
}

func userWithRole(role domain.Role) domain.User {
	return domain.User{ID: 7, Email: "ann@example.com", Username: "ann", Role: role, IsActive: true}
}

// =============================================================================
// Session and routing
// =============================================================================

// testSession is one browser session against the fake API.
type testSession struct {
	ctrl  *auth.Controller
	store *session.MemoryStore
}

// newTestSession builds a Controller over f. A non-empty token is loaded
// with Init, so the fake must answer GET /users/me.
func newTestSession(t *testing.T, f *fakeAPI, token string) *testSession {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	gw := api.NewGateway(api.GatewayConfig{BaseURL: srv.URL, Timeout: 5 * time.Second, Logger: discardLogger()})
	store := session.NewMemoryStore(nil)
	ctrl := auth.NewController(api.NewClient(gw, store), discardLogger())

	if token != "" {
		store.Set(token, false)
	}
	ctrl.Init(context.Background())
	return &testSession{ctrl: ctrl, store: store}
}

// page injects the session's Controller, standing in for the session stack.
func (s *testSession) page(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(auth.WithController(r.Context(), s.ctrl)))
	})
}

func passthrough(next http.Handler) http.Handler { return next }

func form(method, target string, values url.Values) *http.Request {
	if values == nil {
		return httptest.NewRequest(method, target, nil)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}
