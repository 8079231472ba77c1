package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/inkwell/internal/domain"
	"github.com/DukeRupert/inkwell/internal/session"
)

// =============================================================================
// Helpers
// =============================================================================

// countingStore records how many times Clear is called.
type countingStore struct {
	*session.MemoryStore
	clears atomic.Int32
}

func (s *countingStore) Clear() {
	s.clears.Add(1)
	s.MemoryStore.Clear()
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *countingStore) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	gw := NewGateway(GatewayConfig{
		BaseURL: srv.URL + "/api/v1",
		Timeout: 5 * time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	store := &countingStore{MemoryStore: session.NewMemoryStore(nil)}
	return NewClient(gw, store), store
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// Request shaping
// =============================================================================

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotContentType, gotPath string
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, domain.User{ID: 1, Username: "ann"})
	})
	store.Set("abc", false)

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "/api/v1/users/me", gotPath)
	assert.Equal(t, "ann", user.Username)
}

func TestClient_NoTokenNoAuthorizationHeader(t *testing.T) {
	var gotAuth string
	var called bool
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, domain.PostList{})
	})

	_, err := client.ListPosts(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, gotAuth)
}

func TestClient_LoginIsFormEncodedAndPublic(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "ann@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "hunter22", r.PostForm.Get("password"))
		writeJSON(w, http.StatusOK, domain.TokenGrant{AccessToken: "abc", TokenType: "bearer"})
	})
	// A stale token must not leak into the credential exchange.
	store.Set("stale", false)

	grant, err := client.Login(context.Background(), "ann@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "abc", grant.AccessToken)
}

func TestClient_MultipartKeepsBoundary(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		assert.True(t, strings.HasPrefix(ct, "multipart/form-data; boundary="), ct)

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "A title", r.FormValue("title"))
		assert.Equal(t, `["go","web"]`, r.FormValue("tags"))
		writeJSON(w, http.StatusCreated, domain.Post{ID: 7, Slug: "a-title"})
	})
	store.Set("abc", false)

	post, err := client.CreatePost(context.Background(), domain.PostParams{
		Title:   "A title",
		Summary: "A summary that is long enough",
		Content: strings.Repeat("x", 60),
		Tags:    []string{"go", "web"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a-title", post.Slug)
}

func TestClient_ForwardsRequestID(t *testing.T) {
	var got string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, domain.Post{})
	})

	ctx := WithRequestID(context.Background(), "req-123")
	_, err := client.GetPost(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "req-123", got)
}

func TestClient_ListPostsPaging(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("skip"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, domain.PostList{Items: []domain.Post{{ID: 1}}, Total: 21})
	})

	list, err := client.ListPosts(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 21, list.Total)
	assert.Len(t, list.Items, 1)
}

// =============================================================================
// Failure policy
// =============================================================================

func TestClient_UnauthorizedTearsDownSession(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
	})
	store.Set("abc", true)

	_, err := client.MyPosts(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
	assert.True(t, client.TornDown())

	_, ok := store.Token()
	assert.False(t, ok)
	assert.False(t, store.IsAdmin())
}

func TestClient_PublicUnauthorizedLeavesSession(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
	})
	store.Set("abc", true)

	_, err := client.Login(context.Background(), "ann@example.com", "wrong")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Equal(t, "Incorrect email or password", DetailOf(err))
	assert.False(t, client.TornDown())
	assert.Zero(t, store.clears.Load())

	token, ok := store.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
}

func TestClient_ConcurrentUnauthorizedTearsDownOnce(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	store.Set("abc", true)

	const n = 8
	var (
		wg      sync.WaitGroup
		expired atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/users/me"})
			if res.Kind == KindUnauthorized {
				expired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n), expired.Load())
	assert.Equal(t, int32(1), store.clears.Load())
	assert.True(t, client.TornDown())

	// Later callers never perform a second teardown.
	assert.False(t, client.teardown())
	assert.Equal(t, int32(1), store.clears.Load())
}

func TestClient_ErrorStatusPropagatesDetail(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Post not found"})
	})
	store.Set("abc", false)

	_, err := client.GetPost(context.Background(), "missing")

	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, "Post not found", domain.ErrorMessage(err))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.False(t, client.TornDown())

	_, ok := store.Token()
	assert.True(t, ok)
}

func TestClient_ValidationDetailList(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"msg":"field required"},{"msg":"value is not a valid email"}]}`))
	})

	_, err := client.Register(context.Background(), domain.RegisterParams{})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, "field required; value is not a valid email", DetailOf(err))
}

func TestClient_ValidationDetailFields(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[
			{"loc":["body","title"],"msg":"ensure this value has at least 5 characters"},
			{"loc":["body","title"],"msg":"second message is dropped"},
			{"loc":["body","tags",0],"msg":"indexed loc is skipped"},
			{"loc":["body","summary"],"msg":"field required"}
		]}`))
	})
	store.Set("abc", false)

	_, err := client.CreatePost(context.Background(), domain.PostParams{Title: "x"})

	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, map[string]string{
		"title":   "ensure this value has at least 5 characters",
		"summary": "field required",
	}, domain.FieldErrors(err))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(err))
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	gw := NewGateway(GatewayConfig{BaseURL: srv.URL, Timeout: time.Second})
	store := session.NewMemoryStore(nil)
	store.Set("abc", false)
	client := NewClient(gw, store)

	_, err := client.CurrentUser(context.Background())

	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Zero(t, StatusOf(err))
	assert.False(t, client.TornDown())

	_, ok := store.Token()
	assert.True(t, ok)
}

func TestClient_MalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := client.GetPost(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestClient_ListingsDegradeToEmpty(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	store.Set("abc", false)

	list, err := client.ListPosts(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, list.Items)
	assert.Empty(t, list.Items)

	mine, err := client.MyPosts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, mine)
	assert.Empty(t, mine)
}

func TestClient_RejectsUnknownModerationStatus(t *testing.T) {
	var called bool
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := client.UpdatePostStatus(context.Background(), 1, domain.PostStatus("deleted"))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	err = client.UpdateCommentStatus(context.Background(), 1, domain.CommentStatus("gone"))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	assert.False(t, called)
}

func TestClient_AdminStatusBodies(t *testing.T) {
	var got []map[string]any
	var mu sync.Mutex
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body["path"] = r.URL.Path
		mu.Lock()
		got = append(got, body)
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	store.Set("abc", true)

	ctx := context.Background()
	require.NoError(t, client.UpdateUserStatus(ctx, 3, false))
	require.NoError(t, client.UpdateUserRole(ctx, 3, true))
	require.NoError(t, client.UpdatePostStatus(ctx, 4, domain.PostStatusArchived))
	require.NoError(t, client.UpdateCommentStatus(ctx, 5, domain.CommentStatusHidden))

	require.Len(t, got, 4)
	assert.Equal(t, map[string]any{"is_active": false, "path": "/api/v1/admin/users/3/status"}, got[0])
	assert.Equal(t, map[string]any{"is_admin": true, "path": "/api/v1/admin/users/3/role"}, got[1])
	assert.Equal(t, map[string]any{"status": "archived", "path": "/api/v1/admin/posts/4/status"}, got[2])
	assert.Equal(t, map[string]any{"status": "hidden", "path": "/api/v1/admin/comments/5/status"}, got[3])
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "string", body: `{"detail":"Email already registered"}`, want: "Email already registered"},
		{name: "list", body: `{"detail":[{"msg":"a"},{"msg":"b"}]}`, want: "a; b"},
		{name: "missing", body: `{"message":"x"}`, want: ""},
		{name: "not json", body: `oops`, want: ""},
		{name: "empty", body: ``, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDetail([]byte(tt.body)))
		})
	}
}
