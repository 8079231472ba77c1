package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// responseCookies parses the Set-Cookie headers written to rec.
func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func requestWith(cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// =============================================================================
// CookieStore
// =============================================================================

func TestCookieStore_Empty(t *testing.T) {
	s := NewCookieStore(httptest.NewRecorder(), requestWith(), Options{})

	_, ok := s.Token()
	assert.False(t, ok)
	assert.False(t, s.IsAdmin())
}

func TestCookieStore_SetWritesCookieAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewCookieStore(rec, requestWith(), Options{Secure: true})

	s.Set("abc", true)

	cookies := responseCookies(rec)
	require.Contains(t, cookies, TokenCookieName)
	require.Contains(t, cookies, AdminCookieName)

	tok := cookies[TokenCookieName]
	assert.Equal(t, "abc", tok.Value)
	assert.Equal(t, "/", tok.Path)
	assert.Equal(t, CookieMaxAge, tok.MaxAge)
	assert.Equal(t, http.SameSiteStrictMode, tok.SameSite)
	assert.True(t, tok.HttpOnly)
	assert.True(t, tok.Secure)

	flag := cookies[AdminCookieName]
	assert.Equal(t, "true", flag.Value)
	assert.Equal(t, CookieMaxAge, flag.MaxAge)
	assert.Equal(t, http.SameSiteStrictMode, flag.SameSite)

	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.True(t, s.IsAdmin())
}

func TestCookieStore_SetNonAdminOmitsFlag(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewCookieStore(rec, requestWith(), Options{})

	s.Set("abc", false)

	cookies := responseCookies(rec)
	assert.Contains(t, cookies, TokenCookieName)
	assert.NotContains(t, cookies, AdminCookieName)
	assert.False(t, s.IsAdmin())
}

func TestCookieStore_RepeatedSetSendsOneHeaderPerCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewCookieStore(rec, requestWith(), Options{})

	s.Set("abc", false)
	s.Set("abc", true)

	var tokenHeaders int
	for _, v := range rec.Header().Values("Set-Cookie") {
		if strings.HasPrefix(v, TokenCookieName+"=") {
			tokenHeaders++
		}
	}
	assert.Equal(t, 1, tokenHeaders)
	assert.True(t, s.IsAdmin())
}

func TestCookieStore_ReadsRequestCookies(t *testing.T) {
	req := requestWith(
		&http.Cookie{Name: TokenCookieName, Value: "abc"},
		&http.Cookie{Name: AdminCookieName, Value: "true"},
	)
	s := NewCookieStore(httptest.NewRecorder(), req, Options{})

	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.True(t, s.IsAdmin())
}

func TestCookieStore_AdminFlagWithoutTokenIsNotAdmin(t *testing.T) {
	req := requestWith(&http.Cookie{Name: AdminCookieName, Value: "true"})
	s := NewCookieStore(httptest.NewRecorder(), req, Options{})

	assert.False(t, s.IsAdmin())
}

func TestCookieStore_AdminFlagMustBeLiteralTrue(t *testing.T) {
	for _, v := range []string{"TRUE", "1", "yes", "false"} {
		req := requestWith(
			&http.Cookie{Name: TokenCookieName, Value: "abc"},
			&http.Cookie{Name: AdminCookieName, Value: v},
		)
		s := NewCookieStore(httptest.NewRecorder(), req, Options{})
		assert.False(t, s.IsAdmin(), "flag %q", v)
	}
}

func TestCookieStore_ClearExpiresBoth(t *testing.T) {
	req := requestWith(
		&http.Cookie{Name: TokenCookieName, Value: "abc"},
		&http.Cookie{Name: AdminCookieName, Value: "true"},
	)
	rec := httptest.NewRecorder()
	s := NewCookieStore(rec, req, Options{})

	s.Clear()

	cookies := responseCookies(rec)
	require.Contains(t, cookies, TokenCookieName)
	require.Contains(t, cookies, AdminCookieName)
	assert.Equal(t, -1, cookies[TokenCookieName].MaxAge)
	assert.Equal(t, -1, cookies[AdminCookieName].MaxAge)

	_, ok := s.Token()
	assert.False(t, ok)
	assert.False(t, s.IsAdmin())
}

func TestCookieStore_ClearIsIdempotent(t *testing.T) {
	s := NewCookieStore(httptest.NewRecorder(), requestWith(), Options{})

	assert.NotPanics(t, func() {
		s.Clear()
		s.Clear()
	})
	_, ok := s.Token()
	assert.False(t, ok)
}

func TestCookieStore_SetNonAdminDropsStaleFlag(t *testing.T) {
	req := requestWith(
		&http.Cookie{Name: TokenCookieName, Value: "old"},
		&http.Cookie{Name: AdminCookieName, Value: "true"},
	)
	rec := httptest.NewRecorder()
	s := NewCookieStore(rec, req, Options{})

	s.Set("new", false)

	assert.False(t, s.IsAdmin())
	assert.Equal(t, -1, responseCookies(rec)[AdminCookieName].MaxAge)
}

func TestCookieStore_ConcurrentClear(t *testing.T) {
	s := NewCookieStore(httptest.NewRecorder(), requestWith(
		&http.Cookie{Name: TokenCookieName, Value: "abc"},
	), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Clear()
		}()
	}
	wg.Wait()

	_, ok := s.Token()
	assert.False(t, ok)
}

// =============================================================================
// Signed flag
// =============================================================================

func TestCookieStore_SignedFlag(t *testing.T) {
	signer, err := NewSigner("a-signing-secret-that-is-long-enough")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s := NewCookieStore(rec, requestWith(), Options{Signer: signer})
	s.Set("abc", true)

	flag := responseCookies(rec)[AdminCookieName].Value
	assert.NotEqual(t, "true", flag)
	assert.True(t, s.IsAdmin())

	// The flag round-trips through a fresh request.
	next := NewCookieStore(httptest.NewRecorder(), requestWith(
		&http.Cookie{Name: TokenCookieName, Value: "abc"},
		&http.Cookie{Name: AdminCookieName, Value: flag},
	), Options{Signer: signer})
	assert.True(t, next.IsAdmin())
}

func TestCookieStore_SignedFlagRejectsForgeryAndRebinding(t *testing.T) {
	signer, err := NewSigner("a-signing-secret-that-is-long-enough")
	require.NoError(t, err)

	flag, err := signer.Sign("abc")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		flag  string
	}{
		{name: "literal true", token: "abc", flag: "true"},
		{name: "flag for other token", token: "xyz", flag: flag},
		{name: "garbage", token: "abc", flag: "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCookieStore(httptest.NewRecorder(), requestWith(
				&http.Cookie{Name: TokenCookieName, Value: tt.token},
				&http.Cookie{Name: AdminCookieName, Value: tt.flag},
			), Options{Signer: signer})
			assert.False(t, s.IsAdmin())
		})
	}
}

func TestSigner_RejectsOtherKeyAndExpired(t *testing.T) {
	a, err := NewSigner("secret-a-secret-a-secret-a-secret-a")
	require.NoError(t, err)
	b, err := NewSigner("secret-b-secret-b-secret-b-secret-b")
	require.NoError(t, err)

	flag, err := a.Sign("abc")
	require.NoError(t, err)

	assert.True(t, a.Verify(flag, "abc"))
	assert.False(t, b.Verify(flag, "abc"))

	a.now = func() time.Time { return time.Now().Add(Lifetime + time.Hour) }
	assert.False(t, a.Verify(flag, "abc"))
}

func TestNewSigner_EmptySecret(t *testing.T) {
	_, err := NewSigner("")
	assert.Error(t, err)
}

// =============================================================================
// MemoryStore
// =============================================================================

func TestMemoryStore_Lifecycle(t *testing.T) {
	s := NewMemoryStore(nil)

	s.Set("abc", true)
	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.True(t, s.IsAdmin())
	assert.Equal(t, "true", s.AdminFlag())

	s.Set("abc", false)
	assert.False(t, s.IsAdmin())

	s.Clear()
	s.Clear()
	_, ok = s.Token()
	assert.False(t, ok)
	assert.False(t, s.IsAdmin())
	assert.Empty(t, s.AdminFlag())
}
