package session

import (
	"net/http"
	"strings"
	"sync"
)

// Store holds the current session token and admin flag.
//
// Implementations never fail: a missing or inconsistent cookie reads as "no
// session". Clear is idempotent.
type Store interface {
	// Set writes the token, and the admin flag when admin is true. A Set with
	// admin false drops any admin flag left from an earlier write.
	Set(token string, admin bool)

	// Token returns the current token, if any.
	Token() (string, bool)

	// IsAdmin reports whether a valid admin flag accompanies a present token.
	IsAdmin() bool

	// Clear removes both the token and the admin flag.
	Clear()
}

// Options configure cookie attributes and flag signing.
type Options struct {
	Secure bool    // Set the Secure attribute (true outside development)
	Signer *Signer // Sign the admin flag; nil writes the literal "true"
}

// =============================================================================
// Cookie Store
// =============================================================================

// CookieStore is a Store backed by the request's cookies. Writes are sent as
// Set-Cookie headers on the response and are visible to later reads on the
// same store, so a handler observes its own login or teardown.
//
// A CookieStore is scoped to one request. It is safe for concurrent use by
// API calls fanned out from the same handler.
type CookieStore struct {
	w    http.ResponseWriter
	opts Options

	mu    sync.Mutex
	token string
	flag  string
}

// NewCookieStore reads the session cookies from r. Writes go to w.
func NewCookieStore(w http.ResponseWriter, r *http.Request, opts Options) *CookieStore {
	s := &CookieStore{w: w, opts: opts}
	if c, err := r.Cookie(TokenCookieName); err == nil {
		s.token = c.Value
	}
	if c, err := r.Cookie(AdminCookieName); err == nil {
		s.flag = c.Value
	}
	return s
}

func (s *CookieStore) Set(token string, admin bool) {
	if token == "" {
		s.Clear()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.writeCookie(TokenCookieName, token, CookieMaxAge)

	flag := ""
	if admin {
		flag = adminFlagFor(token, s.opts.Signer)
	}

	if flag != "" {
		s.flag = flag
		s.writeCookie(AdminCookieName, flag, CookieMaxAge)
	} else if s.flag != "" {
		s.flag = ""
		s.writeCookie(AdminCookieName, "", -1)
	}
}

func (s *CookieStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *CookieStore) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return adminFlagValid(s.flag, s.token, s.opts.Signer)
}

func (s *CookieStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.flag = ""
	s.writeCookie(TokenCookieName, "", -1)
	s.writeCookie(AdminCookieName, "", -1)
}

// writeCookie replaces any Set-Cookie already queued for name, so a login that
// writes the token twice still sends a single header per cookie.
func (s *CookieStore) writeCookie(name, value string, maxAge int) {
	if s.w == nil {
		return
	}

	header := s.w.Header()
	prefix := name + "="
	var kept []string
	for _, v := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	header.Del("Set-Cookie")
	for _, v := range kept {
		header.Add("Set-Cookie", v)
	}

	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     CookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// =============================================================================
// Memory Store
// =============================================================================

// MemoryStore is an in-process Store with the same semantics as CookieStore.
type MemoryStore struct {
	signer *Signer

	mu    sync.Mutex
	token string
	flag  string
}

// NewMemoryStore creates an empty MemoryStore. signer may be nil.
func NewMemoryStore(signer *Signer) *MemoryStore {
	return &MemoryStore{signer: signer}
}

func (s *MemoryStore) Set(token string, admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" {
		s.token, s.flag = "", ""
		return
	}
	s.token = token
	s.flag = ""
	if admin {
		s.flag = adminFlagFor(token, s.signer)
	}
}

func (s *MemoryStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *MemoryStore) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return adminFlagValid(s.flag, s.token, s.signer)
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.flag = "", ""
}

// AdminFlag exposes the raw flag value for assertions in tests.
func (s *MemoryStore) AdminFlag() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flag
}

// =============================================================================
// Flag helpers
// =============================================================================

func adminFlagFor(token string, signer *Signer) string {
	if signer == nil {
		return AdminFlagValue
	}
	flag, err := signer.Sign(token)
	if err != nil {
		// An unsigned flag would be rejected by Verify anyway.
		return ""
	}
	return flag
}

// adminFlagValid never reports true without a token.
func adminFlagValid(flag, token string, signer *Signer) bool {
	if token == "" || flag == "" {
		return false
	}
	if signer == nil {
		return flag == AdminFlagValue
	}
	return signer.Verify(flag, token)
}

var (
	_ Store = (*CookieStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
