package middleware

import (
	"net/http"
	"strings"

	"github.com/DukeRupert/inkwell/internal/session"
)

// =============================================================================
// Route Guard
// =============================================================================

// Guarded path roots and redirect targets.
const (
	AdminLoginPath     = "/admin/login"
	AdminDashboardPath = "/admin/dashboard"
	LoginPath          = "/auth/login"
	BlogPath           = "/blog"
	HomePath           = "/"

	adminRoot = "/admin"
	authRoot  = "/auth"
)

// Decision is the outcome of Evaluate. An empty Redirect means proceed.
type Decision struct {
	Redirect string
}

// Proceed reports whether the request may continue to its handler.
func (d Decision) Proceed() bool {
	return d.Redirect == ""
}

// Evaluate decides whether a request for path may proceed, given only the
// cookie state. It never consults the API.
//
//	/admin/login        token and admin -> /admin/dashboard, else proceed
//	/admin, /admin/...  no token -> /admin/login, not admin -> /, else proceed
//	/auth, /auth/...    token -> /blog, else proceed
//	anything else       proceed
func Evaluate(path string, hasToken, isAdmin bool) Decision {
	switch {
	case path == AdminLoginPath:
		if hasToken && isAdmin {
			return Decision{Redirect: AdminDashboardPath}
		}
		return Decision{}

	case under(path, adminRoot):
		if !hasToken {
			return Decision{Redirect: AdminLoginPath}
		}
		if !isAdmin {
			return Decision{Redirect: HomePath}
		}
		return Decision{}

	case under(path, authRoot):
		if hasToken {
			return Decision{Redirect: BlogPath}
		}
		return Decision{}
	}

	return Decision{}
}

// under reports whether path is root or a descendant of it. "/administrator"
// is not under "/admin".
func under(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// RouteGuard applies Evaluate before any page handler runs, using the Store
// placed in the context by WithStore.
//
// Logout is exempt: a signed-in user must be able to reach POST /auth/logout.
func RouteGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == LogoutPath {
			next.ServeHTTP(w, r)
			return
		}

		store := session.FromContext(r.Context())
		_, hasToken := store.Token()

		d := Evaluate(r.URL.Path, hasToken, store.IsAdmin())
		if !d.Proceed() {
			http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}
