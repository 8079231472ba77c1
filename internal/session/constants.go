// Package session owns the browser-side session state: the bearer token issued
// by the blog API and the admin flag derived from the user's role. Both live in
// cookies so the route guard can decide access without calling the API.
package session

import "time"

const (
	// TokenCookieName is the name of the cookie that stores the bearer token.
	TokenCookieName = "token"

	// AdminCookieName is the name of the cookie that stores the admin flag.
	AdminCookieName = "isAdmin"

	// AdminFlagValue is the unsigned admin flag value.
	AdminFlagValue = "true"

	// CookiePath ensures the cookies are sent with all requests.
	CookiePath = "/"

	// CookieMaxAge sets the cookie expiration (7 days = 604800 seconds).
	CookieMaxAge = 7 * 24 * 60 * 60

	// Lifetime is CookieMaxAge as a duration, used for signed flag expiry.
	Lifetime = CookieMaxAge * time.Second
)
