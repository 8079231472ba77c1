// Package auth provides the per-request session controller and its context
// helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/inkwell/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// controllerContextKey is the key used to store the request's Controller.
	controllerContextKey contextKey = "controller"
)

// WithController stores c in the context.
//
// This is called by the session middleware after running Init.
func WithController(ctx context.Context, c *Controller) context.Context {
	return context.WithValue(ctx, controllerContextKey, c)
}

// FromContext returns the request's Controller, or nil outside the session
// middleware.
//
// Usage:
//
//	ctrl := auth.FromContext(r.Context())
//	posts, err := ctrl.API().MyPosts(r.Context())
func FromContext(ctx context.Context) *Controller {
	c, ok := ctx.Value(controllerContextKey).(*Controller)
	if !ok {
		return nil
	}
	return c
}

// GetUser retrieves the current user from the context.
//
// Returns nil if no user is loaded.
func GetUser(ctx context.Context) *domain.User {
	c := FromContext(ctx)
	if c == nil {
		return nil
	}
	return c.User()
}

// GetUserFromRequest is a convenience wrapper around GetUser that takes the
// request directly.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}
