// Package domain contains the core types exchanged with the blog API.
//
// This file defines the User type and the auth payloads used by the session
// lifecycle. Users are owned by the API server; the frontend only holds a copy
// in memory for the duration of a request.
package domain

import "time"

// Role is the server-assigned authorization category of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is the current-user record returned by GET /users/me.
type User struct {
	ID         int       `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsAdmin returns true if the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName returns the username, falling back to the email address.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// TokenGrant is the response of the credential exchange (POST /auth/login).
type TokenGrant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        Role   `json:"role"`
}

// RegisterParams is the body of POST /auth/register.
type RegisterParams struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// Author is the embedded author reference on posts and comments.
type Author struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}
