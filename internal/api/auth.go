package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/DukeRupert/inkwell/internal/domain"
)

// Login exchanges credentials for a token grant. The API takes the email as
// the OAuth2 "username" field of a form-encoded body.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.TokenGrant, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var grant domain.TokenGrant
	err := c.call(ctx, "api.Login", Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Form:   form,
		Public: true,
	}, &grant)
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// Register creates an account. It never touches the session.
func (c *Client) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	var user domain.User
	err := c.call(ctx, "api.Register", Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		JSON:   params,
		Public: true,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUser fetches the user the session token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.call(ctx, "api.CurrentUser", Request{Method: http.MethodGet, Path: "/users/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
