package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/DukeRupert/inkwell/internal/api"
	"github.com/DukeRupert/inkwell/internal/domain"
	"github.com/DukeRupert/inkwell/internal/metrics"
	"github.com/DukeRupert/inkwell/internal/session"
)

// =============================================================================
// Errors
// =============================================================================

// Sentinel kinds wrapped by the *domain.Error values the Controller returns.
// Match them with errors.Is.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBadRequest         = errors.New("bad request")
	ErrLoginFailed        = errors.New("login failed")
	ErrFetchUser          = errors.New("failed to fetch user")
	ErrRegistrationFailed = errors.New("registration failed")
)

// =============================================================================
// State
// =============================================================================

// State is the lifecycle position of a session.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// =============================================================================
// Controller
// =============================================================================

// Controller owns the session lifecycle for one browser request: it loads the
// current user, logs in and out, and registers accounts. It composes the
// session Store with the API client bound to that store.
//
// A Controller is created per request by the session middleware and reached
// from handlers through FromContext.
type Controller struct {
	client *api.Client
	store  session.Store
	logger *slog.Logger

	mu    sync.RWMutex
	state State
	user  *domain.User
}

// NewController creates an uninitialized Controller over client's store.
func NewController(client *api.Client, logger *slog.Logger) *Controller {
	return &Controller{
		client: client,
		store:  client.Store(),
		logger: logger,
		state:  StateUninitialized,
	}
}

// Init loads the current user when a token is present. A failed fetch leaves
// the session anonymous with both cookies cleared. Init never returns an
// error; the outcome is visible through State.
func (c *Controller) Init(ctx context.Context) {
	c.setState(StateLoading, nil)

	token, ok := c.store.Token()
	if !ok {
		c.setState(StateAnonymous, nil)
		return
	}

	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		c.logger.Info("session token rejected, clearing session", "error", err)
		c.store.Clear()
		c.setState(StateAnonymous, nil)
		return
	}

	// Refresh the flag from the role so a demoted user loses it.
	c.store.Set(token, user.IsAdmin())
	c.setState(StateAuthenticated, user)
}

// Login exchanges credentials for a token, then fetches the user with it.
// The role is returned only after both steps succeed. A failed user fetch
// rolls the token back.
func (c *Controller) Login(ctx context.Context, email, password string) (domain.Role, error) {
	const op = "auth.Login"

	grant, err := c.client.Login(ctx, email, password)
	if err != nil {
		return "", c.loginError(op, err)
	}
	if grant.AccessToken == "" {
		metrics.LoginFailed("failed")
		return "", &domain.Error{
			Code:    domain.EUNAVAILABLE,
			Op:      op,
			Message: "Login failed. Please try again.",
			Err:     ErrLoginFailed,
		}
	}

	c.store.Set(grant.AccessToken, false)

	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		c.store.Clear()
		c.setState(StateAnonymous, nil)
		metrics.LoginFailed("fetch_user")
		return "", &domain.Error{
			Code:    domain.ErrorCode(err),
			Op:      op,
			Message: "Signed in, but your account could not be loaded. Please try again.",
			Err:     fmt.Errorf("%w: %w", ErrFetchUser, err),
		}
	}

	c.store.Set(grant.AccessToken, user.IsAdmin())
	c.setState(StateAuthenticated, user)
	metrics.LoginSucceeded()

	c.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return user.Role, nil
}

func (c *Controller) loginError(op string, err error) error {
	switch api.StatusOf(err) {
	case http.StatusUnauthorized:
		metrics.LoginFailed("invalid_credentials")
		return &domain.Error{
			Code:    domain.EUNAUTHORIZED,
			Op:      op,
			Message: "Invalid email or password.",
			Err:     fmt.Errorf("%w: %w", ErrInvalidCredentials, err),
		}
	case http.StatusBadRequest:
		metrics.LoginFailed("bad_request")
		msg := api.DetailOf(err)
		if msg == "" {
			msg = "Invalid request"
		}
		return &domain.Error{
			Code:    domain.EINVALID,
			Op:      op,
			Message: msg,
			Err:     fmt.Errorf("%w: %w", ErrBadRequest, err),
		}
	default:
		metrics.LoginFailed("failed")
		return &domain.Error{
			Code:    domain.EUNAVAILABLE,
			Op:      op,
			Message: "Login failed. Please try again.",
			Err:     fmt.Errorf("%w: %w", ErrLoginFailed, err),
		}
	}
}

// Logout clears the session. It is idempotent and cannot fail.
func (c *Controller) Logout() {
	c.store.Clear()
	c.setState(StateAnonymous, nil)
}

// Register creates an account. It does not sign the user in or change the
// session in any way.
func (c *Controller) Register(ctx context.Context, params domain.RegisterParams) error {
	const op = "auth.Register"

	if _, err := c.client.Register(ctx, params); err != nil {
		msg := "Registration failed. Please try again."
		if detail := api.DetailOf(err); detail != "" {
			msg = detail
		}
		return &domain.Error{
			Code:    domain.ErrorCode(err),
			Op:      op,
			Message: msg,
			Err:     fmt.Errorf("%w: %w", ErrRegistrationFailed, err),
		}
	}

	c.logger.Info("user registered", "username", params.Username)
	return nil
}

// =============================================================================
// Accessors
// =============================================================================

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// User returns the current user, or nil when anonymous.
func (c *Controller) User() *domain.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// IsLoading reports whether Init is in progress.
func (c *Controller) IsLoading() bool {
	return c.State() == StateLoading
}

// IsAuthenticated reports whether a user is loaded.
func (c *Controller) IsAuthenticated() bool {
	return c.State() == StateAuthenticated
}

// IsAdmin reports whether the loaded user holds the admin role.
func (c *Controller) IsAdmin() bool {
	return c.User().IsAdmin()
}

// API returns the session-bound API client for resource calls.
func (c *Controller) API() *api.Client {
	return c.client
}

func (c *Controller) setState(state State, user *domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.user = user
}
