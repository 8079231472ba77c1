package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DukeRupert/inkwell/internal/domain"
)

// =============================================================================
// Dashboard
// =============================================================================

// Stats fetches the dashboard snapshot.
func (c *Client) Stats(ctx context.Context) (*domain.Stats, error) {
	var stats domain.Stats
	if err := c.call(ctx, "api.Stats", Request{Method: http.MethodGet, Path: "/admin/stats"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// =============================================================================
// Users
// =============================================================================

func (c *Client) Users(ctx context.Context, skip, limit int) ([]domain.AdminUser, error) {
	var users []domain.AdminUser
	err := c.call(ctx, "api.Users", Request{
		Method: http.MethodGet,
		Path:   "/admin/users",
		Query:  pageQuery(skip, limit),
	}, &users)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUserStatus activates or deactivates a user.
func (c *Client) UpdateUserStatus(ctx context.Context, id int, active bool) error {
	return c.call(ctx, "api.UpdateUserStatus", Request{
		Method: http.MethodPatch,
		Path:   "/admin/users/" + strconv.Itoa(id) + "/status",
		JSON:   map[string]bool{"is_active": active},
	}, nil)
}

// UpdateUserRole grants or revokes the admin role.
func (c *Client) UpdateUserRole(ctx context.Context, id int, isAdmin bool) error {
	return c.call(ctx, "api.UpdateUserRole", Request{
		Method: http.MethodPatch,
		Path:   "/admin/users/" + strconv.Itoa(id) + "/role",
		JSON:   map[string]bool{"is_admin": isAdmin},
	}, nil)
}

// =============================================================================
// Moderation
// =============================================================================

func (c *Client) AllPosts(ctx context.Context, skip, limit int) ([]domain.Post, error) {
	var posts []domain.Post
	err := c.call(ctx, "api.AllPosts", Request{
		Method: http.MethodGet,
		Path:   "/admin/posts/all",
		Query:  pageQuery(skip, limit),
	}, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) UpdatePostStatus(ctx context.Context, id int, status domain.PostStatus) error {
	if !status.Valid() {
		return domain.Invalid("api.UpdatePostStatus", "Unknown post status.")
	}
	return c.call(ctx, "api.UpdatePostStatus", Request{
		Method: http.MethodPatch,
		Path:   "/admin/posts/" + strconv.Itoa(id) + "/status",
		JSON:   map[string]domain.PostStatus{"status": status},
	}, nil)
}

func (c *Client) AllComments(ctx context.Context, skip, limit int) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := c.call(ctx, "api.AllComments", Request{
		Method: http.MethodGet,
		Path:   "/admin/comments/all",
		Query:  pageQuery(skip, limit),
	}, &comments)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) UpdateCommentStatus(ctx context.Context, id int, status domain.CommentStatus) error {
	if !status.Valid() {
		return domain.Invalid("api.UpdateCommentStatus", "Unknown comment status.")
	}
	return c.call(ctx, "api.UpdateCommentStatus", Request{
		Method: http.MethodPatch,
		Path:   "/admin/comments/" + strconv.Itoa(id) + "/status",
		JSON:   map[string]domain.CommentStatus{"status": status},
	}, nil)
}

// =============================================================================
// Settings
// =============================================================================

func (c *Client) Settings(ctx context.Context) (*domain.Settings, error) {
	settings := domain.DefaultSettings()
	if err := c.call(ctx, "api.Settings", Request{Method: http.MethodGet, Path: "/admin/settings"}, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *Client) UpdateSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error) {
	updated := settings
	err := c.call(ctx, "api.UpdateSettings", Request{
		Method: http.MethodPut,
		Path:   "/admin/settings",
		JSON:   settings,
	}, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func pageQuery(skip, limit int) url.Values {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}
