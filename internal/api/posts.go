package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DukeRupert/inkwell/internal/domain"
)

// ListPosts returns one page of published posts. page is 1-based.
//
// Listing failures other than an expired session degrade to an empty page so
// the blog index still renders.
func (c *Client) ListPosts(ctx context.Context, page, limit int) (*domain.PostList, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("skip", strconv.Itoa((page-1)*limit))
	q.Set("limit", strconv.Itoa(limit))

	var list domain.PostList
	err := c.call(ctx, "api.ListPosts", Request{Method: http.MethodGet, Path: "/posts/", Query: q}, &list)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil, err
		}
		c.gw.logger.Warn("listing posts failed, rendering empty page", "error", err)
		return &domain.PostList{Items: []domain.Post{}}, nil
	}
	if list.Items == nil {
		list.Items = []domain.Post{}
	}
	return &list, nil
}

// GetPost fetches a post by slug.
func (c *Client) GetPost(ctx context.Context, slug string) (*domain.Post, error) {
	var post domain.Post
	err := c.call(ctx, "api.GetPost", Request{
		Method: http.MethodGet,
		Path:   "/posts/" + url.PathEscape(slug) + "/",
	}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// CreatePost publishes a new post. The API expects multipart form fields with
// tags as a JSON array.
func (c *Client) CreatePost(ctx context.Context, params domain.PostParams) (*domain.Post, error) {
	var post domain.Post
	err := c.call(ctx, "api.CreatePost", Request{
		Method:    http.MethodPost,
		Path:      "/posts/",
		Multipart: postFields(params),
	}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost replaces the editable fields of a post.
func (c *Client) UpdatePost(ctx context.Context, slug string, params domain.PostParams) (*domain.Post, error) {
	var post domain.Post
	err := c.call(ctx, "api.UpdatePost", Request{
		Method:    http.MethodPut,
		Path:      "/posts/" + url.PathEscape(slug) + "/",
		Multipart: postFields(params),
	}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// MyPosts lists the current user's posts. Failures other than an expired
// session degrade to an empty list.
func (c *Client) MyPosts(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	err := c.call(ctx, "api.MyPosts", Request{Method: http.MethodGet, Path: "/posts/my-posts/"}, &posts)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return nil, err
		}
		c.gw.logger.Warn("listing own posts failed, rendering empty list", "error", err)
		return []domain.Post{}, nil
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	return posts, nil
}

// DeletePost deletes a post owned by the current user.
func (c *Client) DeletePost(ctx context.Context, slug string) error {
	return c.call(ctx, "api.DeletePost", Request{
		Method: http.MethodDelete,
		Path:   "/posts/" + url.PathEscape(slug) + "/",
	}, nil)
}

// LikePost toggles the current user's like on a post.
func (c *Client) LikePost(ctx context.Context, slug string) (string, error) {
	var res struct {
		Message string `json:"message"`
	}
	err := c.call(ctx, "api.LikePost", Request{
		Method: http.MethodPost,
		Path:   "/posts/" + url.PathEscape(slug) + "/like/",
	}, &res)
	if err != nil {
		return "", err
	}
	return res.Message, nil
}

func postFields(p domain.PostParams) []FormField {
	return []FormField{
		{Name: "title", Value: p.Title},
		{Name: "summary", Value: p.Summary},
		{Name: "content", Value: p.Content},
		{Name: "tags", Value: p.TagsJSON()},
	}
}
