package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/DukeRupert/inkwell/internal/domain"
)

// CommentsForPost returns the comments of a post, threaded.
func (c *Client) CommentsForPost(ctx context.Context, postID int) ([]domain.Comment, error) {
	var flat []domain.Comment
	err := c.call(ctx, "api.CommentsForPost", Request{
		Method: http.MethodGet,
		Path:   "/comments/post/" + strconv.Itoa(postID),
	}, &flat)
	if err != nil {
		return nil, err
	}
	return domain.ThreadComments(flat), nil
}

func (c *Client) CreateComment(ctx context.Context, params domain.CommentParams) (*domain.Comment, error) {
	var comment domain.Comment
	err := c.call(ctx, "api.CreateComment", Request{
		Method: http.MethodPost,
		Path:   "/comments",
		JSON:   params,
	}, &comment)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) UpdateComment(ctx context.Context, id int, content string) (*domain.Comment, error) {
	var comment domain.Comment
	err := c.call(ctx, "api.UpdateComment", Request{
		Method: http.MethodPut,
		Path:   "/comments/" + strconv.Itoa(id),
		JSON:   map[string]string{"content": content},
	}, &comment)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, id int) error {
	return c.call(ctx, "api.DeleteComment", Request{
		Method: http.MethodDelete,
		Path:   "/comments/" + strconv.Itoa(id),
	}, nil)
}
