package domain

import "time"

// CommentStatus represents the moderation state of a comment.
type CommentStatus string

const (
	CommentStatusActive  CommentStatus = "active"
	CommentStatusFlagged CommentStatus = "flagged"
	CommentStatusHidden  CommentStatus = "hidden"
)

// Valid returns true if s is one of the known statuses.
func (s CommentStatus) Valid() bool {
	switch s {
	case CommentStatusActive, CommentStatusFlagged, CommentStatusHidden:
		return true
	}
	return false
}

// PostRef is the post reference embedded in admin comment listings.
type PostRef struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// Comment is a comment on a post. Replies are nested one level deep by the API.
type Comment struct {
	ID        int           `json:"id"`
	Content   string        `json:"content"`
	Author    Author        `json:"author"`
	Post      *PostRef      `json:"post,omitempty"`
	Status    CommentStatus `json:"status,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	ParentID  *int          `json:"parent_id"`
	Replies   []Comment     `json:"replies,omitempty"`
}

// CommentParams is the body of POST /comments.
type CommentParams struct {
	PostID   int    `json:"post_id" validate:"required,gt=0"`
	Content  string `json:"content" validate:"required,max=5000"`
	ParentID *int   `json:"parent_id,omitempty"`
}

// ThreadComments nests flat comments under their parents. Comments that already
// carry replies, or whose parent is missing, are returned as roots.
func ThreadComments(flat []Comment) []Comment {
	byID := make(map[int]int, len(flat))
	roots := make([]Comment, 0, len(flat))
	for _, c := range flat {
		if c.ParentID == nil {
			byID[c.ID] = len(roots)
			roots = append(roots, c)
		}
	}
	for _, c := range flat {
		if c.ParentID == nil {
			continue
		}
		idx, ok := byID[*c.ParentID]
		if !ok {
			roots = append(roots, c)
			continue
		}
		roots[idx].Replies = append(roots[idx].Replies, c)
	}
	return roots
}
