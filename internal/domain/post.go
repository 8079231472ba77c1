package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// PostStatus represents the moderation state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// Valid returns true if s is one of the known statuses.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return true
	}
	return false
}

// Tag is a post tag.
type Tag struct {
	Name string `json:"name"`
}

// Post is a blog post as returned by the API.
type Post struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Summary       string     `json:"summary"`
	Content       string     `json:"content"`
	Author        Author     `json:"author"`
	Status        PostStatus `json:"status,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at,omitempty"`
	Tags          []Tag      `json:"tags"`
	LikesCount    int        `json:"likes_count"`
	CommentsCount int        `json:"comments_count"`
	IsLiked       bool       `json:"is_liked,omitempty"`
}

// PostList is a page of posts.
type PostList struct {
	Items []Post `json:"items"`
	Total int    `json:"total"`
}

// PostParams is the multipart form sent when creating or updating a post.
type PostParams struct {
	Title   string   `validate:"required,min=5,max=100"`
	Summary string   `validate:"required,min=10,max=200"`
	Content string   `validate:"required,min=50"`
	Tags    []string `validate:"dive,max=30"`
}

// ParseTags splits a comma-separated tag input, dropping blanks.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// TagsJSON encodes tags the way the API expects them in the multipart form.
func (p PostParams) TagsJSON() string {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}
