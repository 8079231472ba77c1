package domain

import "time"

// Stats is the admin dashboard payload (GET /admin/stats).
type Stats struct {
	TotalUsers          int                 `json:"total_users"`
	ActiveUsers         int                 `json:"active_users"`
	TotalPosts          int                 `json:"total_posts"`
	PublishedPosts      int                 `json:"published_posts"`
	TotalComments       int                 `json:"total_comments"`
	TotalLikes          int                 `json:"total_likes"`
	RecentRegistrations []RecentUser        `json:"recent_registrations"`
	PopularPosts        []PopularPost       `json:"popular_posts"`
	UserGrowth          []DailyCount        `json:"user_growth"`
	PostEngagement      []DailyEngagement   `json:"post_engagement"`
	ContentDistribution ContentDistribution `json:"content_distribution"`
}

// StatsUpdate is the subset of Stats pushed over the live channel. Counters
// the API leaves out stay nil and are not re-encoded.
type StatsUpdate struct {
	TotalUsers     *int `json:"total_users,omitempty"`
	ActiveUsers    *int `json:"active_users,omitempty"`
	TotalPosts     *int `json:"total_posts,omitempty"`
	PublishedPosts *int `json:"published_posts,omitempty"`
	TotalComments  *int `json:"total_comments,omitempty"`
	TotalLikes     *int `json:"total_likes,omitempty"`
}

// Empty reports whether the update carries no counter at all.
func (u StatsUpdate) Empty() bool {
	return u == StatsUpdate{}
}

type RecentUser struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type PopularPost struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	ViewCount  int    `json:"view_count"`
	LikesCount int    `json:"likes_count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DailyEngagement struct {
	Date     string `json:"date"`
	Views    int    `json:"views"`
	Likes    int    `json:"likes"`
	Comments int    `json:"comments"`
}

type ContentDistribution struct {
	Published int `json:"published"`
	Draft     int `json:"draft"`
	Archived  int `json:"archived"`
}

// AdminUser is a row of GET /admin/users.
type AdminUser struct {
	User
	PostsCount int `json:"posts_count,omitempty"`
}
