package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/DukeRupert/inkwell/internal/api"
	"github.com/DukeRupert/inkwell/internal/domain"
	"github.com/DukeRupert/inkwell/internal/livestats"
)

// adminPageSize is the row count of the back-office tables.
const adminPageSize = 20

var settingsFields = map[string]string{
	"SiteName":        "site_name",
	"SiteDescription": "site_description",
	"PostsPerPage":    "posts_per_page",
}

// =============================================================================
// Page Data Types
// =============================================================================

// DashboardData is the data for admin/dashboard.
type DashboardData struct {
	PageData
	Stats *domain.Stats
}

// AdminTableData is the data for the users, posts and comments tables.
type AdminTableData struct {
	PageData
	Users    []domain.AdminUser
	Posts    []domain.Post
	Comments []domain.Comment
	Page     int
	HasNext  bool
}

// SettingsData is the data for admin/settings.
type SettingsData struct {
	PageData
	Settings domain.Settings
	Errors   map[string]string
}

// =============================================================================
// Handler Configuration
// =============================================================================

// AdminHandler handles the admin back-office.
type AdminHandler struct {
	renderer TemplateRenderer
	logger   *slog.Logger
	relay    *livestats.Relay
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(renderer TemplateRenderer, logger *slog.Logger, relay *livestats.Relay) *AdminHandler {
	return &AdminHandler{
		renderer: renderer,
		logger:   logger,
		relay:    relay,
	}
}

// RegisterRoutes registers admin routes. admin is the full stack for admin
// pages: session middleware followed by RequireAdmin.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, admin func(http.Handler) http.Handler) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, admin(fn))
	}

	route("GET /admin/{$}", h.Index)
	route("GET /admin/dashboard", h.Dashboard)
	route("GET /admin/dashboard/live", h.Live)
	route("GET /admin/users", h.Users)
	route("POST /admin/users/{id}/status", h.UpdateUserStatus)
	route("POST /admin/users/{id}/role", h.UpdateUserRole)
	route("GET /admin/posts", h.Posts)
	route("POST /admin/posts/{id}/status", h.UpdatePostStatus)
	route("POST /admin/posts/{slug}/delete", h.DeletePost)
	route("GET /admin/comments", h.Comments)
	route("POST /admin/comments/{id}/status", h.UpdateCommentStatus)
	route("POST /admin/comments/{id}/delete", h.DeleteComment)
	route("GET /admin/settings", h.Settings)
	route("POST /admin/settings", h.UpdateSettings)
}

// Index sends /admin to the dashboard.
func (h *AdminHandler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}

// =============================================================================
// Dashboard
// =============================================================================

// Dashboard renders platform stats. A failed fetch still renders the page
// with an error banner; the live channel is independent of it.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	data := DashboardData{PageData: newPageData(r, "Dashboard")}

	stats, err := ctrl.API().Stats(r.Context())
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			handleAPIError(w, r, h.renderer, h.logger, err)
			return
		}
		h.logger.Error("failed to fetch statistics", "error", err)
		data.Flash = &Flash{Type: "error", Message: "Failed to fetch statistics"}
	}
	data.Stats = stats

	h.renderer.RenderHTTP(w, "admin/dashboard", data)
}

// Live upgrades to a WebSocket relaying stats updates for the admin's token.
func (h *AdminHandler) Live(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	token, ok := ctrl.API().Store().Token()
	if !ok {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	if err := h.relay.Serve(w, r, token); err != nil {
		h.logger.Warn("live stats relay ended", "error", err, "user_id", ctrl.User().ID)
	}
}

// =============================================================================
// Users
// =============================================================================

// Users renders the user table.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	page := pageParam(r)
	users, err := ctrl.API().Users(r.Context(), (page-1)*adminPageSize, adminPageSize)
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	h.renderer.RenderHTTP(w, "admin/users", AdminTableData{
		PageData: newPageData(r, "Users"),
		Users:    users,
		Page:     page,
		HasNext:  len(users) == adminPageSize,
	})
}

// UpdateUserStatus activates or deactivates a user (form field active).
func (h *AdminHandler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "/admin/users", func(c *api.Client, id int) error {
		return c.UpdateUserStatus(r.Context(), id, formBool(r, "active"))
	})
}

// UpdateUserRole grants or revokes the admin role (form field admin).
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "/admin/users", func(c *api.Client, id int) error {
		return c.UpdateUserRole(r.Context(), id, formBool(r, "admin"))
	})
}

// =============================================================================
// Posts
// =============================================================================

// Posts renders every post regardless of status.
func (h *AdminHandler) Posts(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	page := pageParam(r)
	posts, err := ctrl.API().AllPosts(r.Context(), (page-1)*adminPageSize, adminPageSize)
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	h.renderer.RenderHTTP(w, "admin/posts", AdminTableData{
		PageData: newPageData(r, "Posts"),
		Posts:    posts,
		Page:     page,
		HasNext:  len(posts) == adminPageSize,
	})
}

// UpdatePostStatus moves a post between draft, published and archived.
func (h *AdminHandler) UpdatePostStatus(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "/admin/posts", func(c *api.Client, id int) error {
		return c.UpdatePostStatus(r.Context(), id, domain.PostStatus(r.FormValue("status")))
	})
}

// DeletePost removes a post.
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	if err := ctrl.API().DeletePost(r.Context(), r.PathValue("slug")); err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}
	http.Redirect(w, r, "/admin/posts", http.StatusSeeOther)
}

// =============================================================================
// Comments
// =============================================================================

// Comments renders every comment with its post.
func (h *AdminHandler) Comments(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	page := pageParam(r)
	comments, err := ctrl.API().AllComments(r.Context(), (page-1)*adminPageSize, adminPageSize)
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	h.renderer.RenderHTTP(w, "admin/comments", AdminTableData{
		PageData: newPageData(r, "Comments"),
		Comments: comments,
		Page:     page,
		HasNext:  len(comments) == adminPageSize,
	})
}

// UpdateCommentStatus moves a comment between active, flagged and hidden.
func (h *AdminHandler) UpdateCommentStatus(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "/admin/comments", func(c *api.Client, id int) error {
		return c.UpdateCommentStatus(r.Context(), id, domain.CommentStatus(r.FormValue("status")))
	})
}

// DeleteComment removes a comment.
func (h *AdminHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "/admin/comments", func(c *api.Client, id int) error {
		return c.DeleteComment(r.Context(), id)
	})
}

// mutate runs fn for the {id} in the path and redirects back to the table,
// keeping the page the admin was on.
func (h *AdminHandler) mutate(w http.ResponseWriter, r *http.Request, back string, fn func(*api.Client, int) error) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	if err := fn(ctrl.API(), id); err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	if page := parsePage(r.FormValue("page")); page > 1 {
		back += "?page=" + strconv.Itoa(page)
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// =============================================================================
// Settings
// =============================================================================

// Settings renders the settings form.
func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	settings, err := ctrl.API().Settings(r.Context())
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	h.renderSettings(w, r, http.StatusOK, *settings, nil, nil)
}

// UpdateSettings validates and saves the settings form.
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		handleAPIError(w, r, h.renderer, h.logger, domain.Invalid("handler.UpdateSettings", "Invalid form submission"))
		return
	}

	perPage, err := strconv.Atoi(r.FormValue("posts_per_page"))
	if err != nil {
		perPage = 0
	}
	settings := domain.Settings{
		SiteName:                 strings.TrimSpace(r.FormValue("site_name")),
		SiteDescription:          strings.TrimSpace(r.FormValue("site_description")),
		AllowComments:            formBool(r, "allow_comments"),
		AllowRegistrations:       formBool(r, "allow_registrations"),
		RequireEmailVerification: formBool(r, "require_email_verification"),
		PostsPerPage:             perPage,
		MaintenanceMode:          formBool(r, "maintenance_mode"),
	}

	if errs := fieldErrors(settings, settingsFields); errs != nil {
		h.renderSettings(w, r, http.StatusBadRequest, settings, errs, nil)
		return
	}

	updated, err := ctrl.API().UpdateSettings(r.Context(), settings)
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			handleAPIError(w, r, h.renderer, h.logger, err)
			return
		}
		h.logger.Error("failed to update settings", "error", err)
		h.renderSettings(w, r, ErrorCodeToHTTPStatus(domain.ErrorCode(err)), settings, nil,
			&Flash{Type: "error", Message: "Failed to update settings"})
		return
	}

	h.renderSettings(w, r, http.StatusOK, *updated, nil,
		&Flash{Type: "success", Message: "Settings updated successfully"})
}

func (h *AdminHandler) renderSettings(w http.ResponseWriter, r *http.Request, status int, settings domain.Settings, errs map[string]string, flash *Flash) {
	if errs == nil {
		errs = make(map[string]string)
	}
	data := SettingsData{
		PageData: newPageData(r, "Settings"),
		Settings: settings,
		Errors:   errs,
	}
	data.Flash = flash

	h.renderer.RenderStatus(w, status, "admin/settings", data)
}

// formBool reads a checkbox or "true"/"false" field.
func formBool(r *http.Request, name string) bool {
	switch r.FormValue(name) {
	case "on", "true", "1":
		return true
	}
	return false
}
