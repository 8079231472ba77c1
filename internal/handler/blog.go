package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DukeRupert/inkwell/internal/api"
	"github.com/DukeRupert/inkwell/internal/auth"
	"github.com/DukeRupert/inkwell/internal/domain"
)

// maxPostFormBytes bounds the multipart form for create and edit.
const maxPostFormBytes = 1 << 20

// homeLatestPosts is the number of posts featured on the home page.
const homeLatestPosts = 3

var postFormFields = map[string]string{"Title": "title", "Summary": "summary", "Content": "content", "Tags": "tags"}

// =============================================================================
// Page Data Types
// =============================================================================

// BlogListData is the data for public/home and public/blog.
type BlogListData struct {
	PageData
	Posts      []domain.Post
	Total      int
	Page       int
	TotalPages int
}

// HasPrev reports whether a previous page exists.
func (d BlogListData) HasPrev() bool { return d.Page > 1 }

// HasNext reports whether a next page exists.
func (d BlogListData) HasNext() bool { return d.Page < d.TotalPages }

// PostPageData is the data for public/post.
type PostPageData struct {
	PageData
	Post     *domain.Post
	Comments []domain.Comment
	ReplyTo  int
}

// PostFormData is the data for public/post_form.
type PostFormData struct {
	PageData
	Form    map[string]string
	Errors  map[string]string
	Action  string
	Editing bool
}

// MyPostsData is the data for public/my_posts.
type MyPostsData struct {
	PageData
	Posts []domain.Post
}

// =============================================================================
// Handler Configuration
// =============================================================================

// BlogHandler serves the public blog and the author pages.
type BlogHandler struct {
	renderer     TemplateRenderer
	logger       *slog.Logger
	postsPerPage int
}

// NewBlogHandler creates a new BlogHandler.
func NewBlogHandler(renderer TemplateRenderer, logger *slog.Logger, postsPerPage int) *BlogHandler {
	if postsPerPage < 1 {
		postsPerPage = 10
	}
	return &BlogHandler{
		renderer:     renderer,
		logger:       logger,
		postsPerPage: postsPerPage,
	}
}

// RegisterRoutes registers the blog routes. page is the session stack every
// route runs behind; requireUser guards the author pages.
func (h *BlogHandler) RegisterRoutes(mux *http.ServeMux, page, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /{$}", page(http.HandlerFunc(h.Home)))
	mux.Handle("GET /blog", page(http.HandlerFunc(h.List)))
	mux.Handle("GET /blog/{slug}", page(http.HandlerFunc(h.Show)))
	mux.Handle("POST /blog/{slug}/like", page(http.HandlerFunc(h.Like)))
	mux.Handle("POST /blog/{slug}/comments", page(http.HandlerFunc(h.Comment)))

	author := func(fn http.HandlerFunc) http.Handler { return page(requireUser(fn)) }
	mux.Handle("GET /blog/create", author(h.ShowCreate))
	mux.Handle("POST /blog/create", author(h.Create))
	mux.Handle("GET /blog/my-posts", author(h.MyPosts))
	mux.Handle("GET /blog/{slug}/edit", author(h.ShowEdit))
	mux.Handle("POST /blog/{slug}/edit", author(h.Edit))
	mux.Handle("POST /blog/{slug}/delete", author(h.Delete))
	mux.Handle("POST /blog/{slug}/comments/{id}/edit", author(h.EditComment))
	mux.Handle("POST /blog/{slug}/comments/{id}/delete", author(h.DeleteComment))
}

// =============================================================================
// Listing
// =============================================================================

// Home renders the landing page with the latest posts.
func (h *BlogHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	list, err := ctrl.API().ListPosts(r.Context(), 1, homeLatestPosts)
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	h.renderer.RenderHTTP(w, "public/home", BlogListData{
		PageData: newPageData(r, "Home"),
		Posts:    list.Items,
		Total:    list.Total,
		Page:     1,
	})
}

// List renders /blog?page=N.
func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	page := pageParam(r)
	list, err := ctrl.API().ListPosts(r.Context(), page, h.postsPerPage)
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	h.renderer.RenderHTTP(w, "public/blog", BlogListData{
		PageData:   newPageData(r, "Blog"),
		Posts:      list.Items,
		Total:      list.Total,
		Page:       page,
		TotalPages: totalPages(list.Total, h.postsPerPage),
	})
}

func totalPages(total, perPage int) int {
	if total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// =============================================================================
// Post page
// =============================================================================

// Show renders a post with its comment thread. ?reply_to=ID opens the reply
// form under that comment.
func (h *BlogHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	post, err := ctrl.API().GetPost(r.Context(), r.PathValue("slug"))
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	comments, err := ctrl.API().CommentsForPost(r.Context(), post.ID)
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			handleAPIError(w, r, h.renderer, h.logger, err)
			return
		}
		h.logger.Warn("failed to load comments", "error", err, "post_id", post.ID)
		comments = nil
	}

	replyTo, _ := strconv.Atoi(r.URL.Query().Get("reply_to"))

	h.renderer.RenderHTTP(w, "public/post", PostPageData{
		PageData: newPageData(r, post.Title),
		Post:     post,
		Comments: comments,
		ReplyTo:  replyTo,
	})
}

// Like records a like. Anonymous visitors are sent to the login page.
func (h *BlogHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}
	if !ctrl.IsAuthenticated() {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	slug := r.PathValue("slug")
	if _, err := ctrl.API().LikePost(r.Context(), slug); err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	http.Redirect(w, r, postURL(slug), http.StatusSeeOther)
}

// Comment adds a comment, or a reply when parent_id is set. Blank comments
// are ignored.
func (h *BlogHandler) Comment(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}
	if !ctrl.IsAuthenticated() {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	slug := r.PathValue("slug")
	if err := r.ParseForm(); err != nil {
		handleAPIError(w, r, h.renderer, h.logger, domain.Invalid("handler.Comment", "Invalid form submission"))
		return
	}

	params := domain.CommentParams{Content: strings.TrimSpace(r.FormValue("content"))}
	if params.Content == "" {
		http.Redirect(w, r, postURL(slug), http.StatusSeeOther)
		return
	}
	params.PostID, _ = strconv.Atoi(r.FormValue("post_id"))
	if parent, err := strconv.Atoi(r.FormValue("parent_id")); err == nil && parent > 0 {
		params.ParentID = &parent
	}

	if errs := fieldErrors(params, nil); errs != nil {
		handleAPIError(w, r, h.renderer, h.logger, domain.Invalid("handler.Comment", "Your comment could not be posted."))
		return
	}

	if _, err := ctrl.API().CreateComment(r.Context(), params); err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	http.Redirect(w, r, postURL(slug)+"#comments", http.StatusSeeOther)
}

// EditComment replaces the content of the user's comment.
func (h *BlogHandler) EditComment(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	content := strings.TrimSpace(r.FormValue("content"))
	if content == "" {
		handleAPIError(w, r, h.renderer, h.logger, domain.Invalid("handler.EditComment", "Comment cannot be empty"))
		return
	}

	if _, err := ctrl.API().UpdateComment(r.Context(), id, content); err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	http.Redirect(w, r, postURL(r.PathValue("slug"))+"#comments", http.StatusSeeOther)
}

// DeleteComment removes the user's comment.
func (h *BlogHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	if err := ctrl.API().DeleteComment(r.Context(), id); err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	http.Redirect(w, r, postURL(r.PathValue("slug"))+"#comments", http.StatusSeeOther)
}

// =============================================================================
// Authoring
// =============================================================================

// ShowCreate renders the new post form.
func (h *BlogHandler) ShowCreate(w http.ResponseWriter, r *http.Request) {
	h.renderPostForm(w, r, http.StatusOK, "/blog/create", false, nil, nil, nil)
}

// Create validates the form and publishes the post. On success the browser
// goes to the new post, or to the blog when the API returned no slug.
func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	params, values, ok := h.parsePostForm(w, r, "/blog/create", false)
	if !ok {
		return
	}

	post, err := ctrl.API().CreatePost(r.Context(), params)
	if err != nil {
		h.postFormError(w, r, "/blog/create", false, values, err)
		return
	}

	h.logger.Info("post created", "slug", post.Slug, "user_id", ctrl.User().ID)
	if post.Slug == "" {
		http.Redirect(w, r, "/blog", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, postURL(post.Slug), http.StatusSeeOther)
}

// ShowEdit renders the edit form pre-filled with the post.
func (h *BlogHandler) ShowEdit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	slug := r.PathValue("slug")
	post, err := authoredPost(r, ctrl, slug)
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	tags := make([]string, 0, len(post.Tags))
	for _, t := range post.Tags {
		tags = append(tags, t.Name)
	}
	values := map[string]string{
		"Title":   post.Title,
		"Summary": post.Summary,
		"Content": post.Content,
		"Tags":    strings.Join(tags, ", "),
	}

	h.renderPostForm(w, r, http.StatusOK, postURL(slug)+"/edit", true, values, nil, nil)
}

// Edit saves changes to the post.
func (h *BlogHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	slug := r.PathValue("slug")
	if _, err := authoredPost(r, ctrl, slug); err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	action := postURL(slug) + "/edit"
	params, values, ok := h.parsePostForm(w, r, action, true)
	if !ok {
		return
	}

	post, err := ctrl.API().UpdatePost(r.Context(), slug, params)
	if err != nil {
		h.postFormError(w, r, action, true, values, err)
		return
	}

	if post.Slug != "" {
		slug = post.Slug
	}
	http.Redirect(w, r, postURL(slug), http.StatusSeeOther)
}

// authoredPost fetches the post and fails with EFORBIDDEN unless the
// signed-in user wrote it.
func authoredPost(r *http.Request, ctrl *auth.Controller, slug string) (*domain.Post, error) {
	post, err := ctrl.API().GetPost(r.Context(), slug)
	if err != nil {
		return nil, err
	}
	if user := ctrl.User(); user == nil || post.Author.ID != user.ID {
		return nil, domain.Forbidden("BlogHandler.Edit", "Only the author can edit this post.")
	}
	return post, nil
}

// MyPosts lists the signed-in user's posts.
func (h *BlogHandler) MyPosts(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	posts, err := ctrl.API().MyPosts(r.Context())
	if err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	h.renderer.RenderHTTP(w, "public/my_posts", MyPostsData{
		PageData: newPageData(r, "My posts"),
		Posts:    posts,
	})
}

// Delete removes one of the user's posts.
func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	if err := ctrl.API().DeletePost(r.Context(), r.PathValue("slug")); err != nil {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	http.Redirect(w, r, "/blog/my-posts", http.StatusSeeOther)
}

// parsePostForm reads and validates the post form. On failure it has already
// re-rendered the form.
func (h *BlogHandler) parsePostForm(w http.ResponseWriter, r *http.Request, action string, editing bool) (domain.PostParams, map[string]string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPostFormBytes)
	if err := r.ParseMultipartForm(maxPostFormBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.Warn("failed to parse post form", "error", err)
		h.renderPostForm(w, r, http.StatusBadRequest, action, editing, nil, nil, &Flash{
			Type:    "error",
			Message: "Invalid form submission. Please try again.",
		})
		return domain.PostParams{}, nil, false
	}

	values := map[string]string{
		"Title":   strings.TrimSpace(r.FormValue("title")),
		"Summary": strings.TrimSpace(r.FormValue("summary")),
		"Content": strings.TrimSpace(r.FormValue("content")),
		"Tags":    r.FormValue("tags"),
	}
	params := domain.PostParams{
		Title:   values["Title"],
		Summary: values["Summary"],
		Content: values["Content"],
		Tags:    domain.ParseTags(values["Tags"]),
	}

	if errs := fieldErrors(params, postFormFields); errs != nil {
		h.renderPostForm(w, r, http.StatusBadRequest, action, editing, values, errs, nil)
		return domain.PostParams{}, nil, false
	}
	return params, values, true
}

// postFormError re-renders the form with the API's field errors or message,
// or redirects to login when the session has expired.
func (h *BlogHandler) postFormError(w http.ResponseWriter, r *http.Request, action string, editing bool, values map[string]string, err error) {
	if errors.Is(err, api.ErrSessionExpired) {
		handleAPIError(w, r, h.renderer, h.logger, err)
		return
	}

	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	logError(h.logger, r, err, code, domain.ErrorOp(err), status)

	if fields := domain.FieldErrors(err); fields != nil {
		h.renderPostForm(w, r, status, action, editing, values, fields, nil)
		return
	}

	h.renderPostForm(w, r, status, action, editing, values, nil, &Flash{
		Type:    "error",
		Message: domain.ErrorMessage(err),
	})
}

func (h *BlogHandler) renderPostForm(w http.ResponseWriter, r *http.Request, status int, action string, editing bool, values, errs map[string]string, flash *Flash) {
	if values == nil {
		values = make(map[string]string)
	}
	if errs == nil {
		errs = make(map[string]string)
	}

	title := "Create a new post"
	if editing {
		title = "Edit post"
	}

	data := PostFormData{
		PageData: newPageData(r, title),
		Form:     values,
		Errors:   errs,
		Action:   action,
		Editing:  editing,
	}
	data.Flash = flash

	h.renderer.RenderStatus(w, status, "public/post_form", data)
}

func postURL(slug string) string {
	return "/blog/" + url.PathEscape(slug)
}
