// Package handler contains HTTP handlers for the inkwell frontend.
//
// This file implements the authentication pages: login, registration,
// logout and the admin sign-in. Credential checks happen in the blog API; the
// handlers drive the request's auth.Controller and render the outcome.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/DukeRupert/inkwell/internal/auth"
	"github.com/DukeRupert/inkwell/internal/domain"
)

// =============================================================================
// Page Data Types
// =============================================================================

// AuthPageData contains data passed to authentication page templates.
type AuthPageData struct {
	PageData
	Form     map[string]string // Form values for re-populating on error
	Errors   map[string]string // Field-specific errors
	ReturnTo string            // Safe local URL to go to after login
	Action   string            // Form action, /auth/login or /admin/login
}

// loginForm is the submitted login form.
type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

var (
	loginFields    = map[string]string{"Email": "email", "Password": "password"}
	registerFields = map[string]string{"Email": "email", "Username": "username", "Password": "password"}
)

// =============================================================================
// Handler Configuration
// =============================================================================

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	renderer TemplateRenderer
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the required dependencies.
func NewAuthHandler(renderer TemplateRenderer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		renderer: renderer,
		logger:   logger,
	}
}

// RegisterRoutes registers all auth routes on the provided ServeMux.
//
// Routes registered:
// - GET  /auth/login    -> ShowLogin
// - POST /auth/login    -> Login
// - GET  /auth/register -> ShowRegister
// - POST /auth/register -> Register
// - POST /auth/logout   -> Logout
// - GET  /admin/login   -> ShowAdminLogin
// - POST /admin/login   -> AdminLogin
//
// page wraps every route with the session middleware. limitLogin and
// limitRegister rate limit the credential submissions.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, page, limitLogin, limitRegister func(http.Handler) http.Handler) {
	mux.Handle("GET /auth/login", page(http.HandlerFunc(h.ShowLogin)))
	mux.Handle("POST /auth/login", page(limitLogin(http.HandlerFunc(h.Login))))
	mux.Handle("GET /auth/register", page(http.HandlerFunc(h.ShowRegister)))
	mux.Handle("POST /auth/register", page(limitRegister(http.HandlerFunc(h.Register))))
	mux.Handle("POST /auth/logout", page(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /admin/login", page(http.HandlerFunc(h.ShowAdminLogin)))
	mux.Handle("POST /admin/login", page(limitLogin(http.HandlerFunc(h.AdminLogin))))
}

// =============================================================================
// GET /auth/login - Display Login Form
// =============================================================================

// ShowLogin renders the login page. ?registered=true shows the confirmation
// left by a successful registration.
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	var flash *Flash
	if r.URL.Query().Get("registered") == "true" {
		flash = &Flash{Type: "success", Message: "Registration successful! Please log in."}
	}

	returnTo := r.URL.Query().Get("return_to")
	if !isSafeRedirectURL(returnTo) {
		returnTo = ""
	}

	h.renderLogin(w, r, http.StatusOK, "/auth/login", nil, nil, flash, returnTo)
}

// =============================================================================
// POST /auth/login - Process Login
// =============================================================================

// Login signs the user in through the request's Controller.
//
// On success the browser goes to return_to when it is a local path, to the
// admin dashboard for admins, and to the blog otherwise.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	role, ok := h.login(w, r, "/auth/login")
	if !ok {
		return
	}

	if returnTo := r.FormValue("return_to"); returnTo != "" && isSafeRedirectURL(returnTo) {
		http.Redirect(w, r, returnTo, http.StatusSeeOther)
		return
	}
	if role == domain.RoleAdmin {
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/blog", http.StatusSeeOther)
}

// login validates the form and runs Controller.Login. On failure it has
// already re-rendered the form at action.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, action string) (domain.Role, bool) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return "", false
	}

	if err := r.ParseForm(); err != nil {
		h.logger.Error("failed to parse form", "error", err)
		h.renderLogin(w, r, http.StatusBadRequest, action, nil, nil, &Flash{
			Type:    "error",
			Message: "Invalid form submission. Please try again.",
		}, "")
		return "", false
	}

	form := loginForm{
		Email:    strings.ToLower(strings.TrimSpace(r.FormValue("email"))),
		Password: r.FormValue("password"),
	}
	returnTo := r.FormValue("return_to")
	if !isSafeRedirectURL(returnTo) {
		returnTo = ""
	}

	// Store form values for re-rendering (except password)
	values := map[string]string{"Email": form.Email}

	if errs := fieldErrors(form, loginFields); errs != nil {
		h.renderLogin(w, r, http.StatusBadRequest, action, values, errs, nil, returnTo)
		return "", false
	}

	role, err := ctrl.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) && !errors.Is(err, auth.ErrBadRequest) {
			h.logger.Error("login failed", "error", err, "email", form.Email)
		}
		status := ErrorCodeToHTTPStatus(domain.ErrorCode(err))
		h.renderLogin(w, r, status, action, values, nil, &Flash{
			Type:    "error",
			Message: domain.ErrorMessage(err),
		}, returnTo)
		return "", false
	}

	return role, true
}

// renderLogin renders the user or admin login form.
func (h *AuthHandler) renderLogin(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	action string,
	values map[string]string,
	errs map[string]string,
	flash *Flash,
	returnTo string,
) {
	if values == nil {
		values = make(map[string]string)
	}
	if errs == nil {
		errs = make(map[string]string)
	}

	page := "auth/login"
	title := "Sign in"
	if action == "/admin/login" {
		page = "auth/admin_login"
		title = "Admin sign in"
	}

	data := AuthPageData{
		PageData: newPageData(r, title),
		Form:     values,
		Errors:   errs,
		ReturnTo: returnTo,
		Action:   action,
	}
	data.Flash = flash

	h.renderer.RenderStatus(w, status, page, data)
}

// =============================================================================
// GET /auth/register - Display Registration Form
// =============================================================================

// ShowRegister renders the registration page.
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	h.renderRegister(w, r, http.StatusOK, nil, nil, nil)
}

// =============================================================================
// POST /auth/register - Process Registration
// =============================================================================

// Register creates the account through the API. It never signs the user in;
// on success the browser goes to the login page with a confirmation.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := controllerOrRedirect(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		h.logger.Error("failed to parse form", "error", err)
		h.renderRegister(w, r, http.StatusBadRequest, nil, nil, &Flash{
			Type:    "error",
			Message: "Invalid form submission. Please try again.",
		})
		return
	}

	params := domain.RegisterParams{
		Email:    strings.ToLower(strings.TrimSpace(r.FormValue("email"))),
		Username: strings.TrimSpace(r.FormValue("username")),
		Password: r.FormValue("password"),
	}
	values := map[string]string{
		"Email":    params.Email,
		"Username": params.Username,
	}

	errs := fieldErrors(params, registerFields)
	if params.Password != r.FormValue("password_confirm") {
		if errs == nil {
			errs = make(map[string]string)
		}
		errs["password_confirm"] = "Passwords do not match"
	}
	if errs != nil {
		h.renderRegister(w, r, http.StatusBadRequest, values, errs, nil)
		return
	}

	if err := ctrl.Register(r.Context(), params); err != nil {
		h.logger.Info("registration rejected", "error", err, "username", params.Username)
		h.renderRegister(w, r, ErrorCodeToHTTPStatus(domain.ErrorCode(err)), values, nil, &Flash{
			Type:    "error",
			Message: domain.ErrorMessage(err),
		})
		return
	}

	http.Redirect(w, r, "/auth/login?registered=true", http.StatusSeeOther)
}

func (h *AuthHandler) renderRegister(w http.ResponseWriter, r *http.Request, status int, values, errs map[string]string, flash *Flash) {
	if values == nil {
		values = make(map[string]string)
	}
	if errs == nil {
		errs = make(map[string]string)
	}

	data := AuthPageData{
		PageData: newPageData(r, "Create an account"),
		Form:     values,
		Errors:   errs,
		Action:   "/auth/register",
	}
	data.Flash = flash

	h.renderer.RenderStatus(w, status, "auth/register", data)
}

// =============================================================================
// POST /auth/logout - Process Logout
// =============================================================================

// Logout clears the session cookies and redirects to the login page. It is
// idempotent and never shows an error.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ctrl := auth.FromContext(r.Context()); ctrl != nil {
		ctrl.Logout()
	}

	h.logger.Debug("user logged out")
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// =============================================================================
// Admin sign-in
// =============================================================================

// ShowAdminLogin renders the admin login page.
func (h *AuthHandler) ShowAdminLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, "/admin/login", nil, nil, nil, "")
}

// AdminLogin signs in and requires the admin role. A non-admin account is
// signed straight back out.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	role, ok := h.login(w, r, "/admin/login")
	if !ok {
		return
	}

	if role != domain.RoleAdmin {
		if ctrl := auth.FromContext(r.Context()); ctrl != nil {
			ctrl.Logout()
		}
		h.logger.Warn("non-admin attempted admin sign in", "email", r.FormValue("email"))
		h.renderLogin(w, r, http.StatusForbidden, "/admin/login",
			map[string]string{"Email": strings.TrimSpace(r.FormValue("email"))}, nil,
			&Flash{Type: "error", Message: "Admin access required"}, "")
		return
	}

	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}

// =============================================================================
// Helper Functions
// =============================================================================

// isSafeRedirectURL checks if a URL is safe to redirect to.
//
// This prevents open redirect vulnerabilities by ensuring:
// - URL is relative (starts with /)
// - URL is not a protocol-relative URL (not //)
// - URL does not redirect to external domain
//
// Examples:
// - "/blog/create"            -> true (relative URL)
// - "/blog?page=2"            -> true (relative URL with query)
// - "//evil.com"              -> false (protocol-relative, could be external)
// - "https://evil.com"        -> false (absolute URL to external domain)
// - "javascript:alert(1)"     -> false (javascript URL)
func isSafeRedirectURL(rawURL string) bool {
	if !strings.HasPrefix(rawURL, "/") {
		return false
	}
	if strings.HasPrefix(rawURL, "//") || strings.HasPrefix(rawURL, "/\\") {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Scheme == "" && parsed.Host == ""
}
