package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/DukeRupert/inkwell/internal/api"
	"github.com/DukeRupert/inkwell/internal/auth"
	"github.com/DukeRupert/inkwell/internal/csrf"
	"github.com/DukeRupert/inkwell/internal/domain"
)

// loginPath is where a torn-down session lands.
const loginPath = "/auth/login"

// TemplateRenderer is the subset of *Renderer the handlers use.
type TemplateRenderer interface {
	RenderHTTP(w http.ResponseWriter, name string, data any)
	RenderStatus(w http.ResponseWriter, status int, name string, data any)
}

// Flash represents a one-time message to display to the user.
type Flash struct {
	Type    string // success, error, warning, info
	Message string
}

// PageData is embedded by every page's data struct.
type PageData struct {
	Title       string
	CurrentPath string
	CSRFToken   string
	User        *domain.User
	IsAdmin     bool
	Flash       *Flash
}

// newPageData fills the fields every layout reads from the request context.
func newPageData(r *http.Request, title string) PageData {
	pd := PageData{
		Title:       title,
		CurrentPath: r.URL.Path,
		CSRFToken:   csrf.Token(r.Context()),
	}
	if ctrl := auth.FromContext(r.Context()); ctrl != nil {
		pd.User = ctrl.User()
		pd.IsAdmin = ctrl.IsAdmin()
	}
	return pd
}

// ErrorPageData is the data for public/error.
type ErrorPageData struct {
	PageData
	Status  int
	Message string
}

// =============================================================================
// Shared handler helpers
// =============================================================================

// handleAPIError renders err for a page request. An expired session is not an
// error page: the browser is sent to the login form.
func handleAPIError(w http.ResponseWriter, r *http.Request, renderer TemplateRenderer, logger *slog.Logger, err error) {
	if errors.Is(err, api.ErrSessionExpired) {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	if acceptsJSON(r) {
		ValidationErrorResponse(w, r, logger, err)
		return
	}

	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	logError(logger, r, err, code, domain.ErrorOp(err), status)

	renderer.RenderStatus(w, status, "public/error", ErrorPageData{
		PageData: newPageData(r, http.StatusText(status)),
		Status:   status,
		Message:  domain.ErrorMessage(err),
	})
}

// controllerOrRedirect returns the request's controller. Handlers mounted
// behind LoadSession always have one; without it the request is sent to login.
func controllerOrRedirect(w http.ResponseWriter, r *http.Request) (*auth.Controller, bool) {
	ctrl := auth.FromContext(r.Context())
	if ctrl == nil {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return nil, false
	}
	return ctrl, true
}

// pathID parses a numeric path value such as {id}.
func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id < 1 {
		return 0, domain.Invalid("handler.pathID", "Invalid "+name)
	}
	return id, nil
}

// maxPage caps page numbers so skip offsets stay far from overflow.
const maxPage = 10000

// pageParam reads ?page=N, defaulting to 1.
func pageParam(r *http.Request) int {
	return parsePage(r.URL.Query().Get("page"))
}

// parsePage parses a page number into [1, maxPage].
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return min(page, maxPage)
}

// =============================================================================
// Form validation
// =============================================================================

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldErrors validates v and maps failures to form field names. The names
// given in fields map struct field names to the form's input names.
func fieldErrors(v any, fields map[string]string) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"form": "Invalid form submission"}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field, _, _ := strings.Cut(fe.StructField(), "[")
		name, ok := fields[field]
		if !ok {
			name = field
		}
		if _, seen := out[name]; !seen {
			out[name] = fieldMessage(fe)
		}
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label, _, _ := strings.Cut(fe.StructField(), "[")
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please enter a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return label + " must be at least " + fe.Param() + " characters"
		}
		return label + " must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return label + " must be at most " + fe.Param() + " characters"
		}
		return label + " must be at most " + fe.Param()
	case "eqfield":
		return "Passwords do not match"
	default:
		return label + " is invalid"
	}
}
