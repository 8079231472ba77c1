package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
)

// Layouts, each with a pages/<layout>/ directory of pages rendered inside it.
var layouts = []string{"public", "auth", "admin"}

// Renderer manages template parsing and rendering with isolated template sets.
// It supports three layouts:
//   - "public" layout for the blog (home, listing, post, create, my posts)
//   - "auth" layout for login, register and the admin sign-in
//   - "admin" layout for the back-office
//
// Templates are organized as:
//   - layouts/public.html, layouts/auth.html, layouts/admin.html - base layouts
//   - partials/*.html - fragments shared by every layout
//   - pages/<layout>/*.html - pages, stored as "<layout>/<name>"
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
	fsys      fs.FS
	isDev     bool
	mu        sync.RWMutex
}

// RendererConfig holds configuration for the renderer.
type RendererConfig struct {
	// FS is the embedded templates tree.
	FS fs.FS

	// TemplatesDir, when set in development, replaces FS with the directory on
	// disk and templates are re-parsed on every render.
	TemplatesDir string

	Logger *slog.Logger
	IsDev  bool
}

// NewRenderer creates a new template renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		logger:    cfg.Logger,
		fsys:      cfg.FS,
	}

	if cfg.IsDev && cfg.TemplatesDir != "" {
		r.fsys = os.DirFS(cfg.TemplatesDir)
		r.isDev = true
	}
	if r.fsys == nil {
		return nil, fmt.Errorf("renderer: no template filesystem configured")
	}

	if err := r.loadTemplates(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Renderer) loadTemplates() error {
	templates := make(map[string]*template.Template)

	partialFiles, err := fs.Glob(r.fsys, "partials/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob partials: %w", err)
	}

	for _, layout := range layouts {
		base, err := template.New(layout).Funcs(TemplateFuncs()).ParseFS(r.fsys, "layouts/"+layout+".html")
		if err != nil {
			return fmt.Errorf("failed to parse %s layout: %w", layout, err)
		}

		// Parse partials into each layout so pages can use {{template "name"}}
		if len(partialFiles) > 0 {
			base, err = base.ParseFS(r.fsys, partialFiles...)
			if err != nil {
				return fmt.Errorf("failed to parse partials into %s layout: %w", layout, err)
			}
		}

		pages, err := fs.Glob(r.fsys, "pages/"+layout+"/*.html")
		if err != nil {
			return fmt.Errorf("failed to glob %s pages: %w", layout, err)
		}

		for _, page := range pages {
			pageTmpl, err := base.Clone()
			if err != nil {
				return fmt.Errorf("failed to clone %s template for %s: %w", layout, page, err)
			}

			pageTmpl, err = pageTmpl.ParseFS(r.fsys, page)
			if err != nil {
				return fmt.Errorf("failed to parse page %s: %w", page, err)
			}

			// Store as "public/home", "admin/dashboard", etc.
			name := strings.TrimSuffix(path.Base(page), path.Ext(page))
			templates[layout+"/"+name] = pageTmpl
		}
	}

	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()

	r.logger.Debug("templates loaded", "count", len(templates))
	return nil
}

// Reload re-parses all templates. Useful for development.
func (r *Renderer) Reload() error {
	return r.loadTemplates()
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	// In dev mode, reload templates on each request
	if r.isDev {
		if err := r.Reload(); err != nil {
			return nil, fmt.Errorf("template reload failed: %w", err)
		}
	}

	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	return tmpl, nil
}

// Render renders a template to an io.Writer.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, err := r.lookup(name)
	if err != nil {
		return err
	}
	return tmpl.ExecuteTemplate(w, layoutOf(name), data)
}

// RenderHTTP renders a template with status 200.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, name string, data any) {
	r.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template directly to an http.ResponseWriter.
func (r *Renderer) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	// Render to buffer first to catch errors before writing headers
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("template execution failed", "name", name, "error", err)
		http.Error(w, "Template execution failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// layoutOf determines which base template to execute.
func layoutOf(name string) string {
	layout, _, _ := strings.Cut(name, "/")
	return layout
}

// ListTemplates returns a list of all loaded template names.
// Useful for debugging.
func (r *Renderer) ListTemplates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}
