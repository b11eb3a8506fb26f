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

// Renderer manages template parsing and rendering.
//
// Templates are organized as:
//   - layouts/base.html - the page layout, defining "base"
//   - partials/*.html - fragments for htmx responses; each file defines a
//     template named after the file
//   - pages/*.html - pages rendered inside the layout
//
// Every partial is parsed into every page so pages render their initial
// fragments with the same templates htmx responses use.
type Renderer struct {
	mu        sync.RWMutex
	pages     map[string]*template.Template
	partials  *template.Template
	fsys      fs.FS
	logger    *slog.Logger
	reloadDir string
}

// RendererConfig holds configuration for the renderer.
type RendererConfig struct {
	// FS holds the embedded templates, rooted at the templates directory.
	FS     fs.FS
	Logger *slog.Logger

	// ReloadDir, if set, is re-read from disk on every render (development).
	ReloadDir string
}

// NewRenderer creates a new template renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	r := &Renderer{
		fsys:      cfg.FS,
		logger:    cfg.Logger,
		reloadDir: cfg.ReloadDir,
	}
	if r.reloadDir != "" {
		r.fsys = os.DirFS(r.reloadDir)
	}
	if r.fsys == nil {
		return nil, fmt.Errorf("renderer: no template filesystem")
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) load() error {
	partialFiles, err := fs.Glob(r.fsys, "partials/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob partials: %w", err)
	}

	partials := template.New("partials").Funcs(TemplateFuncs())
	if len(partialFiles) > 0 {
		if partials, err = partials.ParseFS(r.fsys, partialFiles...); err != nil {
			return fmt.Errorf("failed to parse partials: %w", err)
		}
	}

	base, err := partials.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone partials: %w", err)
	}
	if base, err = base.ParseFS(r.fsys, "layouts/base.html"); err != nil {
		return fmt.Errorf("failed to parse layout: %w", err)
	}

	pageFiles, err := fs.Glob(r.fsys, "pages/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob pages: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, page := range pageFiles {
		tmpl, err := base.Clone()
		if err != nil {
			return fmt.Errorf("failed to clone layout for %s: %w", page, err)
		}
		if tmpl, err = tmpl.ParseFS(r.fsys, page); err != nil {
			return fmt.Errorf("failed to parse page %s: %w", page, err)
		}
		pages[strings.TrimSuffix(path.Base(page), ".html")] = tmpl
	}

	r.mu.Lock()
	r.pages = pages
	r.partials = partials
	r.mu.Unlock()

	r.logger.Debug("templates loaded", "pages", len(pages), "partials", len(partialFiles))
	return nil
}

// reloadIfDev re-parses templates from disk in development.
func (r *Renderer) reloadIfDev() error {
	if r.reloadDir == "" {
		return nil
	}
	return r.load()
}

// Render renders a page inside the layout to w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	if err := r.reloadIfDev(); err != nil {
		return fmt.Errorf("template reload failed: %w", err)
	}

	r.mu.RLock()
	tmpl, ok := r.pages[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// RenderPartialTo renders a named partial to w.
func (r *Renderer) RenderPartialTo(w io.Writer, name string, data any) error {
	if err := r.reloadIfDev(); err != nil {
		return fmt.Errorf("template reload failed: %w", err)
	}

	r.mu.RLock()
	partials := r.partials
	r.mu.RUnlock()
	if partials.Lookup(name) == nil {
		return fmt.Errorf("partial %q not found", name)
	}
	return partials.ExecuteTemplate(w, name, data)
}

// RenderHTTP renders a page to an http.ResponseWriter.
// Output is buffered so template errors become a clean 500.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("template execution failed", "name", name, "error", err)
		http.Error(w, "Template execution failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// RenderPartial renders a partial template (for htmx responses).
func (r *Renderer) RenderPartial(w http.ResponseWriter, name string, data any) {
	r.RenderPartialStatus(w, http.StatusOK, name, data)
}

// RenderPartialStatus renders a partial with a non-200 status.
func (r *Renderer) RenderPartialStatus(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := r.RenderPartialTo(&buf, name, data); err != nil {
		r.logger.Error("partial execution failed", "name", name, "error", err)
		http.Error(w, "Template execution failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Pages returns the names of all loaded pages.
func (r *Renderer) Pages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pages))
	for name := range r.pages {
		names = append(names, name)
	}
	return names
}
