package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/control"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/ops"
	"github.com/hpungsan/elclones/internal/style"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "elements", "help"
}

// ListPageData is the template data for the element list page.
type ListPageData struct {
	PageData
	Enabled    bool
	Items      []control.Item
	Pagination ops.Pagination
}

// DetailPageData is the template data for the element detail page.
type DetailPageData struct {
	PageData
	Element     *ops.FetchOutput
	Highlighted bool
	Preview     template.HTML
	Styles      style.Snapshot
	StylesError string
}

// HelpPageData is the template data for the help page.
type HelpPageData struct {
	PageData
	Body template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	help      template.HTML
	markdown  *converter.Converter
	version   string
	log       *zap.Logger
}

// NewRenderer parses the page templates and the help text from templateFS.
func NewRenderer(templateFS fs.FS, version string, log *zap.Logger) (*Renderer, error) {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
	}

	layout, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		"list":   "list.html",
		"detail": "detail.html",
		"help":   "help.html",
		"error":  "error.html",
	}
	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	helpMD, err := fs.ReadFile(templateFS, "help.md")
	if err != nil {
		return nil, fmt.Errorf("read help: %w", err)
	}

	return &Renderer{
		templates: templates,
		help:      renderMarkdown(string(helpMD)),
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		version: version,
		log:     log,
	}, nil
}

// page fills the common page fields.
func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error("template not found", zap.String("name", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.log.Error("template execution failed", zap.String("name", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
// INTERNAL errors are logged and shown with a fixed message.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	elErr, ok := errors.As(err)
	if !ok {
		elErr = errors.NewInternal(err)
	}
	status := elErr.Status
	message := elErr.Message
	if elErr.Code == errors.ErrInternal {
		r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		message = "an internal error occurred"
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(elErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", status), ""),
		StatusCode: status,
		Message:    message,
	})
}

// preview converts captured markup to markdown and renders it back as
// HTML. Raw HTML is not passed through, so scripts and handlers in the
// capture never reach the control surface.
func (r *Renderer) preview(markup string) template.HTML {
	md, err := r.markdown.ConvertString(markup)
	if err != nil {
		r.log.Debug("markdown conversion failed", zap.Error(err))
		return template.HTML("<pre>" + template.HTMLEscapeString(markup) + "</pre>")
	}
	if strings.TrimSpace(md) == "" {
		return template.HTML("<p><em>no text content</em></p>")
	}
	return renderMarkdown(md)
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats an epoch-millisecond timestamp as "2006-01-02 15:04:05" UTC.
func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
