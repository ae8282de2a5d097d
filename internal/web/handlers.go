package web

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/control"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/ops"
	"github.com/hpungsan/elclones/internal/style"
)

// Handlers contains HTTP route handlers for the control surface.
type Handlers struct {
	surface  *control.Surface
	renderer *Renderer
	log      *zap.Logger
}

// ToggleResponse is the JSON reply of the toggle routes.
type ToggleResponse struct {
	Enabled     *bool  `json:"enabled,omitempty"`
	ID          string `json:"id,omitempty"`
	Highlighted *bool  `json:"highlighted,omitempty"`
	Delivered   bool   `json:"delivered"`
}

// HandleList handles GET /elements.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.surface.Items(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	page, p := ops.Page(items, parseIntParam(r, "limit", ops.DefaultListLimit), parseIntParam(r, "offset", 0))

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"enabled":    h.surface.Enabled(),
			"items":      page,
			"pagination": p,
		})
		return
	}

	h.renderer.renderPage(w, "list", ListPageData{
		PageData:   h.renderer.page("Elements", "elements"),
		Enabled:    h.surface.Enabled(),
		Items:      page,
		Pagination: p,
	})
}

// HandleDetail handles GET /elements/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Fetch(r.Context(), h.surface, ops.FetchInput{ID: chi.URLParam(r, "id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	data := DetailPageData{
		PageData:    h.renderer.page(out.Label, "elements"),
		Element:     out,
		Highlighted: slices.Contains(h.surface.Highlighted(), out.ID),
		Preview:     h.renderer.preview(out.HTML),
	}
	if snap, err := style.Decode(out.Styles); err != nil {
		data.StylesError = err.Error()
	} else {
		data.Styles = snap
	}
	h.renderer.renderPage(w, "detail", data)
}

// HandleExtension handles POST /extension with form field enabled=true|false.
func (h *Handlers) HandleExtension(w http.ResponseWriter, r *http.Request) {
	enabled, err := parseBoolForm(r, "enabled")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	delivered, err := h.surface.ToggleExtension(r.Context(), enabled)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, ToggleResponse{Enabled: &enabled, Delivered: delivered})
		return
	}
	http.Redirect(w, r, "/elements", http.StatusSeeOther)
}

// HandleHighlight handles POST /elements/{id}/highlight with form field
// highlighted=true|false.
func (h *Handlers) HandleHighlight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	on, err := parseBoolForm(r, "highlighted")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	delivered, err := h.surface.ToggleElementHighlight(r.Context(), id, on)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, ToggleResponse{ID: id, Highlighted: &on, Delivered: delivered})
		return
	}

	back := "/elements"
	if r.FormValue("return") == "detail" {
		back = "/elements/" + id
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// HandleHelp handles GET /help.
func (h *Handlers) HandleHelp(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, "help", HelpPageData{
		PageData: h.renderer.page("Help", "help"),
		Body:     h.renderer.help,
	})
}

// parseIntParam reads an integer query parameter, falling back to def.
func parseIntParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// parseBoolForm reads a required boolean form field.
func parseBoolForm(r *http.Request, name string) (bool, error) {
	v := r.FormValue(name)
	if v == "" {
		return false, errors.NewInvalidRequest(name + " is required")
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.NewInvalidRequest(name + " must be true or false")
	}
	return b, nil
}
