// Package clone re-materializes captured records into a document.
package clone

import (
	"context"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/dom"
	"github.com/hpungsan/elclones/internal/logging"
	"github.com/hpungsan/elclones/internal/record"
	"github.com/hpungsan/elclones/internal/style"
)

// Highlights answers membership in the highlighted set.
type Highlights interface {
	IsHighlighted(id string) bool
}

// Result describes one Clone call. Cloned is false for the silent no-op
// cases: no highlighted record, or markup without an element.
type Result struct {
	Cloned   bool
	RecordID string
	Styles   style.ApplyResult
}

// Renderer clones records into containers of one document.
type Renderer struct {
	doc      dom.Document
	log      *zap.Logger
	sanitize *bluemonday.Policy
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSanitizer filters markup through p before it is parsed.
func WithSanitizer(p *bluemonday.Policy) Option {
	return func(r *Renderer) { r.sanitize = p }
}

// NewRenderer returns a renderer for doc.
func NewRenderer(doc dom.Document, log *zap.Logger, opts ...Option) *Renderer {
	r := &Renderer{doc: doc, log: logging.OrNop(log).Named("clone")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SanitizePolicy strips scripts and event handlers but keeps inline styles,
// classes and common interactive elements, so a captured control still
// clones as itself.
func SanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyling()
	p.AllowAttrs("style").Globally()
	p.AllowElements("button", "label", "section", "article", "header", "footer", "nav", "aside", "main", "figure", "figcaption")
	p.AllowAttrs("type", "name", "value", "disabled").OnElements("button")
	return p
}

// Pick returns the first record in records whose id is highlighted.
// With several candidates the choice follows the order the store returned.
func Pick(records []record.Record, h Highlights) (record.Record, bool) {
	for _, r := range records {
		if h.IsHighlighted(r.ID) {
			return r, true
		}
	}
	return record.Record{}, false
}

// Clone picks a highlighted record, rebuilds its element, restores its
// style snapshot and appends it to container. Nothing in the document
// changes unless the result reports Cloned.
func (r *Renderer) Clone(ctx context.Context, container dom.Element, records []record.Record, h Highlights) (Result, error) {
	rec, ok := Pick(records, h)
	if !ok {
		r.log.Debug("no highlighted record to clone", zap.Int("records", len(records)))
		return Result{}, nil
	}

	snap, err := style.Decode(rec.Styles)
	if err != nil {
		return Result{RecordID: rec.ID}, fmt.Errorf("record %s: %w", rec.ID, err)
	}

	markup := rec.HTML
	if r.sanitize != nil {
		markup = r.sanitize.Sanitize(markup)
	}

	el, ok, err := r.doc.ParseFragment(ctx, markup)
	if err != nil {
		return Result{RecordID: rec.ID}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if !ok {
		r.log.Debug("record markup has no element", zap.String("id", rec.ID))
		return Result{RecordID: rec.ID}, nil
	}

	applied := style.Apply(ctx, el, snap, r.log)

	if err := container.AppendChild(ctx, el); err != nil {
		return Result{RecordID: rec.ID, Styles: applied}, fmt.Errorf("append clone of %s: %w", rec.ID, err)
	}

	r.log.Info("element cloned",
		zap.String("id", rec.ID),
		zap.String("name", rec.Name),
		zap.Int("styles_applied", applied.Applied),
		zap.Int("styles_failed", applied.Failed))
	return Result{Cloned: true, RecordID: rec.ID, Styles: applied}, nil
}
