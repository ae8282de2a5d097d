// Package roddom implements the dom interfaces over a live browser page
// driven through rod.
package roddom

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hpungsan/elclones/internal/dom"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/style"
)

const (
	metaJS = `() => ({
		tag: this.tagName,
		id: this.id || "",
		classes: Array.from(this.classList || []),
	})`

	computedStyleJS = `() => {
		const cs = window.getComputedStyle(this);
		const out = [];
		for (let i = 0; i < cs.length; i++) {
			const name = cs[i];
			out.push([name, cs.getPropertyValue(name)]);
		}
		return out;
	}`

	setPropertyJS = `(name, value) => { this.style.setProperty(name, value); }`

	appendJS = `(child) => { this.appendChild(child); }`

	rectJS = `() => {
		const r = this.getBoundingClientRect();
		return {
			top: r.top + window.scrollY,
			left: r.left + window.scrollX,
			width: r.width,
			height: r.height,
		};
	}`

	fragmentJS = `(markup) => {
		const container = document.createElement("div");
		container.innerHTML = markup;
		return container.firstElementChild;
	}`
)

const (
	showOverlayJS = `(r) => {
		if (window.__elclonesOverlay) window.__elclonesOverlay.show(r);
	}`

	hideOverlayJS = `() => {
		if (window.__elclonesOverlay) window.__elclonesOverlay.hide();
	}`
)

// Overlay draws the hover box through the page script's overlay hooks.
// Before the script is installed Show and Hide do nothing.
type Overlay struct {
	page *rod.Page
}

var _ dom.Overlay = (*Overlay)(nil)

// NewOverlay returns the overlay of page.
func NewOverlay(page *rod.Page) *Overlay {
	return &Overlay{page: page}
}

func (o *Overlay) Show(ctx context.Context, r dom.Rect) error {
	_, err := o.page.Context(ctx).Eval(showOverlayJS, r)
	return err
}

func (o *Overlay) Hide(ctx context.Context) error {
	_, err := o.page.Context(ctx).Eval(hideOverlayJS)
	return err
}

// Document is a live page.
type Document struct {
	page *rod.Page
}

// New wraps page.
func New(page *rod.Page) *Document {
	return &Document{page: page}
}

// Page returns the wrapped page.
func (d *Document) Page() *rod.Page {
	return d.page
}

// ParseFragment parses markup in a detached div and returns its first
// element child.
func (d *Document) ParseFragment(ctx context.Context, markup string) (dom.Element, bool, error) {
	return d.ElementFromJS(ctx, fragmentJS, markup)
}

// ElementFromJS evaluates a page function returning an element or null.
func (d *Document) ElementFromJS(ctx context.Context, js string, args ...any) (dom.Element, bool, error) {
	page := d.page.Context(ctx)
	obj, err := page.Evaluate(rod.Eval(js, args...).ByObject())
	if err != nil {
		return nil, false, fmt.Errorf("evaluate: %w", err)
	}
	if obj.ObjectID == "" {
		return nil, false, nil
	}
	el, err := page.ElementFromObject(obj)
	if err != nil {
		return nil, false, fmt.Errorf("resolve element: %w", err)
	}
	wrapped, err := Wrap(ctx, el)
	if err != nil {
		return nil, false, err
	}
	return wrapped, true, nil
}

// Element is a live DOM element. Tag, id and classes are read once by Wrap.
type Element struct {
	el      *rod.Element
	tag     string
	id      string
	classes []string
}

var _ dom.Element = (*Element)(nil)

// Wrap reads the element's identity and returns it as a dom.Element.
func Wrap(ctx context.Context, el *rod.Element) (*Element, error) {
	res, err := el.Context(ctx).Eval(metaJS)
	if err != nil {
		return nil, fmt.Errorf("read element: %w", err)
	}
	var meta struct {
		Tag     string   `json:"tag"`
		ID      string   `json:"id"`
		Classes []string `json:"classes"`
	}
	if err := res.Value.Unmarshal(&meta); err != nil {
		return nil, fmt.Errorf("decode element: %w", err)
	}
	return &Element{el: el, tag: meta.Tag, id: meta.ID, classes: meta.Classes}, nil
}

// Rod returns the underlying rod element.
func (e *Element) Rod() *rod.Element { return e.el }

func (e *Element) TagName() string     { return e.tag }
func (e *Element) ID() string          { return e.id }
func (e *Element) ClassList() []string { return e.classes }

func (e *Element) OuterHTML(ctx context.Context) (string, error) {
	return e.el.Context(ctx).HTML()
}

// ComputedStyle enumerates getComputedStyle in the browser's order.
func (e *Element) ComputedStyle(ctx context.Context) ([]style.Property, error) {
	res, err := e.el.Context(ctx).Eval(computedStyleJS)
	if err != nil {
		return nil, err
	}
	var pairs [][2]string
	if err := res.Value.Unmarshal(&pairs); err != nil {
		return nil, fmt.Errorf("decode computed style: %w", err)
	}
	props := make([]style.Property, len(pairs))
	for i, p := range pairs {
		props[i] = style.Property{Name: p[0], Value: p[1]}
	}
	return props, nil
}

func (e *Element) SetStyleProperty(ctx context.Context, name, value string) error {
	_, err := e.el.Context(ctx).Eval(setPropertyJS, name, value)
	return err
}

func (e *Element) AppendChild(ctx context.Context, child dom.Element) error {
	c, ok := child.(*Element)
	if !ok {
		return errors.NewInvalidRequest("child element belongs to another document")
	}
	_, err := e.el.Context(ctx).Eval(appendJS, c.el.Object)
	return err
}

func (e *Element) BoundingRect(ctx context.Context) (dom.Rect, error) {
	res, err := e.el.Context(ctx).Eval(rectJS)
	if err != nil {
		return dom.Rect{}, err
	}
	var r dom.Rect
	if err := res.Value.Unmarshal(&r); err != nil {
		return dom.Rect{}, fmt.Errorf("decode rect: %w", err)
	}
	return r, nil
}
