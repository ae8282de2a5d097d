// Package htmldom implements the dom interfaces over a parsed HTML document.
// There is no layout engine: computed style is the cascaded value from the
// document's <style> sheets and inline styles, without inheritance, and
// bounding rectangles are always zero. It is used to replay and test the
// capture and clone paths without a browser.
package htmldom

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hpungsan/elclones/internal/dom"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/style"
)

// Document is a parsed page. All element operations serialize on the
// document, so a Document may be shared between an agent loop and readers.
type Document struct {
	mu    sync.Mutex
	doc   *goquery.Document
	rules []rule
}

type rule struct {
	sel   cascadia.Sel
	spec  cascadia.Specificity
	decls []*css.Declaration
	order int
}

// Parse parses a full HTML document and its style sheets. Selectors and
// at-rules the parser does not understand are ignored.
func Parse(markup string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	d := &Document{doc: doc}
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		sheet, err := parser.Parse(s.Text())
		if err != nil {
			return
		}
		for _, r := range sheet.Rules {
			if r.Kind != css.QualifiedRule {
				continue
			}
			for _, text := range r.Selectors {
				sel, err := cascadia.Parse(text)
				if err != nil {
					continue
				}
				d.rules = append(d.rules, rule{
					sel:   sel,
					spec:  sel.Specificity(),
					decls: r.Declarations,
					order: len(d.rules),
				})
			}
		}
	})
	return d, nil
}

// Find returns the first element matching selector.
func (d *Document) Find(selector string) (*Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return d.wrap(sel.Get(0)), true
}

// HTML renders the whole document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}

// ParseFragment parses markup inside a detached div and returns its first
// element child.
func (d *Document) ParseFragment(_ context.Context, markup string) (dom.Element, bool, error) {
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), container)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse fragment: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var first *html.Node
	for _, n := range nodes {
		container.AppendChild(n)
		if first == nil && n.Type == html.ElementNode {
			first = n
		}
	}
	if first == nil {
		return nil, false, nil
	}
	return d.wrap(first), true, nil
}

func (d *Document) wrap(n *html.Node) *Element {
	return &Element{
		doc:     d,
		node:    n,
		tag:     n.Data,
		id:      attr(n, "id"),
		classes: strings.Fields(attr(n, "class")),
	}
}

// Element is a node of a Document.
type Element struct {
	doc     *Document
	node    *html.Node
	tag     string
	id      string
	classes []string
}

var _ dom.Element = (*Element)(nil)

// TagName returns the upper-case tag name, as the DOM reports it for HTML.
func (e *Element) TagName() string     { return strings.ToUpper(e.tag) }
func (e *Element) ID() string          { return e.id }
func (e *Element) ClassList() []string { return e.classes }

// OuterHTML renders the element and its subtree.
func (e *Element) OuterHTML(context.Context) (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, e.node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Attr returns an attribute value.
func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Children returns the element children in order.
func (e *Element) Children() []*Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

type weighted struct {
	decl   *css.Declaration
	inline bool
	spec   cascadia.Specificity
	order  int
}

// ComputedStyle returns the cascaded declarations for the element, sorted
// by property name.
func (e *Element) ComputedStyle(context.Context) ([]style.Property, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var all []weighted
	for _, r := range e.doc.rules {
		if !r.sel.Match(e.node) {
			continue
		}
		for i, decl := range r.decls {
			all = append(all, weighted{decl: decl, spec: r.spec, order: r.order*1000 + i})
		}
	}
	inline, err := parser.ParseDeclarations(attr(e.node, "style"))
	if err != nil {
		return nil, fmt.Errorf("invalid inline style: %w", err)
	}
	for i, decl := range inline {
		all = append(all, weighted{decl: decl, inline: true, order: i})
	}

	// Ascending precedence; the last declaration of a property wins.
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.decl.Important != b.decl.Important {
			return !a.decl.Important
		}
		if a.inline != b.inline {
			return !a.inline
		}
		if a.spec != b.spec {
			return a.spec.Less(b.spec)
		}
		return a.order < b.order
	})

	values := make(map[string]string)
	for _, w := range all {
		values[strings.ToLower(w.decl.Property)] = w.decl.Value
	}
	props := make([]style.Property, 0, len(values))
	for name, value := range values {
		props = append(props, style.Property{Name: name, Value: value})
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	return props, nil
}

// SetStyleProperty sets or, with an empty value, removes an inline
// declaration. Names that are not CSS identifiers are rejected.
func (e *Element) SetStyleProperty(_ context.Context, name, value string) error {
	if !validPropertyName(name) {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid style property name %q", name))
	}

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	decls, err := parser.ParseDeclarations(attr(e.node, "style"))
	if err != nil {
		return fmt.Errorf("invalid inline style: %w", err)
	}

	important := false
	if v := strings.TrimSpace(value); strings.HasSuffix(v, "!important") {
		value = strings.TrimSpace(strings.TrimSuffix(v, "!important"))
		important = true
	}

	out := decls[:0]
	replaced := false
	for _, d := range decls {
		if d.Property != name {
			out = append(out, d)
			continue
		}
		if value == "" || replaced {
			continue
		}
		d.Value, d.Important = value, important
		out = append(out, d)
		replaced = true
	}
	if !replaced && value != "" {
		out = append(out, &css.Declaration{Property: name, Value: value, Important: important})
	}

	setAttr(e.node, "style", serializeDeclarations(out))
	return nil
}

// AppendChild moves child, which must belong to the same document, to the
// end of e's children.
func (e *Element) AppendChild(_ context.Context, child dom.Element) error {
	c, ok := child.(*Element)
	if !ok || c.doc != e.doc {
		return errors.NewInvalidRequest("child element belongs to another document")
	}

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	for n := e.node; n != nil; n = n.Parent {
		if n == c.node {
			return errors.NewInvalidRequest("cannot append an element to its own subtree")
		}
	}
	if c.node.Parent != nil {
		c.node.Parent.RemoveChild(c.node)
	}
	e.node.AppendChild(c.node)
	return nil
}

// BoundingRect is always zero; there is no layout.
func (e *Element) BoundingRect(context.Context) (dom.Rect, error) {
	return dom.Rect{}, nil
}

func validPropertyName(name string) bool {
	if strings.HasPrefix(name, "--") {
		return len(name) > 2
	}
	s := strings.TrimPrefix(name, "-")
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

func serializeDeclarations(decls []*css.Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		if d.Important {
			parts = append(parts, d.Property+": "+d.Value+" !important;")
		} else {
			parts = append(parts, d.Property+": "+d.Value+";")
		}
	}
	return strings.Join(parts, " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			if val == "" {
				n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			} else {
				n.Attr[i].Val = val
			}
			return
		}
	}
	if val != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	}
}
