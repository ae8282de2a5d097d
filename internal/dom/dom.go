// Package dom is the boundary between elclones and a host document. The page
// agent and the clone renderer only talk to these interfaces; htmldom backs
// them with a parsed document and roddom with a live browser page.
package dom

import (
	"context"

	"github.com/hpungsan/elclones/internal/style"
)

// Rect is an element's border box in document coordinates (viewport rect
// plus scroll offset).
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is a node the agent can capture from or clone into.
// TagName, ID and ClassList are read when the element is obtained.
type Element interface {
	style.Source
	style.Target

	TagName() string
	ID() string
	ClassList() []string

	OuterHTML(ctx context.Context) (string, error)
	AppendChild(ctx context.Context, child Element) error
	BoundingRect(ctx context.Context) (Rect, error)
}

// Document creates detached content.
type Document interface {
	// ParseFragment parses markup inside a detached container and returns
	// its first element child. ok is false when the markup has no element.
	ParseFragment(ctx context.Context, markup string) (el Element, ok bool, err error)
}

// Overlay is the hover box that follows the pointer.
type Overlay interface {
	Show(ctx context.Context, r Rect) error
	Hide(ctx context.Context) error
}

// NopOverlay draws nothing.
type NopOverlay struct{}

func (NopOverlay) Show(context.Context, Rect) error { return nil }
func (NopOverlay) Hide(context.Context) error       { return nil }
