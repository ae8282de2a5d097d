// Package domtest provides dom doubles for tests.
package domtest

import (
	"context"
	"sync"

	"github.com/hpungsan/elclones/internal/dom"
)

// RecordingOverlay remembers overlay state instead of drawing it.
type RecordingOverlay struct {
	mu      sync.Mutex
	visible bool
	rect    dom.Rect
	shows   int
}

func (o *RecordingOverlay) Show(_ context.Context, r dom.Rect) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visible = true
	o.rect = r
	o.shows++
	return nil
}

func (o *RecordingOverlay) Hide(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visible = false
	return nil
}

// State returns whether the overlay is shown and where it was last placed.
func (o *RecordingOverlay) State() (visible bool, r dom.Rect) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible, o.rect
}

// Shows counts Show calls.
func (o *RecordingOverlay) Shows() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shows
}

var _ dom.Overlay = (*RecordingOverlay)(nil)
