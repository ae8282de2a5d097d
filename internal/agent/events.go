package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/dom"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/record"
	"github.com/hpungsan/elclones/internal/selection"
)

type event interface{ isEvent() }

type pointerMove struct{ target dom.Element }

type pointerOut struct{}

type click struct {
	target dom.Element
	reply  chan selection.Action
}

type captured struct {
	rec record.Record
	err error
}

type loaded struct {
	container dom.Element
	records   []record.Record
	err       error
}

type statusReq struct{ reply chan Status }

type syncReq struct{ done chan struct{} }

func (pointerMove) isEvent() {}
func (pointerOut) isEvent()  {}
func (click) isEvent()       {}
func (captured) isEvent()    {}
func (loaded) isEvent()      {}
func (statusReq) isEvent()   {}
func (syncReq) isEvent()     {}

// Status is a copy of the agent's selection.
type Status struct {
	Enabled     bool           `json:"enabled"`
	Highlighted []string       `json:"highlighted"`
	Mode        selection.Kind `json:"-"`
	ModeName    string         `json:"mode"`
}

func (a *Agent) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case pointerMove:
		a.pointerMove(ctx, ev.target)
	case pointerOut:
		if err := a.overlay.Hide(ctx); err != nil {
			a.log.Debug("overlay hide failed", zap.Error(err))
		}
	case click:
		action := a.sel.Decide()
		ev.reply <- action
		switch action.Kind {
		case selection.Capture:
			a.capture(ctx, ev.target)
		case selection.Clone:
			a.startClone(ctx, ev.target)
		case selection.None:
		}
	case captured:
		a.finishCapture(ev)
	case loaded:
		a.finishClone(ctx, ev)
	case statusReq:
		mode := a.sel.Mode()
		ev.reply <- Status{
			Enabled:     a.sel.Enabled(),
			Highlighted: a.sel.Highlighted(),
			Mode:        mode.Kind,
			ModeName:    mode.Kind.String(),
		}
	case syncReq:
		if a.pending == 0 {
			close(ev.done)
			return
		}
		a.waiters = append(a.waiters, ev.done)
	}
}

// pointerMove places the overlay over target. It reads geometry and writes
// the overlay only; it never touches the store.
func (a *Agent) pointerMove(ctx context.Context, target dom.Element) {
	if !a.sel.HoverActive() {
		return
	}
	r, err := target.BoundingRect(ctx)
	if err != nil {
		a.log.Debug("overlay rect unavailable", zap.Error(err))
		return
	}
	if err := a.overlay.Show(ctx, r); err != nil {
		a.log.Debug("overlay show failed", zap.Error(err))
	}
}

// PointerMove reports the pointer over target.
func (a *Agent) PointerMove(target dom.Element) error {
	return a.post(pointerMove{target: target})
}

// PointerOut reports the pointer leaving an element.
func (a *Agent) PointerOut() error {
	return a.post(pointerOut{})
}

// Click reports a click on target and returns the decision made for it.
// Capture or clone continue in the background after Click returns.
func (a *Agent) Click(ctx context.Context, target dom.Element) (selection.Action, error) {
	reply := make(chan selection.Action, 1)
	if err := a.post(click{target: target, reply: reply}); err != nil {
		return selection.Action{}, err
	}
	return await(ctx, a, reply, "click")
}

// Status returns a copy of the current selection.
func (a *Agent) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := a.post(statusReq{reply: reply}); err != nil {
		return Status{}, err
	}
	return await(ctx, a, reply, "status")
}

// Sync waits until every capture and clone started so far has finished.
func (a *Agent) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := a.post(syncReq{done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.NewCancelled("sync")
	}
}

func await[T any](ctx context.Context, a *Agent, reply chan T, op string) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-a.stopped:
		select {
		case v := <-reply:
			return v, nil
		default:
		}
		return zero, errors.NewNoReceiver(a.id)
	case <-ctx.Done():
		return zero, errors.NewCancelled(op)
	}
}
