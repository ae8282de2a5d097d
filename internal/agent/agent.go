// Package agent is the page-resident context. One Agent serves one page
// lifetime: it owns the selection state, reacts to pointer events and
// control messages on a single goroutine, and drives capture and clone.
//
// Store I/O runs off the loop. Capture reads the DOM on the loop, then
// writes in the background; clone loads records in the background and
// mutates the DOM back on the loop, against the selection current at that
// moment.
package agent

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/bus"
	"github.com/hpungsan/elclones/internal/clone"
	"github.com/hpungsan/elclones/internal/dom"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/logging"
	"github.com/hpungsan/elclones/internal/record"
	"github.com/hpungsan/elclones/internal/selection"
	"github.com/hpungsan/elclones/internal/store"
	"github.com/hpungsan/elclones/internal/style"
)

// NewID returns a new agent id.
func NewID() string {
	return ulid.Make().String()
}

// Config wires an Agent to its page.
type Config struct {
	// ID names the agent; generated when empty
	ID string

	Document dom.Document
	Store    *store.Handle
	Mailbox  *bus.Mailbox

	// Overlay defaults to dom.NopOverlay
	Overlay dom.Overlay

	// CloneOptions configure the renderer, e.g. clone.WithSanitizer
	CloneOptions []clone.Option

	// OnArmed receives HoverActive whenever it changes, starting with false.
	// It runs on the agent loop and must not block.
	OnArmed func(armed bool)

	Logger *zap.Logger
}

// Agent is the page agent.
type Agent struct {
	id       string
	doc      dom.Document
	store    *store.Handle
	mailbox  *bus.Mailbox
	overlay  dom.Overlay
	renderer *clone.Renderer
	onArmed  func(bool)
	log      *zap.Logger

	// newRecordID and now are replaced in tests
	newRecordID func() string
	now         func() int64

	events  chan event
	stopped chan struct{}
	tasks   sync.WaitGroup

	// loop-owned
	sel     *selection.State
	armed   bool
	pending int
	waiters []chan struct{}
}

// New builds an agent. Call Run to start it.
func New(cfg Config) *Agent {
	id := cfg.ID
	if id == "" {
		id = NewID()
	}
	log := logging.OrNop(cfg.Logger).Named("agent").With(zap.String("agent", id))

	overlay := cfg.Overlay
	if overlay == nil {
		overlay = dom.NopOverlay{}
	}
	onArmed := cfg.OnArmed
	if onArmed == nil {
		onArmed = func(bool) {}
	}

	return &Agent{
		id:          id,
		doc:         cfg.Document,
		store:       cfg.Store,
		mailbox:     cfg.Mailbox,
		overlay:     overlay,
		renderer:    clone.NewRenderer(cfg.Document, log, cfg.CloneOptions...),
		onArmed:     onArmed,
		log:         log,
		newRecordID: record.NewID,
		now:         record.Now,
		events:      make(chan event, 256),
		stopped:     make(chan struct{}),
		sel:         selection.New(),
	}
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.id }

// Run processes events and messages until ctx is done or the mailbox is
// unregistered, then tears the agent down. In-flight store writes are
// allowed to finish before Run returns.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("agent started")
	a.onArmed(false)

	var mailboxC <-chan struct{}
	var mailboxDone <-chan struct{}
	if a.mailbox != nil {
		mailboxC = a.mailbox.Notify()
		mailboxDone = a.mailbox.Done()
		a.applyMessages()
	}

	defer a.teardown(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-mailboxDone:
			return nil
		case <-mailboxC:
			a.applyMessages()
		case ev := <-a.events:
			// Messages sent before an event was posted apply first.
			if a.mailbox != nil {
				a.applyMessages()
			}
			a.handle(ctx, ev)
		}
	}
}

// teardown drops the selection and hides the overlay. The store is
// shared and outlives the agent.
func (a *Agent) teardown(ctx context.Context) {
	close(a.stopped)
	_ = a.overlay.Hide(context.WithoutCancel(ctx))
	a.sel = selection.New()
	a.setArmed()
	a.tasks.Wait()
	for _, w := range a.waiters {
		close(w)
	}
	a.waiters = nil
	a.log.Info("agent stopped")
}

func (a *Agent) applyMessages() {
	for _, m := range a.mailbox.Drain() {
		changed := a.sel.Apply(m)
		a.log.Debug("message applied",
			zap.String("type", m.Type()),
			zap.Bool("changed", changed),
			zap.Stringer("mode", a.sel.Mode().Kind))
	}
	a.setArmed()
}

func (a *Agent) setArmed() {
	armed := a.sel.HoverActive()
	if armed == a.armed {
		return
	}
	a.armed = armed
	a.onArmed(armed)
}

// post hands ev to the loop. It fails once the agent has stopped.
func (a *Agent) post(ev event) error {
	select {
	case <-a.stopped:
		return errors.NewNoReceiver(a.id)
	default:
	}
	select {
	case a.events <- ev:
		return nil
	case <-a.stopped:
		return errors.NewNoReceiver(a.id)
	}
}

// spawn runs fn off the loop and counts it as pending until its result
// event has been handled.
func (a *Agent) spawn(fn func()) {
	a.pending++
	a.tasks.Add(1)
	go func() {
		defer a.tasks.Done()
		fn()
	}()
}

func (a *Agent) taskDone() {
	a.pending--
	if a.pending == 0 {
		for _, w := range a.waiters {
			close(w)
		}
		a.waiters = nil
	}
}

func (a *Agent) capture(ctx context.Context, target dom.Element) {
	st, ok := a.store.Store()
	if !ok {
		a.log.Debug("capture skipped, store unavailable")
		return
	}

	html, err := target.OuterHTML(ctx)
	if err != nil {
		a.log.Warn("capture failed to read markup", zap.Error(err))
		return
	}
	styles, err := style.Encode(ctx, target)
	if err != nil {
		a.log.Warn("capture failed to read style", zap.Error(err))
		return
	}
	rec := record.Record{
		ID:        a.newRecordID(),
		HTML:      html,
		Styles:    styles,
		Timestamp: a.now(),
		Name:      record.DisplayName(target.TagName(), target.ID(), target.ClassList()),
	}

	writeCtx := context.WithoutCancel(ctx)
	a.spawn(func() {
		err := st.Put(writeCtx, rec)
		a.deliver(captured{rec: rec, err: err})
	})
}

func (a *Agent) startClone(ctx context.Context, container dom.Element) {
	st, ok := a.store.Store()
	if !ok {
		a.log.Debug("clone skipped, store unavailable")
		return
	}

	readCtx := context.WithoutCancel(ctx)
	a.spawn(func() {
		records, err := st.GetAll(readCtx)
		a.deliver(loaded{container: container, records: records, err: err})
	})
}

// deliver posts a task result. After teardown the result is dropped; the
// store write itself has already happened.
func (a *Agent) deliver(ev event) {
	select {
	case a.events <- ev:
	case <-a.stopped:
	}
}

func (a *Agent) finishCapture(ev captured) {
	defer a.taskDone()
	if ev.err != nil {
		a.log.Error("capture failed", zap.String("id", ev.rec.ID), zap.Error(ev.err))
		return
	}
	a.log.Info("element captured", zap.String("id", ev.rec.ID), zap.String("name", ev.rec.Name))
}

func (a *Agent) finishClone(ctx context.Context, ev loaded) {
	defer a.taskDone()
	if ev.err != nil {
		a.log.Error("clone failed to load records", zap.Error(ev.err))
		return
	}
	if _, err := a.renderer.Clone(ctx, ev.container, ev.records, a.sel); err != nil {
		a.log.Error("clone failed", zap.Error(err))
	}
}
