package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/agent"
	"github.com/hpungsan/elclones/internal/bus"
	"github.com/hpungsan/elclones/internal/clone"
	"github.com/hpungsan/elclones/internal/dom"
	"github.com/hpungsan/elclones/internal/dom/roddom"
	"github.com/hpungsan/elclones/internal/logging"
	"github.com/hpungsan/elclones/internal/selection"
	"github.com/hpungsan/elclones/internal/store"
)

//go:embed agent.js
var pageScript string

const (
	bindingName = "__elclones"

	takeTargetJS = `(seq) => {
		const t = window.__elclonesTargets[seq];
		delete window.__elclonesTargets[seq];
		return t || null;
	}`

	hoverTargetJS = `() => window.__elclonesHover || null`

	setArmedJS = `(armed) => {
		if (window.__elclonesSetArmed) window.__elclonesSetArmed(armed);
	}`
)

// DefaultTab is the mailbox name of the attached page.
const DefaultTab = "tab"

// AttachConfig wires a page to the rest of the process.
type AttachConfig struct {
	Store        *store.Handle
	Bus          *bus.Bus
	Tab          string // mailbox name, default DefaultTab
	CloneOptions []clone.Option
	Logger       *zap.Logger
}

// bindingCall is the payload the page script sends through the binding.
type bindingCall struct {
	Kind string `json:"kind"`
	Seq  int    `json:"seq"`
}

type pageEvent struct {
	call     *bindingCall
	navigate bool
}

// session is one agent serving one document.
type session struct {
	agent  *agent.Agent
	cancel context.CancelFunc
	done   chan struct{}
}

// Attach runs a page agent on page until ctx is done. The page script is
// installed on every new document; each main-frame navigation tears the
// agent down and starts a fresh one, registered as the active tab.
func Attach(ctx context.Context, page *rod.Page, cfg AttachConfig) error {
	if cfg.Tab == "" {
		cfg.Tab = DefaultTab
	}
	log := logging.OrNop(cfg.Logger).Named("browser")
	page = page.Context(ctx)

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		return fmt.Errorf("add binding: %w", err)
	}
	if _, err := page.EvalOnNewDocument(pageScript); err != nil {
		return fmt.Errorf("install page script: %w", err)
	}
	if _, err := page.Eval(`() => {` + pageScript + `}`); err != nil {
		log.Warn("page script not installed in current document", zap.Error(err))
	}

	events := make(chan pageEvent, 256)
	armed := make(chan bool, 1)

	wait := page.EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != bindingName {
				return
			}
			var call bindingCall
			if err := json.Unmarshal([]byte(e.Payload), &call); err != nil {
				log.Warn("bad binding payload", zap.Error(err))
				return
			}
			select {
			case events <- pageEvent{call: &call}:
			default:
				// Hover reports are superseded by the next one.
				if call.Kind != "move" {
					log.Warn("page event dropped", zap.String("kind", call.Kind))
				}
			}
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			select {
			case events <- pageEvent{navigate: true}:
			case <-ctx.Done():
			}
		},
	)
	go wait()

	doc := roddom.New(page)
	overlay := roddom.NewOverlay(page)
	start := func() (*session, error) {
		cfg.Bus.Unregister(cfg.Tab)
		mb, err := cfg.Bus.Register(cfg.Tab)
		if err != nil {
			return nil, err
		}
		cfg.Bus.SetActive(cfg.Tab)

		a := agent.New(agent.Config{
			Document:     doc,
			Store:        cfg.Store,
			Mailbox:      mb,
			Overlay:      overlay,
			CloneOptions: cfg.CloneOptions,
			OnArmed: func(v bool) {
				// Latest value wins; the pusher applies it to the page.
				select {
				case <-armed:
				default:
				}
				armed <- v
			},
			Logger: cfg.Logger,
		})
		sctx, cancel := context.WithCancel(ctx)
		s := &session{agent: a, cancel: cancel, done: make(chan struct{})}
		go func() {
			defer close(s.done)
			_ = a.Run(sctx)
		}()
		log.Info("agent attached", zap.String("agent", a.ID()), zap.String("tab", cfg.Tab))
		return s, nil
	}
	stop := func(s *session) {
		cfg.Bus.Unregister(cfg.Tab)
		s.cancel()
		<-s.done
	}

	cur, err := start()
	if err != nil {
		return err
	}
	defer func() { stop(cur) }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case v := <-armed:
			if _, err := page.Eval(setArmedJS, v); err != nil {
				log.Debug("push armed flag failed", zap.Error(err))
			}

		case ev := <-events:
			if ev.navigate {
				stop(cur)
				if cur, err = start(); err != nil {
					return err
				}
				continue
			}
			handleCall(ctx, doc, cur.agent, ev.call, log)
		}
	}
}

// pageAgent is the part of the agent that page events drive.
type pageAgent interface {
	Click(ctx context.Context, target dom.Element) (selection.Action, error)
	PointerMove(target dom.Element) error
	PointerOut() error
}

// elementResolver turns a page function result into an element.
type elementResolver interface {
	ElementFromJS(ctx context.Context, js string, args ...any) (dom.Element, bool, error)
}

func handleCall(ctx context.Context, doc elementResolver, a pageAgent, call *bindingCall, log *zap.Logger) {
	switch call.Kind {
	case "move":
		target, ok, err := doc.ElementFromJS(ctx, hoverTargetJS)
		if err != nil {
			log.Debug("resolve hover target failed", zap.Error(err))
			return
		}
		if !ok {
			return
		}
		if err := a.PointerMove(target); err != nil {
			log.Debug("pointer move not handled", zap.Error(err))
		}
	case "out":
		if err := a.PointerOut(); err != nil {
			log.Debug("pointer out not handled", zap.Error(err))
		}
	case "click":
		target, ok, err := doc.ElementFromJS(ctx, takeTargetJS, call.Seq)
		if err != nil {
			log.Warn("resolve click target failed", zap.Error(err))
			return
		}
		if !ok {
			log.Debug("click target gone", zap.Int("seq", call.Seq))
			return
		}
		action, err := a.Click(ctx, target)
		if err != nil {
			log.Warn("click not handled", zap.Error(err))
			return
		}
		log.Debug("click", zap.Stringer("action", action.Kind))
	default:
		log.Debug("unknown binding call", zap.String("kind", call.Kind))
	}
}
