package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/bus"
	"github.com/hpungsan/elclones/internal/dom"
	"github.com/hpungsan/elclones/internal/dom/htmldom"
	"github.com/hpungsan/elclones/internal/message"
	"github.com/hpungsan/elclones/internal/selection"
	"github.com/hpungsan/elclones/internal/store"
)

// Set ELCLONES_BROWSER_TESTS=1 to run against a local browser.
func requireBrowser(t *testing.T) {
	t.Helper()
	if os.Getenv("ELCLONES_BROWSER_TESTS") == "" {
		t.Skip("ELCLONES_BROWSER_TESTS not set")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no browser found")
	}
}

func TestAttach_CaptureThenClone(t *testing.T) {
	requireBrowser(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	m := NewManager(Config{Headless: true})
	t.Cleanup(func() { m.Close() })
	page, err := m.Open(ctx, "about:blank")
	require.NoError(t, err)

	st := store.NewMemory()
	b := bus.New(nil)
	attached := make(chan error, 1)
	go func() {
		attached <- Attach(ctx, page, AttachConfig{Store: store.Ready(st), Bus: b})
	}()

	// Navigating starts a fresh agent with the page script in place.
	html := `<html><body>
<button id="save" class="primary" style="color: rgb(255, 0, 0)">Save</button>
<div id="target"></div></body></html>`
	require.NoError(t, page.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString([]byte(html))))
	require.NoError(t, page.WaitLoad())

	// The toggle is resent until the agent for the new document has it.
	require.Eventually(t, func() bool {
		_ = b.SendActive(message.ToggleExtension{Enabled: true})
		armed, err := page.Eval(`() => window.__elclonesArmed === true`)
		return err == nil && armed.Value.Bool()
	}, 10*time.Second, 100*time.Millisecond)

	btn, err := page.Element("#save")
	require.NoError(t, err)

	// Hovering while armed draws the overlay over the button.
	require.NoError(t, btn.Hover())
	require.Eventually(t, func() bool {
		shown, err := page.Eval(`() => {
			const box = document.querySelector("[data-elclones-overlay]");
			return !!box && box.style.display === "block";
		}`)
		return err == nil && shown.Value.Bool()
	}, 10*time.Second, 50*time.Millisecond)

	require.NoError(t, btn.Click(proto.InputMouseButtonLeft, 1))

	var recs []string
	require.Eventually(t, func() bool {
		all, err := st.GetAll(ctx)
		if err != nil || len(all) == 0 {
			return false
		}
		recs = []string{all[0].ID, all[0].Name}
		return true
	}, 10*time.Second, 50*time.Millisecond)
	require.Equal(t, "button#save.primary", recs[1])

	require.NoError(t, b.SendActive(message.ToggleExtension{Enabled: false}))
	require.NoError(t, b.SendActive(message.ToggleElementHighlight{ElementID: recs[0], IsHighlighted: true}))

	target, err := page.Element("#target")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		if err := target.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return false
		}
		n, err := page.Eval(`() => document.querySelectorAll("#target > button").length`)
		return err == nil && n.Value.Int() > 0
	}, 10*time.Second, 200*time.Millisecond)

	cancel()
	require.NoError(t, <-attached)
}

type resolvedCall struct {
	js   string
	args []any
}

type fakeResolver struct {
	el    dom.Element
	calls []resolvedCall
}

func (r *fakeResolver) ElementFromJS(_ context.Context, js string, args ...any) (dom.Element, bool, error) {
	r.calls = append(r.calls, resolvedCall{js: js, args: args})
	if r.el == nil {
		return nil, false, nil
	}
	return r.el, true, nil
}

type fakeAgent struct {
	events []string
	err    error
}

func (a *fakeAgent) Click(_ context.Context, target dom.Element) (selection.Action, error) {
	a.events = append(a.events, "click "+target.ID())
	return selection.Action{Kind: selection.Capture}, a.err
}

func (a *fakeAgent) PointerMove(target dom.Element) error {
	a.events = append(a.events, "move "+target.ID())
	return a.err
}

func (a *fakeAgent) PointerOut() error {
	a.events = append(a.events, "out")
	return a.err
}

func TestHandleCall_RoutesPageEvents(t *testing.T) {
	ctx := context.Background()
	doc, err := htmldom.Parse(`<html><body><button id="save">Save</button></body></html>`)
	require.NoError(t, err)
	btn, ok := doc.Find("#save")
	require.True(t, ok)

	res := &fakeResolver{el: btn}
	a := &fakeAgent{}
	log := zap.NewNop()

	handleCall(ctx, res, a, &bindingCall{Kind: "move"}, log)
	handleCall(ctx, res, a, &bindingCall{Kind: "out"}, log)
	handleCall(ctx, res, a, &bindingCall{Kind: "click", Seq: 7}, log)
	handleCall(ctx, res, a, &bindingCall{Kind: "scroll"}, log)

	require.Equal(t, []string{"move save", "out", "click save"}, a.events)
	require.Equal(t, []resolvedCall{
		{js: hoverTargetJS},
		{js: takeTargetJS, args: []any{7}},
	}, res.calls)
}

func TestHandleCall_TargetGone(t *testing.T) {
	ctx := context.Background()
	res := &fakeResolver{}
	a := &fakeAgent{err: fmt.Errorf("stopped")}

	handleCall(ctx, res, a, &bindingCall{Kind: "move"}, zap.NewNop())
	handleCall(ctx, res, a, &bindingCall{Kind: "click", Seq: 1}, zap.NewNop())
	require.Empty(t, a.events)

	// Agent errors are logged, never propagated.
	handleCall(ctx, res, a, &bindingCall{Kind: "out"}, zap.NewNop())
	require.Equal(t, []string{"out"}, a.events)
}
