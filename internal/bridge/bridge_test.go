package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/message"
)

type call struct {
	kind string
	id   string
	on   bool
}

type fakeToggler struct {
	mu        sync.Mutex
	calls     []call
	delivered bool
	err       error
}

func (f *fakeToggler) ToggleExtension(_ context.Context, enabled bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{kind: "extension", on: enabled})
	return f.delivered, f.err
}

func (f *fakeToggler) ToggleElementHighlight(_ context.Context, id string, on bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" {
		return false, errors.NewInvalidRequest("element id is required")
	}
	f.calls = append(f.calls, call{kind: "highlight", id: id, on: on})
	return f.delivered, f.err
}

func (f *fakeToggler) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func newBridge(t *testing.T, tg Toggler) string {
	t.Helper()
	srv := httptest.NewServer(NewHandler(tg, nil))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSend_AppliesMessages(t *testing.T) {
	tg := &fakeToggler{delivered: true}
	c := dial(t, newBridge(t, tg))
	ctx := context.Background()

	ack, err := c.Send(ctx, message.ToggleExtension{Enabled: true})
	require.NoError(t, err)
	require.Equal(t, Ack{Type: message.TypeToggleExtension, Delivered: true}, ack)

	ack, err = c.Send(ctx, message.ToggleElementHighlight{ElementID: "el-1", IsHighlighted: true})
	require.NoError(t, err)
	require.True(t, ack.Delivered)

	require.Equal(t, []call{
		{kind: "extension", on: true},
		{kind: "highlight", id: "el-1", on: true},
	}, tg.snapshot())
}

func TestSend_NotDelivered(t *testing.T) {
	tg := &fakeToggler{delivered: false}
	c := dial(t, newBridge(t, tg))

	ack, err := c.Send(context.Background(), message.ToggleExtension{Enabled: false})
	require.NoError(t, err)
	require.False(t, ack.Delivered)
}

func TestSend_ErrorAck(t *testing.T) {
	tg := &fakeToggler{err: errors.NewStoreUnavailable("disk gone")}
	c := dial(t, newBridge(t, tg))

	_, err := c.Send(context.Background(), message.ToggleExtension{Enabled: true})
	require.True(t, errors.Is(err, errors.ErrStoreUnavailable), "err = %v", err)
}

func TestBadFrameKeepsConnection(t *testing.T) {
	tg := &fakeToggler{delivered: true}
	url := newBridge(t, tg)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"NOPE"}`)))
	var ack Ack
	require.NoError(t, conn.ReadJSON(&ack))
	require.NotNil(t, ack.Error)
	require.Equal(t, string(errors.ErrInvalidMessage), ack.Error.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"TOGGLE_EXTENSION","isEnabled":true}`)))
	require.NoError(t, conn.ReadJSON(&ack))
	require.Nil(t, ack.Error)
	require.True(t, ack.Delivered)
	require.Len(t, tg.snapshot(), 1)
}

func TestCrossOriginRefused(t *testing.T) {
	url := newBridge(t, &fakeToggler{})

	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestURL(t *testing.T) {
	require.Equal(t, "ws://127.0.0.1:7878/bridge", URL("127.0.0.1:7878"))
	require.Equal(t, "wss://host/x", URL("wss://host/x"))
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", &fakeToggler{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, nil) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
