package bridge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/message"
)

// Client sends control messages to a running bridge. Safe for concurrent
// use; sends are serialized so each ack matches its frame.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// URL turns a host:port bridge address into its websocket URL.
// Full ws:// or wss:// URLs are returned unchanged.
func URL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	return "ws://" + addr + Path
}

// Dial connects to the bridge at url.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial bridge %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial bridge %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Send writes m and waits for its ack. An ack carrying an error is
// returned as that error.
func (c *Client) Send(ctx context.Context, m message.Message) (Ack, error) {
	data, err := message.Encode(m)
	if err != nil {
		return Ack{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return Ack{}, fmt.Errorf("send %s: %w", m.Type(), err)
	}

	_ = c.conn.SetReadDeadline(deadline)
	var ack Ack
	if err := c.conn.ReadJSON(&ack); err != nil {
		if ctx.Err() != nil {
			return Ack{}, errors.NewCancelled("bridge send")
		}
		return Ack{}, fmt.Errorf("read ack: %w", err)
	}
	if ack.Error != nil {
		return ack, &errors.ElError{Code: errors.ErrorCode(ack.Error.Code), Status: 400, Message: ack.Error.Message}
	}
	return ack, nil
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
