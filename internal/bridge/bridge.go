// Package bridge carries control messages between processes over a
// websocket: a running agent host serves /bridge, and CLI commands dial it
// to toggle the extension or highlight an element in the live page.
package bridge

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/logging"
	"github.com/hpungsan/elclones/internal/message"
)

// Path is the websocket endpoint served by Handler.
const Path = "/bridge"

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// Toggler applies control messages. control.Surface implements it, so a
// remote toggle is persisted exactly like a local one.
type Toggler interface {
	ToggleExtension(ctx context.Context, enabled bool) (bool, error)
	ToggleElementHighlight(ctx context.Context, id string, on bool) (bool, error)
}

// Ack is the reply to every frame a client sends.
type Ack struct {
	Type      string    `json:"type,omitempty"`
	Delivered bool      `json:"delivered"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError describes a frame that was not applied.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler serves the bridge endpoint.
type Handler struct {
	toggler  Toggler
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler returns a bridge endpoint applying messages through t.
func NewHandler(t Toggler, log *zap.Logger) *Handler {
	return &Handler{
		toggler: t,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin,
		},
		log: logging.OrNop(log).Named("bridge"),
	}
}

// ServeHTTP upgrades the connection and applies frames until the client
// goes away or stays silent past the read timeout.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	h.log.Debug("client connected", zap.String("remote", r.RemoteAddr))

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("read ended", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		ack := h.apply(r.Context(), data)
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(ack); err != nil {
			h.log.Debug("write ack failed", zap.Error(err))
			return
		}
	}
}

func (h *Handler) apply(ctx context.Context, data []byte) Ack {
	m, err := message.Decode(data)
	if err != nil {
		h.log.Warn("dropping undecodable frame", zap.Error(err))
		return errorAck("", err)
	}

	var delivered bool
	switch msg := m.(type) {
	case message.ToggleExtension:
		delivered, err = h.toggler.ToggleExtension(ctx, msg.Enabled)
	case message.ToggleElementHighlight:
		delivered, err = h.toggler.ToggleElementHighlight(ctx, msg.ElementID, msg.IsHighlighted)
	default:
		err = errors.NewInvalidMessage("unsupported message type " + m.Type())
	}
	if err != nil {
		return errorAck(m.Type(), err)
	}
	return Ack{Type: m.Type(), Delivered: delivered}
}

func errorAck(typ string, err error) Ack {
	code, msg := string(errors.ErrInternal), err.Error()
	if elErr, ok := errors.As(err); ok {
		code, msg = string(elErr.Code), elErr.Message
	}
	return Ack{Type: typ, Error: &AckError{Code: code, Message: msg}}
}

// sameOrigin admits non-browser clients (no Origin header) and pages served
// from the bridge's own host. Any other web page is refused.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return hostOnly(u.Host) == hostOnly(r.Host)
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
