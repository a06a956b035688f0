package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketProbe reports the core ready once a WebSocket handshake with its
// endpoint completes. The core protocol itself stays out of scope; the
// connection is closed immediately after the handshake.
type WebSocketProbe struct {
	URL              string        // e.g. ws://127.0.0.1:8765
	HandshakeTimeout time.Duration // default 2s
}

func (p WebSocketProbe) Ready(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: p.handshakeTimeout()}
	conn, resp, err := dialer.DialContext(ctx, p.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		// A live HTTP endpoint that rejects the upgrade still proves the
		// socket is accepting connections.
		if err == websocket.ErrBadHandshake && resp != nil && resp.StatusCode < http.StatusInternalServerError {
			return nil
		}
		return err
	}
	_ = conn.Close()
	return nil
}

func (p WebSocketProbe) Describe() string { return "websocket:" + p.URL }

func (p WebSocketProbe) handshakeTimeout() time.Duration {
	if p.HandshakeTimeout > 0 {
		return p.HandshakeTimeout
	}
	return 2 * time.Second
}
