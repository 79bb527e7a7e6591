package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zonewars/liveclient/go/internal/snapshot"
)

// WebsocketDialer is the alternate push transport for deployments whose
// proxies handle websockets better than long-lived SSE responses. Messages
// on the wire are JSON envelopes {"event":"state","data":{...snapshot...}},
// mirroring the named events of the SSE channel.
type WebsocketDialer struct {
	baseURL string
	dialer  *websocket.Dialer

	readTimeout time.Duration
}

// NewWebsocketDialer creates a dialer against the given API base URL
// (http/https scheme; it is rewritten to ws/wss).
func NewWebsocketDialer(baseURL string) *WebsocketDialer {
	return &WebsocketDialer{
		baseURL:     strings.TrimRight(baseURL, "/"),
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		readTimeout: 90 * time.Second,
	}
}

// Dial opens the websocket subscription.
func (d *WebsocketDialer) Dial(ctx context.Context, token string) (Stream, error) {
	u := d.baseURL + "/stream?token=" + url.QueryEscape(token)
	if strings.HasPrefix(u, "https://") {
		u = "wss://" + strings.TrimPrefix(u, "https://")
	} else if strings.HasPrefix(u, "http://") {
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	conn, resp, err := d.dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("open websocket: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("open websocket: %w", err)
	}

	ws := &wsStream{conn: conn, readTimeout: d.readTimeout, done: make(chan struct{})}
	// Unblock a pending read when the session ends.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-ws.done:
		}
	}()
	return ws, nil
}

type wsStream struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	done        chan struct{}
}

// Recv reads envelopes until a "state" event arrives. Undecodable payloads
// are logged and skipped; read errors terminate the channel.
func (s *wsStream) Recv() (*snapshot.Snapshot, error) {
	for {
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		var env struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := s.conn.ReadJSON(&env); err != nil {
			return nil, err
		}
		if env.Event != "state" {
			continue
		}
		var snap snapshot.Snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			log.Warn().Err(err).Msg("dropping undecodable state event")
			continue
		}
		return &snap, nil
	}
}

func (s *wsStream) Close() error {
	close(s.done)
	return s.conn.Close()
}
