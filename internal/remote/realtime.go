package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const heartbeatInterval = 30 * time.Second

// phoenixMessage is the framing of the backend's realtime channel protocol.
type phoenixMessage struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	Ref     string `json:"ref"`
}

// SubscribeChanges opens the change-notification stream and invokes onChange
// with no payload for every database change event. The subscription is
// server-wide rather than scoped to the user: the backend pushes every row
// change and the caller re-pulls everything on any signal, a deliberate
// simplification for small per-user datasets.
//
// The returned function closes the subscription. Delivery is at-least-once
// and unordered; a dropped connection ends the stream without reconnecting,
// the next manual sync being the recovery path.
func (c *Client) SubscribeChanges(ctx context.Context, userID string, onChange func()) (func(), error) {
	wsURL, err := c.realtimeURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial realtime endpoint: %w", err)
	}

	topic := "realtime:db-changes-" + userID
	join := phoenixMessage{
		Topic: topic,
		Event: "phx_join",
		Payload: map[string]any{
			"config": map[string]any{
				"postgres_changes": []map[string]any{
					{"event": "*", "schema": "public"},
				},
			},
		},
		Ref: "1",
	}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join realtime channel: %w", err)
	}

	done := make(chan struct{})
	var closeOnce sync.Once
	unsubscribe := func() {
		closeOnce.Do(func() {
			close(done)
			conn.Close()
		})
	}

	go c.heartbeatLoop(ctx, conn, done)
	go c.readLoop(ctx, conn, done, unsubscribe, onChange)

	slog.InfoContext(ctx, "Subscribed to remote changes", "topic", topic)
	return unsubscribe, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}, unsubscribe func(), onChange func()) {
	defer unsubscribe()
	for {
		var msg struct {
			Topic   string          `json:"topic"`
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-done:
			default:
				slog.WarnContext(ctx, "Realtime stream closed", "error", err)
			}
			return
		}

		switch msg.Event {
		case "postgres_changes":
			// The payload is not inspected; any change anywhere means
			// "re-pull everything".
			onChange()
		case "phx_reply", "presence_state", "system":
			// Channel bookkeeping, nothing to do.
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ref := 2
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := phoenixMessage{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: map[string]any{},
				Ref:     strconv.Itoa(ref),
			}
			ref++
			if err := conn.WriteJSON(hb); err != nil {
				slog.WarnContext(ctx, "Realtime heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (c *Client) realtimeURL() (string, error) {
	u, err := url.Parse(c.settings.URL)
	if err != nil {
		return "", fmt.Errorf("parse remote url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", c.settings.AnonKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
