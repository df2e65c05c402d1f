package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeRealtimeServer upgrades the realtime endpoint, records the join
// message and pushes change events on demand.
type fakeRealtimeServer struct {
	upgrader websocket.Upgrader
	joined   chan phoenixMessage
	send     chan string
}

func newFakeRealtimeServer() *fakeRealtimeServer {
	return &fakeRealtimeServer{
		joined: make(chan phoenixMessage, 1),
		send:   make(chan string, 4),
	}
}

func (f *fakeRealtimeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/realtime/v1/websocket" {
		http.NotFound(w, r)
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var join phoenixMessage
	if err := conn.ReadJSON(&join); err != nil {
		return
	}
	f.joined <- join

	reply := phoenixMessage{Topic: join.Topic, Event: "phx_reply", Payload: map[string]any{"status": "ok"}, Ref: join.Ref}
	if err := conn.WriteJSON(reply); err != nil {
		return
	}

	for event := range f.send {
		msg := phoenixMessage{Topic: join.Topic, Event: event, Payload: map[string]any{}}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func TestSubscribeChanges(t *testing.T) {
	fake := newFakeRealtimeServer()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client := NewClient(Settings{URL: srv.URL, AnonKey: testAnonKey})

	changes := make(chan struct{}, 4)
	unsubscribe, err := client.SubscribeChanges(context.Background(), "u-1", func() {
		changes <- struct{}{}
	})
	if err != nil {
		t.Fatalf("SubscribeChanges() error: %v", err)
	}
	defer unsubscribe()

	select {
	case join := <-fake.joined:
		if join.Event != "phx_join" {
			t.Fatalf("first message event = %q, want phx_join", join.Event)
		}
		if join.Topic != "realtime:db-changes-u-1" {
			t.Fatalf("join topic = %q", join.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the channel join")
	}

	// Bookkeeping events must not trigger a pull; change events must.
	fake.send <- "system"
	fake.send <- "postgres_changes"

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("change event not delivered to onChange")
	}
	select {
	case <-changes:
		t.Fatal("bookkeeping event triggered onChange")
	case <-time.After(100 * time.Millisecond):
	}

	// Unsubscribe must be idempotent and raceless.
	unsubscribe()
	unsubscribe()
}

func TestSubscribeChanges_DialFailure(t *testing.T) {
	client := NewClient(Settings{URL: "http://127.0.0.1:1", AnonKey: testAnonKey})
	_, err := client.SubscribeChanges(context.Background(), "u-1", func() {})
	if err == nil {
		t.Fatal("expected dial error")
	}
}

func TestRealtimeURL(t *testing.T) {
	c := NewClient(Settings{URL: "https://example.supabase.co", AnonKey: "abc"})
	got, err := c.realtimeURL()
	if err != nil {
		t.Fatalf("realtimeURL() error: %v", err)
	}
	want := "wss://example.supabase.co/realtime/v1/websocket?apikey=abc&vsn=1.0.0"
	if got != want {
		t.Fatalf("realtimeURL() = %q, want %q", got, want)
	}
}
