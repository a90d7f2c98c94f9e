package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type presenceLog struct {
	mu     sync.Mutex
	events []string
}

func (p *presenceLog) OnConnected(_ context.Context, clientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "connected:"+clientID)
	return nil
}

func (p *presenceLog) OnDisconnected(_ context.Context, clientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "disconnected:"+clientID)
	return nil
}

func (p *presenceLog) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestHub(t *testing.T) (*Hub, *presenceLog, *httptest.Server) {
	t.Helper()
	hub := NewHub(Options{SendBuffer: 4, WriteTimeout: time.Second, PingInterval: time.Second})
	p := &presenceLog{}
	hub.SetPresence(p)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, p, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func TestHubRejectsUnknownToken(t *testing.T) {
	_, p, srv := newTestHub(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial error")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
	if len(p.snapshot()) != 0 {
		t.Fatalf("expected no presence events, got %v", p.snapshot())
	}
}

func TestHubConnectSendDisconnect(t *testing.T) {
	hub, p, srv := newTestHub(t)
	token, err := hub.CreateChannel("S1-0")
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	c := dial(t, srv, token)
	waitFor(t, func() bool { return len(p.snapshot()) == 1 })
	if got := p.snapshot()[0]; got != "connected:S1-0" {
		t.Fatalf("unexpected event %q", got)
	}

	hub.Send("S1-0", map[string]string{"type": "WAIT_FOR_SYNC"})
	hub.Send("S1-0", json.RawMessage(`{"move": "e4"}`))
	hub.Send("", map[string]string{"type": "ignored"})
	hub.Send("S9-1", map[string]string{"type": "ignored"})

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, first, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	if string(first) != `{"type":"WAIT_FOR_SYNC"}` {
		t.Fatalf("unexpected first message %s", first)
	}
	_, second, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read second: %v", err)
	}
	if string(second) != `{"move": "e4"}` {
		t.Fatalf("raw payload altered: %s", second)
	}

	_ = c.Close()
	waitFor(t, func() bool { return len(p.snapshot()) == 2 })
	if got := p.snapshot()[1]; got != "disconnected:S1-0" {
		t.Fatalf("unexpected event %q", got)
	}
	if hub.Connected("S1-0") {
		t.Fatal("expected client to be gone")
	}
}

func TestHubReplacementKeepsPresence(t *testing.T) {
	hub, p, srv := newTestHub(t)
	token, err := hub.CreateChannel("S1-1")
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	first := dial(t, srv, token)
	defer first.Close()
	waitFor(t, func() bool { return len(p.snapshot()) == 1 })

	second := dial(t, srv, token)
	defer second.Close()

	// The replaced socket is closed by the server.
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatal("expected replaced socket to be closed")
	}

	hub.Send("S1-1", map[string]string{"type": "SYNC_REQUEST"})
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := second.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != `{"type":"SYNC_REQUEST"}` {
		t.Fatalf("unexpected message %s", msg)
	}
	if events := p.snapshot(); len(events) != 1 {
		t.Fatalf("expected only the first connect, got %v", events)
	}
}

func TestHubForgetDropsTokens(t *testing.T) {
	hub, _, srv := newTestHub(t)
	token, err := hub.CreateChannel("S2-0")
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	hub.Forget("S2-0")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial error after forget")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
