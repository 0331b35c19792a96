package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func relayDial(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketRequiresSession(t *testing.T) {
	env := newTestEnv(t, "user")
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected handshake rejection while logged out")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %v", resp)
	}
}

func TestWebSocketPingPong(t *testing.T) {
	env := newTestEnv(t, "user")
	env.login(t)
	conn := relayDial(t, env)

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var resp map[string]any
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp["type"] != "pong" {
		data, _ := json.Marshal(resp)
		t.Fatalf("expected pong, got %s", string(data))
	}
}

func TestWebSocketRelaysBroadcasts(t *testing.T) {
	env := newTestEnv(t, "user")
	env.login(t)
	conn := relayDial(t, env)

	// The handshake is asynchronous from the hub's point of view; wait for
	// the connection to register before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("relay client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.hub.Broadcast([]byte(`{"id":9,"title":"Pushed"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(data), "Pushed") {
		t.Fatalf("unexpected relay payload: %s", data)
	}
}
