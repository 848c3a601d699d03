package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chiearnhub/payment-bridge/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func waitConnections(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Connections() != n {
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d, want %d", h.Connections(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcastByUser(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	mine := dial(t, srv, "userId=u1")
	defer mine.Close()
	other := dial(t, srv, "userId=u2")
	defer other.Close()
	waitConnections(t, hub, 2)

	bal := int64(700)
	hub.Broadcast(events.DepositUpdate{DepositID: "d1", UserID: "u1", Status: "approved", Balance: &bal})

	_ = mine.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.DepositUpdate
	if err := mine.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.DepositID != "d1" || got.Balance == nil || *got.Balance != 700 {
		t.Fatalf("unexpected update: %+v", got)
	}

	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := other.ReadJSON(&got); err == nil {
		t.Fatal("u2 should not receive u1's update")
	}
}

func TestHubPingAndDisconnect(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv, "userId=u1")
	waitConnections(t, hub, 1)

	if err := c.WriteJSON(ClientMsg{Type: "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong map[string]string
	if err := c.ReadJSON(&pong); err != nil || pong["type"] != "pong" {
		t.Fatalf("pong = %v, err = %v", pong, err)
	}

	c.Close()
	waitConnections(t, hub, 0)
}

// cliente que nunca lê é derrubado pelo write deadline e não trava os demais
func TestHubStalledClientIsDropped(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	hub.writeWait = 100 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	stalled := dial(t, srv, "userId=slow")
	defer stalled.Close()
	healthy := dial(t, srv, "userId=u2")
	defer healthy.Close()
	waitConnections(t, hub, 2)

	big := events.DepositUpdate{DepositID: strings.Repeat("x", 1<<20), UserID: "slow", Status: "approved"}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			hub.Broadcast(big)
		}
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("broadcast blocked on a client that does not read")
	}
	waitConnections(t, hub, 1)

	hub.Broadcast(events.DepositUpdate{DepositID: "d2", UserID: "u2", Status: "approved"})
	_ = healthy.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.DepositUpdate
	if err := healthy.ReadJSON(&got); err != nil || got.DepositID != "d2" {
		t.Fatalf("healthy client: got %+v err=%v", got, err)
	}
}

func TestHubRequiresUserID(t *testing.T) {
	hub := NewHub(nil)
	rec := httptest.NewRecorder()
	hub.HandleWS(rec, httptest.NewRequest(http.MethodGet, "/ws/deposits", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
