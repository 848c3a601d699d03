package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chiearnhub/payment-bridge/pkg/contracts/events"
)

const defaultWriteWait = 5 * time.Second

// Hub mantém as conexões do feed de depósitos agrupadas por userId.
type Hub struct {
	upgrader  websocket.Upgrader
	writeWait time.Duration
	mu        sync.RWMutex
	// userID -> conexões abertas
	subs map[string]map[*conn]struct{}
}

// conn serializa escritas: gorilla não aceita writers concorrentes
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// write com deadline: cliente que não lê não trava o subscriber
func (c *conn) write(b []byte, wait time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(wait))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader:  websocket.Upgrader{CheckOrigin: allowOrigin},
		writeWait: defaultWriteWait,
		subs:      make(map[string]map[*conn]struct{}),
	}
}

// HandleWS atende GET /ws/deposits?userId=... e fica lendo até o cliente
// desconectar. Só "ping" é tratado; o resto é ignorado.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	h.add(userID, c)
	defer h.remove(userID, c)

	for {
		var msg ClientMsg
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			b, _ := json.Marshal(map[string]string{"type": "pong"})
			_ = c.write(b, h.writeWait)
		}
	}
}

func (h *Hub) add(userID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[userID]; !ok {
		h.subs[userID] = make(map[*conn]struct{})
	}
	h.subs[userID][c] = struct{}{}
}

func (h *Hub) remove(userID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, userID)
		}
	}
}

// Broadcast envia a atualização para as conexões do usuário dono do depósito.
func (h *Hub) Broadcast(upd events.DepositUpdate) {
	h.mu.RLock()
	targets := make([]*conn, 0, len(h.subs[upd.UserID]))
	for c := range h.subs[upd.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, _ := json.Marshal(upd)
	for _, c := range targets {
		if err := c.write(b, h.writeWait); err != nil {
			// fecha; o loop de leitura do HandleWS remove a conexão
			_ = c.ws.Close()
		}
	}
}

// Connections devolve o total de conexões abertas (gauge de métricas).
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}
