package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks open connections so shutdown can close them.
type Hub struct {
	conns sync.Map // map[string]*Connection
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) Register(conn *Connection) {
	if conn == nil {
		return
	}
	h.conns.Store(conn.ID(), conn)
}

func (h *Hub) Unregister(id string) {
	if id == "" {
		return
	}
	h.conns.Delete(id)
}

// CloseAll terminates every tracked connection with a going-away frame.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	h.conns.Range(func(key, value any) bool {
		if conn, ok := value.(*Connection); ok {
			_ = conn.CloseWith(websocket.CloseGoingAway, reason.Error())
		}
		h.conns.Delete(key)
		return true
	})
}

func (h *Hub) Count() int {
	n := 0
	h.conns.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
