// Package realtime pushes freshly committed notifications to connected
// clients over websockets.
package realtime

import (
	"sync"

	"github.com/sirupsen/logrus"

	"taskflow/internal/metrics"
	"taskflow/internal/models"
)

type Hub struct {
	mu    sync.RWMutex
	conns map[models.Actor]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[models.Actor]map[*Conn]struct{})}
}

func (h *Hub) Register(actor models.Actor, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[actor] == nil {
		h.conns[actor] = make(map[*Conn]struct{})
	}
	h.conns[actor][conn] = struct{}{}
	metrics.RealtimeClients.Inc()
}

func (h *Hub) Unregister(actor models.Actor, conn *Conn) {
	h.mu.Lock()
	if conns, ok := h.conns[actor]; ok {
		if _, present := conns[conn]; present {
			delete(conns, conn)
			metrics.RealtimeClients.Dec()
		}
		if len(conns) == 0 {
			delete(h.conns, actor)
		}
	}
	h.mu.Unlock()
	_ = conn.Close()
}

// Serve runs the connection until the client disconnects.
func (h *Hub) Serve(actor models.Actor, conn *Conn) {
	h.Register(actor, conn)
	go conn.writePump()
	conn.readPump()
	h.Unregister(actor, conn)
}

// Publish delivers each notification to every open stream of its receiver.
func (h *Hub) Publish(notifications ...models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, n := range notifications {
		for conn := range h.conns[n.Receiver] {
			if !conn.Enqueue(n) {
				logrus.Warnf("[realtime][publish] dropped notification %d for %s", n.ID, n.Receiver)
			}
		}
	}
}

// Subscribers reports how many streams the actor has open.
func (h *Hub) Subscribers(actor models.Actor) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[actor])
}
