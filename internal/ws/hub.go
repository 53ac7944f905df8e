package ws

import (
	"context"
	"sync"

	"github.com/locshare/internal/logger"
)

// Hub раздаёт живые обновления зрителям шар. Зрители группируются по ID
// шары; поток односторонний — от сервера к зрителю. Реализует
// service.LiveNotifier.
type Hub struct {
	mu         sync.RWMutex
	viewers    map[string]map[*Client]struct{}
	total      int
	maxConns   int
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		viewers:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	all := make([]*Client, 0, h.total)
	for _, clients := range h.viewers {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.viewers = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting share=%s", h.maxConns, c.shareID)
		c.Close()
		return
	}
	if _, ok := h.viewers[c.shareID]; !ok {
		h.viewers[c.shareID] = make(map[*Client]struct{})
	}
	h.viewers[c.shareID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.viewers[c.shareID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.viewers, c.shareID)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
}

// Publish рассылает payload всем зрителям шары. Вызывается сервисом после
// каждой принятой точки.
func (h *Hub) Publish(shareID string, payload []byte) {
	h.mu.RLock()
	clients, ok := h.viewers[shareID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, payload)
	}
}

func (h *Hub) sendToClient(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow viewer share=%s", c.shareID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
