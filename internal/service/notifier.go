package service

import (
	"sync"

	"smart_ventilation/internal/models"
)

const subscriberBuffer = 16

// Hub fans committed state changes out to in-process subscribers (the
// websocket handler, the optional MQTT republisher). Publish never blocks
// the ingest path: a subscriber that cannot keep up loses updates and is
// expected to reconcile from the read model.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan models.FanUpdate]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan models.FanUpdate]struct{})}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe func. Unsubscribe closes the channel.
func (h *Hub) Subscribe() (<-chan models.FanUpdate, func()) {
	ch := make(chan models.FanUpdate, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an update to every subscriber, at most once, dropping
// it for any subscriber whose buffer is full.
func (h *Hub) Publish(u models.FanUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
