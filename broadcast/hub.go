// Package broadcast fans named events out to every connected stream.
package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"admin-alerts/codec"
)

// DefaultBuffer is the number of frames a subscriber may lag behind before
// frames are dropped for it.
const DefaultBuffer = 32

// Hub holds the stream subscribers of one server instance. Delivery is at
// most once: a subscriber whose buffer is full misses the frame.
type Hub struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]chan []byte
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{buffer: buffer, subs: make(map[string]chan []byte)}
}

// Subscribe registers a new stream. The returned channel is closed by
// Unsubscribe.
func (h *Hub) Subscribe() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, h.buffer)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	log.WithField("subscriber", id).Debug("stream subscribed")
	return id, ch
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		close(ch)
		log.WithField("subscriber", id).Debug("stream unsubscribed")
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast hands an encoded frame to every subscriber without blocking.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- frame:
		default:
			log.WithField("subscriber", id).Warn("subscriber lagging, frame dropped")
		}
	}
}

// Publish encodes a named event and broadcasts it locally.
func (h *Hub) Publish(_ context.Context, name string, payload any) error {
	frame, err := codec.Frame(name, payload)
	if err != nil {
		return err
	}
	h.Broadcast(frame)
	return nil
}
