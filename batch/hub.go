package batch

import "sync"

// Hub fans progress events out to subscribers. Publishing never blocks the
// worker pool: a subscriber that falls behind loses events rather than
// stalling the batch.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new listener. Call the returned cancel function to
// unsubscribe and release the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
}

// Publish delivers ev to every subscriber with room in its buffer.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// ProvideHub builds the hub for the fx graph.
func ProvideHub() *Hub { return NewHub() }

var Options = ProvideHub
