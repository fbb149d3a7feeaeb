package preview

import (
	"sync"

	"github.com/google/uuid"
)

// hub broadcasts invalidation batches to the connected SSE clients.
// Each client is tracked by a uuid so subscriptions survive name
// collisions between reconnecting browsers.
type hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]chan []string
}

func newHub() *hub {
	return &hub{clients: make(map[uuid.UUID]chan []string)}
}

// subscribe registers a client and returns its id and event channel.
// The caller must unsubscribe with the id when done.
func (h *hub) subscribe() (uuid.UUID, <-chan []string) {
	id := uuid.New()
	ch := make(chan []string, 4)
	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	return id, ch
}

// unsubscribe removes a client and closes its channel.
func (h *hub) unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	ch, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

// broadcast delivers the affected paths to every client. Non-blocking:
// a client whose channel is full misses the batch and catches up on the
// next one.
func (h *hub) broadcast(paths []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- paths:
		default:
		}
	}
}

// count returns the number of connected clients.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
