package console

import (
	"log/slog"
	"sync"

	"github.com/pixil98/go-arena/internal/notify"
)

const DefaultOutbox = 32

// Hub routes notifications to connected console sessions. It is a
// notify.Sink; a session that falls behind loses messages rather than
// stalling the control loop.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan string
}

func NewHub() *Hub {
	return &Hub{subs: map[string]chan string{}}
}

// Register claims p for one session. It fails if p is already connected.
func (h *Hub) Register(p string) (<-chan string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[p]; ok {
		return nil, false
	}
	ch := make(chan string, DefaultOutbox)
	h.subs[p] = ch
	return ch, true
}

func (h *Hub) Unregister(p string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[p]; ok {
		close(ch)
		delete(h.subs, p)
	}
}

func (h *Hub) Connected(p string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[p]
	return ok
}

func (h *Hub) Deliver(m notify.Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !m.Broadcast() {
		if ch, ok := h.subs[m.Target]; ok {
			h.push(m.Target, ch, m.Text)
		}
		return nil
	}

	for p, ch := range h.subs {
		h.push(p, ch, m.Text)
	}
	return nil
}

func (h *Hub) push(p string, ch chan string, text string) {
	select {
	case ch <- text:
	default:
		slog.Debug("console outbox full, dropping message", "participant", p)
	}
}
