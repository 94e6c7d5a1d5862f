package notify

import (
	"log/slog"
	"sync"
)

// Message is one rendered notification. Target is empty for broadcasts.
type Message struct {
	ID     string         `json:"id"`
	Target string         `json:"target,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	Text   string         `json:"text"`
}

func (m Message) Broadcast() bool {
	return m.Target == ""
}

// Sink receives every message. Deliver is called from the control loop and
// must not block.
type Sink interface {
	Deliver(Message) error
}

type SinkFunc func(Message) error

func (f SinkFunc) Deliver(m Message) error {
	return f(m)
}

// Notifier renders messages by id and fans them out to sinks.
type Notifier struct {
	catalog *Catalog

	mu    sync.RWMutex
	sinks []Sink
}

func NewNotifier(c *Catalog, sinks ...Sink) *Notifier {
	if c == nil {
		c = DefaultCatalog()
	}
	return &Notifier{
		catalog: c,
		sinks:   sinks,
	}
}

// AddSink registers another destination.
func (n *Notifier) AddSink(s Sink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, s)
}

func (n *Notifier) Broadcast(id string, params map[string]any) {
	n.deliver(Message{ID: id, Params: params, Text: n.catalog.Render(id, params)})
}

func (n *Notifier) Send(p, id string, params map[string]any) {
	n.deliver(Message{ID: id, Target: p, Params: params, Text: n.catalog.Render(id, params)})
}

func (n *Notifier) deliver(m Message) {
	n.mu.RLock()
	sinks := n.sinks
	n.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Deliver(m); err != nil {
			slog.Debug("delivering notification", "id", m.ID, "target", m.Target, "error", err)
		}
	}
}
