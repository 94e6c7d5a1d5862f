package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-arena/internal/notify"
)

const (
	SubjectBroadcast     = "arena.notify.broadcast"
	SubjectPlayerPrefix  = "arena.notify.player."
	SubjectEventPrefix   = "arena.in."
	SubjectEngineRequest = "arena.engine."
)

// PlayerSubject is where notifications for one participant are published.
func PlayerSubject(p string) string {
	return SubjectPlayerPrefix + p
}

type Publisher interface {
	Publish(subject string, data []byte) error
}

// NotificationPublisher is a notify.Sink that forwards every message to NATS.
type NotificationPublisher struct {
	pub Publisher
}

func NewNotificationPublisher(pub Publisher) *NotificationPublisher {
	return &NotificationPublisher{pub: pub}
}

func (p *NotificationPublisher) Deliver(m notify.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding notification %s: %w", m.ID, err)
	}

	subject := SubjectBroadcast
	if !m.Broadcast() {
		subject = PlayerSubject(m.Target)
	}
	if err := p.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
