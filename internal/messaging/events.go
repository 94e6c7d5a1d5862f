package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Event is an inbound notification from the host game server, published on
// arena.in.<kind>.
type Event struct {
	Participant string   `json:"participant"`
	Killer      string   `json:"killer,omitempty"`
	Assists     []string `json:"assists,omitempty"`
	Arg         string   `json:"arg,omitempty"`
}

// EventReply is sent back when the event was a request.
type EventReply struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Dispatcher handles decoded events. It is called from NATS goroutines.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind string, ev Event) (any, error)
}

type Responder interface {
	Ready() <-chan struct{}
	Reply(subject string, handler func(subject string, data []byte) []byte) (func(), error)
}

// EventSubscriber feeds arena.in.* into a Dispatcher.
type EventSubscriber struct {
	server     Responder
	dispatcher Dispatcher
}

func NewEventSubscriber(server Responder, d Dispatcher) *EventSubscriber {
	return &EventSubscriber{server: server, dispatcher: d}
}

func (s *EventSubscriber) Start(ctx context.Context) error {
	select {
	case <-s.server.Ready():
	case <-ctx.Done():
		return nil
	}

	unsub, err := s.server.Reply(SubjectEventPrefix+">", func(subject string, data []byte) []byte {
		return s.handle(ctx, subject, data)
	})
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer unsub()

	slog.InfoContext(ctx, "listening for host events", "subject", SubjectEventPrefix+">")
	<-ctx.Done()
	return nil
}

func (s *EventSubscriber) handle(ctx context.Context, subject string, data []byte) []byte {
	kind := strings.TrimPrefix(subject, SubjectEventPrefix)

	var reply EventReply
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.WarnContext(ctx, "decoding host event", "subject", subject, "error", err)
		reply.Error = fmt.Sprintf("decoding event: %s", err)
	} else if res, err := s.dispatcher.Dispatch(ctx, kind, ev); err != nil {
		slog.InfoContext(ctx, "host event rejected", "kind", kind, "participant", ev.Participant, "error", err)
		reply.Error = err.Error()
	} else {
		reply.Result = res
	}

	out, err := json.Marshal(reply)
	if err != nil {
		slog.ErrorContext(ctx, "encoding event reply", "kind", kind, "error", err)
		return nil
	}
	return out
}
