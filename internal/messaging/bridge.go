package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixil98/go-arena/internal/engine"
)

const DefaultRequestTimeout = 2 * time.Second

type Requester interface {
	Request(subject string, data []byte, timeout time.Duration) ([]byte, error)
}

// engineRequest carries the arguments of every engine operation. Only the
// fields an operation needs are set.
type engineRequest struct {
	World       string                `json:"world,omitempty"`
	Dir         string                `json:"dir,omitempty"`
	Settings    *engine.WorldSettings `json:"settings,omitempty"`
	Participant string                `json:"participant,omitempty"`
	Target      string                `json:"target,omitempty"`
	Location    *engine.Location      `json:"location,omitempty"`
	Effects     *engine.Effects       `json:"effects,omitempty"`
	Visible     bool                  `json:"visible,omitempty"`
}

type engineReply struct {
	Error     string   `json:"error,omitempty"`
	Online    bool     `json:"online,omitempty"`
	Occupants []string `json:"occupants,omitempty"`
}

// EngineBridge is an engine.Engine backed by request/reply calls to the host
// game server over NATS. Calls block the caller for at most the timeout.
type EngineBridge struct {
	req      Requester
	timeout  time.Duration
	fallback engine.Location
}

func NewEngineBridge(req Requester, fallback engine.Location, timeout time.Duration) *EngineBridge {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &EngineBridge{req: req, timeout: timeout, fallback: fallback}
}

func (b *EngineBridge) call(op string, r engineRequest) (engineReply, error) {
	var reply engineReply

	data, err := json.Marshal(r)
	if err != nil {
		return reply, fmt.Errorf("encoding %s request: %w", op, err)
	}
	resp, err := b.req.Request(SubjectEngineRequest+op, data, b.timeout)
	if err != nil {
		return reply, fmt.Errorf("engine %s: %w", op, err)
	}
	if err := json.Unmarshal(resp, &reply); err != nil {
		return reply, fmt.Errorf("decoding %s reply: %w", op, err)
	}
	if reply.Error != "" {
		return reply, fmt.Errorf("engine %s: %w", op, errors.New(reply.Error))
	}
	return reply, nil
}

func (b *EngineBridge) CreateWorld(name, dir string) error {
	_, err := b.call("create_world", engineRequest{World: name, Dir: dir})
	return err
}

func (b *EngineBridge) ConfigureWorld(name string, s engine.WorldSettings) error {
	_, err := b.call("configure_world", engineRequest{World: name, Settings: &s})
	return err
}

func (b *EngineBridge) UnloadWorld(name string) error {
	_, err := b.call("unload_world", engineRequest{World: name})
	return err
}

// Occupants returns nil when the host cannot be reached.
func (b *EngineBridge) Occupants(name string) []string {
	reply, err := b.call("occupants", engineRequest{World: name})
	if err != nil {
		slog.Warn("listing world occupants", "world", name, "error", err)
		return nil
	}
	return reply.Occupants
}

func (b *EngineBridge) FallbackLocation() engine.Location {
	return b.fallback
}

func (b *EngineBridge) Online(p string) bool {
	reply, err := b.call("online", engineRequest{Participant: p})
	if err != nil {
		slog.Warn("checking participant online", "participant", p, "error", err)
		return false
	}
	return reply.Online
}

func (b *EngineBridge) Teleport(p string, loc engine.Location) error {
	_, err := b.call("teleport", engineRequest{Participant: p, Location: &loc})
	return err
}

func (b *EngineBridge) ApplyEffects(p string, e engine.Effects) error {
	_, err := b.call("apply_effects", engineRequest{Participant: p, Effects: &e})
	return err
}

func (b *EngineBridge) SetVisible(viewer, target string, visible bool) error {
	_, err := b.call("set_visible", engineRequest{Participant: viewer, Target: target, Visible: visible})
	return err
}
