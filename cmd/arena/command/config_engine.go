package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-arena/internal/engine"
	"github.com/pixil98/go-arena/internal/maps"
	"github.com/pixil98/go-arena/internal/messaging"
)

type EngineMode int

const (
	EngineModeMemory EngineMode = iota
	EngineModeNats
)

func (m *EngineMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "memory":
		*m = EngineModeMemory
	case "nats":
		*m = EngineModeNats
	default:
		return fmt.Errorf("unknown engine mode: %s", text)
	}
	return nil
}

// EngineConfig picks the game engine the arena drives. memory runs
// standalone; nats forwards every call to a host over request/reply.
type EngineConfig struct {
	Mode           EngineMode `json:"mode"`
	FallbackWorld  string     `json:"fallback_world"`
	FallbackSpawn  maps.Pose  `json:"fallback_spawn"`
	RequestTimeout string     `json:"request_timeout,omitempty"`
}

func (c *EngineConfig) validate() error {
	el := errors.NewErrorList()

	if c.Mode == EngineModeNats && c.FallbackWorld == "" {
		el.Add(fmt.Errorf("engine.fallback_world is required in nats mode"))
	}
	el.Add(validDuration("engine.request_timeout", c.RequestTimeout))

	return el.Err()
}

func (c *EngineConfig) buildEngine(req messaging.Requester) (engine.Engine, error) {
	switch c.Mode {
	case EngineModeMemory:
		return engine.NewMemory(c.FallbackWorld), nil
	case EngineModeNats:
		var timeout time.Duration
		if d, ok := parseDuration(c.RequestTimeout); ok {
			timeout = d
		}
		fallback := engine.Location{World: c.FallbackWorld, Pose: c.FallbackSpawn}
		return messaging.NewEngineBridge(req, fallback, timeout), nil
	default:
		return nil, fmt.Errorf("unknown engine mode: %v", c.Mode)
	}
}
