package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-arena/internal/team"
)

// RestartExitCode tells the supervisor to start the arena again.
const RestartExitCode = 75

type Config struct {
	Maps       MapsConfig        `json:"maps"`
	Lobby      LobbyConfig       `json:"lobby"`
	Match      MatchConfig       `json:"match"`
	Teams      []team.Definition `json:"teams"`
	Engine     EngineConfig      `json:"engine"`
	Nats       NatsConfig        `json:"nats"`
	Messages   MessagesConfig    `json:"messages"`
	Console    ConsoleConfig     `json:"console"`
	Listeners  []ListenerConfig  `json:"listeners"`
	Scoreboard ScoreboardConfig  `json:"scoreboard"`
	Workers    int               `json:"workers"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	el.Add(c.Maps.validate())
	el.Add(c.Lobby.validate())
	el.Add(c.Match.validate())
	el.Add(validateTeams(c.Teams))
	el.Add(c.Engine.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Console.validate())
	el.Add(c.Scoreboard.validate())

	el.Add(validateListeners(c.Listeners))

	if c.Workers < 0 {
		el.Add(fmt.Errorf("workers must not be negative"))
	}

	return el.Err()
}

func validateTeams(defs []team.Definition) error {
	el := errors.NewErrorList()

	seen := map[string]bool{}
	for i, d := range defs {
		if d.ID == "" {
			el.Add(fmt.Errorf("team %d: id is required", i))
			continue
		}
		if seen[d.ID] {
			el.Add(fmt.Errorf("team %d: duplicate id %q", i, d.ID))
		}
		seen[d.ID] = true
		if d.Capacity < 0 {
			el.Add(fmt.Errorf("team %s: max_players must not be negative", d.ID))
		}
	}

	return el.Err()
}

type MessagesConfig struct {
	// Catalog is a YAML file whose messages override the built in ones.
	Catalog string `json:"catalog,omitempty"`
}

type ConsoleConfig struct {
	Admins         []string `json:"admins"`
	Banner         string   `json:"banner,omitempty"`
	MaxConnections int      `json:"max_connections"`
}

func (c *ConsoleConfig) validate() error {
	el := errors.NewErrorList()

	if c.MaxConnections < 0 {
		el.Add(fmt.Errorf("max_connections must not be negative"))
	}

	return el.Err()
}
