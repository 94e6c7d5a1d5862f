package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-arena/internal/arena"
	"github.com/pixil98/go-arena/internal/lobby"
	"github.com/pixil98/go-arena/internal/match"
	"github.com/pixil98/go-arena/internal/world"
)

type MapsConfig struct {
	Root         string   `json:"root"`
	InstanceRoot string   `json:"instance_root"`
	Rotation     []string `json:"rotation"`
	// RotationPolicy is what happens after the last map: restart or loop.
	RotationPolicy string `json:"rotation_policy,omitempty"`
	SweepInterval  string `json:"sweep_interval,omitempty"`
	RetireGrace    string `json:"retire_grace,omitempty"`
}

func (c *MapsConfig) validate() error {
	el := errors.NewErrorList()

	if c.Root == "" {
		el.Add(fmt.Errorf("maps.root is required"))
	}
	if c.InstanceRoot == "" {
		el.Add(fmt.Errorf("maps.instance_root is required"))
	}
	if c.Root != "" && c.Root == c.InstanceRoot {
		el.Add(fmt.Errorf("maps.instance_root must differ from maps.root"))
	}
	if _, err := match.ParseExhaustedPolicy(c.RotationPolicy); err != nil {
		el.Add(fmt.Errorf("maps.rotation_policy: %w", err))
	}
	el.Add(validDuration("maps.sweep_interval", c.SweepInterval))
	el.Add(validDuration("maps.retire_grace", c.RetireGrace))

	return el.Err()
}

type LobbyConfig struct {
	MinPlayers int  `json:"min_players"`
	MaxPlayers int  `json:"max_players"`
	Countdown  int  `json:"countdown"`
	AutoJoin   bool `json:"auto_join"`
}

func (c *LobbyConfig) validate() error {
	el := errors.NewErrorList()

	if c.MinPlayers < 0 || c.MaxPlayers < 0 || c.Countdown < 0 {
		el.Add(fmt.Errorf("lobby values must not be negative"))
	}
	if c.MaxPlayers > 0 && c.MinPlayers > c.MaxPlayers {
		el.Add(fmt.Errorf("lobby.min_players must not exceed lobby.max_players"))
	}

	return el.Err()
}

func (c *LobbyConfig) build() lobby.Config {
	cfg := lobby.Config{
		MinPlayers: lobby.DefaultMinPlayers,
		MaxPlayers: lobby.DefaultMaxPlayers,
		Countdown:  lobby.DefaultCountdown,
	}
	if c.MinPlayers > 0 {
		cfg.MinPlayers = c.MinPlayers
	}
	if c.MaxPlayers > 0 {
		cfg.MaxPlayers = c.MaxPlayers
	}
	if c.Countdown > 0 {
		cfg.Countdown = c.Countdown
	}
	return cfg
}

type MatchConfig struct {
	KillPoints   *int   `json:"kill_points,omitempty"`
	AssistPoints *int   `json:"assist_points,omitempty"`
	EndDelay     string `json:"end_delay,omitempty"`
	RestartDelay string `json:"restart_delay,omitempty"`
}

func (c *MatchConfig) validate() error {
	el := errors.NewErrorList()

	el.Add(validDuration("match.end_delay", c.EndDelay))
	el.Add(validDuration("match.restart_delay", c.RestartDelay))

	return el.Err()
}

// buildArenaConfig assembles everything the arena needs from the maps, lobby
// and match sections.
func (c *Config) buildArenaConfig() (arena.Config, error) {
	policy, err := match.ParseExhaustedPolicy(c.Maps.RotationPolicy)
	if err != nil {
		return arena.Config{}, err
	}

	matchOpts := []match.ControllerOpt{match.WithExhaustedPolicy(policy)}
	if c.Match.KillPoints != nil {
		matchOpts = append(matchOpts, match.WithKillPoints(*c.Match.KillPoints))
	}
	if c.Match.AssistPoints != nil {
		matchOpts = append(matchOpts, match.WithAssistPoints(*c.Match.AssistPoints))
	}
	if d, ok := parseDuration(c.Match.EndDelay); ok {
		matchOpts = append(matchOpts, match.WithEndDelay(d))
	}
	if d, ok := parseDuration(c.Match.RestartDelay); ok {
		matchOpts = append(matchOpts, match.WithRestartDelay(d))
	}

	var worldOpts []world.ProvisionerOpt
	if d, ok := parseDuration(c.Maps.SweepInterval); ok {
		worldOpts = append(worldOpts, world.WithSweepInterval(d))
	}
	if d, ok := parseDuration(c.Maps.RetireGrace); ok {
		worldOpts = append(worldOpts, world.WithRetireGrace(d))
	}

	return arena.Config{
		MapsRoot:     c.Maps.Root,
		InstanceRoot: c.Maps.InstanceRoot,
		Rotation:     c.Maps.Rotation,
		Teams:        c.Teams,
		Lobby:        c.Lobby.build(),
		AutoJoin:     c.Lobby.AutoJoin,
		Match:        matchOpts,
		Worlds:       worldOpts,
	}, nil
}

func validDuration(field, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}

// parseDuration reports false for empty or invalid values; Validate has
// already rejected the invalid ones.
func parseDuration(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
