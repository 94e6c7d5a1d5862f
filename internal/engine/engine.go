package engine

import (
	"errors"

	"github.com/pixil98/go-arena/internal/maps"
)

var (
	ErrUnknownWorld       = errors.New("unknown world")
	ErrWorldExists        = errors.New("world already loaded")
	ErrWorldOccupied      = errors.New("world has occupants")
	ErrParticipantOffline = errors.New("participant offline")
)

// Location is a pose inside a named world.
type Location struct {
	World string    `json:"world"`
	Pose  maps.Pose `json:"pose"`
}

// WorldSettings are the gameplay flags applied to a freshly created world.
type WorldSettings struct {
	PvP             bool  `json:"pvp"`
	MonsterSpawning bool  `json:"monster_spawning"`
	FixedTime       int64 `json:"fixed_time"`
	DaylightCycle   bool  `json:"daylight_cycle"`
	WeatherCycle    bool  `json:"weather_cycle"`
	Storm           bool  `json:"storm"`
}

// ArenaSettings is combat on, no monsters, midday, clear skies.
func ArenaSettings() WorldSettings {
	return WorldSettings{
		PvP:       true,
		FixedTime: 6000,
	}
}

type GameMode int

const (
	ModeSurvival GameMode = iota
	ModeSpectator
)

func (m GameMode) String() string {
	if m == ModeSpectator {
		return "spectator"
	}
	return "survival"
}

// Effects is the full environmental state a participant is put into.
type Effects struct {
	Mode           GameMode `json:"mode"`
	Flight         bool     `json:"flight"`
	Invulnerable   bool     `json:"invulnerable"`
	ResetVitals    bool     `json:"reset_vitals"`
	ClearInventory bool     `json:"clear_inventory"`
	ClearEffects   bool     `json:"clear_effects"`
	ResetBedSpawn  bool     `json:"reset_bed_spawn"`
}

// Worlds creates and destroys world instances in the host.
type Worlds interface {
	CreateWorld(name, dir string) error
	ConfigureWorld(name string, s WorldSettings) error
	UnloadWorld(name string) error
	Occupants(name string) []string
	FallbackLocation() Location
}

// Participants moves connected participants around and changes what they
// can do and see.
type Participants interface {
	Online(p string) bool
	Teleport(p string, loc Location) error
	ApplyEffects(p string, e Effects) error
	SetVisible(viewer, target string, visible bool) error
}

type Engine interface {
	Worlds
	Participants
}
