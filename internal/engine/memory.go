package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pixil98/go-arena/internal/maps"
)

const DefaultFallbackWorld = "world"

type memoryWorld struct {
	dir      string
	settings WorldSettings
}

type memoryParticipant struct {
	location Location
	effects  Effects
	hidden   map[string]bool
}

// Memory is an in-process Engine. It keeps worlds and participants in maps
// and enforces the same rules a host would: teleports need a loaded world
// and occupied worlds refuse to unload.
type Memory struct {
	mu sync.Mutex

	fallback     Location
	worlds       map[string]*memoryWorld
	participants map[string]*memoryParticipant

	createErr error
}

func NewMemory(fallbackWorld string) *Memory {
	if fallbackWorld == "" {
		fallbackWorld = DefaultFallbackWorld
	}
	return &Memory{
		fallback: Location{World: fallbackWorld, Pose: maps.Pose{Y: 64}},
		worlds: map[string]*memoryWorld{
			fallbackWorld: {settings: WorldSettings{DaylightCycle: true, WeatherCycle: true, MonsterSpawning: true}},
		},
		participants: map[string]*memoryParticipant{},
	}
}

// FailNextCreate makes the next CreateWorld return err.
func (m *Memory) FailNextCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// Connect registers a participant at the fallback location.
func (m *Memory) Connect(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[p]; ok {
		return
	}
	m.participants[p] = &memoryParticipant{
		location: m.fallback,
		hidden:   map[string]bool{},
	}
}

func (m *Memory) Disconnect(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.participants, p)
	for _, other := range m.participants {
		delete(other.hidden, p)
	}
}

func (m *Memory) CreateWorld(name, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.createErr; err != nil {
		m.createErr = nil
		return err
	}
	if _, ok := m.worlds[name]; ok {
		return fmt.Errorf("%w: %s", ErrWorldExists, name)
	}
	m.worlds[name] = &memoryWorld{dir: dir}
	return nil
}

func (m *Memory) ConfigureWorld(name string, s WorldSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.worlds[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorld, name)
	}
	w.settings = s
	return nil
}

func (m *Memory) UnloadWorld(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.worlds[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorld, name)
	}
	if name == m.fallback.World {
		return fmt.Errorf("refusing to unload fallback world %s", name)
	}
	if n := len(m.occupantsLocked(name)); n > 0 {
		return fmt.Errorf("%w: %s has %d", ErrWorldOccupied, name, n)
	}
	delete(m.worlds, name)
	return nil
}

func (m *Memory) Occupants(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.occupantsLocked(name)
}

func (m *Memory) occupantsLocked(name string) []string {
	var out []string
	for id, p := range m.participants {
		if p.location.World == name {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Memory) FallbackLocation() Location {
	return m.fallback
}

func (m *Memory) Online(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.participants[p]
	return ok
}

func (m *Memory) Teleport(p string, loc Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mp, ok := m.participants[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParticipantOffline, p)
	}
	if _, ok := m.worlds[loc.World]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorld, loc.World)
	}
	mp.location = loc
	return nil
}

func (m *Memory) ApplyEffects(p string, e Effects) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mp, ok := m.participants[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParticipantOffline, p)
	}
	mp.effects = e
	return nil
}

func (m *Memory) SetVisible(viewer, target string, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mp, ok := m.participants[viewer]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParticipantOffline, viewer)
	}
	if visible {
		delete(mp.hidden, target)
	} else {
		mp.hidden[target] = true
	}
	return nil
}

// LocationOf returns where p currently is.
func (m *Memory) LocationOf(p string) (Location, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.participants[p]
	if !ok {
		return Location{}, false
	}
	return mp.location, true
}

func (m *Memory) EffectsOf(p string) (Effects, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.participants[p]
	if !ok {
		return Effects{}, false
	}
	return mp.effects, true
}

// CanSee reports whether viewer currently sees target.
func (m *Memory) CanSee(viewer, target string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.participants[viewer]
	if !ok {
		return false
	}
	return !mp.hidden[target]
}

// WorldNames lists loaded worlds, fallback included.
func (m *Memory) WorldNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.worlds))
	for n := range m.worlds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Memory) SettingsOf(world string) (WorldSettings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.worlds[world]
	if !ok {
		return WorldSettings{}, false
	}
	return w.settings, true
}
