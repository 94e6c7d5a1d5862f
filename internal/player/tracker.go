package player

import (
	"log/slog"
	"sort"

	"github.com/pixil98/go-arena/internal/engine"
)

type Role int

const (
	RoleWaiting Role = iota
	RoleInMatch
	RoleSpectating
)

func (r Role) String() string {
	switch r {
	case RoleInMatch:
		return "in_match"
	case RoleSpectating:
		return "spectating"
	default:
		return "waiting"
	}
}

// observer roles are hidden from anyone playing
func (r Role) observer() bool {
	return r != RoleInMatch
}

// EffectsFor returns the environment a role puts a participant in.
func EffectsFor(r Role) engine.Effects {
	if r == RoleInMatch {
		return engine.Effects{
			Mode:           engine.ModeSurvival,
			ResetVitals:    true,
			ClearInventory: true,
			ClearEffects:   true,
			ResetBedSpawn:  true,
		}
	}
	return engine.Effects{
		Mode:           engine.ModeSpectator,
		Flight:         true,
		Invulnerable:   true,
		ResetVitals:    true,
		ClearInventory: true,
		ClearEffects:   true,
	}
}

// Tracker records each participant's role and reapplies the role's effects
// on every transition. Must be used from the control loop.
type Tracker struct {
	eng   engine.Participants
	roles map[string]Role
}

func NewTracker(eng engine.Participants) *Tracker {
	return &Tracker{
		eng:   eng,
		roles: map[string]Role{},
	}
}

func (t *Tracker) SetWaiting(p string) {
	t.set(p, RoleWaiting)
}

func (t *Tracker) SetInMatch(p string) {
	t.set(p, RoleInMatch)
}

func (t *Tracker) SetSpectating(p string) {
	t.set(p, RoleSpectating)
}

// RoleOf defaults to RoleWaiting for unknown participants.
func (t *Tracker) RoleOf(p string) Role {
	return t.roles[p]
}

// InRole lists participants holding r, sorted.
func (t *Tracker) InRole(r Role) []string {
	var out []string
	for p, role := range t.roles {
		if role == r {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Forget drops a participant that has left the server.
func (t *Tracker) Forget(p string) {
	delete(t.roles, p)
}

func (t *Tracker) ClearAll() {
	t.roles = map[string]Role{}
}

func (t *Tracker) set(p string, r Role) {
	t.roles[p] = r

	if !t.eng.Online(p) {
		return
	}
	if err := t.eng.ApplyEffects(p, EffectsFor(r)); err != nil {
		slog.Warn("applying role effects", "participant", p, "role", r, "error", err)
	}
	t.refreshVisibility(p)
}

// refreshVisibility recomputes both directions between p and every other
// tracked participant. A viewer in a match cannot see observers; observers
// see everyone.
func (t *Tracker) refreshVisibility(p string) {
	for other, role := range t.roles {
		if other == p || !t.eng.Online(other) {
			continue
		}
		t.show(other, p, !(role == RoleInMatch && t.roles[p].observer()))
		t.show(p, other, !(t.roles[p] == RoleInMatch && role.observer()))
	}
}

func (t *Tracker) show(viewer, target string, visible bool) {
	if err := t.eng.SetVisible(viewer, target, visible); err != nil {
		slog.Warn("updating visibility", "viewer", viewer, "target", target, "error", err)
	}
}
