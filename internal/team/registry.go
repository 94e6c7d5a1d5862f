package team

import (
	"log/slog"
	"sort"
)

const DefaultCapacity = 16

// Definition declares a team.
type Definition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Capacity int    `json:"max_players"`
}

func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: "red", Name: "Red Team", Color: "red", Capacity: DefaultCapacity},
		{ID: "blue", Name: "Blue Team", Color: "blue", Capacity: DefaultCapacity},
		{ID: "green", Name: "Green Team", Color: "green", Capacity: DefaultCapacity},
		{ID: "yellow", Name: "Yellow Team", Color: "yellow", Capacity: DefaultCapacity},
	}
}

type Team struct {
	ID       string
	Name     string
	Color    string
	Capacity int

	members map[string]struct{}
	score   int
}

func (t *Team) Size() int {
	return len(t.members)
}

func (t *Team) Score() int {
	return t.score
}

func (t *Team) IsFull() bool {
	return len(t.members) >= t.Capacity
}

func (t *Team) Has(p string) bool {
	_, ok := t.members[p]
	return ok
}

// Members returns the team's participants sorted by id.
func (t *Team) Members() []string {
	out := make([]string, 0, len(t.members))
	for p := range t.members {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Registry holds a fixed, ordered set of teams. A participant is on at most
// one team at a time.
type Registry struct {
	teams    []*Team
	byID     map[string]*Team
	memberOf map[string]*Team
}

func NewRegistry(defs []Definition) *Registry {
	r := &Registry{
		byID:     map[string]*Team{},
		memberOf: map[string]*Team{},
	}
	for _, d := range defs {
		if _, dup := r.byID[d.ID]; dup {
			slog.Warn("ignoring duplicate team", "team", d.ID)
			continue
		}
		capacity := d.Capacity
		if capacity <= 0 {
			capacity = DefaultCapacity
		}
		t := &Team{
			ID:       d.ID,
			Name:     d.Name,
			Color:    d.Color,
			Capacity: capacity,
			members:  map[string]struct{}{},
		}
		r.teams = append(r.teams, t)
		r.byID[d.ID] = t
	}
	return r
}

func (r *Registry) Get(id string) (*Team, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// All returns every team in declaration order.
func (r *Registry) All() []*Team {
	return append([]*Team(nil), r.teams...)
}

func (r *Registry) TeamOf(p string) (*Team, bool) {
	t, ok := r.memberOf[p]
	return t, ok
}

// Assign moves p to teamID. On failure p ends up on no team.
func (r *Registry) Assign(p, teamID string) bool {
	r.Remove(p)

	t, ok := r.byID[teamID]
	if !ok || t.IsFull() {
		return false
	}
	t.members[p] = struct{}{}
	r.memberOf[p] = t
	return true
}

// AutoAssign puts p on the non-full team with the fewest members. Ties go to
// the team declared first.
func (r *Registry) AutoAssign(p string) bool {
	r.Remove(p)

	var best *Team
	for _, t := range r.teams {
		if t.IsFull() {
			continue
		}
		if best == nil || t.Size() < best.Size() {
			best = t
		}
	}
	if best == nil {
		return false
	}
	return r.Assign(p, best.ID)
}

func (r *Registry) Remove(p string) {
	t, ok := r.memberOf[p]
	if !ok {
		return
	}
	delete(t.members, p)
	delete(r.memberOf, p)
}

// ActiveTeams returns teams with at least one member in declaration order.
func (r *Registry) ActiveTeams() []*Team {
	var out []*Team
	for _, t := range r.teams {
		if t.Size() > 0 {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) AddScore(teamID string, n int) bool {
	t, ok := r.byID[teamID]
	if !ok {
		return false
	}
	t.score += n
	return true
}

// ResetAll clears every membership and score.
func (r *Registry) ResetAll() {
	for _, t := range r.teams {
		t.members = map[string]struct{}{}
		t.score = 0
	}
	r.memberOf = map[string]*Team{}
}
