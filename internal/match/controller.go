package match

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-arena/internal/driver"
	"github.com/pixil98/go-arena/internal/engine"
	"github.com/pixil98/go-arena/internal/maps"
	"github.com/pixil98/go-arena/internal/team"
	"github.com/pixil98/go-arena/internal/world"
)

const (
	DefaultKillPoints   = 1
	DefaultEndDelay     = 5 * time.Second
	DefaultRestartDelay = 3 * time.Second

	// a running match needs at least this many participants
	minRoster = 2
)

type ExhaustedPolicy int

const (
	// ExhaustedRestart restarts the process once every map was played.
	ExhaustedRestart ExhaustedPolicy = iota
	// ExhaustedLoop starts the rotation over.
	ExhaustedLoop
)

func (p ExhaustedPolicy) String() string {
	if p == ExhaustedLoop {
		return "loop"
	}
	return "restart"
}

func ParseExhaustedPolicy(s string) (ExhaustedPolicy, error) {
	switch s {
	case "", "restart":
		return ExhaustedRestart, nil
	case "loop":
		return ExhaustedLoop, nil
	default:
		return ExhaustedRestart, fmt.Errorf("unknown rotation policy %q", s)
	}
}

type Catalog interface {
	Load(key string) (*maps.Definition, error)
	IsAvailable(key string) bool
	ListAvailable() ([]string, error)
}

type Worlds interface {
	GetActive(key string) (*world.Handle, bool)
	ProvisionAsync(def *maps.Definition) *world.Future
	Teardown(key string) error
	Retire(h *world.Handle)
	Occupants(h *world.Handle) []string
}

type Roles interface {
	SetWaiting(p string)
	SetInMatch(p string)
	SetSpectating(p string)
}

type Notifier interface {
	Broadcast(id string, params map[string]any)
	Send(p, id string, params map[string]any)
}

type Scheduler interface {
	After(delay time.Duration, fn func()) *driver.Task
	Every(delay, interval time.Duration, fn func()) *driver.Task
	Now() time.Time
}

// Controller is the match lifecycle state machine. Every method must be
// called from the control loop.
type Controller struct {
	catalog  Catalog
	rotation *maps.Rotation
	worlds   Worlds
	teams    *team.Registry
	roles    Roles
	eng      engine.Participants
	notify   Notifier
	sched    Scheduler

	killPoints   int
	assistPoints int
	endDelay     time.Duration
	restartDelay time.Duration
	exhausted    ExhaustedPolicy
	restart      func()
	newID        func() string

	state        State
	session      *Session
	outcome      *Outcome
	currentDef   *maps.Definition
	currentWorld *world.Handle
	stats        *Ledger
	prefs        map[string]string

	hasEnded        bool
	isTransitioning bool
	provisioning    bool

	clock      *driver.Task
	transition *driver.Task
	restarting *driver.Task

	onLobby []func(outgoing []string)
}

func NewController(catalog Catalog, rotation *maps.Rotation, worlds Worlds, teams *team.Registry, roles Roles, eng engine.Participants, notify Notifier, sched Scheduler, opts ...ControllerOpt) *Controller {
	c := &Controller{
		catalog:      catalog,
		rotation:     rotation,
		worlds:       worlds,
		teams:        teams,
		roles:        roles,
		eng:          eng,
		notify:       notify,
		sched:        sched,
		killPoints:   DefaultKillPoints,
		endDelay:     DefaultEndDelay,
		restartDelay: DefaultRestartDelay,
		newID:        uuid.NewString,
		stats:        NewLedger(),
		prefs:        map[string]string{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// OnReturnToLobby registers fn to run every time a world becomes ready for
// the lobby. outgoing lists the participants that were just relocated.
func (c *Controller) OnReturnToLobby(fn func(outgoing []string)) {
	c.onLobby = append(c.onLobby, fn)
}

// Init prepares the rotation and starts loading the first map. It fails only
// when no map at all can be used.
func (c *Controller) Init() error {
	if c.rotation.Len() == 0 {
		keys, err := c.catalog.ListAvailable()
		if err != nil {
			return fmt.Errorf("discovering maps: %w", err)
		}
		for _, k := range keys {
			c.rotation.Add(k)
		}
		slog.Info("rotation discovered from maps root", "maps", keys)
	}

	for _, k := range c.rotation.RemoveUnavailable(c.catalog.IsAvailable) {
		slog.Warn("dropping unavailable map from rotation", "map", k)
	}

	for c.rotation.Len() > 0 {
		key, _ := c.rotation.Current()
		def, err := c.catalog.Load(key)
		if err != nil {
			slog.Error("loading map", "map", key, "error", err)
			c.rotation.Remove(key)
			continue
		}

		c.state = StateLobby
		slog.Info("loading first map", "map", key, "rotation", c.rotation.Keys())
		c.loadWorld(def, nil)
		return nil
	}

	return ErrNoMaps
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Session() *Session {
	return c.session
}

func (c *Controller) CurrentMap() *maps.Definition {
	return c.currentDef
}

func (c *Controller) CurrentWorld() *world.Handle {
	return c.currentWorld
}

func (c *Controller) InRoster(p string) bool {
	return c.session != nil && c.session.Has(p)
}

// LastOutcome returns how the most recent session ended.
func (c *Controller) LastOutcome() (Outcome, bool) {
	if c.outcome == nil {
		return Outcome{}, false
	}
	return *c.outcome, true
}

func (c *Controller) Stats(p string) Stats {
	return c.stats.Get(p)
}

func (c *Controller) Leaders(limit int) []Entry {
	return c.stats.Leaders(limit)
}

// Remaining reports the time left in the running session.
func (c *Controller) Remaining() (time.Duration, bool) {
	if c.session == nil {
		return 0, false
	}
	return c.session.Remaining(c.sched.Now()), true
}

// Rotation returns the rotation keys and the current position.
func (c *Controller) Rotation() ([]string, int) {
	return c.rotation.Keys(), c.rotation.Index()
}

// RosterLimits returns the selected map's player limits.
func (c *Controller) RosterLimits() (int, int, bool) {
	if c.currentDef == nil {
		return 0, 0, false
	}
	return c.currentDef.MinPlayers, c.currentDef.MaxPlayers, true
}

// AcceptingRoster reports whether StartMatch could succeed right now.
func (c *Controller) AcceptingRoster() bool {
	return c.state == StateLobby && !c.provisioning && c.currentDef != nil && c.currentWorld != nil
}

// WaitingLocation is the waiting area of the current world. There is none
// while a world is loading, since the current world may be about to go.
func (c *Controller) WaitingLocation() (engine.Location, bool) {
	if c.provisioning || c.currentDef == nil || c.currentWorld == nil {
		return engine.Location{}, false
	}
	return engine.Location{World: c.currentWorld.Name, Pose: c.currentDef.WaitingArea}, true
}

// StartMatch takes the lobby roster and starts playing. A rejected roster
// leaves the controller untouched.
func (c *Controller) StartMatch(roster []string) error {
	if c.state != StateLobby {
		slog.Info("rejecting roster", "state", c.state, "size", len(roster))
		return fmt.Errorf("%w: state is %s", ErrNotInLobby, c.state)
	}
	if c.currentDef == nil {
		slog.Error("rejecting roster, no map selected")
		return ErrNoMap
	}
	if len(roster) == 0 {
		return ErrEmptyRoster
	}
	if c.provisioning {
		slog.Info("rejecting roster, world still loading", "map", c.currentDef.DirID)
		return fmt.Errorf("%w: world for %s is still loading", ErrNoWorld, c.currentDef.DirID)
	}

	def, err := c.catalog.Load(c.currentDef.DirID)
	if err != nil {
		slog.Error("rejecting roster, map failed to load", "map", c.currentDef.DirID, "error", err)
		return fmt.Errorf("loading map %s: %w", c.currentDef.DirID, err)
	}
	if c.currentWorld == nil {
		slog.Error("rejecting roster, no world instance", "map", def.DirID)
		c.EnsureWorld()
		return fmt.Errorf("%w: %s", ErrNoWorld, def.DirID)
	}
	c.currentDef = def

	now := c.sched.Now()
	c.session = newSession(c.newID(), def.DirID, now, def.TimeLimitDuration(), roster)
	c.outcome = nil
	c.hasEnded = false

	c.teams.ResetAll()
	c.assignTeams()

	spawned := map[string]int{}
	for _, p := range c.session.Participants() {
		t, _ := c.teams.TeamOf(p)
		c.roles.SetInMatch(p)
		c.teleport(p, c.spawnFor(p, t.ID, spawned[t.ID]))
		spawned[t.ID]++
		c.stats.entry(p).GamesPlayed++
	}

	c.state = StateActive
	c.clock = c.sched.Every(time.Second, time.Second, c.tick)

	slog.Info("match started",
		"session", c.session.ID,
		"map", def.DirID,
		"world", c.currentWorld.Name,
		"participants", c.session.Size(),
		"time_limit", c.session.TimeLimit)

	c.notify.Broadcast("game.started", map[string]any{"map": def.Name})
	for _, p := range c.session.Participants() {
		t, _ := c.teams.TeamOf(p)
		c.notify.Send(p, "game.team-assigned", map[string]any{"team": t.Name, "color": t.Color})
	}
	return nil
}

// assignTeams honors preferences, balances everyone else and turns anyone
// who does not fit into a spectator.
func (c *Controller) assignTeams() {
	var rest []string
	for _, p := range c.session.Participants() {
		if id, ok := c.prefs[p]; ok && c.teams.Assign(p, id) {
			continue
		}
		rest = append(rest, p)
	}

	for _, p := range rest {
		if c.teams.AutoAssign(p) {
			continue
		}
		slog.Warn("every team is full, spectating", "participant", p)
		c.session.remove(p)
		c.roles.SetSpectating(p)
		if loc, ok := c.WaitingLocation(); ok {
			c.teleport(p, loc)
		}
	}
}

// spawnFor picks the team spawn point, falling back to the waiting area.
func (c *Controller) spawnFor(p, teamID string, index int) engine.Location {
	pose, ok := c.currentDef.SpawnPoint(teamID, index)
	if !ok {
		slog.Warn("no spawn point for team, using waiting area", "team", teamID, "participant", p, "map", c.currentDef.DirID)
		pose = c.currentDef.WaitingArea
	}
	return engine.Location{World: c.currentWorld.Name, Pose: pose}
}

func (c *Controller) teleport(p string, loc engine.Location) {
	if err := c.eng.Teleport(p, loc); err != nil {
		slog.Warn("teleporting participant", "participant", p, "world", loc.World, "error", err)
	}
}

func (c *Controller) tick() {
	if c.state != StateActive || c.hasEnded {
		return
	}

	if c.session.Elapsed(c.sched.Now()) >= c.session.TimeLimit {
		c.end("time expired", nil)
		return
	}
	c.checkWinConditions()
}

func (c *Controller) checkWinConditions() {
	for _, obj := range c.currentDef.Objectives {
		switch obj.Kind {
		case maps.KindKillCount:
			for _, t := range c.teams.All() {
				if t.Score() >= obj.Target {
					c.end("kill target reached", t)
					return
				}
			}
		case maps.KindCaptureFlag, maps.KindControlPoint:
			// scored by the host, nothing to evaluate here
		default:
			slog.Debug("skipping unsupported objective", "objective", obj.RawType)
		}
	}

	switch active := c.teams.ActiveTeams(); len(active) {
	case 0:
		c.end("no players remaining", nil)
	case 1:
		c.end("last team standing", active[0])
	}
}

// HandleDeath scores a death during play. killer may be empty.
func (c *Controller) HandleDeath(victim, killer string, assists ...string) {
	if c.state != StateActive || !c.InRoster(victim) {
		return
	}

	c.stats.entry(victim).Deaths++

	if killer == "" || killer == victim || !c.InRoster(killer) {
		c.notify.Broadcast("game.player-died", map[string]any{"victim": victim})
		return
	}

	kt, _ := c.teams.TeamOf(killer)
	vt, _ := c.teams.TeamOf(victim)
	ks := c.stats.entry(killer)
	ks.Kills++
	if kt != nil && kt != vt {
		c.teams.AddScore(kt.ID, c.killPoints)
		ks.Points += c.killPoints
	}
	c.notify.Broadcast("game.player-killed", map[string]any{"victim": victim, "killer": killer})

	for _, a := range assists {
		if a == killer || a == victim || !c.InRoster(a) {
			continue
		}
		as := c.stats.entry(a)
		as.Assists++
		if at, ok := c.teams.TeamOf(a); ok && at != vt {
			c.teams.AddScore(at.ID, c.assistPoints)
			as.Points += c.assistPoints
		}
		c.notify.Broadcast("game.player-assisted", map[string]any{"assister": a})
	}
}

// RespawnLocation is where a dead roster member comes back.
func (c *Controller) RespawnLocation(p string) (engine.Location, bool) {
	if c.state != StateActive || !c.InRoster(p) || c.currentWorld == nil {
		return engine.Location{}, false
	}
	t, ok := c.teams.TeamOf(p)
	if !ok {
		return engine.Location{}, false
	}
	return c.spawnFor(p, t.ID, c.stats.Get(p).Deaths), true
}

// RemoveParticipant drops p from the running session. The match ends when
// fewer than two participants are left.
func (c *Controller) RemoveParticipant(p string) bool {
	if c.session == nil || !c.session.remove(p) {
		return false
	}
	c.teams.Remove(p)

	slog.Info("participant left match", "participant", p, "remaining", c.session.Size())

	if c.state == StateActive && c.session.Size() < minRoster {
		c.end("insufficient players", nil)
	}
	return true
}

// Quit forgets everything about p except its stats.
func (c *Controller) Quit(p string) {
	c.RemoveParticipant(p)
	delete(c.prefs, p)
}

// Leave takes p out of the match and back to the waiting area.
func (c *Controller) Leave(p string) bool {
	if !c.RemoveParticipant(p) {
		return false
	}
	c.roles.SetWaiting(p)
	if loc, ok := c.WaitingLocation(); ok {
		c.teleport(p, loc)
	}
	return true
}

// ForceEnd ends the running match.
func (c *Controller) ForceEnd() error {
	if c.state != StateActive || c.hasEnded {
		return fmt.Errorf("%w: state is %s", ErrNoMatch, c.state)
	}
	c.end("forced", nil)
	return nil
}

// SetTeamPreference records the team p wants to play for next match.
func (c *Controller) SetTeamPreference(p, teamID string) error {
	t, ok := c.teams.Get(teamID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, teamID)
	}
	c.prefs[p] = t.ID
	c.notify.Send(p, "team.joined", map[string]any{"team": t.Name})
	return nil
}

func (c *Controller) ClearTeamPreference(p string) bool {
	if _, ok := c.prefs[p]; !ok {
		return false
	}
	delete(c.prefs, p)
	c.notify.Send(p, "team.left", nil)
	return true
}

func (c *Controller) TeamPreference(p string) (string, bool) {
	id, ok := c.prefs[p]
	return id, ok
}

// end stops the match once. winner is nil when the outcome should be decided
// from the remaining teams.
func (c *Controller) end(reason string, winner *team.Team) {
	if c.hasEnded || c.session == nil {
		slog.Info("match already ended, ignoring", "reason", reason)
		return
	}
	c.hasEnded = true

	c.clock.Cancel()
	c.clock = nil

	c.session.EndedAt = c.sched.Now()
	c.session.State = StateEnding
	c.state = StateEnding

	if winner == nil {
		winner = c.decide()
	}

	out := Outcome{SessionID: c.session.ID, Reason: reason}
	if winner != nil {
		out.Winner = winner.ID
	}
	c.outcome = &out

	slog.Info("match ended",
		"session", c.session.ID,
		"reason", reason,
		"winner", out.Winner,
		"duration", c.session.Elapsed(c.session.EndedAt))

	c.announce(winner, reason)

	c.transition.Cancel()
	c.transition = c.sched.After(c.endDelay, c.advance)
}

// decide picks the winner from the teams that still have members. A tie for
// the top score is a draw.
func (c *Controller) decide() *team.Team {
	active := c.teams.ActiveTeams()
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}

	var best *team.Team
	tied := false
	for _, t := range active {
		switch {
		case best == nil || t.Score() > best.Score():
			best = t
			tied = false
		case t.Score() == best.Score():
			tied = true
		}
	}
	if tied {
		return nil
	}
	return best
}

func (c *Controller) announce(winner *team.Team, reason string) {
	if winner == nil {
		if len(c.teams.ActiveTeams()) > 0 {
			c.notify.Broadcast("game.draw", map[string]any{"reason": reason})
		} else {
			c.notify.Broadcast("game.ended", map[string]any{"reason": reason})
		}
		return
	}

	c.notify.Broadcast("game.victory", map[string]any{"team": winner.Name, "reason": reason})
	for _, p := range c.session.Participants() {
		if winner.Has(p) {
			c.stats.entry(p).GamesWon++
			continue
		}
		c.notify.Send(p, "game.defeat", map[string]any{"team": winner.Name})
	}
}

// EnsureWorld starts loading the current map when there is no world for it,
// for example after a failed transition.
func (c *Controller) EnsureWorld() {
	if c.currentWorld != nil || c.currentDef == nil || c.provisioning || c.state != StateLobby {
		return
	}
	slog.Info("retrying world for current map", "map", c.currentDef.DirID)
	c.loadWorld(c.currentDef, nil)
}

// SetCurrentMap selects key and loads its world. Only allowed in the lobby.
func (c *Controller) SetCurrentMap(key string) error {
	if c.state != StateLobby || c.provisioning {
		return fmt.Errorf("%w: map changes need the lobby, state is %s", ErrNotInLobby, c.state)
	}
	if !c.catalog.IsAvailable(key) {
		return fmt.Errorf("%w: %s", ErrUnknownMap, key)
	}
	def, err := c.catalog.Load(key)
	if err != nil {
		return fmt.Errorf("loading map %s: %w", key, err)
	}

	c.rotation.Add(key)
	c.rotation.SetCurrent(key)

	slog.Info("map selected", "map", key)
	c.notify.Broadcast("map.transition", map[string]any{"map": def.Name})
	c.loadWorld(def, c.outgoing())
	return nil
}

// RotateNext skips to the next map in the rotation. Only allowed in the
// lobby. An exhausted rotation wraps around.
func (c *Controller) RotateNext() (string, error) {
	if c.state != StateLobby || c.provisioning {
		return "", fmt.Errorf("%w: map changes need the lobby, state is %s", ErrNotInLobby, c.state)
	}
	key, err := c.rotation.Advance()
	if err != nil && !errors.Is(err, maps.ErrRotationExhausted) {
		return "", err
	}
	def, err := c.catalog.Load(key)
	if err != nil {
		return "", fmt.Errorf("loading map %s: %w", key, err)
	}

	slog.Info("skipped to next map", "map", key)
	c.notify.Broadcast("map.transition", map[string]any{"map": def.Name})
	c.loadWorld(def, c.outgoing())
	return key, nil
}
