package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/pixil98/go-arena/internal/driver"
	"github.com/pixil98/go-arena/internal/engine"
	"github.com/pixil98/go-arena/internal/lobby"
	"github.com/pixil98/go-arena/internal/maps"
	"github.com/pixil98/go-arena/internal/match"
	"github.com/pixil98/go-arena/internal/notify"
	"github.com/pixil98/go-arena/internal/player"
	"github.com/pixil98/go-arena/internal/team"
	"github.com/pixil98/go-arena/internal/worker"
	"github.com/pixil98/go-arena/internal/world"
)

var (
	ErrRestartRequested = errors.New("restart requested")
	ErrNotJoined        = errors.New("not in the lobby or a match")
	ErrAlreadyPlaying   = errors.New("already playing")
	ErrJoinRejected     = errors.New("could not join the lobby")
	ErrUnknownEvent     = errors.New("unknown event")
)

type Config struct {
	MapsRoot     string
	InstanceRoot string
	Rotation     []string
	Teams        []team.Definition
	Lobby        lobby.Config
	// AutoJoin puts connecting participants and returning players straight
	// into the lobby.
	AutoJoin bool

	Match  []match.ControllerOpt
	Worlds []world.ProvisionerOpt
}

// presence is implemented by engines that need to be told who is connected.
type presence interface {
	Connect(p string)
	Disconnect(p string)
}

// Arena wires every component together and is the only way in from other
// goroutines. Each exported method runs its work on the control loop.
type Arena struct {
	cfg    Config
	driver *driver.Driver
	exec   world.Executor
	eng    engine.Engine
	notify *notify.Notifier

	catalog     *maps.Catalog
	provisioner *world.Provisioner
	teams       *team.Registry
	tracker     *player.Tracker
	match       *match.Controller
	lobby       *lobby.Controller

	online  map[string]struct{}
	restart atomic.Bool
}

func New(cfg Config, eng engine.Engine, n *notify.Notifier, opts ...ArenaOpt) *Arena {
	a := &Arena{
		cfg:    cfg,
		eng:    eng,
		notify: n,
		exec:   worker.Inline{},
		online: map[string]struct{}{},
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.driver == nil {
		a.driver = driver.NewDriver()
	}

	teams := cfg.Teams
	if len(teams) == 0 {
		teams = team.DefaultDefinitions()
	}

	a.catalog = maps.NewCatalog(cfg.MapsRoot)
	a.teams = team.NewRegistry(teams)
	a.tracker = player.NewTracker(eng)
	a.provisioner = world.NewProvisioner(cfg.MapsRoot, cfg.InstanceRoot, eng, a.tracker, a.driver, a.exec, cfg.Worlds...)

	matchOpts := append([]match.ControllerOpt{match.WithRestart(a.requestRestart)}, cfg.Match...)
	a.match = match.NewController(a.catalog, maps.NewRotation(cfg.Rotation), a.provisioner, a.teams, a.tracker, eng, n, a.driver, matchOpts...)
	a.lobby = lobby.NewController(cfg.Lobby, a.driver, n, a.tracker, a.match)
	a.match.OnReturnToLobby(a.returnToLobby)

	return a
}

// Init clears leftovers from a previous run and starts loading the first map.
// Start calls it; tests with a manual clock call it directly.
func (a *Arena) Init() error {
	a.provisioner.CleanupInstances()
	if err := a.match.Init(); err != nil {
		return fmt.Errorf("initializing match: %w", err)
	}
	return nil
}

// Start runs the control loop until ctx is done or a restart is requested,
// then tears every world down.
func (a *Arena) Start(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "arena started", "maps_root", a.cfg.MapsRoot)
	err := a.driver.Start(ctx)
	a.shutdown()

	if err != nil {
		return fmt.Errorf("running control loop: %w", err)
	}
	if a.restart.Load() {
		return ErrRestartRequested
	}
	return nil
}

func (a *Arena) requestRestart() {
	slog.Info("restarting after rotation completed")
	a.restart.Store(true)
	a.driver.Stop()
}

// shutdown must only run once the control loop has returned.
func (a *Arena) shutdown() {
	a.match.Shutdown()
	a.lobby.Clear()
	a.provisioner.TeardownAll()
	a.tracker.ClearAll()
	slog.Info("arena stopped")
}

func (a *Arena) do(ctx context.Context, fn func() error) error {
	return a.driver.Call(ctx, fn)
}

// returnToLobby gathers every connected participant in the waiting area of
// the world that just became ready. The match side already moved outgoing.
func (a *Arena) returnToLobby(outgoing []string) {
	if loc, ok := a.match.WaitingLocation(); ok {
		for _, p := range a.connected() {
			if slices.Contains(outgoing, p) {
				continue
			}
			a.tracker.SetWaiting(p)
			a.teleport(p, loc)
		}
	}

	if a.cfg.AutoJoin {
		for _, p := range outgoing {
			if _, ok := a.online[p]; ok && !a.lobby.Contains(p) {
				a.lobby.Add(p)
			}
		}
	}
	a.lobby.Reevaluate()
}

func (a *Arena) teleport(p string, loc engine.Location) {
	if err := a.eng.Teleport(p, loc); err != nil {
		slog.Warn("teleporting participant", "participant", p, "world", loc.World, "error", err)
	}
}

func (a *Arena) playing() bool {
	switch a.match.State() {
	case match.StateActive, match.StateEnding:
		return true
	}
	return false
}

// Connect registers p and places it in the current world.
func (a *Arena) Connect(ctx context.Context, p string) error {
	return a.do(ctx, func() error {
		if pr, ok := a.eng.(presence); ok {
			pr.Connect(p)
		}
		a.online[p] = struct{}{}

		if loc, ok := a.match.WaitingLocation(); ok {
			a.teleport(p, loc)
		} else {
			a.match.EnsureWorld()
		}

		slog.Info("participant connected", "participant", p)

		if a.playing() {
			a.tracker.SetSpectating(p)
			a.notify.Send(p, "lobby.game-in-progress", nil)
		} else {
			a.tracker.SetWaiting(p)
		}
		if a.cfg.AutoJoin {
			a.lobby.Add(p)
		}
		return nil
	})
}

// Disconnect forgets p everywhere except its stats.
func (a *Arena) Disconnect(ctx context.Context, p string) error {
	return a.do(ctx, func() error {
		a.lobby.Remove(p)
		a.match.Quit(p)
		a.tracker.Forget(p)
		delete(a.online, p)
		if pr, ok := a.eng.(presence); ok {
			pr.Disconnect(p)
		}
		slog.Info("participant disconnected", "participant", p)
		return nil
	})
}

// Join queues p for the next match.
func (a *Arena) Join(ctx context.Context, p string) error {
	return a.do(ctx, func() error {
		if a.match.InRoster(p) {
			return ErrAlreadyPlaying
		}
		a.match.EnsureWorld()
		if !a.lobby.Add(p) {
			return ErrJoinRejected
		}
		if loc, ok := a.match.WaitingLocation(); ok {
			a.teleport(p, loc)
		}
		return nil
	})
}

// Leave takes p out of the lobby or the running match.
func (a *Arena) Leave(ctx context.Context, p string) error {
	return a.do(ctx, func() error {
		if !a.lobby.Remove(p) && !a.match.Leave(p) {
			return ErrNotJoined
		}
		a.notify.Send(p, "lobby.left", nil)
		return nil
	})
}

func (a *Arena) Death(ctx context.Context, victim, killer string, assists ...string) error {
	return a.do(ctx, func() error {
		a.match.HandleDeath(victim, killer, assists...)
		return nil
	})
}

// Respawn returns where victim comes back. ok is false outside a match.
func (a *Arena) Respawn(ctx context.Context, p string) (loc engine.Location, ok bool, err error) {
	err = a.do(ctx, func() error {
		loc, ok = a.match.RespawnLocation(p)
		return nil
	})
	return loc, ok, err
}

func (a *Arena) ForceStart(ctx context.Context) error {
	return a.do(ctx, a.lobby.ForceStart)
}

func (a *Arena) ForceEnd(ctx context.Context) error {
	return a.do(ctx, a.match.ForceEnd)
}

func (a *Arena) SetMap(ctx context.Context, key string) error {
	return a.do(ctx, func() error {
		return a.match.SetCurrentMap(key)
	})
}

func (a *Arena) NextMap(ctx context.Context) (string, error) {
	var key string
	err := a.do(ctx, func() error {
		var err error
		key, err = a.match.RotateNext()
		return err
	})
	return key, err
}

type MapList struct {
	Available []string `json:"available"`
	Rotation  []string `json:"rotation"`
	Current   string   `json:"current,omitempty"`
}

// Maps lists what is on disk and what is in the rotation.
func (a *Arena) Maps(ctx context.Context) (MapList, error) {
	var out MapList
	err := a.do(ctx, func() error {
		available, err := a.catalog.ListAvailable()
		if err != nil {
			return err
		}
		out.Available = available
		out.Rotation, _ = a.match.Rotation()
		if def := a.match.CurrentMap(); def != nil {
			out.Current = def.DirID
		}
		return nil
	})
	return out, err
}

func (a *Arena) JoinTeam(ctx context.Context, p, teamID string) error {
	return a.do(ctx, func() error {
		return a.match.SetTeamPreference(p, teamID)
	})
}

func (a *Arena) LeaveTeam(ctx context.Context, p string) error {
	return a.do(ctx, func() error {
		if !a.match.ClearTeamPreference(p) {
			return fmt.Errorf("%s has no team preference", p)
		}
		return nil
	})
}

func (a *Arena) Stats(ctx context.Context, p string) (match.Stats, error) {
	var s match.Stats
	err := a.do(ctx, func() error {
		s = a.match.Stats(p)
		return nil
	})
	return s, err
}

// Online lists connected participants.
func (a *Arena) Online(ctx context.Context) ([]string, error) {
	var out []string
	err := a.do(ctx, func() error {
		out = a.connected()
		return nil
	})
	return out, err
}

func (a *Arena) connected() []string {
	out := make([]string, 0, len(a.online))
	for p := range a.online {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
