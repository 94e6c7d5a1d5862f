package arena

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/pixil98/go-arena/internal/driver"
	"github.com/pixil98/go-arena/internal/engine"
	"github.com/pixil98/go-arena/internal/lobby"
	"github.com/pixil98/go-arena/internal/maps"
	"github.com/pixil98/go-arena/internal/match"
	"github.com/pixil98/go-arena/internal/messaging"
	"github.com/pixil98/go-arena/internal/notify"
	"github.com/pixil98/go-arena/internal/player"
	"github.com/pixil98/go-arena/internal/team"
	"github.com/pixil98/go-testutil"
)

var epoch = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

const mapDoc = `
id: %[1]s
name: %[1]s
time-limit: 600
min-players: 2
max-players: 4
waiting-area: {x: 0, y: 70, z: 0}
game-boundary:
  min: {x: -50, y: 0, z: -50}
  max: {x: 50, y: 128, z: 50}
spawn-points:
  red:
    - {x: 10, y: 65, z: 0}
  blue:
    - {x: -10, y: 65, z: 0}
objectives:
  - type: kill_count
    target: 3
`

func writeMaps(t *testing.T, root string, keys ...string) {
	t.Helper()
	for _, key := range keys {
		dir := filepath.Join(root, key)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, maps.DefinitionFile), []byte(fmt.Sprintf(mapDoc, key)), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, maps.LevelFile), []byte("level"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

type fixture struct {
	a    *Arena
	d    *driver.Driver
	mem  *engine.Memory
	msgs []notify.Message
}

func (f *fixture) count(id string) int {
	n := 0
	for _, m := range f.msgs {
		if m.ID == id {
			n++
		}
	}
	return n
}

// heldExecutor queues world I/O while hold is set, so a test can act while
// a world is still loading.
type heldExecutor struct {
	hold bool
	jobs []func()
}

func (e *heldExecutor) Submit(fn func()) {
	if e.hold {
		e.jobs = append(e.jobs, fn)
		return
	}
	fn()
}

func (e *heldExecutor) release() {
	e.hold = false
	jobs := e.jobs
	e.jobs = nil
	for _, fn := range jobs {
		fn()
	}
}

func newFixture(t *testing.T, mutate func(*Config), opts ...ArenaOpt) *fixture {
	t.Helper()

	root := t.TempDir()
	mapsRoot := filepath.Join(root, "maps")
	writeMaps(t, mapsRoot, "dust", "mesa")

	cfg := Config{
		MapsRoot:     mapsRoot,
		InstanceRoot: filepath.Join(root, "instances"),
		Rotation:     []string{"dust", "mesa"},
		Teams: []team.Definition{
			{ID: "red", Name: "Red Team", Color: "red", Capacity: 4},
			{ID: "blue", Name: "Blue Team", Color: "blue", Capacity: 4},
		},
		Lobby: lobby.Config{MinPlayers: 2, MaxPlayers: 4, Countdown: 3},
		Match: []match.ControllerOpt{
			match.WithEndDelay(2 * time.Second),
			match.WithRestartDelay(time.Second),
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		d:   driver.NewDriver(driver.WithManualClock(epoch)),
		mem: engine.NewMemory(""),
	}
	n := notify.NewNotifier(notify.DefaultCatalog(), notify.SinkFunc(func(m notify.Message) error {
		f.msgs = append(f.msgs, m)
		return nil
	}))
	f.a = New(cfg, f.mem, n, append([]ArenaOpt{WithDriver(f.d)}, opts...)...)

	if err := f.a.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	f.d.Flush()
	return f
}

func (f *fixture) status(t *testing.T) Status {
	t.Helper()
	s, err := f.a.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	return s
}

func (f *fixture) connect(t *testing.T, ps ...string) {
	t.Helper()
	for _, p := range ps {
		if err := f.a.Connect(context.Background(), p); err != nil {
			t.Fatalf("connect %s: %v", p, err)
		}
	}
}

func (f *fixture) join(t *testing.T, ps ...string) {
	t.Helper()
	for _, p := range ps {
		if err := f.a.Join(context.Background(), p); err != nil {
			t.Fatalf("join %s: %v", p, err)
		}
	}
}

func TestArena_Init(t *testing.T) {
	f := newFixture(t, nil)

	s := f.status(t)
	testutil.AssertEqual(t, "state", s.State, "lobby")
	testutil.AssertEqual(t, "map", s.Map, "dust")
	testutil.AssertEqual(t, "world", s.World != "", true)
	testutil.AssertEqual(t, "teams", len(s.Teams), 2)
}

func TestArena_FullRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	f.connect(t, "amy", "bob")
	loc, ok := f.mem.LocationOf("amy")
	testutil.AssertEqual(t, "located", ok, true)
	testutil.AssertEqual(t, "waiting area", loc.Pose.Y, 70.0)

	f.join(t, "amy", "bob")
	testutil.AssertEqual(t, "counting down", f.status(t).State, "countdown")

	f.d.Advance(3 * time.Second)
	s := f.status(t)
	testutil.AssertEqual(t, "state", s.State, "active")
	testutil.AssertEqual(t, "lobby emptied", s.Lobby.Size, 0)
	testutil.AssertEqual(t, "remaining", s.Remaining, 600)

	// amy is balanced onto red first
	for range 3 {
		if _, err := f.a.Dispatch(ctx, "death", messaging.Event{Participant: "bob", Killer: "amy"}); err != nil {
			t.Fatal(err)
		}
	}
	stats, err := f.a.Stats(ctx, "amy")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, "kills", stats.Kills, 3)

	f.d.Advance(time.Second)
	s = f.status(t)
	testutil.AssertEqual(t, "ending", s.State, "ending")
	testutil.AssertEqual(t, "winner", s.Outcome.Winner, "red")
	testutil.AssertEqual(t, "reason", s.Outcome.Reason, "kill target reached")

	f.d.Advance(2 * time.Second)
	f.d.Flush()
	s = f.status(t)
	testutil.AssertEqual(t, "back in lobby", s.State, "lobby")
	testutil.AssertEqual(t, "next map", s.Map, "mesa")
	testutil.AssertEqual(t, "not auto joined", s.Lobby.Size, 0)

	loc, _ = f.mem.LocationOf("bob")
	testutil.AssertEqual(t, "moved to new world", loc.World, s.World)
	testutil.AssertEqual(t, "ready announced", f.count("map.ready") >= 2, true)
}

func TestArena_AutoJoin(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AutoJoin = true })

	f.connect(t, "amy", "bob")
	testutil.AssertEqual(t, "lobby", f.status(t).Lobby.Size, 2)

	f.d.Advance(3 * time.Second)
	testutil.AssertEqual(t, "started", f.status(t).State, "active")

	if err := f.a.ForceEnd(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.d.Advance(2 * time.Second)
	f.d.Flush()

	s := f.status(t)
	testutil.AssertEqual(t, "map", s.Map, "mesa")
	testutil.AssertEqual(t, "rejoined", strings.Join(s.Lobby.Members, ","), "amy,bob")
	testutil.AssertEqual(t, "counting again", s.Lobby.CountingDown, true)
}

func TestArena_ConnectDuringMatch(t *testing.T) {
	f := newFixture(t, nil)
	f.connect(t, "amy", "bob")
	f.join(t, "amy", "bob")
	f.d.Advance(3 * time.Second)

	f.connect(t, "cat")
	testutil.AssertEqual(t, "spectating", f.a.tracker.RoleOf("cat"), player.RoleSpectating)
	testutil.AssertEqual(t, "told", f.count("lobby.game-in-progress"), 1)

	// cat queues for the next round while the match runs
	f.join(t, "cat")
	testutil.AssertEqual(t, "queued", f.status(t).Lobby.Size, 1)
	testutil.AssertEqual(t, "no countdown", f.status(t).Lobby.CountingDown, false)
}

func TestArena_JoinLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.connect(t, "amy")

	f.join(t, "amy")
	err := f.a.Join(ctx, "amy")
	testutil.AssertEqual(t, "rejected", errors.Is(err, ErrJoinRejected), true)

	if err := f.a.Leave(ctx, "amy"); err != nil {
		t.Fatal(err)
	}
	err = f.a.Leave(ctx, "amy")
	testutil.AssertEqual(t, "not joined", errors.Is(err, ErrNotJoined), true)
	testutil.AssertEqual(t, "left", f.count("lobby.left"), 1)
}

func TestArena_LeaveMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.connect(t, "amy", "bob", "cat")
	f.join(t, "amy", "bob", "cat")
	f.d.Advance(3 * time.Second)

	err := f.a.Join(ctx, "amy")
	testutil.AssertEqual(t, "playing", errors.Is(err, ErrAlreadyPlaying), true)

	if err := f.a.Leave(ctx, "cat"); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, "still active", f.status(t).State, "active")
	testutil.AssertEqual(t, "waiting", f.a.tracker.RoleOf("cat"), player.RoleWaiting)

	if err := f.a.Disconnect(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	s := f.status(t)
	testutil.AssertEqual(t, "ended", s.State, "ending")
	testutil.AssertEqual(t, "reason", s.Outcome.Reason, "insufficient players")
}

func TestArena_Dispatch(t *testing.T) {
	tests := map[string]struct {
		kind   string
		ev     messaging.Event
		expErr string
		check  func(t *testing.T, res any)
	}{
		"unknown kind": {
			kind:   "dance",
			expErr: "unknown event",
		},
		"missing participant": {
			kind:   "join",
			expErr: "join: participant is required",
		},
		"maps": {
			kind: "maps",
			check: func(t *testing.T, res any) {
				ml := res.(MapList)
				testutil.AssertEqual(t, "available", strings.Join(ml.Available, ","), "dust,mesa")
				testutil.AssertEqual(t, "current", ml.Current, "dust")
			},
		},
		"unknown map": {
			kind:   "setmap",
			ev:     messaging.Event{Arg: "nowhere"},
			expErr: "nowhere",
		},
		"team preference": {
			kind: "team",
			ev:   messaging.Event{Participant: "amy", Arg: "blue"},
		},
		"no team to leave": {
			kind:   "team",
			ev:     messaging.Event{Participant: "amy"},
			expErr: "amy has no team preference",
		},
		"force end without a match": {
			kind:   "forceend",
			expErr: "no match",
		},
		"respawn outside a match": {
			kind: "respawn",
			ev:   messaging.Event{Participant: "amy"},
			check: func(t *testing.T, res any) {
				testutil.AssertEqual(t, "no location", res == nil, true)
			},
		},
		"status": {
			kind: "status",
			check: func(t *testing.T, res any) {
				testutil.AssertEqual(t, "state", res.(Status).State, "lobby")
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			res, err := f.a.Dispatch(context.Background(), tt.kind, tt.ev)
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, res)
			}
		})
	}
}

func TestArena_SetMapAndNext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	if err := f.a.SetMap(ctx, "mesa"); err != nil {
		t.Fatal(err)
	}
	f.d.Flush()
	testutil.AssertEqual(t, "set", f.status(t).Map, "mesa")

	key, err := f.a.NextMap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	f.d.Flush()
	testutil.AssertEqual(t, "next", key, "dust")
	testutil.AssertEqual(t, "loaded", f.status(t).Map, "dust")
}

func TestArena_RestartAfterRotation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *Config) { c.AutoJoin = true })
	f.connect(t, "amy", "bob")

	// dust then mesa, then the lap is over
	for range 2 {
		f.d.Advance(3 * time.Second)
		testutil.AssertEqual(t, "active", f.status(t).State, "active")
		if err := f.a.ForceEnd(ctx); err != nil {
			t.Fatal(err)
		}
		f.d.Advance(2 * time.Second)
		f.d.Flush()
	}

	testutil.AssertEqual(t, "announced", f.count("map.rotation-complete"), 1)
	f.d.Advance(time.Second)
	testutil.AssertEqual(t, "restart requested", f.a.restart.Load(), true)
}

func TestArena_StartAndStop(t *testing.T) {
	root := t.TempDir()
	mapsRoot := filepath.Join(root, "maps")
	writeMaps(t, mapsRoot, "dust")

	mem := engine.NewMemory("")
	a := New(Config{
		MapsRoot:     mapsRoot,
		InstanceRoot: filepath.Join(root, "instances"),
		Rotation:     []string{"dust"},
		Lobby:        lobby.Config{MinPlayers: 2, MaxPlayers: 4, Countdown: 10},
	}, mem, notify.NewNotifier(nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	if err := a.Connect(ctx, "amy"); err != nil {
		t.Fatal(err)
	}
	online, err := a.Online(ctx)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, "online", strings.Join(online, ","), "amy")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("arena did not stop")
	}
	testutil.AssertEqual(t, "worlds torn down", strings.Join(mem.WorldNames(), ","), engine.DefaultFallbackWorld)
}

func TestArena_InitWithoutMaps(t *testing.T) {
	tests := map[string]struct {
		mkdir  bool
		expErr error
		errMsg string
	}{
		"empty maps root":   {mkdir: true, expErr: match.ErrNoMaps},
		"missing maps root": {errMsg: "reading maps root"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			mapsRoot := filepath.Join(root, "maps")
			if tt.mkdir {
				if err := os.MkdirAll(mapsRoot, 0755); err != nil {
					t.Fatal(err)
				}
			}
			a := New(Config{MapsRoot: mapsRoot, InstanceRoot: filepath.Join(root, "instances")},
				engine.NewMemory(""), notify.NewNotifier(nil), WithDriver(driver.NewDriver(driver.WithManualClock(epoch))))

			err := a.Init()
			if tt.expErr != nil {
				testutil.AssertEqual(t, "no maps", errors.Is(err, tt.expErr), true)
				return
			}
			testutil.AssertErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestArena_CountdownWaitsForWorld(t *testing.T) {
	tests := map[string]struct {
		change func(ctx context.Context, a *Arena) error
	}{
		"map set": {
			change: func(ctx context.Context, a *Arena) error { return a.SetMap(ctx, "mesa") },
		},
		"skipped to next map": {
			change: func(ctx context.Context, a *Arena) error {
				_, err := a.NextMap(ctx)
				return err
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			exec := &heldExecutor{}
			f := newFixture(t, nil, WithExecutor(exec))
			dust := f.status(t).World

			f.connect(t, "amy", "bob")
			f.join(t, "amy", "bob")

			exec.hold = true
			if err := tt.change(ctx, f.a); err != nil {
				t.Fatal(err)
			}

			// the countdown runs out while mesa is still copying
			f.d.Advance(3 * time.Second)
			s := f.status(t)
			testutil.AssertEqual(t, "not started", s.State, "lobby")
			testutil.AssertEqual(t, "still queued", s.Lobby.Size, 2)
			testutil.AssertEqual(t, "told", f.count("lobby.start-failed"), 1)
			testutil.AssertEqual(t, "old world kept", s.World, dust)

			exec.release()
			f.d.Flush()
			s = f.status(t)
			testutil.AssertEqual(t, "counting again", s.Lobby.CountingDown, true)

			f.d.Advance(3 * time.Second)
			s = f.status(t)
			testutil.AssertEqual(t, "started", s.State, "active")
			testutil.AssertEqual(t, "map", s.Map, "mesa")
			testutil.AssertEqual(t, "new world", s.World != dust, true)

			loc, _ := f.mem.LocationOf("amy")
			testutil.AssertEqual(t, "spawned in new world", loc.World, s.World)
			testutil.AssertEqual(t, "old world gone", slices.Contains(f.mem.WorldNames(), dust), false)

			// the match is live and can still be ended
			if err := f.a.ForceEnd(ctx); err != nil {
				t.Fatal(err)
			}
			s = f.status(t)
			testutil.AssertEqual(t, "ending", s.State, "ending")
			testutil.AssertEqual(t, "outcome", s.Outcome != nil, true)
		})
	}
}

func TestArena_ConnectWhileWorldLoads(t *testing.T) {
	ctx := context.Background()
	exec := &heldExecutor{}
	f := newFixture(t, nil, WithExecutor(exec))
	dust := f.status(t).World

	f.connect(t, "amy", "bob")
	f.join(t, "amy", "bob")
	f.d.Advance(3 * time.Second)
	if err := f.a.ForceEnd(ctx); err != nil {
		t.Fatal(err)
	}

	exec.hold = true
	f.d.Advance(2 * time.Second)
	testutil.AssertEqual(t, "transitioning", f.status(t).State, "transitioning")

	f.connect(t, "zed", "yan")
	loc, _ := f.mem.LocationOf("zed")
	testutil.AssertEqual(t, "kept out of the old world", loc.World != dust, true)
	f.join(t, "yan")

	exec.release()
	f.d.Flush()

	s := f.status(t)
	testutil.AssertEqual(t, "lobby", s.State, "lobby")
	testutil.AssertEqual(t, "map", s.Map, "mesa")
	loc, _ = f.mem.LocationOf("zed")
	testutil.AssertEqual(t, "in new world", loc.World, s.World)
	testutil.AssertEqual(t, "waiting area", loc.Pose.Y, 70.0)
	testutil.AssertEqual(t, "role", f.a.tracker.RoleOf("zed"), player.RoleWaiting)
	testutil.AssertEqual(t, "old world gone", slices.Contains(f.mem.WorldNames(), dust), false)

	loc, _ = f.mem.LocationOf("yan")
	testutil.AssertEqual(t, "queued player in new world", loc.World, s.World)
	testutil.AssertEqual(t, "queued", strings.Join(s.Lobby.Members, ","), "yan")
}

func TestArena_FullTeamsKeepQueued(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Teams = []team.Definition{
			{ID: "red", Name: "Red Team", Color: "red", Capacity: 1},
			{ID: "blue", Name: "Blue Team", Color: "blue", Capacity: 1},
		}
	})
	f.connect(t, "amy", "bob", "cat")
	f.join(t, "amy", "bob", "cat")
	f.d.Advance(3 * time.Second)

	s := f.status(t)
	testutil.AssertEqual(t, "active", s.State, "active")
	testutil.AssertEqual(t, "queued", strings.Join(s.Lobby.Members, ","), "cat")
	testutil.AssertEqual(t, "not playing", f.a.match.InRoster("cat"), false)
	testutil.AssertEqual(t, "role", f.a.tracker.RoleOf("cat"), player.RoleWaiting)
	testutil.AssertEqual(t, "told", f.count("lobby.requeued"), 1)

	loc, _ := f.mem.LocationOf("cat")
	testutil.AssertEqual(t, "waiting area", loc.Pose.Y, 70.0)
}
