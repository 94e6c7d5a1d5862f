package player

import (
	"strings"
	"testing"

	"github.com/pixil98/go-arena/internal/engine"
	"github.com/pixil98/go-testutil"
)

func newTracker(ids ...string) (*Tracker, *engine.Memory) {
	mem := engine.NewMemory("")
	for _, id := range ids {
		mem.Connect(id)
	}
	return NewTracker(mem), mem
}

func TestTracker_DefaultRole(t *testing.T) {
	tr, _ := newTracker()
	testutil.AssertEqual(t, "default", tr.RoleOf("nobody"), RoleWaiting)
}

func TestTracker_Effects(t *testing.T) {
	tests := map[string]struct {
		set      func(*Tracker, string)
		expRole  Role
		expMode  engine.GameMode
		expFly   bool
		expInvul bool
	}{
		"waiting": {
			set:      (*Tracker).SetWaiting,
			expRole:  RoleWaiting,
			expMode:  engine.ModeSpectator,
			expFly:   true,
			expInvul: true,
		},
		"in match": {
			set:     (*Tracker).SetInMatch,
			expRole: RoleInMatch,
			expMode: engine.ModeSurvival,
		},
		"spectating": {
			set:      (*Tracker).SetSpectating,
			expRole:  RoleSpectating,
			expMode:  engine.ModeSpectator,
			expFly:   true,
			expInvul: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tr, mem := newTracker("a")

			// applying twice lands in the same state
			tt.set(tr, "a")
			tt.set(tr, "a")

			testutil.AssertEqual(t, "role", tr.RoleOf("a"), tt.expRole)
			fx, _ := mem.EffectsOf("a")
			testutil.AssertEqual(t, "effects", fx, EffectsFor(tt.expRole))
			testutil.AssertEqual(t, "mode", fx.Mode, tt.expMode)
			testutil.AssertEqual(t, "flight", fx.Flight, tt.expFly)
			testutil.AssertEqual(t, "invulnerable", fx.Invulnerable, tt.expInvul)
			testutil.AssertEqual(t, "inventory cleared", fx.ClearInventory, true)
		})
	}
}

func TestTracker_VisibilityAsymmetry(t *testing.T) {
	tr, mem := newTracker("player", "watcher")

	tr.SetInMatch("player")
	tr.SetSpectating("watcher")

	testutil.AssertEqual(t, "player cannot see watcher", mem.CanSee("player", "watcher"), false)
	testutil.AssertEqual(t, "watcher sees player", mem.CanSee("watcher", "player"), true)

	// order of transitions does not matter
	tr.SetWaiting("player")
	tr.SetInMatch("player")
	testutil.AssertEqual(t, "still hidden", mem.CanSee("player", "watcher"), false)

	tr.SetInMatch("watcher")
	testutil.AssertEqual(t, "both playing", mem.CanSee("player", "watcher"), true)
	testutil.AssertEqual(t, "both playing reverse", mem.CanSee("watcher", "player"), true)

	tr.SetWaiting("player")
	tr.SetWaiting("watcher")
	testutil.AssertEqual(t, "both waiting", mem.CanSee("player", "watcher"), true)
}

func TestTracker_InRoleForgetClear(t *testing.T) {
	tr, _ := newTracker("a", "b", "c")
	tr.SetInMatch("b")
	tr.SetInMatch("a")
	tr.SetWaiting("c")

	testutil.AssertEqual(t, "in match", strings.Join(tr.InRole(RoleInMatch), ","), "a,b")

	tr.Forget("a")
	testutil.AssertEqual(t, "forgotten", strings.Join(tr.InRole(RoleInMatch), ","), "b")

	tr.ClearAll()
	testutil.AssertEqual(t, "cleared", len(tr.InRole(RoleInMatch)), 0)
	testutil.AssertEqual(t, "cleared role", tr.RoleOf("b"), RoleWaiting)
}

func TestTracker_OfflineParticipant(t *testing.T) {
	tr, _ := newTracker()
	tr.SetInMatch("ghost")
	testutil.AssertEqual(t, "role recorded", tr.RoleOf("ghost"), RoleInMatch)
}
