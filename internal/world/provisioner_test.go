package world

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pixil98/go-arena/internal/driver"
	"github.com/pixil98/go-arena/internal/engine"
	"github.com/pixil98/go-arena/internal/maps"
	"github.com/pixil98/go-arena/internal/worker"
	"github.com/pixil98/go-testutil"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type recordingRoles struct {
	spectating []string
}

func (r *recordingRoles) SetSpectating(p string) {
	r.spectating = append(r.spectating, p)
}

// stickyEngine refuses to move participants listed in stuck.
type stickyEngine struct {
	*engine.Memory
	stuck map[string]bool
}

func (e *stickyEngine) Teleport(p string, loc engine.Location) error {
	if e.stuck[p] {
		return fmt.Errorf("%s is stuck", p)
	}
	return e.Memory.Teleport(p, loc)
}

type countingEngine struct {
	*engine.Memory
	creates int
}

func (e *countingEngine) CreateWorld(name, dir string) error {
	e.creates++
	return e.Memory.CreateWorld(name, dir)
}

type fixture struct {
	d        *driver.Driver
	mem      *engine.Memory
	roles    *recordingRoles
	p        *Provisioner
	template string
	instance string
	names    int
}

func newFixture(t *testing.T, eng engine.Engine, mem *engine.Memory) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		d:        driver.NewDriver(driver.WithManualClock(epoch)),
		mem:      mem,
		roles:    &recordingRoles{},
		template: filepath.Join(root, "maps"),
		instance: filepath.Join(root, "instances"),
	}
	if eng == nil {
		eng = mem
	}
	f.p = NewProvisioner(f.template, f.instance, eng, f.roles, f.d, worker.Inline{},
		WithSweepInterval(time.Second),
		WithRetireGrace(10*time.Second),
		WithNamer(func(worldName string) string {
			f.names++
			return fmt.Sprintf("%s_%d", worldName, f.names)
		}),
	)
	return f
}

func (f *fixture) writeTemplate(t *testing.T, key string) *maps.Definition {
	t.Helper()
	dir := filepath.Join(f.template, key)
	if err := os.MkdirAll(filepath.Join(dir, "region"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"map.yml":         "id: " + key,
		"extra.yaml":      "meta",
		"level.dat":       "level",
		"region/r.0.0":    "chunk",
		"region/keep.yml": "nested yaml is world data",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return &maps.Definition{DirID: key, ID: key, WorldName: key + "_world"}
}

func (f *fixture) provision(t *testing.T, def *maps.Definition) *Handle {
	t.Helper()
	fut := f.p.ProvisionAsync(def)
	f.d.Flush()
	h, err := fut.Result()
	if err != nil {
		t.Fatalf("provisioning %s: %v", def.DirID, err)
	}
	return h
}

func TestProvisioner_ProvisionAsync(t *testing.T) {
	f := newFixture(t, nil, engine.NewMemory(""))
	def := f.writeTemplate(t, "dust")

	fut := f.p.ProvisionAsync(def)
	testutil.AssertEqual(t, "pending state", f.p.State("dust"), StateProvisioning)
	testutil.AssertEqual(t, "not done before control loop runs", fut.Done(), false)
	_, ok := f.p.GetActive("dust")
	testutil.AssertEqual(t, "not active yet", ok, false)

	var fromThen *Handle
	fut.Then(func(h *Handle, err error) { fromThen = h })

	f.d.Flush()

	h, err := fut.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "then called", fromThen, h)
	testutil.AssertEqual(t, "state", f.p.State("dust"), StateReady)
	testutil.AssertEqual(t, "name", h.Name, "dust_world_1")
	testutil.AssertEqual(t, "created at", h.CreatedAt, epoch)

	active, _ := f.p.GetActive("dust")
	testutil.AssertEqual(t, "active", active, h)

	settings, ok := f.mem.SettingsOf(h.Name)
	testutil.AssertEqual(t, "world loaded", ok, true)
	testutil.AssertEqual(t, "pvp", settings.PvP, true)
	testutil.AssertEqual(t, "monsters", settings.MonsterSpawning, false)

	_, err = os.Stat(filepath.Join(h.Dir, "map.yml"))
	testutil.AssertEqual(t, "map.yml stripped", os.IsNotExist(err), true)
	_, err = os.Stat(filepath.Join(h.Dir, "extra.yaml"))
	testutil.AssertEqual(t, "extra.yaml stripped", os.IsNotExist(err), true)
	data, err := os.ReadFile(filepath.Join(h.Dir, "region", "keep.yml"))
	if err != nil {
		t.Fatalf("nested file missing: %v", err)
	}
	testutil.AssertEqual(t, "nested kept", string(data), "nested yaml is world data")

	// Then after resolution runs immediately
	called := false
	fut.Then(func(*Handle, error) { called = true })
	testutil.AssertEqual(t, "late then", called, true)
}

func TestProvisioner_CoalescesSameKey(t *testing.T) {
	mem := engine.NewMemory("")
	counting := &countingEngine{Memory: mem}
	f := newFixture(t, counting, mem)
	def := f.writeTemplate(t, "dust")

	first := f.p.ProvisionAsync(def)
	second := f.p.ProvisionAsync(def)
	testutil.AssertEqual(t, "same future", first == second, true)

	f.d.Flush()

	testutil.AssertEqual(t, "one world created", counting.creates, 1)
	entries, err := os.ReadDir(f.instance)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, "one instance dir", len(entries), 1)
}

func TestProvisioner_Failures(t *testing.T) {
	t.Run("copy failure", func(t *testing.T) {
		f := newFixture(t, nil, engine.NewMemory(""))
		fut := f.p.ProvisionAsync(&maps.Definition{DirID: "missing", WorldName: "missing"})
		f.d.Flush()

		_, err := fut.Result()
		var ce *CopyError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *CopyError, got %v", err)
		}
		testutil.AssertEqual(t, "key", ce.Key, "missing")
		testutil.AssertEqual(t, "state", f.p.State("missing"), StateAbsent)
	})

	t.Run("instantiation failure", func(t *testing.T) {
		mem := engine.NewMemory("")
		f := newFixture(t, nil, mem)
		def := f.writeTemplate(t, "dust")
		mem.FailNextCreate(errors.New("host refused"))

		fut := f.p.ProvisionAsync(def)
		f.d.Flush()

		_, err := fut.Result()
		var ie *InstantiationError
		if !errors.As(err, &ie) {
			t.Fatalf("expected *InstantiationError, got %v", err)
		}
		testutil.AssertErrorContains(t, err, "host refused")
		testutil.AssertEqual(t, "state", f.p.State("dust"), StateAbsent)

		entries, _ := os.ReadDir(f.instance)
		testutil.AssertEqual(t, "instance storage removed", len(entries), 0)
	})

	t.Run("failure keeps previous handle", func(t *testing.T) {
		mem := engine.NewMemory("")
		f := newFixture(t, nil, mem)
		def := f.writeTemplate(t, "dust")
		old := f.provision(t, def)

		mem.FailNextCreate(errors.New("nope"))
		fut := f.p.ProvisionAsync(def)
		f.d.Flush()

		if _, err := fut.Result(); err == nil {
			t.Fatal("expected error")
		}
		cur, ok := f.p.GetActive("dust")
		testutil.AssertEqual(t, "still active", ok, true)
		testutil.AssertEqual(t, "old handle kept", cur, old)
		testutil.AssertEqual(t, "state", f.p.State("dust"), StateReady)
	})
}

func TestProvisioner_ReplaceRetiresOldWhenEmpty(t *testing.T) {
	mem := engine.NewMemory("")
	f := newFixture(t, nil, mem)
	def := f.writeTemplate(t, "dust")

	old := f.provision(t, def)
	mem.Connect("alice")
	if err := mem.Teleport("alice", engine.Location{World: old.Name}); err != nil {
		t.Fatal(err)
	}

	replacement := f.provision(t, def)
	cur, _ := f.p.GetActive("dust")
	testutil.AssertEqual(t, "replacement active", cur, replacement)
	testutil.AssertEqual(t, "old retiring", f.p.Retiring(), 1)

	// still occupied, nothing happens
	f.d.Advance(3 * time.Second)
	_, err := os.Stat(old.Dir)
	testutil.AssertEqual(t, "old storage kept while occupied", err == nil, true)
	testutil.AssertEqual(t, "old world loaded", strings.Contains(strings.Join(mem.WorldNames(), ","), old.Name), true)

	if err := mem.Teleport("alice", engine.Location{World: replacement.Name}); err != nil {
		t.Fatal(err)
	}
	f.d.Advance(time.Second)

	testutil.AssertEqual(t, "retired", f.p.Retiring(), 0)
	_, err = os.Stat(old.Dir)
	testutil.AssertEqual(t, "old storage deleted", os.IsNotExist(err), true)
	testutil.AssertEqual(t, "sweep stopped", f.d.Pending(), 0)
}

func TestProvisioner_Teardown(t *testing.T) {
	mem := engine.NewMemory("")
	f := newFixture(t, nil, mem)
	def := f.writeTemplate(t, "dust")
	h := f.provision(t, def)

	mem.Connect("alice")
	mem.Connect("bob")
	for _, p := range []string{"alice", "bob"} {
		if err := mem.Teleport(p, engine.Location{World: h.Name}); err != nil {
			t.Fatal(err)
		}
	}

	if err := f.p.Teardown("dust"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "evacuated roles", strings.Join(f.roles.spectating, ","), "alice,bob")
	loc, _ := mem.LocationOf("alice")
	testutil.AssertEqual(t, "at fallback", loc.World, mem.FallbackLocation().World)
	testutil.AssertEqual(t, "state", f.p.State("dust"), StateAbsent)
	_, err := os.Stat(h.Dir)
	testutil.AssertEqual(t, "storage deleted", os.IsNotExist(err), true)

	err = f.p.Teardown("dust")
	if !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive, got %v", err)
	}
}

func TestProvisioner_TeardownDefersWhileOccupied(t *testing.T) {
	mem := engine.NewMemory("")
	sticky := &stickyEngine{Memory: mem, stuck: map[string]bool{"carol": true}}
	f := newFixture(t, sticky, mem)
	def := f.writeTemplate(t, "dust")
	h := f.provision(t, def)

	mem.Connect("carol")
	if err := mem.Teleport("carol", engine.Location{World: h.Name}); err != nil {
		t.Fatal(err)
	}

	if err := f.p.Teardown("dust"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "tearing down", f.p.State("dust"), StateTearingDown)
	_, err := os.Stat(h.Dir)
	testutil.AssertEqual(t, "storage kept while occupied", err == nil, true)

	f.d.Advance(5 * time.Second)
	_, err = os.Stat(h.Dir)
	testutil.AssertEqual(t, "still kept", err == nil, true)

	// carol finally leaves by other means
	if err := mem.Teleport("carol", mem.FallbackLocation()); err != nil {
		t.Fatal(err)
	}
	f.d.Advance(time.Second)

	_, err = os.Stat(h.Dir)
	testutil.AssertEqual(t, "storage deleted", os.IsNotExist(err), true)
	testutil.AssertEqual(t, "state", f.p.State("dust"), StateAbsent)
}

func TestProvisioner_RetireGraceEvacuates(t *testing.T) {
	mem := engine.NewMemory("")
	f := newFixture(t, nil, mem)
	def := f.writeTemplate(t, "dust")
	h := f.provision(t, def)

	mem.Connect("dave")
	if err := mem.Teleport("dave", engine.Location{World: h.Name}); err != nil {
		t.Fatal(err)
	}

	f.p.Retire(h)
	_, ok := f.p.GetActive("dust")
	testutil.AssertEqual(t, "no longer active", ok, false)

	f.d.Advance(9 * time.Second)
	testutil.AssertEqual(t, "waiting", f.p.Retiring(), 1)

	// grace expires, dave is moved out, next sweep destroys
	f.d.Advance(2 * time.Second)
	f.d.Advance(time.Second)
	testutil.AssertEqual(t, "destroyed", f.p.Retiring(), 0)
	testutil.AssertEqual(t, "dave spectating", strings.Join(f.roles.spectating, ","), "dave")
}

func TestProvisioner_Untrack(t *testing.T) {
	f := newFixture(t, nil, engine.NewMemory(""))
	def := f.writeTemplate(t, "dust")
	h := f.provision(t, def)

	f.p.Untrack(h)
	f.p.Untrack(h)

	_, ok := f.p.GetActive("dust")
	testutil.AssertEqual(t, "untracked", ok, false)
	testutil.AssertEqual(t, "state", f.p.State("dust"), StateAbsent)
	_, err := os.Stat(h.Dir)
	testutil.AssertEqual(t, "storage untouched", err == nil, true)
}

func TestProvisioner_CleanupAndTeardownAll(t *testing.T) {
	mem := engine.NewMemory("")
	f := newFixture(t, nil, mem)

	stale := filepath.Join(f.instance, "old_world_1234")
	if err := os.MkdirAll(stale, 0755); err != nil {
		t.Fatal(err)
	}
	f.p.CleanupInstances()
	_, err := os.Stat(stale)
	testutil.AssertEqual(t, "stale removed", os.IsNotExist(err), true)

	a := f.provision(t, f.writeTemplate(t, "a"))
	b := f.provision(t, f.writeTemplate(t, "b"))

	f.p.TeardownAll()
	testutil.AssertEqual(t, "no active", len(f.p.Active()), 0)
	testutil.AssertEqual(t, "worlds", strings.Join(mem.WorldNames(), ","), mem.FallbackLocation().World)
	for _, h := range []*Handle{a, b} {
		_, err := os.Stat(h.Dir)
		testutil.AssertEqual(t, h.Name+" deleted", os.IsNotExist(err), true)
	}
}
