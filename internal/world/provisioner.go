package world

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-arena/internal/driver"
	"github.com/pixil98/go-arena/internal/engine"
	"github.com/pixil98/go-arena/internal/maps"
)

const (
	DefaultSweepInterval = 2 * time.Second
	DefaultRetireGrace   = 30 * time.Second
)

type State int

const (
	StateAbsent State = iota
	StateProvisioning
	StateReady
	StateTearingDown
)

func (s State) String() string {
	switch s {
	case StateProvisioning:
		return "provisioning"
	case StateReady:
		return "ready"
	case StateTearingDown:
		return "tearing_down"
	default:
		return "absent"
	}
}

// Handle is one live world instance of a map.
type Handle struct {
	MapKey    string
	Name      string
	Dir       string
	CreatedAt time.Time
	Settings  engine.WorldSettings
}

type Scheduler interface {
	Post(fn func())
	Every(delay, interval time.Duration, fn func()) *driver.Task
	Now() time.Time
}

type Executor interface {
	Submit(fn func())
}

// RoleSetter marks evacuated participants as spectators.
type RoleSetter interface {
	SetSpectating(p string)
}

type retiree struct {
	handle *Handle
	since  time.Time
}

// Provisioner owns every world instance. All methods must be called from the
// control loop. Only template copies and storage deletes run elsewhere.
type Provisioner struct {
	templateRoot string
	instanceRoot string

	eng   engine.Engine
	roles RoleSetter
	sched Scheduler
	exec  Executor

	settings      engine.WorldSettings
	sweepInterval time.Duration
	retireGrace   time.Duration
	nameFor       func(worldName string) string

	active   map[string]*Handle
	states   map[string]State
	pending  map[string]*Future
	retiring map[string]*retiree
	sweep    *driver.Task
}

func NewProvisioner(templateRoot, instanceRoot string, eng engine.Engine, roles RoleSetter, sched Scheduler, exec Executor, opts ...ProvisionerOpt) *Provisioner {
	p := &Provisioner{
		templateRoot:  templateRoot,
		instanceRoot:  instanceRoot,
		eng:           eng,
		roles:         roles,
		sched:         sched,
		exec:          exec,
		settings:      engine.ArenaSettings(),
		sweepInterval: DefaultSweepInterval,
		retireGrace:   DefaultRetireGrace,
		nameFor: func(worldName string) string {
			return fmt.Sprintf("%s_%s", worldName, uuid.NewString()[:8])
		},
		active:   map[string]*Handle{},
		states:   map[string]State{},
		pending:  map[string]*Future{},
		retiring: map[string]*retiree{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ProvisionAsync materializes a fresh world for def. A request for a key that
// is already provisioning joins the pending request.
func (p *Provisioner) ProvisionAsync(def *maps.Definition) *Future {
	key := def.DirID
	if f, ok := p.pending[key]; ok {
		slog.Info("world already provisioning, joining request", "map", key)
		return f
	}

	f := &Future{}
	p.pending[key] = f
	p.states[key] = StateProvisioning

	name := p.nameFor(def.WorldName)
	src := filepath.Join(p.templateRoot, key)
	dst := filepath.Join(p.instanceRoot, name)

	slog.Info("provisioning world", "map", key, "world", name)

	p.exec.Submit(func() {
		err := copyTemplate(src, dst)
		if err != nil {
			if rmErr := os.RemoveAll(dst); rmErr != nil {
				slog.Warn("removing partial instance directory", "dir", dst, "error", rmErr)
			}
		}
		p.sched.Post(func() {
			p.finishProvision(key, name, dst, err, f)
		})
	})

	return f
}

func (p *Provisioner) finishProvision(key, name, dir string, copyErr error, f *Future) {
	delete(p.pending, key)

	if copyErr != nil {
		p.settleState(key)
		f.resolve(nil, &CopyError{Key: key, Err: copyErr})
		return
	}

	if err := p.eng.CreateWorld(name, dir); err != nil {
		p.settleState(key)
		p.removeStorage(dir)
		f.resolve(nil, &InstantiationError{Key: key, World: name, Err: err})
		return
	}

	if err := p.eng.ConfigureWorld(name, p.settings); err != nil {
		if unloadErr := p.eng.UnloadWorld(name); unloadErr != nil {
			slog.Warn("unloading misconfigured world", "world", name, "error", unloadErr)
		}
		p.settleState(key)
		p.removeStorage(dir)
		f.resolve(nil, &InstantiationError{Key: key, World: name, Err: fmt.Errorf("configuring: %w", err)})
		return
	}

	h := &Handle{
		MapKey:    key,
		Name:      name,
		Dir:       dir,
		CreatedAt: p.sched.Now(),
		Settings:  p.settings,
	}

	// the new handle is ready, only now may the old one go
	if old, ok := p.active[key]; ok {
		p.retire(old)
	}
	p.active[key] = h
	p.states[key] = StateReady

	slog.Info("world ready", "map", key, "world", name)
	f.resolve(h, nil)
}

// settleState picks the state for key after a request finished without
// producing a handle.
func (p *Provisioner) settleState(key string) {
	switch {
	case p.active[key] != nil:
		p.states[key] = StateReady
	case p.isRetiring(key):
		p.states[key] = StateTearingDown
	default:
		delete(p.states, key)
	}
}

func (p *Provisioner) isRetiring(key string) bool {
	for _, r := range p.retiring {
		if r.handle.MapKey == key {
			return true
		}
	}
	return false
}

func (p *Provisioner) GetActive(key string) (*Handle, bool) {
	h, ok := p.active[key]
	return h, ok
}

func (p *Provisioner) State(key string) State {
	return p.states[key]
}

// Active lists live handles sorted by map key.
func (p *Provisioner) Active() []*Handle {
	out := make([]*Handle, 0, len(p.active))
	for _, h := range p.active {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MapKey < out[j].MapKey })
	return out
}

// Retiring reports how many replaced worlds are still waiting to empty.
func (p *Provisioner) Retiring() int {
	return len(p.retiring)
}

func (p *Provisioner) Occupants(h *Handle) []string {
	if h == nil {
		return nil
	}
	return p.eng.Occupants(h.Name)
}

// Teardown evacuates and destroys the active world for key. If anyone is
// still inside after the evacuation the teardown is deferred until the
// world is empty.
func (p *Provisioner) Teardown(key string) error {
	h, ok := p.active[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotActive, key)
	}

	delete(p.active, key)
	p.markTearingDown(key)
	p.evacuate(h)

	if n := len(p.eng.Occupants(h.Name)); n > 0 {
		slog.Info("deferring world teardown until empty", "map", key, "world", h.Name, "occupants", n)
		p.retire(h)
		return nil
	}

	p.destroy(h)
	return nil
}

// Retire schedules h for destruction once it has no occupants. A handle that
// is still active for its key stops being active.
func (p *Provisioner) Retire(h *Handle) {
	if h == nil {
		return
	}
	if cur, ok := p.active[h.MapKey]; ok && cur.Name == h.Name {
		delete(p.active, h.MapKey)
		p.markTearingDown(h.MapKey)
	}
	p.retire(h)
	p.sweepRetired()
}

func (p *Provisioner) retire(h *Handle) {
	if _, ok := p.retiring[h.Name]; ok {
		return
	}
	p.retiring[h.Name] = &retiree{handle: h, since: p.sched.Now()}

	if p.sweep == nil {
		p.sweep = p.sched.Every(p.sweepInterval, p.sweepInterval, p.sweepRetired)
	}
}

func (p *Provisioner) markTearingDown(key string) {
	if p.states[key] != StateProvisioning {
		p.states[key] = StateTearingDown
	}
}

func (p *Provisioner) sweepRetired() {
	now := p.sched.Now()

	names := make([]string, 0, len(p.retiring))
	for name := range p.retiring {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r := p.retiring[name]
		if len(p.eng.Occupants(name)) == 0 {
			p.destroy(r.handle)
			continue
		}
		if now.Sub(r.since) >= p.retireGrace {
			slog.Warn("retired world still occupied, evacuating", "world", name, "map", r.handle.MapKey)
			p.evacuate(r.handle)
		}
	}

	if len(p.retiring) == 0 && p.sweep != nil {
		p.sweep.Cancel()
		p.sweep = nil
	}
}

// Untrack forgets h without touching the world. Used when something else
// already destroyed it.
func (p *Provisioner) Untrack(h *Handle) {
	if h == nil {
		return
	}
	if cur, ok := p.active[h.MapKey]; ok && cur.Name == h.Name {
		delete(p.active, h.MapKey)
	}
	delete(p.retiring, h.Name)
	if p.states[h.MapKey] != StateProvisioning {
		p.settleState(h.MapKey)
	}
}

// TeardownAll evacuates and destroys every world, deleting storage inline.
// Used on shutdown when the worker pool may already be gone.
func (p *Provisioner) TeardownAll() {
	handles := p.Active()
	for _, r := range p.retiring {
		handles = append(handles, r.handle)
	}

	for _, h := range handles {
		p.evacuate(h)
		if err := p.eng.UnloadWorld(h.Name); err != nil {
			slog.Warn("unloading world on shutdown", "world", h.Name, "error", err)
		}
		if err := os.RemoveAll(h.Dir); err != nil {
			slog.Warn("deleting world storage on shutdown", "dir", h.Dir, "error", err)
		}
	}

	p.active = map[string]*Handle{}
	p.retiring = map[string]*retiree{}
	p.states = map[string]State{}
	if p.sweep != nil {
		p.sweep.Cancel()
		p.sweep = nil
	}
}

// CleanupInstances deletes leftovers from a previous run. It must run before
// the first provisioning request.
func (p *Provisioner) CleanupInstances() {
	entries, err := os.ReadDir(p.instanceRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("reading instance root", "dir", p.instanceRoot, "error", err)
		}
		return
	}

	for _, e := range entries {
		path := filepath.Join(p.instanceRoot, e.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("removing stale instance", "dir", path, "error", err)
			continue
		}
		slog.Info("removed stale instance", "dir", path)
	}
}

func (p *Provisioner) evacuate(h *Handle) {
	fallback := p.eng.FallbackLocation()
	for _, occupant := range p.eng.Occupants(h.Name) {
		p.roles.SetSpectating(occupant)
		if err := p.eng.Teleport(occupant, fallback); err != nil {
			slog.Warn("evacuating participant", "participant", occupant, "world", h.Name, "error", err)
		}
	}
}

func (p *Provisioner) destroy(h *Handle) {
	if err := p.eng.UnloadWorld(h.Name); err != nil {
		slog.Error("unloading world", "world", h.Name, "map", h.MapKey, "error", err)
		p.retire(h)
		return
	}

	delete(p.retiring, h.Name)
	if p.states[h.MapKey] == StateTearingDown && p.active[h.MapKey] == nil && !p.isRetiring(h.MapKey) {
		delete(p.states, h.MapKey)
	}

	slog.Info("world unloaded", "world", h.Name, "map", h.MapKey)
	p.removeStorage(h.Dir)
}

func (p *Provisioner) removeStorage(dir string) {
	p.exec.Submit(func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("deleting world storage", "dir", dir, "error", err)
		}
	})
}
