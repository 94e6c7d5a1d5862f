package lobby

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pixil98/go-arena/internal/driver"
)

const (
	DefaultMinPlayers = 4
	DefaultMaxPlayers = 16
	DefaultCountdown  = 10

	// never start a match with fewer than this many participants
	viabilityFloor = 2
)

var (
	ErrEmpty = errors.New("lobby is empty")
)

type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateCountingDown
)

func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateCountingDown:
		return "counting_down"
	default:
		return "idle"
	}
}

type Config struct {
	MinPlayers int
	MaxPlayers int
	Countdown  int
}

type Scheduler interface {
	Every(delay, interval time.Duration, fn func()) *driver.Task
}

type Notifier interface {
	Broadcast(id string, params map[string]any)
	Send(p, id string, params map[string]any)
}

type RoleSetter interface {
	SetWaiting(p string)
}

// Starter is the match side of the hand-off.
type Starter interface {
	// AcceptingRoster reports whether a match could start right now.
	AcceptingRoster() bool
	// RosterLimits returns the selected map's player limits, if any.
	RosterLimits() (minPlayers, maxPlayers int, ok bool)
	StartMatch(roster []string) error
	// InRoster reports whether p got a place in the running match.
	InRoster(p string) bool
}

// Controller gathers waiting participants and counts down to a match.
// Must be used from the control loop.
type Controller struct {
	cfg     Config
	sched   Scheduler
	notify  Notifier
	roles   RoleSetter
	starter Starter

	members   []string
	countdown *driver.Task
	remaining int
}

func NewController(cfg Config, sched Scheduler, notify Notifier, roles RoleSetter, starter Starter) *Controller {
	if cfg.MinPlayers <= 0 {
		cfg.MinPlayers = DefaultMinPlayers
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = DefaultMaxPlayers
	}
	if cfg.Countdown <= 0 {
		cfg.Countdown = DefaultCountdown
	}
	return &Controller{
		cfg:     cfg,
		sched:   sched,
		notify:  notify,
		roles:   roles,
		starter: starter,
	}
}

func (c *Controller) State() State {
	switch {
	case c.countdown != nil:
		return StateCountingDown
	case len(c.members) > 0:
		return StateAccumulating
	default:
		return StateIdle
	}
}

// Limits returns the minimum and maximum lobby size, taken from the selected
// map when there is one.
func (c *Controller) Limits() (int, int) {
	if minP, maxP, ok := c.starter.RosterLimits(); ok {
		return minP, maxP
	}
	return c.cfg.MinPlayers, c.cfg.MaxPlayers
}

func (c *Controller) Size() int {
	return len(c.members)
}

func (c *Controller) Members() []string {
	return slices.Clone(c.members)
}

func (c *Controller) Contains(p string) bool {
	return slices.Contains(c.members, p)
}

// Countdown returns the seconds left when a countdown is running.
func (c *Controller) Countdown() (int, bool) {
	if c.countdown == nil {
		return 0, false
	}
	return c.remaining, true
}

// Add queues p. A full lobby only tells p so.
func (c *Controller) Add(p string) bool {
	if c.Contains(p) {
		c.notify.Send(p, "lobby.already-joined", nil)
		return false
	}

	minP, maxP := c.Limits()
	if len(c.members) >= maxP {
		c.notify.Send(p, "lobby.lobby-full", map[string]any{"max": maxP})
		return false
	}

	c.members = append(c.members, p)
	c.roles.SetWaiting(p)
	c.notify.Send(p, "lobby.welcome", map[string]any{"participant": p})

	slog.Info("participant joined lobby", "participant", p, "size", len(c.members))

	if c.countdown == nil {
		c.announceWaiting(minP)
	}
	c.evaluate()
	return true
}

// Remove drops p. If that takes a running countdown below the minimum the
// countdown stops; everyone else stays queued.
func (c *Controller) Remove(p string) bool {
	i := slices.Index(c.members, p)
	if i < 0 {
		return false
	}
	c.members = slices.Delete(c.members, i, i+1)

	minP, _ := c.Limits()
	if c.countdown != nil && len(c.members) < minP {
		c.stopCountdown()
		c.notify.Broadcast("lobby.not-enough-players", map[string]any{"min": minP})
		slog.Info("lobby countdown cancelled", "size", len(c.members), "min", minP)
	} else if c.countdown == nil && len(c.members) > 0 {
		c.announceWaiting(minP)
	}
	return true
}

// ForceStart hands the roster over immediately.
func (c *Controller) ForceStart() error {
	if len(c.members) == 0 {
		return ErrEmpty
	}
	c.stopCountdown()
	return c.handOff()
}

// Reevaluate checks the start condition again, for example after the match
// side returned to accepting rosters.
func (c *Controller) Reevaluate() {
	c.evaluate()
}

// Clear empties the lobby and stops any countdown.
func (c *Controller) Clear() {
	c.stopCountdown()
	c.members = nil
}

func (c *Controller) announceWaiting(minP int) {
	c.notify.Broadcast("lobby.waiting-players", map[string]any{
		"current":  len(c.members),
		"required": minP,
	})
}

func (c *Controller) evaluate() {
	if c.countdown != nil {
		return
	}
	minP, _ := c.Limits()
	if len(c.members) < minP || len(c.members) < viabilityFloor {
		return
	}
	if !c.starter.AcceptingRoster() {
		return
	}
	c.startCountdown()
}

func (c *Controller) startCountdown() {
	c.remaining = c.cfg.Countdown
	c.notify.Broadcast("lobby.game-starting", map[string]any{"seconds": c.remaining})
	slog.Info("lobby countdown started", "seconds", c.remaining, "size", len(c.members))
	c.countdown = c.sched.Every(0, time.Second, c.tick)
}

func (c *Controller) tick() {
	if c.remaining <= 0 {
		c.stopCountdown()
		if err := c.handOff(); err != nil {
			slog.Warn("lobby hand-off rejected", "error", err)
		}
		return
	}

	if c.remaining <= 10 || c.remaining%10 == 0 {
		c.notify.Broadcast("lobby.countdown", map[string]any{"seconds": c.remaining})
	}
	c.remaining--
}

func (c *Controller) stopCountdown() {
	if c.countdown == nil {
		return
	}
	c.countdown.Cancel()
	c.countdown = nil
	c.remaining = 0
}

// handOff gives the roster to the match. A rejected roster stays queued, and
// so does anyone the match had no team for.
func (c *Controller) handOff() error {
	roster := slices.Clone(c.members)
	if err := c.starter.StartMatch(roster); err != nil {
		c.notify.Broadcast("lobby.start-failed", map[string]any{"reason": err.Error()})
		return fmt.Errorf("starting match: %w", err)
	}

	c.members = nil
	for _, p := range roster {
		if c.starter.InRoster(p) {
			continue
		}
		c.members = append(c.members, p)
		c.roles.SetWaiting(p)
		c.notify.Send(p, "lobby.requeued", nil)
	}
	if len(c.members) > 0 {
		slog.Info("participants left over from match start stay queued", "participants", c.members)
	}
	return nil
}
