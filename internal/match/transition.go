package match

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/pixil98/go-arena/internal/maps"
	"github.com/pixil98/go-arena/internal/world"
)

// advance moves to the next map after a match ended.
func (c *Controller) advance() {
	c.transition = nil
	if c.isTransitioning {
		slog.Info("map transition already running, skipping")
		return
	}
	c.isTransitioning = true
	c.state = StateTransitioning
	if c.session != nil {
		c.session.State = StateTransitioning
	}

	outgoing := c.outgoing()

	next, err := c.rotation.Advance()
	switch {
	case errors.Is(err, maps.ErrRotationExhausted) && c.exhausted == ExhaustedRestart:
		slog.Info("rotation complete, restarting", "delay", c.restartDelay)
		c.notify.Broadcast("map.rotation-complete", nil)
		c.restarting = c.sched.After(c.restartDelay, c.doRestart)
		return
	case errors.Is(err, maps.ErrRotationExhausted):
		slog.Info("rotation complete, starting over", "map", next)
	case err != nil:
		slog.Error("advancing rotation", "error", err)
		c.fallback(outgoing)
		return
	}

	def, err := c.catalog.Load(next)
	if err != nil {
		slog.Error("loading next map", "map", next, "error", err)
		c.fallback(outgoing)
		return
	}

	c.notify.Broadcast("map.transition", map[string]any{"map": def.Name})

	// the old world stays up until the new one is ready
	c.session = nil
	c.teams.ResetAll()
	c.loadWorld(def, outgoing)
}

// outgoing lists everyone who must move when the current world goes away:
// the roster plus whoever is standing in the world.
func (c *Controller) outgoing() []string {
	var out []string
	if c.session != nil {
		out = append(out, c.session.Participants()...)
	}
	for _, p := range c.worlds.Occupants(c.currentWorld) {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// loadWorld provisions def and, once it is ready, moves outgoing into its
// waiting area and retires the previous world.
func (c *Controller) loadWorld(def *maps.Definition, outgoing []string) {
	old := c.currentWorld
	c.currentDef = def
	c.provisioning = true

	c.worlds.ProvisionAsync(def).Then(func(h *world.Handle, err error) {
		c.provisioning = false
		if err != nil {
			slog.Error("provisioning world", "map", def.DirID, "error", err)
			c.fallback(outgoing)
			return
		}
		c.arrive(def, old, h, outgoing)
	})
}

func (c *Controller) arrive(def *maps.Definition, old, h *world.Handle, outgoing []string) {
	// anyone who reached the old world while this one was loading moves too
	for _, p := range c.worlds.Occupants(old) {
		if !slices.Contains(outgoing, p) {
			outgoing = append(outgoing, p)
		}
	}

	c.currentWorld = h

	loc, _ := c.WaitingLocation()
	for _, p := range outgoing {
		c.roles.SetWaiting(p)
		c.teleport(p, loc)
	}

	if old != nil && old.Name != h.Name {
		c.worlds.Retire(old)
	}

	c.hasEnded = false
	c.isTransitioning = false
	c.state = StateLobby

	slog.Info("map ready", "map", def.DirID, "world", h.Name, "relocated", len(outgoing))
	c.notify.Broadcast("map.ready", map[string]any{"map": def.Name})

	for _, fn := range c.onLobby {
		fn(outgoing)
	}
}

// fallback tears down the current world when the next one could not be
// loaded. The lobby stays open without a world until one can be provisioned.
func (c *Controller) fallback(outgoing []string) {
	if old := c.currentWorld; old != nil {
		if _, ok := c.worlds.GetActive(old.MapKey); ok {
			if err := c.worlds.Teardown(old.MapKey); err != nil {
				slog.Warn("tearing down world after failed transition", "world", old.Name, "error", err)
			}
		} else {
			c.worlds.Retire(old)
		}
	}

	c.currentWorld = nil
	c.session = nil
	c.teams.ResetAll()
	c.hasEnded = false
	c.isTransitioning = false
	c.state = StateLobby

	c.notify.Broadcast("map.unavailable", nil)

	for _, fn := range c.onLobby {
		fn(outgoing)
	}
}

func (c *Controller) doRestart() {
	c.restarting = nil
	if c.restart == nil {
		slog.Error("restart requested but nothing can restart the process")
		return
	}
	c.restart()
}

// Shutdown cancels every pending timer. Worlds are left to the provisioner.
func (c *Controller) Shutdown() {
	c.clock.Cancel()
	c.transition.Cancel()
	c.restarting.Cancel()
	c.clock, c.transition, c.restarting = nil, nil, nil
	c.session = nil
	c.teams.ResetAll()
}
