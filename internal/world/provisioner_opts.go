package world

import (
	"time"

	"github.com/pixil98/go-arena/internal/engine"
)

type ProvisionerOpt func(*Provisioner)

// WithSettings overrides the gameplay flags applied to new worlds.
func WithSettings(s engine.WorldSettings) ProvisionerOpt {
	return func(p *Provisioner) {
		p.settings = s
	}
}

// WithSweepInterval sets how often retired worlds are checked for occupants.
func WithSweepInterval(d time.Duration) ProvisionerOpt {
	return func(p *Provisioner) {
		p.sweepInterval = d
	}
}

// WithRetireGrace sets how long a retired world may stay occupied before its
// occupants are evacuated.
func WithRetireGrace(d time.Duration) ProvisionerOpt {
	return func(p *Provisioner) {
		p.retireGrace = d
	}
}

// WithNamer replaces the instance name generator.
func WithNamer(fn func(worldName string) string) ProvisionerOpt {
	return func(p *Provisioner) {
		p.nameFor = fn
	}
}
