package arena

import (
	"github.com/pixil98/go-arena/internal/driver"
	"github.com/pixil98/go-arena/internal/world"
)

type ArenaOpt func(*Arena)

// WithDriver replaces the control loop, for example with a manual clock.
func WithDriver(d *driver.Driver) ArenaOpt {
	return func(a *Arena) {
		a.driver = d
	}
}

// WithExecutor runs blocking world I/O on exec instead of inline.
func WithExecutor(exec world.Executor) ArenaOpt {
	return func(a *Arena) {
		a.exec = exec
	}
}
