package match

import "time"

type ControllerOpt func(*Controller)

// WithKillPoints sets the team score awarded per kill.
func WithKillPoints(n int) ControllerOpt {
	return func(c *Controller) {
		c.killPoints = n
	}
}

func WithAssistPoints(n int) ControllerOpt {
	return func(c *Controller) {
		c.assistPoints = n
	}
}

// WithEndDelay sets how long the results stay up before the next map loads.
func WithEndDelay(d time.Duration) ControllerOpt {
	return func(c *Controller) {
		if d > 0 {
			c.endDelay = d
		}
	}
}

func WithRestartDelay(d time.Duration) ControllerOpt {
	return func(c *Controller) {
		if d > 0 {
			c.restartDelay = d
		}
	}
}

// WithExhaustedPolicy picks what happens once every map has been played.
func WithExhaustedPolicy(p ExhaustedPolicy) ControllerOpt {
	return func(c *Controller) {
		c.exhausted = p
	}
}

// WithRestart sets the function that restarts the process.
func WithRestart(fn func()) ControllerOpt {
	return func(c *Controller) {
		c.restart = fn
	}
}

// WithIDs replaces the session id generator.
func WithIDs(fn func() string) ControllerOpt {
	return func(c *Controller) {
		c.newID = fn
	}
}
