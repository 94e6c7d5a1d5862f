package driver

import "time"

type DriverOpt func(*Driver)

// WithManualClock freezes the clock at start. Time only moves through
// Advance, and tasks only run from Advance or Flush.
func WithManualClock(start time.Time) DriverOpt {
	return func(d *Driver) {
		d.manual = true
		d.now = start
	}
}
