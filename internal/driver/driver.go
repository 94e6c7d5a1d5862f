package driver

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	DefaultIdleWait = time.Minute
)

// Driver is the single control loop. Every task posted to it runs on one
// goroutine, one at a time, in due-time order.
type Driver struct {
	mu    sync.Mutex
	queue taskQueue
	seq   uint64

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once

	manual bool
	now    time.Time
}

func NewDriver(opts ...DriverOpt) *Driver {
	d := &Driver{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Now returns the driver's clock.
func (d *Driver) Now() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nowLocked()
}

func (d *Driver) nowLocked() time.Time {
	if d.manual {
		return d.now
	}
	return time.Now()
}

// Post queues fn to run on the control loop as soon as possible.
// Safe to call from any goroutine.
func (d *Driver) Post(fn func()) {
	d.schedule(0, 0, fn)
}

// After runs fn once on the control loop after delay.
func (d *Driver) After(delay time.Duration, fn func()) *Task {
	return d.schedule(delay, 0, fn)
}

// Every runs fn on the control loop after delay and then every interval
// until the returned task is cancelled.
func (d *Driver) Every(delay, interval time.Duration, fn func()) *Task {
	if interval <= 0 {
		panic(fmt.Sprintf("driver: non-positive interval %s", interval))
	}
	return d.schedule(delay, interval, fn)
}

// Call runs fn on the control loop and waits for it to return. With a manual
// clock there is no loop goroutine and fn runs inline on the caller.
func (d *Driver) Call(ctx context.Context, fn func() error) error {
	if d.manual {
		return fn()
	}

	done := make(chan error, 1)
	d.Post(func() {
		done <- fn()
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stop:
		return ErrStopped
	}
}

// Stop makes Start return. Tasks still queued are dropped.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
}

func (d *Driver) Start(ctx context.Context) error {
	if d.manual {
		return fmt.Errorf("driver with a manual clock cannot be started")
	}

	timer := time.NewTimer(DefaultIdleWait)
	defer timer.Stop()

	for {
		d.runDue(d.Now())

		timer.Reset(d.nextWait())
		select {
		case <-ctx.Done():
			return nil
		case <-d.stop:
			return nil
		case <-d.wake:
		case <-timer.C:
		}
	}
}

// Advance moves a manual clock forward, running every task that falls due on
// the way with the clock set to that task's due time.
func (d *Driver) Advance(delta time.Duration) {
	d.mu.Lock()
	if !d.manual {
		d.mu.Unlock()
		panic("driver: Advance requires a manual clock")
	}
	target := d.now.Add(delta)
	d.mu.Unlock()

	for {
		t := d.popDue(target, true)
		if t == nil {
			break
		}
		d.run(t)
	}

	d.mu.Lock()
	d.now = target
	d.mu.Unlock()
}

// Flush runs everything already due on a manual clock, including tasks
// posted while flushing.
func (d *Driver) Flush() {
	d.Advance(0)
}

// Pending reports how many tasks are queued.
func (d *Driver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Len()
}

func (d *Driver) schedule(delay, interval time.Duration, fn func()) *Task {
	d.mu.Lock()
	d.seq++
	t := &Task{
		d:        d,
		due:      d.nowLocked().Add(delay),
		seq:      d.seq,
		interval: interval,
		fn:       fn,
		index:    -1,
	}
	heap.Push(&d.queue, t)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}

	return t
}

func (d *Driver) runDue(now time.Time) {
	for {
		t := d.popDue(now, false)
		if t == nil {
			return
		}
		d.run(t)
	}
}

func (d *Driver) popDue(limit time.Time, advanceClock bool) *Task {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queue.Len() == 0 || d.queue[0].due.After(limit) {
		return nil
	}

	t := heap.Pop(&d.queue).(*Task)
	if advanceClock && t.due.After(d.now) {
		d.now = t.due
	}
	return t
}

func (d *Driver) run(t *Task) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("driver task panicked", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		t.fn()
	}()

	if t.interval <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if t.cancelled {
		return
	}
	t.due = t.due.Add(t.interval)
	if now := d.nowLocked(); t.due.Before(now) {
		t.due = now
	}
	heap.Push(&d.queue, t)
}

func (d *Driver) nextWait() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queue.Len() == 0 {
		return DefaultIdleWait
	}
	wait := d.queue[0].due.Sub(d.nowLocked())
	if wait < 0 {
		return 0
	}
	return wait
}
