package driver

import (
	"container/heap"
	"errors"
	"time"
)

var ErrStopped = errors.New("driver stopped")

// Task is a handle to a scheduled function.
type Task struct {
	d *Driver

	due       time.Time
	seq       uint64
	interval  time.Duration
	fn        func()
	cancelled bool
	index     int
}

// Cancel stops any future run of the task. Called from the control loop it
// takes effect before the next task is picked, so a cancelled task never
// fires again. Cancelling a nil or finished task is a no-op.
func (t *Task) Cancel() {
	if t == nil {
		return
	}

	t.d.mu.Lock()
	defer t.d.mu.Unlock()

	t.cancelled = true
	if t.index >= 0 {
		heap.Remove(&t.d.queue, t.index)
	}
}

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool {
	if t == nil {
		return true
	}
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	return t.cancelled
}

// taskQueue orders tasks by due time, then by scheduling order.
type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
