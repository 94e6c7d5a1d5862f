package worker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

const DefaultSize = 4

// Pool runs submitted jobs on a fixed number of goroutines. Submit never
// blocks, so it is safe to call from the control loop.
type Pool struct {
	size int

	mu     sync.Mutex
	jobs   []func()
	notify chan struct{}
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{
		size:   size,
		notify: make(chan struct{}, 1),
	}
}

// Submit queues fn. Jobs submitted before Start are held until it runs.
func (p *Pool) Submit(fn func()) {
	p.mu.Lock()
	p.jobs = append(p.jobs, fn)
	p.mu.Unlock()
	p.signal()
}

// Queued reports the number of jobs waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

func (p *Pool) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "starting worker pool", "size", p.size)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) work(ctx context.Context) {
	for {
		job := p.next()
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-p.notify:
			}
			continue
		}
		p.run(job)
	}
}

func (p *Pool) next() func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.jobs) == 0 {
		return nil
	}
	job := p.jobs[0]
	p.jobs[0] = nil
	p.jobs = p.jobs[1:]
	if len(p.jobs) > 0 {
		p.signal()
	}
	return job
}

func (p *Pool) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Pool) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker job panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	job()
}

// Inline runs every job on the submitting goroutine.
type Inline struct{}

func (Inline) Submit(fn func()) { fn() }
