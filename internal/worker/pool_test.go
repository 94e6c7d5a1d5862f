package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func TestPool_RunsAllJobs(t *testing.T) {
	p := NewPool(3)

	var count atomic.Int32
	var wg sync.WaitGroup

	// queued before start
	for i := 0; i < 5; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	for i := 0; i < 20; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		})
	}

	waitOrFail(t, &wg)
	testutil.AssertEqual(t, "jobs run", count.Load(), int32(25))
	testutil.AssertEqual(t, "queued", p.Queued(), 0)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPool_PanicDoesNotKillWorker(t *testing.T) {
	p := NewPool(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(func() {
		defer wg.Done()
		panic("boom")
	})
	ran := false
	wg.Add(1)
	p.Submit(func() {
		defer wg.Done()
		ran = true
	})

	waitOrFail(t, &wg)
	testutil.AssertEqual(t, "second job ran", ran, true)
}

func TestNewPool_DefaultSize(t *testing.T) {
	testutil.AssertEqual(t, "size", NewPool(0).size, DefaultSize)
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}
}
