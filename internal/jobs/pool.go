package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// abortGrace bounds how long Shutdown waits, after cancelling, for tasks to record their
// own failure.
const abortGrace = 10 * time.Second

// Task is one unit of background work. Its error is logged, never propagated.
type Task func(ctx context.Context) error

// Pool runs tasks on a fixed number of workers fed by a bounded queue.
type Pool struct {
	queue  chan Task
	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	grace  time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines reading from a queue of queueSize tasks.
func NewPool(workers, queueSize int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan Task, max(queueSize, 0)),
		ctx:    ctx,
		cancel: cancel,
		grace:  abortGrace,
	}
	for i := 0; i < max(workers, 1); i++ {
		p.group.Go(func() error {
			for task := range p.queue {
				p.exec(task)
			}
			return nil
		})
	}
	return p
}

// Submit enqueues task without blocking. It fails with ErrQueueFull or ErrShuttingDown.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrShuttingDown
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued and running tasks. When ctx expires first
// the task context is cancelled: running tasks see the cancellation and queued tasks still
// run, with a cancelled context, so each can record its own failure. Shutdown waits up to
// the abort grace period for that and then returns ctx.Err().
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		p.cancel()
		return err
	case <-ctx.Done():
	}

	p.cancel()
	select {
	case <-done:
	case <-time.After(p.grace):
		slog.Error("job pool abandoned tasks after shutdown timeout", "grace", p.grace)
	}
	return ctx.Err()
}

func (p *Pool) exec(task Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job task", "error", fmt.Sprint(r))
		}
	}()
	if err := task(p.ctx); err != nil {
		slog.Error("job task failed", "error", err)
	}
}
