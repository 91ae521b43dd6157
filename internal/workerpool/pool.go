// Package workerpool runs tasks on a fixed number of worker slots.
package workerpool

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/mcoot/dicemeister/internal/notify"
)

// Pool bounds concurrent tasks. Submit blocks while every slot is busy.
type Pool struct {
	size   int
	sem    *semaphore.Weighted
	active atomic.Int64
	wg     sync.WaitGroup

	changes *notify.Notifier
	logger  *slog.Logger
}

// New creates a pool with size worker slots
func New(name string, size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:    size,
		sem:     semaphore.NewWeighted(int64(size)),
		changes: notify.New(),
		logger:  logger.With(slog.String("component", "workerpool"), slog.String("pool", name)),
	}
}

// Submit waits for a free slot and runs task on it. It returns ctx.Err()
// if the context ends first, in which case task never runs.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.active.Add(1)
	p.wg.Add(1)
	p.changes.Notify()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("panic recovered",
					slog.Any("error", r),
					slog.String("stack", string(debug.Stack())))
			}
			p.active.Add(-1)
			p.sem.Release(1)
			p.wg.Done()
			p.changes.Notify()
		}()
		task()
	}()
	return nil
}

// Active returns the number of running tasks
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Size returns the number of worker slots
func (p *Pool) Size() int {
	return p.size
}

// Changes returns a channel signalled whenever a task starts or finishes
func (p *Pool) Changes() <-chan struct{} {
	return p.changes.Subscribe()
}

// Wait blocks until all running tasks finish or ctx ends
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
