package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/dukex/hesab/pkg/models"
)

// DefaultPoolSize is the number of workers an engine starts when none is configured.
const DefaultPoolSize = 4

// Task is one step attempt handed to the pool.
type Task func() (models.StepOutcome, error)

// Result is what a worker produced for a Task.
type Result struct {
	Outcome models.StepOutcome
	Err     error
}

type task struct {
	name   string
	fn     Task
	result chan Result
}

// Pool is a fixed set of worker goroutines shared by every run of an engine.
// Submission is safe from many goroutines. A task whose caller stopped
// waiting still runs to completion; its result is dropped.
type Pool struct {
	size   int
	tasks  chan task
	logger *slog.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewPool starts size workers.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}

	p := &Pool{
		size:   size,
		tasks:  make(chan task),
		logger: logger,
	}

	p.logger.Debug("worker pool starting", slog.Int("size", size))

	for range size {
		p.wg.Add(1)

		go p.work()
	}

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Submit blocks until a worker accepts fn or ctx is done. The returned
// channel receives exactly one Result.
func (p *Pool) Submit(ctx context.Context, name string, fn Task) (<-chan Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	t := task{
		name:   name,
		fn:     fn,
		result: make(chan Result, 1),
	}

	select {
	case p.tasks <- t:
		return t.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting work and waits for in-flight tasks, bounded by ctx.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return nil
	}

	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("worker pool stopped")

		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out with handlers still running")

		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

func (p *Pool) work() {
	defer p.wg.Done()

	for t := range p.tasks {
		t.result <- p.run(t)
	}
}

func (p *Pool) run(t task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("step handler panicked",
				slog.String("step", t.name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)

			res = Result{Err: fmt.Errorf("%w: %v", ErrStepPanicked, r)}
		}
	}()

	outcome, err := t.fn()

	return Result{Outcome: outcome, Err: err}
}
