// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/scholar-harvest/internal/metrics"
)

// Task is one unit of network work. A non-nil error marks an environment
// failure that the run reports to its caller; per-item soft failures are
// handled inside the task and return nil.
type Task func(ctx context.Context) error

// Scheduler accepts tasks before and during a run.
type Scheduler interface {
	// Queue adds a task. Tasks queued while Run is in progress join that run.
	Queue(t Task)

	// Run executes every queued task, including those queued by running
	// tasks, and returns once all have finished.
	Run(ctx context.Context) error
}

// ExecutorStats summarizes a finished run.
type ExecutorStats struct {
	Concurrency  int
	Executed     int64
	Failed       int64
	PeakInFlight int64
}

// Executor runs tasks with bounded concurrency. Tasks queued before Run are
// dispatched in random order so that no host sees requests in a predictable
// pattern; tasks queued during Run are appended to the dispatch queue.
type Executor struct {
	limit   int
	sem     *semaphore.Weighted
	shuffle func([]Task)
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	active  int
	running bool
	errs    []error

	inFlight atomic.Int64
	peak     atomic.Int64
	executed atomic.Int64
	failed   atomic.Int64
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithShuffle replaces the initial-order randomization. Tests pass a no-op
// for deterministic ordering.
func WithShuffle(fn func([]Task)) ExecutorOption {
	return func(e *Executor) { e.shuffle = fn }
}

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithExecutorMetrics records the in-flight gauge.
func WithExecutorMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor returns an executor that keeps at most concurrency tasks in
// flight. Values below 1 are treated as 1.
func NewExecutor(concurrency int, opts ...ExecutorOption) *Executor {
	if concurrency < 1 {
		concurrency = 1
	}
	e := &Executor{
		limit: concurrency,
		sem:   semaphore.NewWeighted(int64(concurrency)),
		shuffle: func(ts []Task) {
			rand.Shuffle(len(ts), func(i, j int) { ts[i], ts[j] = ts[j], ts[i] })
		},
		logger: zap.NewNop(),
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Queue adds t to the pending set, or to the running dispatch queue.
func (e *Executor) Queue(t Task) {
	e.mu.Lock()
	e.queue = append(e.queue, t)
	if e.running {
		e.cond.Broadcast()
	}
	e.mu.Unlock()
}

// Run dispatches queued tasks until the queue is empty and nothing is in
// flight. It never cancels siblings when a task fails; task errors are
// joined into the returned error. If ctx is cancelled, tasks not yet
// dispatched are dropped and ctx.Err() is included in the result.
func (e *Executor) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("executor is already running")
	}
	e.running = true
	e.errs = nil
	e.shuffle(e.queue)
	e.logger.Debug("executor run started",
		zap.Int("queued", len(e.queue)),
		zap.Int("concurrency", e.limit),
	)

	var dropped int
	for {
		for len(e.queue) == 0 && e.active > 0 {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			break
		}
		t := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.active++
		e.mu.Unlock()

		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.mu.Lock()
			e.active--
			dropped++
			continue
		}
		go e.execute(ctx, t)

		e.mu.Lock()
	}
	e.running = false
	errs := e.errs
	e.errs = nil
	e.mu.Unlock()

	if dropped > 0 {
		errs = append(errs, fmt.Errorf("%d task(s) not started: %w", dropped, ctx.Err()))
	}
	e.logger.Debug("executor run finished",
		zap.Int64("executed", e.executed.Load()),
		zap.Int64("peak_in_flight", e.peak.Load()),
	)
	return errors.Join(errs...)
}

func (e *Executor) execute(ctx context.Context, t Task) {
	n := e.inFlight.Add(1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	e.metrics.TaskStarted()

	err := e.call(ctx, t)

	e.metrics.TaskFinished()
	e.inFlight.Add(-1)
	e.executed.Add(1)
	e.sem.Release(1)

	e.mu.Lock()
	if err != nil {
		e.failed.Add(1)
		e.errs = append(e.errs, err)
	}
	e.active--
	e.cond.Broadcast()
	e.mu.Unlock()
}

// call runs t, converting a panic into an error so one task cannot take
// down the run.
func (e *Executor) call(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t(ctx)
}

// Stats reports counters accumulated over the executor's lifetime.
func (e *Executor) Stats() ExecutorStats {
	return ExecutorStats{
		Concurrency:  e.limit,
		Executed:     e.executed.Load(),
		Failed:       e.failed.Load(),
		PeakInFlight: e.peak.Load(),
	}
}
