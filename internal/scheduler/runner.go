package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const DefaultInterval = 5 * time.Second

// Action is one tick of work driven by a Runner.
type Action interface {
	Run(ctx context.Context) error
}

type ActionFunc func(ctx context.Context) error

func (f ActionFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Metrics receives scheduler events.
type Metrics interface {
	TickFailed(runner string)
	SetRunners(n int)
}

type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Runner invokes its action, waits for it to return, sleeps for the interval
// and repeats. The timer is re-armed only after the previous invocation has
// returned, so the action never runs concurrently with itself.
type Runner struct {
	name     string
	action   Action
	interval time.Duration
	metrics  Metrics
	logger   *zap.Logger

	state atomic.Int32

	mu      sync.Mutex
	timer   *time.Timer
	started bool
	stopped bool
}

func NewRunner(name string, action Action, interval time.Duration, metrics Metrics, logger *zap.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		name:     name,
		action:   action,
		interval: interval,
		metrics:  metrics,
		logger:   logger.With(zap.String("runner", name)),
	}
}

func (r *Runner) Name() string {
	return r.name
}

func (r *Runner) State() State {
	return State(r.state.Load())
}

// Start schedules the first tick immediately. Later calls do nothing.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.stopped {
		return
	}
	r.started = true
	r.timer = time.AfterFunc(0, r.fire)
}

// Stop cancels future ticks. A tick already in progress runs to completion
// but is not re-armed. Stop may be called any number of times.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *Runner) fire() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.state.Store(int32(StateRunning))
	r.invoke()
	r.state.Store(int32(StateIdle))

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.timer.Reset(r.interval)
	}
}

func (r *Runner) invoke() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("runner tick panicked",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			r.metrics.TickFailed(r.name)
		}
	}()

	// In-flight work is never cancelled, so ticks get a context that outlives Stop.
	if err := r.action.Run(context.Background()); err != nil {
		r.logger.Error("runner tick failed", zap.Error(err))
		r.metrics.TickFailed(r.name)
	}
}

func (r *Runner) String() string {
	return fmt.Sprintf("%s(%s)", r.name, r.State())
}
