// Package worker provides the single-flight execution lane that serializes model inference.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/houzhh15/asr-gateway/cmd/server/internal/metrics"
)

// State is the observable state of the worker loop.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

var (
	ErrNotStarted = errors.New("inference worker not started")
	ErrStopped    = errors.New("inference worker stopped")
)

// PanicError is delivered to the submitter when an operation panics.
type PanicError struct {
	Job   string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("inference job %s panicked: %v", e.Job, e.Value)
}

// Config controls the worker lane.
type Config struct {
	// Concurrency is the number of jobs allowed to run at once. Model inference uses 1.
	Concurrency int
	// QueueSize bounds the number of waiting jobs; Submit blocks while the queue is full.
	QueueSize int
}

type job struct {
	id       string
	name     string
	enqueued time.Time
	run      func(ctx context.Context) (status string)
}

// Worker runs submitted jobs in arrival order on a fixed number of goroutines.
type Worker struct {
	cfg    Config
	logger *slog.Logger
	queue  chan *job

	active  atomic.Int32
	started atomic.Bool

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Worker. Call Start before submitting.
func New(cfg Config, logger *slog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:    cfg,
		logger: logger.With("component", "inference_worker"),
		queue:  make(chan *job, cfg.QueueSize),
	}
}

// Start launches the consumer goroutines. Subsequent calls are no-ops.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(ctx, i)
	}
	w.logger.Info("inference worker started", "concurrency", w.cfg.Concurrency, "queue_size", w.cfg.QueueSize)
}

// Stop rejects new submissions, lets queued jobs drain, then waits for the loops to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
	if w.cancel != nil {
		w.cancel()
	}
	w.logger.Info("inference worker stopped")
}

// State reports whether a job is currently executing.
func (w *Worker) State() State {
	if w.active.Load() > 0 {
		return StateRunning
	}
	return StateIdle
}

// QueueDepth returns the number of jobs waiting to run.
func (w *Worker) QueueDepth() int {
	return len(w.queue)
}

// Started reports whether Start has been called.
func (w *Worker) Started() bool {
	return w.started.Load() && !w.isStopped()
}

func (w *Worker) isStopped() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

func (w *Worker) loop(ctx context.Context, slot int) {
	defer w.wg.Done()
	for j := range w.queue {
		metrics.SetQueueDepth(len(w.queue))
		w.execute(ctx, slot, j)
	}
}

func (w *Worker) execute(ctx context.Context, slot int, j *job) {
	w.active.Add(1)
	defer w.active.Add(-1)

	wait := time.Since(j.enqueued)
	start := time.Now()
	status := j.run(ctx)

	metrics.RecordInferenceJob(wait, status)
	w.logger.Debug("inference job finished",
		"job_id", j.id,
		"job", j.name,
		"slot", slot,
		"status", status,
		"wait_ms", wait.Milliseconds(),
		"run_ms", time.Since(start).Milliseconds())
}

func (w *Worker) enqueue(ctx context.Context, j *job) error {
	if !w.started.Load() {
		return ErrNotStarted
	}
	// hold the read lock so Stop cannot close the queue mid-send
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- j:
		metrics.SetQueueDepth(len(w.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues op on w and blocks until it has run or ctx ends.
//
// Jobs run in submission order. A panic inside op is recovered and returned as *PanicError;
// the worker keeps serving later jobs. If ctx ends while waiting the caller gets ctx.Err()
// but the job still runs when its turn comes.
func Submit[T any](ctx context.Context, w *Worker, name string, op func(ctx context.Context) (T, error)) (T, error) {
	res, err := Enqueue(ctx, w, name, op)
	if err != nil {
		var zero T
		return zero, err
	}
	return res.Wait(ctx)
}

// Enqueue adds op to the queue and returns its result slot without waiting.
func Enqueue[T any](ctx context.Context, w *Worker, name string, op func(ctx context.Context) (T, error)) (*JobResult[T], error) {
	res := newJobResult[T]()
	j := &job{
		id:       uuid.NewString(),
		name:     name,
		enqueued: time.Now(),
	}
	j.run = func(runCtx context.Context) (status string) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				w.logger.Error("inference job panicked", "job_id", j.id, "job", name, "panic", r, "stack", string(stack))
				var zero T
				res.set(zero, &PanicError{Job: name, Value: r, Stack: stack})
				status = "panic"
			}
		}()
		value, err := op(runCtx)
		res.set(value, err)
		if err != nil {
			return "error"
		}
		return "success"
	}

	if err := w.enqueue(ctx, j); err != nil {
		return nil, err
	}
	return res, nil
}
