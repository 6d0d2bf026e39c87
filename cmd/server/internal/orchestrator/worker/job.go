package worker

import (
	"context"
	"sync"
)

// JobResult is a single-assignment slot holding the outcome of one queued job.
type JobResult[T any] struct {
	value T
	err   error
	once  sync.Once
	done  chan struct{}
}

func newJobResult[T any]() *JobResult[T] {
	return &JobResult[T]{done: make(chan struct{})}
}

// Wait blocks until the result is set or ctx ends. Leaving early does not cancel the job.
func (r *JobResult[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the result is available.
func (r *JobResult[T]) Done() <-chan struct{} { return r.done }

// set fulfils the slot. Only the first call has an effect.
func (r *JobResult[T]) set(value T, err error) {
	r.once.Do(func() {
		r.value = value
		r.err = err
		close(r.done)
	})
}
