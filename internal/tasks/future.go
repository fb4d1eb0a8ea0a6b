package tasks

import (
	"context"
	"runtime/debug"
)

// Result is the outcome of one unit of work. Err is either the error returned by the
// work itself or a *WorkerFault when the work never returned.
type Result[T any] struct {
	Value T
	Err   error
}

// Faulted reports whether the work terminated abnormally instead of returning.
func (r Result[T]) Faulted() bool {
	return IsWorkerFault(r.Err)
}

// Future resolves once a dispatched unit of work reaches a terminal state.
type Future[T any] struct {
	done chan struct{}
	res  Result[T]
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result blocks until the work has finished and returns its outcome.
func (f *Future[T]) Result() Result[T] {
	<-f.done
	return f.res
}

// Await waits for the outcome or for ctx to end. Giving up on ctx does not stop the
// work: it keeps its worker until it finishes and its result is dropped.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.res.Value, f.res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit dispatches fn to the pool and returns a handle to its outcome. It blocks while
// the pool is saturated. An error means fn was not dispatched and will never run.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) (*Future[T], error) {
	f := &Future[T]{done: make(chan struct{})}
	job := func() {
		p.inFlight.Add(1)
		defer p.inFlight.Add(-1)
		f.run(p, fn)
	}
	if err := p.dispatch(ctx, job); err != nil {
		return nil, err
	}
	return f, nil
}

// SpawnBlocking runs fn on the pool and waits for it.
func SpawnBlocking[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	f, err := Submit(ctx, p, fn)
	if err != nil {
		var zero T
		return zero, err
	}
	return f.Await(ctx)
}

// run is the guarded execution wrapper around fn. Whatever happens inside fn, the
// future is resolved exactly once.
func (f *Future[T]) run(p *Pool, fn func() (T, error)) {
	var (
		value    T
		err      error
		returned bool
	)
	defer func() {
		if returned {
			f.res = Result[T]{Value: value, Err: err}
			p.completed.Add(1)
			close(f.done)
			return
		}
		// recover yields nil while unwinding from runtime.Goexit; that unwinding
		// continues after this function and ends the worker goroutine.
		r := recover()
		fault := &WorkerFault{Value: r, Stack: debug.Stack(), Goexit: r == nil}
		p.faulted.Add(1)
		p.log.Error().
			Str("panic", fault.Detail()).
			Bool("goexit", fault.Goexit).
			Bytes("stack", fault.Stack).
			Msg("blocking task faulted")
		f.res = Result[T]{Err: fault}
		close(f.done)
	}()
	value, err = fn()
	returned = true
}
