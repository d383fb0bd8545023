// Package workerpool bounds how many pipeline calls run at once and how long
// each may take.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"
)

var ErrTimeout = errors.New("operation timed out")

// Pool admits at most a fixed number of concurrent calls.
type Pool struct {
	sem     *semaphore.Weighted
	workers int
	timeout time.Duration
}

// New returns a pool with the given number of slots. workers <= 0 means
// GOMAXPROCS; timeout <= 0 disables the per-call deadline.
func New(workers int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
		timeout: timeout,
	}
}

func (p *Pool) Workers() int { return p.workers }

func (p *Pool) Timeout() time.Duration { return p.timeout }

// Run waits for a slot and calls fn with a context carrying the per-call
// deadline. Run returns when fn returns or the context ends, whichever comes
// first. A result that arrives after the context ended is dropped, and fn
// keeps its slot until it returns. Deadline expiry is reported as ErrTimeout.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do is Run for functions returning a value.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, wrap(err)
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if err := ctx.Err(); err != nil {
			return zero, wrap(err)
		}
		return r.v, r.err
	case <-ctx.Done():
		return zero, wrap(ctx.Err())
	}
}

func wrap(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
