// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package workerpool is the bounded, shared worker pool the Tick Executor
// submits tasklet evaluations to (spec §5). It is injected as a capability
// and the scheduler never owns its lifecycle: callers construct one Pool
// for the process and shut it down themselves after the scheduler stops.
package workerpool

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/rca-engine/scheduler/internal/rcaerrors"
)

// Future resolves once its submitted function has returned, carrying either
// its result or the error it returned (or a LifecycleError if the pool
// could not accept the task at all).
type Future[T any] interface {
	// Wait blocks until the task completes or ctx is done, whichever comes
	// first.
	Wait(ctx context.Context) (T, error)
}

// Pool bounds how many submitted tasks may run concurrently.
type Pool[T any] interface {
	// Submit schedules fn to run, returning a Future for its result. Submit
	// itself never blocks waiting for a free slot; the blocking happens
	// inside the returned Future's goroutine.
	Submit(ctx context.Context, fn func(ctx context.Context) (T, error)) Future[T]
}

type resolvedFuture[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func (f *resolvedFuture[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// semaphorePool is a Pool backed by a golang.org/x/sync/semaphore.Weighted,
// the same package the teacher uses elsewhere in its dependency graph for
// bounding concurrent work (see golang.org/x/sync/errgroup usage in
// internal/copy).
type semaphorePool[T any] struct {
	sem *semaphore.Weighted
}

// New builds a Pool that runs at most concurrency tasks at once.
func New[T any](concurrency int64) Pool[T] {
	return &semaphorePool[T]{sem: semaphore.NewWeighted(concurrency)}
}

// Submit implements Pool. If the semaphore cannot be acquired because ctx is
// done first, the returned Future resolves with a LifecycleError, matching
// §5's "Worker pool rejects task: Propagate to the returned future as
// failure" policy.
func (p *semaphorePool[T]) Submit(ctx context.Context, fn func(ctx context.Context) (T, error)) Future[T] {
	f := &resolvedFuture[T]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			var zero T
			f.val, f.err = zero, rcaerrors.LifecycleError(err)
			return
		}
		defer p.sem.Release(1)
		f.val, f.err = fn(ctx)
	}()

	return f
}

// Resolved returns an already-resolved Future carrying val and no error, for
// predecessors not yet present in a tasklet's future map (spec §4.3).
func Resolved[T any](val T) Future[T] {
	f := &resolvedFuture[T]{done: make(chan struct{}), val: val}
	close(f.done)
	return f
}
