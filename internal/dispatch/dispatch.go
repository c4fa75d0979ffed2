// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package dispatch runs events in order per key and in parallel across keys.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.gridlink.dev/tools/internal/util/syncx"
)

// DefaultLimit is the number of workers used when New is called with a
// non-positive limit.
const DefaultLimit = 64

// ErrClosed is returned by [Dispatcher.Dispatch] after [Dispatcher.Close].
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher queues events by key. Each key with pending events has one
// worker that handles them in arrival order and exits once the queue is
// empty. At most limit workers run at a time.
type Dispatcher[T any] struct {
	ctx    context.Context
	handle func(context.Context, T)
	logger *slog.Logger
	lwg    *syncx.LimitedWaitGroup

	mu      sync.Mutex
	queues  map[string][]T // key present while its worker is alive
	closed  bool
	pending sync.WaitGroup
}

// New returns a Dispatcher that calls handle with ctx for every event.
// A nil logger discards panics raised by handle without logging.
func New[T any](ctx context.Context, limit int, logger *slog.Logger, handle func(context.Context, T)) *Dispatcher[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Dispatcher[T]{
		ctx:    ctx,
		handle: handle,
		logger: logger,
		lwg:    syncx.NewLimitedWaitGroup(limit),
		queues: make(map[string][]T),
	}
}

// Dispatch queues ev for key. If key has no worker, Dispatch starts one,
// blocking while all workers are busy.
//
// If ctx is done before a worker can start, Dispatch returns the context
// error and the events queued for key are dropped.
func (d *Dispatcher[T]) Dispatch(ctx context.Context, key string, ev T) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if q, ok := d.queues[key]; ok {
		d.queues[key] = append(q, ev)
		d.mu.Unlock()
		return nil
	}
	d.queues[key] = []T{ev}
	d.pending.Add(1)
	d.mu.Unlock()

	if err := d.lwg.Go(ctx, func() { d.work(key) }); err != nil {
		d.mu.Lock()
		dropped := len(d.queues[key])
		delete(d.queues, key)
		d.mu.Unlock()
		d.pending.Done()
		return fmt.Errorf("starting worker for %q (%d events dropped): %w", key, dropped, err)
	}
	return nil
}

func (d *Dispatcher[T]) work(key string) {
	defer d.pending.Done()
	for {
		d.mu.Lock()
		q := d.queues[key]
		if len(q) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		ev := q[0]
		var zero T
		q[0] = zero
		d.queues[key] = q[1:]
		d.mu.Unlock()

		d.run(key, ev)
	}
}

func (d *Dispatcher[T]) run(key string, ev T) {
	defer func() {
		if r := recover(); r != nil && d.logger != nil {
			d.logger.Error("handler panicked", "key", key, "panic", r)
		}
	}()
	d.handle(d.ctx, ev)
}

// Active returns the number of keys that have a running worker.
func (d *Dispatcher[T]) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Busy returns the number of workers currently holding a slot, at most the
// limit passed to New.
func (d *Dispatcher[T]) Busy() int { return d.lwg.Running() }

// Close stops accepting events and waits until every queued event has been
// handled.
func (d *Dispatcher[T]) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.pending.Wait()
	d.lwg.Wait()
}
