// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package syncx contains useful synchronization primitives.
package syncx

import (
	"context"
	"sync"
)

// Protect wraps T into [Protected].
func Protect[T any](val T) *Protected[T] { return &Protected[T]{val: val} }

// Protected provides synchronized access to a value of type T.
type Protected[T any] struct {
	mu  sync.RWMutex
	val T
}

// RAccess calls f with the value under a read lock.
func (p *Protected[T]) RAccess(f func(T)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f(p.val)
}

// Access calls f with the value under a write lock.
func (p *Protected[T]) Access(f func(T)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f(p.val)
}

// Lazy represents a lazily computed value.
type Lazy[T any] struct {
	once sync.Once
	val  T
}

// Get returns T, calling f to compute it, if necessary.
func (l *Lazy[T]) Get(f func() T) T {
	l.once.Do(func() { l.val = f() })
	return l.val
}

// LimitedWaitGroup is a version of [sync.WaitGroup] that limits the
// number of concurrently working goroutines by using a buffered channel
// as a semaphore.
type LimitedWaitGroup struct {
	wg      sync.WaitGroup
	workers chan struct{}
}

// NewLimitedWaitGroup returns a new LimitedWaitGroup that limits the number of
// concurrently working goroutines to limit.
func NewLimitedWaitGroup(limit int) *LimitedWaitGroup {
	if limit < 1 {
		limit = 1
	}
	return &LimitedWaitGroup{workers: make(chan struct{}, limit)}
}

// Go waits for a free slot and runs f in a new goroutine. It returns
// ctx.Err() without running f if ctx is done first.
func (lwg *LimitedWaitGroup) Go(ctx context.Context, f func()) error {
	select {
	case lwg.workers <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	lwg.wg.Add(1)
	go func() {
		defer lwg.Done()
		f()
	}()
	return nil
}

// Done decrements the counter by one and releases a slot.
func (lwg *LimitedWaitGroup) Done() {
	<-lwg.workers
	lwg.wg.Done()
}

// Wait blocks until the counter becomes zero.
func (lwg *LimitedWaitGroup) Wait() { lwg.wg.Wait() }

// Running reports the number of goroutines currently holding a slot.
func (lwg *LimitedWaitGroup) Running() int { return len(lwg.workers) }
