// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"time"

	"go.gridlink.dev/tools/internal/util/syncmap"
)

// MemStore is an in-memory implementation of the [Store] interface.
type MemStore struct {
	ttl    time.Duration
	cache  syncmap.Map[string, *memEntry]
	cancel context.CancelFunc
}

type memEntry struct {
	value        []byte
	lastAccessed time.Time
}

func (e *memEntry) expired(ttl time.Duration) bool {
	return time.Since(e.lastAccessed) > ttl
}

// NewMemStore creates a new MemStore with the given TTL.
func NewMemStore(ctx context.Context, ttl time.Duration, opts ...Option) *MemStore {
	ctx, cancel := context.WithCancel(ctx)
	s := &MemStore{ttl: ttl, cancel: cancel}
	go sweep(ctx, sweepInterval(ttl), s.purge, newOptions(opts).logger)
	return s
}

func (s *MemStore) purge(context.Context) error {
	s.cache.Range(func(key string, e *memEntry) bool {
		if e.expired(s.ttl) {
			s.cache.CompareAndDelete(key, e)
		}
		return true
	})
	return nil
}

// Get retrieves a value for a given key.
func (s *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := s.cache.Load(key)
	if !ok {
		return nil, nil
	}
	if e.expired(s.ttl) {
		s.cache.CompareAndDelete(key, e)
		return nil, nil
	}

	// Entries are immutable once stored; refresh by replacing. A failed swap
	// means a concurrent Set or refresh already stored a newer entry.
	s.cache.CompareAndSwap(key, e, &memEntry{value: e.value, lastAccessed: time.Now()})

	// Return a copy so callers can't mutate the cache.
	return append([]byte(nil), e.value...), nil
}

// Set stores a value for a given key.
func (s *MemStore) Set(_ context.Context, key string, value []byte) error {
	s.cache.Store(key, &memEntry{
		value:        append([]byte(nil), value...),
		lastAccessed: time.Now(),
	})
	return nil
}

// Delete removes a key.
func (s *MemStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Close stops background expiration.
func (s *MemStore) Close() error {
	s.cancel()
	return nil
}
