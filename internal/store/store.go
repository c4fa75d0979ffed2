// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package store implements a key-value store with idle expiration, backed
// in-memory, by a JSON file, SQLite, PostgreSQL or Redis.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Store is a generic interface for a key-value store.
//
// Entries that were not read or written for longer than the store's TTL
// expire. Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a value for a given key and refreshes its expiration.
	// It must return (nil, nil) if the key is not found or has expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value for a given key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close closes the store and releases any resources.
	Close() error
}

// DefaultTTL is the idle expiration used when Open is called with a zero TTL.
const DefaultTTL = 24 * time.Hour

// ErrUnknownBackend is returned by [Open] for an unrecognized store spec.
var ErrUnknownBackend = errors.New("unknown store backend")

// Open opens the store described by spec:
//
//	mem                   in-memory (also the empty string)
//	file:/path/db.json    JSON file
//	sqlite:/path/db       SQLite database
//	postgres://...        PostgreSQL connection URL
//	redis://...           Redis connection URL
//
// Background expiration stops when ctx is done or the store is closed.
func Open(ctx context.Context, spec string, ttl time.Duration, opts ...Option) (Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	switch {
	case spec == "" || spec == "mem":
		return NewMemStore(ctx, ttl, opts...), nil
	case strings.HasPrefix(spec, "file:"):
		return NewFileStore(ctx, strings.TrimPrefix(spec, "file:"), ttl, opts...)
	case strings.HasPrefix(spec, "sqlite:"):
		return NewSQLiteStore(ctx, strings.TrimPrefix(spec, "sqlite:"), ttl, opts...)
	case strings.HasPrefix(spec, "postgres://"), strings.HasPrefix(spec, "postgresql://"):
		return NewPostgresStore(ctx, spec, ttl, opts...)
	case strings.HasPrefix(spec, "redis://"), strings.HasPrefix(spec, "rediss://"):
		return NewRedisStore(ctx, spec, ttl)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, Redact(spec))
}

// Redact hides credentials in a store spec so it can be logged.
func Redact(spec string) string {
	scheme, rest, ok := strings.Cut(spec, "://")
	if !ok {
		return spec
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return spec
	}
	if user, _, hasPass := strings.Cut(userinfo, ":"); hasPass {
		return scheme + "://" + user + ":xxxxx@" + host
	}
	return spec
}

// Option configures a store.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger reports failures of background expiration to logger. Without
// it they are dropped. Redis expires keys itself and ignores the option.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// sweepInterval returns how often expired entries are purged for ttl.
func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/2, time.Second), time.Hour)
}

// sweep calls purge every interval until ctx is done. Failures are logged to
// logger, if not nil, and the next tick tries again.
func sweep(ctx context.Context, interval time.Duration, purge func(context.Context) error, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := purge(ctx); err != nil && ctx.Err() == nil && logger != nil {
				logger.Warn("purging expired entries failed", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
