// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of the [Store] interface.
type PostgresStore struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	cancel context.CancelFunc
}

// NewPostgresStore creates a new PostgresStore and connects to the database.
func NewPostgresStore(ctx context.Context, databaseURL string, ttl time.Duration, opts ...Option) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			last_accessed TIMESTAMPTZ NOT NULL
		);
	`); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool, ttl: ttl}
	ctx, s.cancel = context.WithCancel(ctx)
	go sweep(ctx, sweepInterval(ttl), s.purge, newOptions(opts).logger)
	return s, nil
}

func (s *PostgresStore) purge(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE last_accessed < $1;`, time.Now().Add(-s.ttl))
	return err
}

// Get retrieves a value for a given key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	if err := s.pool.QueryRow(ctx, `
		UPDATE kv SET last_accessed = NOW()
		WHERE key = $1 AND last_accessed >= $2
		RETURNING value;
	`, key, time.Now().Add(-s.ttl)).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Set stores a value for a given key.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv (key, value, last_accessed)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = $2, last_accessed = NOW();
	`, key, value)
	return err
}

// Delete removes a key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE key = $1;`, key)
	return err
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	s.cancel()
	s.pool.Close()
	return nil
}
