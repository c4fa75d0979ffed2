// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of the [Store] interface.
type SQLiteStore struct {
	db     *sql.DB
	ttl    time.Duration
	cancel context.CancelFunc
}

// NewSQLiteStore creates a new [SQLiteStore] and connects to the database.
func NewSQLiteStore(ctx context.Context, dsn string, ttl time.Duration, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			last_accessed INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, ttl: ttl}
	if err := s.purge(ctx); err != nil {
		db.Close()
		return nil, err
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go sweep(ctx, sweepInterval(ttl), s.purge, newOptions(opts).logger)

	return s, nil
}

// cutoff returns the oldest last_accessed value, in Unix milliseconds, that
// is still live.
func (s *SQLiteStore) cutoff() int64 { return time.Now().Add(-s.ttl).UnixMilli() }

func (s *SQLiteStore) purge(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE last_accessed < ?;`, s.cutoff())
	return err
}

// Get retrieves a value for a given key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var data []byte
	if err := tx.QueryRowContext(ctx, `
		SELECT value FROM kv WHERE key = ? AND last_accessed >= ?;
	`, key, s.cutoff()).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE kv SET last_accessed = ? WHERE key = ?;
	`, time.Now().UnixMilli(), key); err != nil {
		return nil, err
	}

	return data, tx.Commit()
}

// Set stores a value for a given key.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, last_accessed)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE
		SET value = excluded.value, last_accessed = excluded.last_accessed;
	`, key, value, time.Now().UnixMilli())
	return err
}

// Delete removes a key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?;`, key)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.cancel()
	return s.db.Close()
}
