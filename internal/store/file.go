// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"
	"time"

	"go.gridlink.dev/tools/internal/atomicio"
	"go.gridlink.dev/tools/internal/filelock"
)

// FileStore is a JSON file-backed implementation of the [Store] interface.
// The whole file is rewritten atomically on every change, so it suits small
// data sets such as per-user sessions of a single bot.
type FileStore struct {
	path   string
	ttl    time.Duration
	cancel context.CancelFunc
	lock   *filelock.Lock

	mu   sync.Mutex
	data map[string]fileEntry
}

type fileEntry struct {
	Value        []byte    `json:"value"`
	LastAccessed time.Time `json:"last_accessed"`
}

type fileContents struct {
	Data map[string]fileEntry `json:"data"`
}

// ErrLocked is returned by [NewFileStore] when another store has the file
// open.
var ErrLocked = errors.New("file store is in use")

// NewFileStore creates a new [FileStore] backed by the file at path, creating
// the file if it doesn't exist. The file is locked through path+".lock"
// until the store is closed.
func NewFileStore(ctx context.Context, path string, ttl time.Duration, opts ...Option) (_ *FileStore, err error) {
	if path == "" {
		return nil, errors.New("file store: empty path")
	}

	lock, err := filelock.Acquire(path+".lock", "pid="+strconv.Itoa(os.Getpid())+"\n")
	if errors.Is(err, filelock.ErrAlreadyLocked) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	defer func() {
		if err != nil {
			lock.Release()
		}
	}()

	s := &FileStore{
		path: path,
		ttl:  ttl,
		lock: lock,
		data: make(map[string]fileEntry),
	}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		var fc fileContents
		if err := json.Unmarshal(b, &fc); err != nil {
			return nil, fmt.Errorf("file store: parsing %s: %w", path, err)
		}
		if fc.Data != nil {
			s.data = fc.Data
		}
	}

	if err := s.purge(ctx); err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go sweep(ctx, sweepInterval(ttl), s.purge, newOptions(opts).logger)

	return s, nil
}

func (s *FileStore) purge(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed bool
	for k, e := range s.data {
		if time.Since(e.LastAccessed) > s.ttl {
			delete(s.data, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	b, err := json.Marshal(fileContents{Data: s.data})
	if err != nil {
		return err
	}
	return atomicio.WriteFile(s.path, b, 0o600)
}

// Get retrieves a value for a given key.
//
// Access times are refreshed in memory and persisted with the next write.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	if time.Since(e.LastAccessed) > s.ttl {
		delete(s.data, key)
		return nil, s.flushLocked()
	}
	e.LastAccessed = time.Now()
	s.data[key] = e
	return append([]byte(nil), e.Value...), nil
}

// Set stores a value for a given key.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = fileEntry{
		Value:        append([]byte(nil), value...),
		LastAccessed: time.Now(),
	}
	return s.flushLocked()
}

// Delete removes a key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flushLocked()
}

// Close stops background expiration, writes pending access times and
// releases the file.
func (s *FileStore) Close() error {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.flushLocked(), s.lock.Release())
}
