// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"go.gridlink.dev/tools/internal/testutil"
)

func TestMemStore(t *testing.T) {
	s := NewMemStore(t.Context(), time.Minute)
	t.Cleanup(func() { s.Close() })
	testStore(t, s)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := NewFileStore(t.Context(), path, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	testStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(t.Context(), filepath.Join(t.TempDir(), "sessions.db"), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	testStore(t, s)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(t.Context(), "redis://"+mr.Addr(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	testStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx := t.Context()
	s, err := NewPostgresStore(ctx, databaseURL, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := s.pool.Exec(ctx, "DELETE FROM kv"); err != nil {
		t.Fatal(err)
	}

	testStore(t, s)
}

// testStore checks the behavior every backend must share.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	get := func(key string) []byte {
		t.Helper()
		v, err := s.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	set := func(key, value string) {
		t.Helper()
		if err := s.Set(ctx, key, []byte(value)); err != nil {
			t.Fatal(err)
		}
	}

	// Missing keys are (nil, nil).
	if v := get("missing"); v != nil {
		t.Fatalf("Get(missing) = %q, want nil", v)
	}

	set("42", `{"mode":1}`)
	set("43", `{"mode":2}`)
	testutil.AssertEqual(t, string(get("42")), `{"mode":1}`)
	testutil.AssertEqual(t, string(get("43")), `{"mode":2}`)

	// Overwrite.
	set("42", `{"mode":2}`)
	testutil.AssertEqual(t, string(get("42")), `{"mode":2}`)

	// Mutating a returned or stored slice must not change the store.
	v := get("42")
	v[0] = 'X'
	testutil.AssertEqual(t, string(get("42")), `{"mode":2}`)

	// Delete, including a missing key.
	if err := s.Delete(ctx, "42"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "42"); err != nil {
		t.Fatal(err)
	}
	if v := get("42"); v != nil {
		t.Fatalf("Get after Delete = %q, want nil", v)
	}
	testutil.AssertEqual(t, string(get("43")), `{"mode":2}`)
}

func TestExpiration(t *testing.T) {
	const ttl = 50 * time.Millisecond

	cases := map[string]func(t *testing.T) Store{
		"mem": func(t *testing.T) Store {
			return NewMemStore(t.Context(), ttl)
		},
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.Context(), filepath.Join(t.TempDir(), "db.json"), ttl)
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(t.Context(), filepath.Join(t.TempDir(), "db"), ttl)
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
	}

	for name, open := range cases {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { s.Close() })
			ctx := t.Context()

			if err := s.Set(ctx, "k", []byte("v")); err != nil {
				t.Fatal(err)
			}
			time.Sleep(2 * ttl)
			v, err := s.Get(ctx, "k")
			if err != nil {
				t.Fatal(err)
			}
			if v != nil {
				t.Fatalf("expired entry returned %q", v)
			}
		})
	}
}

func TestRedisExpiration(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(t.Context(), "redis://"+mr.Addr(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := t.Context()

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, mr.TTL(redisKeyPrefix+"k"), time.Minute)

	// Reads refresh the TTL.
	mr.FastForward(30 * time.Second)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, mr.TTL(redisKeyPrefix+"k"), time.Minute)

	mr.FastForward(2 * time.Minute)
	v, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("expired entry returned %q", v)
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := t.Context()

	s, err := NewFileStore(ctx, path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "7", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewFileStore(ctx, path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s2.Close() })
	v, err := s2.Get(ctx, "7")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(v), "hello")
}

func TestFileStoreLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := t.Context()

	s, err := NewFileStore(ctx, path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(ctx, path, time.Hour); !errors.Is(err, ErrLocked) {
		t.Fatalf("want ErrLocked, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewFileStore(ctx, path, time.Hour)
	if err != nil {
		t.Fatalf("reopening after Close: %v", err)
	}
	s2.Close()
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(t.Context(), path, time.Hour); err == nil {
		t.Fatal("want error for corrupt file")
	}
	// A failed open does not keep the file locked.
	if err := os.WriteFile(path, []byte(`{"data":{}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(t.Context(), path, time.Hour)
	if err != nil {
		t.Fatalf("file stayed locked after a failed open: %v", err)
	}
	s.Close()
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	cases := map[string]struct {
		spec     string
		wantType string
		wantErr  error
	}{
		"empty":   {spec: "", wantType: "*store.MemStore"},
		"mem":     {spec: "mem", wantType: "*store.MemStore"},
		"file":    {spec: "file:" + filepath.Join(dir, "s.json"), wantType: "*store.FileStore"},
		"sqlite":  {spec: "sqlite:" + filepath.Join(dir, "s.db"), wantType: "*store.SQLiteStore"},
		"redis":   {spec: "redis://" + mr.Addr(), wantType: "*store.RedisStore"},
		"unknown": {spec: "etcd://localhost", wantErr: ErrUnknownBackend},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := Open(t.Context(), tc.spec, 0)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { s.Close() })
			testutil.AssertEqual(t, fmt.Sprintf("%T", s), tc.wantType)
		})
	}
}

func TestRedact(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"mem":           {in: "mem", want: "mem"},
		"no password":   {in: "redis://localhost:6379/0", want: "redis://localhost:6379/0"},
		"user password": {in: "postgres://bot:hunter2@db/bot", want: "postgres://bot:xxxxx@db/bot"},
		"only password": {in: "redis://:hunter2@cache:6379", want: "redis://:xxxxx@cache:6379"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, Redact(tc.in), tc.want)
		})
	}
}

func TestMemStoreGetKeepsConcurrentSet(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := NewMemStore(ctx, time.Minute)
	t.Cleanup(func() { s.Close() })

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					s.Get(ctx, "k")
				}
			}
		}()
	}
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for i := range 5000 {
		want := strconv.Itoa(i)
		if err := s.Set(ctx, "k", []byte(want)); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Fatalf("Get after Set(%q) returned %q", want, got)
		}
	}
}

func TestSweepLogsPurgeErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var calls int
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweep(ctx, time.Millisecond, func(context.Context) error {
			calls++
			if calls == 2 {
				// Failures caused by shutdown are not reported.
				cancel()
			}
			return errors.New("disk full")
		}, logger)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not stop")
	}
	testutil.AssertEqual(t, strings.Count(buf.String(), "disk full"), 1)
	testutil.AssertEqual(t, strings.Contains(buf.String(), "level=WARN"), true)
}

func TestPurgeErrors(t *testing.T) {
	t.Parallel()

	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()

		s, err := NewSQLiteStore(t.Context(), filepath.Join(t.TempDir(), "db"), time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		s.cancel()
		if err := s.db.Close(); err != nil {
			t.Fatal(err)
		}
		if err := s.purge(t.Context()); err == nil {
			t.Fatal("purge on a closed database must fail")
		}
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()

		s, err := NewFileStore(t.Context(), filepath.Join(t.TempDir(), "db.json"), time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })

		s.mu.Lock()
		s.data["old"] = fileEntry{Value: []byte("v"), LastAccessed: time.Now().Add(-time.Hour)}
		s.path = filepath.Join(t.TempDir(), "missing", "db.json")
		s.mu.Unlock()

		if err := s.purge(t.Context()); err == nil {
			t.Fatal("purge must report the failed write")
		}
	})
}
