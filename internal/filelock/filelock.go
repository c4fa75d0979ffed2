// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package filelock guards files that only one process may use at a time.
package filelock

import (
	"errors"
	"os"
	"syscall"
)

// ErrAlreadyLocked is returned by [Acquire] when another holder owns the lock.
var ErrAlreadyLocked = errors.New("already locked")

// Lock is a held lock.
type Lock struct{ f *os.File }

// Acquire takes an exclusive advisory lock on path without waiting, creating
// the file if needed. If owner is not empty, it replaces the file contents so
// that operators can see who holds the lock.
//
// Locks are tied to the open file, so a second Acquire of the same path fails
// even within one process.
func Acquire(path, owner string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrAlreadyLocked
		}
		return nil, err
	}
	l := &Lock{f: f}
	if owner != "" {
		if err := writeOwner(f, owner); err != nil {
			return nil, errors.Join(err, l.Release())
		}
	}
	return l, nil
}

func writeOwner(f *os.File, owner string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(owner), 0)
	return err
}

// Release unlocks and closes the lock file. The file itself stays.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err = errors.Join(err, l.f.Close())
	l.f = nil
	return err
}
