// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package session keeps the conversion mode each user has selected.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.gridlink.dev/tools/internal/store"
)

// Mode is the conversion a user has selected.
type Mode int

const (
	// ModeNone means no conversion is selected.
	ModeNone Mode = iota
	// ModeAwaitingLink means the user is expected to send a Google Maps link
	// to convert to MGRS.
	ModeAwaitingLink
	// ModeAwaitingMGRS means the user is expected to send an MGRS reference
	// to convert to a Google Maps link.
	ModeAwaitingMGRS
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeAwaitingLink:
		return "awaiting_link"
	case ModeAwaitingMGRS:
		return "awaiting_mgrs"
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// Store holds the mode of each user.
type Store interface {
	// Get returns the user's mode, or ModeNone if there is none.
	Get(ctx context.Context, userID int64) (Mode, error)
	// Set stores the user's mode.
	Set(ctx context.Context, userID int64, mode Mode) error
	// Clear resets the user's mode to ModeNone.
	Clear(ctx context.Context, userID int64) error
}

// New returns a [Store] that keeps sessions in kv.
func New(kv store.Store) Store { return &kvStore{kv: kv} }

type kvStore struct{ kv store.Store }

// record is the stored form of a session.
type record struct {
	Mode      Mode      `json:"mode"`
	UpdatedAt time.Time `json:"updated_at"`
}

func key(userID int64) string { return "session:" + strconv.FormatInt(userID, 10) }

func (s *kvStore) Get(ctx context.Context, userID int64) (Mode, error) {
	b, err := s.kv.Get(ctx, key(userID))
	if err != nil {
		return ModeNone, fmt.Errorf("loading session of %d: %w", userID, err)
	}
	if b == nil {
		return ModeNone, nil
	}
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return ModeNone, fmt.Errorf("decoding session of %d: %w", userID, err)
	}
	switch r.Mode {
	case ModeNone, ModeAwaitingLink, ModeAwaitingMGRS:
		return r.Mode, nil
	}
	return ModeNone, fmt.Errorf("session of %d has unknown mode %d", userID, int(r.Mode))
}

func (s *kvStore) Set(ctx context.Context, userID int64, mode Mode) error {
	if mode == ModeNone {
		return s.Clear(ctx, userID)
	}
	b, err := json.Marshal(record{Mode: mode, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, key(userID), b); err != nil {
		return fmt.Errorf("saving session of %d: %w", userID, err)
	}
	return nil
}

func (s *kvStore) Clear(ctx context.Context, userID int64) error {
	if err := s.kv.Delete(ctx, key(userID)); err != nil {
		return fmt.Errorf("clearing session of %d: %w", userID, err)
	}
	return nil
}
