// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/lib/codec"
)

// CurrentVersion is the layout version written by [Write].
const CurrentVersion = 1

// ErrUnsupportedVersion is returned by [Read] for a file written by a
// newer layout than this binary understands.
var ErrUnsupportedVersion = errors.New("statefile: unsupported version")

// State is the persisted view position.
type State struct {
	Version int            `cbor:"version"`
	Guild   chat.GuildID   `cbor:"guild,omitempty"`
	Channel chat.ChannelID `cbor:"channel,omitempty"`

	// Scroll holds one entry per visited channel, sorted by channel.
	Scroll []chat.ScrollState `cbor:"scroll,omitempty"`

	SavedAt time.Time `cbor:"saved_at"`
}

// Write atomically writes state to path, creating the parent directory
// if needed. Version is always stamped with CurrentVersion.
//
// The file is created with mode 0600.
func Write(path string, state State) error {
	state.Version = CurrentVersion
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("statefile: encoding: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("statefile: creating directory: %w", err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("statefile: creating temporary file: %w", err)
	}

	// Write, sync, close, in that order. Any failure removes the
	// temporary file.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("statefile: writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("statefile: syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("statefile: closing temporary file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("statefile: renaming into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}

// Read reads and decodes a state file. When the file does not exist,
// the returned error wraps os.ErrNotExist (testable with errors.Is).
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}

	var state State
	if err := codec.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("statefile: parsing %s: %w", path, err)
	}
	if state.Version > CurrentVersion {
		return State{}, fmt.Errorf("%w: %s has version %d, this build reads up to %d",
			ErrUnsupportedVersion, path, state.Version, CurrentVersion)
	}
	return state, nil
}

// Load is Read with a missing file reported as (State{}, false, nil).
// Any other error (permission denied, corrupt file) is returned so the
// caller can distinguish "no state yet" from "state unreadable".
func Load(path string) (State, bool, error) {
	state, err := Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	return state, true, nil
}

// Clear removes the state file. Returns nil when it does not exist.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("statefile: removing: %w", err)
	}
	return nil
}
