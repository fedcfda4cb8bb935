// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hearth-chat/hearth/lib/engine"
)

// Frames hands snapshots from the engine loop to the bubbletea model.
// Only the latest snapshot is kept: a frame the model has not picked
// up yet is replaced, never queued, so Render never blocks.
type Frames struct {
	mu      sync.Mutex
	latest  engine.Snapshot
	pending bool

	ready  chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewFrames creates an empty frame slot.
func NewFrames() *Frames {
	return &Frames{
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Render implements engine.Renderer.
func (frames *Frames) Render(snapshot engine.Snapshot) {
	frames.mu.Lock()
	frames.latest = snapshot
	frames.pending = true
	frames.mu.Unlock()

	select {
	case frames.ready <- struct{}{}:
	default:
	}
}

// Close releases a model waiting for the next frame.
func (frames *Frames) Close() {
	frames.once.Do(func() { close(frames.closed) })
}

// take returns the pending snapshot, if any.
func (frames *Frames) take() (engine.Snapshot, bool) {
	frames.mu.Lock()
	defer frames.mu.Unlock()
	if !frames.pending {
		return engine.Snapshot{}, false
	}
	frames.pending = false
	return frames.latest, true
}

// frameMsg delivers a snapshot to the model.
type frameMsg struct {
	snapshot engine.Snapshot
}

// waitForFrame returns a tea.Cmd that blocks until a frame is ready,
// then delivers it. Returns nil once the frames are closed.
func waitForFrame(frames *Frames) tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case <-frames.ready:
				if snapshot, ok := frames.take(); ok {
					return frameMsg{snapshot: snapshot}
				}
			case <-frames.closed:
				return nil
			}
		}
	}
}
