// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/lib/mode"
)

// Renderer receives a snapshot after every processed input. Render
// must not block; the loop does not wait for the frame.
type Renderer interface {
	Render(snapshot Snapshot)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Snapshot)

// Render calls f.
func (f RendererFunc) Render(snapshot Snapshot) { f(snapshot) }

// completionBuffer lets finished jobs hand off without waiting for the
// loop to come around.
const completionBuffer = 16

// Loop drives an Engine from its three input sources.
type Loop struct {
	engine   *Engine
	renderer Renderer
	logger   *slog.Logger

	completions chan chat.Event
	stopping    chan struct{}
	jobs        sync.WaitGroup
}

// NewLoop creates a loop for engine. A nil logger uses slog.Default().
func NewLoop(engine *Engine, renderer Renderer, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		engine:      engine,
		renderer:    renderer,
		logger:      logger,
		completions: make(chan chat.Event, completionBuffer),
		stopping:    make(chan struct{}),
	}
}

// Run processes inputs until the user quits, the session's credentials
// are rejected, the key source closes, or ctx is cancelled. It returns
// nil on quit, the *chat.AuthError on a credential failure, and
// ctx.Err() on cancellation. Every job goroutine has exited when Run
// returns.
//
// push may be nil. It is dropped from the select once closed.
func (l *Loop) Run(ctx context.Context, keys <-chan mode.Action, push <-chan chat.PushEvent) error {
	defer func() {
		l.engine.Close()
		close(l.stopping)
		l.jobs.Wait()
	}()

	l.engine.Start()
	l.step()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case action, ok := <-keys:
			if !ok {
				l.logger.Info("key input closed, ending session")
				return nil
			}
			l.engine.HandleAction(action)

		case event := <-l.completions:
			l.engine.HandleEvent(event)

		case event, ok := <-push:
			if !ok {
				push = nil
				continue
			}
			l.engine.HandleEvent(event)
		}

		if done, err := l.step(); done {
			return err
		}
	}
}

// step starts queued jobs, renders, and reports whether the session
// has ended.
func (l *Loop) step() (bool, error) {
	for _, job := range l.engine.Jobs() {
		l.jobs.Add(1)
		go func() {
			defer l.jobs.Done()
			event := job.Run()
			select {
			case l.completions <- event:
			case <-l.stopping:
			}
		}()
	}
	l.renderer.Render(l.engine.Snapshot())
	return l.engine.Done()
}
