// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hearth-chat/hearth/lib/engine"
	"github.com/hearth-chat/hearth/lib/mode"
)

// Model is the bubbletea model for a chat session.
//
// Keys are resolved against the mode of the latest frame. Once the
// model has sent an action the frame does not reflect yet, further
// keys wait in a queue until a frame catches up, so "i" followed
// quickly by "k" types a k instead of scrolling.
type Model struct {
	keys   KeyMap
	theme  Theme
	styles styles

	frames  *Frames
	logs    *LogHandler
	actions chan<- mode.Action
	done    <-chan struct{}

	snapshot engine.Snapshot
	hasFrame bool
	sent     uint64
	queued   []tea.KeyMsg

	width  int
	height int
	ready  bool

	logLine     *logRecordMsg
	logSequence int
}

// Option configures a Model.
type Option func(*Model)

// WithKeyMap replaces DefaultKeyMap.
func WithKeyMap(keys KeyMap) Option {
	return func(model *Model) { model.keys = keys }
}

// WithTheme replaces DefaultTheme.
func WithTheme(theme Theme) Option {
	return func(model *Model) { model.theme = theme }
}

// WithRenderer sets the lipgloss renderer, which decides the color
// profile styles are rendered for.
func WithRenderer(renderer *lipgloss.Renderer) Option {
	return func(model *Model) { model.styles.renderer = renderer }
}

// WithLogHandler shows records from handler in the status line.
func WithLogHandler(handler *LogHandler) Option {
	return func(model *Model) { model.logs = handler }
}

// WithDone stops the model from waiting on the action channel once
// done is closed (the engine loop has exited).
func WithDone(done <-chan struct{}) Option {
	return func(model *Model) { model.done = done }
}

// NewModel creates a model that shows frames and forwards key actions
// on actions.
func NewModel(frames *Frames, actions chan<- mode.Action, options ...Option) Model {
	model := Model{
		keys:    DefaultKeyMap,
		theme:   DefaultTheme,
		frames:  frames,
		actions: actions,
	}
	for _, option := range options {
		option(&model)
	}
	if model.styles.renderer == nil {
		model.styles.renderer = lipgloss.DefaultRenderer()
	}
	model.styles = newStyles(model.styles.renderer, model.theme)
	return model
}

// Init implements tea.Model. Starts listening for frames and log
// records.
func (model Model) Init() tea.Cmd {
	commands := []tea.Cmd{waitForFrame(model.frames)}
	if model.logs != nil {
		commands = append(commands, waitForLogRecord(model.logs.records, model.frames.closed))
	}
	return tea.Batch(commands...)
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		if key.Matches(message, model.keys.Quit) {
			return model, tea.Quit
		}
		if model.behind() {
			model.queued = append(model.queued, message)
			return model, nil
		}
		if !model.handleKey(message) {
			return model, tea.Quit
		}

	case frameMsg:
		model.snapshot = message.snapshot
		model.hasFrame = true
		if !model.replay() {
			return model, tea.Quit
		}
		return model, waitForFrame(model.frames)

	case logRecordMsg:
		model.logSequence++
		model.logLine = &message
		sequence := model.logSequence
		return model, tea.Batch(
			waitForLogRecord(model.logs.records, model.frames.closed),
			tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
				return logRecordFadeMsg{Sequence: sequence}
			}),
		)

	case logRecordFadeMsg:
		if message.Sequence == model.logSequence {
			model.logLine = nil
		}

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
	}
	return model, nil
}

// behind reports whether the latest frame predates actions already
// sent.
func (model *Model) behind() bool {
	return !model.hasFrame || model.snapshot.Actions < model.sent
}

// handleKey resolves one key and forwards its actions. Returns false
// when the engine has stopped.
func (model *Model) handleKey(message tea.KeyMsg) bool {
	for _, action := range model.keys.Resolve(model.snapshot.Mode, message) {
		if !model.send(action) {
			return false
		}
	}
	return true
}

// replay resolves queued keys for as long as the frame is current.
func (model *Model) replay() bool {
	for len(model.queued) > 0 && !model.behind() {
		next := model.queued[0]
		model.queued = model.queued[1:]
		if !model.handleKey(next) {
			return false
		}
	}
	return true
}

func (model *Model) send(action mode.Action) bool {
	select {
	case model.actions <- action:
		model.sent++
		return true
	case <-model.done:
		return false
	}
}
