// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a slog record to the model for display in the
// status line.
type logRecordMsg struct {
	// Summary is the one-line "message (key=value, ...)" rendering.
	Summary string
	Level   slog.Level
}

// logRecordFadeMsg clears a log line once it has been visible for
// logRecordFadeDelay. Sequence ties the fade to the record it was
// scheduled for so a newer record is not cleared early.
type logRecordFadeMsg struct {
	Sequence int
}

// logRecordFadeDelay is how long a log record stays in the status line
// before the key help comes back.
const logRecordFadeDelay = 5 * time.Second

// logBuffer bounds records waiting for the model. Records beyond it
// are dropped; the status line can only show one at a time anyway.
const logBuffer = 32

// LogHandler is a slog.Handler that routes records into the status
// line. Records below the configured level are dropped. Handle never
// blocks: when the model falls behind, records are discarded.
//
// All handlers derived via WithAttrs/WithGroup share one queue, so
// the model listens once for the whole logger tree.
type LogHandler struct {
	level   slog.Level
	records chan logRecordMsg
	attrs   []slog.Attr
	groups  []string
}

// NewLogHandler creates a handler that delivers records at or above
// level to the model built with [WithLogHandler].
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{
		level:   level,
		records: make(chan logRecordMsg, logBuffer),
	}
}

// Enabled reports whether the handler is interested in records at the
// given level.
func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle formats the record and queues it for the model.
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	prefix := strings.Join(handler.groups, ".")
	if prefix != "" {
		prefix += "."
	}

	var attrParts []string
	for _, attr := range handler.attrs {
		attrParts = append(attrParts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrParts = append(attrParts, fmt.Sprintf("%s%s=%s", prefix, attr.Key, attr.Value))
		return true
	})

	summary := record.Message
	if len(attrParts) > 0 {
		summary += " (" + strings.Join(attrParts, ", ") + ")"
	}

	select {
	case handler.records <- logRecordMsg{Summary: summary, Level: record.Level}:
	default:
	}
	return nil
}

// WithAttrs returns a new handler with the given attributes appended.
func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		records: handler.records,
		attrs:   append(slices.Clone(handler.attrs), attrs...),
		groups:  slices.Clone(handler.groups),
	}
}

// WithGroup returns a new handler with the given group name appended.
func (handler *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	return &LogHandler{
		level:   handler.level,
		records: handler.records,
		attrs:   slices.Clone(handler.attrs),
		groups:  append(slices.Clone(handler.groups), name),
	}
}

// waitForLogRecord returns a tea.Cmd that blocks until a record is
// queued, then delivers it.
func waitForLogRecord(records <-chan logRecordMsg, closed <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case record := <-records:
			return record
		case <-closed:
			return nil
		}
	}
}
