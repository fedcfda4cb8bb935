// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is the terminal front end for the hearth session
// engine, built on bubbletea.
//
// The package owns no chat state. The engine loop renders by handing
// an [engine.Snapshot] to [Frames], which keeps only the latest one and
// never blocks; the bubbletea [Model] picks frames up on its own
// goroutine. Key presses travel the other way: the Model translates
// each key through the [KeyMap] for the current mode and forwards the
// resulting [mode.Action] values on the engine's key channel.
//
// [LogHandler] is a slog.Handler that surfaces warnings and errors in
// the status line. Like Frames it never blocks the goroutine that logs.
package chatui
