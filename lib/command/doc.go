// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package command parses and dispatches the colon command line.
//
// A line is parsed into an [Action]: the first whitespace-delimited
// token names the command (case-insensitive, with aliases) and the rest
// is its argument. [Render] is the inverse of [Parse] for every action
// Parse produces, so history and tests can round-trip lines.
//
// [Dispatcher.Apply] resolves an action against the directory cache
// and the current settings without doing I/O. It returns an [Outcome]
// whose [Effect] tells the caller what to change; the caller owns the
// session and performs any network work.
package command
