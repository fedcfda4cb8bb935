// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat defines the vocabulary shared by every layer of the
// client: guilds, channels, and messages; the events that flow into
// the event loop; and the error taxonomy the loop uses to decide
// between retrying, degrading to a status line, and ending the
// session.
//
// Events are a sealed set. [Event] has an unexported marker method,
// so only this package can add variants, and the engine's type switch
// over them is the single place that must grow when one is added.
// Asynchronous work is expressed as a [Task]: a function that runs off
// the loop goroutine and returns exactly one Event describing its
// outcome.
package chat
