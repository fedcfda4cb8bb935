// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session owns the network session: authentication, directory
// and history fetches, message writes, presence, and the push stream.
//
// [Client] layers the failure policy over a [Protocol]:
//
//   - Authenticate is never retried; any failure is a [chat.AuthError].
//   - Reads (guilds, channels, history) retry transient failures with
//     exponential backoff up to MaxAttempts, then return a
//     [chat.NetworkError].
//   - Writes (send, edit, delete) retry once, then return a
//     [chat.WriteError]. Each write carries an idempotency token (the
//     message's local tag, or a fresh transaction ID for edits and
//     deletes) so the retry cannot duplicate the side effect. Writes
//     are paced by a token bucket.
//   - Subscribe reconnects forever with capped backoff, reporting
//     ConnectionLost and ConnectionRestored transitions once each.
//
// Every network attempt runs under its own deadline. Transient means a
// transport failure, a timeout, HTTP 429, or HTTP 5xx; other 4xx
// responses are permanent and returned at once.
//
// [Matrix] implements Protocol over the Matrix client-server API using
// the messaging package: guilds are spaces, channels are a space's
// child rooms, and the push stream is /sync. A limited /sync timeline
// is reported as a [chat.HistoryGap] after the events it did carry.
package session
