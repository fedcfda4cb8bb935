// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the parts of the Matrix client-server API a
// chat client needs.
//
// [Client] is an unauthenticated client holding the homeserver URL and
// HTTP transport. It logs in with a password or wraps a stored access
// token, returning a [DirectSession] for authenticated calls: sending
// and redacting events with caller-chosen transaction IDs, paginating
// room history, walking a space's hierarchy, setting presence, and
// long-polling /sync.
//
// Sends are idempotent. Matrix deduplicates PUT requests per access
// token and transaction ID, and echoes the transaction ID back in the
// event's unsigned data on /sync, so a caller that chooses its own
// transaction IDs can both retry safely and recognize its own events.
//
// [SyncStream] holds a position in the /sync stream. Its first call
// anchors the position without delivering history; later calls
// long-poll for what arrived since.
//
// All API errors are returned as [*MatrixError] with the Matrix error
// code and HTTP status. [IsMatrixError] tests for a specific code.
// Request URLs are built by string concatenation with each path segment
// escaped, avoiding url.URL's re-encoding of Path.
package messaging
