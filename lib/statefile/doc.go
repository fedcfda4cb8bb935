// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statefile persists the client's view position between runs:
// the last guild and channel, and the scroll position of every channel
// visited.
//
// The file is CBOR (via lib/codec) and is written atomically (write
// to a temporary file, fsync, rename into place, fsync the parent
// directory) so a crash mid-save never leaves a truncated file behind.
// A missing file is not an error: [Load] reports it as "no state" and
// the client falls back to its configured default position.
package statefile
