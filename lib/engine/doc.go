// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine is the session engine: the single owner of
// [AppState] and the loop that feeds it.
//
// Three sources drive the engine: key actions from the terminal, task
// completions, and push events from the session's subscription.
// [Loop.Run] merges them with one select and hands each to the
// [Engine] in turn, so the message store, directory cache, and mode
// controller are never touched concurrently.
//
// Network work never runs on the loop. The engine queues a [Job] for
// each request; the loop runs jobs on their own goroutines and feeds
// their completion events back in. History fetches are tagged with a
// per-channel epoch: switching away from a channel cancels its fetch
// and bumps the epoch, so a result that arrives late is discarded.
//
// After every input the loop hands a [Snapshot] to the [Renderer]. A
// snapshot shares nothing mutable with the engine.
package engine
