// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that wait (retry backoff, reconnect delays, presence
// keepalive) take a Clock instead of calling the time package. The
// process wires Real(); tests wire Fake() and drive time explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go client.FetchGuilds(ctx)   // blocks in a backoff wait
//	fake.WaitForTimers(1)         // the wait is registered
//	fake.Advance(time.Second)     // and now it fires
//
// Context deadlines are not driven by the fake clock. Request timeouts
// stay on real time; only explicit waits go through Clock.
package clock
