// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which hearth build is running.
//
// Release builds inject [GitCommit], [GitDirty], [BuildTime], and
// [Version] with -ldflags -X. A plain "go install" injects nothing, so
// [Current] falls back to the VCS stamp the go command embeds in the
// binary. Test binaries carry neither and report "unknown".
package version
