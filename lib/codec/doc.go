// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides hearth's CBOR encoding configuration.
//
// hearth speaks JSON to the homeserver and CBOR to itself: the
// persisted UI state file is CBOR so that it stays compact and
// byte-stable across runs. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2), so the same state always produces
// identical bytes and an unchanged file is never rewritten with a
// different encoding.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types persisted through this package use `cbor` struct tags.
// [Diagnose] renders a file in diagnostic notation for inspection
// (hearth --dump-state).
package codec
