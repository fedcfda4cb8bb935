// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mode implements the modal input state machine.
//
// Exactly one [Mode] is active. [Step] maps (mode, action) to the next
// mode and a list of [Effect] values without side effects; the event
// loop executes the effects. [Controller] holds the current mode and
// applies Step. Pairs that Step does not define leave the mode
// unchanged and produce no effects.
//
// The controller reads what it needs about the session through [Env]
// so that tests can drive it with a plain struct.
package mode
