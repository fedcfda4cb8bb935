// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"fmt"
)

// AuthError means the credentials were rejected. It is fatal: the
// session ends and the user has to log in again.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError is a transient failure that outlived its retry budget.
type NetworkError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// WriteOp names a user-initiated write.
type WriteOp string

const (
	WriteSend   WriteOp = "send"
	WriteEdit   WriteOp = "edit"
	WriteDelete WriteOp = "delete"
)

// WriteError is a send, edit, or delete that failed after its single
// automatic retry. The affected message is marked and can be retried
// by hand.
type WriteError struct {
	Op  WriteOp
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("%s failed: %v", e.Op, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// ProtocolViolation is a malformed or unexpected server response. The
// operation that triggered it has failed; the session is unaffected.
type ProtocolViolation struct {
	Op     string
	Detail string
	Err    error
}

func (e *ProtocolViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol violation in %s: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("protocol violation in %s: %s", e.Op, e.Detail)
}

func (e *ProtocolViolation) Unwrap() error { return e.Err }

// IsFatal reports whether err ends the session.
func IsFatal(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
