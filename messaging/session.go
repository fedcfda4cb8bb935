// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "context"

// Session is the interface for the Matrix operations the chat client
// performs. *DirectSession is the production implementation; tests
// substitute fakes.
type Session interface {
	// UserID returns the fully-qualified Matrix user ID
	// (e.g., "@alice:example.org").
	UserID() string

	// WhoAmI validates the session and returns the user ID.
	WhoAmI(ctx context.Context) (string, error)

	// SendMessage sends a message with the caller's transaction ID.
	// Returns the event ID.
	SendMessage(ctx context.Context, roomID, transactionID string, content MessageContent) (string, error)

	// Redact removes an event. Returns the redaction's event ID.
	Redact(ctx context.Context, roomID, eventID, transactionID, reason string) (string, error)

	// RoomMessages fetches paginated messages from a room.
	RoomMessages(ctx context.Context, roomID string, options RoomMessagesOptions) (*RoomMessagesResponse, error)

	// SpaceHierarchy fetches one page of a space's rooms.
	SpaceHierarchy(ctx context.Context, spaceID string, options HierarchyOptions) (*HierarchyResponse, error)

	// SetPresence updates the user's presence.
	SetPresence(ctx context.Context, request SetPresenceRequest) error

	// Sync performs an incremental sync with the homeserver.
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)

	// CloseIdleConnections drops pooled connections after a network
	// failure.
	CloseIdleConnections()
}

// Compile-time check: *DirectSession implements Session.
var _ Session = (*DirectSession)(nil)
