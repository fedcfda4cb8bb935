// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// DirectSession is an authenticated Matrix session.
// It wraps a Client with an access token for making authenticated API calls.
type DirectSession struct {
	client      *Client
	accessToken string
	userID      string
	deviceID    string
}

// UserID returns the fully-qualified Matrix user ID (e.g., "@alice:example.org").
func (s *DirectSession) UserID() string {
	return s.userID
}

// DeviceID returns the device ID for this session. Empty for sessions
// created from a token until WhoAmI has run.
func (s *DirectSession) DeviceID() string {
	return s.deviceID
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a sync error to force
// the next request to establish a fresh TCP connection.
func (s *DirectSession) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

// WhoAmI validates the access token and returns the user ID. It also
// fills in the session's user and device IDs when they were unknown.
func (s *DirectSession) WhoAmI(ctx context.Context) (string, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", s.accessToken, nil)
	if err != nil {
		return "", fmt.Errorf("messaging: whoami failed: %w", err)
	}

	var response WhoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse whoami response: %w", err)
	}
	if s.userID == "" {
		s.userID = response.UserID
	}
	if s.deviceID == "" {
		s.deviceID = response.DeviceID
	}
	return response.UserID, nil
}

// SendMessage sends a message to a room with the caller's transaction
// ID. Returns the event ID of the sent message.
func (s *DirectSession) SendMessage(ctx context.Context, roomID, transactionID string, content MessageContent) (string, error) {
	return s.SendEvent(ctx, roomID, EventTypeMessage, transactionID, content)
}

// SendEvent sends an event of any type to a room.
// Uses Matrix's idempotent PUT: repeating a call with the same
// transaction ID returns the original event ID without sending twice.
func (s *DirectSession) SendEvent(ctx context.Context, roomID, eventType, transactionID string, content any) (string, error) {
	if transactionID == "" {
		return "", fmt.Errorf("messaging: send to %q requires a transaction ID", roomID)
	}
	path := "/_matrix/client/v3/rooms" + escapePath(roomID, "send", eventType, transactionID)

	body, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, content)
	if err != nil {
		return "", fmt.Errorf("messaging: send event to %q failed: %w", roomID, err)
	}

	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse send response: %w", err)
	}
	if response.EventID == "" {
		return "", fmt.Errorf("messaging: send response for %q missing event_id", roomID)
	}
	return response.EventID, nil
}

// Redact removes an event's content. Idempotent per transaction ID like
// SendEvent. Returns the event ID of the redaction.
func (s *DirectSession) Redact(ctx context.Context, roomID, eventID, transactionID, reason string) (string, error) {
	if transactionID == "" {
		return "", fmt.Errorf("messaging: redact in %q requires a transaction ID", roomID)
	}
	path := "/_matrix/client/v3/rooms" + escapePath(roomID, "redact", eventID, transactionID)

	body, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, RedactRequest{Reason: reason})
	if err != nil {
		return "", fmt.Errorf("messaging: redact %s in %q failed: %w", eventID, roomID, err)
	}

	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse redact response: %w", err)
	}
	return response.EventID, nil
}

// RoomMessages fetches messages from a room with pagination.
func (s *DirectSession) RoomMessages(ctx context.Context, roomID string, options RoomMessagesOptions) (*RoomMessagesResponse, error) {
	path := "/_matrix/client/v3/rooms" + escapePath(roomID, "messages")

	query := url.Values{}
	if options.From != "" {
		query.Set("from", options.From)
	}
	direction := options.Direction
	if direction == "" {
		direction = "b" // backward (newest first) by default
	}
	query.Set("dir", direction)
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: room messages for %q failed: %w", roomID, err)
	}

	var response RoomMessagesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse messages response: %w", err)
	}
	return &response, nil
}

// SpaceHierarchy fetches one page of the rooms in a space. The space
// itself is the first room of the first page.
func (s *DirectSession) SpaceHierarchy(ctx context.Context, spaceID string, options HierarchyOptions) (*HierarchyResponse, error) {
	path := "/_matrix/client/v1/rooms" + escapePath(spaceID, "hierarchy")

	query := url.Values{}
	if options.From != "" {
		query.Set("from", options.From)
	}
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}
	if options.MaxDepth > 0 {
		query.Set("max_depth", strconv.Itoa(options.MaxDepth))
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: hierarchy of %q failed: %w", spaceID, err)
	}

	var response HierarchyResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse hierarchy response: %w", err)
	}
	return &response, nil
}

// SetPresence updates the session user's presence.
func (s *DirectSession) SetPresence(ctx context.Context, request SetPresenceRequest) error {
	if s.userID == "" {
		return fmt.Errorf("messaging: set presence requires a known user ID")
	}
	path := "/_matrix/client/v3/presence" + escapePath(s.userID, "status")
	if _, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, request); err != nil {
		return fmt.Errorf("messaging: set presence %q failed: %w", request.Presence, err)
	}
	return nil
}

// Sync performs an incremental sync with the homeserver.
// For initial sync, leave options.Since empty.
// For long-polling, set options.Timeout to the desired wait in milliseconds.
func (s *DirectSession) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}
	if options.SetPresence != "" {
		query.Set("set_presence", options.SetPresence)
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: sync failed: %w", err)
	}

	var response SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse sync response: %w", err)
	}
	return &response, nil
}

// Logout invalidates the session's access token.
func (s *DirectSession) Logout(ctx context.Context) error {
	_, err := s.client.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/logout", s.accessToken, struct{}{})
	if err != nil {
		return fmt.Errorf("messaging: logout failed: %w", err)
	}
	return nil
}
