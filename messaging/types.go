// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "encoding/json"

// Event types and relation types used by the chat client.
const (
	EventTypeMessage    = "m.room.message"
	EventTypeRedaction  = "m.room.redaction"
	EventTypeCreate     = "m.room.create"
	EventTypeName       = "m.room.name"
	EventTypeSpaceChild = "m.space.child"

	RelationReplace = "m.replace"

	RoomTypeSpace = "m.space"
)

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Type                     string          `json:"type"`
	Identifier               *UserIdentifier `json:"identifier,omitempty"`
	Password                 string          `json:"password"`
	DeviceID                 string          `json:"device_id,omitempty"`
	InitialDeviceDisplayName string          `json:"initial_device_display_name,omitempty"`
}

// UserIdentifier identifies the account for password login.
type UserIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// MessageContent is the content body of a Matrix message event (m.room.message).
// Edits set RelatesTo to an m.replace relation and carry the replacement
// in NewContent; Body then holds a fallback for clients without edit support.
type MessageContent struct {
	MsgType    string          `json:"msgtype"`
	Body       string          `json:"body"`
	NewContent *MessageContent `json:"m.new_content,omitempty"`
	RelatesTo  *RelatesTo      `json:"m.relates_to,omitempty"`
}

// RelatesTo expresses relationships between events.
type RelatesTo struct {
	RelType string `json:"rel_type"`
	EventID string `json:"event_id"`
}

// NewTextMessage creates a plain text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{
		MsgType: "m.text",
		Body:    body,
	}
}

// NewReplacement creates an edit of targetEventID whose new text is body.
func NewReplacement(targetEventID, body string) MessageContent {
	replacement := NewTextMessage(body)
	return MessageContent{
		MsgType:    "m.text",
		Body:       "* " + body,
		NewContent: &replacement,
		RelatesTo: &RelatesTo{
			RelType: RelationReplace,
			EventID: targetEventID,
		},
	}
}

// Event represents a Matrix event from the server.
type Event struct {
	EventID        string          `json:"event_id"`
	Type           string          `json:"type"`
	Sender         string          `json:"sender"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
	RoomID         string          `json:"room_id,omitempty"`
	StateKey       *string         `json:"state_key,omitempty"`
	Unsigned       *EventUnsigned  `json:"unsigned,omitempty"`

	// Redacts is the target of an m.room.redaction event. Room
	// versions 11 and later move it into content; see RedactionTarget.
	Redacts string `json:"redacts,omitempty"`
}

// EventUnsigned holds optional unsigned data attached to events.
type EventUnsigned struct {
	Age           int64  `json:"age,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	// RedactedBecause is present on events that have been redacted.
	RedactedBecause json.RawMessage `json:"redacted_because,omitempty"`
}

// TransactionID returns the sender's transaction ID, present only on
// events this session sent.
func (e Event) TransactionID() string {
	if e.Unsigned == nil {
		return ""
	}
	return e.Unsigned.TransactionID
}

// Redacted reports whether the server has already redacted the event.
func (e Event) Redacted() bool {
	return e.Unsigned != nil && len(e.Unsigned.RedactedBecause) > 0
}

// RedactionTarget returns the event ID a redaction removes, from the
// top-level field or, for newer room versions, from content.
func (e Event) RedactionTarget() string {
	if e.Redacts != "" {
		return e.Redacts
	}
	var content struct {
		Redacts string `json:"redacts"`
	}
	if json.Unmarshal(e.Content, &content) == nil {
		return content.Redacts
	}
	return ""
}

// RoomMessagesOptions controls pagination for room message fetching.
type RoomMessagesOptions struct {
	From      string // pagination token; empty means "from now"
	Direction string // "b" (backward/older) or "f" (forward/newer)
	Limit     int    // max events to return; 0 uses server default
	Filter    string // inline JSON RoomEventFilter
}

// RoomMessagesResponse is returned by RoomMessages. End is absent when
// there are no more events in the requested direction.
type RoomMessagesResponse struct {
	Start string  `json:"start"`
	End   string  `json:"end,omitempty"`
	Chunk []Event `json:"chunk"`
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since       string // next_batch token from previous sync; empty for initial sync
	Timeout     int    // long-poll timeout in milliseconds; 0 for immediate return
	SetTimeout  bool   // if true, send the timeout parameter (needed to distinguish "not set" from "0")
	Filter      string // filter ID or inline JSON filter
	SetPresence string // "offline" keeps the sync from marking the user online
}

// SyncResponse is the top-level response from /sync.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection contains per-room sync data grouped by membership state.
type RoomsSection struct {
	Join  map[string]JoinedRoom `json:"join,omitempty"`
	Leave map[string]LeftRoom   `json:"leave,omitempty"`
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// LeftRoom contains sync data for a room the user has left.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// TimelineSection contains timeline events from a sync response.
// Limited means events were skipped between the previous sync and
// these; PrevBatch paginates back into the gap.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection contains state events from a sync response.
type StateSection struct {
	Events []Event `json:"events"`
}

// SendEventResponse is returned by SendEvent and Redact.
type SendEventResponse struct {
	EventID string `json:"event_id"`
}

// RedactRequest is the body of a redaction.
type RedactRequest struct {
	Reason string `json:"reason,omitempty"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
}

// SetPresenceRequest is the JSON body for
// PUT /_matrix/client/v3/presence/{userId}/status.
type SetPresenceRequest struct {
	// Presence is the desired state: "online", "unavailable", or "offline".
	Presence string `json:"presence"`

	// StatusMsg is an optional human-readable status message.
	StatusMsg string `json:"status_msg,omitempty"`
}

// HierarchyOptions controls a space hierarchy walk.
type HierarchyOptions struct {
	From     string // next_batch from a previous page
	Limit    int    // rooms per page; 0 uses server default
	MaxDepth int    // 0 means unbounded; 1 lists direct children only
}

// HierarchyResponse is one page of GET /rooms/{roomId}/hierarchy.
type HierarchyResponse struct {
	Rooms     []HierarchyRoom `json:"rooms"`
	NextBatch string          `json:"next_batch,omitempty"`
}

// HierarchyRoom summarizes one room in a space hierarchy.
type HierarchyRoom struct {
	RoomID         string  `json:"room_id"`
	Name           string  `json:"name,omitempty"`
	CanonicalAlias string  `json:"canonical_alias,omitempty"`
	RoomType       string  `json:"room_type,omitempty"`
	ChildrenState  []Event `json:"children_state,omitempty"`
}
