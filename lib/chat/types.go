// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
	"strings"
	"time"
)

// GuildID identifies a guild. For the Matrix protocol this is the
// space's room ID.
type GuildID string

// ChannelID identifies a channel. Matrix room IDs are globally unique,
// so a ChannelID alone locates a channel without its guild.
type ChannelID string

// MessageID is the server-assigned message identifier. The empty
// value means "not yet assigned".
type MessageID string

// Guild is a top-level community containing channels.
type Guild struct {
	ID         GuildID
	Name       string
	ChannelIDs []ChannelID
}

// Label returns the name, falling back to the ID for unnamed guilds.
func (g Guild) Label() string {
	if g.Name != "" {
		return g.Name
	}
	return string(g.ID)
}

// Channel is a named message stream within a guild.
type Channel struct {
	ID      ChannelID
	GuildID GuildID
	Name    string
}

// Label returns the name, falling back to the ID.
func (c Channel) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.ID)
}

// Status is the delivery state of a message.
type Status uint8

const (
	// StatusPending is a locally submitted message awaiting the
	// server's acknowledgment.
	StatusPending Status = iota
	// StatusConfirmed messages carry a server ID.
	StatusConfirmed
	// StatusFailed messages exhausted their automatic retry. They can
	// be retried manually with the same local tag.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Message is one entry in a channel's history.
//
// LocalTag is the client-generated idempotency token. It is set for
// messages this client sent and, when the server echoes our own events
// back, it is how the echo is matched to the optimistic entry. Messages
// from other clients have an empty LocalTag.
type Message struct {
	ID        MessageID
	LocalTag  string
	ChannelID ChannelID
	Author    string
	Content   string
	CreatedAt time.Time
	Edited    bool
	Status    Status

	// Failure describes the last failed write against this message (a
	// send for Failed messages, an edit or delete for Confirmed ones).
	// Empty when nothing has failed.
	Failure string
}

// Key is the ordering key: the server timestamp for confirmed
// messages, the local submission time otherwise.
func (m Message) Key() time.Time { return m.CreatedAt }

// Ref returns the message's location, or ok=false when it has no
// server ID yet.
func (m Message) Ref() (MessageRef, bool) {
	if m.ID == "" {
		return MessageRef{}, false
	}
	return MessageRef{ChannelID: m.ChannelID, ID: m.ID}, true
}

// MessageRef locates a confirmed message.
type MessageRef struct {
	ChannelID ChannelID
	ID        MessageID
}

// Identity is the authenticated user.
type Identity struct {
	UserID   string
	DeviceID string
}

// Credentials authenticate a session. Either AccessToken or
// Username+Password must be set; AccessToken wins when both are.
type Credentials struct {
	UserID      string
	AccessToken string
	Username    string
	Password    string
}

// Page is one page of channel history, newest first as delivered by
// the server.
type Page struct {
	ChannelID ChannelID
	Messages  []Message

	// Edits and Deletions are relations found in the page whose targets
	// may or may not be in this or an earlier page.
	Edits     []Edit
	Deletions []MessageID

	// Before is the cursor this page was requested from; empty for the
	// newest page.
	Before string

	// Cursor continues pagination toward older messages.
	Cursor string

	// ReachedStart is true when there is nothing older than this page.
	ReachedStart bool
}

// Edit replaces a message's content.
type Edit struct {
	ID      MessageID
	Content string
}

// ScrollState is a channel's view position. TopOffset counts the
// newest messages scrolled past (zero follows the tail); Selected is
// the last Scroll-mode selection, or -1.
type ScrollState struct {
	ChannelID ChannelID `cbor:"channel_id"`
	TopOffset int       `cbor:"top_offset"`
	Selected  int       `cbor:"selected"`
}

// Presence is the user's advertised availability.
type Presence string

const (
	PresenceOnline      Presence = "online"
	PresenceUnavailable Presence = "unavailable"
	PresenceOffline     Presence = "offline"
)

// ParsePresence accepts the three presence names case-insensitively.
func ParsePresence(raw string) (Presence, error) {
	switch Presence(strings.ToLower(strings.TrimSpace(raw))) {
	case PresenceOnline:
		return PresenceOnline, nil
	case PresenceUnavailable, "idle", "away":
		return PresenceUnavailable, nil
	case PresenceOffline:
		return PresenceOffline, nil
	}
	return "", fmt.Errorf("unknown presence %q (want online, unavailable, or offline)", raw)
}
