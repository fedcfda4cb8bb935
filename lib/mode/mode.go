// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mode

import "github.com/hearth-chat/hearth/lib/chat"

// Mode is the active input mode. The set of implementations is closed:
// Insert, Normal, Command, Scroll, GuildSelect, ChannelSelect.
type Mode interface {
	// Name is the short label shown in the status bar.
	Name() string
	mode()
}

// Insert composes a message. When Editing has an ID the draft replaces
// that message's content on Send.
type Insert struct {
	Draft   string
	Editing chat.MessageRef
}

// Normal is the resting mode between other modes.
type Normal struct{}

// Command composes a colon command line.
type Command struct {
	Draft string
}

// Scroll selects a message in the current channel by index.
// ConfirmDelete is set while a delete prompt awaits confirmation.
type Scroll struct {
	Selected      int
	ConfirmDelete bool
}

// GuildSelect picks a guild from a list.
type GuildSelect struct {
	Guilds []chat.Guild
	Cursor int
}

// ChannelSelect picks a channel of GuildID.
type ChannelSelect struct {
	GuildID  chat.GuildID
	Channels []chat.Channel
	Cursor   int
}

func (Insert) Name() string        { return "INSERT" }
func (Normal) Name() string        { return "NORMAL" }
func (Command) Name() string       { return "COMMAND" }
func (Scroll) Name() string        { return "SCROLL" }
func (GuildSelect) Name() string   { return "GUILDS" }
func (ChannelSelect) Name() string { return "CHANNELS" }

func (Insert) mode()        {}
func (Normal) mode()        {}
func (Command) mode()       {}
func (Scroll) mode()        {}
func (GuildSelect) mode()   {}
func (ChannelSelect) mode() {}

// IsEditing reports whether the draft replaces an existing message.
func (m Insert) IsEditing() bool { return m.Editing.ID != "" }
