// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"maps"
	"slices"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/lib/command"
	"github.com/hearth-chat/hearth/lib/mode"
)

// Status is the one-line message under the conversation. An error
// status stays until dismissed or replaced.
type Status struct {
	Text  string
	Error bool
}

// AppState is the session state owned by the loop.
type AppState struct {
	Identity       chat.Identity
	CurrentGuild   chat.GuildID
	CurrentChannel chat.ChannelID
	Settings       command.Settings
	Status         Status
	Connected      bool

	// Unread counts push messages from others that arrived in channels
	// other than the current one since they were last viewed.
	Unread map[chat.ChannelID]int

	// Scroll holds the view position of every visited channel.
	Scroll map[chat.ChannelID]chat.ScrollState

	// Actions counts key actions handled so far.
	Actions uint64

	// Quit is set by the quit command. Fatal is set by an auth failure.
	Quit  bool
	Fatal error
}

// Snapshot is an immutable copy of the visible state.
type Snapshot struct {
	Mode      mode.Mode
	Identity  chat.Identity
	Guild     chat.Guild
	Channel   chat.Channel
	Messages  []chat.Message
	Scroll    chat.ScrollState
	Settings  command.Settings
	Status    Status
	Connected bool
	Unread    map[chat.ChannelID]int

	// LoadingHistory is true while a page of the current channel is in
	// flight. ReachedStart is true when no older page exists.
	LoadingHistory bool
	ReachedStart   bool

	// Guilds is the cached guild list, for the sidebar.
	Guilds []chat.Guild

	// Actions is the number of key actions the snapshot reflects. A
	// front end that has sent more than this is ahead of the frame.
	Actions uint64
}

// Snapshot copies the visible state.
func (e *Engine) Snapshot() Snapshot {
	snapshot := Snapshot{
		Mode:      copyMode(e.controller.Mode()),
		Identity:  e.state.Identity,
		Settings:  e.state.Settings,
		Status:    e.state.Status,
		Connected: e.state.Connected,
		Unread:    maps.Clone(e.state.Unread),
		Actions:   e.state.Actions,
	}
	if guild, ok := e.directory.Guild(e.state.CurrentGuild); ok {
		snapshot.Guild = guild
		snapshot.Guild.ChannelIDs = slices.Clone(guild.ChannelIDs)
	} else {
		snapshot.Guild = chat.Guild{ID: e.state.CurrentGuild}
	}
	snapshot.Guilds, _ = e.directory.Guilds()

	channelID := e.state.CurrentChannel
	if channelID != "" {
		if channel, ok := e.directory.Channel(channelID); ok {
			snapshot.Channel = channel
		} else {
			snapshot.Channel = chat.Channel{ID: channelID, GuildID: e.state.CurrentGuild}
		}
		snapshot.Messages = e.store.Messages(channelID)
		snapshot.Scroll = e.scrollState(channelID)
		_, snapshot.LoadingHistory = e.history[channelID]
		_, snapshot.ReachedStart = e.store.Cursor(channelID)
	}
	return snapshot
}

// copyMode clones the slices a select mode carries.
func copyMode(current mode.Mode) mode.Mode {
	switch current := current.(type) {
	case mode.GuildSelect:
		current.Guilds = slices.Clone(current.Guilds)
		return current
	case mode.ChannelSelect:
		current.Channels = slices.Clone(current.Channels)
		return current
	}
	return current
}

// env adapts the engine to mode.Env.
type env struct {
	engine *Engine
}

func (v env) UserID() string                 { return v.engine.state.Identity.UserID }
func (v env) CurrentGuild() chat.GuildID     { return v.engine.state.CurrentGuild }
func (v env) CurrentChannel() chat.ChannelID { return v.engine.state.CurrentChannel }
func (v env) Guilds() ([]chat.Guild, bool)   { return v.engine.directory.Guilds() }

func (v env) Channels(guildID chat.GuildID) ([]chat.Channel, bool) {
	return v.engine.directory.Channels(guildID)
}

func (v env) MessageCount() int {
	return v.engine.store.Len(v.engine.state.CurrentChannel)
}

func (v env) Message(index int) (chat.Message, bool) {
	return v.engine.store.At(v.engine.state.CurrentChannel, index)
}

func (v env) SavedSelection() int {
	return v.engine.scrollState(v.engine.state.CurrentChannel).Selected
}
