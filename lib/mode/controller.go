// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mode

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/hearth-chat/hearth/lib/chat"
)

// Env is the session state the controller reads.
type Env interface {
	// UserID is the signed-in user; only their messages are editable.
	UserID() string

	// CurrentGuild and CurrentChannel are empty before a selection.
	CurrentGuild() chat.GuildID
	CurrentChannel() chat.ChannelID

	// Guilds and Channels return cached directory lists; loaded is
	// false when the list has not been fetched.
	Guilds() (guilds []chat.Guild, loaded bool)
	Channels(guildID chat.GuildID) (channels []chat.Channel, loaded bool)

	// MessageCount and Message expose the current channel's messages
	// in display order.
	MessageCount() int
	Message(index int) (chat.Message, bool)

	// SavedSelection is the Scroll selection last used in the current
	// channel, or -1.
	SavedSelection() int
}

// Controller owns the active mode.
type Controller struct {
	mode Mode
}

// NewController returns a controller in Insert mode.
func NewController() *Controller {
	return &Controller{mode: Insert{}}
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode { return c.mode }

// Set replaces the active mode. The event loop uses it when a command
// changes the mode (":join" opens ChannelSelect).
func (c *Controller) Set(mode Mode) { c.mode = mode }

// Handle applies action and returns the effects to execute.
func (c *Controller) Handle(action Action, env Env) []Effect {
	next, effects := Step(c.mode, action, env)
	c.mode = next
	return effects
}

// Refresh reloads directory lists held by a select mode after a fetch
// completes, and clamps a Scroll selection to the current channel.
func (c *Controller) Refresh(env Env) {
	switch current := c.mode.(type) {
	case GuildSelect:
		if guilds, loaded := env.Guilds(); loaded {
			current.Guilds = guilds
			current.Cursor = clamp(current.Cursor, len(guilds))
			c.mode = current
		}
	case ChannelSelect:
		if channels, loaded := env.Channels(current.GuildID); loaded {
			current.Channels = channels
			current.Cursor = clamp(current.Cursor, len(channels))
			c.mode = current
		}
	case Scroll:
		count := env.MessageCount()
		if count == 0 {
			c.mode = Normal{}
			return
		}
		current.Selected = clamp(current.Selected, count)
		c.mode = current
	}
}

// Select moves a Scroll selection to index. Other modes are unchanged.
func (c *Controller) Select(index int) {
	if current, ok := c.mode.(Scroll); ok && index >= 0 {
		current.Selected = index
		c.mode = current
	}
}

// Step is the transition function.
func Step(current Mode, action Action, env Env) (Mode, []Effect) {
	if action == EnterNormal {
		if _, ok := current.(Normal); ok {
			return current, []Effect{DismissStatus{}}
		}
		return Normal{}, nil
	}

	switch current := current.(type) {
	case Normal:
		return stepNormal(current, action, env)
	case Insert:
		return stepInsert(current, action)
	case Command:
		return stepCommand(current, action)
	case Scroll:
		return stepScroll(current, action, env)
	case GuildSelect:
		return stepGuildSelect(current, action, env)
	case ChannelSelect:
		return stepChannelSelect(current, action)
	}
	return current, nil
}

func stepNormal(current Normal, action Action, env Env) (Mode, []Effect) {
	switch action {
	case EnterInsert:
		return Insert{}, nil

	case EnterCommand:
		return Command{}, nil

	case EnterScroll:
		count := env.MessageCount()
		if count == 0 {
			return current, nil
		}
		selected := env.SavedSelection()
		if selected < 0 || selected >= count {
			selected = count - 1
		}
		return Scroll{Selected: selected}, nil

	case EnterGuildSelect:
		guilds, loaded := env.Guilds()
		cursor := max(0, slices.IndexFunc(guilds, func(g chat.Guild) bool { return g.ID == env.CurrentGuild() }))
		next := GuildSelect{Guilds: guilds, Cursor: cursor}
		if !loaded {
			return next, []Effect{OpenGuilds{}}
		}
		return next, nil

	case EnterChannelSelect:
		guildID := env.CurrentGuild()
		if guildID == "" {
			return current, nil
		}
		return openChannels(guildID, env)
	}
	return current, nil
}

// openChannels enters ChannelSelect for guildID with the cursor on the
// current channel.
func openChannels(guildID chat.GuildID, env Env) (Mode, []Effect) {
	channels, loaded := env.Channels(guildID)
	cursor := max(0, slices.IndexFunc(channels, func(ch chat.Channel) bool { return ch.ID == env.CurrentChannel() }))
	next := ChannelSelect{GuildID: guildID, Channels: channels, Cursor: cursor}
	if !loaded {
		return next, []Effect{OpenChannels{GuildID: guildID}}
	}
	return next, nil
}

// ChannelSelectFor is the ChannelSelect mode for guildID, with the
// effects needed to populate it.
func ChannelSelectFor(guildID chat.GuildID, env Env) (Mode, []Effect) {
	return openChannels(guildID, env)
}

func stepInsert(current Insert, action Action) (Mode, []Effect) {
	switch action := action.(type) {
	case Type:
		current.Draft += string(action.Rune)
		return current, nil
	case Tag:
		switch action {
		case Erase:
			current.Draft = dropLastRune(current.Draft)
			return current, nil
		case Send:
			content := strings.TrimSpace(current.Draft)
			if content == "" {
				return current, nil
			}
			if current.IsEditing() {
				return Insert{}, []Effect{SubmitEdit{Target: current.Editing, Content: content}}
			}
			return Insert{}, []Effect{SubmitMessage{Content: content}}
		}
	}
	return current, nil
}

func stepCommand(current Command, action Action) (Mode, []Effect) {
	switch action := action.(type) {
	case Type:
		current.Draft += string(action.Rune)
		return current, nil
	case Tag:
		switch action {
		case Erase:
			current.Draft = dropLastRune(current.Draft)
			return current, nil
		case ConfirmSelection:
			line := strings.TrimSpace(current.Draft)
			if line == "" {
				return Normal{}, nil
			}
			return Normal{}, []Effect{RunCommand{Line: line}}
		}
	}
	return current, nil
}

func stepScroll(current Scroll, action Action, env Env) (Mode, []Effect) {
	count := env.MessageCount()
	switch action {
	case ScrollUp:
		if current.Selected <= 0 {
			current.ConfirmDelete = false
			return current, []Effect{LoadOlder{}}
		}
		return Scroll{Selected: current.Selected - 1}, nil

	case ScrollDown:
		if current.Selected >= count-1 {
			return current, nil
		}
		return Scroll{Selected: current.Selected + 1}, nil

	case Edit:
		message, ok := env.Message(current.Selected)
		if !ok {
			return current, nil
		}
		target, ok := message.Ref()
		if !ok || message.Status != chat.StatusConfirmed || message.Author != env.UserID() {
			return current, nil
		}
		return Insert{Draft: message.Content, Editing: target}, nil

	case Delete:
		if current.ConfirmDelete {
			return deleteSelected(current, env)
		}
		if _, ok := deletable(current, env); !ok {
			return current, nil
		}
		current.ConfirmDelete = true
		return current, nil

	case ConfirmSelection:
		if !current.ConfirmDelete {
			return current, nil
		}
		return deleteSelected(current, env)

	case DeleteNoPrompt:
		return deleteSelected(current, env)

	case Retry:
		message, ok := env.Message(current.Selected)
		if !ok || (message.Status != chat.StatusFailed && message.Failure == "") {
			return current, nil
		}
		return current, []Effect{RetryMessage{Message: message}}
	}
	return current, nil
}

// deletable returns the selected message when it can be deleted: it
// has reached the server, or it failed and never will.
func deletable(current Scroll, env Env) (chat.Message, bool) {
	message, ok := env.Message(current.Selected)
	if !ok || message.Status == chat.StatusPending {
		return chat.Message{}, false
	}
	return message, true
}

// deleteSelected is the one delete path behind Delete (after its
// prompt) and DeleteNoPrompt.
func deleteSelected(current Scroll, env Env) (Mode, []Effect) {
	current.ConfirmDelete = false
	message, ok := deletable(current, env)
	if !ok {
		return current, nil
	}
	return current, []Effect{RequestDelete{Message: message}}
}

func stepGuildSelect(current GuildSelect, action Action, env Env) (Mode, []Effect) {
	switch action {
	case ScrollUp:
		current.Cursor = clamp(current.Cursor-1, len(current.Guilds))
		return current, nil
	case ScrollDown:
		current.Cursor = clamp(current.Cursor+1, len(current.Guilds))
		return current, nil
	case ConfirmSelection:
		if len(current.Guilds) == 0 {
			return current, nil
		}
		return openChannels(current.Guilds[current.Cursor].ID, env)
	}
	return current, nil
}

func stepChannelSelect(current ChannelSelect, action Action) (Mode, []Effect) {
	switch action {
	case ScrollUp:
		current.Cursor = clamp(current.Cursor-1, len(current.Channels))
		return current, nil
	case ScrollDown:
		current.Cursor = clamp(current.Cursor+1, len(current.Channels))
		return current, nil
	case ConfirmSelection:
		if len(current.Channels) == 0 {
			return current, nil
		}
		return Normal{}, []Effect{SelectChannel{Channel: current.Channels[current.Cursor]}}
	}
	return current, nil
}

// clamp limits index to [0, length).
func clamp(index, length int) int {
	if length <= 0 || index < 0 {
		return 0
	}
	return min(index, length-1)
}

func dropLastRune(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}
