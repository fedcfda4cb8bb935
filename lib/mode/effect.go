// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mode

import "github.com/hearth-chat/hearth/lib/chat"

// Effect is work the event loop performs after a transition. The set
// of implementations is closed; see the types below.
type Effect interface {
	effect()
}

// SubmitMessage sends Content to the current channel.
type SubmitMessage struct {
	Content string
}

// SubmitEdit replaces Target's content.
type SubmitEdit struct {
	Target  chat.MessageRef
	Content string
}

// RequestDelete deletes Message. A message that never reached the
// server is discarded locally.
type RequestDelete struct {
	Message chat.Message
}

// RetryMessage re-issues the failed write recorded for Message.
type RetryMessage struct {
	Message chat.Message
}

// RunCommand parses and dispatches a command line.
type RunCommand struct {
	Line string
}

// OpenGuilds asks for the guild list to be loaded.
type OpenGuilds struct{}

// OpenChannels asks for a guild's channel list to be loaded.
type OpenChannels struct {
	GuildID chat.GuildID
}

// SelectChannel makes Channel current.
type SelectChannel struct {
	Channel chat.Channel
}

// LoadOlder requests the next older history page of the current
// channel.
type LoadOlder struct{}

// DismissStatus clears the status line.
type DismissStatus struct{}

func (SubmitMessage) effect() {}
func (SubmitEdit) effect()    {}
func (RequestDelete) effect() {}
func (RetryMessage) effect()  {}
func (RunCommand) effect()    {}
func (OpenGuilds) effect()    {}
func (OpenChannels) effect()  {}
func (SelectChannel) effect() {}
func (LoadOlder) effect()     {}
func (DismissStatus) effect() {}
