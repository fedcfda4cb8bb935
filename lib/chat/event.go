// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "context"

// Event is one input to the event loop besides keystrokes: a task
// completion or a push event.
type Event interface {
	event()
}

// Task is asynchronous work started by the loop. It runs on its own
// goroutine and reports its outcome as a single Event. A Task must
// return promptly once ctx is cancelled.
type Task func(ctx context.Context) Event

// GuildsLoaded completes a guild list fetch. Generation is the
// Directory Cache generation the fetch was started under.
type GuildsLoaded struct {
	Generation uint64
	Guilds     []Guild
	Err        error
}

// ChannelsLoaded completes a channel list fetch for one guild.
type ChannelsLoaded struct {
	Generation uint64
	GuildID    GuildID
	Channels   []Channel
	Err        error
}

// HistoryLoaded completes a history page fetch. Epoch identifies the
// fetch; a result whose epoch no longer matches the channel's
// outstanding fetch is stale and dropped.
type HistoryLoaded struct {
	ChannelID ChannelID
	Epoch     uint64
	Before    string
	Page      Page
	Err       error
}

// SendCompleted reports the outcome of a send.
type SendCompleted struct {
	ChannelID ChannelID
	LocalTag  string
	ID        MessageID
	Err       error
}

// EditCompleted reports the outcome of an edit.
type EditCompleted struct {
	Target  MessageRef
	Content string
	TxnID   string
	Err     error
}

// DeleteCompleted reports the outcome of a delete.
type DeleteCompleted struct {
	Target MessageRef
	TxnID  string
	Err    error
}

// PresenceSet reports the outcome of a presence update.
type PresenceSet struct {
	Presence Presence
	Err      error
}

func (GuildsLoaded) event()    {}
func (ChannelsLoaded) event()  {}
func (HistoryLoaded) event()   {}
func (SendCompleted) event()   {}
func (EditCompleted) event()   {}
func (DeleteCompleted) event() {}
func (PresenceSet) event()     {}

// PushEvent is an unsolicited notification from the server's
// subscription stream.
type PushEvent interface {
	Event
	push()
}

// NewMessage delivers a message posted to any joined channel,
// including the server's echo of our own sends.
type NewMessage struct {
	Message Message
}

// MessageEdited replaces the content of an existing message.
type MessageEdited struct {
	Target  MessageRef
	Content string
}

// MessageDeleted removes a message.
type MessageDeleted struct {
	Target MessageRef
}

// ConnectionLost is emitted once when the stream starts failing. Err
// is the failure; an *AuthError here is fatal and the stream ends.
type ConnectionLost struct {
	Err error
}

// ConnectionRestored is emitted once when the stream recovers.
type ConnectionRestored struct{}

// HistoryGap reports that the server skipped events in ChannelID that
// precede the ones it just delivered. The channel's newest page must be
// refetched to close the gap.
type HistoryGap struct {
	ChannelID ChannelID
}

func (NewMessage) event()         {}
func (MessageEdited) event()      {}
func (MessageDeleted) event()     {}
func (ConnectionLost) event()     {}
func (ConnectionRestored) event() {}
func (HistoryGap) event()         {}

func (NewMessage) push()         {}
func (MessageEdited) push()      {}
func (MessageDeleted) push()     {}
func (ConnectionLost) push()     {}
func (ConnectionRestored) push() {}
func (HistoryGap) push()         {}
