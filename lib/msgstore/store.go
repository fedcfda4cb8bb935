// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package msgstore keeps the per-channel message cache: an ordered
// slice of messages per channel, reconciled between optimistic local
// sends, server push delivery, and backward history pagination.
//
// Every channel's slice is sorted by [chat.Message.Key] at all times.
// Insert positions are found by binary search; entries with equal keys
// keep arrival order (new entries go after existing equal keys).
//
// A Store is not safe for concurrent use. The event loop owns it.
package msgstore

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/hearth-chat/hearth/lib/chat"
)

// DefaultRetention is the per-channel message bound used when none is
// configured.
const DefaultRetention = 500

// InsertResult says what InsertConfirmed did with a message.
type InsertResult uint8

const (
	// Inserted means the message was new to the store.
	Inserted InsertResult = iota
	// Duplicate means a message with the same server ID was already
	// stored; only its timestamp was refreshed.
	Duplicate
	// Reconciled means the message matched an unconfirmed local entry
	// by local tag, which is now Confirmed.
	Reconciled
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	case Reconciled:
		return "reconciled"
	default:
		return fmt.Sprintf("insert_result(%d)", uint8(r))
	}
}

// channelLog is one channel's ordered history and pagination state.
type channelLog struct {
	messages []chat.Message

	// loaded is set once any history page has been merged.
	loaded bool

	// cursor continues back-pagination. Empty with loaded set means
	// the next fetch starts from the newest page again (after eviction).
	cursor       string
	reachedStart bool
}

// Store is the message cache for all channels.
type Store struct {
	retention int
	logger    *slog.Logger
	channels  map[chat.ChannelID]*channelLog

	// byID maps server IDs to their channel so edits and deletions,
	// which carry only an ID, can find the right log.
	byID map[chat.MessageID]chat.ChannelID
}

// New creates an empty store that retains at most retention messages
// per channel when Evict runs. A non-positive retention uses
// DefaultRetention.
func New(retention int, logger *slog.Logger) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		retention: retention,
		logger:    logger,
		channels:  make(map[chat.ChannelID]*channelLog),
		byID:      make(map[chat.MessageID]chat.ChannelID),
	}
}

// Retention returns the per-channel message bound.
func (s *Store) Retention() int { return s.retention }

// SetRetention changes the bound. It takes effect at the next Evict.
func (s *Store) SetRetention(retention int) {
	if retention > 0 {
		s.retention = retention
	}
}

func (s *Store) log(channelID chat.ChannelID) *channelLog {
	entry, ok := s.channels[channelID]
	if !ok {
		entry = &channelLog{}
		s.channels[channelID] = entry
	}
	return entry
}

// upperBound returns the first index whose key is after key.
func upperBound(messages []chat.Message, key time.Time) int {
	return sort.Search(len(messages), func(i int) bool {
		return messages[i].Key().After(key)
	})
}

func (l *channelLog) insertOrdered(message chat.Message) int {
	position := upperBound(l.messages, message.Key())
	l.messages = slices.Insert(l.messages, position, message)
	return position
}

// settle moves the entry at index to a correct slot if its key no
// longer fits between its neighbors. An entry that still fits keeps
// its slot.
func (l *channelLog) settle(index int) {
	key := l.messages[index].Key()
	fitsBefore := index == 0 || !l.messages[index-1].Key().After(key)
	fitsAfter := index == len(l.messages)-1 || !key.After(l.messages[index+1].Key())
	if fitsBefore && fitsAfter {
		return
	}
	message := l.messages[index]
	l.messages = slices.Delete(l.messages, index, index+1)
	l.insertOrdered(message)
}

func (l *channelLog) indexByID(id chat.MessageID) int {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *channelLog) indexByTag(localTag string) int {
	if localTag == "" {
		return -1
	}
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].LocalTag == localTag {
			return i
		}
	}
	return -1
}

// InsertConfirmed stores a server-confirmed message (from push or a
// history page). A message whose ID is already stored only refreshes
// the stored copy's timestamp. A message whose local tag matches an
// unconfirmed entry confirms that entry in place, moving it only when
// the server timestamp would break ordering.
func (s *Store) InsertConfirmed(channelID chat.ChannelID, message chat.Message) InsertResult {
	if message.ID == "" {
		s.logger.Warn("dropping confirmed message without id",
			"channel_id", channelID, "local_tag", message.LocalTag)
		return Duplicate
	}
	message.ChannelID = channelID
	message.Status = chat.StatusConfirmed
	channelLog := s.log(channelID)

	if index := channelLog.indexByID(message.ID); index >= 0 {
		existing := &channelLog.messages[index]
		if !existing.CreatedAt.Equal(message.CreatedAt) {
			existing.CreatedAt = message.CreatedAt
			channelLog.settle(index)
		}
		return Duplicate
	}

	if index := channelLog.indexByTag(message.LocalTag); index >= 0 {
		existing := &channelLog.messages[index]
		if existing.Status != chat.StatusConfirmed {
			existing.ID = message.ID
			existing.Status = chat.StatusConfirmed
			existing.Failure = ""
			existing.CreatedAt = message.CreatedAt
			if message.Author != "" {
				existing.Author = message.Author
			}
			existing.Content = message.Content
			s.byID[message.ID] = channelID
			channelLog.settle(index)
			return Reconciled
		}
	}

	channelLog.insertOrdered(message)
	s.byID[message.ID] = channelID
	return Inserted
}

// InsertPending stores a locally submitted message. The message must
// carry a local tag that is not already in use in the channel.
func (s *Store) InsertPending(channelID chat.ChannelID, message chat.Message) error {
	if message.LocalTag == "" {
		return fmt.Errorf("msgstore: pending message has no local tag")
	}
	channelLog := s.log(channelID)
	if channelLog.indexByTag(message.LocalTag) >= 0 {
		return fmt.Errorf("msgstore: local tag %q already in channel %s", message.LocalTag, channelID)
	}
	message.ChannelID = channelID
	message.ID = ""
	message.Status = chat.StatusPending
	channelLog.insertOrdered(message)
	return nil
}

// Confirm assigns the server ID to the unconfirmed entry with the
// given local tag. The entry keeps its position. It reports whether an
// unconfirmed entry was found; a message already confirmed by its
// server echo is left alone.
func (s *Store) Confirm(channelID chat.ChannelID, localTag string, id chat.MessageID) bool {
	channelLog, ok := s.channels[channelID]
	if !ok {
		return false
	}
	index := channelLog.indexByTag(localTag)
	if index < 0 || channelLog.messages[index].Status == chat.StatusConfirmed {
		return false
	}
	if other := channelLog.indexByID(id); other >= 0 {
		// The server's copy arrived without our tag. It is
		// authoritative; drop the local entry.
		channelLog.messages = slices.Delete(channelLog.messages, index, index+1)
		return true
	}
	entry := &channelLog.messages[index]
	entry.ID = id
	entry.Status = chat.StatusConfirmed
	entry.Failure = ""
	s.byID[id] = channelID
	return true
}

// MarkFailed marks the unconfirmed entry with the given local tag as
// Failed. Confirmed entries are unaffected.
func (s *Store) MarkFailed(channelID chat.ChannelID, localTag, reason string) bool {
	channelLog, ok := s.channels[channelID]
	if !ok {
		return false
	}
	index := channelLog.indexByTag(localTag)
	if index < 0 || channelLog.messages[index].Status == chat.StatusConfirmed {
		return false
	}
	channelLog.messages[index].Status = chat.StatusFailed
	channelLog.messages[index].Failure = reason
	return true
}

// Discard removes a Failed entry that was never acknowledged.
func (s *Store) Discard(channelID chat.ChannelID, localTag string) bool {
	channelLog, ok := s.channels[channelID]
	if !ok {
		return false
	}
	index := channelLog.indexByTag(localTag)
	if index < 0 || channelLog.messages[index].Status != chat.StatusFailed {
		return false
	}
	channelLog.messages = slices.Delete(channelLog.messages, index, index+1)
	return true
}

// ApplyEdit replaces the content of a stored message. An unknown ID is
// a no-op: the edit may target a message older than anything loaded.
func (s *Store) ApplyEdit(id chat.MessageID, content string) bool {
	channelLog, index := s.locate(id)
	if index < 0 {
		s.logger.Debug("edit for unknown message", "message_id", id)
		return false
	}
	entry := &channelLog.messages[index]
	entry.Content = content
	entry.Edited = true
	entry.Failure = ""
	return true
}

// ApplyDelete removes a stored message. An unknown ID is a no-op.
func (s *Store) ApplyDelete(id chat.MessageID) bool {
	channelLog, index := s.locate(id)
	if index < 0 {
		s.logger.Debug("delete for unknown message", "message_id", id)
		return false
	}
	channelLog.messages = slices.Delete(channelLog.messages, index, index+1)
	delete(s.byID, id)
	return true
}

// NoteFailure records a failed edit or delete against a confirmed
// message so the renderer can mark it.
func (s *Store) NoteFailure(id chat.MessageID, reason string) bool {
	channelLog, index := s.locate(id)
	if index < 0 {
		return false
	}
	channelLog.messages[index].Failure = reason
	return true
}

func (s *Store) locate(id chat.MessageID) (*channelLog, int) {
	channelID, ok := s.byID[id]
	if !ok {
		return nil, -1
	}
	channelLog, ok := s.channels[channelID]
	if !ok {
		return nil, -1
	}
	return channelLog, channelLog.indexByID(id)
}

// PageIn merges a history page. Messages already stored are dropped by
// ID; the rest are placed by key. The page's edits and deletions are
// applied after the merge. Pagination state advances only when the
// page continues from the channel's current cursor, so a refetch of
// the newest page (gap fill) leaves back-pagination where it was.
// It returns the number of messages added.
func (s *Store) PageIn(channelID chat.ChannelID, page chat.Page) int {
	channelLog := s.log(channelID)
	added := 0
	for _, message := range page.Messages {
		if s.InsertConfirmed(channelID, message) == Inserted {
			added++
		}
	}
	for _, edit := range page.Edits {
		s.ApplyEdit(edit.ID, edit.Content)
	}
	for _, id := range page.Deletions {
		s.ApplyDelete(id)
	}

	if !channelLog.loaded || page.Before == channelLog.cursor {
		channelLog.cursor = page.Cursor
		channelLog.reachedStart = page.ReachedStart
	}
	channelLog.loaded = true
	return added
}

// Evict drops the oldest confirmed messages until the channel holds at
// most the retention bound. Unconfirmed entries are never evicted, so
// a channel with many of them may stay above the bound. When anything
// is evicted the back-pagination cursor is reset: the next older-page
// request starts from the newest page and dedupe fills back down to
// the evicted range. It returns the number of messages dropped.
func (s *Store) Evict(channelID chat.ChannelID) int {
	channelLog, ok := s.channels[channelID]
	if !ok {
		return 0
	}
	excess := len(channelLog.messages) - s.retention
	if excess <= 0 {
		return 0
	}
	kept := channelLog.messages[:0]
	dropped := 0
	for _, message := range channelLog.messages {
		if dropped < excess && message.Status == chat.StatusConfirmed {
			delete(s.byID, message.ID)
			dropped++
			continue
		}
		kept = append(kept, message)
	}
	clear(channelLog.messages[len(kept):])
	channelLog.messages = kept
	if dropped > 0 {
		channelLog.cursor = ""
		channelLog.reachedStart = false
		s.logger.Debug("evicted messages", "channel_id", channelID, "count", dropped)
	}
	return dropped
}

// Messages returns a copy of the channel's ordered messages.
func (s *Store) Messages(channelID chat.ChannelID) []chat.Message {
	channelLog, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	return slices.Clone(channelLog.messages)
}

// Len returns the number of stored messages in the channel.
func (s *Store) Len(channelID chat.ChannelID) int {
	if channelLog, ok := s.channels[channelID]; ok {
		return len(channelLog.messages)
	}
	return 0
}

// At returns the message at index in the channel's ordered slice.
func (s *Store) At(channelID chat.ChannelID, index int) (chat.Message, bool) {
	channelLog, ok := s.channels[channelID]
	if !ok || index < 0 || index >= len(channelLog.messages) {
		return chat.Message{}, false
	}
	return channelLog.messages[index], true
}

// FindByTag returns the channel's entry with the given local tag.
func (s *Store) FindByTag(channelID chat.ChannelID, localTag string) (chat.Message, bool) {
	channelLog, ok := s.channels[channelID]
	if !ok {
		return chat.Message{}, false
	}
	index := channelLog.indexByTag(localTag)
	if index < 0 {
		return chat.Message{}, false
	}
	return channelLog.messages[index], true
}

// FindByID returns the stored message with the given server ID.
func (s *Store) FindByID(id chat.MessageID) (chat.Message, bool) {
	channelLog, index := s.locate(id)
	if index < 0 {
		return chat.Message{}, false
	}
	return channelLog.messages[index], true
}

// Loaded reports whether any history page has been merged for the
// channel. Push deliveries alone do not count: a channel that has
// only seen live messages still needs its initial page.
func (s *Store) Loaded(channelID chat.ChannelID) bool {
	channelLog, ok := s.channels[channelID]
	return ok && channelLog.loaded
}

// Cursor returns the back-pagination cursor and whether the start of
// the channel has been reached.
func (s *Store) Cursor(channelID chat.ChannelID) (cursor string, reachedStart bool) {
	channelLog, ok := s.channels[channelID]
	if !ok {
		return "", false
	}
	return channelLog.cursor, channelLog.reachedStart
}
