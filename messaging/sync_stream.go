// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

// SyncFilter configures what a SyncStream receives from /sync.
// Presence, account data, and ephemeral events are always excluded.
type SyncFilter struct {
	// TimelineTypes restricts timeline events to these Matrix event types
	// (e.g., "m.room.message"). An empty slice means all timeline types.
	TimelineTypes []string `json:"timeline_types,omitempty"`

	// TimelineLimit caps the number of timeline events per room per
	// /sync response. Zero means no explicit limit (server default).
	// Negative sends a limit of 0, suppressing the timeline.
	TimelineLimit int `json:"timeline_limit,omitempty"`

	// StateTypes restricts state events to these types. Nil means all
	// state; an empty non-nil slice suppresses state.
	StateTypes []string `json:"state_types,omitempty"`

	// Rooms restricts the stream to these rooms. Empty means every
	// joined room.
	Rooms []string `json:"rooms,omitempty"`
}

// Inline renders the filter as the inline JSON accepted by /sync.
func (f SyncFilter) Inline() string {
	roomFilter := map[string]any{
		"ephemeral":    map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}
	if len(f.Rooms) > 0 {
		roomFilter["rooms"] = f.Rooms
	}

	timeline := map[string]any{}
	if len(f.TimelineTypes) > 0 {
		timeline["types"] = f.TimelineTypes
	}
	switch {
	case f.TimelineLimit > 0:
		timeline["limit"] = f.TimelineLimit
	case f.TimelineLimit < 0:
		timeline["limit"] = 0
	}
	if len(timeline) > 0 {
		roomFilter["timeline"] = timeline
	}

	if f.StateTypes != nil {
		roomFilter["state"] = map[string]any{"types": f.StateTypes}
	}

	top := map[string]any{
		"room":         roomFilter,
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}

	data, _ := json.Marshal(top)
	return string(data)
}

// longPollTimeout is the server-side long-poll hold time in
// milliseconds. The server holds the connection for up to this
// duration, returning immediately when new events arrive. 30 seconds
// is the hold time Matrix clients conventionally request.
const longPollTimeout = 30000

// LongPollTimeout is longPollTimeout as a count of milliseconds for
// callers sizing their request deadlines.
const LongPollTimeout = longPollTimeout

// SyncStream holds a position in the Matrix /sync stream.
//
// The first call to Next anchors the stream: it performs an immediate
// /sync (timeout=0) and discards the returned events, which are
// backlog the caller loads through history pagination instead. Every
// later call long-polls from the stored position, so the stream
// delivers only events arriving after the anchor.
//
// SyncStream is not safe for concurrent use. It does not retry: on an
// error the position is unchanged and the caller decides when to call
// Next again.
type SyncStream struct {
	session   Session
	filter    string
	nextBatch string
}

// NewSyncStream creates an unanchored stream.
func NewSyncStream(session Session, filter SyncFilter) *SyncStream {
	return &SyncStream{
		session: session,
		filter:  filter.Inline(),
	}
}

// Anchored reports whether the stream has a position.
func (s *SyncStream) Anchored() bool {
	return s.nextBatch != ""
}

// Next returns the next batch of events. An unanchored stream anchors
// and returns (nil, nil).
func (s *SyncStream) Next(ctx context.Context) (*SyncResponse, error) {
	if s.nextBatch == "" {
		response, err := s.session.Sync(ctx, SyncOptions{
			SetTimeout:  true,
			Timeout:     0,
			Filter:      s.filter,
			SetPresence: "offline",
		})
		if err != nil {
			return nil, fmt.Errorf("messaging: anchoring sync stream: %w", err)
		}
		if response.NextBatch == "" {
			return nil, fmt.Errorf("messaging: sync response missing next_batch")
		}
		s.nextBatch = response.NextBatch
		return nil, nil
	}

	response, err := s.session.Sync(ctx, SyncOptions{
		Since:       s.nextBatch,
		SetTimeout:  true,
		Timeout:     longPollTimeout,
		Filter:      s.filter,
		SetPresence: "offline",
	})
	if err != nil {
		return nil, err
	}
	if response.NextBatch != "" {
		s.nextBatch = response.NextBatch
	}
	return response, nil
}

// Position returns the current sync stream position token.
func (s *SyncStream) Position() string {
	return s.nextBatch
}
