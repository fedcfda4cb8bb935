// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/messaging"
)

// maxHierarchyPages stops a space walk whose server keeps handing out
// next_batch tokens.
const maxHierarchyPages = 50

// historyFilter restricts /messages to the events a channel view uses.
var historyFilter = `{"types":["` + messaging.EventTypeMessage + `","` + messaging.EventTypeRedaction + `"]}`

// pushFilter selects live message traffic from every joined room.
var pushFilter = messaging.SyncFilter{
	TimelineTypes: []string{messaging.EventTypeMessage, messaging.EventTypeRedaction},
	TimelineLimit: 100,
	StateTypes:    []string{},
}

// guildFilter selects the state needed to list spaces and nothing else.
var guildFilter = messaging.SyncFilter{
	TimelineLimit: -1,
	StateTypes:    []string{messaging.EventTypeCreate, messaging.EventTypeName, messaging.EventTypeSpaceChild},
}

// Matrix implements Protocol over the Matrix client-server API.
//
// Guilds are the spaces the user has joined. A guild's channels are
// the non-space rooms directly beneath it in the space hierarchy. The
// push stream is /sync over all joined rooms, so events for channels
// outside any loaded guild still arrive.
type Matrix struct {
	client *messaging.Client
	logger *slog.Logger

	session messaging.Session
	stream  *messaging.SyncStream
}

// NewMatrix creates an unauthenticated adapter.
func NewMatrix(client *messaging.Client, logger *slog.Logger) *Matrix {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matrix{client: client, logger: logger}
}

// NewMatrixFromSession creates an adapter over an existing session,
// skipping Authenticate.
func NewMatrixFromSession(session messaging.Session, logger *slog.Logger) *Matrix {
	matrix := NewMatrix(nil, logger)
	matrix.bind(session)
	return matrix
}

func (m *Matrix) bind(session messaging.Session) {
	m.session = session
	m.stream = messaging.NewSyncStream(session, pushFilter)
}

// Session returns the authenticated session, or nil before Authenticate.
func (m *Matrix) Session() messaging.Session { return m.session }

// Authenticate logs in with a stored access token (validated with
// whoami) or with a username and password.
func (m *Matrix) Authenticate(ctx context.Context, credentials chat.Credentials) (chat.Identity, error) {
	if m.client == nil {
		return chat.Identity{}, &chat.AuthError{Err: errors.New("no homeserver client configured")}
	}
	switch {
	case credentials.AccessToken != "":
		direct := m.client.SessionFromToken(credentials.UserID, credentials.AccessToken)
		userID, err := direct.WhoAmI(ctx)
		if err != nil {
			return chat.Identity{}, &chat.AuthError{Err: err}
		}
		if credentials.UserID != "" && userID != credentials.UserID {
			return chat.Identity{}, &chat.AuthError{
				Err: fmt.Errorf("token belongs to %s, not %s", userID, credentials.UserID),
			}
		}
		m.bind(direct)
		return chat.Identity{UserID: userID, DeviceID: direct.DeviceID()}, nil

	case credentials.Username != "":
		direct, err := m.client.Login(ctx, credentials.Username, credentials.Password)
		if err != nil {
			return chat.Identity{}, &chat.AuthError{Err: err}
		}
		m.bind(direct)
		return chat.Identity{UserID: direct.UserID(), DeviceID: direct.DeviceID()}, nil
	}
	return chat.Identity{}, &chat.AuthError{Err: errors.New("no access token or username")}
}

// classify maps wire errors onto the chat error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if messaging.IsAuthFailure(err) {
		return &chat.AuthError{Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &chat.ProtocolViolation{Op: op, Detail: "malformed response", Err: err}
	}
	return err
}

// statusCode extracts the HTTP status from a Matrix error.
func statusCode(err error) (int, bool) {
	var matrixErr *messaging.MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.StatusCode, true
	}
	return 0, false
}

func (m *Matrix) ready(op string) error {
	if m.session == nil {
		return &chat.AuthError{Err: fmt.Errorf("%s before authentication", op)}
	}
	return nil
}

// Guilds lists joined spaces from an immediate /sync that carries only
// the create, name, and space-child state of each room.
func (m *Matrix) Guilds(ctx context.Context) ([]chat.Guild, error) {
	if err := m.ready("guilds"); err != nil {
		return nil, err
	}
	response, err := m.session.Sync(ctx, messaging.SyncOptions{
		SetTimeout:  true,
		Timeout:     0,
		Filter:      guildFilter.Inline(),
		SetPresence: "offline",
	})
	if err != nil {
		return nil, classify("guilds", err)
	}

	var guilds []chat.Guild
	for roomID, room := range response.Rooms.Join {
		guild, ok := m.guildFromState(roomID, room.State.Events)
		if ok {
			guilds = append(guilds, guild)
		}
	}
	slices.SortFunc(guilds, func(a, b chat.Guild) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Label()), strings.ToLower(b.Label())),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return guilds, nil
}

type spaceChild struct {
	id    string
	order string
}

func (m *Matrix) guildFromState(roomID string, events []messaging.Event) (chat.Guild, bool) {
	isSpace := false
	guild := chat.Guild{ID: chat.GuildID(roomID)}
	var children []spaceChild
	for _, event := range events {
		switch event.Type {
		case messaging.EventTypeCreate:
			var content struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(event.Content, &content); err == nil {
				isSpace = content.Type == messaging.RoomTypeSpace
			}
		case messaging.EventTypeName:
			var content struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(event.Content, &content); err == nil {
				guild.Name = content.Name
			}
		case messaging.EventTypeSpaceChild:
			if event.StateKey == nil || *event.StateKey == "" {
				continue
			}
			var content struct {
				Via   []string `json:"via"`
				Order string   `json:"order"`
			}
			if err := json.Unmarshal(event.Content, &content); err != nil {
				m.logger.Debug("skipping malformed space child", "space_id", roomID, "error", err)
				continue
			}
			// A child event without via is a removed child.
			if len(content.Via) > 0 {
				children = append(children, spaceChild{id: *event.StateKey, order: content.Order})
			}
		}
	}
	if !isSpace {
		return chat.Guild{}, false
	}
	// Ordered children sort before unordered ones.
	slices.SortFunc(children, func(a, b spaceChild) int {
		if (a.order == "") != (b.order == "") {
			if a.order == "" {
				return 1
			}
			return -1
		}
		return cmp.Or(cmp.Compare(a.order, b.order), cmp.Compare(a.id, b.id))
	})
	for _, child := range children {
		guild.ChannelIDs = append(guild.ChannelIDs, chat.ChannelID(child.id))
	}
	return guild, true
}

// Channels walks the direct children of a space. Sub-spaces are not
// channels and are skipped.
func (m *Matrix) Channels(ctx context.Context, guildID chat.GuildID) ([]chat.Channel, error) {
	if err := m.ready("channels"); err != nil {
		return nil, err
	}
	var channels []chat.Channel
	from := ""
	for range maxHierarchyPages {
		response, err := m.session.SpaceHierarchy(ctx, string(guildID), messaging.HierarchyOptions{
			From:     from,
			MaxDepth: 1,
		})
		if err != nil {
			return nil, classify("channels", err)
		}
		for _, room := range response.Rooms {
			if room.RoomID == string(guildID) || room.RoomType == messaging.RoomTypeSpace {
				continue
			}
			name := room.Name
			if name == "" {
				name = room.CanonicalAlias
			}
			channels = append(channels, chat.Channel{
				ID:      chat.ChannelID(room.RoomID),
				GuildID: guildID,
				Name:    name,
			})
		}
		if response.NextBatch == "" {
			return channels, nil
		}
		if response.NextBatch == from {
			return nil, &chat.ProtocolViolation{Op: "channels", Detail: "hierarchy pagination token repeated"}
		}
		from = response.NextBatch
	}
	return nil, &chat.ProtocolViolation{
		Op:     "channels",
		Detail: fmt.Sprintf("space hierarchy exceeded %d pages", maxHierarchyPages),
	}
}

// History fetches one page backward from before (or from the newest
// event when before is empty).
func (m *Matrix) History(ctx context.Context, channelID chat.ChannelID, before string, limit int) (chat.Page, error) {
	if err := m.ready("history"); err != nil {
		return chat.Page{}, err
	}
	response, err := m.session.RoomMessages(ctx, string(channelID), messaging.RoomMessagesOptions{
		From:      before,
		Direction: "b",
		Limit:     limit,
		Filter:    historyFilter,
	})
	if err != nil {
		return chat.Page{}, classify("history", err)
	}

	page := chat.Page{
		ChannelID:    channelID,
		Before:       before,
		Cursor:       response.End,
		ReachedStart: response.End == "",
	}
	// The chunk is newest first. Relations are collected oldest first so
	// the newest edit of a message is applied last.
	for i := len(response.Chunk) - 1; i >= 0; i-- {
		event := response.Chunk[i]
		switch converted := m.convert(channelID, event).(type) {
		case chat.NewMessage:
			page.Messages = append(page.Messages, converted.Message)
		case chat.MessageEdited:
			page.Edits = append(page.Edits, chat.Edit{ID: converted.Target.ID, Content: converted.Content})
		case chat.MessageDeleted:
			page.Deletions = append(page.Deletions, converted.Target.ID)
		}
	}
	slices.Reverse(page.Messages)
	return page, nil
}

// convert maps a timeline event to a push event, or nil for events the
// client does not show.
func (m *Matrix) convert(channelID chat.ChannelID, event messaging.Event) chat.PushEvent {
	switch event.Type {
	case messaging.EventTypeRedaction:
		target := event.RedactionTarget()
		if target == "" {
			m.logger.Debug("redaction without target", "channel_id", channelID, "event_id", event.EventID)
			return nil
		}
		return chat.MessageDeleted{Target: chat.MessageRef{ChannelID: channelID, ID: chat.MessageID(target)}}

	case messaging.EventTypeMessage:
		if event.Redacted() || event.EventID == "" {
			return nil
		}
		var content messaging.MessageContent
		if err := json.Unmarshal(event.Content, &content); err != nil {
			m.logger.Debug("skipping malformed message",
				"channel_id", channelID, "event_id", event.EventID, "error", err)
			return nil
		}
		if content.RelatesTo != nil && content.RelatesTo.RelType == messaging.RelationReplace {
			if content.NewContent == nil || content.RelatesTo.EventID == "" {
				return nil
			}
			return chat.MessageEdited{
				Target:  chat.MessageRef{ChannelID: channelID, ID: chat.MessageID(content.RelatesTo.EventID)},
				Content: content.NewContent.Body,
			}
		}
		return chat.NewMessage{Message: chat.Message{
			ID:        chat.MessageID(event.EventID),
			LocalTag:  event.TransactionID(),
			ChannelID: channelID,
			Author:    event.Sender,
			Content:   content.Body,
			CreatedAt: time.UnixMilli(event.OriginServerTS).UTC(),
			Status:    chat.StatusConfirmed,
		}}
	}
	return nil
}

// Send posts a text message with localTag as the transaction ID.
func (m *Matrix) Send(ctx context.Context, channelID chat.ChannelID, localTag, content string) (chat.MessageID, error) {
	if err := m.ready("send"); err != nil {
		return "", err
	}
	eventID, err := m.session.SendMessage(ctx, string(channelID), localTag, messaging.NewTextMessage(content))
	if err != nil {
		return "", classify("send", err)
	}
	return chat.MessageID(eventID), nil
}

// Edit sends an m.replace relation.
func (m *Matrix) Edit(ctx context.Context, target chat.MessageRef, content, txnID string) error {
	if err := m.ready("edit"); err != nil {
		return err
	}
	_, err := m.session.SendMessage(ctx, string(target.ChannelID), txnID,
		messaging.NewReplacement(string(target.ID), content))
	return classify("edit", err)
}

// Delete redacts the message.
func (m *Matrix) Delete(ctx context.Context, target chat.MessageRef, txnID string) error {
	if err := m.ready("delete"); err != nil {
		return err
	}
	_, err := m.session.Redact(ctx, string(target.ChannelID), string(target.ID), txnID, "")
	return classify("delete", err)
}

// SetPresence updates the user's presence.
func (m *Matrix) SetPresence(ctx context.Context, presence chat.Presence) error {
	if err := m.ready("presence"); err != nil {
		return err
	}
	err := m.session.SetPresence(ctx, messaging.SetPresenceRequest{Presence: string(presence)})
	return classify("presence", err)
}

// Poll long-polls /sync. The first call anchors the stream and
// returns no events.
func (m *Matrix) Poll(ctx context.Context) ([]chat.PushEvent, error) {
	if err := m.ready("poll"); err != nil {
		return nil, err
	}
	response, err := m.stream.Next(ctx)
	if err != nil {
		return nil, classify("sync", err)
	}
	if response == nil {
		return nil, nil
	}

	roomIDs := make([]string, 0, len(response.Rooms.Join))
	for roomID := range response.Rooms.Join {
		roomIDs = append(roomIDs, roomID)
	}
	slices.Sort(roomIDs)

	var events []chat.PushEvent
	for _, roomID := range roomIDs {
		room := response.Rooms.Join[roomID]
		for _, event := range room.Timeline.Events {
			if converted := m.convert(chat.ChannelID(roomID), event); converted != nil {
				events = append(events, converted)
			}
		}
		// A limited timeline means the server dropped events older
		// than the ones it returned.
		if room.Timeline.Limited {
			m.logger.Debug("sync timeline limited", "channel_id", roomID, "events", len(room.Timeline.Events))
			events = append(events, chat.HistoryGap{ChannelID: chat.ChannelID(roomID)})
		}
	}
	return events, nil
}

// ResetConnections drops pooled HTTP connections.
func (m *Matrix) ResetConnections() {
	if m.session != nil {
		m.session.CloseIdleConnections()
	}
}

// Compile-time check: *Matrix implements Protocol.
var _ Protocol = (*Matrix)(nil)
