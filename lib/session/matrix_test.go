// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/messaging"
)

// newTestMatrix returns an authenticated Matrix adapter whose requests
// go to handler.
func newTestMatrix(t *testing.T, handler http.HandlerFunc) *Matrix {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := messaging.NewClient(messaging.ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewMatrixFromSession(client.SessionFromToken("@me:hearth.local", "token-1"), nil)
}

func respond(writer http.ResponseWriter, body string) {
	writer.Header().Set("Content-Type", "application/json")
	io.WriteString(writer, body)
}

func TestMatrixGuilds(t *testing.T) {
	matrix := newTestMatrix(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/_matrix/client/v3/sync" {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		if got := request.URL.Query().Get("timeout"); got != "0" {
			t.Errorf("timeout = %q, want 0", got)
		}
		respond(writer, `{"next_batch":"s1","rooms":{"join":{
			"!space:hearth.local":{"state":{"events":[
				{"type":"m.room.create","state_key":"","content":{"type":"m.space"}},
				{"type":"m.room.name","state_key":"","content":{"name":"Gophers"}},
				{"type":"m.space.child","state_key":"!unordered:hearth.local","content":{"via":["hearth.local"]}},
				{"type":"m.space.child","state_key":"!second:hearth.local","content":{"via":["hearth.local"],"order":"b"}},
				{"type":"m.space.child","state_key":"!removed:hearth.local","content":{}},
				{"type":"m.space.child","state_key":"!first:hearth.local","content":{"via":["hearth.local"],"order":"a"}}
			]}},
			"!plain:hearth.local":{"state":{"events":[
				{"type":"m.room.create","state_key":"","content":{}},
				{"type":"m.room.name","state_key":"","content":{"name":"Not a guild"}}
			]}},
			"!another:hearth.local":{"state":{"events":[
				{"type":"m.room.create","state_key":"","content":{"type":"m.space"}},
				{"type":"m.room.name","state_key":"","content":{"name":"apiary"}}
			]}}
		}}}`)
	})

	guilds, err := matrix.Guilds(context.Background())
	if err != nil {
		t.Fatalf("Guilds: %v", err)
	}
	want := []chat.Guild{
		{ID: "!another:hearth.local", Name: "apiary"},
		{ID: "!space:hearth.local", Name: "Gophers", ChannelIDs: []chat.ChannelID{
			"!first:hearth.local", "!second:hearth.local", "!unordered:hearth.local",
		}},
	}
	if diff := cmp.Diff(want, guilds); diff != "" {
		t.Errorf("Guilds mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrixChannelsWalksHierarchy(t *testing.T) {
	var froms []string
	matrix := newTestMatrix(t, func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/hierarchy") {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		if got := request.URL.Query().Get("max_depth"); got != "1" {
			t.Errorf("max_depth = %q, want 1", got)
		}
		from := request.URL.Query().Get("from")
		froms = append(froms, from)
		if from == "" {
			respond(writer, `{"next_batch":"p2","rooms":[
				{"room_id":"!space:hearth.local","name":"Gophers","room_type":"m.space"},
				{"room_id":"!general:hearth.local","name":"general"},
				{"room_id":"!nested:hearth.local","name":"Nested","room_type":"m.space"}
			]}`)
			return
		}
		respond(writer, `{"rooms":[
			{"room_id":"!aliased:hearth.local","canonical_alias":"#release-planning:hearth.local"}
		]}`)
	})

	channels, err := matrix.Channels(context.Background(), "!space:hearth.local")
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	want := []chat.Channel{
		{ID: "!general:hearth.local", GuildID: "!space:hearth.local", Name: "general"},
		{ID: "!aliased:hearth.local", GuildID: "!space:hearth.local", Name: "#release-planning:hearth.local"},
	}
	if diff := cmp.Diff(want, channels); diff != "" {
		t.Errorf("Channels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"", "p2"}, froms); diff != "" {
		t.Errorf("pagination tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrixChannelsRepeatedToken(t *testing.T) {
	matrix := newTestMatrix(t, func(writer http.ResponseWriter, request *http.Request) {
		respond(writer, `{"next_batch":"loop","rooms":[]}`)
	})
	_, err := matrix.Channels(context.Background(), "!space:hearth.local")
	var violation *chat.ProtocolViolation
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want *chat.ProtocolViolation", err)
	}
}

func TestMatrixHistory(t *testing.T) {
	matrix := newTestMatrix(t, func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/messages") {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		query := request.URL.Query()
		if query.Get("dir") != "b" || query.Get("from") != "t-start" || query.Get("limit") != "5" {
			t.Errorf("unexpected query %v", query)
		}
		// Newest first, as the server returns it.
		respond(writer, `{"start":"t-start","end":"t-end","chunk":[
			{"event_id":"$r1","type":"m.room.redaction","sender":"@ana:hearth.local","origin_server_ts":5000,"redacts":"$1","content":{}},
			{"event_id":"$e2","type":"m.room.message","sender":"@ana:hearth.local","origin_server_ts":4000,
			 "content":{"msgtype":"m.text","body":"* fixed","m.new_content":{"msgtype":"m.text","body":"fixed"},
			 "m.relates_to":{"rel_type":"m.replace","event_id":"$2"}}},
			{"event_id":"$3","type":"m.room.message","sender":"@me:hearth.local","origin_server_ts":3000,
			 "content":{"msgtype":"m.text","body":"mine"},"unsigned":{"transaction_id":"T9"}},
			{"event_id":"$2","type":"m.room.message","sender":"@ana:hearth.local","origin_server_ts":2000,
			 "content":{"msgtype":"m.text","body":"fixd"}},
			{"event_id":"$1","type":"m.room.message","sender":"@bo:hearth.local","origin_server_ts":1000,
			 "content":{"msgtype":"m.text","body":"oops"}}
		]}`)
	})

	page, err := matrix.History(context.Background(), "!general:hearth.local", "t-start", 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	message := func(id, author, content string, millis int64, tag string) chat.Message {
		return chat.Message{
			ID:        chat.MessageID(id),
			LocalTag:  tag,
			ChannelID: "!general:hearth.local",
			Author:    author,
			Content:   content,
			CreatedAt: time.UnixMilli(millis).UTC(),
			Status:    chat.StatusConfirmed,
		}
	}
	want := chat.Page{
		ChannelID: "!general:hearth.local",
		Messages: []chat.Message{
			message("$3", "@me:hearth.local", "mine", 3000, "T9"),
			message("$2", "@ana:hearth.local", "fixd", 2000, ""),
			message("$1", "@bo:hearth.local", "oops", 1000, ""),
		},
		Edits:     []chat.Edit{{ID: "$2", Content: "fixed"}},
		Deletions: []chat.MessageID{"$1"},
		Before:    "t-start",
		Cursor:    "t-end",
	}
	if diff := cmp.Diff(want, page); diff != "" {
		t.Errorf("History mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrixHistoryReachedStart(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		reachedStart bool
		cursor       string
	}{
		{"no end token", `{"start":"t-old","chunk":[]}`, true, ""},
		{"filtered empty chunk", `{"start":"t-old","end":"t-older","chunk":[]}`, false, "t-older"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			matrix := newTestMatrix(t, func(writer http.ResponseWriter, request *http.Request) {
				respond(writer, test.body)
			})
			page, err := matrix.History(context.Background(), "!general:hearth.local", "t-old", 50)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if page.ReachedStart != test.reachedStart || page.Cursor != test.cursor {
				t.Errorf("page = %+v, want ReachedStart=%v cursor=%q", page, test.reachedStart, test.cursor)
			}
		})
	}
}

func TestMatrixPoll(t *testing.T) {
	var calls int
	matrix := newTestMatrix(t, func(writer http.ResponseWriter, request *http.Request) {
		calls++
		query := request.URL.Query()
		switch calls {
		case 1:
			if query.Get("timeout") != "0" || query.Get("since") != "" {
				t.Errorf("anchor query = %v", query)
			}
			respond(writer, `{"next_batch":"s1","rooms":{"join":{
				"!general:hearth.local":{"timeline":{"events":[
					{"event_id":"$old","type":"m.room.message","sender":"@ana:hearth.local","origin_server_ts":1,"content":{"body":"before anchor"}}
				]}}
			}}}`)
		default:
			if query.Get("since") != "s1" {
				t.Errorf("since = %q, want s1", query.Get("since"))
			}
			respond(writer, `{"next_batch":"s2","rooms":{"join":{
				"!random:hearth.local":{"timeline":{"events":[
					{"event_id":"$9","type":"m.room.redaction","redacts":"$8","content":{}}
				]}},
				"!general:hearth.local":{"timeline":{"events":[
					{"event_id":"$7","type":"m.room.message","sender":"@ana:hearth.local","origin_server_ts":7000,"content":{"msgtype":"m.text","body":"hi"}},
					{"event_id":"$x","type":"m.room.member","state_key":"@ana:hearth.local","content":{"membership":"join"}}
				]}}
			}}}`)
		}
	})

	events, err := matrix.Poll(context.Background())
	if err != nil || events != nil {
		t.Fatalf("anchor Poll = %v, %v; want no events", events, err)
	}
	events, err = matrix.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	want := []chat.PushEvent{
		chat.NewMessage{Message: chat.Message{
			ID:        "$7",
			ChannelID: "!general:hearth.local",
			Author:    "@ana:hearth.local",
			Content:   "hi",
			CreatedAt: time.UnixMilli(7000).UTC(),
			Status:    chat.StatusConfirmed,
		}},
		chat.MessageDeleted{Target: chat.MessageRef{ChannelID: "!random:hearth.local", ID: "$8"}},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("Poll mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrixPollLimitedTimeline(t *testing.T) {
	var calls int
	matrix := newTestMatrix(t, func(writer http.ResponseWriter, request *http.Request) {
		calls++
		if calls == 1 {
			respond(writer, `{"next_batch":"s1"}`)
			return
		}
		respond(writer, `{"next_batch":"s2","rooms":{"join":{
			"!general:hearth.local":{"timeline":{"limited":true,"prev_batch":"p1","events":[
				{"event_id":"$200","type":"m.room.message","sender":"@ana:hearth.local","origin_server_ts":200000,"content":{"msgtype":"m.text","body":"after the gap"}}
			]}}
		}}}`)
	})

	if _, err := matrix.Poll(context.Background()); err != nil {
		t.Fatalf("anchor Poll: %v", err)
	}
	events, err := matrix.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	want := []chat.PushEvent{
		chat.NewMessage{Message: chat.Message{
			ID:        "$200",
			ChannelID: "!general:hearth.local",
			Author:    "@ana:hearth.local",
			Content:   "after the gap",
			CreatedAt: time.UnixMilli(200000).UTC(),
			Status:    chat.StatusConfirmed,
		}},
		chat.HistoryGap{ChannelID: "!general:hearth.local"},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("Poll mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrixErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name:   "revoked token is fatal",
			status: http.StatusUnauthorized,
			body:   `{"errcode":"M_UNKNOWN_TOKEN","error":"Token revoked"}`,
			check:  chat.IsFatal,
		},
		{
			name:   "malformed body is a protocol violation",
			status: http.StatusOK,
			body:   `{"next_batch":`,
			check: func(err error) bool {
				var violation *chat.ProtocolViolation
				return errors.As(err, &violation)
			},
		},
		{
			name:   "server error keeps its status",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(err error) bool {
				status, ok := statusCode(err)
				return ok && status == http.StatusBadGateway && isTransientError(err)
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			matrix := newTestMatrix(t, func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(test.status)
				io.WriteString(writer, test.body)
			})
			_, err := matrix.Guilds(context.Background())
			if err == nil || !test.check(err) {
				t.Errorf("Guilds error = %v", err)
			}
		})
	}
}

func TestMatrixRequiresAuthentication(t *testing.T) {
	matrix := NewMatrix(nil, nil)
	if _, err := matrix.Guilds(context.Background()); !chat.IsFatal(err) {
		t.Errorf("Guilds before auth = %v, want AuthError", err)
	}
	if _, err := matrix.Authenticate(context.Background(), chat.Credentials{AccessToken: "t"}); !chat.IsFatal(err) {
		t.Errorf("Authenticate without client = %v, want AuthError", err)
	}
}

func TestMatrixAuthenticateWithToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer token-1" {
			writer.WriteHeader(http.StatusUnauthorized)
			respond(writer, `{"errcode":"M_UNKNOWN_TOKEN","error":"bad"}`)
			return
		}
		respond(writer, `{"user_id":"@me:hearth.local","device_id":"HEARTH1"}`)
	}))
	t.Cleanup(server.Close)
	client, err := messaging.NewClient(messaging.ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	t.Run("valid token", func(t *testing.T) {
		matrix := NewMatrix(client, nil)
		identity, err := matrix.Authenticate(context.Background(), chat.Credentials{AccessToken: "token-1"})
		if err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		if identity != (chat.Identity{UserID: "@me:hearth.local", DeviceID: "HEARTH1"}) {
			t.Errorf("identity = %+v", identity)
		}
		if matrix.Session() == nil {
			t.Error("session not bound")
		}
	})
	t.Run("token for another user", func(t *testing.T) {
		matrix := NewMatrix(client, nil)
		_, err := matrix.Authenticate(context.Background(), chat.Credentials{UserID: "@you:hearth.local", AccessToken: "token-1"})
		if !chat.IsFatal(err) {
			t.Errorf("err = %v, want AuthError", err)
		}
	})
	t.Run("revoked token", func(t *testing.T) {
		matrix := NewMatrix(client, nil)
		_, err := matrix.Authenticate(context.Background(), chat.Credentials{AccessToken: "stale"})
		if !chat.IsFatal(err) {
			t.Errorf("err = %v, want AuthError", err)
		}
	})
}
