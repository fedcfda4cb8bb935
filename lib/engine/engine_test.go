// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/lib/clock"
	"github.com/hearth-chat/hearth/lib/command"
	"github.com/hearth-chat/hearth/lib/mode"
)

const (
	self    = "@me:hearth.local"
	general = chat.ChannelID("!general:hearth.local")
	random  = chat.ChannelID("!random:hearth.local")
	gophers = chat.GuildID("!go:hearth.local")
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sendCall struct {
	channelID chat.ChannelID
	localTag  string
	content   string
}

type fakeClient struct {
	mu sync.Mutex

	guilds   []chat.Guild
	channels map[chat.GuildID][]chat.Channel
	pages    map[string]chat.Page

	sendResults []sendOutcome
	sends       []sendCall
	edits       []string
	deletes     []string
	deleteErr   error
	presence    []chat.Presence
	pageSize    int

	historyRequests []string
}

type sendOutcome struct {
	id  chat.MessageID
	err error
}

func (f *fakeClient) FetchGuilds(context.Context) ([]chat.Guild, error) {
	return f.guilds, nil
}

func (f *fakeClient) FetchChannels(_ context.Context, guildID chat.GuildID) ([]chat.Channel, error) {
	return f.channels[guildID], nil
}

func (f *fakeClient) FetchHistory(ctx context.Context, channelID chat.ChannelID, before string) (chat.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyRequests = append(f.historyRequests, string(channelID)+"|"+before)
	if err := ctx.Err(); err != nil {
		return chat.Page{}, err
	}
	page := f.pages[string(channelID)+"|"+before]
	page.ChannelID = channelID
	page.Before = before
	return page, nil
}

func (f *fakeClient) Send(_ context.Context, channelID chat.ChannelID, localTag, content string) (chat.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sendCall{channelID, localTag, content})
	if len(f.sendResults) == 0 {
		return "", errors.New("no scripted send result")
	}
	result := f.sendResults[0]
	f.sendResults = f.sendResults[1:]
	return result.id, result.err
}

func (f *fakeClient) Edit(_ context.Context, target chat.MessageRef, content, txnID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, fmt.Sprintf("%s=%s/%s", target.ID, content, txnID))
	return nil
}

func (f *fakeClient) Delete(_ context.Context, target chat.MessageRef, txnID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, string(target.ID)+"/"+txnID)
	return f.deleteErr
}

func (f *fakeClient) SetPresence(_ context.Context, presence chat.Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence = append(f.presence, presence)
	return nil
}

func (f *fakeClient) SetPageSize(size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = size
}

func message(id string, channelID chat.ChannelID, author string, seconds int) chat.Message {
	return chat.Message{
		ID:        chat.MessageID(id),
		ChannelID: channelID,
		Author:    author,
		Content:   "message " + id,
		CreatedAt: epoch.Add(time.Duration(seconds) * time.Second),
		Status:    chat.StatusConfirmed,
	}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		guilds: []chat.Guild{{ID: gophers, Name: "Gophers"}},
		channels: map[chat.GuildID][]chat.Channel{
			gophers: {
				{ID: general, GuildID: gophers, Name: "general"},
				{ID: random, GuildID: gophers, Name: "random"},
			},
		},
		pages: map[string]chat.Page{
			string(general) + "|": {
				Messages: []chat.Message{
					message("$2", general, "@ana:hearth.local", 2),
					message("$1", general, "@bo:hearth.local", 1),
				},
				Cursor: "g1",
			},
			string(general) + "|g1": {
				Messages:     []chat.Message{message("$0", general, "@bo:hearth.local", 0)},
				ReachedStart: true,
			},
			string(random) + "|": {
				Messages: []chat.Message{message("$r1", random, "@ana:hearth.local", 1)},
				Cursor:   "r1",
			},
		},
	}
}

type counter struct{ next int }

func (c *counter) tag() string {
	c.next++
	return fmt.Sprintf("T%d", c.next)
}

func newTestEngine(t *testing.T, client *fakeClient, config Config) (*Engine, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch.Add(10 * time.Second))
	config.Identity = chat.Identity{UserID: self}
	if config.Settings == (command.Settings{}) {
		config.Settings = command.Settings{PageSize: 50, Retention: 500, Timestamps: true, Presence: chat.PresenceOnline}
	}
	if config.NewTag == nil {
		config.NewTag = (&counter{}).tag
	}
	engine := New(client, config, fake, nil)
	t.Cleanup(engine.Close)
	return engine, fake
}

// settle runs queued jobs and feeds their completions back until
// nothing is queued.
func settle(engine *Engine) {
	for {
		jobs := engine.Jobs()
		if len(jobs) == 0 {
			return
		}
		for _, job := range jobs {
			engine.HandleEvent(job.Run())
		}
	}
}

func typeCommand(engine *Engine, line string) {
	engine.HandleAction(mode.EnterNormal)
	engine.HandleAction(mode.EnterCommand)
	for _, r := range line {
		engine.HandleAction(mode.Type{Rune: r})
	}
	engine.HandleAction(mode.ConfirmSelection)
}

func typeMessage(engine *Engine, text string) {
	engine.HandleAction(mode.EnterNormal)
	engine.HandleAction(mode.EnterInsert)
	for _, r := range text {
		engine.HandleAction(mode.Type{Rune: r})
	}
	engine.HandleAction(mode.Send)
}

func ids(messages []chat.Message) []string {
	var out []string
	for _, message := range messages {
		if message.ID == "" {
			out = append(out, "tag:"+message.LocalTag)
			continue
		}
		out = append(out, string(message.ID))
	}
	return out
}

func TestStartLoadsRestoredChannel(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)

	snapshot := engine.Snapshot()
	if snapshot.Channel.Name != "general" || snapshot.Guild.Name != "Gophers" {
		t.Errorf("position = %q/%q, want Gophers/general", snapshot.Guild.Name, snapshot.Channel.Name)
	}
	if diff := cmp.Diff([]string{"$1", "$2"}, ids(snapshot.Messages)); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if client.pageSize != 50 {
		t.Errorf("page size = %d, want 50", client.pageSize)
	}
}

func TestDefaultPositionResolvedAfterLoad(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{DefaultGuild: "gophers", DefaultChannel: "#random"})
	engine.Start()
	settle(engine)

	state := engine.State()
	if state.CurrentGuild != gophers || state.CurrentChannel != random {
		t.Errorf("position = %s/%s, want %s/%s", state.CurrentGuild, state.CurrentChannel, gophers, random)
	}
	if engine.store.Len(random) != 1 {
		t.Errorf("random holds %d messages, want its first page", engine.store.Len(random))
	}
}

func TestLateHistoryDiscardedAfterSwitch(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()

	var stale []Job
	for _, job := range engine.Jobs() {
		event := job.Run()
		if loaded, ok := event.(chat.HistoryLoaded); ok && loaded.ChannelID == general {
			// Hold the completion back as if the network were slow.
			stale = append(stale, Job{ctx: context.Background(), task: func(context.Context) chat.Event { return loaded }})
			continue
		}
		engine.HandleEvent(event)
	}
	settle(engine)
	if len(stale) != 1 {
		t.Fatalf("held %d history completions, want 1", len(stale))
	}

	typeCommand(engine, "channel random")
	settle(engine)
	if engine.State().CurrentChannel != random {
		t.Fatalf("current channel = %s, want random", engine.State().CurrentChannel)
	}

	engine.HandleEvent(stale[0].Run())
	if engine.store.Len(general) != 0 || engine.store.Loaded(general) {
		t.Errorf("late page for general was applied: %v", ids(engine.store.Messages(general)))
	}
	if engine.Snapshot().Status.Error {
		t.Errorf("late page produced an error status: %q", engine.Snapshot().Status.Text)
	}
}

func TestSwitchCancelsOutstandingFetch(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()

	var history Job
	var others []Job
	for _, job := range engine.Jobs() {
		if job.ctx != engine.base {
			history = job
			continue
		}
		others = append(others, job)
	}
	for _, job := range others {
		engine.HandleEvent(job.Run())
	}
	settle(engine)

	typeCommand(engine, "channel random")
	if history.ctx.Err() == nil {
		t.Fatal("history fetch for general not cancelled on switch")
	}
	engine.HandleEvent(history.Run())
	if engine.store.Loaded(general) {
		t.Error("cancelled fetch was applied")
	}
}

func TestDuplicatePushStoredOnce(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)

	push := chat.NewMessage{Message: message("7", general, "@ana:hearth.local", 5)}
	engine.HandleEvent(push)
	engine.HandleEvent(push)

	if diff := cmp.Diff([]string{"$1", "$2", "7"}, ids(engine.store.Messages(general))); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestSendConfirmedInPlace(t *testing.T) {
	client := newFakeClient()
	client.sendResults = []sendOutcome{{id: "42"}}
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)

	typeMessage(engine, "hello there")
	if diff := cmp.Diff([]string{"$1", "$2", "tag:T1"}, ids(engine.store.Messages(general))); diff != "" {
		t.Fatalf("pending mismatch (-want +got):\n%s", diff)
	}
	sendJobs := engine.Jobs()

	// Someone else's message lands after ours while the send is in flight.
	engine.HandleEvent(chat.NewMessage{Message: message("43", general, "@ana:hearth.local", 11)})

	for _, job := range sendJobs {
		engine.HandleEvent(job.Run())
	}
	messages := engine.store.Messages(general)
	if diff := cmp.Diff([]string{"$1", "$2", "42", "43"}, ids(messages)); diff != "" {
		t.Fatalf("confirmed mismatch (-want +got):\n%s", diff)
	}
	if messages[2].Status != chat.StatusConfirmed || messages[2].LocalTag != "T1" {
		t.Errorf("confirmed entry = %+v", messages[2])
	}

	// The server echo of our own message carries the transaction ID.
	echo := message("42", general, self, 10)
	echo.LocalTag = "T1"
	engine.HandleEvent(chat.NewMessage{Message: echo})
	if got := engine.store.Len(general); got != 4 {
		t.Errorf("store holds %d messages after echo, want 4", got)
	}
	if diff := cmp.Diff([]sendCall{{general, "T1", "hello there"}}, client.sends, cmp.AllowUnexported(sendCall{})); diff != "" {
		t.Errorf("sends mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedSendRetriedWithSameTag(t *testing.T) {
	client := newFakeClient()
	client.sendResults = []sendOutcome{
		{err: &chat.WriteError{Op: chat.WriteSend, Err: errors.New("network is unreachable")}},
		{id: "42"},
	}
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)

	typeMessage(engine, "hi")
	settle(engine)
	failed, ok := engine.store.FindByTag(general, "T1")
	if !ok || failed.Status != chat.StatusFailed {
		t.Fatalf("entry after failed send = %+v, want Failed", failed)
	}
	if !engine.Snapshot().Status.Error {
		t.Error("failed send did not set an error status")
	}

	engine.HandleAction(mode.EnterNormal)
	engine.HandleAction(mode.EnterScroll)
	engine.HandleAction(mode.Retry)
	retryJobs := engine.Jobs()
	if still, _ := engine.store.FindByTag(general, "T1"); still.Status != chat.StatusFailed {
		t.Errorf("entry during retry = %s, want still Failed", still.Status)
	}
	for _, job := range retryJobs {
		engine.HandleEvent(job.Run())
	}

	confirmed, _ := engine.store.FindByTag(general, "T1")
	if confirmed.Status != chat.StatusConfirmed || confirmed.ID != "42" {
		t.Errorf("entry after retry = %+v, want Confirmed 42", confirmed)
	}
	if len(client.sends) != 2 || client.sends[0].localTag != client.sends[1].localTag {
		t.Errorf("sends = %+v, want two with the same tag", client.sends)
	}
}

func TestDeleteFailedUnsentDiscardsLocally(t *testing.T) {
	client := newFakeClient()
	client.sendResults = []sendOutcome{{err: errors.New("offline")}}
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)
	typeMessage(engine, "never arrives")
	settle(engine)

	engine.HandleAction(mode.EnterNormal)
	engine.HandleAction(mode.EnterScroll)
	engine.HandleAction(mode.DeleteNoPrompt)
	settle(engine)
	if _, ok := engine.store.FindByTag(general, "T1"); ok {
		t.Error("failed message not discarded")
	}
	if len(client.deletes) != 0 {
		t.Errorf("unsent message deleted remotely: %v", client.deletes)
	}
}

func TestDeleteAndEditRoundTrip(t *testing.T) {
	client := newFakeClient()
	client.deleteErr = &chat.WriteError{Op: chat.WriteDelete, Err: errors.New("503")}
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)

	engine.HandleAction(mode.EnterNormal)
	engine.HandleAction(mode.EnterScroll)
	engine.HandleAction(mode.Delete)
	engine.HandleAction(mode.ConfirmSelection)
	settle(engine)
	failed, _ := engine.store.FindByID("$2")
	if failed.Failure == "" {
		t.Fatal("failed delete not marked on the message")
	}

	client.deleteErr = nil
	engine.HandleAction(mode.Retry)
	settle(engine)
	if _, ok := engine.store.FindByID("$2"); ok {
		t.Error("message still present after retried delete")
	}
	if len(client.deletes) != 2 || client.deletes[0] != client.deletes[1] {
		t.Errorf("deletes = %v, want one retried transaction", client.deletes)
	}

	// Push a message of our own and edit it.
	engine.HandleEvent(chat.NewMessage{Message: message("$9", general, self, 9)})
	engine.HandleAction(mode.ScrollDown)
	engine.HandleAction(mode.Edit)
	if insert, ok := engine.Mode().(mode.Insert); !ok || insert.Editing.ID != "$9" {
		t.Fatalf("mode after Edit = %#v", engine.Mode())
	}
	engine.HandleAction(mode.Erase)
	engine.HandleAction(mode.Type{Rune: '!'})
	engine.HandleAction(mode.Send)
	settle(engine)
	edited, _ := engine.store.FindByID("$9")
	if edited.Content != "message $!" || !edited.Edited {
		t.Errorf("edited message = %+v", edited)
	}
}

func TestUnreadCountsAndEviction(t *testing.T) {
	client := newFakeClient()
	settings := command.Settings{PageSize: 50, Retention: 2, Presence: chat.PresenceOnline}
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general, Settings: settings})
	engine.Start()
	settle(engine)

	for i := range 3 {
		engine.HandleEvent(chat.NewMessage{Message: message(fmt.Sprintf("$r%d", i+2), random, "@ana:hearth.local", 20+i)})
	}
	engine.HandleEvent(chat.NewMessage{Message: message("$mine", random, self, 30)})

	if got := engine.State().Unread[random]; got != 3 {
		t.Errorf("unread = %d, want 3", got)
	}
	if got := engine.store.Len(random); got != 2 {
		t.Errorf("inactive channel holds %d messages, want retention 2", got)
	}

	engine.HandleEvent(chat.NewMessage{Message: message("$3", general, "@ana:hearth.local", 3)})
	if got := engine.store.Len(general); got != 3 {
		t.Errorf("active channel holds %d messages, want 3 (no eviction while viewed)", got)
	}

	typeCommand(engine, "channel random")
	settle(engine)
	if _, ok := engine.State().Unread[random]; ok {
		t.Error("unread count not cleared on switch")
	}
	if got := engine.store.Len(general); got != 2 {
		t.Errorf("general holds %d messages after switching away, want 2", got)
	}
	if cursor, _ := engine.store.Cursor(general); cursor != "" {
		t.Errorf("general cursor = %q after eviction, want reset", cursor)
	}
}

func TestScrollLoadsOlderAndKeepsSelection(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)

	engine.HandleAction(mode.EnterNormal)
	engine.HandleAction(mode.EnterScroll)
	engine.HandleAction(mode.ScrollUp)
	engine.HandleAction(mode.ScrollUp)
	settle(engine)

	if diff := cmp.Diff([]string{"$0", "$1", "$2"}, ids(engine.store.Messages(general))); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	selected := engine.Mode().(mode.Scroll).Selected
	if got, _ := engine.store.At(general, selected); got.ID != "$1" {
		t.Errorf("selection moved to %s, want $1", got.ID)
	}
	if scroll := engine.State().Scroll[general]; scroll.Selected != selected || scroll.TopOffset != 1 {
		t.Errorf("scroll state = %+v", scroll)
	}

	engine.HandleAction(mode.ScrollUp)
	engine.HandleAction(mode.ScrollUp)
	if len(engine.Jobs()) != 0 {
		t.Error("older page requested past the start of the channel")
	}
	if engine.Snapshot().Status.Text != "beginning of channel" {
		t.Errorf("status = %q", engine.Snapshot().Status.Text)
	}
}

func TestGapFillOnReconnect(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)

	engine.HandleEvent(chat.ConnectionLost{Err: &chat.NetworkError{Op: "subscribe", Attempts: 1, Err: errors.New("EOF")}})
	if engine.Snapshot().Connected {
		t.Fatal("still connected after ConnectionLost")
	}

	// A message posted while disconnected shows up in the newest page.
	page := client.pages[string(general)+"|"]
	page.Messages = append([]chat.Message{message("$5", general, "@ana:hearth.local", 5)}, page.Messages...)
	page.Cursor = "g0"
	client.pages[string(general)+"|"] = page

	engine.HandleEvent(chat.ConnectionRestored{})
	settle(engine)
	if !engine.Snapshot().Connected {
		t.Error("not connected after ConnectionRestored")
	}
	if diff := cmp.Diff([]string{"$1", "$2", "$5"}, ids(engine.store.Messages(general))); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if cursor, _ := engine.store.Cursor(general); cursor != "g1" {
		t.Errorf("cursor = %q, want g1 (gap fill keeps back-pagination)", cursor)
	}
}

func TestHistoryGapRefetchesNewestPage(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)

	// The server skipped $100 and delivered only $200.
	page := client.pages[string(general)+"|"]
	page.Messages = append([]chat.Message{
		message("$200", general, "@ana:hearth.local", 200),
		message("$100", general, "@bo:hearth.local", 100),
	}, page.Messages...)
	client.pages[string(general)+"|"] = page

	engine.HandleEvent(chat.NewMessage{Message: message("$200", general, "@ana:hearth.local", 200)})
	engine.HandleEvent(chat.HistoryGap{ChannelID: general})
	settle(engine)

	if diff := cmp.Diff([]string{"$1", "$2", "$100", "$200"}, ids(engine.store.Messages(general))); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryGapInBackgroundChannel(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)
	typeCommand(engine, "channel random")
	settle(engine)

	requests := len(client.historyRequests)
	engine.HandleEvent(chat.HistoryGap{ChannelID: general})
	settle(engine)
	if len(client.historyRequests) != requests {
		t.Fatalf("background gap fetched immediately: %v", client.historyRequests[requests:])
	}

	typeCommand(engine, "channel general")
	settle(engine)
	if diff := cmp.Diff([]string{string(general) + "|"}, client.historyRequests[requests:]); diff != "" {
		t.Errorf("history requests mismatch (-want +got):\n%s", diff)
	}

	// The refetch clears the mark; returning again reuses the cache.
	typeCommand(engine, "channel random")
	typeCommand(engine, "channel general")
	settle(engine)
	if len(client.historyRequests) != requests+1 {
		t.Errorf("history requests = %v, want no further fetch", client.historyRequests[requests:])
	}
}

func TestRefreshReloadsDirectory(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)

	// A space joined from another client after the first fetch.
	rust := chat.GuildID("!rust:hearth.local")
	client.guilds = append(client.guilds, chat.Guild{ID: rust, Name: "Rustaceans"})

	typeCommand(engine, "join rust")
	if status := engine.Snapshot().Status; !status.Error {
		t.Fatalf("status = %+v, want error before refresh", status)
	}

	typeCommand(engine, "refresh")
	settle(engine)

	guilds, loaded := engine.directory.Guilds()
	if !loaded || len(guilds) != 2 {
		t.Fatalf("guilds = %v (loaded %v), want the new space", guilds, loaded)
	}
	if _, loaded := engine.directory.Channels(gophers); !loaded {
		t.Error("current guild's channels not reloaded")
	}
	if state := engine.State(); state.CurrentGuild != gophers || state.CurrentChannel != general {
		t.Errorf("position = %s/%s, want unchanged", state.CurrentGuild, state.CurrentChannel)
	}

	typeCommand(engine, "join rust")
	if state := engine.State(); state.CurrentGuild != rust {
		t.Errorf("current guild = %s, want %s", state.CurrentGuild, rust)
	}
}

func TestAuthFailureEndsSession(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{})
	authErr := &chat.AuthError{Err: errors.New("M_UNKNOWN_TOKEN")}
	engine.HandleEvent(chat.ConnectionLost{Err: authErr})

	done, err := engine.Done()
	if !done || !errors.Is(err, authErr) {
		t.Errorf("Done = %v, %v; want fatal auth error", done, err)
	}
}

func TestSettingsCommands(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{LastGuild: gophers, LastChannel: general})
	engine.Start()
	settle(engine)

	typeCommand(engine, "set page_size 20")
	typeCommand(engine, "set retention 100")
	typeCommand(engine, "set presence away")
	settle(engine)

	if client.pageSize != 20 {
		t.Errorf("page size = %d, want 20", client.pageSize)
	}
	if engine.store.Retention() != 100 {
		t.Errorf("retention = %d, want 100", engine.store.Retention())
	}
	if diff := cmp.Diff([]chat.Presence{chat.PresenceUnavailable}, client.presence); diff != "" {
		t.Errorf("presence mismatch (-want +got):\n%s", diff)
	}
	if engine.State().Settings.Presence != chat.PresenceUnavailable {
		t.Errorf("settings = %+v", engine.State().Settings)
	}

	typeCommand(engine, "set colour blue")
	if status := engine.Snapshot().Status; !status.Error {
		t.Errorf("status = %+v, want error for unknown setting", status)
	}
}

func TestJoinOpensChannelSelect(t *testing.T) {
	client := newFakeClient()
	engine, _ := newTestEngine(t, client, Config{})
	engine.Start()
	settle(engine)

	typeCommand(engine, "join goph")
	settle(engine)
	selectMode, ok := engine.Mode().(mode.ChannelSelect)
	if !ok || selectMode.GuildID != gophers || len(selectMode.Channels) != 2 {
		t.Fatalf("mode = %#v, want ChannelSelect of Gophers", engine.Mode())
	}
	engine.HandleAction(mode.ScrollDown)
	engine.HandleAction(mode.ConfirmSelection)
	settle(engine)
	if engine.State().CurrentChannel != random {
		t.Errorf("current channel = %s, want random", engine.State().CurrentChannel)
	}
	if _, ok := engine.Mode().(mode.Normal); !ok {
		t.Errorf("mode = %#v, want Normal", engine.Mode())
	}
}

func TestQuitCommand(t *testing.T) {
	engine, _ := newTestEngine(t, newFakeClient(), Config{})
	typeCommand(engine, "q")
	if done, err := engine.Done(); !done || err != nil {
		t.Errorf("Done = %v, %v; want clean quit", done, err)
	}
}
