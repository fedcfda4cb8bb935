// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/lib/clock"
	"github.com/hearth-chat/hearth/lib/command"
	"github.com/hearth-chat/hearth/lib/directory"
	"github.com/hearth-chat/hearth/lib/mode"
	"github.com/hearth-chat/hearth/lib/msgstore"
)

// Client is the session client as the engine uses it. Every method is
// called from a job goroutine, never from the loop.
type Client interface {
	directory.Fetcher
	FetchHistory(ctx context.Context, channelID chat.ChannelID, before string) (chat.Page, error)
	Send(ctx context.Context, channelID chat.ChannelID, localTag, content string) (chat.MessageID, error)
	Edit(ctx context.Context, target chat.MessageRef, content, txnID string) error
	Delete(ctx context.Context, target chat.MessageRef, txnID string) error
	SetPresence(ctx context.Context, presence chat.Presence) error

	// SetPageSize is safe to call from the loop.
	SetPageSize(size int)
}

// Config configures an Engine.
type Config struct {
	Identity chat.Identity
	Settings command.Settings

	// LastGuild, LastChannel, and Scroll restore the previous session's
	// position. DefaultGuild and DefaultChannel are names or IDs used
	// when there is no previous position.
	LastGuild      chat.GuildID
	LastChannel    chat.ChannelID
	Scroll         []chat.ScrollState
	DefaultGuild   string
	DefaultChannel string

	// NewTag generates local tags and transaction IDs. Nil uses random
	// UUIDs.
	NewTag func() string
}

// Job is a queued request. Run blocks and returns the completion event.
type Job struct {
	ctx  context.Context
	task chat.Task
}

// Run executes the job.
func (j Job) Run() chat.Event { return j.task(j.ctx) }

// failedWrite records an edit or delete that failed so a manual retry
// can re-issue it with the same transaction ID.
type failedWrite struct {
	op      chat.WriteOp
	target  chat.MessageRef
	content string
	txnID   string
}

// Engine applies inputs to AppState. It is not safe for concurrent use.
type Engine struct {
	client     Client
	store      *msgstore.Store
	directory  *directory.Cache
	dispatcher *command.Dispatcher
	controller *mode.Controller
	clock      clock.Clock
	logger     *slog.Logger
	newTag     func() string

	state AppState

	base   context.Context
	cancel context.CancelFunc
	jobs   []Job

	// epochs and history implement per-channel cancellation: a history
	// completion is current only when its epoch matches, and history
	// holds the cancel function of the one outstanding fetch.
	epochs  map[chat.ChannelID]uint64
	history map[chat.ChannelID]context.CancelFunc

	// gapFill marks channels whose newest page must be refetched once
	// the outstanding fetch completes.
	gapFill map[chat.ChannelID]bool

	// stale marks loaded background channels with a server-side gap;
	// their newest page is refetched when they become current.
	stale map[chat.ChannelID]bool

	failedWrites map[chat.MessageID]failedWrite

	// pendingDefault is the configured default position, resolved once
	// the directory can answer.
	pendingDefault struct {
		guild, channel string
	}
}

// New creates an Engine. A nil clock uses the real clock; a nil logger
// uses slog.Default().
func New(client Client, config Config, clk clock.Clock, logger *slog.Logger) *Engine {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	newTag := config.NewTag
	if newTag == nil {
		newTag = uuid.NewString
	}
	if config.Settings.Retention <= 0 {
		config.Settings.Retention = msgstore.DefaultRetention
	}
	if config.Settings.PageSize > 0 {
		client.SetPageSize(config.Settings.PageSize)
	}

	cache := directory.New(client, logger)
	base, cancel := context.WithCancel(context.Background())
	engine := &Engine{
		client:       client,
		store:        msgstore.New(config.Settings.Retention, logger),
		directory:    cache,
		dispatcher:   command.NewDispatcher(cache, logger),
		controller:   mode.NewController(),
		clock:        clk,
		logger:       logger,
		newTag:       newTag,
		base:         base,
		cancel:       cancel,
		epochs:       make(map[chat.ChannelID]uint64),
		history:      make(map[chat.ChannelID]context.CancelFunc),
		gapFill:      make(map[chat.ChannelID]bool),
		stale:        make(map[chat.ChannelID]bool),
		failedWrites: make(map[chat.MessageID]failedWrite),
		state: AppState{
			Identity:  config.Identity,
			Settings:  config.Settings,
			Connected: true,
			Unread:    make(map[chat.ChannelID]int),
			Scroll:    make(map[chat.ChannelID]chat.ScrollState),
		},
	}
	for _, scroll := range config.Scroll {
		if scroll.ChannelID != "" {
			engine.state.Scroll[scroll.ChannelID] = scroll
		}
	}
	engine.state.CurrentGuild = config.LastGuild
	if config.LastChannel != "" {
		engine.state.CurrentChannel = config.LastChannel
	} else {
		engine.pendingDefault.guild = config.DefaultGuild
		engine.pendingDefault.channel = config.DefaultChannel
	}
	return engine
}

// Start queues the initial loads: the guild list, the current guild's
// channels, and the current channel's newest page.
func (e *Engine) Start() {
	e.ensureGuilds()
	if e.state.CurrentGuild != "" {
		e.ensureChannels(e.state.CurrentGuild)
	}
	if channelID := e.state.CurrentChannel; channelID != "" {
		e.state.Scroll[channelID] = e.scrollState(channelID)
		e.requestHistory(channelID, false)
	}
}

// Close cancels every outstanding job.
func (e *Engine) Close() { e.cancel() }

// Jobs removes and returns the queued jobs.
func (e *Engine) Jobs() []Job {
	jobs := e.jobs
	e.jobs = nil
	return jobs
}

// State returns a copy of the application state.
func (e *Engine) State() AppState {
	state := e.state
	state.Unread = maps.Clone(e.state.Unread)
	state.Scroll = maps.Clone(e.state.Scroll)
	return state
}

// Mode returns the active input mode.
func (e *Engine) Mode() mode.Mode { return e.controller.Mode() }

// Done reports whether the session has ended, and the fatal error if
// it ended on one.
func (e *Engine) Done() (bool, error) {
	return e.state.Quit || e.state.Fatal != nil, e.state.Fatal
}

// ScrollStates returns the view position of every visited channel in
// channel order.
func (e *Engine) ScrollStates() []chat.ScrollState {
	states := slices.Collect(maps.Values(e.state.Scroll))
	slices.SortFunc(states, func(a, b chat.ScrollState) int { return cmp.Compare(a.ChannelID, b.ChannelID) })
	return states
}

func (e *Engine) queue(ctx context.Context, task chat.Task) {
	e.jobs = append(e.jobs, Job{ctx: ctx, task: task})
}

func (e *Engine) scrollState(channelID chat.ChannelID) chat.ScrollState {
	if state, ok := e.state.Scroll[channelID]; ok {
		return state
	}
	return chat.ScrollState{ChannelID: channelID, Selected: -1}
}

func (e *Engine) setStatus(text string) {
	e.state.Status = Status{Text: text}
}

func (e *Engine) setError(err error) {
	e.state.Status = Status{Text: err.Error(), Error: true}
}

// fail records err from op. An auth failure ends the session;
// anything else becomes the status line. It reports whether err was
// fatal.
func (e *Engine) fail(op string, err error) bool {
	if chat.IsFatal(err) {
		e.logger.Error("session credentials rejected", "op", op, "error", err)
		e.state.Fatal = err
		e.setError(err)
		return true
	}
	e.logger.Warn("operation failed", "op", op, "error", err)
	e.setError(fmt.Errorf("%s: %w", op, err))
	return false
}

// HandleAction applies a key action.
func (e *Engine) HandleAction(action mode.Action) {
	e.state.Actions++
	effects := e.controller.Handle(action, env{engine: e})
	e.recordSelection()
	for _, effect := range effects {
		e.apply(effect)
	}
}

// recordSelection saves the Scroll selection and keeps the selected
// message at the bottom of the view.
func (e *Engine) recordSelection() {
	current, ok := e.controller.Mode().(mode.Scroll)
	channelID := e.state.CurrentChannel
	if !ok || channelID == "" {
		return
	}
	state := e.scrollState(channelID)
	state.Selected = current.Selected
	state.TopOffset = max(0, e.store.Len(channelID)-1-current.Selected)
	e.state.Scroll[channelID] = state
}

func (e *Engine) apply(effect mode.Effect) {
	switch effect := effect.(type) {
	case mode.SubmitMessage:
		e.submit(effect.Content)
	case mode.SubmitEdit:
		e.edit(effect.Target, effect.Content, e.newTag())
	case mode.RequestDelete:
		e.deleteMessage(effect.Message)
	case mode.RetryMessage:
		e.retry(effect.Message)
	case mode.RunCommand:
		e.runCommand(effect.Line)
	case mode.OpenGuilds:
		e.ensureGuilds()
	case mode.OpenChannels:
		e.ensureChannels(effect.GuildID)
	case mode.SelectChannel:
		e.switchChannel(effect.Channel.GuildID, effect.Channel.ID)
	case mode.LoadOlder:
		if e.state.CurrentChannel != "" {
			e.requestHistory(e.state.CurrentChannel, true)
		}
	case mode.DismissStatus:
		e.state.Status = Status{}
	}
}

func (e *Engine) submit(content string) {
	channelID := e.state.CurrentChannel
	if channelID == "" {
		e.setError(errors.New("no channel selected (use :channel or c)"))
		return
	}
	localTag := e.newTag()
	message := chat.Message{
		LocalTag:  localTag,
		ChannelID: channelID,
		Author:    e.state.Identity.UserID,
		Content:   content,
		CreatedAt: e.clock.Now(),
	}
	if err := e.store.InsertPending(channelID, message); err != nil {
		e.logger.Error("storing pending message", "channel_id", channelID, "error", err)
		e.setError(err)
		return
	}
	state := e.scrollState(channelID)
	state.TopOffset = 0
	e.state.Scroll[channelID] = state
	e.queueSend(channelID, localTag, content)
}

func (e *Engine) queueSend(channelID chat.ChannelID, localTag, content string) {
	client := e.client
	e.queue(e.base, func(ctx context.Context) chat.Event {
		id, err := client.Send(ctx, channelID, localTag, content)
		return chat.SendCompleted{ChannelID: channelID, LocalTag: localTag, ID: id, Err: err}
	})
}

func (e *Engine) edit(target chat.MessageRef, content, txnID string) {
	client := e.client
	e.queue(e.base, func(ctx context.Context) chat.Event {
		err := client.Edit(ctx, target, content, txnID)
		return chat.EditCompleted{Target: target, Content: content, TxnID: txnID, Err: err}
	})
}

func (e *Engine) deleteMessage(message chat.Message) {
	target, ok := message.Ref()
	if !ok {
		// Never reached the server: drop it locally.
		if e.store.Discard(message.ChannelID, message.LocalTag) {
			e.setStatus("discarded unsent message")
			e.controller.Refresh(env{engine: e})
		}
		return
	}
	e.deleteRemote(target, e.newTag())
}

func (e *Engine) deleteRemote(target chat.MessageRef, txnID string) {
	client := e.client
	e.queue(e.base, func(ctx context.Context) chat.Event {
		err := client.Delete(ctx, target, txnID)
		return chat.DeleteCompleted{Target: target, TxnID: txnID, Err: err}
	})
}

// retry re-issues a failed write. A failed send keeps its local tag,
// so the server stores it once however many attempts reach it; the
// entry stays Failed until the server acknowledges it.
func (e *Engine) retry(message chat.Message) {
	if message.ID == "" {
		if message.Status != chat.StatusFailed {
			return
		}
		e.setStatus("retrying send")
		e.queueSend(message.ChannelID, message.LocalTag, message.Content)
		return
	}
	write, ok := e.failedWrites[message.ID]
	if !ok {
		return
	}
	e.setStatus(fmt.Sprintf("retrying %s", write.op))
	switch write.op {
	case chat.WriteEdit:
		e.edit(write.target, write.content, write.txnID)
	case chat.WriteDelete:
		e.deleteRemote(write.target, write.txnID)
	}
}

func (e *Engine) runCommand(line string) {
	action, err := command.Parse(line)
	if err != nil {
		e.setError(err)
		return
	}
	outcome := e.dispatcher.Apply(action, e.state.CurrentGuild, e.state.Settings)
	if outcome.Err != nil {
		e.setError(outcome.Err)
		return
	}
	e.setStatus(outcome.Summary)

	switch effect := outcome.Effect.(type) {
	case command.Exit:
		e.state.Quit = true

	case command.EnterGuild:
		e.state.CurrentGuild = effect.Guild.ID
		next, effects := mode.ChannelSelectFor(effect.Guild.ID, env{engine: e})
		e.controller.Set(next)
		for _, effect := range effects {
			e.apply(effect)
		}

	case command.EnterChannel:
		e.switchChannel(effect.Channel.GuildID, effect.Channel.ID)

	case command.ChangeSetting:
		e.changeSetting(effect.Key, effect.Settings)

	case command.Reload:
		e.directory.Invalidate()
		e.ensureGuilds()
		if guildID := e.state.CurrentGuild; guildID != "" {
			e.ensureChannels(guildID)
		}
		e.controller.Refresh(env{engine: e})
	}
}

func (e *Engine) changeSetting(key string, settings command.Settings) {
	e.state.Settings = settings
	switch key {
	case command.KeyPageSize:
		e.client.SetPageSize(settings.PageSize)
	case command.KeyRetention:
		e.store.SetRetention(settings.Retention)
	case command.KeyPresence:
		client := e.client
		presence := settings.Presence
		e.queue(e.base, func(ctx context.Context) chat.Event {
			return chat.PresenceSet{Presence: presence, Err: client.SetPresence(ctx, presence)}
		})
	}
}

func (e *Engine) ensureGuilds() {
	if _, _, task := e.directory.EnsureGuilds(); task != nil {
		e.queue(e.base, task)
	}
}

func (e *Engine) ensureChannels(guildID chat.GuildID) {
	if _, _, task := e.directory.EnsureChannels(guildID); task != nil {
		e.queue(e.base, task)
	}
}

// switchChannel makes channelID current: the previous channel's fetch
// is cancelled and its cache trimmed, the new channel's scroll state is
// restored or initialized, and its newest page is requested if it has
// no history yet.
func (e *Engine) switchChannel(guildID chat.GuildID, channelID chat.ChannelID) {
	// A channel list still loading for the previous guild is left to
	// finish: its result only fills the directory cache.
	if guildID != "" {
		e.state.CurrentGuild = guildID
		e.ensureChannels(guildID)
	}
	previous := e.state.CurrentChannel
	if previous == channelID {
		return
	}
	if previous != "" {
		e.cancelHistory(previous)
		e.store.Evict(previous)
	}

	e.state.CurrentChannel = channelID
	delete(e.state.Unread, channelID)
	e.state.Scroll[channelID] = e.scrollState(channelID)
	if _, isScroll := e.controller.Mode().(mode.Scroll); isScroll {
		e.controller.Set(mode.Normal{})
	}
	e.logger.Debug("switched channel", "from", previous, "to", channelID)

	if !e.store.Loaded(channelID) || e.stale[channelID] {
		delete(e.stale, channelID)
		e.requestHistory(channelID, false)
	}
}

// cancelHistory abandons the channel's outstanding fetch. Bumping the
// epoch makes its completion stale even if it was already sent.
func (e *Engine) cancelHistory(channelID chat.ChannelID) {
	cancel, ok := e.history[channelID]
	if !ok {
		return
	}
	cancel()
	delete(e.history, channelID)
	delete(e.gapFill, channelID)
	e.epochs[channelID]++
}

// requestHistory fetches the newest page, or with older the page
// before the channel's cursor. At most one fetch per channel is
// outstanding.
func (e *Engine) requestHistory(channelID chat.ChannelID, older bool) {
	if _, inFlight := e.history[channelID]; inFlight {
		if !older {
			e.gapFill[channelID] = true
		}
		return
	}
	before := ""
	if older && e.store.Loaded(channelID) {
		cursor, reachedStart := e.store.Cursor(channelID)
		if reachedStart {
			e.setStatus("beginning of channel")
			return
		}
		before = cursor
	}

	ctx, cancel := context.WithCancel(e.base)
	e.history[channelID] = cancel
	epoch := e.epochs[channelID]
	client := e.client
	e.queue(ctx, func(ctx context.Context) chat.Event {
		page, err := client.FetchHistory(ctx, channelID, before)
		return chat.HistoryLoaded{ChannelID: channelID, Epoch: epoch, Before: before, Page: page, Err: err}
	})
}

// HandleEvent applies a task completion or push event.
func (e *Engine) HandleEvent(event chat.Event) {
	switch event := event.(type) {
	case chat.GuildsLoaded:
		if !e.directory.Apply(event) {
			return
		}
		if event.Err != nil {
			e.fail("load guilds", event.Err)
			return
		}
		e.controller.Refresh(env{engine: e})
		e.resolveDefault()

	case chat.ChannelsLoaded:
		if !e.directory.Apply(event) {
			return
		}
		if event.Err != nil {
			e.fail("load channels", event.Err)
			return
		}
		e.controller.Refresh(env{engine: e})
		e.resolveDefault()

	case chat.HistoryLoaded:
		e.historyLoaded(event)

	case chat.SendCompleted:
		e.sendCompleted(event)

	case chat.EditCompleted:
		id := event.Target.ID
		if event.Err != nil {
			if e.fail("edit", event.Err) {
				return
			}
			e.store.NoteFailure(id, event.Err.Error())
			e.failedWrites[id] = failedWrite{op: chat.WriteEdit, target: event.Target, content: event.Content, txnID: event.TxnID}
			return
		}
		delete(e.failedWrites, id)
		e.mutateCurrent(event.Target.ChannelID, func() { e.store.ApplyEdit(id, event.Content) })

	case chat.DeleteCompleted:
		id := event.Target.ID
		if event.Err != nil {
			if e.fail("delete", event.Err) {
				return
			}
			e.store.NoteFailure(id, event.Err.Error())
			e.failedWrites[id] = failedWrite{op: chat.WriteDelete, target: event.Target, txnID: event.TxnID}
			return
		}
		delete(e.failedWrites, id)
		e.mutateCurrent(event.Target.ChannelID, func() { e.store.ApplyDelete(id) })

	case chat.PresenceSet:
		if event.Err != nil {
			e.fail("set presence", event.Err)
		}

	case chat.NewMessage:
		e.newMessage(event.Message)

	case chat.MessageEdited:
		e.mutateCurrent(event.Target.ChannelID, func() { e.store.ApplyEdit(event.Target.ID, event.Content) })

	case chat.MessageDeleted:
		delete(e.failedWrites, event.Target.ID)
		e.mutateCurrent(event.Target.ChannelID, func() { e.store.ApplyDelete(event.Target.ID) })

	case chat.ConnectionLost:
		if chat.IsFatal(event.Err) {
			e.fail("push stream", event.Err)
			return
		}
		e.state.Connected = false
		e.logger.Warn("connection lost", "error", event.Err)
		e.setError(fmt.Errorf("connection lost, reconnecting: %w", event.Err))

	case chat.ConnectionRestored:
		e.state.Connected = true
		e.logger.Info("connection restored")
		e.setStatus("reconnected")
		// Messages sent while the stream was down are recovered from the
		// newest page; dedupe makes the refetch idempotent.
		if channelID := e.state.CurrentChannel; channelID != "" {
			e.requestHistory(channelID, false)
		}

	case chat.HistoryGap:
		channelID := event.ChannelID
		e.logger.Debug("server skipped events", "channel_id", channelID)
		switch {
		case channelID == e.state.CurrentChannel:
			e.requestHistory(channelID, false)
		case e.store.Loaded(channelID):
			e.stale[channelID] = true
		}
	}
}

func (e *Engine) historyLoaded(event chat.HistoryLoaded) {
	channelID := event.ChannelID
	if event.Epoch != e.epochs[channelID] {
		e.logger.Debug("discarding late history page", "channel_id", channelID, "epoch", event.Epoch)
		return
	}
	if cancel, ok := e.history[channelID]; ok {
		cancel()
		delete(e.history, channelID)
	}

	if event.Err != nil {
		if !errors.Is(event.Err, context.Canceled) {
			e.fail("load history", event.Err)
		}
		return
	}

	e.mutateCurrent(channelID, func() { e.store.PageIn(channelID, event.Page) })
	if channelID != e.state.CurrentChannel {
		e.store.Evict(channelID)
	}
	if e.gapFill[channelID] {
		delete(e.gapFill, channelID)
		e.requestHistory(channelID, false)
	}
}

func (e *Engine) sendCompleted(event chat.SendCompleted) {
	if event.Err != nil {
		if e.fail("send", event.Err) {
			return
		}
		e.store.MarkFailed(event.ChannelID, event.LocalTag, event.Err.Error())
		return
	}
	e.mutateCurrent(event.ChannelID, func() { e.store.Confirm(event.ChannelID, event.LocalTag, event.ID) })
}

func (e *Engine) newMessage(message chat.Message) {
	channelID := message.ChannelID
	var result msgstore.InsertResult
	e.mutateCurrent(channelID, func() { result = e.store.InsertConfirmed(channelID, message) })
	if channelID == e.state.CurrentChannel {
		return
	}
	if result == msgstore.Inserted && message.Author != e.state.Identity.UserID {
		e.state.Unread[channelID]++
	}
	e.store.Evict(channelID)
}

// mutateCurrent runs change and, when it touched the current channel
// in Scroll mode, keeps the selection on the same message.
func (e *Engine) mutateCurrent(channelID chat.ChannelID, change func()) {
	current, scrolling := e.controller.Mode().(mode.Scroll)
	if !scrolling || channelID != e.state.CurrentChannel {
		change()
		return
	}
	anchor, ok := e.store.At(channelID, current.Selected)
	change()
	if ok {
		if index := e.indexOf(channelID, anchor); index >= 0 {
			e.controller.Select(index)
		}
	}
	e.controller.Refresh(env{engine: e})
	e.recordSelection()
}

func (e *Engine) indexOf(channelID chat.ChannelID, anchor chat.Message) int {
	messages := e.store.Messages(channelID)
	return slices.IndexFunc(messages, func(m chat.Message) bool {
		if anchor.ID != "" {
			return m.ID == anchor.ID
		}
		return m.LocalTag == anchor.LocalTag
	})
}

// resolveDefault applies the configured default guild and channel once
// the directory has the lists they name.
func (e *Engine) resolveDefault() {
	if e.pendingDefault.guild == "" {
		return
	}
	if e.state.CurrentGuild == "" {
		guild, err := e.directory.FindGuild(e.pendingDefault.guild)
		if errors.Is(err, directory.ErrNotLoaded) {
			return
		}
		if err != nil {
			e.pendingDefault.guild = ""
			e.setError(fmt.Errorf("default guild: %w", err))
			return
		}
		e.state.CurrentGuild = guild.ID
		e.ensureChannels(guild.ID)
	}
	if e.pendingDefault.channel == "" {
		e.pendingDefault.guild = ""
		return
	}
	channel, err := e.directory.FindChannel(e.state.CurrentGuild, e.pendingDefault.channel)
	if errors.Is(err, directory.ErrNotLoaded) {
		return
	}
	e.pendingDefault.guild, e.pendingDefault.channel = "", ""
	if err != nil {
		e.setError(fmt.Errorf("default channel: %w", err))
		return
	}
	e.switchChannel(channel.GuildID, channel.ID)
}
