// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory memoizes the guild and channel lists.
//
// The cache never performs I/O on the caller's goroutine. EnsureGuilds
// and EnsureChannels return what is cached, or a [chat.Task] that the
// event loop runs to fetch it; the completion comes back through
// Apply. Requests for the same list while a fetch is in flight are
// coalesced: no second task is returned. Invalidate bumps a generation
// counter so completions of fetches started before it are discarded.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/junegunn/fzf/src/util"

	"github.com/hearth-chat/hearth/lib/chat"
)

// ErrNotLoaded is returned by lookups against a list that has not been
// fetched yet.
var ErrNotLoaded = errors.New("directory: not loaded yet")

// ErrNotFound is returned when no entry matches an identifier.
var ErrNotFound = errors.New("directory: no match")

// Fetcher loads directory lists from the server.
type Fetcher interface {
	FetchGuilds(ctx context.Context) ([]chat.Guild, error)
	FetchChannels(ctx context.Context, guildID chat.GuildID) ([]chat.Channel, error)
}

// Cache is the guild/channel directory. It is owned by the event loop
// and is not safe for concurrent use; the tasks it returns touch only
// the Fetcher.
type Cache struct {
	fetcher Fetcher
	logger  *slog.Logger

	generation uint64

	guilds         []chat.Guild
	guildsLoaded   bool
	guildsInFlight bool

	channels         map[chat.GuildID][]chat.Channel
	channelsInFlight map[chat.GuildID]bool
	channelIndex     map[chat.ChannelID]chat.Channel

	slab *util.Slab
}

// New creates an empty cache backed by fetcher.
func New(fetcher Fetcher, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		fetcher:          fetcher,
		logger:           logger,
		channels:         make(map[chat.GuildID][]chat.Channel),
		channelsInFlight: make(map[chat.GuildID]bool),
		channelIndex:     make(map[chat.ChannelID]chat.Channel),
		slab:             util.MakeSlab(100*1024, 2048),
	}
}

// Generation returns the current cache generation.
func (c *Cache) Generation() uint64 { return c.generation }

// EnsureGuilds returns the cached guild list with loaded=true, or a
// fetch task when nothing is cached and nothing is in flight. When a
// fetch is already in flight both results are zero.
func (c *Cache) EnsureGuilds() (guilds []chat.Guild, loaded bool, task chat.Task) {
	if c.guildsLoaded {
		return slices.Clone(c.guilds), true, nil
	}
	if c.guildsInFlight {
		return nil, false, nil
	}
	c.guildsInFlight = true
	generation := c.generation
	fetcher := c.fetcher
	return nil, false, func(ctx context.Context) chat.Event {
		guilds, err := fetcher.FetchGuilds(ctx)
		return chat.GuildsLoaded{Generation: generation, Guilds: guilds, Err: err}
	}
}

// EnsureChannels is EnsureGuilds for one guild's channel list.
func (c *Cache) EnsureChannels(guildID chat.GuildID) (channels []chat.Channel, loaded bool, task chat.Task) {
	if cached, ok := c.channels[guildID]; ok {
		return slices.Clone(cached), true, nil
	}
	if c.channelsInFlight[guildID] {
		return nil, false, nil
	}
	c.channelsInFlight[guildID] = true
	generation := c.generation
	fetcher := c.fetcher
	return nil, false, func(ctx context.Context) chat.Event {
		channels, err := fetcher.FetchChannels(ctx, guildID)
		return chat.ChannelsLoaded{Generation: generation, GuildID: guildID, Channels: channels, Err: err}
	}
}

// Apply records a fetch completion. It reports false, and changes
// nothing, when the completion is from before the last Invalidate or
// is not a directory event. A current completion carrying an error
// clears the in-flight mark so the next Ensure call retries.
func (c *Cache) Apply(event chat.Event) bool {
	switch event := event.(type) {
	case chat.GuildsLoaded:
		if event.Generation != c.generation {
			c.logger.Debug("discarding stale guild list", "generation", event.Generation, "current", c.generation)
			return false
		}
		c.guildsInFlight = false
		if event.Err != nil {
			return true
		}
		c.guilds = slices.Clone(event.Guilds)
		c.guildsLoaded = true
		return true

	case chat.ChannelsLoaded:
		if event.Generation != c.generation {
			c.logger.Debug("discarding stale channel list",
				"guild_id", event.GuildID, "generation", event.Generation, "current", c.generation)
			return false
		}
		delete(c.channelsInFlight, event.GuildID)
		if event.Err != nil {
			return true
		}
		c.channels[event.GuildID] = slices.Clone(event.Channels)
		for _, channel := range event.Channels {
			c.channelIndex[channel.ID] = channel
		}
		c.growGuild(event.GuildID, event.Channels)
		return true
	}
	return false
}

// growGuild appends channel IDs the guild entry does not list yet.
// The guild's existing order is kept.
func (c *Cache) growGuild(guildID chat.GuildID, channels []chat.Channel) {
	index := slices.IndexFunc(c.guilds, func(g chat.Guild) bool { return g.ID == guildID })
	if index < 0 {
		return
	}
	guild := &c.guilds[index]
	for _, channel := range channels {
		if !slices.Contains(guild.ChannelIDs, channel.ID) {
			guild.ChannelIDs = append(guild.ChannelIDs, channel.ID)
		}
	}
}

// Invalidate forgets every cached list and orphans in-flight fetches.
func (c *Cache) Invalidate() {
	c.generation++
	c.guilds = nil
	c.guildsLoaded = false
	c.guildsInFlight = false
	clear(c.channels)
	clear(c.channelsInFlight)
	clear(c.channelIndex)
}

// Guilds returns the cached guild list, if loaded.
func (c *Cache) Guilds() ([]chat.Guild, bool) {
	return slices.Clone(c.guilds), c.guildsLoaded
}

// Channels returns the cached channel list for a guild, if loaded.
func (c *Cache) Channels(guildID chat.GuildID) ([]chat.Channel, bool) {
	channels, ok := c.channels[guildID]
	return slices.Clone(channels), ok
}

// Guild returns a cached guild by ID.
func (c *Cache) Guild(guildID chat.GuildID) (chat.Guild, bool) {
	for _, guild := range c.guilds {
		if guild.ID == guildID {
			return guild, true
		}
	}
	return chat.Guild{}, false
}

// Channel returns a cached channel by ID from any loaded guild.
func (c *Cache) Channel(channelID chat.ChannelID) (chat.Channel, bool) {
	channel, ok := c.channelIndex[channelID]
	return channel, ok
}

// FindGuild resolves an identifier to a cached guild: exact ID first,
// then case-insensitive name, then the best fuzzy match on name.
func (c *Cache) FindGuild(identifier string) (chat.Guild, error) {
	if !c.guildsLoaded {
		return chat.Guild{}, fmt.Errorf("guild list: %w", ErrNotLoaded)
	}
	index := resolve(c.guilds, identifier, c.slab,
		func(g chat.Guild) string { return string(g.ID) },
		func(g chat.Guild) string { return g.Name })
	if index < 0 {
		return chat.Guild{}, fmt.Errorf("guild %q: %w", identifier, ErrNotFound)
	}
	return c.guilds[index], nil
}

// FindChannel resolves an identifier within one guild's channel list.
func (c *Cache) FindChannel(guildID chat.GuildID, identifier string) (chat.Channel, error) {
	channels, ok := c.channels[guildID]
	if !ok {
		return chat.Channel{}, fmt.Errorf("channels of %s: %w", guildID, ErrNotLoaded)
	}
	index := resolve(channels, identifier, c.slab,
		func(ch chat.Channel) string { return string(ch.ID) },
		func(ch chat.Channel) string { return ch.Name })
	if index < 0 {
		return chat.Channel{}, fmt.Errorf("channel %q: %w", identifier, ErrNotFound)
	}
	return channels[index], nil
}

// resolve returns the index of the entry matching identifier, or -1.
// Fuzzy ties go to the shorter name, then to list order.
func resolve[T any](entries []T, identifier string, slab *util.Slab, id, name func(T) string) int {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return -1
	}
	if index := slices.IndexFunc(entries, func(e T) bool { return id(e) == identifier }); index >= 0 {
		return index
	}
	bare := strings.TrimPrefix(identifier, "#")
	if index := slices.IndexFunc(entries, func(e T) bool { return strings.EqualFold(name(e), bare) }); index >= 0 {
		return index
	}

	pattern := []rune(bare)
	best, bestScore := -1, 0
	for i, entry := range entries {
		score := fuzzyScore(name(entry), pattern, slab)
		if score == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && len(name(entry)) < len(name(entries[best]))) {
			best, bestScore = i, score
		}
	}
	return best
}
