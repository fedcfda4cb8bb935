// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/lib/directory"
)

// Effect is a state change requested by a dispatched command. The set
// of implementations is closed: Exit, EnterGuild, EnterChannel,
// ChangeSetting, Reload.
type Effect interface {
	effect()
}

// Exit ends the session.
type Exit struct{}

// EnterGuild makes Guild current and opens its channel list.
type EnterGuild struct {
	Guild chat.Guild
}

// EnterChannel makes Channel current.
type EnterChannel struct {
	Channel chat.Channel
}

// ChangeSetting replaces the settings. Key names the setting that
// changed so the caller can act on it (a presence change needs a
// network call; a page size change does not).
type ChangeSetting struct {
	Key      string
	Settings Settings
}

// Reload invalidates the directory and refetches it.
type Reload struct{}

func (Exit) effect()          {}
func (EnterGuild) effect()    {}
func (EnterChannel) effect()  {}
func (ChangeSetting) effect() {}
func (Reload) effect()        {}

// Outcome is the result of applying an action. Err is user-visible;
// Effect is nil when Err is set.
type Outcome struct {
	Summary string
	Err     error
	Effect  Effect
}

// ErrUnknownCommand is wrapped by the Outcome error for Unknown actions.
var ErrUnknownCommand = errors.New("unknown command")

// ErrNoGuild is returned when a channel is named with no current guild.
var ErrNoGuild = errors.New("no guild selected (use :join first)")

// Dispatcher resolves actions against the directory cache. It is not
// safe for concurrent use; the event loop owns it.
type Dispatcher struct {
	directory *directory.Cache
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher over cache.
func NewDispatcher(cache *directory.Cache, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{directory: cache, logger: logger}
}

// Apply resolves action. currentGuild scopes channel names; settings
// is the state "set" starts from.
func (d *Dispatcher) Apply(action Action, currentGuild chat.GuildID, settings Settings) Outcome {
	switch action := action.(type) {
	case Quit:
		return Outcome{Summary: "quitting", Effect: Exit{}}

	case JoinGuild:
		guild, err := d.directory.FindGuild(action.Identifier)
		if err != nil {
			return Outcome{Err: err}
		}
		return Outcome{Summary: "guild " + guild.Label(), Effect: EnterGuild{Guild: guild}}

	case SwitchChannel:
		channel, err := d.findChannel(currentGuild, action.Identifier)
		if err != nil {
			return Outcome{Err: err}
		}
		return Outcome{Summary: "channel " + channel.Label(), Effect: EnterChannel{Channel: channel}}

	case SetSetting:
		updated, err := settings.With(action.Key, action.Value)
		if err != nil {
			return Outcome{Err: err}
		}
		d.logger.Debug("setting changed", "key", action.Key, "value", updated.Value(action.Key))
		return Outcome{
			Summary: fmt.Sprintf("%s = %s", action.Key, updated.Value(action.Key)),
			Effect:  ChangeSetting{Key: action.Key, Settings: updated},
		}

	case Refresh:
		return Outcome{Summary: "refreshing guilds and channels", Effect: Reload{}}

	case Unknown:
		return Outcome{Err: fmt.Errorf("%w: %s", ErrUnknownCommand, action.Raw)}
	}
	return Outcome{Err: fmt.Errorf("%w: %T", ErrUnknownCommand, action)}
}

// findChannel accepts the exact ID of any cached channel, then resolves
// names within the current guild.
func (d *Dispatcher) findChannel(currentGuild chat.GuildID, identifier string) (chat.Channel, error) {
	if channel, ok := d.directory.Channel(chat.ChannelID(identifier)); ok {
		return channel, nil
	}
	if currentGuild == "" {
		return chat.Channel{}, ErrNoGuild
	}
	return d.directory.FindChannel(currentGuild, identifier)
}
