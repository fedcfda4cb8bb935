// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hearth-chat/hearth/lib/mode"
)

// KeyMap defines the key bindings for every mode. Which bindings are
// live depends on the mode: text modes (insert, command) treat any
// unbound printable key as typed input.
type KeyMap struct {
	// Normal mode.
	Insert   key.Binding
	Command  key.Binding
	Scroll   key.Binding
	Guilds   key.Binding
	Channels key.Binding

	// Every mode: leave to normal mode, or dismiss the status line
	// when already there.
	Normal key.Binding

	// Scroll and selection modes.
	Up      key.Binding
	Down    key.Binding
	Confirm key.Binding

	// Scroll mode, acting on the selected message.
	Edit      key.Binding
	Delete    key.Binding
	DeleteNow key.Binding
	Retry     key.Binding

	// Text modes.
	Send  key.Binding
	Erase key.Binding

	// Quit ends the program from any mode. It never reaches the
	// engine; closing the key stream ends the session.
	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set: vim-style modal
// editing with arrow key alternatives.
var DefaultKeyMap = KeyMap{
	Insert: key.NewBinding(
		key.WithKeys("i", "a"),
		key.WithHelp("i", "write"),
	),
	Command: key.NewBinding(
		key.WithKeys(":"),
		key.WithHelp(":", "command"),
	),
	Scroll: key.NewBinding(
		key.WithKeys("k", "up", "s"),
		key.WithHelp("k", "scroll"),
	),
	Guilds: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "guilds"),
	),
	Channels: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "channels"),
	),
	Normal: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "back"),
	),
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "select"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	DeleteNow: key.NewBinding(
		key.WithKeys("D"),
		key.WithHelp("D", "delete now"),
	),
	Retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "retry"),
	),
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "send"),
	),
	Erase: key.NewBinding(
		key.WithKeys("backspace", "ctrl+h"),
		key.WithHelp("BS", "erase"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}

// Resolve maps a key press in the current mode to engine actions. A
// key with no meaning in the mode yields nothing. Pasted text yields
// one Type action per rune.
func (keys KeyMap) Resolve(current mode.Mode, message tea.KeyMsg) []mode.Action {
	if key.Matches(message, keys.Normal) {
		return []mode.Action{mode.EnterNormal}
	}

	switch current.(type) {
	case mode.Insert, mode.Command:
		switch {
		case key.Matches(message, keys.Erase):
			return []mode.Action{mode.Erase}
		case key.Matches(message, keys.Send):
			if _, ok := current.(mode.Command); ok {
				return []mode.Action{mode.ConfirmSelection}
			}
			return []mode.Action{mode.Send}
		}
		return typed(message)

	case mode.Normal:
		switch {
		case key.Matches(message, keys.Insert):
			return []mode.Action{mode.EnterInsert}
		case key.Matches(message, keys.Command):
			return []mode.Action{mode.EnterCommand}
		case key.Matches(message, keys.Scroll):
			return []mode.Action{mode.EnterScroll}
		case key.Matches(message, keys.Guilds):
			return []mode.Action{mode.EnterGuildSelect}
		case key.Matches(message, keys.Channels):
			return []mode.Action{mode.EnterChannelSelect}
		}

	case mode.Scroll:
		switch {
		case key.Matches(message, keys.Up):
			return []mode.Action{mode.ScrollUp}
		case key.Matches(message, keys.Down):
			return []mode.Action{mode.ScrollDown}
		case key.Matches(message, keys.Edit):
			return []mode.Action{mode.Edit}
		case key.Matches(message, keys.Delete):
			return []mode.Action{mode.Delete}
		case key.Matches(message, keys.DeleteNow):
			return []mode.Action{mode.DeleteNoPrompt}
		case key.Matches(message, keys.Retry):
			return []mode.Action{mode.Retry}
		case key.Matches(message, keys.Confirm):
			return []mode.Action{mode.ConfirmSelection}
		}

	case mode.GuildSelect, mode.ChannelSelect:
		switch {
		case key.Matches(message, keys.Up):
			return []mode.Action{mode.ScrollUp}
		case key.Matches(message, keys.Down):
			return []mode.Action{mode.ScrollDown}
		case key.Matches(message, keys.Confirm):
			return []mode.Action{mode.ConfirmSelection}
		}
	}
	return nil
}

// typed converts printable input into Type actions. Alt-modified keys
// are not text.
func typed(message tea.KeyMsg) []mode.Action {
	if message.Alt {
		return nil
	}
	switch message.Type {
	case tea.KeyRunes, tea.KeySpace:
	default:
		return nil
	}
	actions := make([]mode.Action, 0, len(message.Runes))
	for _, r := range message.Runes {
		actions = append(actions, mode.Type{Rune: r})
	}
	return actions
}

// Help returns the bindings worth showing in the status line for a
// mode, most useful first.
func (keys KeyMap) Help(current mode.Mode) []key.Binding {
	switch current := current.(type) {
	case mode.Insert:
		return []key.Binding{keys.Send, keys.Normal}
	case mode.Command:
		return []key.Binding{withHelp(keys.Send, "run"), keys.Normal}
	case mode.Normal:
		return []key.Binding{keys.Insert, keys.Command, keys.Scroll, keys.Guilds, keys.Channels, keys.Quit}
	case mode.Scroll:
		if current.ConfirmDelete {
			return []key.Binding{withHelp(keys.Delete, "confirm delete"), keys.Normal}
		}
		return []key.Binding{keys.Up, keys.Down, keys.Edit, keys.Delete, keys.DeleteNow, keys.Retry, keys.Normal}
	case mode.GuildSelect, mode.ChannelSelect:
		return []key.Binding{keys.Up, keys.Down, keys.Confirm, keys.Normal}
	}
	return nil
}

// withHelp relabels a binding for display.
func withHelp(binding key.Binding, description string) key.Binding {
	binding.SetHelp(binding.Help().Key, description)
	return binding
}
