// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hearth-chat/hearth/lib/chat"
)

// Theme defines the color palette. All colors use lipgloss ANSI
// 256-color codes for broad terminal compatibility.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected message or list row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Authors: the local user and everyone else.
	OwnAuthor   lipgloss.Color
	OtherAuthor lipgloss.Color

	// Delivery state markers.
	PendingText lipgloss.Color
	FailedText  lipgloss.Color

	// Status line.
	ErrorText   lipgloss.Color
	WarningText lipgloss.Color

	// Mode badges, keyed by mode name.
	ModeColors map[string]lipgloss.Color

	UnreadBadge lipgloss.Color
	Connected   lipgloss.Color
	Offline     lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
}

// ModeColor returns the badge color for a mode name, or FaintText for
// an unknown one.
func (theme Theme) ModeColor(name string) lipgloss.Color {
	if color, ok := theme.ModeColors[name]; ok {
		return color
	}
	return theme.FaintText
}

// StatusColor returns the color for a message's delivery marker.
func (theme Theme) StatusColor(status chat.Status) lipgloss.Color {
	switch status {
	case chat.StatusPending:
		return theme.PendingText
	case chat.StatusFailed:
		return theme.FailedText
	default:
		return theme.NormalText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	OwnAuthor:   lipgloss.Color("114"), // green
	OtherAuthor: lipgloss.Color("75"),  // blue

	PendingText: lipgloss.Color("241"),
	FailedText:  lipgloss.Color("196"),

	ErrorText:   lipgloss.Color("196"),
	WarningText: lipgloss.Color("220"),

	ModeColors: map[string]lipgloss.Color{
		"INSERT":   lipgloss.Color("114"),
		"NORMAL":   lipgloss.Color("75"),
		"COMMAND":  lipgloss.Color("220"),
		"SCROLL":   lipgloss.Color("141"),
		"GUILDS":   lipgloss.Color("208"),
		"CHANNELS": lipgloss.Color("208"),
	},

	UnreadBadge: lipgloss.Color("208"),
	Connected:   lipgloss.Color("114"),
	Offline:     lipgloss.Color("196"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
}
