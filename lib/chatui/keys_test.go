// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/hearth-chat/hearth/lib/mode"
)

func runes(text string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)}
}

func special(keyType tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: keyType}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		mode mode.Mode
		key  tea.KeyMsg
		want []mode.Action
	}{
		{"normal i", mode.Normal{}, runes("i"), []mode.Action{mode.EnterInsert}},
		{"normal colon", mode.Normal{}, runes(":"), []mode.Action{mode.EnterCommand}},
		{"normal k scrolls", mode.Normal{}, runes("k"), []mode.Action{mode.EnterScroll}},
		{"normal up scrolls", mode.Normal{}, special(tea.KeyUp), []mode.Action{mode.EnterScroll}},
		{"normal g", mode.Normal{}, runes("g"), []mode.Action{mode.EnterGuildSelect}},
		{"normal c", mode.Normal{}, runes("c"), []mode.Action{mode.EnterChannelSelect}},
		{"normal esc dismisses", mode.Normal{}, special(tea.KeyEsc), []mode.Action{mode.EnterNormal}},
		{"normal unbound", mode.Normal{}, runes("z"), nil},

		{"insert types k", mode.Insert{}, runes("k"), []mode.Action{mode.Type{Rune: 'k'}}},
		{"insert space", mode.Insert{}, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, []mode.Action{mode.Type{Rune: ' '}}},
		{"insert enter sends", mode.Insert{}, special(tea.KeyEnter), []mode.Action{mode.Send}},
		{"insert backspace", mode.Insert{}, special(tea.KeyBackspace), []mode.Action{mode.Erase}},
		{"insert esc", mode.Insert{Draft: "x"}, special(tea.KeyEsc), []mode.Action{mode.EnterNormal}},
		{"insert paste", mode.Insert{}, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hé"), Paste: true},
			[]mode.Action{mode.Type{Rune: 'h'}, mode.Type{Rune: 'é'}}},
		{"insert alt is not text", mode.Insert{}, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b"), Alt: true}, nil},
		{"insert tab ignored", mode.Insert{}, special(tea.KeyTab), nil},

		{"command enter confirms", mode.Command{Draft: "quit"}, special(tea.KeyEnter), []mode.Action{mode.ConfirmSelection}},
		{"command types", mode.Command{}, runes("q"), []mode.Action{mode.Type{Rune: 'q'}}},

		{"scroll k", mode.Scroll{}, runes("k"), []mode.Action{mode.ScrollUp}},
		{"scroll down arrow", mode.Scroll{}, special(tea.KeyDown), []mode.Action{mode.ScrollDown}},
		{"scroll e", mode.Scroll{}, runes("e"), []mode.Action{mode.Edit}},
		{"scroll d", mode.Scroll{}, runes("d"), []mode.Action{mode.Delete}},
		{"scroll D", mode.Scroll{}, runes("D"), []mode.Action{mode.DeleteNoPrompt}},
		{"scroll r", mode.Scroll{}, runes("r"), []mode.Action{mode.Retry}},
		{"scroll enter", mode.Scroll{ConfirmDelete: true}, special(tea.KeyEnter), []mode.Action{mode.ConfirmSelection}},
		{"scroll i unbound", mode.Scroll{}, runes("i"), nil},

		{"guilds j", mode.GuildSelect{}, runes("j"), []mode.Action{mode.ScrollDown}},
		{"guilds enter", mode.GuildSelect{}, special(tea.KeyEnter), []mode.Action{mode.ConfirmSelection}},
		{"channels up", mode.ChannelSelect{}, special(tea.KeyUp), []mode.Action{mode.ScrollUp}},
		{"channels d unbound", mode.ChannelSelect{}, runes("d"), nil},

		{"no frame yet", nil, runes("i"), nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := DefaultKeyMap.Resolve(test.mode, test.key)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHelpFollowsMode(t *testing.T) {
	normal := helpLine(DefaultKeyMap.Help(mode.Normal{}))
	if normal == "" {
		t.Fatal("no help for normal mode")
	}
	prompt := helpLine(DefaultKeyMap.Help(mode.Scroll{ConfirmDelete: true}))
	if prompt != "d confirm delete · Esc back" {
		t.Errorf("delete prompt help = %q", prompt)
	}
	// Relabelling for one mode must not leak into the shared map.
	if DefaultKeyMap.Delete.Help().Desc != "delete" {
		t.Errorf("DefaultKeyMap.Delete help changed to %q", DefaultKeyMap.Delete.Help().Desc)
	}
}
