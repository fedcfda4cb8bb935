// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Action
	}{
		{"quit", Quit{}},
		{"  Q  ", Quit{}},
		{"EXIT", Quit{}},
		{"join Gophers", JoinGuild{Identifier: "Gophers"}},
		{"g   Go Nuts  ", JoinGuild{Identifier: "Go Nuts"}},
		{"guild !go:hearth.local", JoinGuild{Identifier: "!go:hearth.local"}},
		{"channel #general", SwitchChannel{Identifier: "#general"}},
		{"ch\trelease planning", SwitchChannel{Identifier: "release planning"}},
		{"C general", SwitchChannel{Identifier: "general"}},
		{"set page_size 25", SetSetting{Key: "page_size", Value: "25"}},
		{"SET Timestamps   on", SetSetting{Key: "timestamps", Value: "on"}},
		{"set presence  do not disturb ", SetSetting{Key: "presence", Value: "do not disturb"}},
		{"refresh", Refresh{}},
		{"Reload", Refresh{}},
		{"nick gopher", Unknown{Raw: "nick gopher"}},
		{"  wat  ", Unknown{Raw: "wat"}},
	}
	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			got, err := Parse(test.line)
			if err != nil {
				t.Fatalf("Parse(%q): %v", test.line, err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", test.line, diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		line    string
		command string
	}{
		{"", ""},
		{"   ", ""},
		{"join", "join"},
		{"g   ", "join"},
		{"channel", "channel"},
		{"set", "set"},
		{"set page_size", "set"},
		{"quit now", "quit"},
		{"refresh all", "refresh"},
	}
	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			action, err := Parse(test.line)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("Parse(%q) = %#v, %v; want *ParseError", test.line, action, err)
			}
			if parseErr.Command != test.command {
				t.Errorf("Command = %q, want %q", parseErr.Command, test.command)
			}
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	actions := []Action{
		Quit{},
		JoinGuild{Identifier: "Gophers"},
		JoinGuild{Identifier: "Go Nuts"},
		SwitchChannel{Identifier: "!general:hearth.local"},
		SwitchChannel{Identifier: "release planning"},
		SetSetting{Key: "page_size", Value: "25"},
		SetSetting{Key: "presence", Value: "do not disturb"},
		Refresh{},
		Unknown{Raw: "nick gopher"},
	}
	for _, action := range actions {
		rendered := Render(action)
		parsed, err := Parse(rendered)
		if err != nil {
			t.Errorf("Parse(Render(%#v)) = %v", action, err)
			continue
		}
		if diff := cmp.Diff(action, parsed); diff != "" {
			t.Errorf("round trip of %q mismatch (-want +got):\n%s", rendered, diff)
		}
	}
}

func TestParseRenderParseIsStable(t *testing.T) {
	lines := []string{"q", "G gophers", "c   #general", "set RETENTION 200", "whatever this is"}
	for _, line := range lines {
		first, err := Parse(line)
		if err != nil {
			t.Fatalf("Parse(%q): %v", line, err)
		}
		second, err := Parse(Render(first))
		if err != nil {
			t.Fatalf("Parse(Render(%q)): %v", line, err)
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%q not stable (-first +second):\n%s", line, diff)
		}
	}
}

func TestRenderNormalizes(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   Action
	}{
		{"setting key case", SetSetting{Key: "Page_Size", Value: "25"}, SetSetting{Key: "page_size", Value: "25"}},
		{"identifier spaces", JoinGuild{Identifier: "  Gophers "}, JoinGuild{Identifier: "Gophers"}},
		{"unknown naming a command", Unknown{Raw: "quit"}, Quit{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Parse(Render(test.action))
			if err != nil {
				t.Fatalf("Parse(Render(%#v)): %v", test.action, err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("normal form mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
