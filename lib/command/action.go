// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"
	"strings"
	"unicode"
)

// Action is a parsed command line. The set of implementations is
// closed: Quit, JoinGuild, SwitchChannel, SetSetting, Refresh, Unknown.
type Action interface {
	action()
}

// Quit ends the session.
type Quit struct{}

// JoinGuild makes a guild current and opens its channel list.
type JoinGuild struct {
	Identifier string
}

// SwitchChannel makes a channel current.
type SwitchChannel struct {
	Identifier string
}

// SetSetting changes a runtime setting.
type SetSetting struct {
	Key   string
	Value string
}

// Refresh drops the cached guild and channel lists and fetches them
// again, picking up spaces joined since they were loaded.
type Refresh struct{}

// Unknown is a line whose command name is not recognized. Raw is the
// trimmed line.
type Unknown struct {
	Raw string
}

func (Quit) action()          {}
func (JoinGuild) action()     {}
func (SwitchChannel) action() {}
func (SetSetting) action()    {}
func (Refresh) action()       {}
func (Unknown) action()       {}

// ParseError reports a recognized command with malformed arguments.
type ParseError struct {
	Command string
	Message string
}

func (e *ParseError) Error() string {
	if e.Command == "" {
		return e.Message
	}
	return e.Command + ": " + e.Message
}

// names maps every accepted command name to its canonical name.
var names = map[string]string{
	"q":       "quit",
	"quit":    "quit",
	"exit":    "quit",
	"join":    "join",
	"guild":   "join",
	"g":       "join",
	"channel": "channel",
	"ch":      "channel",
	"c":       "channel",
	"set":     "set",
	"refresh": "refresh",
	"reload":  "refresh",
}

// Parse parses one command line, without the leading colon.
func Parse(line string) (Action, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, &ParseError{Message: "empty command"}
	}
	name, rest := cut(line)
	canonical, ok := names[strings.ToLower(name)]
	if !ok {
		return Unknown{Raw: line}, nil
	}

	switch canonical {
	case "quit":
		if rest != "" {
			return nil, &ParseError{Command: canonical, Message: "takes no arguments"}
		}
		return Quit{}, nil

	case "refresh":
		if rest != "" {
			return nil, &ParseError{Command: canonical, Message: "takes no arguments"}
		}
		return Refresh{}, nil

	case "join":
		if rest == "" {
			return nil, &ParseError{Command: canonical, Message: "missing guild name or id"}
		}
		return JoinGuild{Identifier: rest}, nil

	case "channel":
		if rest == "" {
			return nil, &ParseError{Command: canonical, Message: "missing channel name or id"}
		}
		return SwitchChannel{Identifier: rest}, nil

	case "set":
		key, value := cut(rest)
		if key == "" {
			return nil, &ParseError{Command: canonical, Message: "missing setting name"}
		}
		if value == "" {
			return nil, &ParseError{Command: canonical, Message: fmt.Sprintf("missing value for %s", key)}
		}
		return SetSetting{Key: strings.ToLower(key), Value: value}, nil
	}
	return Unknown{Raw: line}, nil
}

// Render returns the canonical text of action. Parse(Render(a)) == a
// holds for every action Parse can return. Other values come back in
// Parse's normal form: identifiers and values trimmed, setting keys
// lowercased, and an Unknown whose first word names a command parsed
// as that command.
func Render(action Action) string {
	switch action := action.(type) {
	case Quit:
		return "quit"
	case JoinGuild:
		return "join " + action.Identifier
	case SwitchChannel:
		return "channel " + action.Identifier
	case SetSetting:
		return "set " + action.Key + " " + action.Value
	case Refresh:
		return "refresh"
	case Unknown:
		return action.Raw
	}
	return ""
}

// cut splits s at its first run of whitespace and trims the remainder.
func cut(s string) (head, rest string) {
	s = strings.TrimSpace(s)
	index := strings.IndexFunc(s, unicode.IsSpace)
	if index < 0 {
		return s, ""
	}
	return s[:index], strings.TrimSpace(s[index:])
}
