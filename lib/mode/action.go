// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mode

// Action is an input to the controller. The set of implementations is
// closed: Tag and Type.
type Action interface {
	action()
}

// Tag is an action without a payload.
type Tag uint8

const (
	EnterInsert Tag = iota + 1
	EnterNormal
	EnterCommand
	EnterScroll
	EnterGuildSelect
	EnterChannelSelect
	ConfirmSelection
	Send
	Edit
	Delete
	DeleteNoPrompt
	ScrollUp
	ScrollDown
	Erase
	Retry
)

var tagNames = map[Tag]string{
	EnterInsert:        "enter-insert",
	EnterNormal:        "enter-normal",
	EnterCommand:       "enter-command",
	EnterScroll:        "enter-scroll",
	EnterGuildSelect:   "enter-guild-select",
	EnterChannelSelect: "enter-channel-select",
	ConfirmSelection:   "confirm",
	Send:               "send",
	Edit:               "edit",
	Delete:             "delete",
	DeleteNoPrompt:     "delete-no-prompt",
	ScrollUp:           "scroll-up",
	ScrollDown:         "scroll-down",
	Erase:              "erase",
	Retry:              "retry",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "unknown"
}

// Type inserts one rune into the active draft.
type Type struct {
	Rune rune
}

func (Tag) action()  {}
func (Type) action() {}
