// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hearth-chat/hearth/lib/chat"
)

// Setting keys accepted by "set".
const (
	KeyPageSize   = "page_size"
	KeyRetention  = "retention"
	KeyTimestamps = "timestamps"
	KeyPresence   = "presence"
)

// Keys lists the setting keys in display order.
var Keys = []string{KeyPageSize, KeyRetention, KeyTimestamps, KeyPresence}

// Settings are the runtime-adjustable session settings.
type Settings struct {
	PageSize   int
	Retention  int
	Timestamps bool
	Presence   chat.Presence
}

// With returns a copy of s with key set to the parsed value.
func (s Settings) With(key, value string) (Settings, error) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyPageSize, KeyRetention:
		number, err := strconv.Atoi(value)
		if err != nil || number <= 0 {
			return s, fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
		if key == KeyPageSize {
			s.PageSize = number
		} else {
			s.Retention = number
		}
	case KeyTimestamps:
		enabled, err := parseBool(value)
		if err != nil {
			return s, fmt.Errorf("%s: %w", key, err)
		}
		s.Timestamps = enabled
	case KeyPresence:
		presence, err := chat.ParsePresence(value)
		if err != nil {
			return s, err
		}
		s.Presence = presence
	default:
		return s, fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(Keys, ", "))
	}
	return s, nil
}

// Value returns the display text of a setting.
func (s Settings) Value(key string) string {
	switch key {
	case KeyPageSize:
		return strconv.Itoa(s.PageSize)
	case KeyRetention:
		return strconv.Itoa(s.Retention)
	case KeyTimestamps:
		if s.Timestamps {
			return "on"
		}
		return "off"
	case KeyPresence:
		return string(s.Presence)
	}
	return ""
}

// parseBool accepts strconv's forms plus on/off and yes/no.
func parseBool(value string) (bool, error) {
	lowered := strings.ToLower(value)
	switch {
	case slices.Contains([]string{"on", "yes", "y"}, lowered):
		return true, nil
	case slices.Contains([]string{"off", "no", "n"}, lowered):
		return false, nil
	}
	enabled, err := strconv.ParseBool(lowered)
	if err != nil {
		return false, fmt.Errorf("want on or off, got %q", value)
	}
	return enabled, nil
}
