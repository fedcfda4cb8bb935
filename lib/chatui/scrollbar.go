// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderScrollbar produces a single-column scrollbar of the given
// height. The thumb marks the visible window within the loaded
// history; offset is the index of the first visible message.
func renderScrollbar(style, thumb lipgloss.Style, height, total, visible, offset int) string {
	if height <= 0 {
		return ""
	}
	lines := make([]string, height)

	if total <= visible || total <= 0 {
		for index := range lines {
			lines[index] = thumb.Render("┃")
		}
		return strings.Join(lines, "\n")
	}

	// Proportional thumb, at least one row.
	thumbSize := max(1, height*visible/total)
	scrollableRange := total - visible
	trackRange := height - thumbSize
	thumbOffset := 0
	if trackRange > 0 {
		thumbOffset = offset * trackRange / scrollableRange
	}
	thumbOffset = min(thumbOffset, height-thumbSize)

	for index := range lines {
		if index >= thumbOffset && index < thumbOffset+thumbSize {
			lines[index] = thumb.Render("┃")
		} else {
			lines[index] = style.Render("│")
		}
	}
	return strings.Join(lines, "\n")
}
