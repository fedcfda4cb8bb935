// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/hearth-chat/hearth/lib/chat"
	"github.com/hearth-chat/hearth/lib/mode"
)

// chromeHeight is the header, separator, input line, and status line.
const chromeHeight = 4

// styles are the theme colors bound to a renderer.
type styles struct {
	renderer *lipgloss.Renderer
	theme    Theme

	header    lipgloss.Style
	normal    lipgloss.Style
	faint     lipgloss.Style
	selected  lipgloss.Style
	own       lipgloss.Style
	other     lipgloss.Style
	pending   lipgloss.Style
	failed    lipgloss.Style
	errorText lipgloss.Style
	warning   lipgloss.Style
	help      lipgloss.Style
	border    lipgloss.Style
	thumb     lipgloss.Style
	unread    lipgloss.Style
	connected lipgloss.Style
	offline   lipgloss.Style
}

func newStyles(renderer *lipgloss.Renderer, theme Theme) styles {
	style := renderer.NewStyle
	return styles{
		renderer:  renderer,
		theme:     theme,
		header:    style().Foreground(theme.HeaderForeground).Bold(true),
		normal:    style().Foreground(theme.NormalText),
		faint:     style().Foreground(theme.FaintText),
		selected:  style().Foreground(theme.SelectedForeground).Background(theme.SelectedBackground),
		own:       style().Foreground(theme.OwnAuthor).Bold(true),
		other:     style().Foreground(theme.OtherAuthor).Bold(true),
		pending:   style().Foreground(theme.PendingText).Italic(true),
		failed:    style().Foreground(theme.FailedText),
		errorText: style().Foreground(theme.ErrorText).Bold(true),
		warning:   style().Foreground(theme.WarningText),
		help:      style().Foreground(theme.HelpText),
		border:    style().Foreground(theme.BorderColor),
		thumb:     style().Foreground(theme.FaintText),
		unread:    style().Foreground(theme.UnreadBadge).Bold(true),
		connected: style().Foreground(theme.Connected),
		offline:   style().Foreground(theme.Offline).Bold(true),
	}
}

func (s styles) badge(name string) lipgloss.Style {
	return s.renderer.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(s.theme.ModeColor(name)).
		Bold(true).
		Padding(0, 1)
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready || !model.hasFrame {
		return "Connecting..."
	}

	bodyHeight := max(1, model.height-chromeHeight)
	sections := []string{
		model.renderHeader(),
		model.renderBody(bodyHeight),
		model.styles.border.Render(strings.Repeat("─", model.width)),
		model.renderInput(),
		model.renderStatus(),
	}
	return strings.Join(sections, "\n")
}

// renderHeader is "guild › #channel" on the left and the user and
// connection state on the right.
func (model Model) renderHeader() string {
	snapshot := model.snapshot

	location := "hearth"
	if snapshot.Guild.ID != "" {
		location = snapshot.Guild.Label()
	}
	if snapshot.Channel.ID != "" {
		location += " › #" + snapshot.Channel.Label()
	}
	left := model.styles.header.Render(location)

	connection := model.styles.connected.Render("● online")
	if !snapshot.Connected {
		connection = model.styles.offline.Render("○ offline")
	}
	right := model.styles.faint.Render(snapshot.Identity.UserID) + "  " + connection

	return joinEnds(left, right, model.width)
}

// joinEnds places left and right at the two ends of a width-wide line,
// truncating left when they do not fit.
func joinEnds(left, right string, width int) string {
	rightWidth := ansi.StringWidth(right)
	space := width - rightWidth - 1
	if space <= 0 {
		return ansi.Truncate(left, width, "…")
	}
	left = ansi.Truncate(left, space, "…")
	gap := width - ansi.StringWidth(left) - rightWidth
	return left + strings.Repeat(" ", max(1, gap)) + right
}

func (model Model) renderBody(height int) string {
	width := max(1, model.width-1)
	var lines []string
	var total, visible, offset int

	switch current := model.snapshot.Mode.(type) {
	case mode.GuildSelect:
		lines = model.renderGuildList(current, height, width)
	case mode.ChannelSelect:
		lines = model.renderChannelList(current, height, width)
	default:
		lines, total, visible, offset = model.renderMessages(height, width)
	}

	// Messages sit at the bottom of the pane, lists at the top.
	if _, ok := model.snapshot.Mode.(mode.GuildSelect); !ok {
		if _, ok := model.snapshot.Mode.(mode.ChannelSelect); !ok {
			padding := make([]string, max(0, height-len(lines)))
			lines = append(padding, lines...)
		}
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for index, line := range lines {
		lines[index] = padRight(line, width)
	}

	text := strings.Join(lines, "\n")
	scrollbar := renderScrollbar(model.styles.border, model.styles.thumb, height, total, visible, offset)
	return lipgloss.JoinHorizontal(lipgloss.Top, text, scrollbar)
}

// messageWindow picks the visible slice of count messages: the saved
// scroll offset, moved as needed to keep the selection on screen.
func messageWindow(count, height, topOffset, selected int) (first, last int) {
	if count == 0 {
		return 0, -1
	}
	last = min(count-1, max(0, count-1-topOffset))
	if selected >= 0 {
		if selected > last {
			last = selected
		}
		if selected < last-height+1 {
			last = min(count-1, selected+height-1)
		}
	}
	first = max(0, last-height+1)
	return first, last
}

func (model Model) renderMessages(height, width int) (lines []string, total, visible, offset int) {
	snapshot := model.snapshot
	if snapshot.Channel.ID == "" {
		return []string{model.styles.faint.Render("No channel open. Press c to pick one, or g for guilds.")}, 0, 0, 0
	}

	messages := snapshot.Messages
	selected := -1
	confirmDelete := false
	if scroll, ok := snapshot.Mode.(mode.Scroll); ok {
		selected = scroll.Selected
		confirmDelete = scroll.ConfirmDelete
	}

	first, last := messageWindow(len(messages), height, snapshot.Scroll.TopOffset, selected)

	switch {
	case snapshot.LoadingHistory:
		lines = append(lines, model.styles.faint.Render("loading older messages…"))
	case first == 0 && snapshot.ReachedStart:
		lines = append(lines, model.styles.faint.Render("beginning of #"+snapshot.Channel.Label()))
	case len(messages) == 0:
		lines = append(lines, model.styles.faint.Render("no messages yet"))
	}

	for index := first; index <= last; index++ {
		lines = append(lines, model.renderMessage(messages[index], index == selected, confirmDelete && index == selected, width))
	}
	// The banner gives way to messages when the pane is full.
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return lines, len(messages), last - first + 1, first
}

// renderMessage formats one message as a single line.
func (model Model) renderMessage(message chat.Message, selected, confirmDelete bool, width int) string {
	plain := selected
	paint := func(style lipgloss.Style, text string) string {
		if plain {
			return text
		}
		return style.Render(text)
	}

	var builder strings.Builder
	if model.snapshot.Settings.Timestamps && !message.CreatedAt.IsZero() {
		builder.WriteString(paint(model.styles.faint, message.CreatedAt.Format("15:04")))
		builder.WriteString(" ")
	}

	authorStyle := model.styles.other
	if message.Author == model.snapshot.Identity.UserID {
		authorStyle = model.styles.own
	}
	builder.WriteString(paint(authorStyle, displayName(message.Author)))
	builder.WriteString(" ")

	content := strings.ReplaceAll(message.Content, "\n", " ↵ ")
	switch message.Status {
	case chat.StatusPending:
		builder.WriteString(paint(model.styles.pending, content+" …"))
	case chat.StatusFailed:
		builder.WriteString(paint(model.styles.normal, content))
		builder.WriteString(paint(model.styles.failed, " ✗ not sent: "+message.Failure+" (r to retry)"))
	default:
		builder.WriteString(paint(model.styles.normal, content))
		if message.Edited {
			builder.WriteString(paint(model.styles.faint, " (edited)"))
		}
		if message.Failure != "" {
			builder.WriteString(paint(model.styles.failed, " ! "+message.Failure+" (r to retry)"))
		}
	}

	line := ansi.Truncate(builder.String(), width, "…")
	if !selected {
		return line
	}
	style := model.styles.selected
	if confirmDelete {
		style = style.Foreground(model.styles.theme.ErrorText)
	}
	return style.Render(padRight(line, width))
}

// displayName shortens a Matrix user ID to its localpart.
func displayName(userID string) string {
	name := strings.TrimPrefix(userID, "@")
	if colon := strings.IndexByte(name, ':'); colon >= 0 {
		name = name[:colon]
	}
	if name == "" {
		return userID
	}
	return name
}

func (model Model) renderGuildList(current mode.GuildSelect, height, width int) []string {
	lines := []string{model.styles.header.Render("Guilds")}
	if len(current.Guilds) == 0 {
		return append(lines, model.styles.faint.Render("loading…"))
	}
	rows := make([]string, len(current.Guilds))
	for index, guild := range current.Guilds {
		unread := 0
		for _, channelID := range guild.ChannelIDs {
			unread += model.snapshot.Unread[channelID]
		}
		rows[index] = model.renderRow(guild.Label(), unread, index == current.Cursor, width)
	}
	return append(lines, visibleRows(rows, current.Cursor, height-1)...)
}

func (model Model) renderChannelList(current mode.ChannelSelect, height, width int) []string {
	title := "Channels"
	if model.snapshot.Guild.ID == current.GuildID && model.snapshot.Guild.Name != "" {
		title += " in " + model.snapshot.Guild.Name
	} else {
		for _, guild := range model.snapshot.Guilds {
			if guild.ID == current.GuildID {
				title += " in " + guild.Label()
			}
		}
	}
	lines := []string{model.styles.header.Render(title)}
	if len(current.Channels) == 0 {
		return append(lines, model.styles.faint.Render("loading…"))
	}
	rows := make([]string, len(current.Channels))
	for index, channel := range current.Channels {
		rows[index] = model.renderRow("#"+channel.Label(), model.snapshot.Unread[channel.ID], index == current.Cursor, width)
	}
	return append(lines, visibleRows(rows, current.Cursor, height-1)...)
}

func (model Model) renderRow(label string, unread int, selected bool, width int) string {
	marker := "  "
	if selected {
		marker = "› "
	}
	badge := ""
	if unread > 0 {
		badge = fmt.Sprintf(" (%d)", unread)
	}
	if selected {
		return model.styles.selected.Render(padRight(ansi.Truncate(marker+label+badge, width, "…"), width))
	}
	row := marker + model.styles.normal.Render(label)
	if badge != "" {
		row += model.styles.unread.Render(badge)
	}
	return ansi.Truncate(row, width, "…")
}

// visibleRows is the height-row window of rows that contains cursor.
func visibleRows(rows []string, cursor, height int) []string {
	if height <= 0 {
		return nil
	}
	if len(rows) <= height {
		return rows
	}
	first := max(0, min(cursor-height/2, len(rows)-height))
	return rows[first : first+height]
}

// renderInput is the draft being composed, the delete prompt, or a
// hint for the mode.
func (model Model) renderInput() string {
	width := model.width
	switch current := model.snapshot.Mode.(type) {
	case mode.Insert:
		prompt := "› "
		if current.IsEditing() {
			prompt = "edit › "
		}
		return model.styles.normal.Render(prompt) + tail(current.Draft+"█", width-ansi.StringWidth(prompt))
	case mode.Command:
		return model.styles.warning.Render(":") + tail(current.Draft+"█", width-1)
	case mode.Scroll:
		if current.ConfirmDelete {
			return model.styles.errorText.Render(ansi.Truncate("Delete this message? d or Enter to confirm, Esc to cancel", width, "…"))
		}
	}
	return model.styles.faint.Render(ansi.Truncate("Press i to write a message, : for a command", width, "…"))
}

// tail keeps the end of text that fits in width cells, so the cursor
// stays visible while typing a long draft.
func tail(text string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(text)
	for len(runes) > 0 && ansi.StringWidth(string(runes)) > width {
		runes = runes[1:]
	}
	return string(runes)
}

// renderStatus is the mode badge followed by, in order of preference:
// the engine's status message, a recent log record, or key help.
func (model Model) renderStatus() string {
	name := "-"
	if model.snapshot.Mode != nil {
		name = model.snapshot.Mode.Name()
	}
	badge := model.styles.badge(name).Render(name)
	width := max(0, model.width-ansi.StringWidth(badge)-1)

	var text string
	status := model.snapshot.Status
	switch {
	case status.Text != "" && status.Error:
		text = model.styles.errorText.Render(ansi.Truncate(status.Text, width, "…"))
	case model.logLine != nil:
		style := model.styles.warning
		if model.logLine.Level >= slog.LevelError {
			style = model.styles.errorText
		}
		text = style.Render(ansi.Truncate(model.logLine.Summary, width, "…"))
	case status.Text != "":
		text = model.styles.normal.Render(ansi.Truncate(status.Text, width, "…"))
	default:
		text = model.styles.help.Render(ansi.Truncate(helpLine(model.keys.Help(model.snapshot.Mode)), width, "…"))
	}
	return badge + " " + text
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return strings.Join(parts, " · ")
}

// padRight pads line with spaces to width cells.
func padRight(line string, width int) string {
	if gap := width - ansi.StringWidth(line); gap > 0 {
		return line + strings.Repeat(" ", gap)
	}
	return line
}
