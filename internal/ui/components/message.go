// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/ui/styles"
	"github.com/jeranaias/lingochat/internal/util"
)

// =============================================================================
// MESSAGE VIEW
// =============================================================================

// MessageView renders one transcript message.
type MessageView struct {
	Theme    *styles.Theme
	Markdown *Markdown
	Width    int

	// Selected draws the focus marker and action hints.
	Selected bool
	// Speaking marks the selected message as being read aloud.
	Speaking bool
	// Pending is shown in place of an empty placeholder.
	Pending string
}

// Render draws msg: role label, image chips, body, sources.
func (v MessageView) Render(msg model.Message) string {
	t := v.Theme
	width := v.Width
	if width < 24 {
		width = 24
	}
	bodyWidth := width - 3

	var label string
	if msg.Role == model.RoleUser {
		label = t.UserLabel.Render(msg.Role.DisplayName())
	} else {
		label = t.ModelLabel.Render(msg.Role.DisplayName())
	}

	var blocks []string
	for _, img := range msg.Images() {
		blocks = append(blocks, t.ImageChip.Render(ImageLabel(img)))
	}

	switch {
	case msg.IsPlaceholder():
		pending := v.Pending
		if pending == "" {
			pending = "..."
		}
		blocks = append(blocks, t.Placeholder.Render(pending))
	case msg.Role == model.RoleUser:
		if text := msg.Text(); text != "" {
			blocks = append(blocks, lipgloss.NewStyle().Width(bodyWidth).Render(text))
		}
	default:
		blocks = append(blocks, v.Markdown.Render(msg.Text(), bodyWidth))
	}

	if len(msg.Citations) > 0 {
		blocks = append(blocks, RenderSources(t, msg.Citations, bodyWidth))
	}

	bubble := t.ModelBubble
	if msg.Role == model.RoleUser {
		bubble = t.UserBubble
	}
	if v.Selected {
		bubble = t.Selected
		label += " " + t.ActionHint.Render(v.actionHint(msg))
	}

	return lipgloss.JoinVertical(lipgloss.Left, label, bubble.Render(strings.Join(blocks, "\n")))
}

func (v MessageView) actionHint(msg model.Message) string {
	var hints []string
	if n := len(ExtractCodeBlocks(msg.Text())); n > 0 {
		if n == 1 {
			hints = append(hints, "c copy code")
		} else {
			hints = append(hints, fmt.Sprintf("1-%d copy code", min(n, 9)))
		}
	}
	if msg.Role == model.RoleModel && msg.Text() != "" {
		if v.Speaking {
			hints = append(hints, "s stop")
		} else {
			hints = append(hints, "s speak")
		}
	}
	hints = append(hints, "y copy text")
	return strings.Join(hints, " · ")
}

// ImageLabel describes an attachment, e.g. "[image image/png 34.0 KB]".
func ImageLabel(img model.InlineData) string {
	return fmt.Sprintf("[image %s %s]", img.MimeType, util.FormatBytes(img.Size()))
}

// =============================================================================
// SOURCES LIST
// =============================================================================

// RenderSources draws the numbered citation list under a model message.
// UNICODE: Titles are truncated by display width, not bytes.
func RenderSources(t *styles.Theme, citations []model.Citation, width int) string {
	lines := []string{t.SourcesTitle.Render("SOURCES")}
	for i, c := range citations {
		num := fmt.Sprintf("%d. ", i+1)
		avail := width - util.StringWidth(num)
		title := util.TruncateWidth(c.DisplayTitle(), avail)
		line := t.SourceNumber.Render(num) + t.SourceLink.Render(title)
		if c.Title != "" && c.URI != "" && avail > util.StringWidth(title)+4 {
			host := util.TruncateWidth(hostOf(c.URI), avail-util.StringWidth(title)-3)
			line += t.SourceNumber.Render(" (" + host + ")")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func hostOf(uri string) string {
	s := uri
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}
