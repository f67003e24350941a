// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lingochat/internal/ui/styles"
	"github.com/jeranaias/lingochat/internal/util"
)

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the top bar: title, language, model and toggle badges.
type Header struct {
	Title    string
	Language string
	Model    string

	Search       bool
	Listening    bool
	Speaking     bool
	SpeechInput  bool // microphone available
	SpeechOutput bool // read-aloud available
}

// View renders the header at width.
func (h Header) View(t *styles.Theme, width int) string {
	title := t.HeaderTitle.Render(h.Title)

	var badges []string
	if h.Search {
		badges = append(badges, t.BadgeActive.Render("search"))
	} else {
		badges = append(badges, t.Badge.Render("search"))
	}
	if h.SpeechInput {
		if h.Listening {
			badges = append(badges, t.BadgeAlert.Render("● mic"))
		} else {
			badges = append(badges, t.Badge.Render("mic"))
		}
	}
	if h.SpeechOutput && h.Speaking {
		badges = append(badges, t.BadgeActive.Render("speaking"))
	}
	right := strings.Join(badges, " ")

	// UNICODE: measure by cells so native-script labels line up.
	meta := h.Language
	if h.Model != "" {
		meta += " · " + h.Model
	}
	inner := width - 2
	avail := inner - lipgloss.Width(title) - lipgloss.Width(right) - 4
	if avail < 0 {
		avail = 0
	}
	left := title
	if avail > 0 {
		left += "  " + t.HeaderMeta.Render(util.TruncateWidth(meta, avail))
	}

	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return t.Header.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}
