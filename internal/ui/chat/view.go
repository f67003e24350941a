// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/ui/components"
	"github.com/jeranaias/lingochat/internal/ui/styles"
	"github.com/jeranaias/lingochat/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	body := m.viewport.View()
	if m.picker.IsVisible() {
		body = lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center,
			m.picker.View(m.width))
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.footerView())
}

func (m Model) headerView() string {
	lang := m.snap.Language
	if l, ok := model.LookupLanguage(lang); ok {
		if native := l.NativeName(); native != "" && !strings.EqualFold(native, l.Name) {
			lang += " (" + native + ")"
		}
	}
	return components.Header{
		Title:        "lingochat",
		Language:     lang,
		Model:        m.modelName,
		Search:       m.search,
		Listening:    m.listening,
		Speaking:     m.speaking,
		SpeechInput:  m.micSupported(),
		SpeechOutput: m.ttsSupported(),
	}.View(m.theme, m.width)
}

// footerView stacks, top to bottom: error banner, status or spinner,
// attachment chip, input and key help.
func (m Model) footerView() string {
	t := m.theme
	var rows []string

	if m.snap.Error != "" {
		text := styles.StatusIndicators.Error + " " + m.snap.Error
		rows = append(rows, t.ErrorBanner.Render(util.TruncateWidth(text, max(m.width-4, 10))))
	}

	switch {
	case m.spinner.IsActive():
		rows = append(rows, " "+m.spinner.View())
	case m.status != "":
		rows = append(rows, " "+m.status)
	case m.listening:
		rows = append(rows, " "+t.BadgeAlert.Render("Listening...")+" "+t.ShortcutDesc.Render("ctrl+r to stop"))
	default:
		rows = append(rows, "")
	}

	if m.attachment != nil {
		chip := t.Attachment.Render("+ " + components.ImageLabel(*m.attachment))
		rows = append(rows, " "+chip+" "+t.ShortcutDesc.Render("ctrl+x to remove"))
	}

	inputView := m.input.View()
	if m.mode == modeFocus {
		inputView = t.Placeholder.Render("Message actions: esc to return to the input")
	}
	rows = append(rows, t.InputContainer.Width(max(m.width-2, 10)).Render(inputView))

	var km help.KeyMap = composeHelp{m.keys}
	if m.mode == modeFocus {
		km = focusHelp{m.keys}
	}
	rows = append(rows, " "+m.help.View(km))

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript rebuilds the viewport content from the snapshot,
// keeping the view pinned to the bottom when it already was.
func (m *Model) renderTranscript() {
	m.dirty = false
	if !m.ready {
		return
	}

	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	width := m.viewport.Width - 1

	var b strings.Builder
	m.msgOffsets = m.msgOffsets[:0]
	line := 0

	transcript := m.snap.Transcript
	if len(transcript) == 0 {
		b.WriteString(m.emptyState())
	}
	for i, msg := range transcript {
		if i > 0 {
			b.WriteString("\n\n")
			line++
		}
		view := components.MessageView{
			Theme:    m.theme,
			Markdown: m.markdown,
			Width:    width,
			Selected: m.mode == modeFocus && i == m.selected,
			Speaking: m.speaking,
			Pending:  "Thinking...",
		}
		rendered := view.Render(msg)
		m.msgOffsets = append(m.msgOffsets, line)
		b.WriteString(rendered)
		line += lipgloss.Height(rendered)
	}

	m.viewport.SetContent(b.String())
	switch {
	case m.mode == modeFocus:
		m.scrollToSelected()
	case follow:
		m.viewport.GotoBottom()
	}
}

func (m Model) emptyState() string {
	t := m.theme
	switch {
	case m.snap.AwaitingGreeting():
		return t.GreetingHint.Render("Connecting to Gemini...")
	case m.snap.Error != "":
		return ""
	default:
		return t.GreetingHint.Render("Start typing to chat in " + m.snap.Language + ".")
	}
}

// scrollToSelected brings the focused message into view.
func (m *Model) scrollToSelected() {
	if m.selected < 0 || m.selected >= len(m.msgOffsets) {
		return
	}
	top := m.msgOffsets[m.selected]
	bottom := m.viewport.TotalLineCount()
	if m.selected+1 < len(m.msgOffsets) {
		bottom = m.msgOffsets[m.selected+1] - 1
	}
	switch {
	case top < m.viewport.YOffset:
		m.viewport.SetYOffset(top)
	case bottom > m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(max(top, bottom-m.viewport.Height))
	}
}
