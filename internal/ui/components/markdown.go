// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/lingochat/internal/ui/styles"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// Markdown renders message text: prose through glamour, fenced code through
// CodeBlock so every block carries its copy number.
type Markdown struct {
	theme *styles.Theme

	mu       sync.Mutex
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer for theme.
func NewMarkdown(theme *styles.Theme) *Markdown {
	return &Markdown{theme: theme}
}

// Render renders text wrapped to width.
func (m *Markdown) Render(text string, width int) string {
	if width < 20 {
		width = 20
	}

	var out []string
	codeIndex := 0
	for _, seg := range SplitCodeBlocks(text) {
		if seg.Code != nil {
			codeIndex++
			out = append(out, seg.Code.Render(m.theme, codeIndex, width))
			continue
		}
		out = append(out, m.renderProse(seg.Prose, width))
	}
	return strings.Join(out, "\n")
}

// renderProse falls back to the raw text if glamour is unavailable.
func (m *Markdown) renderProse(text string, width int) string {
	r := m.rendererFor(width)
	if r == nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}

// rendererFor caches one glamour renderer per width; building one is
// expensive and happens on every resize otherwise.
// PERFORMANCE: Reuse the renderer across streaming re-renders.
func (m *Markdown) rendererFor(width int) *glamour.TermRenderer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renderer != nil && m.width == width {
		return m.renderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	m.renderer = r
	m.width = width
	return r
}
