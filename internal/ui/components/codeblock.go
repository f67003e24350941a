// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lingochat/internal/ui/styles"
)

// =============================================================================
// CODE BLOCK
// =============================================================================

// CodeBlock is one fenced block from a markdown message.
type CodeBlock struct {
	Language string
	Code     string
}

// Render draws the block with syntax highlighting and line numbers. index
// is the 1-based number shown in the badge and used by the copy action;
// zero hides it.
// USABILITY: Syntax highlighting for better code readability
func (c CodeBlock) Render(theme *styles.Theme, index, maxWidth int) string {
	code := strings.TrimRight(c.Code, "\n")
	lines := strings.Split(highlightCode(code, c.Language), "\n")

	lineNumStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Width(4).
		Align(lipgloss.Right).
		MarginRight(1)

	rendered := make([]string, 0, len(lines)+1)

	badge := c.Language
	if badge == "" {
		badge = "code"
	}
	if index > 0 {
		badge = "[" + strconv.Itoa(index) + "] " + badge
	}
	rendered = append(rendered, theme.CodeLangBadge.Render(badge))

	for i, line := range lines {
		rendered = append(rendered, lineNumStyle.Render(strconv.Itoa(i+1))+line)
	}

	if maxWidth < 20 {
		maxWidth = 20
	}
	return theme.CodeBlock.MaxWidth(maxWidth).Render(strings.Join(rendered, "\n"))
}

// =============================================================================
// MARKDOWN CODE BLOCK PARSER
// =============================================================================

// Segment is a run of markdown prose or a fenced code block.
type Segment struct {
	Prose string
	Code  *CodeBlock
}

// SplitCodeBlocks splits markdown into prose and fenced code segments in
// order. An unclosed fence (common mid-stream) runs to the end of the text.
func SplitCodeBlocks(text string) []Segment {
	var segments []Segment
	var prose, code []string
	var language string
	inCode := false

	flushProse := func() {
		if len(prose) > 0 {
			if p := strings.Join(prose, "\n"); strings.TrimSpace(p) != "" {
				segments = append(segments, Segment{Prose: p})
			}
			prose = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				segments = append(segments, Segment{Code: &CodeBlock{Language: language, Code: strings.Join(code, "\n")}})
				code = nil
				language = ""
				inCode = false
			} else {
				flushProse()
				language = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				inCode = true
			}
			continue
		}
		if inCode {
			code = append(code, line)
		} else {
			prose = append(prose, line)
		}
	}

	if inCode {
		segments = append(segments, Segment{Code: &CodeBlock{Language: language, Code: strings.Join(code, "\n")}})
	}
	flushProse()
	return segments
}

// ExtractCodeBlocks returns the fenced code blocks of text in order.
func ExtractCodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock
	for _, s := range SplitCodeBlocks(text) {
		if s.Code != nil {
			blocks = append(blocks, *s.Code)
		}
	}
	return blocks
}

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// highlightCode applies ANSI syntax highlighting, returning code unchanged
// when highlighting fails.
func highlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
