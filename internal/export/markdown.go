// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/lingochat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders doc as Markdown with optional YAML frontmatter.
func (e *MarkdownExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(doc.Title))
		fmt.Fprintf(&sb, "language: %s\n", escapeYAML(doc.Language))
		if doc.Model != "" {
			fmt.Fprintf(&sb, "model: %s\n", escapeYAML(doc.Model))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(doc.Transcript))
		fmt.Fprintf(&sb, "exported: %s\n", doc.Exported.Format(time.RFC3339))
		sb.WriteString("generator: lingochat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(strings.Join(strings.Fields(doc.Title), " ")))

	for i, msg := range doc.Transcript {
		fmt.Fprintf(&sb, "### %s\n\n", msg.Role.DisplayName())
		sb.WriteString(e.formatMessage(msg))
		sb.WriteString("\n\n")
		if i < len(doc.Transcript)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "*Exported from lingochat on %s*\n", doc.Exported.Format("January 2, 2006 at 3:04 PM"))
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatMessage writes parts in order; model text is already Markdown.
func (e *MarkdownExporter) formatMessage(msg model.Message) string {
	var blocks []string
	for _, p := range msg.Parts {
		switch {
		case p.IsImage() && e.options.EmbedImages:
			blocks = append(blocks, fmt.Sprintf("![attached image](%s)", dataURI(*p.Image)))
		case p.IsImage():
			blocks = append(blocks, fmt.Sprintf("*[image: %s]*", imageSummary(*p.Image)))
		case strings.TrimSpace(p.Text) != "":
			blocks = append(blocks, strings.TrimSpace(p.Text))
		}
	}

	if len(msg.Citations) > 0 {
		var src strings.Builder
		src.WriteString("**Sources**\n\n")
		for i, c := range msg.Citations {
			fmt.Fprintf(&src, "%d. [%s](%s)\n", i+1, escapeMarkdown(c.DisplayTitle()), c.URI)
		}
		blocks = append(blocks, strings.TrimRight(src.String(), "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that break headings and link text.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	)
	return r.Replace(s)
}

// escapeYAML quotes values containing YAML special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return "\"" + s + "\""
	}
	return s
}
