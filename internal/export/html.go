// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/jeranaias/lingochat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports transcripts to a standalone HTML page with embedded
// CSS. Message text is converted from Markdown with goldmark.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		// SECURITY: Raw HTML in replies is dropped (no WithUnsafe), and
		// goldmark refuses javascript: link targets.
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Export renders doc as HTML.
func (e *HTMLExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}
	lang := html.EscapeString(langAttr(doc.Language))

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&sb, "<html lang=\"%s\">\n", lang)
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(doc.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"lingochat\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", doc.Exported.Format(time.RFC3339))
	sb.WriteString(htmlCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(doc))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range doc.Transcript {
		block, err := e.renderMessage(msg)
		if err != nil {
			return nil, err
		}
		sb.WriteString(block)
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>lingochat</strong> on %s</p>\n",
		doc.Exported.Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString(htmlScript)
	sb.WriteString("</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(doc *Document) string {
	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(doc.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Language:</strong> %s</span>\n", html.EscapeString(doc.Language))
	if doc.Model != "" {
		fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(doc.Model))
	}
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(doc.Transcript))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Exported:</strong> %s</span>\n", formatTimestamp(doc.Exported))
	sb.WriteString("                <button class=\"theme-toggle\" onclick=\"toggleTheme()\" title=\"Toggle theme\">[Theme]</button>\n")
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
	return sb.String()
}

func (e *HTMLExporter) renderMessage(msg model.Message) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "            <div class=\"message %s-message\">\n", msg.Role)
	fmt.Fprintf(&sb, "                <div class=\"role-label\">%s</div>\n", html.EscapeString(msg.Role.DisplayName()))
	sb.WriteString("                <div class=\"message-content\">\n")

	for _, p := range msg.Parts {
		switch {
		case p.IsImage() && e.options.EmbedImages:
			fmt.Fprintf(&sb, "<img class=\"attachment\" alt=\"attached image\" src=\"%s\">\n", html.EscapeString(dataURI(*p.Image)))
		case p.IsImage():
			fmt.Fprintf(&sb, "<p class=\"image-chip\">[image: %s]</p>\n", html.EscapeString(imageSummary(*p.Image)))
		case strings.TrimSpace(p.Text) != "":
			body, err := e.renderText(msg.Role, p.Text)
			if err != nil {
				return "", err
			}
			sb.WriteString(body)
		}
	}
	sb.WriteString("                </div>\n")

	if len(msg.Citations) > 0 {
		sb.WriteString("                <div class=\"sources\">\n")
		sb.WriteString("                    <div class=\"sources-title\">Sources</div>\n")
		sb.WriteString("                    <ol>\n")
		for _, c := range msg.Citations {
			fmt.Fprintf(&sb, "                        <li><a href=\"%s\" rel=\"noopener noreferrer\" target=\"_blank\">%s</a></li>\n",
				html.EscapeString(c.URI), html.EscapeString(c.DisplayTitle()))
		}
		sb.WriteString("                    </ol>\n")
		sb.WriteString("                </div>\n")
	}

	sb.WriteString("            </div>\n")
	return sb.String(), nil
}

// renderText converts model Markdown to HTML. User text is shown as typed.
func (e *HTMLExporter) renderText(role model.Role, text string) (string, error) {
	if role == model.RoleUser {
		escaped := html.EscapeString(strings.TrimSpace(text))
		return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>\n") + "</p>\n", nil
	}
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// langAttr maps a language name to its BCP 47 primary subtag for the
// document's lang attribute.
func langAttr(name string) string {
	l, ok := model.LookupLanguage(name)
	if !ok {
		return "en"
	}
	base, _ := l.Tag().Base()
	return base.String()
}

// =============================================================================
// EMBEDDED ASSETS
// =============================================================================

const htmlCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Noto Sans", "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Menlo", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-page: #14121f;
            --bg-card: #1e1b2e;
            --bg-header: #2a2640;
            --text: #e6e1f5;
            --text-muted: #8b85a8;
            --border: #3b3558;
            --user-bg: #232038;
            --model-bg: #1e1b2e;
            --code-bg: #14121f;
            --accent-user: #22d3ee;
            --accent-model: #a78bfa;
            --link: #67e8f9;
        }

        .light-theme {
            --bg-page: #f7f7fb;
            --bg-card: #ffffff;
            --bg-header: #efedf7;
            --text: #1f1b2e;
            --text-muted: #6b6680;
            --border: #e0dcef;
            --user-bg: #f2fbfd;
            --model-bg: #ffffff;
            --code-bg: #f5f4fa;
            --accent-user: #0891b2;
            --accent-model: #7c3aed;
            --link: #0e7490;
        }

        body {
            font-family: var(--font-sans);
            font-size: 16px;
            line-height: 1.6;
            color: var(--text);
            background: var(--bg-page);
            padding: 20px;
        }

        .container {
            max-width: 860px;
            margin: 0 auto;
            background: var(--bg-card);
            border-radius: 12px;
            overflow: hidden;
        }

        .header { padding: 28px 32px; background: var(--bg-header); border-bottom: 1px solid var(--border); }
        .header h1 { font-size: 26px; margin-bottom: 12px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; color: var(--text-muted); align-items: center; }
        .theme-toggle { margin-left: auto; background: var(--bg-card); color: var(--text); border: 1px solid var(--border); border-radius: 6px; padding: 4px 10px; cursor: pointer; }

        .conversation { padding: 24px 32px; }
        .message { margin-bottom: 20px; padding: 16px 20px; border-radius: 8px; border-left: 4px solid transparent; }
        .user-message { background: var(--user-bg); border-left-color: var(--accent-user); }
        .model-message { background: var(--model-bg); border-left-color: var(--accent-model); }
        .role-label { font-weight: 600; font-size: 14px; margin-bottom: 8px; }

        .message-content p { margin-bottom: 10px; }
        .message-content p:last-child { margin-bottom: 0; }
        .message-content ul, .message-content ol { margin: 0 0 10px 24px; }
        .message-content a, .sources a { color: var(--link); }
        .message-content pre { margin: 12px 0; padding: 14px; background: var(--code-bg); border: 1px solid var(--border); border-radius: 8px; overflow-x: auto; }
        .message-content code { font-family: var(--font-mono); font-size: 14px; }
        .message-content table { border-collapse: collapse; margin: 10px 0; }
        .message-content th, .message-content td { border: 1px solid var(--border); padding: 4px 10px; }
        .attachment { max-width: 100%; border-radius: 6px; margin-bottom: 10px; }
        .image-chip { color: var(--text-muted); font-style: italic; }

        .sources { margin-top: 12px; padding-top: 10px; border-top: 1px solid var(--border); font-size: 14px; }
        .sources-title { font-weight: 600; color: var(--text-muted); margin-bottom: 4px; }
        .sources ol { margin-left: 20px; }

        .footer { padding: 16px 32px; text-align: center; font-size: 13px; color: var(--text-muted); border-top: 1px solid var(--border); }

        @media print {
            body { padding: 0; }
            .theme-toggle { display: none; }
            .message { page-break-inside: avoid; }
        }

        @media (max-width: 768px) {
            body { padding: 8px; }
            .header, .conversation, .footer { padding: 16px; }
        }
    </style>
`

const htmlScript = `    <script>
        function toggleTheme() {
            const body = document.body;
            const next = body.classList.contains('dark-theme') ? 'light' : 'dark';
            body.classList.remove('dark-theme', 'light-theme');
            body.classList.add(next + '-theme');
            localStorage.setItem('lingochat-theme', next);
        }
        document.addEventListener('DOMContentLoaded', function() {
            const saved = localStorage.getItem('lingochat-theme');
            if (saved) {
                document.body.classList.remove('dark-theme', 'light-theme');
                document.body.classList.add(saved + '-theme');
            }
        });
    </script>
`
