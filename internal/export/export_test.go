// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lingochat/internal/model"
)

func sampleDoc() *Document {
	reply := model.NewModelMessage("Aquí tienes:\n\n```python\nprint('hola')\n```")
	reply.Citations = []model.Citation{
		{URI: "https://example.com/cafe", Title: "Café"},
		{URI: "https://example.org/x"},
	}
	return &Document{
		Title:    "Saludos",
		Language: "Spanish",
		Model:    "gemini-2.5-flash",
		Exported: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		Transcript: model.Transcript{
			model.NewUserMessage("hola", &model.InlineData{MimeType: "image/png", Data: "iVBORw0KGgo="}),
			reply,
		},
	}
}

// =============================================================================
// DOCUMENT
// =============================================================================

func TestNewDocumentTitle(t *testing.T) {
	tr := model.Transcript{
		model.NewModelMessage("¡Hola! Soy tu tutor."),
		model.NewUserMessage("¿Cómo se dice 'train station'?\nGracias", nil),
	}
	doc := NewDocument(tr, "Spanish", "m")
	assert.Equal(t, "¿Cómo se dice 'train station'?", doc.Title)

	doc = NewDocument(model.Transcript{model.NewModelMessage("Bonjour")}, "French", "m")
	assert.Equal(t, "French conversation", doc.Title)
}

func TestExportRejectsEmptyTranscript(t *testing.T) {
	for _, format := range Formats {
		exp, err := ForFormat(format, nil)
		require.NoError(t, err)
		_, err = exp.Export(&Document{Title: "x"})
		assert.ErrorIs(t, err, ErrEmptyTranscript, format)
	}
}

func TestForFormatUnknown(t *testing.T) {
	_, err := ForFormat("pdf", nil)
	assert.Error(t, err)

	exp, err := ForFormat(".HTML", nil)
	require.NoError(t, err)
	assert.Equal(t, ".html", exp.FileExtension())
}

// =============================================================================
// MARKDOWN
// =============================================================================

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleDoc())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: Saludos\nlanguage: Spanish\n"))
	assert.Contains(t, md, "### You")
	assert.Contains(t, md, "*[image: image/png, 8 B]*")
	assert.Contains(t, md, "```python\nprint('hola')\n```")
	assert.Contains(t, md, "1. [Café](https://example.com/cafe)")
	assert.Contains(t, md, "2. [https://example.org/x](https://example.org/x)")
}

func TestMarkdownEmbedsImages(t *testing.T) {
	opts := DefaultOptions()
	opts.EmbedImages = true
	out, err := NewMarkdownExporter(opts).Export(sampleDoc())
	require.NoError(t, err)
	assert.Contains(t, string(out), "![attached image](data:image/png;base64,iVBORw0KGgo=)")
}

func TestYAMLNewlineInjection(t *testing.T) {
	doc := sampleDoc()
	doc.Title = "Test\nInjection: malicious"
	out, err := NewMarkdownExporter(nil).Export(doc)
	require.NoError(t, err)

	for _, line := range strings.Split(string(out), "\n") {
		assert.False(t, strings.HasPrefix(line, "Injection:"), "newline escaped in frontmatter")
	}
	assert.Contains(t, string(out), `title: "Test\nInjection: malicious"`)
}

// =============================================================================
// JSON
// =============================================================================

func TestJSONExportDecodesBack(t *testing.T) {
	doc := sampleDoc()
	out, err := NewJSONExporter(nil).Export(doc)
	require.NoError(t, err)

	var raw struct {
		Title    string          `json:"title"`
		Language string          `json:"language"`
		Messages json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, "Saludos", raw.Title)
	assert.Equal(t, "Spanish", raw.Language)

	tr, err := model.DecodeTranscript(raw.Messages)
	require.NoError(t, err)
	assert.Equal(t, doc.Transcript, tr)
}

// =============================================================================
// HTML
// =============================================================================

func TestHTMLExport(t *testing.T) {
	out, err := NewHTMLExporter(nil).Export(sampleDoc())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, `<html lang="es">`)
	assert.Contains(t, page, `class="dark-theme"`)
	assert.Contains(t, page, `class="message model-message"`)
	assert.Contains(t, page, `<code class="language-python">`)
	assert.Contains(t, page, `href="https://example.com/cafe"`)
	assert.Contains(t, page, "[image: image/png, 8 B]")
}

func TestHTMLEscapesUserText(t *testing.T) {
	doc := sampleDoc()
	doc.Transcript[0] = model.NewUserMessage("<script>alert('xss')</script>", nil)
	out, err := NewHTMLExporter(nil).Export(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>alert")
	assert.Contains(t, string(out), "&lt;script&gt;")
}

func TestHTMLDropsRawHTMLInReplies(t *testing.T) {
	doc := sampleDoc()
	doc.Transcript[1] = model.NewModelMessage("hi <img src=x onerror=alert(1)> [x](javascript:alert(1))")
	out, err := NewHTMLExporter(nil).Export(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "onerror=alert")
	assert.NotContains(t, string(out), `href="javascript:`)
}

// =============================================================================
// FILES
// =============================================================================

func TestExportToFile(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "out")

	doc := sampleDoc()
	doc.Title = "a/b: c?"
	path, err := ExportToFile(doc, NewJSONExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, "lingochat_a-b-_c-_20250301_093000.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "conversation", sanitizeFilename(""))
	assert.Equal(t, "hola_mundo", sanitizeFilename("hola mundo"))
	assert.Equal(t, "x-y", sanitizeFilename("x\x01y"))
	assert.Len(t, []rune(sanitizeFilename(strings.Repeat("é", 80))), 50)
}
