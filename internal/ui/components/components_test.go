// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(styles.ModeDark)
}

// =============================================================================
// CODE BLOCK TESTS
// =============================================================================

func TestSplitCodeBlocks(t *testing.T) {
	text := "Intro line\n\n```go\nfmt.Println(1)\n```\nMiddle\n```\nplain\n```"
	segs := SplitCodeBlocks(text)
	require.Len(t, segs, 4)
	assert.Equal(t, "Intro line\n", segs[0].Prose)
	require.NotNil(t, segs[1].Code)
	assert.Equal(t, "go", segs[1].Code.Language)
	assert.Equal(t, "fmt.Println(1)", segs[1].Code.Code)
	assert.Equal(t, "Middle", segs[2].Prose)
	assert.Equal(t, "", segs[3].Code.Language)
	assert.Equal(t, "plain", segs[3].Code.Code)
}

func TestSplitCodeBlocks_UnclosedFence(t *testing.T) {
	segs := SplitCodeBlocks("Here:\n```python\nprint('hi')")
	require.Len(t, segs, 2)
	require.NotNil(t, segs[1].Code)
	assert.Equal(t, "print('hi')", segs[1].Code.Code)
}

func TestExtractCodeBlocks(t *testing.T) {
	blocks := ExtractCodeBlocks("no code here")
	assert.Empty(t, blocks)

	blocks = ExtractCodeBlocks("```sh\nls\n```\ntext\n```js\nx()\n```")
	require.Len(t, blocks, 2)
	assert.Equal(t, "ls", blocks[0].Code)
	assert.Equal(t, "js", blocks[1].Language)
}

func TestCodeBlockRender_NumberedBadge(t *testing.T) {
	cb := CodeBlock{Language: "go", Code: "package main\n"}
	out := ansi.Strip(cb.Render(testTheme(), 2, 60))
	assert.Contains(t, out, "[2] go")
	assert.Contains(t, out, "package")
	assert.Contains(t, out, "1")
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageView_Placeholder(t *testing.T) {
	theme := testTheme()
	v := MessageView{Theme: theme, Markdown: NewMarkdown(theme), Width: 60, Pending: "Thinking"}
	out := ansi.Strip(v.Render(model.Placeholder()))
	assert.Contains(t, out, "Gemini")
	assert.Contains(t, out, "Thinking")
}

func TestMessageView_UserWithImage(t *testing.T) {
	theme := testTheme()
	img := &model.InlineData{MimeType: "image/png", Data: "aGVsbG8="}
	v := MessageView{Theme: theme, Markdown: NewMarkdown(theme), Width: 60}
	out := ansi.Strip(v.Render(model.NewUserMessage("what is this", img)))
	assert.Contains(t, out, "You")
	assert.Contains(t, out, "[image image/png")
	assert.Contains(t, out, "what is this")
	assert.Less(t, strings.Index(out, "[image"), strings.Index(out, "what is this"))
}

func TestMessageView_SelectedHints(t *testing.T) {
	theme := testTheme()
	msg := model.NewModelMessage("Try:\n```go\nx := 1\n```\n```go\ny := 2\n```")
	v := MessageView{Theme: theme, Markdown: NewMarkdown(theme), Width: 80, Selected: true}
	out := ansi.Strip(v.Render(msg))
	assert.Contains(t, out, "1-2 copy code")
	assert.Contains(t, out, "s speak")

	v.Speaking = true
	out = ansi.Strip(v.Render(msg))
	assert.Contains(t, out, "s stop")
}

func TestRenderSources(t *testing.T) {
	citations := []model.Citation{
		{URI: "https://go.dev/doc", Title: "Go docs"},
		{URI: "https://example.com/a"},
	}
	out := ansi.Strip(RenderSources(testTheme(), citations, 60))
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "SOURCES", lines[0])
	assert.Contains(t, lines[1], "1. Go docs (go.dev)")
	assert.Contains(t, lines[2], "2. https://example.com/a")
}

func TestRenderSources_TruncatesWideTitles(t *testing.T) {
	citations := []model.Citation{{URI: "https://a.jp", Title: strings.Repeat("日本語", 20)}}
	out := ansi.Strip(RenderSources(testTheme(), citations, 30))
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 30)
	}
	assert.Contains(t, out, "…")
}

func TestImageLabel(t *testing.T) {
	label := ImageLabel(model.InlineData{MimeType: "image/jpeg", Data: strings.Repeat("A", 4096)})
	assert.Equal(t, "[image image/jpeg 3.0 KB]", label)
}

// =============================================================================
// HEADER TESTS
// =============================================================================

func TestHeader_Badges(t *testing.T) {
	h := Header{Title: "lingochat", Language: "French", Model: "gemini-2.5-flash", Search: true, SpeechInput: true, Listening: true}
	out := ansi.Strip(h.View(testTheme(), 80))
	assert.Contains(t, out, "lingochat")
	assert.Contains(t, out, "French · gemini-2.5-flash")
	assert.Contains(t, out, "search")
	assert.Contains(t, out, "● mic")

	h = Header{Title: "lingochat", Language: "French"}
	out = ansi.Strip(h.View(testTheme(), 80))
	assert.NotContains(t, out, "mic", "mic badge hidden without recognizer")
}

// =============================================================================
// FUZZY / PICKER TESTS
// =============================================================================

func TestFuzzyFilter(t *testing.T) {
	targets := []string{"English", "Spanish", "Japanese", "Polish"}
	matches := FuzzyFilter("sh", targets)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Contains(t, strings.ToLower(m.Target), "s")
		assert.Equal(t, targets[m.Index], m.Target)
	}

	assert.Empty(t, FuzzyFilter("xyz", targets))
	assert.Len(t, FuzzyFilter("", targets), 4)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLanguagePicker_FilterAndSelect(t *testing.T) {
	p := NewLanguagePicker(testTheme())
	p.Show("English")
	require.True(t, p.IsVisible())

	sel, ok := p.Selected()
	require.True(t, ok)
	assert.Equal(t, "English", sel.Name, "current language preselected")

	p, _ = p.Update(keyRunes("japa"))
	sel, ok = p.Selected()
	require.True(t, ok)
	assert.Equal(t, "Japanese", sel.Name)

	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(LanguageSelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "ja-JP", msg.Language.Code)
	assert.False(t, p.IsVisible())
}

func TestLanguagePicker_Navigate(t *testing.T) {
	p := NewLanguagePicker(testTheme())
	p.Show("English")

	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	sel, _ := p.Selected()
	assert.Equal(t, model.Languages[1].Name, sel.Name)

	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyUp})
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyUp})
	sel, _ = p.Selected()
	assert.Equal(t, model.Languages[0].Name, sel.Name, "cursor clamps at top")

	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	_, ok := cmd().(PickerClosedMsg)
	assert.True(t, ok)
	assert.False(t, p.IsVisible())
	assert.Empty(t, p.View(80))
}
