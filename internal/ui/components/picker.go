// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/ui/styles"
)

// =============================================================================
// LANGUAGE PICKER
// =============================================================================

// LanguageSelectedMsg is emitted when the user confirms a language.
type LanguageSelectedMsg struct {
	Language model.Language
}

// PickerClosedMsg is emitted when the picker is dismissed without a choice.
type PickerClosedMsg struct{}

var pickerKeys = struct {
	Up, Down, Select, Close key.Binding
}{
	Up:     key.NewBinding(key.WithKeys("up", "ctrl+p")),
	Down:   key.NewBinding(key.WithKeys("down", "ctrl+n")),
	Select: key.NewBinding(key.WithKeys("enter")),
	Close:  key.NewBinding(key.WithKeys("esc", "ctrl+l")),
}

// LanguagePicker is an overlay listing the supported languages with fuzzy
// filtering.
type LanguagePicker struct {
	theme   *styles.Theme
	input   textinput.Model
	visible bool

	languages []model.Language
	filtered  []model.Language
	cursor    int
	current   string
}

// NewLanguagePicker creates a hidden picker over model.Languages.
func NewLanguagePicker(theme *styles.Theme) *LanguagePicker {
	ti := textinput.New()
	ti.Placeholder = "Type to filter..."
	ti.Prompt = "> "
	ti.CharLimit = 32

	p := &LanguagePicker{
		theme:     theme,
		input:     ti,
		languages: model.Languages,
	}
	p.updateFiltered()
	return p
}

// Show opens the picker with current preselected.
func (p *LanguagePicker) Show(current string) tea.Cmd {
	p.visible = true
	p.current = current
	p.input.SetValue("")
	p.updateFiltered()
	p.cursor = lo.IndexOf(lo.Map(p.filtered, func(l model.Language, _ int) string { return l.Name }), current)
	if p.cursor < 0 {
		p.cursor = 0
	}
	return p.input.Focus()
}

// Hide closes the picker.
func (p *LanguagePicker) Hide() {
	p.visible = false
	p.input.Blur()
}

// IsVisible reports whether the picker is open.
func (p *LanguagePicker) IsVisible() bool {
	return p.visible
}

// Selected returns the highlighted language.
func (p *LanguagePicker) Selected() (model.Language, bool) {
	if p.cursor < 0 || p.cursor >= len(p.filtered) {
		return model.Language{}, false
	}
	return p.filtered[p.cursor], true
}

// Update handles keys while the picker is visible.
func (p *LanguagePicker) Update(msg tea.Msg) (*LanguagePicker, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}

	switch {
	case key.Matches(keyMsg, pickerKeys.Close):
		p.Hide()
		return p, func() tea.Msg { return PickerClosedMsg{} }
	case key.Matches(keyMsg, pickerKeys.Select):
		lang, ok := p.Selected()
		p.Hide()
		if !ok {
			return p, func() tea.Msg { return PickerClosedMsg{} }
		}
		return p, func() tea.Msg { return LanguageSelectedMsg{Language: lang} }
	case key.Matches(keyMsg, pickerKeys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
		return p, nil
	case key.Matches(keyMsg, pickerKeys.Down):
		if p.cursor < len(p.filtered)-1 {
			p.cursor++
		}
		return p, nil
	}

	var cmd tea.Cmd
	before := p.input.Value()
	p.input, cmd = p.input.Update(msg)
	if p.input.Value() != before {
		p.updateFiltered()
		p.cursor = 0
	}
	return p, cmd
}

// updateFiltered matches the query against English and native names.
func (p *LanguagePicker) updateFiltered() {
	query := strings.TrimSpace(p.input.Value())
	if query == "" {
		p.filtered = p.languages
		return
	}
	targets := lo.Map(p.languages, func(l model.Language, _ int) string {
		return l.Name + " " + l.NativeName()
	})
	p.filtered = lo.Map(FuzzyFilter(query, targets), func(m ScoredMatch, _ int) model.Language {
		return p.languages[m.Index]
	})
}

// View renders the picker box.
func (p *LanguagePicker) View(width int) string {
	if !p.visible {
		return ""
	}
	t := p.theme
	query := strings.TrimSpace(p.input.Value())

	lines := []string{t.PickerTitle.Render("Language"), p.input.View(), ""}
	if len(p.filtered) == 0 {
		lines = append(lines, t.ActionHint.Render("  no match"))
	}
	for i, lang := range p.filtered {
		name := highlightName(query, lang.Name)
		label := name + "  " + t.ShortcutDesc.Render(lang.NativeName())
		if lang.Name == p.current {
			label += " " + t.ShortcutKey.Render(styles.StatusIndicators.Active)
		}
		if i == p.cursor {
			lines = append(lines, t.PickerSelected.Render(lang.Name+"  "+lang.NativeName()))
		} else {
			lines = append(lines, t.PickerItem.Render(label))
		}
	}
	lines = append(lines, "", t.ShortcutDesc.Render("enter select · esc close"))

	boxWidth := min(width-4, 44)
	return t.PickerBox.Width(boxWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func highlightName(query, name string) string {
	positions := HighlightMatch(query, name)
	if len(positions) == 0 {
		return name
	}
	hit := lo.Associate(positions, func(i int) (int, bool) { return i, true })
	bold := lipgloss.NewStyle().Bold(true).Foreground(styles.Purple)
	var b strings.Builder
	for i, r := range []rune(name) {
		if hit[i] {
			b.WriteString(bold.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
