// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	// Compose mode
	Submit   key.Binding
	NewChat  key.Binding
	Language key.Binding
	Search   key.Binding
	Attach   key.Binding
	Detach   key.Binding
	Mic      key.Binding
	Focus    key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Help     key.Binding
	Quit     key.Binding

	// Focus mode (message actions)
	Up       key.Binding
	Down     key.Binding
	CopyCode key.Binding
	CopyText key.Binding
	Speak    key.Binding
	Back     key.Binding
}

// DefaultKeyMap returns the default key bindings for the chat interface.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		Language: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "language"),
		),
		Search: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "web search"),
		),
		Attach: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "attach image"),
		),
		Detach: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "remove image"),
		),
		Mic: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "voice input"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "select message"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "page down"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next"),
		),
		CopyCode: key.NewBinding(
			key.WithKeys("c", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("c/1-9", "copy code"),
		),
		CopyText: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy text"),
		),
		Speak: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "speak/stop"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "tab"),
			key.WithHelp("esc", "back"),
		),
	}
}

// composeHelp and focusHelp implement help.KeyMap for each mode.
type composeHelp struct{ k KeyMap }

func (h composeHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.k.Submit, h.k.Language, h.k.Search, h.k.Attach, h.k.Mic, h.k.Focus, h.k.Help}
}

func (h composeHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{h.k.Submit, h.k.NewChat, h.k.Language, h.k.Search},
		{h.k.Attach, h.k.Detach, h.k.Mic, h.k.Focus},
		{h.k.PageUp, h.k.PageDown, h.k.Help, h.k.Quit},
	}
}

type focusHelp struct{ k KeyMap }

func (h focusHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.k.Up, h.k.Down, h.k.CopyCode, h.k.CopyText, h.k.Speak, h.k.Back}
}

func (h focusHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{h.ShortHelp()}
}
