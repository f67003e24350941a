// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the lingochat TUI.

All colors are Lip Gloss AdaptiveColor values. NewTheme resolves them for a
dark or light background, either forced by config or detected through
termenv.

# Colors (colors.go)

  - Purple: model messages, picker selection
  - Cyan: user messages, prompt, attachments
  - Emerald: active toggles (search, speaking)
  - Rose: errors, microphone recording
  - Amber: focused message marker

Status helpers (RenderSuccess, RenderError, RenderWarning, RenderInfo) pair
each color with an ASCII indicator.

# Theme (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	theme.SetSize(width, height)
	header := theme.HeaderTitle.Render("lingochat")
*/
package styles
