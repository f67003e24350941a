// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides reusable UI components for the lingochat TUI.

# Display Components

Header (header.go) - Title bar with language, model, and search/mic badges.
MessageView (message.go) - One transcript message with images and sources.
Markdown (markdown.go) - glamour prose plus numbered, chroma-highlighted code.
CodeBlock (codeblock.go) - Fenced block parsing and highlighting.
Spinner (spinner.go) - ASCII spinner with elapsed time.

# Interactive Components

LanguagePicker (picker.go) - Overlay with fuzzy filtering (fuzzy.go) over
English and native language names.
*/
package components
