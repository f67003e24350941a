// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a chat transcript to a file or stream.
//
// # Supported Formats
//
//   - Markdown: frontmatter, one section per message, numbered sources
//   - JSON: the persisted transcript wire form plus document metadata
//   - HTML: standalone page, model replies rendered with goldmark
//
// # Usage
//
//	doc := export.NewDocument(transcript, "Spanish", "gemini-2.5-flash")
//	exp, err := export.ForFormat("html", export.DefaultOptions())
//	path, err := export.ExportToFile(doc, exp, opts)
package export
