// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat view for lingochat.

The chat package implements the terminal conversation screen using the
Bubble Tea framework. It renders a session.Controller snapshot and turns
key presses into controller operations.

# Key Components

## Model (model.go)

The Model struct is the Bubble Tea model. It holds the latest controller
snapshot, the compose input, an optional image attachment and the state of
the speech adapters. Controller operations run as tea.Cmds and report back
with opDoneMsg.

## Update (update.go)

Key handling is split by input mode:
  - compose: type and send, pick a language, toggle search, attach images,
    dictate with the microphone
  - attach: the input edits an image path
  - focus: move between messages to copy code blocks, copy text or read a
    reply aloud

While a reply streams, transcript re-renders are rate limited to the
configured frame rate and the latest snapshot is flushed after the period.

## View (view.go)

Header with language, model and toggle badges; the transcript viewport;
error banner, status line, attachment chip, input and key help.

## Run (run.go)

Run wires controller, microphone and speaker callbacks into a tea.Program
and watches the config file for theme and frame-rate changes.

# Key Bindings

  - Enter: send
  - Ctrl+N: new chat
  - Ctrl+L: language picker
  - Ctrl+S: toggle Google Search grounding
  - Ctrl+O / Ctrl+X: attach / remove image
  - Ctrl+R: start or stop dictation
  - Tab: message actions (c or 1-9 copy code, y copy text, s speak)
  - F1: full help
  - Ctrl+C: quit
*/
package chat
