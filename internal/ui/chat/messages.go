// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lingochat/internal/config"
	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// snapshotMsg carries controller state into the update loop.
type snapshotMsg struct {
	snap session.Snapshot
}

// opDoneMsg reports a finished controller operation.
type opDoneMsg struct {
	op  string
	err error

	// draft and image are what a send took from the compose area, handed
	// back when the controller refuses it.
	draft string
	image *model.InlineData
}

// speechSegmentMsg is one final recognition segment.
type speechSegmentMsg struct {
	text string
}

// listeningMsg and speakingMsg announce a speech state change; Update
// reads the current state from the adapter.
type listeningMsg struct{}

type speakingMsg struct{}

// attachmentMsg is the result of loading an image from disk.
type attachmentMsg struct {
	path string
	img  *model.InlineData
	err  error
}

// configReloadMsg carries UI settings from an edited config file.
type configReloadMsg struct {
	ui config.UIConfig
}

// flushMsg triggers a deferred transcript re-render.
type flushMsg struct{}

// statusClearMsg clears a status line set at the given sequence number.
type statusClearMsg struct {
	seq int
}

// =============================================================================
// COMMANDS
// =============================================================================

func runOp(ctx context.Context, op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func loadAttachment(path string, maxBytes int64) tea.Cmd {
	return func() tea.Msg {
		img, err := model.LoadImage(path, maxBytes)
		return attachmentMsg{path: path, img: img, err: err}
	}
}

func flushAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return flushMsg{} })
}

func clearStatusAfter(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return statusClearMsg{seq: seq} })
}
