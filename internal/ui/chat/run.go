// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lingochat/internal/config"
	"github.com/jeranaias/lingochat/internal/session"
)

// dictationSource is implemented by speech.Listener.
type dictationSource interface {
	OnFinal(func(segment string))
	OnStateChange(func(listening bool))
}

// speakingSource is implemented by speech.Speaker.
type speakingSource interface {
	OnStateChange(func(speaking bool))
}

// Run starts the full-screen chat program and blocks until it exits.
// Controller and speech callbacks are forwarded into the update loop with
// Program.Send; they are detached again on return.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Mouse {
		progOpts = append(progOpts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(m, progOpts...)

	if opts.Controller != nil {
		opts.Controller.SetOnChange(func(s session.Snapshot) {
			p.Send(snapshotMsg{snap: s})
		})
		defer opts.Controller.SetOnChange(nil)
	}

	if src, ok := opts.Listener.(dictationSource); ok {
		src.OnFinal(func(segment string) { p.Send(speechSegmentMsg{text: segment}) })
		// State callbacks can fire inside Update, so they must not block.
		src.OnStateChange(func(bool) { go p.Send(listeningMsg{}) })
		defer src.OnFinal(nil)
		defer src.OnStateChange(nil)
	}
	if src, ok := opts.Speaker.(speakingSource); ok {
		src.OnStateChange(func(bool) { go p.Send(speakingMsg{}) })
		defer src.OnStateChange(nil)
	}

	if opts.ConfigPath != "" {
		w, err := config.Watch(ctx, opts.ConfigPath,
			func(c *config.Config) { p.Send(configReloadMsg{ui: c.UI}) },
			func(err error) { m.log.Warn("config reload failed", "error", err) },
		)
		if err != nil {
			m.log.Debug("config watch unavailable", "path", opts.ConfigPath, "error", err)
		} else {
			defer w.Close()
		}
	}

	_, err := p.Run()

	if opts.Listener != nil && opts.Listener.Listening() {
		opts.Listener.Stop()
	}
	if opts.Speaker != nil {
		opts.Speaker.Cancel()
	}

	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
