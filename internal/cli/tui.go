// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/jeranaias/lingochat/internal/ui/chat"
	"github.com/jeranaias/lingochat/internal/ui/styles"
)

// TUICmd opens the full-screen chat.
type TUICmd struct {
	NoMouse bool `help:"Disable mouse support even if enabled in the config."`
}

// Run implements the tui command.
func (c *TUICmd) Run(rt *Runtime) error {
	if !rt.Env.Interactive {
		return NewCommandError("tui", "start", "stdin and stdout must be a terminal; try 'lingochat chat' or 'lingochat ask'", nil)
	}

	ctrl, modelName, err := rt.Controller(true)
	if err != nil {
		return err
	}
	cfg, _ := rt.Config()
	log, _ := rt.Logger(true)

	listener, speaker, err := rt.Speech(true)
	if err != nil {
		return err
	}
	cfgFile, err := rt.ConfigFile()
	if err != nil {
		log.Debug("config file unresolved, reload disabled", "error", err)
	}

	opts := chat.Options{
		Controller:    ctrl,
		Theme:         styles.NewTheme(cfg.UI.Theme),
		Logger:        log,
		ModelName:     modelName,
		Search:        cfg.Chat.SearchByDefault,
		MaxImageBytes: cfg.Chat.MaxImageBytes,
		RenderFPS:     cfg.UI.RenderFPS,
		ConfigPath:    cfgFile,
		Mouse:         cfg.UI.Mouse && !c.NoMouse,
		Listener:      listener,
		Speaker:       speaker,
	}

	log.Info("starting tui", "model", modelName, "listener", listener.Supported(), "speaker", speaker.Supported())
	return chat.Run(rt.Ctx, opts)
}
