// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/jeranaias/lingochat/internal/config"
	"github.com/jeranaias/lingochat/internal/gemini"
	"github.com/jeranaias/lingochat/internal/logger"
	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/session"
	"github.com/jeranaias/lingochat/internal/speech"
	"github.com/jeranaias/lingochat/internal/storage"
)

// =============================================================================
// RUNTIME
// =============================================================================

// Runtime is bound into every command's Run method. It builds the shared
// pieces lazily so that commands like version never touch the config or
// the store.
type Runtime struct {
	Ctx     context.Context
	Globals *Globals
	Env     Env

	cfg     *config.Config
	cfgPath string
	log     *slog.Logger
	store   storage.Store

	// newBackend is replaced in tests.
	newBackend func(ctx context.Context, cfg *config.Config, log *slog.Logger) (session.Backend, string, error)

	closers []func() error
}

func newRuntime(ctx context.Context, g *Globals, env Env) *Runtime {
	return &Runtime{Ctx: ctx, Globals: g, Env: env, newBackend: geminiBackend}
}

// Config loads the configuration once and applies flag overrides.
func (r *Runtime) Config() (*config.Config, error) {
	if r.cfg != nil {
		return r.cfg, nil
	}

	var (
		cfg *config.Config
		err error
	)
	if r.Globals.ConfigPath != "" {
		cfg, err = config.LoadFromPath(r.Globals.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if r.Globals.Model != "" {
		cfg.Gemini.Model = r.Globals.Model
	}
	if r.Globals.Search {
		cfg.Chat.SearchByDefault = true
	}
	if r.Globals.Debug {
		cfg.Log.Level = "debug"
	}
	r.cfg = cfg
	return cfg, nil
}

// ConfigFile returns the file the configuration was read from, or the
// default TOML path when none exists yet.
func (r *Runtime) ConfigFile() (string, error) {
	if r.cfgPath != "" {
		return r.cfgPath, nil
	}
	if r.Globals.ConfigPath != "" {
		r.cfgPath = r.Globals.ConfigPath
		return r.cfgPath, nil
	}
	toml, err := config.ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(toml); err != nil {
		if json, jerr := config.ConfigPathJSON(); jerr == nil {
			if _, serr := os.Stat(json); serr == nil {
				toml = json
			}
		}
	}
	r.cfgPath = toml
	return toml, nil
}

// =============================================================================
// LOGGING
// =============================================================================

// Logger returns the process logger. With toFile the records go to the log
// file so they cannot corrupt a full-screen or line-edited terminal;
// otherwise they go to stderr.
func (r *Runtime) Logger(toFile bool) (*slog.Logger, error) {
	if r.log != nil {
		return r.log, nil
	}
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	var (
		out     io.Writer = r.Env.Stderr
		noColor           = !ColorsEnabled()
	)
	if toFile {
		path, err := cfg.LogPath()
		if err != nil {
			return nil, err
		}
		f, err := logger.OpenFile(path)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, f.Close)
		out, noColor = f, true
	} else if !r.Globals.Debug && level < slog.LevelWarn {
		// Line-oriented commands only surface problems on stderr.
		level = slog.LevelWarn
	}

	r.log = logger.New(out, level, noColor)
	slog.SetDefault(r.log)
	return r.log, nil
}

// =============================================================================
// STORAGE
// =============================================================================

// Prefs opens the store and returns the transcript and language accessor.
// Exclusive is used by the interactive commands so two chats cannot write
// the same history. A --language flag is validated and stored here so every
// command sees it.
func (r *Runtime) Prefs(exclusive bool) (*storage.Prefs, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	log, err := r.Logger(exclusive)
	if err != nil {
		return nil, err
	}

	if r.store == nil {
		path := ""
		if cfg.Storage.Backend != storage.BackendMemory {
			if path, err = cfg.StorePath(); err != nil {
				return nil, err
			}
		}
		store, err := storage.Open(storage.Options{
			Backend:    cfg.Storage.Backend,
			Path:       path,
			Passphrase: cfg.Storage.Passphrase,
			Exclusive:  exclusive,
		})
		if err != nil {
			return nil, err
		}
		r.store = store
		r.closers = append(r.closers, store.Close)
	}

	prefs := storage.NewPrefs(r.store, log)
	if err := r.seedLanguage(prefs, cfg); err != nil {
		return nil, err
	}
	return prefs, nil
}

// seedLanguage applies --language, or the configured default when nothing
// is stored yet.
func (r *Runtime) seedLanguage(prefs *storage.Prefs, cfg *config.Config) error {
	if name := strings.TrimSpace(r.Globals.Language); name != "" {
		lang, ok := model.LookupLanguage(name)
		if !ok {
			return NewValidationErrorWithExample("language", name, "not a supported language",
				"lingochat --language Spanish (see: lingochat languages)")
		}
		return prefs.SaveLanguage(lang.Name)
	}

	_, err := r.store.Get(storage.LanguageKey)
	if errors.Is(err, storage.ErrNotFound) && cfg.Chat.DefaultLanguage != "" {
		return prefs.SaveLanguage(cfg.Chat.DefaultLanguage)
	}
	return nil
}

// =============================================================================
// SESSION
// =============================================================================

// Controller builds the chat controller over the store. A missing API key
// is not fatal here: the controller reports the failure like any other
// initialization error. It returns the model name for display.
func (r *Runtime) Controller(exclusive bool) (*session.Controller, string, error) {
	prefs, err := r.Prefs(exclusive)
	if err != nil {
		return nil, "", err
	}
	cfg, _ := r.Config()
	log, _ := r.Logger(exclusive)

	backend, modelName, err := r.newBackend(r.Ctx, cfg, log)
	if err != nil {
		return nil, "", err
	}

	ctrl := session.New(session.Options{
		Backend:     backend,
		Store:       prefs,
		Logger:      log,
		IntroPrompt: cfg.Gemini.IntroPrompt,
	})
	return ctrl, modelName, nil
}

// geminiBackend creates the Gemini client. Without a key it returns a
// backend whose sessions fail with gemini.ErrNotConfigured.
func geminiBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (session.Backend, string, error) {
	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	}, log)
	if errors.Is(err, gemini.ErrNotConfigured) {
		log.Warn("no Gemini API key configured")
		return session.BackendFunc(func(context.Context, string, model.Transcript) (session.Remote, error) {
			return nil, gemini.ErrNotConfigured
		}), cfg.Gemini.Model, nil
	}
	if err != nil {
		return nil, "", err
	}
	return session.GeminiBackend(client), client.Model(), nil
}

// =============================================================================
// SPEECH
// =============================================================================

// Speech builds the dictation and read-aloud adapters from the configured
// commands. Engines that are not configured or not installed produce
// adapters that report themselves unsupported.
func (r *Runtime) Speech(toFile bool) (*speech.Listener, *speech.Speaker, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, nil, err
	}
	log, err := r.Logger(toFile)
	if err != nil {
		return nil, nil, err
	}

	recCmd, err := speech.ParseCommand(cfg.Speech.RecognizerCommand)
	if err != nil {
		return nil, nil, fmt.Errorf("speech.recognizer_command: %w", err)
	}
	synthCmd, err := speech.ParseCommand(cfg.Speech.SynthesizerCommand)
	if err != nil {
		return nil, nil, fmt.Errorf("speech.synthesizer_command: %w", err)
	}
	voicesCmd, err := speech.ParseCommand(cfg.Speech.VoicesCommand)
	if err != nil {
		return nil, nil, fmt.Errorf("speech.voices_command: %w", err)
	}

	listener := speech.NewListener(&speech.CommandRecognizer{Cmd: recCmd}, log)
	speaker := speech.NewSpeaker(&speech.CommandSynthesizer{Cmd: synthCmd, VoicesCmd: voicesCmd}, log)
	log.Debug("speech engines",
		"recognizer", recCmd.String(), "recognizer_ok", listener.Supported(),
		"synthesizer", synthCmd.String(), "synthesizer_ok", speaker.Supported())
	return listener, speaker, nil
}

// =============================================================================
// CLEANUP
// =============================================================================

// Close releases everything the runtime opened, most recent first.
func (r *Runtime) Close() error {
	var result *multierror.Error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	r.closers = nil
	return result.ErrorOrNil()
}
