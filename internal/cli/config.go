// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Subcommands:
//   show (default)      Display the effective configuration
//   get <key>           Print one value
//   set <key> <value>   Change a value in the config file
//   init                Write a config file with the defaults
//   path                Show configuration file path
//
// Examples:
//   lingochat config set gemini.model gemini-2.5-pro
//   lingochat config set chat.default_language French
//   lingochat config set speech.recognizer_command "vosk-transcriber --lang {lang}"
//   lingochat config set ui.theme light
//
// Values from the environment (GEMINI_API_KEY, LINGOCHAT_*) are shown by
// show and get but never written by set.

package cli

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/lingochat/internal/config"
)

// ConfigCmd groups the configuration commands.
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" default:"1" help:"Show the effective configuration."`
	Get  ConfigGetCmd  `cmd:"" help:"Print one configuration value."`
	Set  ConfigSetCmd  `cmd:"" help:"Change a value in the config file."`
	Init ConfigInitCmd `cmd:"" help:"Write a config file with the defaults."`
	Path ConfigPathCmd `cmd:"" help:"Show the config file location."`
}

// configKeys lists the settable keys in display order.
var configKeys = []string{
	"gemini.api_key",
	"gemini.model",
	"gemini.base_url",
	"gemini.intro_prompt",
	"gemini.timeout_seconds",
	"chat.default_language",
	"chat.search_by_default",
	"chat.max_image_bytes",
	"storage.backend",
	"storage.path",
	"storage.passphrase",
	"speech.recognizer_command",
	"speech.synthesizer_command",
	"speech.voices_command",
	"ui.theme",
	"ui.render_fps",
	"ui.mouse",
	"log.level",
	"log.file",
}

// =============================================================================
// SHOW / GET
// =============================================================================

// ConfigShowCmd prints every setting.
type ConfigShowCmd struct{}

// Run implements config show.
func (c *ConfigShowCmd) Run(rt *Runtime) error {
	cfg, err := rt.Config()
	if err != nil {
		return err
	}
	path, _ := rt.ConfigFile()

	if rt.Globals.JSON {
		return NewJSONResponse("config show", map[string]any{
			"config_path": path,
			"config":      cfg.Redacted(),
		}).Print(rt.Env.Stdout)
	}

	out := rt.Env.Stdout
	fmt.Fprintln(out, TitleStyle.Render("lingochat configuration"))
	section := ""
	for _, key := range configKeys {
		sec, name, _ := strings.Cut(key, ".")
		if sec != section {
			if section != "" {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, SectionStyle.Copy().MarginTop(0).Render("["+sec+"]"))
			section = sec
		}
		fmt.Fprintf(out, "  %s%s\n", RenderLabel(name+":", 22), ValueStyle.Render(displayValue(cfg, key)))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, RenderSeparatorAdaptive())
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Config file:", 14), path)
	if hist, err := config.HistoryFilePath(); err == nil {
		fmt.Fprintf(out, "%s %s\n", RenderLabel("Input history:", 14), hist)
	}
	return nil
}

// ConfigGetCmd prints one value.
type ConfigGetCmd struct {
	Key string `arg:"" help:"Dotted key, e.g. gemini.model."`
}

// Run implements config get.
func (c *ConfigGetCmd) Run(rt *Runtime) error {
	cfg, err := rt.Config()
	if err != nil {
		return err
	}
	if _, err := cfg.Get(c.Key); err != nil {
		return NewValidationErrorWithExample("key", c.Key, err.Error(), "lingochat config get gemini.model")
	}
	value := displayValue(cfg, c.Key)
	if rt.Globals.JSON {
		return NewJSONResponse("config get", map[string]string{"key": c.Key, "value": value}).Print(rt.Env.Stdout)
	}
	fmt.Fprintln(rt.Env.Stdout, value)
	return nil
}

// displayValue formats a value, masking secrets.
func displayValue(cfg *config.Config, key string) string {
	v, err := cfg.Get(key)
	if err != nil {
		return ""
	}
	s := fmt.Sprint(v)
	if isSecretKey(key) {
		return maskSecret(s)
	}
	if s == "" {
		return "(not set)"
	}
	return s
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "key") || strings.Contains(k, "passphrase")
}

// maskSecret shows a short SHA-256 fingerprint instead of any part of the
// secret itself.
// SECURITY: Key prefixes would let an observer correlate keys.
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	hash := sha256.Sum256([]byte(s))
	return fmt.Sprintf("sha256:%x...", hash[:4])
}

// =============================================================================
// SET / INIT
// =============================================================================

// ConfigSetCmd changes one value in the file.
type ConfigSetCmd struct {
	Key   string `arg:"" help:"Dotted key, e.g. ui.theme."`
	Value string `arg:"" help:"New value."`
}

// Run implements config set. The file is re-read without environment
// overrides so that exported secrets are not copied into it.
func (c *ConfigSetCmd) Run(rt *Runtime) error {
	path, err := rt.ConfigFile()
	if err != nil {
		return err
	}
	cfg, err := readConfigFile(path)
	if err != nil {
		return err
	}

	if err := cfg.Set(c.Key, c.Value); err != nil {
		return NewValidationErrorWithExample("key", c.Key, err.Error(), "lingochat config set ui.theme light")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return NewValidationErrorWithExample(c.Key, c.Value, err.Error(), "see: lingochat config show")
	}
	if err := writeConfigFile(cfg, path); err != nil {
		return err
	}

	if rt.Globals.JSON {
		return NewJSONResponse("config set", map[string]string{
			"key":   c.Key,
			"value": displayValue(cfg, c.Key),
			"path":  path,
		}).Print(rt.Env.Stdout)
	}
	fmt.Fprintf(rt.Env.Stdout, "%s %s = %s\n", RenderStatus("ok"), c.Key, displayValue(cfg, c.Key))
	return nil
}

// ConfigInitCmd writes the defaults.
type ConfigInitCmd struct {
	Force bool `help:"Overwrite an existing file."`
}

// Run implements config init.
func (c *ConfigInitCmd) Run(rt *Runtime) error {
	path, err := rt.ConfigFile()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return NewCommandError("config", "init", path+" already exists (use --force to overwrite)", nil)
	}
	if err := writeConfigFile(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(rt.Env.Stdout, "%s Wrote %s\n", RenderStatus("ok"), path)
	return nil
}

// ConfigPathCmd prints the config file location.
type ConfigPathCmd struct{}

// Run implements config path.
func (c *ConfigPathCmd) Run(rt *Runtime) error {
	path, err := rt.ConfigFile()
	if err != nil {
		return err
	}
	if rt.Globals.JSON {
		_, statErr := os.Stat(path)
		return NewJSONResponse("config path", map[string]any{"path": path, "exists": statErr == nil}).Print(rt.Env.Stdout)
	}
	fmt.Fprintln(rt.Env.Stdout, path)
	return nil
}

// =============================================================================
// FILE HELPERS
// =============================================================================

// readConfigFile loads path over the defaults. A missing file yields the
// defaults.
func readConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	var err error
	if strings.HasSuffix(path, ".json") {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return cfg, nil
}

func writeConfigFile(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
