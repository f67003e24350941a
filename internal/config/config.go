// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v9"

	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/util"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete lingochat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Gemini  GeminiConfig  `toml:"gemini" json:"gemini"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Speech  SpeechConfig  `toml:"speech" json:"speech"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// GeminiConfig configures the remote model.
type GeminiConfig struct {
	// APIKey is usually supplied through GEMINI_API_KEY instead.
	APIKey string `toml:"api_key" json:"api_key"`
	Model  string `toml:"model" json:"model"`
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string `toml:"base_url" json:"base_url"`
	// IntroPrompt is sent to the model to produce the greeting.
	IntroPrompt    string `toml:"intro_prompt" json:"intro_prompt"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
}

// ChatConfig holds conversation defaults.
type ChatConfig struct {
	// DefaultLanguage is used when no language preference is stored yet.
	DefaultLanguage string `toml:"default_language" json:"default_language"`
	SearchByDefault bool   `toml:"search_by_default" json:"search_by_default"`
	// MaxImageBytes caps attachments read from disk.
	MaxImageBytes int64 `toml:"max_image_bytes" json:"max_image_bytes"`
}

// StorageConfig selects the persistent key-value backend.
type StorageConfig struct {
	Backend string `toml:"backend" json:"backend"`
	// Path is the database file. Empty means ~/.lingochat/lingochat.db.
	Path string `toml:"path" json:"path"`
	// Passphrase enables at-rest encryption of stored values.
	Passphrase string `toml:"passphrase" json:"passphrase"`
}

// SpeechConfig configures the external speech engines.
type SpeechConfig struct {
	// RecognizerCommand prints recognition results to stdout. {lang} is
	// replaced by the recognition code. Empty disables voice input.
	RecognizerCommand string `toml:"recognizer_command" json:"recognizer_command"`
	// SynthesizerCommand reads text on stdin. {voice} and {lang} are
	// replaced. Empty disables read-aloud.
	SynthesizerCommand string `toml:"synthesizer_command" json:"synthesizer_command"`
	// VoicesCommand lists voices in espeak-ng --voices format.
	VoicesCommand string `toml:"voices_command" json:"voices_command"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme     string `toml:"theme" json:"theme"`
	RenderFPS int    `toml:"render_fps" json:"render_fps"`
	Mouse     bool   `toml:"mouse" json:"mouse"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// File receives logs while the TUI owns the terminal.
	File string `toml:"file" json:"file"`
}

// Default returns a configuration with all default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Gemini: GeminiConfig{
			Model:          "gemini-2.5-flash",
			IntroPrompt:    "Introduce yourself briefly and warmly in one or two sentences.",
			TimeoutSeconds: 60,
		},
		Chat: ChatConfig{
			DefaultLanguage: model.DefaultLanguage,
			MaxImageBytes:   8 << 20,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		Speech: SpeechConfig{
			SynthesizerCommand: "espeak-ng -v {voice}",
			VoicesCommand:      "espeak-ng --voices",
		},
		UI: UIConfig{
			Theme:     "auto",
			RenderFPS: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the lingochat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".lingochat"), nil
}

func configFile(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) { return configFile("config.toml") }

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) { return configFile("config.json") }

// DefaultStorePath returns the default database location.
func DefaultStorePath() (string, error) { return configFile("lingochat.db") }

// DefaultLogPath returns the log file used in TUI mode.
func DefaultLogPath() (string, error) { return configFile("lingochat.log") }

// HistoryFilePath returns the line-editor history file.
func HistoryFilePath() (string, error) { return configFile("repl_history") }

// EnsureConfigDir ensures the config directory exists.
// SECURITY: 0700, the directory holds the API key and chat history.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// StorePath resolves the configured database path.
func (c *Config) StorePath() (string, error) {
	if c.Storage.Path != "" {
		return expandHome(c.Storage.Path)
	}
	return DefaultStorePath()
}

// LogPath resolves the configured log file path.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return expandHome(c.Log.File)
	}
	return DefaultLogPath()
}

func expandHome(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	return p, nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	if err := cfg.finish(os.Environ()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(os.Environ()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies env overrides, defaults and validation.
func (c *Config) finish(environ []string) error {
	if err := c.applyEnv(environ); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML decodes a TOML file over cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	buf.WriteString("# lingochat configuration file\n")
	buf.WriteString("# The API key is better kept in GEMINI_API_KEY.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Gemini.Model) == "" {
		add("gemini.model", "must not be empty")
	}
	if c.Gemini.BaseURL != "" {
		u, err := url.Parse(c.Gemini.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add("gemini.base_url", "invalid URL '%s'", c.Gemini.BaseURL)
		} else if u.Scheme != "https" && u.Scheme != "http" {
			add("gemini.base_url", "unsupported scheme '%s'", u.Scheme)
		}
	}
	if c.Gemini.TimeoutSeconds < 1 || c.Gemini.TimeoutSeconds > 600 {
		add("gemini.timeout_seconds", "must be between 1 and 600, got %d", c.Gemini.TimeoutSeconds)
	}

	if _, ok := model.LookupLanguage(c.Chat.DefaultLanguage); !ok {
		add("chat.default_language", "unsupported language '%s'", c.Chat.DefaultLanguage)
	}
	if c.Chat.MaxImageBytes < 0 {
		add("chat.max_image_bytes", "must not be negative")
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "sqlite", "bolt", "memory":
	default:
		add("storage.backend", "invalid backend '%s', must be one of: sqlite, bolt, memory", c.Storage.Backend)
	}

	switch strings.ToLower(c.UI.Theme) {
	case "dark", "light", "auto":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}
	if c.UI.RenderFPS < 1 || c.UI.RenderFPS > 120 {
		add("ui.render_fps", "must be between 1 and 120, got %d", c.UI.RenderFPS)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "invalid level '%s'", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = d.Gemini.Model
	}
	if c.Gemini.IntroPrompt == "" {
		c.Gemini.IntroPrompt = d.Gemini.IntroPrompt
	}
	if c.Gemini.TimeoutSeconds == 0 {
		c.Gemini.TimeoutSeconds = d.Gemini.TimeoutSeconds
	}
	if c.Chat.DefaultLanguage == "" {
		c.Chat.DefaultLanguage = d.Chat.DefaultLanguage
	} else if lang, ok := model.LookupLanguage(c.Chat.DefaultLanguage); ok {
		c.Chat.DefaultLanguage = lang.Name
	}
	if c.Chat.MaxImageBytes == 0 {
		c.Chat.MaxImageBytes = d.Chat.MaxImageBytes
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.RenderFPS == 0 {
		c.UI.RenderFPS = d.UI.RenderFPS
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// envOverrides lists the supported environment variables. Empty values
// leave the file setting untouched.
type envOverrides struct {
	GeminiKey string `env:"GEMINI_API_KEY"`
	APIKey    string `env:"API_KEY"`
	BaseURL   string `env:"LINGOCHAT_BASE_URL"`
	Model     string `env:"LINGOCHAT_MODEL"`
	Language  string `env:"LINGOCHAT_LANGUAGE"`
	Store     string `env:"LINGOCHAT_STORE"`
	StorePath string `env:"LINGOCHAT_STORE_PATH"`
	// SECURITY: Passphrase from env keeps it out of the config file.
	Passphrase string `env:"LINGOCHAT_PASSPHRASE"`
	LogLevel   string `env:"LINGOCHAT_LOG_LEVEL"`
	Theme      string `env:"LINGOCHAT_THEME"`
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Supported variables:
//   - GEMINI_API_KEY (or API_KEY): overrides gemini.api_key
//   - LINGOCHAT_BASE_URL: overrides gemini.base_url
//   - LINGOCHAT_MODEL: overrides gemini.model
//   - LINGOCHAT_LANGUAGE: overrides chat.default_language
//   - LINGOCHAT_STORE / LINGOCHAT_STORE_PATH: override storage.backend / storage.path
//   - LINGOCHAT_PASSPHRASE: overrides storage.passphrase
//   - LINGOCHAT_LOG_LEVEL: overrides log.level
//   - LINGOCHAT_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() error {
	return c.applyEnv(os.Environ())
}

func (c *Config) applyEnv(environ []string) error {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: vars}); err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.Gemini.APIKey, o.APIKey)
	set(&c.Gemini.APIKey, o.GeminiKey)
	set(&c.Gemini.BaseURL, o.BaseURL)
	set(&c.Gemini.Model, o.Model)
	set(&c.Chat.DefaultLanguage, o.Language)
	set(&c.Storage.Backend, o.Store)
	set(&c.Storage.Path, o.StorePath)
	set(&c.Storage.Passphrase, o.Passphrase)
	set(&c.Log.Level, o.LogLevel)
	set(&c.UI.Theme, o.Theme)
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "gemini.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set parses value into the field named by key (e.g., "ui.render_fps").
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected true or false: %w", key, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: expected an integer: %w", key, err)
		}
		field.SetInt(n)
	default:
		return fmt.Errorf("unsupported field type %s for %s", field.Kind(), key)
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return v, nil
}

// fieldByTag finds a struct field by its toml tag.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ",")
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Clone creates a copy of the configuration. Config holds no reference
// types so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with secrets masked.
// SECURITY: Keys and passphrases must never reach logs or terminal output.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Gemini.APIKey != "" {
		safe.Gemini.APIKey = "[REDACTED]"
	}
	if safe.Storage.Passphrase != "" {
		safe.Storage.Passphrase = "[REDACTED]"
	}
	return safe
}

// String returns a redacted JSON rendering of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
