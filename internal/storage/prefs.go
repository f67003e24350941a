// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jeranaias/lingochat/internal/logger"
	"github.com/jeranaias/lingochat/internal/model"
)

// Persisted keys. The names predate lingochat and are kept so existing
// stores load unchanged.
const (
	HistoryKey  = "gemini_chat_history"
	LanguageKey = "gemini_chat_language"
)

// Prefs reads and writes the transcript and language preference.
//
// Loads never fail: a missing, unreadable or malformed blob is logged and
// the default is returned. Saves return their error for the caller to log.
type Prefs struct {
	store Store
	log   *slog.Logger
}

// NewPrefs wraps store. A nil log uses slog.Default().
func NewPrefs(store Store, log *slog.Logger) *Prefs {
	return &Prefs{store: store, log: logger.Or(log).With("component", "prefs")}
}

// LoadTranscript returns the stored transcript, or an empty one.
func (p *Prefs) LoadTranscript() model.Transcript {
	data, err := p.store.Get(HistoryKey)
	if errors.Is(err, ErrNotFound) {
		return model.Transcript{}
	}
	if err != nil {
		p.log.Error("failed to read chat history", logger.Err(err))
		return model.Transcript{}
	}

	t, err := model.DecodeTranscript(data)
	if err != nil {
		p.log.Error("failed to parse chat history, starting fresh", logger.Err(err))
		return model.Transcript{}
	}
	if t == nil {
		t = model.Transcript{}
	}
	return t
}

// SaveTranscript stores t. An empty transcript removes the blob instead.
func (p *Prefs) SaveTranscript(t model.Transcript) error {
	if len(t) == 0 {
		return p.ClearTranscript()
	}
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode chat history: %w", err)
	}
	if err := p.store.Set(HistoryKey, data); err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}
	return nil
}

// ClearTranscript removes the stored transcript.
func (p *Prefs) ClearTranscript() error {
	if err := p.store.Delete(HistoryKey); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}

// LoadLanguage returns the stored language name, or model.DefaultLanguage.
func (p *Prefs) LoadLanguage() string {
	data, err := p.store.Get(LanguageKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.log.Error("failed to read language preference", logger.Err(err))
		}
		return model.DefaultLanguage
	}
	lang := strings.TrimSpace(string(data))
	if lang == "" {
		return model.DefaultLanguage
	}
	return lang
}

// SaveLanguage stores the language name.
func (p *Prefs) SaveLanguage(name string) error {
	if err := p.store.Set(LanguageKey, []byte(name)); err != nil {
		return fmt.Errorf("failed to save language preference: %w", err)
	}
	return nil
}
