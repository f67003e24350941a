// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"iter"

	"github.com/jeranaias/lingochat/internal/gemini"
	"github.com/jeranaias/lingochat/internal/model"
)

// Remote is a live chat session with the model.
type Remote interface {
	Send(ctx context.Context, parts []model.Part) (gemini.Chunk, error)
	SendStream(ctx context.Context, parts []model.Part, opts gemini.SendOptions) iter.Seq2[gemini.Chunk, error]
}

// Backend creates remote sessions.
type Backend interface {
	NewSession(ctx context.Context, language string, history model.Transcript) (Remote, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, language string, history model.Transcript) (Remote, error)

// NewSession calls f.
func (f BackendFunc) NewSession(ctx context.Context, language string, history model.Transcript) (Remote, error) {
	return f(ctx, language, history)
}

// GeminiBackend adapts a gemini.Client to Backend.
func GeminiBackend(c *gemini.Client) Backend {
	return BackendFunc(func(ctx context.Context, language string, history model.Transcript) (Remote, error) {
		s, err := c.NewSession(ctx, language, history)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Persister stores the transcript and language preference.
// *storage.Prefs implements it.
type Persister interface {
	LoadTranscript() model.Transcript
	SaveTranscript(model.Transcript) error
	LoadLanguage() string
	SaveLanguage(string) error
}
