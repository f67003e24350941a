// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/lingochat/internal/logger"
)

// Speaker reads text aloud one utterance at a time. Speak acts as a toggle:
// calling it while speaking cancels the current utterance and starts
// nothing new.
type Speaker struct {
	synth Synthesizer
	log   *slog.Logger

	voicesOnce sync.Once
	voices     []Voice

	mu       sync.Mutex
	speaking bool
	cancel   context.CancelFunc
	gen      uint64
	onState  func(speaking bool)
}

// NewSpeaker wraps synth. A nil synth produces an unsupported speaker.
func NewSpeaker(synth Synthesizer, log *slog.Logger) *Speaker {
	return &Speaker{synth: synth, log: logger.Or(log)}
}

// OnStateChange registers a callback fired when speaking starts or stops.
func (s *Speaker) OnStateChange(fn func(speaking bool)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// Supported reports whether a synthesis engine is available.
func (s *Speaker) Supported() bool {
	return s.synth != nil && s.synth.Available()
}

// Speaking reports whether an utterance is in progress.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Voices lists the engine's voices, cached after the first call.
func (s *Speaker) Voices(ctx context.Context) []Voice {
	if !s.Supported() {
		return nil
	}
	s.voicesOnce.Do(func() {
		voices, err := s.synth.Voices(ctx)
		if err != nil {
			s.log.Warn("failed to list voices", logger.Err(err))
		}
		s.voices = voices
	})
	return s.voices
}

// Speak starts reading text in lang. Empty text or a missing engine is a
// no-op.
func (s *Speaker) Speak(text, lang string) {
	if !s.Supported() {
		return
	}

	s.mu.Lock()
	if s.speaking {
		s.mu.Unlock()
		s.Cancel()
		return
	}
	s.mu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if lang == "" {
		lang = "en"
	}
	voice, _ := SelectVoice(s.Voices(context.Background()), lang)

	s.mu.Lock()
	if s.speaking {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.gen++
	gen := s.gen
	s.speaking = true
	s.cancel = cancel
	onState := s.onState
	s.mu.Unlock()

	if onState != nil {
		onState(true)
	}

	go func() {
		if err := s.synth.Speak(ctx, text, voice, lang); err != nil {
			s.log.Error("speech synthesis error", "lang", lang, "voice", voice.ID, logger.Err(err))
		}
		s.finish(gen)
	}()
}

// Cancel stops the current utterance.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	if !s.speaking {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.finish(gen)
}

func (s *Speaker) finish(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.speaking {
		s.mu.Unlock()
		return
	}
	s.speaking = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	onState := s.onState
	s.mu.Unlock()

	if onState != nil {
		onState(false)
	}
}
