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

// Listener turns a Recognizer into a start/stop microphone with an
// accumulated transcript of final results.
type Listener struct {
	rec Recognizer
	log *slog.Logger

	mu         sync.Mutex
	listening  bool
	transcript []string
	cancel     context.CancelFunc
	gen        uint64

	onFinal func(segment string)
	onState func(listening bool)
}

// NewListener wraps rec. A nil rec produces an unsupported listener.
func NewListener(rec Recognizer, log *slog.Logger) *Listener {
	return &Listener{rec: rec, log: logger.Or(log)}
}

// OnFinal registers a callback for each final segment.
func (l *Listener) OnFinal(fn func(segment string)) {
	l.mu.Lock()
	l.onFinal = fn
	l.mu.Unlock()
}

// OnStateChange registers a callback fired when listening starts or stops.
func (l *Listener) OnStateChange(fn func(listening bool)) {
	l.mu.Lock()
	l.onState = fn
	l.mu.Unlock()
}

// Supported reports whether a recognition engine is available.
func (l *Listener) Supported() bool {
	return l.rec != nil && l.rec.Available()
}

// Listening reports whether a capture is running.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

// Transcript returns the final segments of the current capture joined by
// single spaces.
func (l *Listener) Transcript() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.transcript, " ")
}

// Start begins a capture in lang, clearing the previous transcript. It is a
// no-op while already listening.
func (l *Listener) Start(lang string) error {
	if !l.Supported() {
		return ErrUnsupported
	}
	if lang == "" {
		lang = "en-US"
	}

	l.mu.Lock()
	if l.listening {
		l.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.gen++
	gen := l.gen
	l.listening = true
	l.transcript = nil
	l.cancel = cancel
	onState := l.onState
	l.mu.Unlock()

	if onState != nil {
		onState(true)
	}

	go func() {
		err := l.rec.Recognize(ctx, lang, func(r Result) {
			l.handle(gen, r)
		})
		if err != nil {
			l.log.Error("speech recognition error", "lang", lang, logger.Err(err))
		}
		l.finish(gen)
	}()
	return nil
}

// Stop ends the current capture. It is a no-op when idle. The listening
// state clears immediately; a recognizer still shutting down is ignored, so
// a following Start always begins a new capture.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.listening {
		l.mu.Unlock()
		return
	}
	l.listening = false
	l.gen++
	cancel := l.cancel
	l.cancel = nil
	onState := l.onState
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if onState != nil {
		onState(false)
	}
}

func (l *Listener) handle(gen uint64, r Result) {
	if !r.Final {
		return
	}
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return
	}
	l.mu.Lock()
	if gen != l.gen || !l.listening {
		l.mu.Unlock()
		return
	}
	l.transcript = append(l.transcript, text)
	onFinal := l.onFinal
	l.mu.Unlock()

	if onFinal != nil {
		onFinal(text)
	}
}

func (l *Listener) finish(gen uint64) {
	l.mu.Lock()
	if gen != l.gen || !l.listening {
		l.mu.Unlock()
		return
	}
	l.listening = false
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	onState := l.onState
	l.mu.Unlock()

	if onState != nil {
		onState(false)
	}
}
