// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/lingochat/internal/gemini"
	"github.com/jeranaias/lingochat/internal/logger"
	"github.com/jeranaias/lingochat/internal/model"
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Options configures a Controller.
type Options struct {
	Backend Backend
	Store   Persister
	Logger  *slog.Logger

	// IntroPrompt overrides the greeting request. Empty uses IntroPrompt.
	IntroPrompt string

	// OnChange is called after every observable change, outside the lock.
	// It may be called from any goroutine.
	OnChange func(Snapshot)
}

// Controller owns the transcript and the remote session.
type Controller struct {
	backend Backend
	store   Persister
	log     *slog.Logger
	intro   string

	mu         sync.Mutex
	state      State
	language   string
	transcript model.Transcript
	errMsg     string
	remote     Remote
	onChange   func(Snapshot)

	// gen identifies the current operation; results tagged with an older
	// gen are discarded.
	gen    uint64
	cancel context.CancelFunc

	// rev orders transcript revisions so a slow save never overwrites a
	// newer one.
	rev          uint64
	persistMu    sync.Mutex
	persistedRev uint64
}

// New creates a controller and loads the stored language and transcript.
// Call Start to create the remote session.
func New(opts Options) *Controller {
	intro := opts.IntroPrompt
	if intro == "" {
		intro = IntroPrompt
	}
	c := &Controller{
		backend:  opts.Backend,
		store:    opts.Store,
		log:      logger.Or(opts.Logger).With("component", "session"),
		intro:    intro,
		onChange: opts.OnChange,
	}
	c.language = c.store.LoadLanguage()
	c.transcript = c.store.LoadTranscript()
	return c
}

// SetOnChange replaces the change callback.
func (c *Controller) SetOnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:      c.state,
		Language:   c.language,
		Transcript: c.transcript.Clone(),
		Error:      c.errMsg,
		HasSession: c.remote != nil,
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Start restores the stored transcript into a new session, or greets the
// user with a fresh one when there is nothing to restore.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	empty := len(c.transcript) == 0
	c.mu.Unlock()

	if empty {
		return c.initialize(ctx, false)
	}
	return c.restore(ctx)
}

// NewChat clears the transcript and starts a fresh, greeted session.
// It supersedes any operation in flight.
func (c *Controller) NewChat(ctx context.Context) error {
	return c.initialize(ctx, true)
}

// ChangeLanguage stores the new preference and starts a session in that
// language. Existing messages are kept and seed the new session; exactly one
// greeting is appended. It supersedes any operation in flight.
func (c *Controller) ChangeLanguage(ctx context.Context, language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		return ErrEmptyLanguage
	}
	if l, ok := model.LookupLanguage(language); ok {
		language = l.Name
	}

	c.mu.Lock()
	c.language = language
	c.mu.Unlock()

	if err := c.store.SaveLanguage(language); err != nil {
		c.log.ErrorContext(ctx, "failed to persist language", "language", language, logger.Err(err))
	}
	return c.initialize(ctx, false)
}

// Send appends a user message built from text and image and streams the
// reply into the transcript. Blank text without an image is ignored. Send
// returns ErrBusy without side effects unless the controller is idle.
func (c *Controller) Send(ctx context.Context, text string, image *model.InlineData, search bool) error {
	if strings.TrimSpace(text) == "" && image == nil {
		return nil
	}

	var (
		o      *op
		remote Remote
		parts  []model.Part
		busy   bool
	)
	c.mutate(nil, func() bool {
		if c.state != StateIdle {
			busy = true
			return false
		}
		o = c.beginLocked(ctx, StateSending)
		msg := model.NewUserMessage(text, image)
		parts = msg.Clone().Parts
		c.transcript = append(c.transcript, msg)
		remote = c.remote
		return true
	})
	if busy {
		return ErrBusy
	}

	if remote == nil {
		return c.failSend(o, ErrNoSession)
	}

	c.log.InfoContext(o.ctx, "sending message", "parts", len(parts), "search", search)
	stream := remote.SendStream(o.ctx, parts, gemini.SendOptions{Search: search})

	ok := c.mutate(o, func() bool {
		c.state = StateStreaming
		c.transcript = append(c.transcript, model.Placeholder())
		return true
	})
	if !ok {
		return ErrSuperseded
	}

	var (
		reply     strings.Builder
		citations []model.Citation
	)
	for chunk, err := range stream {
		if err != nil {
			return c.failSend(o, err)
		}
		reply.WriteString(chunk.Text)
		citations = model.MergeCitations(citations, chunk.Citations)

		text := reply.String()
		cites := append([]model.Citation(nil), citations...)
		ok := c.mutate(o, func() bool {
			last := &c.transcript[len(c.transcript)-1]
			last.Parts = []model.Part{model.TextPart(text)}
			if len(cites) > 0 {
				last.Citations = cites
			}
			return true
		})
		if !ok {
			return ErrSuperseded
		}
	}

	c.mutate(o, func() bool {
		c.endLocked(o)
		return false
	})
	c.log.InfoContext(o.ctx, "reply complete", "chars", reply.Len(), "citations", len(citations))
	return nil
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func (c *Controller) initialize(ctx context.Context, clear bool) error {
	var (
		o        *op
		language string
		history  model.Transcript
	)
	c.mutate(nil, func() bool {
		o = c.beginLocked(ctx, StateInitializing)
		c.remote = nil
		if clear {
			c.transcript = nil
		}
		language = c.language
		history = c.transcript.Clone()
		return true
	})

	c.log.InfoContext(o.ctx, "starting session", "language", language, "history", len(history))
	remote, err := c.backend.NewSession(o.ctx, language, history)
	if err != nil {
		return c.failInit(o, err)
	}

	// The handle is usable even if the greeting below fails.
	if !c.mutate(o, func() bool { c.remote = remote; return false }) {
		return ErrSuperseded
	}

	reply, err := remote.Send(o.ctx, []model.Part{model.TextPart(c.intro)})
	if err != nil {
		return c.failInit(o, err)
	}

	ok := c.mutate(o, func() bool {
		c.transcript = append(c.transcript, model.NewModelMessage(reply.Text))
		c.endLocked(o)
		return true
	})
	if !ok {
		return ErrSuperseded
	}
	return nil
}

func (c *Controller) restore(ctx context.Context) error {
	var (
		o        *op
		language string
		history  model.Transcript
	)
	c.mutate(nil, func() bool {
		o = c.beginLocked(ctx, StateRestoring)
		c.remote = nil
		language = c.language
		history = c.transcript.Clone()
		return false
	})

	c.log.InfoContext(o.ctx, "restoring session", "language", language, "history", len(history))
	remote, err := c.backend.NewSession(o.ctx, language, history)
	if err != nil {
		return c.failInit(o, err)
	}

	ok := c.mutate(o, func() bool {
		c.remote = remote
		c.endLocked(o)
		return false
	})
	if !ok {
		return ErrSuperseded
	}
	return nil
}

// =============================================================================
// FAILURE HANDLING
// =============================================================================

func (c *Controller) failInit(o *op, err error) error {
	ok := c.mutate(o, func() bool {
		c.errMsg = InitErrorMessage
		c.endLocked(o)
		return false
	})
	if !ok {
		return ErrSuperseded
	}
	c.log.ErrorContext(o.ctx, "session initialization failed", logger.Err(err))
	return fmt.Errorf("initialize session: %w", err)
}

func (c *Controller) failSend(o *op, err error) error {
	ok := c.mutate(o, func() bool {
		removed := c.dropPlaceholderLocked()
		c.errMsg = SendErrorPrefix + err.Error()
		c.endLocked(o)
		return removed
	})
	if !ok {
		return ErrSuperseded
	}
	c.log.ErrorContext(o.ctx, "send failed", logger.Err(err))
	return err
}

// dropPlaceholderLocked removes a trailing empty model message.
func (c *Controller) dropPlaceholderLocked() bool {
	if last, ok := c.transcript.Last(); ok && last.IsPlaceholder() {
		c.transcript = c.transcript[:len(c.transcript)-1]
		return true
	}
	return false
}

// =============================================================================
// OPERATION BOOKKEEPING
// =============================================================================

type op struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// beginLocked starts a new operation in state, cancelling the one in flight.
func (c *Controller) beginLocked(parent context.Context, state State) *op {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		c.log.Info("superseding operation", "state", c.state.String())
		if c.state == StateStreaming || c.state == StateSending {
			c.dropPlaceholderLocked()
		}
	}

	c.gen++
	ctx, cancel := context.WithCancel(logger.ContextWithOpID(parent, uuid.NewString()))
	c.cancel = cancel
	c.state = state
	c.errMsg = ""
	return &op{gen: c.gen, ctx: ctx, cancel: cancel}
}

// endLocked returns the controller to Idle. o must be current.
func (c *Controller) endLocked(o *op) {
	c.state = StateIdle
	c.cancel = nil
	o.cancel()
}

// mutate runs fn under the lock, then persists the transcript (when fn
// reports a change) and notifies the observer. With a non-nil o it does
// nothing and returns false if o has been superseded.
func (c *Controller) mutate(o *op, fn func() (transcriptChanged bool)) bool {
	c.mu.Lock()
	if o != nil && o.gen != c.gen {
		c.mu.Unlock()
		o.cancel()
		return false
	}
	changed := fn()
	snap := c.snapshotLocked()
	var rev uint64
	if changed {
		c.rev++
		rev = c.rev
	}
	onChange := c.onChange
	c.mu.Unlock()

	if changed {
		c.persist(snap.Transcript, rev)
	}
	if onChange != nil {
		onChange(snap)
	}
	return true
}

// persist writes t unless a newer revision was already written. Failures are
// logged and otherwise ignored.
func (c *Controller) persist(t model.Transcript, rev uint64) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if rev <= c.persistedRev {
		return
	}
	c.persistedRev = rev
	if err := c.store.SaveTranscript(t); err != nil {
		c.log.Error("failed to persist transcript", "messages", len(t), logger.Err(err))
	}
}
