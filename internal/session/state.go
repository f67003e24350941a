// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"

	"github.com/jeranaias/lingochat/internal/model"
)

// State is the controller's current activity.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateRestoring
	StateSending
	StateStreaming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRestoring:
		return "restoring"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// User-visible messages.
const (
	// IntroPrompt is sent to every fresh session to obtain the greeting.
	IntroPrompt = "Introduce yourself briefly and warmly in one or two sentences."

	// InitErrorMessage is shown when a session or its greeting cannot be created.
	InitErrorMessage = "Failed to initialize the AI model. Please check your API key."

	// SendErrorPrefix precedes the error detail of a failed send.
	SendErrorPrefix = "Sorry, I encountered an error. "
)

var (
	// ErrBusy is returned by Send when another operation is in flight.
	ErrBusy = errors.New("another request is in progress")

	// ErrNoSession is the send error when no remote session exists.
	ErrNoSession = errors.New("Chat session not initialized.")

	// ErrSuperseded is returned by an operation that was cancelled by a
	// later NewChat or ChangeLanguage.
	ErrSuperseded = errors.New("operation superseded")

	// ErrEmptyLanguage is returned by ChangeLanguage for a blank name.
	ErrEmptyLanguage = errors.New("language must not be empty")
)

// Snapshot is an immutable copy of the controller's observable state.
type Snapshot struct {
	State      State
	Language   string
	Transcript model.Transcript
	Error      string
	HasSession bool
}

// Busy reports whether an operation is in flight.
func (s Snapshot) Busy() bool {
	return s.State != StateIdle
}

// AwaitingGreeting reports whether the UI should show the initial loading
// indicator: a fresh session is being created and nothing is on screen yet.
func (s Snapshot) AwaitingGreeting() bool {
	return s.State == StateInitializing && len(s.Transcript) == 0
}
