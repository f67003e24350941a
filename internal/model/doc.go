// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the chat transcript data structures.
//
// A Transcript is an ordered list of Messages. Each Message carries a role,
// an ordered list of Parts (text or an inline image), and for model replies
// the web citations the reply was grounded on. The JSON encoding matches the
// blob format lingochat has always persisted, so transcripts written by older
// builds load unchanged.
//
// The package also holds the static language table used for the reply
// language, speech recognition and voice selection.
package model
