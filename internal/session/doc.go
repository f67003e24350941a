// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the chat session controller.
//
// The Controller owns the transcript and the single live remote session. It
// runs one operation at a time through an explicit state machine:
//
//	Idle ──Send──▶ Sending ──stream opened──▶ Streaming ──done/error──▶ Idle
//	Idle ──NewChat / ChangeLanguage / Start(empty)──▶ Initializing ──▶ Idle
//	Start(non-empty) ──▶ Restoring ──▶ Idle
//
// Send is rejected with ErrBusy unless the controller is Idle. NewChat and
// ChangeLanguage are always accepted: they cancel whatever is in flight and
// any result the cancelled operation produces afterwards is discarded.
//
// Every transcript change is written to the Persister and reported through
// the OnChange callback as an immutable Snapshot.
package session
