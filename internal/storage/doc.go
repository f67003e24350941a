// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides lingochat's persistent key-value blob store and
// the preference adapter built on it.
//
// # Key Types
//
//   - Store: string-keyed blob store (SQLite, bbolt or in-memory)
//   - Sealed: Store wrapper that encrypts values with a passphrase
//   - Prefs: loads and saves the transcript and the language preference
//
// # Usage
//
//	store, err := storage.Open(storage.Options{Backend: "sqlite", Path: path})
//	prefs := storage.NewPrefs(store, log)
//	transcript := prefs.LoadTranscript()
//
// # Storage Location
//
// The default store is ~/.lingochat/store.db. Two keys are used:
// gemini_chat_history (transcript JSON) and gemini_chat_language.
package storage
