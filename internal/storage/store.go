// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a string-keyed blob store. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys lists stored keys in ascending order.
	Keys() ([]string, error)

	// Close releases the store. Further calls return ErrClosed.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = &StoreError{Message: "key not found"}

	// ErrClosed is returned after Close.
	ErrClosed = &StoreError{Message: "store is closed"}

	// ErrLocked is returned by Open when another process holds the store.
	ErrLocked = &StoreError{Message: "store is in use by another lingochat process"}
)

// StoreError represents a storage error. Errors compare equal under
// errors.Is when their messages match.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// OPENING
// =============================================================================

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Options selects and configures a store.
type Options struct {
	// Backend is one of BackendSQLite (default), BackendBolt or BackendMemory.
	Backend string

	// Path is the database file. Ignored by the memory backend.
	Path string

	// Passphrase, when set, wraps the store in Sealed.
	Passphrase string

	// Exclusive takes an advisory lock next to Path so two interactive
	// sessions cannot interleave writes. Read-only commands leave it off.
	Exclusive bool
}

// Open opens the configured backend.
func Open(opts Options) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendSQLite
	}

	var (
		store Store
		err   error
	)
	switch backend {
	case BackendMemory:
		store = NewMemoryStore()
	case BackendSQLite, BackendBolt:
		if opts.Path == "" {
			return nil, fmt.Errorf("storage path is required for %s backend", backend)
		}
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		var lock *fileLock
		if opts.Exclusive {
			if lock, err = acquireLock(opts.Path + ".lock"); err != nil {
				return nil, err
			}
		}
		if backend == BackendSQLite {
			store, err = OpenSQLite(opts.Path)
		} else {
			store, err = OpenBolt(opts.Path)
		}
		if err != nil {
			lock.release()
			return nil, err
		}
		if lock != nil {
			store = &lockedStore{Store: store, lock: lock}
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want sqlite, bolt or memory)", opts.Backend)
	}

	if opts.Passphrase != "" {
		sealed, err := NewSealed(store, opts.Passphrase)
		if err != nil {
			store.Close()
			return nil, err
		}
		store = sealed
	}
	return store, nil
}
