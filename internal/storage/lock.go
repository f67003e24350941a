// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"
)

// fileLock is an advisory lock on a sidecar file.
type fileLock struct {
	fl *flock.Flock
}

func acquireLock(path string) (*fileLock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &fileLock{fl: fl}, nil
}

func (l *fileLock) release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}

// lockedStore releases its lock after the wrapped store closes.
type lockedStore struct {
	Store
	lock *fileLock
}

func (s *lockedStore) Close() error {
	var result *multierror.Error
	if err := s.Store.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.lock.release(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to release lock: %w", err))
	}
	return result.ErrorOrNil()
}
