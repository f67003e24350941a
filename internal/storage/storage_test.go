// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lingochat/internal/model"
)

// =============================================================================
// BACKEND CONFORMANCE
// =============================================================================

type backendCase struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backendCase {
	return []backendCase{
		{"memory", func(t *testing.T) Store { return NewMemoryStore() }},
		{"sqlite", func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
			require.NoError(t, err)
			return s
		}},
		{"bolt", func(t *testing.T) Store {
			s, err := OpenBolt(filepath.Join(t.TempDir(), "store.bolt"))
			require.NoError(t, err)
			return s
		}},
		{"sealed", func(t *testing.T) Store {
			s, err := newSealed(NewMemoryStore(), "correct horse", 1000)
			require.NoError(t, err)
			return s
		}},
	}
}

func TestStore_Conformance(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t)

			_, err := s.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set("b", []byte("two")))
			require.NoError(t, s.Set("a", []byte("one")))
			require.NoError(t, s.Set("a", []byte("uno")))

			v, err := s.Get("a")
			require.NoError(t, err)
			assert.Equal(t, "uno", string(v))

			keys, err := s.Keys()
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, keys)

			require.NoError(t, s.Delete("a"))
			require.NoError(t, s.Delete("a"), "deleting a missing key is not an error")
			_, err = s.Get("a")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Close())
			_, err = s.Get("b")
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestSQLite_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(LanguageKey, []byte("German")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get(LanguageKey)
	require.NoError(t, err)
	assert.Equal(t, "German", string(v))
}

// =============================================================================
// OPEN
// =============================================================================

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(Options{Path: filepath.Join(dir, "default.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(Options{Backend: "BOLT", Path: filepath.Join(dir, "x.bolt")})
	require.NoError(t, err)
	assert.IsType(t, &BoltStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(Options{Backend: "redis", Path: "x"})
	assert.Error(t, err)

	_, err = Open(Options{Backend: "sqlite"})
	assert.Error(t, err, "path is required")
}

func TestOpen_ExclusiveLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	first, err := Open(Options{Path: path, Exclusive: true})
	require.NoError(t, err)

	_, err = Open(Options{Path: path, Exclusive: true})
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Close())

	again, err := Open(Options{Path: path, Exclusive: true})
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

// =============================================================================
// SEALED
// =============================================================================

func TestSealed_ValuesAreEncrypted(t *testing.T) {
	inner := NewMemoryStore()
	s, err := newSealed(inner, "pw", 1000)
	require.NoError(t, err)

	require.NoError(t, s.Set(HistoryKey, []byte("secret transcript")))

	raw, err := inner.Get(HistoryKey)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, string(raw), sealedPrefix)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{HistoryKey}, keys, "salt and check keys are hidden")
}

func TestSealed_WrongPassphrase(t *testing.T) {
	inner := NewMemoryStore()
	_, err := newSealed(inner, "right", 1000)
	require.NoError(t, err)

	_, err = newSealed(inner, "wrong", 1000)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	reopened, err := newSealed(inner, "right", 1000)
	require.NoError(t, err)
	require.NoError(t, reopened.Set("k", []byte("v")))
}

func TestSealed_RejectsPlainValue(t *testing.T) {
	inner := NewMemoryStore()
	s, err := newSealed(inner, "pw", 1000)
	require.NoError(t, err)

	require.NoError(t, inner.Set("plain", []byte("not sealed")))
	_, err = s.Get("plain")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestSealed_SealsExistingPlaintext(t *testing.T) {
	inner := NewMemoryStore()
	plain := NewPrefs(inner, nil)
	want := model.Transcript{
		model.NewModelMessage("Hallo! Worüber möchtest du sprechen?"),
		model.NewUserMessage("Über das Wetter.", nil),
	}
	require.NoError(t, plain.SaveTranscript(want))
	require.NoError(t, plain.SaveLanguage("German"))

	s, err := newSealed(inner, "secret", 1000)
	require.NoError(t, err)

	prefs := NewPrefs(s, nil)
	assert.Equal(t, want, prefs.LoadTranscript())
	assert.Equal(t, "German", prefs.LoadLanguage())

	raw, err := inner.Get(HistoryKey)
	require.NoError(t, err)
	assert.True(t, isSealed(raw))
	assert.NotContains(t, string(raw), "Wetter")

	reopened, err := newSealed(inner, "secret", 1000)
	require.NoError(t, err)
	assert.Equal(t, want, NewPrefs(reopened, nil).LoadTranscript())
}

func TestSealed_ResumesInterruptedSealing(t *testing.T) {
	inner := NewMemoryStore()
	_, err := newSealed(inner, "pw", 1000)
	require.NoError(t, err)

	// A value left unsealed, as after a crash before the check value landed.
	require.NoError(t, inner.Delete(checkKey))
	require.NoError(t, inner.Set(LanguageKey, []byte("Spanish")))

	s, err := newSealed(inner, "pw", 1000)
	require.NoError(t, err)
	v, err := s.Get(LanguageKey)
	require.NoError(t, err)
	assert.Equal(t, "Spanish", string(v))

	_, err = inner.Get(checkKey)
	assert.NoError(t, err, "check value restored")
	_, err = newSealed(inner, "other", 1000)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSealed_ValueBoundToKey(t *testing.T) {
	inner := NewMemoryStore()
	s, err := newSealed(inner, "pw", 1000)
	require.NoError(t, err)

	require.NoError(t, s.Set(LanguageKey, []byte("French")))
	raw, err := inner.Get(LanguageKey)
	require.NoError(t, err)
	require.NoError(t, inner.Set(HistoryKey, raw))

	_, err = s.Get(HistoryKey)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	v, err := s.Get(LanguageKey)
	require.NoError(t, err)
	assert.Equal(t, "French", string(v))
}
