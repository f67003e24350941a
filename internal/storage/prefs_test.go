// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lingochat/internal/logger"
	"github.com/jeranaias/lingochat/internal/model"
)

func newTestPrefs() (*Prefs, *MemoryStore) {
	store := NewMemoryStore()
	return NewPrefs(store, logger.Discard()), store
}

func TestPrefs_TranscriptRoundTrip(t *testing.T) {
	p, _ := newTestPrefs()

	want := model.Transcript{
		model.NewUserMessage("hello", nil),
		{
			Role:      model.RoleModel,
			Parts:     []model.Part{model.TextPart("Hi there")},
			Citations: []model.Citation{{URI: "https://x.example", Title: "X"}},
		},
	}
	require.NoError(t, p.SaveTranscript(want))
	assert.Equal(t, want, p.LoadTranscript())
}

func TestPrefs_EmptyTranscriptRemovesBlob(t *testing.T) {
	p, store := newTestPrefs()

	require.NoError(t, p.SaveTranscript(model.Transcript{model.NewModelMessage("hi")}))
	_, err := store.Get(HistoryKey)
	require.NoError(t, err)

	require.NoError(t, p.SaveTranscript(model.Transcript{}))
	_, err = store.Get(HistoryKey)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, p.LoadTranscript())
}

func TestPrefs_MalformedTranscriptIsEmpty(t *testing.T) {
	p, store := newTestPrefs()
	require.NoError(t, store.Set(HistoryKey, []byte(`[{"role":"user","parts":`)))

	got := p.LoadTranscript()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPrefs_MissingTranscript(t *testing.T) {
	p, _ := newTestPrefs()
	got := p.LoadTranscript()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPrefs_Language(t *testing.T) {
	p, store := newTestPrefs()
	assert.Equal(t, model.DefaultLanguage, p.LoadLanguage())

	require.NoError(t, p.SaveLanguage("Japanese"))
	assert.Equal(t, "Japanese", p.LoadLanguage())

	require.NoError(t, store.Set(LanguageKey, []byte("  ")))
	assert.Equal(t, model.DefaultLanguage, p.LoadLanguage())
}

type failingStore struct{ *MemoryStore }

func (f *failingStore) Set(string, []byte) error { return errors.New("disk full") }

func TestPrefs_SaveErrorsAreReturned(t *testing.T) {
	p := NewPrefs(&failingStore{MemoryStore: NewMemoryStore()}, logger.Discard())
	err := p.SaveTranscript(model.Transcript{model.NewModelMessage("x")})
	assert.ErrorContains(t, err, "disk full")
	assert.Error(t, p.SaveLanguage("French"))
}
