// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeRecognizer struct {
	available bool
	results   chan Result
	err       error

	mu    sync.Mutex
	langs []string
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{available: true, results: make(chan Result, 8)}
}

func (f *fakeRecognizer) Available() bool { return f.available }

func (f *fakeRecognizer) Recognize(ctx context.Context, lang string, emit func(Result)) error {
	f.mu.Lock()
	f.langs = append(f.langs, lang)
	f.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-f.results:
			if !ok {
				return f.err
			}
			emit(r)
		}
	}
}

type fakeSynth struct {
	available bool
	voices    []Voice

	mu      sync.Mutex
	spoken  []string
	voiceID []string
	started chan struct{}
}

func newFakeSynth() *fakeSynth {
	return &fakeSynth{available: true, started: make(chan struct{}, 8)}
}

func (f *fakeSynth) Available() bool { return f.available }

func (f *fakeSynth) Voices(context.Context) ([]Voice, error) { return f.voices, nil }

func (f *fakeSynth) Speak(ctx context.Context, text string, voice Voice, lang string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.voiceID = append(f.voiceID, voice.ID)
	f.mu.Unlock()
	f.started <- struct{}{}
	<-ctx.Done()
	return nil
}

// slowRecognizer keeps running for a while after its context ends.
type slowRecognizer struct {
	linger time.Duration

	mu    sync.Mutex
	langs []string
}

func (f *slowRecognizer) Available() bool { return true }

func (f *slowRecognizer) Recognize(ctx context.Context, lang string, emit func(Result)) error {
	f.mu.Lock()
	f.langs = append(f.langs, lang)
	f.mu.Unlock()
	<-ctx.Done()
	time.Sleep(f.linger)
	return nil
}

func (f *slowRecognizer) started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.langs...)
}

// quickSynth finishes every utterance at once.
type quickSynth struct {
	err error
}

func (q *quickSynth) Available() bool                         { return true }
func (q *quickSynth) Voices(context.Context) ([]Voice, error) { return nil, nil }
func (q *quickSynth) Speak(context.Context, string, Voice, string) error {
	return q.err
}

func (f *fakeSynth) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spoken)
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(`espeak-ng -v {voice} --punct="x y"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"espeak-ng", "-v", "{voice}", "--punct=x y"}, cmd.argv)

	empty, err := ParseCommand("   ")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
	assert.False(t, empty.Available())

	_, err = ParseCommand(`echo "unterminated`)
	assert.Error(t, err)
}

func TestParseResultLine(t *testing.T) {
	tests := []struct {
		line string
		want Result
		ok   bool
	}{
		{"partial: hel", Result{Text: "hel"}, true},
		{"FINAL: hello", Result{Text: "hello", Final: true}, true},
		{"plain words", Result{Text: "plain words", Final: true}, true},
		{"final:   ", Result{}, false},
		{"   ", Result{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseResultLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCommandRecognizer_RunsProgram(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cmd, err := ParseCommand(`sh -c "echo partial: he; echo final: {lang}; echo world"`)
	require.NoError(t, err)
	rec := &CommandRecognizer{Cmd: cmd}
	require.True(t, rec.Available())

	var got []Result
	err = rec.Recognize(context.Background(), "fr-FR", func(r Result) { got = append(got, r) })
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Text: "he"},
		{Text: "fr-FR", Final: true},
		{Text: "world", Final: true},
	}, got)
}

func TestCommandRecognizer_Unsupported(t *testing.T) {
	rec := &CommandRecognizer{}
	assert.False(t, rec.Available())
	err := rec.Recognize(context.Background(), "en-US", func(Result) {})
	assert.ErrorIs(t, err, ErrUnsupported)
}

// =============================================================================
// VOICE TESTS
// =============================================================================

func TestSelectVoice(t *testing.T) {
	voices := []Voice{
		{ID: "en-us", Lang: "en-US"},
		{ID: "es", Lang: "es"},
		{ID: "pt-br", Lang: "pt-BR"},
	}

	v, ok := SelectVoice(voices, "es")
	require.True(t, ok)
	assert.Equal(t, "es", v.ID)

	v, ok = SelectVoice(voices, "en")
	require.True(t, ok, "base language match")
	assert.Equal(t, "en-us", v.ID)

	v, ok = SelectVoice(voices, "pt")
	require.True(t, ok)
	assert.Equal(t, "pt-br", v.ID)

	_, ok = SelectVoice(voices, "ja")
	assert.False(t, ok)

	_, ok = SelectVoice(voices, "")
	assert.False(t, ok)
}

func TestSelectVoice_PrefersExact(t *testing.T) {
	voices := []Voice{
		{ID: "en-gb", Lang: "en-GB"},
		{ID: "en-us", Lang: "en-US"},
	}
	v, ok := SelectVoice(voices, "en-US")
	require.True(t, ok)
	assert.Equal(t, "en-us", v.ID)
}

func TestParseEspeakVoices(t *testing.T) {
	out := `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
 bad line
`
	voices := ParseEspeakVoices(out)
	require.Len(t, voices, 2)
	assert.Equal(t, Voice{ID: "af", Lang: "af", Name: "Afrikaans"}, voices[0])
	assert.Equal(t, "en-us", voices[1].Lang)
}

// =============================================================================
// LISTENER TESTS
// =============================================================================

func TestListener_Unsupported(t *testing.T) {
	l := NewListener(nil, nil)
	assert.False(t, l.Supported())
	assert.ErrorIs(t, l.Start("en-US"), ErrUnsupported)
	assert.False(t, l.Listening())
}

func TestListener_AccumulatesFinals(t *testing.T) {
	rec := newFakeRecognizer()
	l := NewListener(rec, nil)

	var mu sync.Mutex
	var segments []string
	l.OnFinal(func(s string) {
		mu.Lock()
		segments = append(segments, s)
		mu.Unlock()
	})

	require.NoError(t, l.Start("de-DE"))
	assert.True(t, l.Listening())

	rec.results <- Result{Text: "hal"}
	rec.results <- Result{Text: "hallo", Final: true}
	rec.results <- Result{Text: "welt", Final: true}

	require.Eventually(t, func() bool { return l.Transcript() == "hallo welt" }, time.Second, 5*time.Millisecond)

	l.Stop()
	require.Eventually(t, func() bool { return !l.Listening() }, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"hallo", "welt"}, segments)
	mu.Unlock()
	assert.Equal(t, []string{"de-DE"}, rec.langs)
}

func TestListener_StartClearsTranscript(t *testing.T) {
	rec := newFakeRecognizer()
	l := NewListener(rec, nil)

	require.NoError(t, l.Start("en-US"))
	rec.results <- Result{Text: "first", Final: true}
	require.Eventually(t, func() bool { return l.Transcript() == "first" }, time.Second, 5*time.Millisecond)
	l.Stop()
	require.Eventually(t, func() bool { return !l.Listening() }, time.Second, 5*time.Millisecond)

	require.NoError(t, l.Start("en-US"))
	assert.Equal(t, "", l.Transcript())
	l.Stop()
}

func TestListener_StopsOnEngineError(t *testing.T) {
	rec := newFakeRecognizer()
	rec.err = errors.New("no microphone")
	l := NewListener(rec, nil)

	states := make(chan bool, 4)
	l.OnStateChange(func(on bool) { states <- on })

	require.NoError(t, l.Start(""))
	assert.True(t, <-states)
	close(rec.results)
	assert.False(t, <-states)
	assert.False(t, l.Listening())
	assert.Equal(t, []string{"en-US"}, rec.langs)
}

func TestListener_StopThenStartCaptures(t *testing.T) {
	rec := &slowRecognizer{linger: 50 * time.Millisecond}
	l := NewListener(rec, nil)

	var mu sync.Mutex
	var states []bool
	l.OnStateChange(func(on bool) {
		mu.Lock()
		states = append(states, on)
		mu.Unlock()
	})

	require.NoError(t, l.Start("en-US"))
	l.Stop()
	assert.False(t, l.Listening(), "Stop clears the state without waiting for the engine")

	require.NoError(t, l.Start("fr-FR"))
	assert.True(t, l.Listening())
	require.Eventually(t, func() bool { return len(rec.started()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"en-US", "fr-FR"}, rec.started())

	// The first engine winding down must not end the second capture.
	time.Sleep(100 * time.Millisecond)
	assert.True(t, l.Listening())

	l.Stop()
	assert.False(t, l.Listening())

	mu.Lock()
	assert.Equal(t, []bool{true, false, true, false}, states)
	mu.Unlock()
}

func TestListener_StopWhenIdle(t *testing.T) {
	l := NewListener(newFakeRecognizer(), nil)
	fired := false
	l.OnStateChange(func(bool) { fired = true })
	l.Stop()
	assert.False(t, fired)
}

// =============================================================================
// SPEAKER TESTS
// =============================================================================

func TestSpeaker_NoOps(t *testing.T) {
	NewSpeaker(nil, nil).Speak("hello", "en")

	synth := newFakeSynth()
	s := NewSpeaker(synth, nil)
	s.Speak("   ", "en")
	assert.False(t, s.Speaking())
	assert.Equal(t, 0, synth.count())
}

func TestSpeaker_Toggle(t *testing.T) {
	synth := newFakeSynth()
	synth.voices = []Voice{{ID: "fr", Lang: "fr-FR"}}
	s := NewSpeaker(synth, nil)

	s.Speak("Bonjour le monde", "fr")
	<-synth.started
	assert.True(t, s.Speaking())

	// Second call cancels and does not start another utterance.
	s.Speak("Encore", "fr")
	assert.False(t, s.Speaking())
	assert.Equal(t, 1, synth.count())
	assert.Equal(t, []string{"fr"}, synth.voiceID)
}

func TestSpeaker_CancelFiresState(t *testing.T) {
	synth := newFakeSynth()
	s := NewSpeaker(synth, nil)
	states := make(chan bool, 4)
	s.OnStateChange(func(on bool) { states <- on })

	s.Speak("hello", "")
	<-synth.started
	assert.True(t, <-states)

	s.Cancel()
	assert.False(t, <-states)
	assert.False(t, s.Speaking())

	// Cancel when idle is harmless.
	s.Cancel()
}

func TestSpeaker_NaturalCompletion(t *testing.T) {
	s := NewSpeaker(&quickSynth{}, nil)
	states := make(chan bool, 4)
	s.OnStateChange(func(on bool) { states <- on })

	s.Speak("hola", "es")
	assert.True(t, <-states)
	assert.False(t, <-states)
	assert.False(t, s.Speaking())

	// A finished utterance leaves the speaker ready for the next one.
	s.Speak("otra vez", "es")
	assert.True(t, <-states)
	assert.False(t, <-states)
}

func TestSpeaker_ErrorStops(t *testing.T) {
	s := NewSpeaker(&quickSynth{err: errors.New("audio device busy")}, nil)
	states := make(chan bool, 4)
	s.OnStateChange(func(on bool) { states <- on })

	s.Speak("hello", "en")
	assert.True(t, <-states)
	assert.False(t, <-states)
	assert.False(t, s.Speaking())
}
