// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lingochat/internal/config"
	"github.com/jeranaias/lingochat/internal/gemini"
	"github.com/jeranaias/lingochat/internal/logger"
	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/session"
	"github.com/jeranaias/lingochat/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

// syncBuffer is written from controller callbacks.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEnv struct {
	Env
	stdout *syncBuffer
	stderr *syncBuffer
	dir    string
	cfg    string
	db     string
}

// newTestEnv isolates HOME and the environment overrides and writes a
// config whose store and log live in a temp directory.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, k := range []string{
		"GEMINI_API_KEY", "API_KEY", "LINGOCHAT_BASE_URL", "LINGOCHAT_MODEL",
		"LINGOCHAT_LANGUAGE", "LINGOCHAT_STORE", "LINGOCHAT_STORE_PATH",
		"LINGOCHAT_PASSPHRASE", "LINGOCHAT_LOG_LEVEL", "LINGOCHAT_THEME",
	} {
		t.Setenv(k, "")
	}

	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(dir, "test.db")
	cfg.Log.File = filepath.Join(dir, "test.log")
	cfg.Speech.SynthesizerCommand = ""
	cfg.Speech.VoicesCommand = ""
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, config.SaveTOML(cfg, path))

	te := &testEnv{
		stdout: &syncBuffer{},
		stderr: &syncBuffer{},
		dir:    dir,
		cfg:    path,
		db:     cfg.Storage.Path,
	}
	te.Env = Env{
		Stdin:  strings.NewReader(""),
		Stdout: te.stdout,
		Stderr: te.stderr,
		Exit:   func(int) {},
	}
	return te
}

func (te *testEnv) run(args ...string) int {
	return Run(append([]string{"--config", te.cfg}, args...), te.Env)
}

// seed writes a transcript and language straight into the test store.
func (te *testEnv) seed(t *testing.T, language string, t2 model.Transcript) {
	t.Helper()
	store, err := storage.Open(storage.Options{Backend: storage.BackendSQLite, Path: te.db})
	require.NoError(t, err)
	defer store.Close()
	prefs := storage.NewPrefs(store, logger.Discard())
	require.NoError(t, prefs.SaveLanguage(language))
	require.NoError(t, prefs.SaveTranscript(t2))
}

func (te *testEnv) stored(t *testing.T) model.Transcript {
	t.Helper()
	store, err := storage.Open(storage.Options{Backend: storage.BackendSQLite, Path: te.db})
	require.NoError(t, err)
	defer store.Close()
	return storage.NewPrefs(store, logger.Discard()).LoadTranscript()
}

func decodeResponse(t *testing.T, out string, data any) JSONResponse {
	t.Helper()
	resp := JSONResponse{Data: data}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func sampleTranscript() model.Transcript {
	return model.Transcript{
		model.NewModelMessage("Bonjour ! Je suis là pour vous aider."),
		model.NewUserMessage("Comment dit-on 'apple' ?", nil),
		model.NewModelMessage("On dit **une pomme**."),
	}
}

// =============================================================================
// FAKE SESSION
// =============================================================================

type fakeRemote struct {
	mu        sync.Mutex
	greeting  string
	chunks    []gemini.Chunk
	err       error
	sent      [][]model.Part
	opts      []gemini.SendOptions
	languages []string
}

func (r *fakeRemote) Send(_ context.Context, parts []model.Part) (gemini.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, parts)
	return gemini.Chunk{Text: r.greeting}, nil
}

func (r *fakeRemote) SendStream(_ context.Context, parts []model.Part, opts gemini.SendOptions) iter.Seq2[gemini.Chunk, error] {
	r.mu.Lock()
	r.sent = append(r.sent, parts)
	r.opts = append(r.opts, opts)
	r.mu.Unlock()
	return func(yield func(gemini.Chunk, error) bool) {
		for _, c := range r.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if r.err != nil {
			yield(gemini.Chunk{}, r.err)
		}
	}
}

func (r *fakeRemote) backend() session.Backend {
	return session.BackendFunc(func(_ context.Context, language string, _ model.Transcript) (session.Remote, error) {
		r.mu.Lock()
		r.languages = append(r.languages, language)
		r.mu.Unlock()
		return r, nil
	})
}

func (r *fakeRemote) lastText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.sent[len(r.sent)-1] {
		b.WriteString(p.Text)
	}
	return b.String()
}

// scriptedInput feeds lines to the REPL, then io.EOF.
type scriptedInput struct {
	lines   []string
	prompts []string
}

func (s *scriptedInput) ReadInput(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type fakeMic struct {
	mu        sync.Mutex
	heard     string
	lang      string
	listening bool
	final     func(string)
	state     func(bool)
}

func (m *fakeMic) Supported() bool { return true }

func (m *fakeMic) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

func (m *fakeMic) Start(lang string) error {
	m.mu.Lock()
	m.lang, m.listening = lang, true
	final, state := m.final, m.state
	m.mu.Unlock()
	go func() {
		final(m.heard)
		m.mu.Lock()
		m.listening = false
		m.mu.Unlock()
		state(false)
	}()
	return nil
}

func (m *fakeMic) Stop() {
	m.mu.Lock()
	m.listening = false
	m.mu.Unlock()
}

func (m *fakeMic) OnFinal(fn func(string)) {
	m.mu.Lock()
	m.final = fn
	m.mu.Unlock()
}

func (m *fakeMic) OnStateChange(fn func(bool)) {
	m.mu.Lock()
	m.state = fn
	m.mu.Unlock()
}

type fakeSpeaker struct {
	text, lang string
	cancels    int
}

func (s *fakeSpeaker) Supported() bool         { return true }
func (s *fakeSpeaker) Speaking() bool          { return false }
func (s *fakeSpeaker) Speak(text, lang string) { s.text, s.lang = text, lang }
func (s *fakeSpeaker) Cancel()                 { s.cancels++ }

func newTestREPL(t *testing.T, remote *fakeRemote, lines ...string) (*repl, *syncBuffer, *syncBuffer, *storage.Prefs) {
	t.Helper()
	prefs := storage.NewPrefs(storage.NewMemoryStore(), logger.Discard())
	require.NoError(t, prefs.SaveLanguage("French"))
	ctrl := session.New(session.Options{
		Backend: remote.backend(),
		Store:   prefs,
		Logger:  logger.Discard(),
	})
	out, errw := &syncBuffer{}, &syncBuffer{}
	r := newREPL(Env{Stdout: out, Stderr: errw}, ctrl, &scriptedInput{lines: lines})
	return r, out, errw, prefs
}

// =============================================================================
// PARSING AND EXIT CODES
// =============================================================================

func TestRun_Version(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitSuccess, Run([]string{"version"}, te.Env))
	assert.Contains(t, te.stdout.String(), "lingochat "+Version)
}

func TestRun_VersionJSON(t *testing.T) {
	te := newTestEnv(t)
	require.Equal(t, ExitSuccess, Run([]string{"--json", "version"}, te.Env))

	var data map[string]string
	resp := decodeResponse(t, te.stdout.String(), &data)
	assert.True(t, resp.Success)
	assert.Equal(t, "version", resp.Command)
	assert.Equal(t, Version, data["version"])
}

func TestRun_Help(t *testing.T) {
	te := newTestEnv(t)
	var code = -1
	te.Exit = func(c int) { code = c }

	assert.Equal(t, ExitSuccess, Run([]string{"--help"}, te.Env))
	assert.Equal(t, 0, code)
	out := te.stdout.String()
	assert.Contains(t, out, description)
	for _, cmd := range []string{"chat", "ask", "history", "languages", "voices", "config"} {
		assert.Contains(t, out, cmd)
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitUsageError, Run([]string{"version", "--nope"}, te.Env))
	assert.Contains(t, te.stderr.String(), "error")
}

func TestRun_TUIRequiresTerminal(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitGeneralError, te.run())
	assert.Contains(t, te.stderr.String(), "terminal")
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationErrorWithExample("language", "Klingon", "unsupported", ""), ExitUsageError},
		{"not found", &NotFoundError{Resource: "voice", ID: "xx"}, ExitNotFoundError},
		{"confirmation", fmt.Errorf("clear: %w", ErrConfirmationRequired), ExitUsageError},
		{"no api key", fmt.Errorf("initialize session: %w", gemini.ErrNotConfigured), ExitAuthError},
		{"bad api key", gemini.ErrAuthFailed, ExitAuthError},
		{"locked", storage.ErrLocked, ExitLockedError},
		{"model", gemini.ErrModelNotFound, ExitConfigError},
		{"timeout", context.DeadlineExceeded, ExitTimeoutError},
		{"network", errors.New("dial tcp: connection refused"), ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError_JSON(t *testing.T) {
	var out bytes.Buffer
	DisplayError(Env{Stdout: &out, Stderr: io.Discard}, &NotFoundError{Resource: "voice", ID: "fr-FR"}, true)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, false, doc["success"])
	assert.Equal(t, "not_found_error", doc["error_type"])
	assert.Equal(t, "fr-FR", doc["id"])
}

func TestDisplayError_Hint(t *testing.T) {
	var errw bytes.Buffer
	DisplayError(Env{Stdout: io.Discard, Stderr: &errw}, gemini.ErrNotConfigured, false)
	assert.Contains(t, errw.String(), "[ERROR]")
	assert.Contains(t, errw.String(), "GEMINI_API_KEY")
}

// =============================================================================
// LANGUAGES
// =============================================================================

func TestLanguages_JSONMarksCurrent(t *testing.T) {
	te := newTestEnv(t)
	require.Equal(t, ExitSuccess, te.run("--json", "languages"), te.stderr.String())

	var rows []LanguageData
	decodeResponse(t, te.stdout.String(), &rows)
	require.Len(t, rows, len(model.Languages))
	current := 0
	for _, r := range rows {
		if r.Current {
			current++
			assert.Equal(t, model.DefaultLanguage, r.Name)
		}
	}
	assert.Equal(t, 1, current)
}

func TestLanguages_FlagIsStored(t *testing.T) {
	te := newTestEnv(t)
	require.Equal(t, ExitSuccess, te.run("-l", "japanese", "languages"), te.stderr.String())
	assert.Contains(t, te.stdout.String(), "* ")

	te.stdout = &syncBuffer{}
	te.Stdout = te.stdout
	require.Equal(t, ExitSuccess, te.run("--json", "languages"))
	var rows []LanguageData
	decodeResponse(t, te.stdout.String(), &rows)
	for _, r := range rows {
		assert.Equal(t, r.Name == "Japanese", r.Current, r.Name)
	}
}

func TestLanguages_UnknownFlagValue(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitUsageError, te.run("-l", "Klingon", "languages"))
	assert.Contains(t, te.stderr.String(), "Klingon")
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistoryShow_Text(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t, "French", sampleTranscript())

	require.Equal(t, ExitSuccess, te.run("history"), te.stderr.String())
	out := te.stdout.String()
	assert.Contains(t, out, "French, 3 messages")
	assert.Contains(t, out, "Comment dit-on")
	assert.Contains(t, out, "**une pomme**")
}

func TestHistoryShow_LastJSON(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t, "French", sampleTranscript())

	require.Equal(t, ExitSuccess, te.run("--json", "history", "show", "-n", "2"))
	var data HistoryData
	resp := decodeResponse(t, te.stdout.String(), &data)
	assert.True(t, resp.Success)
	assert.Equal(t, "French", data.Language)
	assert.Equal(t, 2, data.Messages)

	got, err := model.DecodeTranscript(data.Transcript)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "On dit **une pomme**.", got[1].Text())
}

func TestHistoryShow_Empty(t *testing.T) {
	te := newTestEnv(t)
	require.Equal(t, ExitSuccess, te.run("history"))
	assert.Contains(t, te.stdout.String(), "No saved conversation.")
}

func TestHistoryExport_Stdout(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t, "French", sampleTranscript())

	require.Equal(t, ExitSuccess, te.run("history", "export", "--stdout", "-f", "md"), te.stderr.String())
	out := te.stdout.String()
	assert.Contains(t, out, "une pomme")
	assert.Contains(t, out, "French")
}

func TestHistoryExport_File(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t, "French", sampleTranscript())
	outDir := filepath.Join(te.dir, "exports")

	require.Equal(t, ExitSuccess, te.run("--json", "history", "export", "-f", "json", "-o", outDir), te.stderr.String())
	var data map[string]any
	decodeResponse(t, te.stdout.String(), &data)
	path, _ := data["path"].(string)
	require.NotEmpty(t, path)
	assert.Equal(t, outDir, filepath.Dir(path))
	assert.Equal(t, float64(3), data["messages"])

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "une pomme")
}

func TestHistoryExport_RejectsTraversal(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t, "French", sampleTranscript())
	assert.Equal(t, ExitUsageError, te.run("history", "export", "-o", "../../etc"))
}

func TestHistoryExport_BadFormat(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitUsageError, te.run("history", "export", "-f", "pdf"))
}

func TestHistoryClear_NeedsConfirmation(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t, "French", sampleTranscript())

	assert.Equal(t, ExitUsageError, te.run("history", "clear"))
	assert.Len(t, te.stored(t), 3)

	require.Equal(t, ExitSuccess, te.run("history", "clear", "--yes"), te.stderr.String())
	assert.Empty(t, te.stored(t))
}

func TestHistoryClear_InteractiveDecline(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t, "French", sampleTranscript())
	te.Interactive = true
	te.Stdin = strings.NewReader("n\n")

	require.Equal(t, ExitSuccess, te.run("history", "clear"))
	assert.Contains(t, te.stdout.String(), "Cancelled.")
	assert.Len(t, te.stored(t), 3)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_InitGetSet(t *testing.T) {
	te := newTestEnv(t)
	path := filepath.Join(te.dir, "fresh", "config.toml")
	run := func(args ...string) int {
		te.stdout = &syncBuffer{}
		te.Stdout = te.stdout
		return Run(append([]string{"--config", path}, args...), te.Env)
	}

	require.Equal(t, ExitSuccess, run("config", "init"), te.stderr.String())
	assert.FileExists(t, path)
	assert.NotEqual(t, ExitSuccess, run("config", "init"))
	require.Equal(t, ExitSuccess, run("config", "init", "--force"))

	require.Equal(t, ExitSuccess, run("config", "get", "gemini.model"))
	assert.Equal(t, "gemini-2.5-flash\n", te.stdout.String())

	require.Equal(t, ExitSuccess, run("config", "set", "ui.theme", "light"), te.stderr.String())
	require.Equal(t, ExitSuccess, run("config", "get", "ui.theme"))
	assert.Equal(t, "light\n", te.stdout.String())

	assert.Equal(t, ExitUsageError, run("config", "set", "ui.theme", "neon"))
	assert.Equal(t, ExitUsageError, run("config", "set", "ui.nope", "x"))
	assert.Equal(t, ExitUsageError, run("config", "get", "nope"))
}

func TestConfig_SecretsAreMasked(t *testing.T) {
	te := newTestEnv(t)
	require.Equal(t, ExitSuccess, te.run("config", "set", "gemini.api_key", "AIza-secret"), te.stderr.String())
	assert.NotContains(t, te.stdout.String(), "AIza")

	te.stdout = &syncBuffer{}
	te.Stdout = te.stdout
	require.Equal(t, ExitSuccess, te.run("config", "show"))
	out := te.stdout.String()
	assert.Contains(t, out, "[gemini]")
	assert.Contains(t, out, maskSecret("AIza-secret"))
	assert.NotContains(t, out, "AIza-secret")
}

func TestConfig_SetDoesNotPersistEnvironment(t *testing.T) {
	te := newTestEnv(t)
	t.Setenv("GEMINI_API_KEY", "from-the-environment")

	require.Equal(t, ExitSuccess, te.run("config", "set", "chat.default_language", "German"), te.stderr.String())
	data, err := os.ReadFile(te.cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "from-the-environment")
	assert.Contains(t, string(data), "German")
}

func TestConfig_PathJSON(t *testing.T) {
	te := newTestEnv(t)
	require.Equal(t, ExitSuccess, te.run("--json", "config", "path"))
	var data map[string]any
	decodeResponse(t, te.stdout.String(), &data)
	assert.Equal(t, te.cfg, data["path"])
	assert.Equal(t, true, data["exists"])
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", maskSecret(""))
	masked := maskSecret("AIzaSyExample")
	assert.True(t, strings.HasPrefix(masked, "sha256:"))
	assert.NotContains(t, masked, "AIza")
	assert.Equal(t, masked, maskSecret("AIzaSyExample"))
}

// =============================================================================
// ASK
// =============================================================================

func newAskRuntime(t *testing.T, te *testEnv, g *Globals, remote *fakeRemote) *Runtime {
	t.Helper()
	g.ConfigPath = te.cfg
	rt := newRuntime(context.Background(), g, te.Env)
	rt.newBackend = func(context.Context, *config.Config, *slog.Logger) (session.Backend, string, error) {
		return remote.backend(), "fake-model", nil
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestAsk_JSON(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t, "Spanish", sampleTranscript())
	remote := &fakeRemote{chunks: []gemini.Chunk{
		{Text: "Muy "},
		{Text: "bien.", Citations: []model.Citation{{URI: "https://rae.es", Title: "RAE"}}},
	}}
	rt := newAskRuntime(t, te, &Globals{JSON: true}, remote)

	require.NoError(t, (&AskCmd{Question: []string{"¿Qué", "tal?"}}).Run(rt))

	var data AskData
	resp := decodeResponse(t, te.stdout.String(), &data)
	assert.True(t, resp.Success)
	assert.Equal(t, "Muy bien.", data.Response)
	assert.Equal(t, "Spanish", data.Language)
	assert.Equal(t, "fake-model", data.Model)
	assert.Equal(t, []SourceData{{Title: "RAE", URI: "https://rae.es"}}, data.Sources)
	assert.Equal(t, []string{"Spanish"}, remote.languages)
	assert.Equal(t, "¿Qué tal?", remote.lastText())
}

func TestAsk_PipedOutputAndStdin(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t, "French", sampleTranscript())
	te.Stdin = strings.NewReader("Comment ça va ?\n")
	remote := &fakeRemote{chunks: []gemini.Chunk{
		{Text: "Très bien"},
		{Text: ", merci.", Citations: []model.Citation{{URI: "https://example.org/fr"}}},
	}}
	rt := newAskRuntime(t, te, &Globals{Search: true}, remote)

	require.NoError(t, (&AskCmd{}).Run(rt))
	out := te.stdout.String()
	assert.True(t, strings.HasPrefix(out, "Très bien, merci.\n"), out)
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "https://example.org/fr")
	assert.Equal(t, "Comment ça va ?", remote.lastText())
	require.Len(t, remote.opts, 1)
	assert.True(t, remote.opts[0].Search)

	// ask leaves the saved conversation alone.
	assert.Len(t, te.stored(t), 3)
}

func TestAsk_StreamError(t *testing.T) {
	te := newTestEnv(t)
	remote := &fakeRemote{chunks: []gemini.Chunk{{Text: "Par"}}, err: gemini.ErrAuthFailed}
	rt := newAskRuntime(t, te, &Globals{}, remote)

	err := (&AskCmd{Question: []string{"hola"}}).Run(rt)
	require.ErrorIs(t, err, gemini.ErrAuthFailed)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestAsk_EmptyQuestion(t *testing.T) {
	te := newTestEnv(t)
	te.Stdin = strings.NewReader("   \n")
	rt := newAskRuntime(t, te, &Globals{}, &fakeRemote{})

	var verr *ValidationError
	assert.ErrorAs(t, (&AskCmd{}).Run(rt), &verr)
}

func TestAsk_WithoutAPIKey(t *testing.T) {
	te := newTestEnv(t)
	assert.Equal(t, ExitAuthError, te.run("ask", "hello"))
	assert.Contains(t, te.stderr.String(), "GEMINI_API_KEY")
}

// =============================================================================
// CHAT REPL
// =============================================================================

func TestREPL_GreetsAndStreams(t *testing.T) {
	remote := &fakeRemote{
		greeting: "Bonjour !",
		chunks:   []gemini.Chunk{{Text: "Je vais "}, {Text: "bien."}},
	}
	r, out, errw, prefs := newTestREPL(t, remote, "Ça va ?")
	require.NoError(t, r.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Bonjour !")
	assert.Contains(t, text, "Je vais bien.")
	assert.Empty(t, errw.String())
	assert.Equal(t, []string{"French"}, remote.languages)

	saved := prefs.LoadTranscript()
	require.Len(t, saved, 3)
	assert.Equal(t, "Ça va ?", saved[1].Text())
	assert.Equal(t, "Je vais bien.", saved[2].Text())
}

func TestREPL_PromptShowsLanguageCode(t *testing.T) {
	remote := &fakeRemote{greeting: "Bonjour !"}
	prefs := storage.NewPrefs(storage.NewMemoryStore(), logger.Discard())
	require.NoError(t, prefs.SaveLanguage("French"))
	ctrl := session.New(session.Options{Backend: remote.backend(), Store: prefs, Logger: logger.Discard()})
	in := &scriptedInput{}
	r := newREPL(Env{Stdout: io.Discard, Stderr: io.Discard}, ctrl, in)

	require.NoError(t, r.run(context.Background()))
	require.NotEmpty(t, in.prompts)
	assert.Contains(t, in.prompts[0], "fr-FR> ")
}

func TestREPL_ChangeLanguage(t *testing.T) {
	remote := &fakeRemote{greeting: "Hallo!"}
	r, out, _, prefs := newTestREPL(t, remote, "/lang german", "/lang German", "/lang Klingon")
	errw := r.errw.(*syncBuffer)
	require.NoError(t, r.run(context.Background()))

	assert.Equal(t, []string{"French", "German"}, remote.languages)
	assert.Equal(t, "German", prefs.LoadLanguage())
	assert.Contains(t, out.String(), "Already chatting in German.")
	assert.Contains(t, errw.String(), "Klingon")
}

func TestREPL_SearchToggle(t *testing.T) {
	remote := &fakeRemote{greeting: "Salut", chunks: []gemini.Chunk{{Text: "ok"}}}
	r, out, errw, _ := newTestREPL(t, remote, "/search on", "cherche", "/search", "encore", "/search maybe")
	require.NoError(t, r.run(context.Background()))

	require.Len(t, remote.opts, 2)
	assert.True(t, remote.opts[0].Search)
	assert.False(t, remote.opts[1].Search)
	assert.Contains(t, out.String(), "[ON]")
	assert.Contains(t, out.String(), "[OFF]")
	assert.Contains(t, errw.String(), "usage: /search")
}

func TestREPL_NewChatReplacesTranscript(t *testing.T) {
	remote := &fakeRemote{greeting: "Bonjour", chunks: []gemini.Chunk{{Text: "Oui"}}}
	r, _, _, prefs := newTestREPL(t, remote, "premier", "/new")
	require.NoError(t, r.run(context.Background()))

	saved := prefs.LoadTranscript()
	require.Len(t, saved, 1)
	assert.Equal(t, "Bonjour", saved[0].Text())
}

func TestREPL_ShowsSources(t *testing.T) {
	remote := &fakeRemote{greeting: "Bonjour", chunks: []gemini.Chunk{
		{Text: "Paris.", Citations: []model.Citation{{URI: "https://fr.wikipedia.org/wiki/Paris", Title: "Paris"}}},
	}}
	r, out, _, _ := newTestREPL(t, remote, "Capitale ?")
	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, out.String(), "Sources:")
	assert.Contains(t, out.String(), "https://fr.wikipedia.org/wiki/Paris")
}

func TestREPL_SendErrorIsReported(t *testing.T) {
	remote := &fakeRemote{greeting: "Bonjour", err: errors.New("quota exceeded")}
	r, _, errw, _ := newTestREPL(t, remote, "allô")
	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, errw.String(), session.SendErrorPrefix)
	assert.Contains(t, errw.String(), "quota exceeded")
}

func TestREPL_InitFailure(t *testing.T) {
	prefs := storage.NewPrefs(storage.NewMemoryStore(), logger.Discard())
	backend := session.BackendFunc(func(context.Context, string, model.Transcript) (session.Remote, error) {
		return nil, gemini.ErrNotConfigured
	})
	ctrl := session.New(session.Options{Backend: backend, Store: prefs, Logger: logger.Discard()})
	errw := &syncBuffer{}
	r := newREPL(Env{Stdout: io.Discard, Stderr: errw}, ctrl, &scriptedInput{})

	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, errw.String(), session.InitErrorMessage)
}

func TestREPL_UnknownCommandSuggests(t *testing.T) {
	r, _, errw, _ := newTestREPL(t, &fakeRemote{greeting: "Salut"}, "/hepl", "/zzzzzzzz")
	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, errw.String(), "did you mean /help?")
	assert.Contains(t, errw.String(), "try /help")
}

func TestREPL_QuitStopsReading(t *testing.T) {
	remote := &fakeRemote{greeting: "Salut", chunks: []gemini.Chunk{{Text: "x"}}}
	r, _, _, _ := newTestREPL(t, remote, "/quit", "never sent")
	require.NoError(t, r.run(context.Background()))
	assert.Len(t, remote.opts, 0)
}

func TestREPL_ListenSendsDictation(t *testing.T) {
	remote := &fakeRemote{greeting: "Salut", chunks: []gemini.Chunk{{Text: "Très bien !"}}}
	r, out, _, _ := newTestREPL(t, remote, "/listen")
	mic := &fakeMic{heard: "je voudrais un café"}
	r.mic = mic
	require.NoError(t, r.run(context.Background()))

	assert.Equal(t, model.RecognitionCode("French"), mic.lang)
	assert.Contains(t, out.String(), "You said:")
	assert.Equal(t, "je voudrais un café", remote.lastText())
}

func TestREPL_SpeakAndUnavailableSpeech(t *testing.T) {
	remote := &fakeRemote{greeting: "Bonjour **ami**"}
	r, _, errw, _ := newTestREPL(t, remote, "/speak", "/listen")
	speaker := &fakeSpeaker{}
	r.tts = speaker
	require.NoError(t, r.run(context.Background()))

	assert.Equal(t, model.SpeechCode("French"), speaker.lang)
	assert.Equal(t, "Bonjour **ami**", speaker.text)
	assert.Contains(t, errw.String(), "Voice input is not available")
}

func TestREPL_AttachImage(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "photo.png")
	// 1x1 PNG
	data := []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
		0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
		0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
		0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
	require.NoError(t, os.WriteFile(png, data, 0600))

	remote := &fakeRemote{greeting: "Salut", chunks: []gemini.Chunk{{Text: "Un chat."}}}
	r, out, _, prefs := newTestREPL(t, remote, "/image "+png, "Qu'est-ce que c'est ?")
	r.maxImage = 1 << 20
	require.NoError(t, r.run(context.Background()))

	assert.Contains(t, out.String(), "Attached")
	saved := prefs.LoadTranscript()
	require.Len(t, saved, 3)
	require.Len(t, saved[1].Images(), 1)
	assert.Equal(t, "image/png", saved[1].Images()[0].MimeType)
	assert.Nil(t, r.pending)
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

func TestSuggestCommand(t *testing.T) {
	tests := map[string]string{
		"/hepl":     "/help",
		"/lnag":     "/lang",
		"serach":    "/search",
		"/histroy":  "/history",
		"/help":     "",
		"/x":        "",
		"/zzzzzzzz": "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SuggestCommand(in), in)
	}
}

func TestRequireConfirmation(t *testing.T) {
	ok, err := RequireConfirmation(Env{}, "delete", ConfirmationOptions{Yes: true})
	assert.NoError(t, err)
	assert.True(t, ok)

	_, err = RequireConfirmation(Env{}, "delete", ConfirmationOptions{})
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	_, err = RequireConfirmation(Env{Interactive: true}, "delete", ConfirmationOptions{JSONMode: true})
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false} {
		env := Env{Interactive: true, Stdin: strings.NewReader(input), Stdout: io.Discard}
		ok, err := RequireConfirmation(env, "delete", ConfirmationOptions{})
		assert.NoError(t, err)
		assert.Equal(t, want, ok, input)
	}
}

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()
	got, err := ValidateOutputPath(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = ValidateOutputPath(dir + "/../../etc")
	assert.Error(t, err)

	assert.True(t, isPathWithinDir("/home/user/docs", "/home/user"))
	assert.False(t, isPathWithinDir("/home/userEVIL", "/home/user"))
}
