// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/lingochat/internal/logger"
	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/session"
	"github.com/jeranaias/lingochat/internal/ui/components"
	"github.com/jeranaias/lingochat/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Controller is the part of session.Controller the UI drives.
type Controller interface {
	Snapshot() session.Snapshot
	SetOnChange(func(session.Snapshot))
	Start(ctx context.Context) error
	NewChat(ctx context.Context) error
	ChangeLanguage(ctx context.Context, language string) error
	Send(ctx context.Context, text string, image *model.InlineData, search bool) error
}

// Listener is the speech input capability.
type Listener interface {
	Supported() bool
	Listening() bool
	Start(lang string) error
	Stop()
}

// Speaker is the speech output capability.
type Speaker interface {
	Supported() bool
	Speaking() bool
	Speak(text, lang string)
	Cancel()
}

// Options configures a chat Model.
type Options struct {
	Controller Controller
	Listener   Listener
	Speaker    Speaker
	Theme      *styles.Theme
	Logger     *slog.Logger

	ModelName     string
	Search        bool
	MaxImageBytes int64
	RenderFPS     int

	// ConfigPath is watched for UI setting changes when set.
	ConfigPath string
	Mouse      bool

	// Clipboard writes text to the system clipboard.
	Clipboard func(string) error
}

// =============================================================================
// MODEL
// =============================================================================

// inputMode selects what the text input is editing.
type inputMode int

const (
	modeCompose inputMode = iota
	modeAttach
	modeFocus
)

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctx  context.Context
	ctrl Controller
	mic  Listener
	tts  Speaker
	log  *slog.Logger
	clip func(string) error

	theme    *styles.Theme
	markdown *components.Markdown
	keys     KeyMap
	help     help.Model
	input    textinput.Model
	viewport viewport.Model
	picker   *components.LanguagePicker
	spinner  components.Spinner

	width, height int
	ready         bool

	snap      session.Snapshot
	modelName string
	search    bool
	maxImage  int64

	mode       inputMode
	draft      string // compose text saved while entering a path
	attachment *model.InlineData
	selected   int

	listening bool
	speaking  bool

	status    string
	statusSeq int

	// Streaming re-renders are rate limited; a skipped render sets dirty
	// and schedules a flush.
	limiter      *rate.Limiter
	renderPeriod time.Duration
	dirty        bool
	flushPending bool

	// msgOffsets holds each message's first line in the viewport content.
	msgOffsets []int
}

// New creates the chat model. Run wires controller and speech callbacks
// into a tea.Program; tests may feed messages to Update directly.
func New(ctx context.Context, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}
	fps := opts.RenderFPS
	if fps <= 0 {
		fps = 20
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.WriteAll
	}

	ti := textinput.New()
	ti.Placeholder = "Type your message..."
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.CharLimit = 8000
	ti.Focus()

	h := help.New()
	h.Styles.ShortKey = theme.ShortcutKey
	h.Styles.ShortDesc = theme.ShortcutDesc
	h.Styles.FullKey = theme.ShortcutKey
	h.Styles.FullDesc = theme.ShortcutDesc

	m := Model{
		ctx:          ctx,
		ctrl:         opts.Controller,
		mic:          opts.Listener,
		tts:          opts.Speaker,
		log:          logger.Or(opts.Logger).With("component", "tui"),
		clip:         clip,
		theme:        theme,
		markdown:     components.NewMarkdown(theme),
		keys:         DefaultKeyMap(),
		help:         h,
		input:        ti,
		viewport:     viewport.New(80, 20),
		picker:       components.NewLanguagePicker(theme),
		spinner:      components.NewSpinner(),
		modelName:    opts.ModelName,
		search:       opts.Search,
		maxImage:     opts.MaxImageBytes,
		limiter:      rate.NewLimiter(rate.Limit(fps), 1),
		renderPeriod: time.Second / time.Duration(fps),
		selected:     -1,
	}
	if m.ctrl != nil {
		m.snap = m.ctrl.Snapshot()
	}
	return m
}

// Init starts the session and the cursor blink.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.ctrl != nil {
		cmds = append(cmds, runOp(m.ctx, "start", m.ctrl.Start))
	}
	return tea.Batch(cmds...)
}

// micSupported and ttsSupported hide controls without an engine.
func (m Model) micSupported() bool {
	return m.mic != nil && m.mic.Supported()
}

func (m Model) ttsSupported() bool {
	return m.tts != nil && m.tts.Supported()
}
