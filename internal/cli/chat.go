// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented chat for terminals where the full-screen UI is
// not wanted. It shares the stored conversation and language with the TUI.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"
	"github.com/samber/lo"

	"github.com/jeranaias/lingochat/internal/config"
	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/session"
	"github.com/jeranaias/lingochat/internal/ui/chat"
	"github.com/jeranaias/lingochat/internal/ui/components"
	"github.com/jeranaias/lingochat/internal/ui/styles"
)

// ChatCmd runs the line-oriented chat.
type ChatCmd struct {
	NoHistory bool          `help:"Do not read or write the input history file."`
	Listen    time.Duration `default:"30s" help:"How long /listen waits for speech."`
}

// Run implements the chat command.
func (c *ChatCmd) Run(rt *Runtime) error {
	ctrl, modelName, err := rt.Controller(true)
	if err != nil {
		return err
	}
	cfg, _ := rt.Config()
	listener, speaker, err := rt.Speech(true)
	if err != nil {
		return err
	}

	historyFile := ""
	if !c.NoHistory {
		if historyFile, err = config.HistoryFilePath(); err != nil {
			historyFile = ""
		}
	}
	input := NewChatCLI(historyFile)
	defer input.Close()

	r := newREPL(rt.Env, ctrl, input)
	r.model = modelName
	r.search = cfg.Chat.SearchByDefault
	r.maxImage = cfg.Chat.MaxImageBytes
	r.listenFor = c.Listen
	r.md = components.NewMarkdown(styles.NewTheme(cfg.UI.Theme))
	r.render = rt.Env.Interactive && ColorsEnabled()
	r.width = GetTerminalWidth()
	if listener.Supported() {
		r.mic = listener
	}
	if speaker.Supported() {
		r.tts = speaker
	}
	return r.run(rt.Ctx)
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is the part of liner.State the REPL uses.
type lineReader interface {
	ReadInput(prompt string) (string, error)
}

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor. An empty historyFile disables history.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history to file with secure permissions.
func (c *ChatCLI) SaveHistory() {
	if c.historyFile == "" {
		return
	}
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	// SECURITY: 0600, the history holds everything the user typed.
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// dictation is a speech.Listener.
type dictation interface {
	chat.Listener
	OnFinal(func(segment string))
	OnStateChange(func(listening bool))
}

type repl struct {
	out  io.Writer
	errw io.Writer
	ctrl chat.Controller
	in   lineReader
	mic  dictation
	tts  chat.Speaker

	model     string
	search    bool
	maxImage  int64
	listenFor time.Duration
	md        *components.Markdown
	render    bool
	width     int

	pending *model.InlineData

	// streaming state, written from the controller callback
	mu      sync.Mutex
	printed int
}

func newREPL(env Env, ctrl chat.Controller, in lineReader) *repl {
	return &repl{
		out:       env.Stdout,
		errw:      env.Stderr,
		ctrl:      ctrl,
		in:        in,
		listenFor: 30 * time.Second,
		width:     DefaultTerminalWidth,
	}
}

func (r *repl) run(ctx context.Context) error {
	r.ctrl.SetOnChange(r.onChange)
	defer r.ctrl.SetOnChange(nil)
	defer func() {
		if r.tts != nil {
			r.tts.Cancel()
		}
		if r.mic != nil && r.mic.Listening() {
			r.mic.Stop()
		}
	}()

	r.printWelcome()
	r.await(ctx, "Connecting", r.ctrl.Start)
	r.showLatestGreeting()

	for {
		line, err := r.in.ReadInput(UserStyle.Render(r.prompt()))
		if err != nil {
			// Ctrl+C, Ctrl+D or closed input.
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			fmt.Fprintln(r.out)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			if quit := r.command(ctx, line); quit {
				return nil
			}
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			return nil
		default:
			r.send(ctx, line)
		}
	}
}

func (r *repl) prompt() string {
	lang := r.ctrl.Snapshot().Language
	if l, ok := model.LookupLanguage(lang); ok {
		lang = l.Code
	}
	if r.pending != nil {
		return lang + " [+image]> "
	}
	return lang + "> "
}

// =============================================================================
// OPERATIONS
// =============================================================================

// send streams a reply. Ctrl+C cancels the reply without leaving the REPL.
func (r *repl) send(ctx context.Context, text string) {
	r.mu.Lock()
	r.printed = 0
	r.mu.Unlock()

	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	image := r.pending
	fmt.Fprintln(r.out, ModelStyle.Render("Gemini:"))
	err := r.ctrl.Send(sendCtx, text, image, r.search)
	fmt.Fprintln(r.out)

	switch {
	case errors.Is(err, session.ErrBusy):
		fmt.Fprintln(r.errw, WarningStyle.Render("Still working on the previous request."))
		return
	case sendCtx.Err() != nil && ctx.Err() == nil:
		r.pending = nil
		fmt.Fprintln(r.errw, WarningStyle.Render("[Cancelled]"))
		return
	}
	r.pending = nil

	snap := r.ctrl.Snapshot()
	if snap.Error != "" {
		fmt.Fprintln(r.errw, ErrorStyle.Render(snap.Error))
		return
	}
	if last, ok := snap.Transcript.Last(); ok && last.Role == model.RoleModel && len(last.Citations) > 0 {
		fmt.Fprintln(r.out, DimStyle.Render("Sources:"))
		for i, c := range last.Citations {
			fmt.Fprintf(r.out, "  %d. %s %s\n", i+1, c.DisplayTitle(), DimStyle.Render(c.URI))
		}
	}
}

// onChange prints the newly streamed part of the reply.
func (r *repl) onChange(s session.Snapshot) {
	if s.State != session.StateStreaming {
		return
	}
	last, ok := s.Transcript.Last()
	if !ok || last.Role != model.RoleModel {
		return
	}
	text := last.Text()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(text) < r.printed {
		r.printed = 0
	}
	if len(text) > r.printed {
		io.WriteString(r.out, text[r.printed:])
		r.printed = len(text)
	}
}

// await runs a session operation and reports its outcome.
func (r *repl) await(ctx context.Context, label string, op func(context.Context) error) {
	fmt.Fprintln(r.out, DimStyle.Render(label+"..."))
	opCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if err := op(opCtx); err != nil && !errors.Is(err, session.ErrSuperseded) {
		if snap := r.ctrl.Snapshot(); snap.Error != "" {
			fmt.Fprintln(r.errw, ErrorStyle.Render(snap.Error))
		} else {
			fmt.Fprintln(r.errw, ErrorStyle.Render(err.Error()))
		}
	}
}

// showLatestGreeting prints the last model message, which after Start,
// NewChat or ChangeLanguage is the greeting or the restored last reply.
func (r *repl) showLatestGreeting() {
	snap := r.ctrl.Snapshot()
	last, ok := snap.Transcript.Last()
	if !ok || last.Role != model.RoleModel || snap.Error != "" {
		return
	}
	fmt.Fprintln(r.out, ModelStyle.Render("Gemini:"))
	fmt.Fprintln(r.out, r.markdown(last.Text()))
	fmt.Fprintln(r.out)
}

func (r *repl) markdown(text string) string {
	if !r.render || r.md == nil {
		return text
	}
	return r.md.Render(text, r.width)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command handles a slash command and reports whether to quit.
func (r *repl) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return true
	case "/help", "/?":
		r.printHelp()
	case "/new":
		if r.tts != nil {
			r.tts.Cancel()
		}
		r.pending = nil
		r.await(ctx, "Starting a new conversation", r.ctrl.NewChat)
		r.showLatestGreeting()
	case "/lang", "/language":
		r.changeLanguage(ctx, arg)
	case "/search":
		r.toggleSearch(arg)
	case "/image", "/attach":
		r.attach(arg)
	case "/speak":
		r.speakLast()
	case "/listen":
		r.listen(ctx)
	case "/history":
		r.printHistory()
	default:
		hint := "try /help"
		if s := SuggestCommand(name); s != "" {
			hint = "did you mean " + s + "?"
		}
		fmt.Fprintf(r.errw, "%s unknown command %s (%s)\n", ErrorStyle.Render("[Error]"), name, hint)
	}
	return false
}

func (r *repl) changeLanguage(ctx context.Context, name string) {
	if name == "" {
		current := r.ctrl.Snapshot().Language
		names := lo.Map(model.Languages, func(l model.Language, _ int) string {
			if l.Name == current {
				return SuccessStyle.Render(l.Name + "*")
			}
			return l.Name
		})
		fmt.Fprintln(r.out, strings.Join(names, ", "))
		return
	}
	lang, ok := model.LookupLanguage(name)
	if !ok {
		fmt.Fprintf(r.errw, "%s %q is not a supported language\n", ErrorStyle.Render("[Error]"), name)
		return
	}
	snap := r.ctrl.Snapshot()
	if lang.Name == snap.Language && snap.HasSession {
		fmt.Fprintf(r.out, "Already chatting in %s.\n", lang.Name)
		return
	}
	if r.tts != nil {
		r.tts.Cancel()
	}
	r.await(ctx, "Switching to "+lang.Name, func(ctx context.Context) error {
		return r.ctrl.ChangeLanguage(ctx, lang.Name)
	})
	r.showLatestGreeting()
}

func (r *repl) toggleSearch(arg string) {
	switch strings.ToLower(arg) {
	case "on", "true", "1":
		r.search = true
	case "off", "false", "0":
		r.search = false
	case "":
		r.search = !r.search
	default:
		fmt.Fprintf(r.errw, "%s usage: /search [on|off]\n", ErrorStyle.Render("[Error]"))
		return
	}
	fmt.Fprintf(r.out, "Google Search grounding %s\n", RenderStatus(lo.Ternary(r.search, "on", "off")))
}

func (r *repl) attach(path string) {
	if path == "" {
		if r.pending != nil {
			r.pending = nil
			fmt.Fprintln(r.out, "Attachment removed.")
			return
		}
		fmt.Fprintf(r.errw, "%s usage: /image <path>\n", ErrorStyle.Render("[Error]"))
		return
	}
	img, err := model.LoadImage(path, r.maxImage)
	if err != nil {
		fmt.Fprintf(r.errw, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		return
	}
	r.pending = img
	fmt.Fprintf(r.out, "Attached %s. It will be sent with your next message.\n", components.ImageLabel(*img))
}

func (r *repl) speakLast() {
	if r.tts == nil {
		fmt.Fprintln(r.errw, WarningStyle.Render("Read-aloud is not available. Configure speech.synthesizer_command."))
		return
	}
	if r.tts.Speaking() {
		r.tts.Cancel()
		return
	}
	snap := r.ctrl.Snapshot()
	for i := len(snap.Transcript) - 1; i >= 0; i-- {
		msg := snap.Transcript[i]
		if msg.Role != model.RoleModel || msg.IsPlaceholder() {
			continue
		}
		r.tts.Speak(msg.SpeakableText(), model.SpeechCode(snap.Language))
		return
	}
	fmt.Fprintln(r.out, "Nothing to read yet.")
}

// listen records one utterance and sends it.
func (r *repl) listen(ctx context.Context) {
	if r.mic == nil {
		fmt.Fprintln(r.errw, WarningStyle.Render("Voice input is not available. Configure speech.recognizer_command."))
		return
	}

	var (
		mu       sync.Mutex
		segments []string
		done     = make(chan struct{})
		once     sync.Once
	)
	finish := func() { once.Do(func() { close(done) }) }
	r.mic.OnFinal(func(s string) {
		mu.Lock()
		segments = append(segments, s)
		mu.Unlock()
		finish()
	})
	r.mic.OnStateChange(func(listening bool) {
		if !listening {
			finish()
		}
	})
	defer r.mic.OnFinal(nil)
	defer r.mic.OnStateChange(nil)

	if err := r.mic.Start(model.RecognitionCode(r.ctrl.Snapshot().Language)); err != nil {
		fmt.Fprintf(r.errw, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		return
	}
	fmt.Fprintln(r.out, DimStyle.Render("Listening... (Ctrl+C to cancel)"))

	listenCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	select {
	case <-done:
	case <-listenCtx.Done():
	case <-time.After(r.listenFor):
	}
	if r.mic.Listening() {
		r.mic.Stop()
	}

	mu.Lock()
	text := strings.TrimSpace(strings.Join(segments, " "))
	mu.Unlock()
	if text == "" {
		fmt.Fprintln(r.out, "Nothing heard.")
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", UserStyle.Render("You said:"), text)
	r.send(ctx, text)
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *repl) printWelcome() {
	snap := r.ctrl.Snapshot()
	fmt.Fprintln(r.out, TitleStyle.Render("lingochat"))
	fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Language:", 10), snap.Language)
	if r.model != "" {
		fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Model:", 10), r.model)
	}
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands, /quit to leave."))
	fmt.Fprintln(r.out)
}

func (r *repl) printHelp() {
	rows := [][2]string{
		{"/new", "Start a new conversation"},
		{"/lang [name]", "Switch language, or list them"},
		{"/search [on|off]", "Toggle Google Search grounding"},
		{"/image <path>", "Attach an image to the next message"},
		{"/speak", "Read the last reply aloud (again to stop)"},
		{"/listen", "Dictate a message"},
		{"/history", "Show the conversation so far"},
		{"/quit", "Leave"},
	}
	fmt.Fprintln(r.out, SectionStyle.Render("Commands"))
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %s %s\n", RenderLabel(row[0], 18), row[1])
	}
}

func (r *repl) printHistory() {
	snap := r.ctrl.Snapshot()
	if len(snap.Transcript) == 0 {
		fmt.Fprintln(r.out, "No messages yet.")
		return
	}
	for _, msg := range snap.Transcript {
		label := lo.Ternary(msg.Role == model.RoleUser, UserStyle, ModelStyle).Render(msg.Role.DisplayName() + ":")
		fmt.Fprintln(r.out, label)
		for _, img := range msg.Images() {
			fmt.Fprintln(r.out, DimStyle.Render("["+components.ImageLabel(img)+"]"))
		}
		if text := msg.Text(); text != "" {
			fmt.Fprintln(r.out, r.markdown(text))
		}
		fmt.Fprintln(r.out)
	}
}
