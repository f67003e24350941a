// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"

	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/session"
	"github.com/jeranaias/lingochat/internal/ui/components"
	"github.com/jeranaias/lingochat/internal/ui/styles"
)

const statusTTL = 4 * time.Second

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	m.layout()
	return m, cmd
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.viewport.Width = msg.Width
		m.input.Width = max(msg.Width-6, 10)
		m.help.Width = msg.Width
		m.ready = true
		m.layout()
		m.renderTranscript()
		return nil

	case snapshotMsg:
		return m.applySnapshot(msg.snap)

	case flushMsg:
		m.flushPending = false
		if m.dirty {
			m.renderTranscript()
		}
		return nil

	case opDoneMsg:
		return m.handleOpDone(msg)

	case speechSegmentMsg:
		m.appendDictation(msg.text)
		return nil

	case listeningMsg:
		m.listening = m.mic != nil && m.mic.Listening()
		return nil

	case speakingMsg:
		if speaking := m.tts != nil && m.tts.Speaking(); speaking != m.speaking {
			m.speaking = speaking
			m.renderTranscript()
		}
		return nil

	case attachmentMsg:
		if msg.err != nil {
			return m.setStatus(styles.RenderError(attachError(msg.path, msg.err)))
		}
		m.attachment = msg.img
		return nil

	case configReloadMsg:
		m.applyUIConfig(msg.ui.Theme, msg.ui.RenderFPS)
		return m.setStatus(styles.RenderInfo("Settings reloaded"))

	case statusClearMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return nil

	case components.LanguageSelectedMsg:
		m.input.Focus()
		return m.changeLanguage(msg.Language.Name)

	case components.PickerClosedMsg:
		m.input.Focus()
		return nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// ===== CONTROLLER STATE =====

// applySnapshot stores the controller state and re-renders. While a reply
// streams, renders are rate limited and the last snapshot is flushed later.
// PERFORMANCE: glamour rendering dominates; fragments arrive far faster
// than the terminal can usefully repaint.
func (m *Model) applySnapshot(snap session.Snapshot) tea.Cmd {
	m.snap = snap
	var cmds []tea.Cmd
	cmds = append(cmds, m.syncSpinner())

	if n := len(snap.Transcript); m.selected >= n {
		m.selected = n - 1
	}
	if m.mode == modeFocus && len(snap.Transcript) == 0 {
		m.leaveFocus()
	}

	if snap.State == session.StateStreaming && !m.limiter.Allow() {
		m.dirty = true
		if !m.flushPending {
			m.flushPending = true
			cmds = append(cmds, flushAfter(m.renderPeriod))
		}
		return tea.Batch(cmds...)
	}
	m.renderTranscript()
	return tea.Batch(cmds...)
}

func (m *Model) syncSpinner() tea.Cmd {
	if !m.snap.Busy() {
		m.spinner.Stop()
		return nil
	}
	label := "Thinking"
	switch m.snap.State {
	case session.StateInitializing:
		label = "Connecting"
	case session.StateRestoring:
		label = "Restoring conversation"
	}
	return m.spinner.Start(label)
}

// handleOpDone refreshes from the controller so the final state is shown
// even when no change callback is wired.
func (m *Model) handleOpDone(msg opDoneMsg) tea.Cmd {
	var cmds []tea.Cmd
	if m.ctrl != nil {
		cmds = append(cmds, m.applySnapshot(m.ctrl.Snapshot()))
	}
	switch {
	case msg.err == nil, errors.Is(msg.err, session.ErrSuperseded):
	case errors.Is(msg.err, session.ErrBusy):
		m.restoreRefusedSend(msg)
		cmds = append(cmds, m.setStatus(styles.RenderWarning("Wait for the current reply to finish")))
	case errors.Is(msg.err, session.ErrNoSession):
		cmds = append(cmds, m.setStatus(styles.RenderWarning("No chat session; press ctrl+n to start one")))
	default:
		// The controller surfaces failures through the snapshot error.
		m.log.Debug("operation failed", "op", msg.op, "error", msg.err)
	}
	return tea.Batch(cmds...)
}

// ===== KEYS =====

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		m.shutdownSpeech()
		return tea.Quit
	}

	if m.picker.IsVisible() {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return cmd
	}

	switch m.mode {
	case modeFocus:
		return m.handleFocusKey(msg)
	case modeAttach:
		return m.handleAttachKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.NewChat):
		if m.ctrl == nil {
			return nil
		}
		if m.tts != nil {
			m.tts.Cancel()
		}
		m.attachment = nil
		return runOp(m.ctx, "new_chat", m.ctrl.NewChat)

	case key.Matches(msg, m.keys.Language):
		m.input.Blur()
		return m.picker.Show(m.snap.Language)

	case key.Matches(msg, m.keys.Search):
		m.search = !m.search
		if m.search {
			return m.setStatus(styles.RenderInfo("Google Search grounding on"))
		}
		return m.setStatus(styles.RenderInfo("Google Search grounding off"))

	case key.Matches(msg, m.keys.Attach):
		m.mode = modeAttach
		m.draft = m.input.Value()
		m.input.SetValue("")
		m.input.Placeholder = "Path to image (enter to attach, esc to cancel)"
		return nil

	case key.Matches(msg, m.keys.Detach):
		if m.attachment != nil {
			m.attachment = nil
			return m.setStatus(styles.RenderInfo("Attachment removed"))
		}
		return nil

	case key.Matches(msg, m.keys.Mic):
		return m.toggleMic()

	case key.Matches(msg, m.keys.Focus):
		m.enterFocus()
		return nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// submit sends the draft. It does nothing while a reply is in flight or
// when there is neither text nor an image.
func (m *Model) submit() tea.Cmd {
	if m.ctrl == nil || m.snap.Busy() {
		return nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" && m.attachment == nil {
		return nil
	}
	if m.mic != nil && m.mic.Listening() {
		m.mic.Stop()
	}

	img := m.attachment
	draft := m.input.Value()
	search := m.search
	ctrl := m.ctrl
	ctx := m.ctx
	m.attachment = nil
	m.input.SetValue("")
	m.input.Placeholder = "Type your message..."

	return func() tea.Msg {
		return opDoneMsg{op: "send", err: ctrl.Send(ctx, text, img, search), draft: draft, image: img}
	}
}

// restoreRefusedSend puts a refused send back into an untouched compose area.
func (m *Model) restoreRefusedSend(msg opDoneMsg) {
	if msg.op != "send" || m.mode != modeCompose {
		return
	}
	if msg.draft != "" && m.input.Value() == "" {
		m.input.SetValue(msg.draft)
		m.input.CursorEnd()
	}
	if msg.image != nil && m.attachment == nil {
		m.attachment = msg.image
	}
}

func (m *Model) changeLanguage(lang string) tea.Cmd {
	if m.ctrl == nil || lang == "" {
		return nil
	}
	if strings.EqualFold(lang, m.snap.Language) && m.snap.HasSession {
		return nil
	}
	if m.tts != nil {
		m.tts.Cancel()
	}
	if m.mic != nil && m.mic.Listening() {
		m.mic.Stop()
	}
	ctrl := m.ctrl
	return runOp(m.ctx, "change_language", func(ctx context.Context) error {
		return ctrl.ChangeLanguage(ctx, lang)
	})
}

func (m *Model) toggleMic() tea.Cmd {
	if !m.micSupported() {
		return m.setStatus(styles.RenderWarning("Voice input is not available"))
	}
	if m.mic.Listening() {
		m.mic.Stop()
		m.listening = false
		return nil
	}
	if err := m.mic.Start(model.RecognitionCode(m.snap.Language)); err != nil {
		return m.setStatus(styles.RenderError("Voice input failed: " + err.Error()))
	}
	m.listening = m.mic.Listening()
	return nil
}

// appendDictation adds a recognized segment to whichever text the user is
// composing, separated by one space.
func (m *Model) appendDictation(segment string) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return
	}
	join := func(prev string) string {
		if strings.TrimSpace(prev) == "" {
			return segment
		}
		return strings.TrimRight(prev, " ") + " " + segment
	}
	if m.mode == modeAttach {
		m.draft = join(m.draft)
		return
	}
	m.input.SetValue(join(m.input.Value()))
	m.input.CursorEnd()
}

// ===== ATTACH MODE =====

func (m *Model) handleAttachKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.restoreDraft()
		return nil
	case tea.KeyEnter:
		path := strings.TrimSpace(m.input.Value())
		m.restoreDraft()
		if path == "" {
			return nil
		}
		return loadAttachment(path, m.maxImage)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) restoreDraft() {
	m.mode = modeCompose
	m.input.SetValue(m.draft)
	m.input.CursorEnd()
	m.input.Placeholder = "Type your message..."
	m.draft = ""
}

func attachError(path string, err error) string {
	switch {
	case errors.Is(err, model.ErrNotImage):
		return "Not an image: " + path
	case errors.Is(err, model.ErrImageTooLarge):
		return "Image too large: " + path
	default:
		return "Could not attach image: " + err.Error()
	}
}

// ===== FOCUS MODE =====

func (m *Model) enterFocus() {
	n := len(m.snap.Transcript)
	if n == 0 {
		return
	}
	m.mode = modeFocus
	m.selected = n - 1
	m.input.Blur()
	m.renderTranscript()
}

func (m *Model) leaveFocus() {
	m.mode = modeCompose
	m.selected = -1
	m.input.Focus()
}

func (m *Model) handleFocusKey(msg tea.KeyMsg) tea.Cmd {
	n := len(m.snap.Transcript)
	if n == 0 || m.selected < 0 || m.selected >= n {
		m.leaveFocus()
		m.renderTranscript()
		return nil
	}
	current := m.snap.Transcript[m.selected]

	switch {
	case key.Matches(msg, m.keys.Back):
		m.leaveFocus()
		m.renderTranscript()
		m.viewport.GotoBottom()
		return nil

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
			m.renderTranscript()
		}
		return nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < n-1 {
			m.selected++
			m.renderTranscript()
		}
		return nil

	case key.Matches(msg, m.keys.CopyCode):
		index := 1
		if k := msg.String(); k >= "1" && k <= "9" {
			index = int(k[0] - '0')
		}
		blocks := components.ExtractCodeBlocks(current.Text())
		if index > len(blocks) {
			return m.setStatus(styles.RenderWarning(fmt.Sprintf("No code block %d in this message", index)))
		}
		return m.copy(blocks[index-1].Code, fmt.Sprintf("Copied code block %d", index))

	case key.Matches(msg, m.keys.CopyText):
		text := current.Text()
		if text == "" {
			return nil
		}
		return m.copy(text, "Copied message")

	case key.Matches(msg, m.keys.Speak):
		if !m.ttsSupported() {
			return m.setStatus(styles.RenderWarning("Read-aloud is not available"))
		}
		if current.Role != model.RoleModel {
			return nil
		}
		text := current.SpeakableText()
		if text == "" {
			return nil
		}
		m.tts.Speak(text, model.SpeechCode(m.snap.Language))
		if speaking := m.tts.Speaking(); speaking != m.speaking {
			m.speaking = speaking
			m.renderTranscript()
		}
		return nil
	}
	return nil
}

func (m *Model) copy(text, done string) tea.Cmd {
	if err := m.clip(text); err != nil {
		m.log.Warn("clipboard write failed", "error", err)
		return m.setStatus(styles.RenderError("Clipboard unavailable"))
	}
	return m.setStatus(styles.RenderSuccess(done))
}

// ===== HELPERS =====

func (m *Model) setStatus(text string) tea.Cmd {
	m.statusSeq++
	m.status = text
	return clearStatusAfter(m.statusSeq, statusTTL)
}

func (m *Model) shutdownSpeech() {
	if m.mic != nil && m.mic.Listening() {
		m.mic.Stop()
	}
	if m.tts != nil {
		m.tts.Cancel()
	}
}

func (m *Model) applyUIConfig(mode string, fps int) {
	if mode != "" {
		m.theme = styles.NewTheme(mode)
		m.theme.SetSize(m.width, m.height)
		m.markdown = components.NewMarkdown(m.theme)
		m.picker = components.NewLanguagePicker(m.theme)
		m.input.PromptStyle = m.theme.InputPrompt
	}
	if fps > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(fps), 1)
		m.renderPeriod = time.Second / time.Duration(fps)
	}
	m.renderTranscript()
}

// layout sizes the viewport to the space left by header and footer.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	h := m.height - lipgloss.Height(m.headerView()) - lipgloss.Height(m.footerView())
	m.viewport.Height = max(h, 1)
	if atBottom && m.mode != modeFocus {
		m.viewport.GotoBottom()
	}
}
