// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// Placeholders expanded in command templates.
const (
	placeholderLang  = "{lang}"
	placeholderVoice = "{voice}"
)

// ErrUnsupported is returned when the engine command is missing.
var ErrUnsupported = errors.New("speech engine not available")

// Command is a parsed command template such as "espeak-ng -v {voice}".
type Command struct {
	argv []string
}

// ParseCommand splits a shell-style command line. An empty line yields the
// zero Command, which is never available.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, nil
	}
	argv, err := shlex.Split(line)
	if err != nil {
		return Command{}, fmt.Errorf("invalid command %q: %w", line, err)
	}
	return Command{argv: argv}, nil
}

// IsZero reports whether the command is empty.
func (c Command) IsZero() bool {
	return len(c.argv) == 0
}

// Available reports whether the program is on PATH.
func (c Command) Available() bool {
	if c.IsZero() {
		return false
	}
	_, err := exec.LookPath(c.argv[0])
	return err == nil
}

// String returns the template as a single line.
func (c Command) String() string {
	return strings.Join(c.argv, " ")
}

// build expands placeholders and returns an exec.Cmd bound to ctx.
func (c Command) build(ctx context.Context, vars map[string]string) (*exec.Cmd, error) {
	if c.IsZero() {
		return nil, ErrUnsupported
	}
	args := make([]string, len(c.argv))
	for i, a := range c.argv {
		for k, v := range vars {
			a = strings.ReplaceAll(a, k, v)
		}
		args[i] = a
	}
	return exec.CommandContext(ctx, args[0], args[1:]...), nil
}

// =============================================================================
// RECOGNIZER
// =============================================================================

// Result is one recognition hypothesis.
type Result struct {
	Text  string
	Final bool
}

// Recognizer captures speech until ctx is done or the engine ends on its own.
type Recognizer interface {
	Available() bool
	Recognize(ctx context.Context, lang string, emit func(Result)) error
}

// CommandRecognizer runs an external program that prints recognition
// results to stdout, one per line:
//
//	partial: hello wor
//	final: hello world
//
// Lines without a prefix are treated as final.
type CommandRecognizer struct {
	Cmd Command
}

// Available implements Recognizer.
func (r *CommandRecognizer) Available() bool {
	return r.Cmd.Available()
}

// Recognize implements Recognizer. Cancellation of ctx is a normal stop and
// returns nil.
func (r *CommandRecognizer) Recognize(ctx context.Context, lang string, emit func(Result)) error {
	cmd, err := r.Cmd.build(ctx, map[string]string{placeholderLang: lang})
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("recognizer stdout: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &limitedWriter{w: &stderr, n: 4096}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start recognizer: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if res, ok := parseResultLine(scanner.Text()); ok {
			emit(res)
		}
	}

	err = cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("recognizer exited: %w: %s", err, msg)
		}
		return fmt.Errorf("recognizer exited: %w", err)
	}
	return nil
}

func parseResultLine(line string) (Result, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Result{}, false
	}
	if rest, ok := cutPrefixFold(line, "partial:"); ok {
		return Result{Text: strings.TrimSpace(rest)}, true
	}
	if rest, ok := cutPrefixFold(line, "final:"); ok {
		rest = strings.TrimSpace(rest)
		return Result{Text: rest, Final: true}, rest != ""
	}
	return Result{Text: line, Final: true}, true
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// =============================================================================
// SYNTHESIZER
// =============================================================================

// Synthesizer speaks one utterance, returning when playback ends.
type Synthesizer interface {
	Available() bool
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, text string, voice Voice, lang string) error
}

// CommandSynthesizer runs an external TTS program per utterance with the
// text on stdin.
type CommandSynthesizer struct {
	Cmd Command

	// VoicesCmd lists voices in `espeak-ng --voices` format. Optional.
	VoicesCmd Command

	// Static voices used instead of VoicesCmd when non-empty.
	Static []Voice
}

// Available implements Synthesizer.
func (s *CommandSynthesizer) Available() bool {
	return s.Cmd.Available()
}

// Voices implements Synthesizer.
func (s *CommandSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	if len(s.Static) > 0 {
		return s.Static, nil
	}
	if !s.VoicesCmd.Available() {
		return nil, nil
	}
	cmd, err := s.VoicesCmd.build(ctx, nil)
	if err != nil {
		return nil, err
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	return ParseEspeakVoices(string(out)), nil
}

// Speak implements Synthesizer. Cancelling ctx kills the process and
// returns nil.
func (s *CommandSynthesizer) Speak(ctx context.Context, text string, voice Voice, lang string) error {
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = lang
	}
	cmd, err := s.Cmd.build(ctx, map[string]string{placeholderVoice: voiceID, placeholderLang: lang})
	if err != nil {
		return err
	}
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = io.Discard
	var stderr strings.Builder
	cmd.Stderr = &limitedWriter{w: &stderr, n: 4096}

	err = cmd.Run()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("synthesizer failed: %w: %s", err, msg)
		}
		return fmt.Errorf("synthesizer failed: %w", err)
	}
	return nil
}

// limitedWriter keeps at most n bytes.
type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	if l.n <= 0 {
		return total, nil
	}
	if len(p) > l.n {
		p = p[:l.n]
	}
	l.n -= len(p)
	if _, err := l.w.Write(p); err != nil {
		return 0, err
	}
	return total, nil
}
