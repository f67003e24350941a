// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// Version information (set at build time via -ldflags).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const description = "Practice a language by chatting with Gemini in your terminal."

// =============================================================================
// ENVIRONMENT
// =============================================================================

// Env carries the process streams and exit hook. Tests substitute buffers
// and a recording Exit.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Exit is called by the parser after --help and on usage errors.
	Exit func(int)

	// Interactive reports whether Stdin and Stdout are a terminal.
	Interactive bool
}

// DefaultEnv returns the real process environment.
func DefaultEnv() Env {
	return Env{
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Exit:        os.Exit,
		Interactive: IsTTY() && IsStdoutTTY(),
	}
}

// =============================================================================
// COMMAND LINE
// =============================================================================

// Globals are flags accepted by every command.
type Globals struct {
	ConfigPath string `name:"config" type:"path" placeholder:"FILE" help:"Config file to use instead of ~/.lingochat/config.toml."`
	Language   string `short:"l" placeholder:"NAME" help:"Conversation language, e.g. Spanish. Stored for later runs."`
	Model      string `short:"m" placeholder:"ID" help:"Gemini model id."`
	Search     bool   `short:"s" help:"Ground replies with Google Search."`
	Debug      bool   `help:"Log at debug level."`
	JSON       bool   `help:"Print machine-readable JSON where supported."`
}

// CLI is the kong grammar.
type CLI struct {
	Globals

	TUI       TUICmd       `cmd:"" name:"tui" default:"1" help:"Open the full-screen chat (default)."`
	Chat      ChatCmd      `cmd:"" help:"Chat line by line in the terminal."`
	Ask       AskCmd       `cmd:"" help:"Ask a single question and print the reply."`
	History   HistoryCmd   `cmd:"" help:"Show, export or clear the saved conversation."`
	Languages LanguagesCmd `cmd:"" help:"List the supported conversation languages."`
	Voices    VoicesCmd    `cmd:"" help:"List the voices of the configured synthesizer."`
	Config    ConfigCmd    `cmd:"" help:"Show or edit the configuration."`
	Version   VersionCmd   `cmd:"" help:"Show version information (${version})."`
}

// Run parses args and executes the selected command. It returns the
// process exit code.
func Run(args []string, env Env) int {
	if env.Stdin == nil {
		env.Stdin = os.Stdin
	}
	if env.Stdout == nil {
		env.Stdout = io.Discard
	}
	if env.Stderr == nil {
		env.Stderr = io.Discard
	}

	exited, exitCode := false, ExitSuccess
	exit := func(code int) {
		exited, exitCode = true, code
		if env.Exit != nil {
			env.Exit(code)
		}
	}

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("lingochat"),
		kong.Description(description),
		kong.Exit(exit),
		kong.Writers(env.Stdout, env.Stderr),
		kong.Vars{"version": Version},
	)
	if err != nil {
		fmt.Fprintf(env.Stderr, "lingochat: %v\n", err)
		return ExitGeneralError
	}

	kctx, err := parser.Parse(args)
	if exited {
		// --help already printed.
		return exitCode
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "lingochat: error: %v\n", err)
		return ExitUsageError
	}

	// SIGINT is left to the commands: the TUI reads Ctrl+C as a key and the
	// chat REPL uses it to cancel a single reply.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	rt := newRuntime(ctx, &cli.Globals, env)
	err = kctx.Run(rt)
	if closeErr := rt.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		DisplayError(env, err, cli.JSON)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// SMALL COMMANDS
// =============================================================================

// VersionCmd prints build information.
type VersionCmd struct{}

// Run implements the version command.
func (c *VersionCmd) Run(rt *Runtime) error {
	if rt.Globals.JSON {
		return NewJSONResponse("version", map[string]string{
			"version":    Version,
			"git_commit": GitCommit,
			"build_date": BuildDate,
		}).Print(rt.Env.Stdout)
	}
	fmt.Fprintf(rt.Env.Stdout, "lingochat %s\n", Version)
	fmt.Fprintf(rt.Env.Stdout, "  %s %s\n", RenderLabel("Commit:", 8), GitCommit)
	fmt.Fprintf(rt.Env.Stdout, "  %s %s\n", RenderLabel("Built:", 8), BuildDate)
	return nil
}
