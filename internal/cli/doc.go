// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the lingochat command line and runs its commands.
//
// The grammar is declared as the CLI struct and parsed with kong. Every
// command's Run method receives a *Runtime, which lazily loads the
// configuration, opens the store, creates the Gemini backend and the
// speech adapters, and closes them again when the command returns.
//
// # Commands
//
//   - tui (default): the full-screen chat
//   - chat: line-oriented chat with liner input history
//   - ask: one question against a fresh session, for scripts and pipes
//   - history show|export|clear: the saved conversation
//   - languages, voices: what can be selected
//   - config show|get|set|init|path: configuration
//   - version
//
// Global flags (--language, --model, --search, --config, --debug, --json)
// apply to every command. Errors are printed once by Run and mapped to the
// exit codes in errors.go.
//
// # Usage
//
//	os.Exit(cli.Run(os.Args[1:], cli.DefaultEnv()))
package cli
