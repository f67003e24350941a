// lingochat - Practice a language by chatting with Gemini in the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/lingochat/internal/cli"
)

// Build information is injected with:
//
//	-ldflags "-X github.com/jeranaias/lingochat/internal/cli.Version=..."
func main() {
	os.Exit(cli.Run(os.Args[1:], cli.DefaultEnv()))
}
