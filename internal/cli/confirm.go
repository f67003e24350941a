// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation handling for destructive commands.
//
// USABILITY: TTY detection for proper terminal handling
//
// The flow is the same everywhere:
//   1. If --yes is present, proceed without prompting
//   2. If --json mode, require --yes (no interactive prompts in JSON mode)
//   3. If stdin is not a terminal, require --yes (can't prompt)
//   4. Otherwise, ask and wait for an answer

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// ErrConfirmationRequired is returned when a destructive command cannot
// prompt and --yes was not given.
var ErrConfirmationRequired = errors.New("confirmation required: pass --yes")

// ConfirmationOptions configures RequireConfirmation.
type ConfirmationOptions struct {
	// Yes indicates --yes was passed (skip interactive prompt)
	Yes bool
	// JSONMode indicates --json was passed
	JSONMode bool
}

// RequireConfirmation asks the user to confirm action on env.Stdin.
// It returns false without error when the user declines.
func RequireConfirmation(env Env, action string, opts ConfirmationOptions) (bool, error) {
	if opts.Yes {
		return true, nil
	}
	if opts.JSONMode || !env.Interactive {
		return false, ErrConfirmationRequired
	}

	fmt.Fprintf(env.Stdout, "Are you sure you want to %s? [y/N]: ", action)

	reader := bufio.NewReader(env.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}

// ShowCancellationMessage displays a standard cancellation message.
func ShowCancellationMessage(env Env) {
	fmt.Fprintln(env.Stdout, DimStyle.Render("Cancelled."))
}
