// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Slash command suggestion for typo correction.
package cli

import (
	"strings"
)

// slashCommands lists the chat commands, aliases included.
var slashCommands = []string{
	"/quit", "/exit", "/q",
	"/help",
	"/new",
	"/lang", "/language",
	"/search",
	"/image", "/attach",
	"/speak",
	"/listen",
	"/history",
}

// SuggestCommand returns the slash command closest to input, or "" when
// nothing is near enough. The threshold grows with the input length.
func SuggestCommand(input string) string {
	input = strings.ToLower(input)
	if !strings.HasPrefix(input, "/") {
		input = "/" + input
	}

	// A bare "/x" is too short to guess from.
	if len(input) < 3 {
		return ""
	}

	bestMatch := ""
	bestDistance := -1

	// Up to "/abc": 1 edit. Longer: 2, which catches "/hepl".
	maxDistance := 1
	if len(input) >= 5 {
		maxDistance = 2
	}

	for _, cmd := range slashCommands {
		distance := levenshteinDistance(input, cmd)

		if distance == 0 {
			return ""
		}

		if distance <= maxDistance && (bestDistance == -1 || distance < bestDistance) {
			bestDistance = distance
			bestMatch = cmd
		}
	}

	return bestMatch
}

// levenshteinDistance is the byte-wise edit distance between s1 and s2.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	rows := len(s1) + 1
	cols := len(s2) + 1

	prev := make([]int, cols)
	curr := make([]int, cols)

	for j := 0; j < cols; j++ {
		prev[j] = j
	}

	for i := 1; i < rows; i++ {
		curr[0] = i

		for j := 1; j < cols; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}

			// Minimum of: delete, insert, substitute
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}

		prev, curr = curr, prev
	}

	return prev[cols-1]
}
