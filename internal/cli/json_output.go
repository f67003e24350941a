// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support for scripting.
//
// Every command that accepts --json wraps its payload in JSONResponse so
// callers can test .success without knowing the command.

package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC 3339 time when the response was generated
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the indented response to w.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// LanguageData is one row of the languages command.
type LanguageData struct {
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
	Code       string `json:"code"`
	Current    bool   `json:"current"`
}

// VoiceData is one row of the voices command.
type VoiceData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Selected bool   `json:"selected,omitempty"`
}

// AskData represents the data returned by the ask command.
type AskData struct {
	Response   string       `json:"response"`
	Language   string       `json:"language"`
	Model      string       `json:"model"`
	Sources    []SourceData `json:"sources,omitempty"`
	DurationMs int64        `json:"duration_ms"`
	Search     bool         `json:"search"`
}

// SourceData is a grounding source of a reply.
type SourceData struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// HistoryData represents the data returned by history show.
type HistoryData struct {
	Language string `json:"language"`
	Messages int    `json:"messages"`
	Images   int    `json:"images"`
	// Transcript is the persisted wire form.
	Transcript json.RawMessage `json:"transcript"`
}
