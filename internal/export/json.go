// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/lingochat/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports the transcript in its persisted wire form, wrapped
// with the document metadata.
// NOTE: Images are always included; the output can be decoded back with
// model.DecodeTranscript on the "messages" field.
type JSONExporter struct {
	options *Options
}

type jsonDocument struct {
	Title    string           `json:"title"`
	Language string           `json:"language"`
	Model    string           `json:"model,omitempty"`
	Exported time.Time        `json:"exported"`
	Messages model.Transcript `json:"messages"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export renders doc as indented JSON.
func (e *JSONExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(jsonDocument{
		Title:    doc.Title,
		Language: doc.Language,
		Model:    doc.Model,
		Exported: doc.Exported.UTC(),
		Messages: doc.Transcript,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
