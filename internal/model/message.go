// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleModel:
		return "Gemini"
	default:
		return string(r)
	}
}

// =============================================================================
// PART TYPE
// =============================================================================

// InlineData is an image carried inside a message. Data is base64 encoded.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Size returns the decoded byte length of Data.
func (d InlineData) Size() int64 {
	n := len(d.Data)
	pad := 0
	for i := n - 1; i >= 0 && i >= n-2 && d.Data[i] == '='; i-- {
		pad++
	}
	return int64(n/4*3 + (n%4)*3/4 - pad)
}

// Part is one piece of message content: either text or an inline image.
// Exactly one of the two is meaningful; Image != nil selects the image form.
type Part struct {
	Text  string
	Image *InlineData
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart returns an inline image part.
func ImagePart(mimeType, base64Data string) Part {
	return Part{Image: &InlineData{MimeType: mimeType, Data: base64Data}}
}

// IsImage reports whether the part is an inline image.
func (p Part) IsImage() bool {
	return p.Image != nil
}

type partJSON struct {
	Text       *string     `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// MarshalJSON encodes the part as {"text":...} or {"inlineData":{...}}.
// Empty text is kept so a streaming placeholder round-trips as itself.
func (p Part) MarshalJSON() ([]byte, error) {
	if p.Image != nil {
		return json.Marshal(partJSON{InlineData: p.Image})
	}
	text := p.Text
	return json.Marshal(partJSON{Text: &text})
}

// UnmarshalJSON decodes either part form.
func (p *Part) UnmarshalJSON(data []byte) error {
	var raw partJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Part{}
	if raw.InlineData != nil {
		img := *raw.InlineData
		p.Image = &img
		return nil
	}
	if raw.Text != nil {
		p.Text = *raw.Text
	}
	return nil
}

// =============================================================================
// CITATION TYPE
// =============================================================================

// Citation is a web source the model reply was grounded on.
type Citation struct {
	URI   string
	Title string
}

type citationJSON struct {
	Web *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web,omitempty"`
}

// MarshalJSON encodes the citation in grounding-chunk form {"web":{...}}.
func (c Citation) MarshalJSON() ([]byte, error) {
	var raw citationJSON
	raw.Web = &struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	}{URI: c.URI, Title: c.Title}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes a grounding chunk. Chunks without a web source decode
// to the zero Citation.
func (c *Citation) UnmarshalJSON(data []byte) error {
	var raw citationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Citation{}
	if raw.Web != nil {
		c.URI = raw.Web.URI
		c.Title = raw.Web.Title
	}
	return nil
}

// DisplayTitle returns the title, or the URI when the title is blank.
func (c Citation) DisplayTitle() string {
	if strings.TrimSpace(c.Title) == "" {
		return c.URI
	}
	return c.Title
}

// MergeCitations appends incoming to existing, skipping any citation whose
// URI is empty or already present. The first citation seen for a URI wins
// and arrival order is kept.
func MergeCitations(existing, incoming []Citation) []Citation {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, c := range existing {
		seen[c.URI] = struct{}{}
	}
	out := existing
	for _, c := range incoming {
		if c.URI == "" {
			continue
		}
		if _, dup := seen[c.URI]; dup {
			continue
		}
		seen[c.URI] = struct{}{}
		out = append(out, c)
	}
	return out
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single transcript entry.
type Message struct {
	Role      Role       `json:"role"`
	Parts     []Part     `json:"parts"`
	Citations []Citation `json:"groundingChunks,omitempty"`
}

// NewUserMessage builds a user message. The image, when present, precedes
// the text; blank text is omitted.
func NewUserMessage(text string, image *InlineData) Message {
	msg := Message{Role: RoleUser}
	if image != nil {
		img := *image
		msg.Parts = append(msg.Parts, Part{Image: &img})
	}
	if strings.TrimSpace(text) != "" {
		msg.Parts = append(msg.Parts, TextPart(text))
	}
	return msg
}

// NewModelMessage builds a model message holding a single text part.
func NewModelMessage(text string) Message {
	return Message{Role: RoleModel, Parts: []Part{TextPart(text)}}
}

// Placeholder returns the empty model message appended while a reply streams.
func Placeholder() Message {
	return NewModelMessage("")
}

// IsPlaceholder reports whether m is a model message with no text yet.
func (m Message) IsPlaceholder() bool {
	return m.Role == RoleModel && len(m.Images()) == 0 && m.Text() == ""
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if !p.IsImage() {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// SpeakableText joins the non-empty text parts with single spaces.
func (m Message) SpeakableText() string {
	var texts []string
	for _, p := range m.Parts {
		if !p.IsImage() && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

// Images returns the inline images in display order.
func (m Message) Images() []InlineData {
	var out []InlineData
	for _, p := range m.Parts {
		if p.IsImage() {
			out = append(out, *p.Image)
		}
	}
	return out
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	out := Message{Role: m.Role}
	if m.Parts != nil {
		out.Parts = make([]Part, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = p
			if p.Image != nil {
				img := *p.Image
				out.Parts[i].Image = &img
			}
		}
	}
	if m.Citations != nil {
		out.Citations = append([]Citation(nil), m.Citations...)
	}
	return out
}

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered message list of one chat.
type Transcript []Message

// ErrMalformedTranscript is returned when a persisted transcript cannot be decoded.
var ErrMalformedTranscript = errors.New("malformed transcript")

// Clone returns a deep copy of t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	for i, m := range t {
		out[i] = m.Clone()
	}
	return out
}

// Last returns the final message and true, or false when t is empty.
func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}

// Encode serializes the transcript to its persisted JSON form.
func (t Transcript) Encode() ([]byte, error) {
	if t == nil {
		t = Transcript{}
	}
	return json.Marshal(t)
}

// DecodeTranscript parses a persisted transcript. Empty input yields an empty
// transcript. Anything else that is not a JSON array of messages wraps
// ErrMalformedTranscript.
func DecodeTranscript(data []byte) (Transcript, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTranscript, err)
	}
	for i, m := range t {
		if m.Role != RoleUser && m.Role != RoleModel {
			return nil, fmt.Errorf("%w: message %d has unknown role %q", ErrMalformedTranscript, i, m.Role)
		}
	}
	return t, nil
}

