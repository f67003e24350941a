// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/jeranaias/lingochat/internal/logger"
	"github.com/jeranaias/lingochat/internal/model"
)

// ChatSession is one conversation with a fixed reply language.
// It is safe for concurrent use, though callers normally send one turn at a time.
type ChatSession struct {
	client   *Client
	language string
	system   *genai.Content

	mu      sync.Mutex
	history []*genai.Content
}

// Language returns the session's reply language.
func (s *ChatSession) Language() string {
	return s.language
}

// HistoryLen returns the number of recorded turns (user and model entries).
func (s *ChatSession) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Send sends parts and waits for the whole reply.
func (s *ChatSession) Send(ctx context.Context, parts []model.Part) (Chunk, error) {
	user, err := userContent(parts)
	if err != nil {
		return Chunk{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	resp, err := s.client.gen.GenerateContent(ctx, s.client.model, s.contentsWith(user), s.config(SendOptions{}))
	if err != nil {
		s.client.log.WarnContext(ctx, "generate failed", logger.Err(err))
		return Chunk{}, classifyError(err)
	}
	chunk, err := chunkFromResponse(resp)
	if err != nil {
		return Chunk{}, err
	}

	s.record(user, chunk.Text)
	return chunk, nil
}

// SendStream sends parts and yields the reply incrementally. The sequence is
// single-use. A mid-stream error is yielded once and ends the sequence.
// Stopping iteration early abandons the turn without recording it.
func (s *ChatSession) SendStream(ctx context.Context, parts []model.Part, opts SendOptions) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		user, err := userContent(parts)
		if err != nil {
			yield(Chunk{}, err)
			return
		}

		var reply strings.Builder
		chunks := 0
		for resp, err := range s.client.gen.GenerateContentStream(ctx, s.client.model, s.contentsWith(user), s.config(opts)) {
			if err != nil {
				s.client.log.WarnContext(ctx, "stream failed", "chunks", chunks, logger.Err(err))
				yield(Chunk{}, classifyError(err))
				return
			}
			chunk, err := chunkFromResponse(resp)
			if err != nil {
				yield(Chunk{}, err)
				return
			}
			chunks++
			reply.WriteString(chunk.Text)
			if !yield(chunk, nil) {
				return
			}
		}

		s.record(user, reply.String())
		s.client.log.DebugContext(ctx, "stream complete", "chunks", chunks, "chars", reply.Len(), "search", opts.Search)
	}
}

func (s *ChatSession) config(opts SendOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{SystemInstruction: s.system}
	if opts.Search {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

// contentsWith returns a snapshot of the history followed by user.
func (s *ChatSession) contentsWith(user *genai.Content) []*genai.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*genai.Content, 0, len(s.history)+1)
	out = append(out, s.history...)
	return append(out, user)
}

func (s *ChatSession) record(user *genai.Content, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, user, &genai.Content{
		Role:  string(model.RoleModel),
		Parts: []*genai.Part{{Text: reply}},
	})
}

// =============================================================================
// CONVERSION
// =============================================================================

func userContent(parts []model.Part) (*genai.Content, error) {
	gp, err := toParts(parts)
	if err != nil {
		return nil, err
	}
	if len(gp) == 0 {
		return nil, errors.New("message has no content")
	}
	return &genai.Content{Role: string(model.RoleUser), Parts: gp}, nil
}

func toParts(parts []model.Part) ([]*genai.Part, error) {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsImage() {
			data, err := base64.StdEncoding.DecodeString(p.Image.Data)
			if err != nil {
				return nil, fmt.Errorf("invalid image data: %w", err)
			}
			out = append(out, &genai.Part{InlineData: &genai.Blob{MIMEType: p.Image.MimeType, Data: data}})
			continue
		}
		if p.Text == "" {
			continue
		}
		out = append(out, &genai.Part{Text: p.Text})
	}
	return out, nil
}

func transcriptToContents(t model.Transcript) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(t))
	for i, m := range t {
		if m.IsPlaceholder() {
			continue
		}
		parts, err := toParts(m.Parts)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: string(m.Role), Parts: parts})
	}
	return out, nil
}

// chunkFromResponse extracts the first candidate's text and web citations.
// Thought parts are skipped.
func chunkFromResponse(resp *genai.GenerateContentResponse) (Chunk, error) {
	var chunk Chunk
	if resp == nil {
		return chunk, nil
	}
	if len(resp.Candidates) == 0 {
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			return chunk, fmt.Errorf("%w: %s", ErrBlocked, fb.BlockReason)
		}
		return chunk, nil
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			if p == nil || p.Thought {
				continue
			}
			b.WriteString(p.Text)
		}
		chunk.Text = b.String()
	}
	if gm := cand.GroundingMetadata; gm != nil {
		for _, gc := range gm.GroundingChunks {
			if gc == nil || gc.Web == nil {
				continue
			}
			chunk.Citations = append(chunk.Citations, model.Citation{URI: gc.Web.URI, Title: gc.Web.Title})
		}
	}
	return chunk, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
