// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/jeranaias/lingochat/internal/logger"
	"github.com/jeranaias/lingochat/internal/model"
)

// fakeGenerator records requests and replays canned responses.
type fakeGenerator struct {
	responses []*genai.GenerateContentResponse
	failAfter int // stream: fail after this many responses (-1 = never)
	err       error

	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, m string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastModel, f.lastContents, f.lastConfig = m, contents, cfg
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[0], nil
}

func (f *fakeGenerator) GenerateContentStream(_ context.Context, m string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.lastModel, f.lastContents, f.lastConfig = m, contents, cfg
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for i, r := range f.responses {
			if f.failAfter >= 0 && i == f.failAfter {
				yield(nil, f.err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func textResp(text string, citations ...model.Citation) *genai.GenerateContentResponse {
	cand := &genai.Candidate{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
	}
	if len(citations) > 0 {
		gm := &genai.GroundingMetadata{}
		for _, c := range citations {
			gm.GroundingChunks = append(gm.GroundingChunks, &genai.GroundingChunk{
				Web: &genai.GroundingChunkWeb{URI: c.URI, Title: c.Title},
			})
		}
		cand.GroundingMetadata = gm
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{cand}}
}

func newTestSession(t *testing.T, gen *fakeGenerator, history model.Transcript) *ChatSession {
	t.Helper()
	c := newClient(gen, "", logger.Discard())
	s, err := c.NewSession(context.Background(), "Spanish", history)
	require.NoError(t, err)
	return s
}

// =============================================================================
// CLIENT
// =============================================================================

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSystemInstruction(t *testing.T) {
	got := SystemInstruction("French")
	assert.Contains(t, got, "You must respond in French.")
	assert.Contains(t, got, "Markdown")
}

func TestKeyFingerprint(t *testing.T) {
	c := newClient(&fakeGenerator{}, "", nil)
	assert.Equal(t, "none", c.KeyFingerprint())
	c.apiKey = "secret-key"
	fp := c.KeyFingerprint()
	assert.Len(t, fp, 8)
	assert.NotContains(t, fp, "secret")
}

func TestNewSession_SeedsHistory(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{textResp("ok")}, failAfter: -1}
	history := model.Transcript{
		model.NewModelMessage("Hola, soy tu asistente."),
		model.NewUserMessage("hola", &model.InlineData{MimeType: "image/png", Data: "aGk="}),
		model.NewModelMessage("¡Hola!"),
		model.Placeholder(),
	}
	s := newTestSession(t, gen, history)
	assert.Equal(t, 3, s.HistoryLen(), "placeholder is skipped")

	_, err := s.Send(context.Background(), []model.Part{model.TextPart("next")})
	require.NoError(t, err)

	require.Len(t, gen.lastContents, 4)
	assert.Equal(t, "model", gen.lastContents[0].Role)
	img := gen.lastContents[1].Parts[0].InlineData
	require.NotNil(t, img)
	assert.Equal(t, []byte("hi"), img.Data)
	assert.Equal(t, DefaultModel, gen.lastModel)
	assert.Contains(t, gen.lastConfig.SystemInstruction.Parts[0].Text, "Spanish")
	assert.Nil(t, gen.lastConfig.Tools)
}

func TestNewSession_BadImageData(t *testing.T) {
	c := newClient(&fakeGenerator{}, "", nil)
	_, err := c.NewSession(context.Background(), "English", model.Transcript{
		model.NewUserMessage("", &model.InlineData{MimeType: "image/png", Data: "%%%"}),
	})
	assert.Error(t, err)
}

// =============================================================================
// SEND
// =============================================================================

func TestSend_RecordsTurn(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{textResp("Hi there")}, failAfter: -1}
	s := newTestSession(t, gen, nil)

	chunk, err := s.Send(context.Background(), []model.Part{model.TextPart("hello")})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", chunk.Text)
	assert.Equal(t, 2, s.HistoryLen())
}

func TestSend_ErrorLeavesHistory(t *testing.T) {
	gen := &fakeGenerator{err: genai.APIError{Code: 429, Message: "quota"}}
	s := newTestSession(t, gen, nil)

	_, err := s.Send(context.Background(), []model.Part{model.TextPart("hello")})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 0, s.HistoryLen())
}

func TestSend_EmptyMessage(t *testing.T) {
	s := newTestSession(t, &fakeGenerator{}, nil)
	_, err := s.Send(context.Background(), []model.Part{model.TextPart("")})
	assert.Error(t, err)
}

// =============================================================================
// STREAM
// =============================================================================

func TestSendStream_YieldsChunksAndCitations(t *testing.T) {
	a := model.Citation{URI: "https://a", Title: "A"}
	gen := &fakeGenerator{
		responses: []*genai.GenerateContentResponse{textResp("Hel"), textResp("lo", a), textResp("!")},
		failAfter: -1,
	}
	s := newTestSession(t, gen, nil)

	var texts []string
	var cites []model.Citation
	for chunk, err := range s.SendStream(context.Background(), []model.Part{model.TextPart("hi")}, SendOptions{Search: true}) {
		require.NoError(t, err)
		texts = append(texts, chunk.Text)
		cites = append(cites, chunk.Citations...)
	}

	assert.Equal(t, []string{"Hel", "lo", "!"}, texts)
	assert.Equal(t, []model.Citation{a}, cites)
	require.Len(t, gen.lastConfig.Tools, 1)
	assert.NotNil(t, gen.lastConfig.Tools[0].GoogleSearch)
	assert.Equal(t, 2, s.HistoryLen())
}

func TestSendStream_MidStreamFailure(t *testing.T) {
	gen := &fakeGenerator{
		responses: []*genai.GenerateContentResponse{textResp("par"), textResp("tial")},
		failAfter: 1,
		err:       errors.New("connection reset"),
	}
	s := newTestSession(t, gen, nil)

	var got string
	var streamErr error
	for chunk, err := range s.SendStream(context.Background(), []model.Part{model.TextPart("hi")}, SendOptions{}) {
		if err != nil {
			streamErr = err
			break
		}
		got += chunk.Text
	}

	assert.Equal(t, "par", got)
	assert.EqualError(t, streamErr, "connection reset")
	assert.Equal(t, 0, s.HistoryLen(), "failed turn is not recorded")
}

func TestSendStream_EarlyStopNotRecorded(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{textResp("a"), textResp("b")}, failAfter: -1}
	s := newTestSession(t, gen, nil)

	for range s.SendStream(context.Background(), []model.Part{model.TextPart("hi")}, SendOptions{}) {
		break
	}
	assert.Equal(t, 0, s.HistoryLen())
}

func TestChunkFromResponse_SkipsThoughtsAndBlocks(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "thinking", Thought: true}, {Text: "answer"}}},
	}}}
	chunk, err := chunkFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "answer", chunk.Text)

	blocked := &genai.GenerateContentResponse{PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY"}}
	_, err = chunkFromResponse(blocked)
	assert.ErrorIs(t, err, ErrBlocked)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"unauthorized", genai.APIError{Code: 403, Message: "denied"}, ErrAuthFailed},
		{"bad key", genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."}, ErrAuthFailed},
		{"not found", genai.APIError{Code: 404, Message: "models/x is not found"}, ErrModelNotFound},
		{"quota", genai.APIError{Code: 429, Message: "Resource exhausted"}, ErrRateLimited},
		{"cancel", context.Canceled, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyError(tt.in), tt.want)
		})
	}

	other := classifyError(genai.APIError{Code: 500, Message: "internal"})
	assert.EqualError(t, other, "Gemini API error 500: internal")
}
