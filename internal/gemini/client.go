// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/jeranaias/lingochat/internal/logger"
	"github.com/jeranaias/lingochat/internal/model"
)

// Configuration constants for the Gemini API.
const (
	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "gemini-2.5-flash"

	// DefaultTimeout bounds a non-streaming request. Streams are bounded by
	// their context only.
	DefaultTimeout = 60 * time.Second
)

// Error variables for common API failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("Gemini API key not configured")

	// ErrAuthFailed indicates the key was rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the quota or rate limit was hit.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the configured model id does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrBlocked indicates the reply was withheld by safety filters.
	ErrBlocked = errors.New("response blocked")
)

// SystemInstruction returns the instruction that fixes the reply language.
func SystemInstruction(language string) string {
	return fmt.Sprintf("You are a helpful and friendly AI assistant. You must respond in %s. "+
		"Format your responses using Markdown when appropriate, such as for code blocks, lists, or emphasis.", language)
}

// =============================================================================
// PUBLIC TYPES
// =============================================================================

// Chunk is one increment of a reply.
type Chunk struct {
	Text      string
	Citations []model.Citation
}

// SendOptions adjusts a single request.
type SendOptions struct {
	// Search attaches the web search tool to this request only.
	Search bool
}

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// generator is the slice of genai.Models the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Gemini API.
type Client struct {
	gen    generator
	model  string
	apiKey string
	log    *slog.Logger
}

// NewClient creates a client. It fails with ErrNotConfigured when no key is set.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := newClient(gc.Models, cfg.Model, log)
	c.apiKey = cfg.APIKey
	c.log.Debug("gemini client ready", "model", c.model, "key", c.KeyFingerprint())
	return c, nil
}

func newClient(gen generator, modelID string, log *slog.Logger) *Client {
	if modelID == "" {
		modelID = DefaultModel
	}
	return &Client{
		gen:   gen,
		model: modelID,
		log:   logger.Or(log).With("component", "gemini"),
	}
}

// Model returns the model id requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// KeyFingerprint returns a short SHA-256 fingerprint of the API key for logs.
// SECURITY: Never log key fragments.
func (c *Client) KeyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

// NewSession creates a chat session replying in language. history seeds the
// session; placeholder and empty messages in it are skipped.
func (c *Client) NewSession(ctx context.Context, language string, history model.Transcript) (*ChatSession, error) {
	if c == nil || c.gen == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contents, err := transcriptToContents(history)
	if err != nil {
		return nil, fmt.Errorf("failed to convert history: %w", err)
	}

	c.log.DebugContext(ctx, "session created", "language", language, "history", len(contents))
	return &ChatSession{
		client:   c,
		language: language,
		system: &genai.Content{
			Parts: []*genai.Part{{Text: SystemInstruction(language)}},
		},
		history: contents,
	}, nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// classifyError maps SDK errors onto the package's sentinel errors.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	code, msg, ok := apiErrorDetails(err)
	if !ok {
		return err
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
	case http.StatusBadRequest:
		if containsFold(msg, "api key") {
			return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
		}
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	return fmt.Errorf("Gemini API error %d: %s", code, msg)
}

func apiErrorDetails(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	return 0, "", false
}
