// Package gemini adapts the Gemini API to the provider.Generator contract.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/sawpanic/brlpulse/internal/provider"
)

// Name is the provider name used in logs, metrics and errors
const Name = "gemini"

// DefaultModel answers fast enough for an interactive dashboard and supports search grounding
const DefaultModel = "gemini-2.5-flash"

// Option customises the underlying SDK client
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different endpoint, mostly for tests
func WithBaseURL(url string) Option {
	return func(cc *genai.ClientConfig) {
		cc.HTTPOptions.BaseURL = url
	}
}

// Generator calls Gemini models through the official SDK
type Generator struct {
	client *genai.Client
}

// New builds a generator authenticated with apiKey
func New(ctx context.Context, apiKey string, opts ...Option) (*Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: empty API key")
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Generator{client: client}, nil
}

func (g *Generator) Name() string {
	return Name
}

// Generate sends req.Prompt as a single user turn and returns the full answer
func (g *Generator) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	config := &genai.GenerateContentConfig{}
	if req.SearchGrounding {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, wrapError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		// a blocked prompt still got an answer: no text, so no figures to parse
		event := log.Warn().Str("model", model)
		if resp != nil && resp.PromptFeedback != nil {
			event = event.Str("block_reason", string(resp.PromptFeedback.BlockReason)).
				Str("block_message", resp.PromptFeedback.BlockReasonMessage)
		}
		event.Msg("Gemini returned no candidates")
		return &provider.Response{}, nil
	}

	return &provider.Response{
		Text:   resp.Text(),
		Chunks: groundingChunks(resp.Candidates[0]),
	}, nil
}

func wrapError(err error) error {
	// the caller's own deadline or cancellation passes through untouched
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &provider.Error{Provider: Name, Type: provider.ErrTypeAPI, StatusCode: apiErr.Code, Err: err}
	}
	return &provider.Error{Provider: Name, Type: provider.ErrTypeTransport, Err: err}
}

// groundingChunks converts the candidate's search citations, keeping order
func groundingChunks(c *genai.Candidate) []provider.GroundingChunk {
	if c == nil || c.GroundingMetadata == nil {
		return nil
	}

	chunks := make([]provider.GroundingChunk, 0, len(c.GroundingMetadata.GroundingChunks))
	for _, gc := range c.GroundingMetadata.GroundingChunks {
		if gc == nil {
			continue
		}
		var chunk provider.GroundingChunk
		if gc.Web != nil {
			chunk.Web = &provider.WebSource{Title: gc.Web.Title, URI: gc.Web.URI}
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Factory returns a constructor suitable for building one generator per API key
func Factory(opts ...Option) func(ctx context.Context, apiKey string) (provider.Generator, error) {
	return func(ctx context.Context, apiKey string) (provider.Generator, error) {
		return New(ctx, apiKey, opts...)
	}
}
