package provider

import (
	"context"
	"fmt"
)

// Generator defines the interface for generative-model providers used to source market figures
type Generator interface {
	// Name identifies the provider in logs, metrics and errors
	Name() string

	// Generate sends one prompt and waits for the complete response
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is a single generation call
type Request struct {
	Model           string
	Prompt          string
	SearchGrounding bool // let the provider search the web before answering
}

// Response is the complete provider answer
type Response struct {
	Text   string
	Chunks []GroundingChunk
}

// GroundingChunk is one provider-furnished citation entry
type GroundingChunk struct {
	Web *WebSource // nil when the chunk carries no web page metadata
}

// WebSource is the web page metadata of a grounding chunk
type WebSource struct {
	Title string
	URI   string
}

// Error types
const (
	ErrTypeTransport = "transport"
	ErrTypeAPI       = "api"
)

// Error represents a failure reported by a provider, with context
type Error struct {
	Provider   string `json:"provider"`
	Type       string `json:"type"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s %s error (HTTP %d): %v", e.Provider, e.Type, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s error: %v", e.Provider, e.Type, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the underlying failure description without the provider prefix
func (e *Error) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
