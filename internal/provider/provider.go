// Package provider implements the AI text-generation collaborator.
package provider

import (
	"context"
	"errors"
)

// Failure kinds. Callers map these to distinct user-facing notices.
var (
	// ErrUnavailable means no AI backend is configured.
	ErrUnavailable = errors.New("ai backend not configured")
	// ErrTimeout means the request exceeded its time bound.
	ErrTimeout = errors.New("ai request timed out")
	// ErrTransport means the request could not be completed.
	ErrTransport = errors.New("ai transport error")
	// ErrMalformed means the backend answered with an unusable payload.
	ErrMalformed = errors.New("ai response malformed")
)

// Chatter is the interface for AI chat backends.
type Chatter interface {
	// Chat sends a completion request and returns the response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// Message represents one role-tagged conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest contains the ordered turns and generation options.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
	TopK        int
	TopP        float64
}

// ChatResponse contains the generated text.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
