package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Chatter over the OpenAI chat completions API.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	timeout      time.Duration
}

// NewOpenAIProvider creates an OpenAI provider. apiBase may be empty to use
// the public endpoint; timeout zero means 30 seconds.
func NewOpenAIProvider(apiKey, apiBase, defaultModel string, timeout time.Duration) *OpenAIProvider {
	if defaultModel == "" {
		defaultModel = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		cfg.BaseURL = apiBase
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
		timeout:      timeout,
	}
}

func (p *OpenAIProvider) DefaultModel() string {
	return p.defaultModel
}

func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		// Gemini-style history uses "model" for assistant turns.
		if role == "model" {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
	})
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded),
			errors.As(err, &netErr) && netErr.Timeout():
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrMalformed)
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
