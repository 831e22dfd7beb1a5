package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const geminiDefaultBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider implements Chatter using the Gemini REST API with a static
// API key passed as a query parameter.
type GeminiProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	httpClient   *http.Client
}

// NewGeminiProvider creates a Gemini provider. timeout bounds each request;
// zero means 30 seconds.
func NewGeminiProvider(apiKey, defaultModel string, timeout time.Duration) *GeminiProvider {
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiProvider{
		apiKey:       apiKey,
		apiBase:      geminiDefaultBase,
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (p *GeminiProvider) DefaultModel() string {
	return p.defaultModel
}

func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	jsonBody, err := json.Marshal(buildGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.apiBase, model)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	q := httpReq.URL.Query()
	q.Set("key", p.apiKey)
	httpReq.URL.RawQuery = q.Encode()

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read gemini response: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gemini API status %d: %s", ErrTransport, resp.StatusCode, string(respBody))
	}

	return parseGeminiResponse(respBody)
}

// classifyTransportErr maps HTTP client failures onto the provider taxonomy.
func classifyTransportErr(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// --- Gemini request/response types ---

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func buildGeminiRequest(req *ChatRequest) *geminiRequest {
	gemReq := &geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
			TopK:            req.TopK,
			TopP:            req.TopP,
		},
	}

	for _, msg := range req.Messages {
		role := msg.Role
		switch role {
		case "assistant":
			role = "model"
		case "system":
			role = "user"
		}
		gemReq.Contents = append(gemReq.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}

	return gemReq
}

func parseGeminiResponse(body []byte) (*ChatResponse, error) {
	var gemResp geminiResponse
	if err := json.Unmarshal(body, &gemResp); err != nil {
		return nil, fmt.Errorf("%w: parse gemini response: %v", ErrMalformed, err)
	}

	if len(gemResp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in gemini response", ErrMalformed)
	}

	candidate := gemResp.Candidates[0]
	result := &ChatResponse{
		FinishReason: candidate.FinishReason,
	}

	if gemResp.UsageMetadata != nil {
		result.Usage = Usage{
			PromptTokens:     gemResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: gemResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gemResp.UsageMetadata.TotalTokenCount,
		}
	}

	for _, part := range candidate.Content.Parts {
		result.Content += part.Text
	}
	if result.Content == "" {
		return nil, fmt.Errorf("%w: empty candidate text", ErrMalformed)
	}

	return result, nil
}
