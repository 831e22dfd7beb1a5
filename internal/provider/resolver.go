package provider

import (
	"fmt"

	"github.com/tgsitter/tgsitter/internal/config"
)

// Resolve builds the configured Chatter. Returns (nil, nil) when no backend
// is configured; callers treat a nil Chatter as "AI disabled".
func Resolve(cfg config.AIConfig) (Chatter, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	switch cfg.Backend {
	case "", "gemini":
		return NewGeminiProvider(cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.APIBase, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown ai backend %q", cfg.Backend)
	}
}
