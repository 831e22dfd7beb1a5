// Package config provides configuration types and loading for tgsitter.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Platform PlatformConfig `json:"platform"`
	AI       AIConfig       `json:"ai"`
	Reply    ReplyConfig    `json:"reply"`
	Console  ConsoleConfig  `json:"console"`
}

// PlatformConfig selects the messaging platform driver.
type PlatformConfig struct {
	Driver string `json:"driver" envconfig:"PLATFORM_DRIVER"`
}

// PathsConfig groups filesystem locations.
type PathsConfig struct {
	SessionDir string `json:"sessionDir" envconfig:"SESSION_DIR"`
	DBPath     string `json:"dbPath" envconfig:"DB_PATH"`
}

// AIConfig configures the AI text-generation collaborator.
type AIConfig struct {
	Backend     string        `json:"backend" envconfig:"AI_BACKEND"` // "gemini" or "openai"
	APIKey      string        `json:"apiKey" envconfig:"AI_API_KEY"`
	APIBase     string        `json:"apiBase,omitempty" envconfig:"AI_API_BASE"`
	Model       string        `json:"model" envconfig:"AI_MODEL"`
	Timeout     time.Duration `json:"timeout" envconfig:"AI_TIMEOUT"`
	MaxTokens   int           `json:"maxTokens" envconfig:"AI_MAX_TOKENS"`
	Temperature float64       `json:"temperature" envconfig:"AI_TEMPERATURE"`
	TopK        int           `json:"topK" envconfig:"AI_TOP_K"`
	TopP        float64       `json:"topP" envconfig:"AI_TOP_P"`
}

// Configured reports whether an AI backend can be used.
func (c AIConfig) Configured() bool {
	return c.APIKey != ""
}

// ReplyConfig configures the delayed auto-reply behavior.
type ReplyConfig struct {
	DirectTimeout time.Duration `json:"directTimeout" envconfig:"REPLY_DIRECT_TIMEOUT"`
	GroupTimeout  time.Duration `json:"groupTimeout" envconfig:"REPLY_GROUP_TIMEOUT"`
	// MaxHistory caps per-chat assistant history. The first two entries
	// are always the pinned instruction pair, so values of 2 or less
	// fall back to the default of 50.
	MaxHistory int `json:"maxHistory" envconfig:"REPLY_MAX_HISTORY"`
}

// ConsoleConfig configures the operator web console.
type ConsoleConfig struct {
	Host          string `json:"host" envconfig:"HOST"`
	Port          int    `json:"port" envconfig:"PORT"`
	AdminPassword string `json:"adminPassword" envconfig:"ADMIN_PASSWORD"`
	AllowedOrigin string `json:"allowedOrigin,omitempty" envconfig:"ALLOWED_ORIGIN"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			SessionDir: "~/.tgsitter/session",
			DBPath:     "~/.tgsitter/tgsitter.db",
		},
		Platform: PlatformConfig{
			Driver: "telegram",
		},
		AI: AIConfig{
			Backend:     "gemini",
			Model:       "",
			Timeout:     30 * time.Second,
			MaxTokens:   2048,
			Temperature: 0.7,
			TopK:        40,
			TopP:        0.95,
		},
		Reply: ReplyConfig{
			DirectTimeout: 120 * time.Second,
			GroupTimeout:  120 * time.Second,
			MaxHistory:    50,
		},
		Console: ConsoleConfig{
			Host: "127.0.0.1", // Secure default
			Port: 5000,
		},
	}
}
