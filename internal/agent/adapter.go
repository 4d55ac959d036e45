// Package agent forwards chat messages to a language-model provider and
// answers with a fixed fallback when the provider fails.
package agent

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/conneroisu/sentra/internal/errors"
	"github.com/conneroisu/sentra/internal/validation"
)

// Provider names.
const (
	ProviderHTTP   = "http"
	ProviderOllama = "ollama"
	ProviderClaude = "claude"
	ProviderMock   = "mock"
)

// Providers lists every supported provider.
var Providers = []string{ProviderHTTP, ProviderOllama, ProviderClaude, ProviderMock}

const (
	// DefaultFallback is the reply sent when the provider cannot answer.
	DefaultFallback = "I'm having trouble reaching the assistant right now. Please try again in a moment."

	// DefaultSystemPrompt frames every conversation.
	DefaultSystemPrompt = "You are Sentra, a code review assistant. Answer questions about code quality, " +
		"security, performance and documentation concisely."
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Adapter is the contract every provider implements.
type Adapter interface {
	Name() string
	Chat(ctx context.Context, messages []Message) (string, error)
	Available(ctx context.Context) bool
}

// Config holds provider and proxy settings.
type Config struct {
	Provider        string
	BaseURL         string
	Model           string
	APIKey          string
	Timeout         time.Duration
	Fallback        string
	SystemPrompt    string
	HistoryLimit    int
	MaxMessageChars int
	MockDelay       time.Duration
}

// DefaultConfig returns a configuration using the mock provider.
func DefaultConfig() Config {
	return Config{
		Provider:        ProviderMock,
		Timeout:         30 * time.Second,
		Fallback:        DefaultFallback,
		SystemPrompt:    DefaultSystemPrompt,
		HistoryLimit:    20,
		MaxMessageChars: 8000,
	}
}

// NewAdapter builds the adapter named by cfg.Provider.
func NewAdapter(cfg Config) (Adapter, error) {
	client := &http.Client{}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderHTTP:
		if err := validation.ValidateURL(cfg.BaseURL); err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "http provider requires a valid base_url: "+err.Error())
		}
		return &HTTPAdapter{URL: cfg.BaseURL, APIKey: cfg.APIKey, Client: client}, nil
	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = ollamaDefaultBaseURL
		}
		return &OllamaAdapter{BaseURL: baseURL, Model: cfg.Model, Client: client}, nil
	case ProviderClaude:
		return &ClaudeAdapter{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model, Client: client}, nil
	case ProviderMock, "":
		return &MockAdapter{Delay: cfg.MockDelay}, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "unknown agent provider: "+cfg.Provider).
			WithContext("providers", Providers)
	}
}

// systemAndTurns splits leading system messages from the conversation.
func systemAndTurns(messages []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}

// lastUser returns the content of the latest user message.
func lastUser(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
