package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	claudeDefaultBaseURL = "https://api.anthropic.com"
	claudeDefaultModel   = "claude-3-5-haiku-latest"
	claudeMaxTokens      = 2048
)

// ClaudeAdapter connects to the Anthropic Messages API.
type ClaudeAdapter struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type claudeMessagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeMessagesResponse struct {
	Content []claudeContentBlock `json:"content"`
}

type claudeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ClaudeAdapter) Name() string { return ProviderClaude }

func (c *ClaudeAdapter) Chat(ctx context.Context, messages []Message) (string, error) {
	system, turns := systemAndTurns(messages)
	model := c.Model
	if model == "" {
		model = claudeDefaultModel
	}

	body, err := json.Marshal(claudeMessagesRequest{
		Model:     model,
		System:    system,
		Messages:  turns,
		MaxTokens: claudeMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("claude: marshal request: %w", err)
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = claudeDefaultBaseURL
	}
	url := strings.TrimRight(baseURL, "/") + "/v1/messages"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("claude: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp claudeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Message == "" {
			return "", fmt.Errorf("claude: unexpected status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("claude: API error: %s", errResp.Error.Message)
	}

	var msgResp claudeMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("claude: decode response: %w", err)
	}

	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}

	return strings.TrimSpace(result.String()), nil
}

// Available reports whether an API key is configured. The API is not probed.
func (c *ClaudeAdapter) Available(context.Context) bool {
	return c.APIKey != ""
}
