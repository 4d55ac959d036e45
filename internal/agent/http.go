package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPAdapter talks to a generic JSON agent endpoint. It posts the latest
// message with the prior history and reads back a response field.
type HTTPAdapter struct {
	URL    string
	APIKey string
	Client *http.Client
}

type httpChatRequest struct {
	Message string    `json:"message"`
	System  string    `json:"system,omitempty"`
	History []Message `json:"history"`
}

type httpChatResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (h *HTTPAdapter) Name() string { return ProviderHTTP }

func (h *HTTPAdapter) Chat(ctx context.Context, messages []Message) (string, error) {
	system, turns := systemAndTurns(messages)
	reqBody := httpChatRequest{System: system, History: []Message{}}
	if n := len(turns); n > 0 {
		reqBody.Message = turns[n-1].Content
		reqBody.History = append(reqBody.History, turns[:n-1]...)
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("http agent: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("http agent: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	h.authorize(req)

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http agent: request: %w", err)
	}
	defer resp.Body.Close()

	var chatResp httpChatResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&chatResp)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && chatResp.Error != "" {
			return "", fmt.Errorf("http agent: status %d: %s", resp.StatusCode, chatResp.Error)
		}
		return "", fmt.Errorf("http agent: unexpected status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("http agent: decode response: %w", decodeErr)
	}

	return strings.TrimSpace(chatResp.Response), nil
}

// Available reports whether the endpoint answers a HEAD request. Any status
// below 500 counts, since the endpoint may only accept POST. The API key is
// sent so that endpoints behind auth are not reported as down.
func (h *HTTPAdapter) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.URL, nil)
	if err != nil {
		return false
	}
	h.authorize(req)
	resp, err := h.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (h *HTTPAdapter) authorize(req *http.Request) {
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}
}
