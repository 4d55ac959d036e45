package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockAdapter echoes the latest user message after an optional delay. It
// serves development and tests without a real provider.
type MockAdapter struct {
	Delay time.Duration
}

func (m *MockAdapter) Name() string { return ProviderMock }

func (m *MockAdapter) Chat(ctx context.Context, messages []Message) (string, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", fmt.Errorf("mock: %w", ctx.Err())
		}
	}

	return "Echo: " + strings.TrimSpace(lastUser(messages)), nil
}

func (m *MockAdapter) Available(context.Context) bool { return true }
