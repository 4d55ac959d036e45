package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/conneroisu/sentra/internal/analysis"
	"github.com/conneroisu/sentra/internal/errors"
	"github.com/conneroisu/sentra/internal/logging"
	"github.com/conneroisu/sentra/internal/metrics"
	"github.com/conneroisu/sentra/internal/session"
)

// Fallback reasons recorded in metrics.
const (
	reasonError   = "error"
	reasonTimeout = "timeout"
	reasonEmpty   = "empty"
)

var codeBlockRe = regexp.MustCompile("(?s)```([A-Za-z0-9_+#-]*)[^\\n]*\\n(.*?)```")

// Summarizer produces a one-line analysis of a code snippet.
type Summarizer interface {
	Summary(ctx context.Context, req analysis.Request) (string, error)
}

// Reply is the outcome of one chat turn.
type Reply struct {
	SessionID  string `json:"session_id"`
	Response   string `json:"response"`
	Fallback   bool   `json:"fallback"`
	Provider   string `json:"provider"`
	Analysis   string `json:"analysis,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Proxy sends chat turns to an adapter and records them in a session store.
type Proxy struct {
	adapter    Adapter
	store      *session.Store
	summarizer Summarizer
	config     Config
	logger     logging.Logger
}

// NewProxy wires a proxy. summarizer may be nil, in which case code blocks
// are passed through without analysis.
func NewProxy(cfg Config, adapter Adapter, store *session.Store, summarizer Summarizer, logger logging.Logger) *Proxy {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	defaults := DefaultConfig()
	if cfg.Fallback == "" {
		cfg.Fallback = defaults.Fallback
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaults.SystemPrompt
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = defaults.MaxMessageChars
	}

	return &Proxy{
		adapter:    adapter,
		store:      store,
		summarizer: summarizer,
		config:     cfg,
		logger:     logger.WithComponent("agent"),
	}
}

// Provider returns the adapter name.
func (p *Proxy) Provider() string {
	return p.adapter.Name()
}

// Available probes the provider and records the result.
func (p *Proxy) Available(ctx context.Context) bool {
	ok := p.adapter.Available(ctx)
	metrics.SetAvailable(p.adapter.Name(), ok)
	return ok
}

// Chat appends text to the session, asks the provider for a reply, and
// appends the reply. Provider failures, timeouts, and empty replies yield the
// fallback message instead of an error. An empty sessionID starts a new
// session.
func (p *Proxy) Chat(ctx context.Context, sessionID, text string) (*Reply, error) {
	if err := p.validate(text); err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := p.store.Append(sessionID, session.Message{Role: session.RoleUser, Content: text}); err != nil {
		return nil, err
	}

	reply := &Reply{SessionID: sessionID, Provider: p.adapter.Name()}
	system := p.config.SystemPrompt
	if summary := p.summarize(ctx, text); summary != "" {
		reply.Analysis = summary
		system += "\n\nAnalysis of the code in the user's message: " + summary
	}

	messages := []Message{{Role: session.RoleSystem, Content: system}}
	for _, m := range p.store.History(sessionID, p.config.HistoryLimit) {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}

	callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	response, err := p.adapter.Chat(callCtx, messages)
	elapsed := time.Since(start)
	metrics.AgentDuration.WithLabelValues(reply.Provider).Observe(elapsed.Seconds())

	switch {
	case err != nil:
		reason := reasonError
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = reasonTimeout
		}
		p.fallback(ctx, reply, reason, err)
	case strings.TrimSpace(response) == "":
		p.fallback(ctx, reply, reasonEmpty, nil)
	default:
		reply.Response = response
	}
	reply.DurationMS = elapsed.Milliseconds()

	if err := p.store.Append(sessionID, session.Message{
		Role:     session.RoleAssistant,
		Content:  reply.Response,
		Fallback: reply.Fallback,
	}); err != nil {
		return nil, err
	}

	p.logger.Debug(ctx, "Chat turn completed",
		"session_id", sessionID,
		"provider", reply.Provider,
		"fallback", reply.Fallback,
		"duration_ms", reply.DurationMS)

	return reply, nil
}

func (p *Proxy) fallback(ctx context.Context, reply *Reply, reason string, cause error) {
	reply.Response = p.config.Fallback
	reply.Fallback = true
	metrics.AgentFallbacks.WithLabelValues(reply.Provider, reason).Inc()

	if cause == nil {
		cause = fmt.Errorf("%s returned an empty reply", reply.Provider)
	}
	p.logger.Warn(ctx, errors.NewNetworkError(errors.ErrCodeAgentFailed, "agent call failed", cause),
		"Answering with fallback",
		"provider", reply.Provider,
		"reason", reason)
}

func (p *Proxy) validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.NewValidationError(errors.ErrCodeEmptyMessage, "message is required")
	}
	if n := utf8.RuneCountInString(text); n > p.config.MaxMessageChars {
		return errors.NewValidationError(errors.ErrCodeMessageTooLong,
			fmt.Sprintf("message too long: %d characters (max %d)", n, p.config.MaxMessageChars))
	}
	return nil
}

// summarize analyzes the first fenced code block in text. Analysis errors
// are logged and otherwise ignored.
func (p *Proxy) summarize(ctx context.Context, text string) string {
	if p.summarizer == nil {
		return ""
	}
	m := codeBlockRe.FindStringSubmatch(text)
	if m == nil || strings.TrimSpace(m[2]) == "" {
		return ""
	}

	req := analysis.Request{Source: m[2]}
	if _, ok := analysis.ParseLanguage(m[1]); ok {
		req.Language = m[1]
	}

	summary, err := p.summarizer.Summary(ctx, req)
	if err != nil {
		p.logger.Warn(ctx, err, "Skipping code block analysis")
		return ""
	}
	return summary
}
