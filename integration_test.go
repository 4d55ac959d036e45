package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sentra/internal/agent"
	"github.com/conneroisu/sentra/internal/analysis"
	"github.com/conneroisu/sentra/internal/config"
	"github.com/conneroisu/sentra/internal/logging"
	"github.com/conneroisu/sentra/internal/server"
	"github.com/conneroisu/sentra/internal/session"
	"github.com/conneroisu/sentra/internal/watcher"
)

const pySource = `import os

def run(cmd):
    os.system(cmd)
`

// startServer wires the server the way "sentra serve" does and serves it on
// a random local port.
func startServer(t *testing.T) string {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("rate_limit.enabled", false)
	viper.Set("agent.provider", agent.ProviderMock)

	cfg, err := config.Load()
	require.NoError(t, err)

	logger := logging.NewNopLogger()
	engine := analysis.NewEngine(cfg.AnalysisOptions(), logger, nil)
	sessions := session.NewStore(cfg.SessionOptions(), logger)
	adapter, err := agent.NewAdapter(cfg.AgentOptions())
	require.NoError(t, err)
	proxy := agent.NewProxy(cfg.AgentOptions(), adapter, sessions, engine, logger)

	srv, err := server.New(cfg, server.Deps{Engine: engine, Proxy: proxy, Sessions: sessions, Logger: logger})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		assert.NoError(t, srv.Shutdown(shutdownCtx))
		cancel()
		assert.NoError(t, <-done)
	})

	return "http://" + ln.Addr().String()
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) int {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestIntegration_AnalyzeOverHTTP(t *testing.T) {
	base := startServer(t)

	var report analysis.Report
	status := postJSON(t, base+"/api/analyze", map[string]interface{}{
		"filename": "run.py",
		"source":   pySource,
		"kinds":    []string{"security"},
	}, &report)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, analysis.LanguagePython, report.Language)
	require.NotNil(t, report.Security)
	require.Len(t, report.Security.Findings, 1)
	assert.Equal(t, "S010", report.Security.Findings[0].RuleID)
	assert.Equal(t, 4, report.Security.Findings[0].Line)
}

func TestIntegration_ChatKeepsSession(t *testing.T) {
	base := startServer(t)

	var first agent.Reply
	require.Equal(t, http.StatusOK, postJSON(t, base+"/api/chat", map[string]string{"message": "hello"}, &first))
	assert.Equal(t, "Echo: hello", first.Response)
	require.NotEmpty(t, first.SessionID)

	var second agent.Reply
	require.Equal(t, http.StatusOK, postJSON(t, base+"/api/chat",
		map[string]string{"message": "again", "session_id": first.SessionID}, &second))
	assert.Equal(t, first.SessionID, second.SessionID)

	resp, err := http.Get(base + "/api/sessions/" + first.SessionID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess session.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.Len(t, sess.Messages, 4)
}

func TestIntegration_WebSocketChat(t *testing.T) {
	base := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"type": "chat", "id": "1", "message": "ping me"}))

	var resp struct {
		Type string      `json:"type"`
		ID   string      `json:"id"`
		Data agent.Reply `json:"data"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &resp))
	assert.Equal(t, "reply", resp.Type)
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, "Echo: ping me", resp.Data.Response)
}

func TestIntegration_ServerStartStop(t *testing.T) {
	base := startServer(t)

	resp, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestIntegration_WatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewNopLogger()

	fw, err := watcher.NewFileWatcher(50*time.Millisecond, logger)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(watcher.ExtensionFilter(analysis.SupportedExtensions()))
	fw.AddFilter(watcher.NoHiddenFilter)

	var out syncBuffer
	engine := analysis.NewEngine(analysis.DefaultOptions(), logger, nil)
	fw.AddHandler(watcher.ReportHandler(engine, &out, "", []analysis.Kind{analysis.KindSecurity}))

	require.NoError(t, fw.AddRecursive(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	path := filepath.Join(dir, "run.py")
	require.NoError(t, os.WriteFile(path, []byte(pySource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "run.py: overall")
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotContains(t, out.String(), "notes.txt")
}
