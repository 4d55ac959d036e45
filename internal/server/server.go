// Package server exposes the analysis engine and the agent proxy over HTTP
// and a websocket.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/sentra/internal/agent"
	"github.com/conneroisu/sentra/internal/analysis"
	"github.com/conneroisu/sentra/internal/config"
	"github.com/conneroisu/sentra/internal/logging"
	"github.com/conneroisu/sentra/internal/metrics"
	"github.com/conneroisu/sentra/internal/session"
)

// Deps are the collaborators a Server serves.
type Deps struct {
	Engine   *analysis.Engine
	Proxy    *agent.Proxy
	Sessions *session.Store
	Logger   logging.Logger
}

// Server serves the Sentra API.
type Server struct {
	config   *config.Config
	engine   *analysis.Engine
	proxy    *agent.Proxy
	sessions *session.Store
	logger   logging.Logger
	limiter  *RateLimiter
	clients  *clientIPResolver
	hub      *Hub
	handler  http.Handler
	started  time.Time

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New builds a server from cfg and deps. Missing dependencies are created
// from cfg.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	if deps.Engine == nil {
		deps.Engine = analysis.NewEngine(cfg.AnalysisOptions(), logger, metrics.AnalysisObserver{})
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(cfg.SessionOptions(), logger)
	}
	if deps.Proxy == nil {
		adapter, err := agent.NewAdapter(cfg.AgentOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to create agent adapter: %w", err)
		}
		deps.Proxy = agent.NewProxy(cfg.AgentOptions(), adapter, deps.Sessions, deps.Engine, logger)
	}

	clients, err := newClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	s := &Server{
		config:   cfg,
		engine:   deps.Engine,
		proxy:    deps.Proxy,
		sessions: deps.Sessions,
		logger:   logger,
		limiter:  NewRateLimiter(cfg.RateLimit, logger),
		clients:  clients,
		hub:      NewHub(logger),
		started:  time.Now(),
	}
	s.handler = s.routes()

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", s.handleIndex)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/analyze", s.handleAnalyze(nil))
	mux.HandleFunc("/api/quality", s.handleAnalyze([]analysis.Kind{analysis.KindQuality}))
	mux.HandleFunc("/api/security", s.handleAnalyze([]analysis.Kind{analysis.KindSecurity}))
	mux.HandleFunc("/api/performance", s.handleAnalyze([]analysis.Kind{analysis.KindPerformance}))
	mux.HandleFunc("/api/docs", s.handleDocs)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/{id}", s.handleSession)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/", s.handleNotFound)

	return Chain(mux,
		RecoverMiddleware(s.logger),
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger, s.clients.clientIP),
		CORSMiddleware(s.config.Server.AllowedOrigins, s.config.Server.Environment == "development"),
		SecurityMiddleware(SecurityConfigFromAppConfig(s.config)),
		RateLimitMiddleware(s.limiter, s.clients.clientIP),
		MaxBytesMiddleware(s.config.Server.MaxBodyBytes, s.logger),
	)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until Shutdown is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.Server.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Server listening",
		"addr", ln.Addr().String(),
		"environment", s.config.Server.Environment,
		"agent", s.proxy.Provider())

	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and releases its goroutines. Only
// the first call has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.hub.CloseAll()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}

		s.limiter.Stop()
		s.sessions.Stop()
	})

	return shutdownErr
}
