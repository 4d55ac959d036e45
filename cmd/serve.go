package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sentra/internal/agent"
	"github.com/conneroisu/sentra/internal/analysis"
	"github.com/conneroisu/sentra/internal/errors"
	"github.com/conneroisu/sentra/internal/metrics"
	"github.com/conneroisu/sentra/internal/server"
	"github.com/conneroisu/sentra/internal/session"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the API server",
	Long: `Start the HTTP API and websocket server.

Endpoints include /api/analyze, /api/docs, /api/chat, /api/sessions, /ws and
/metrics. GET / lists them all.

Examples:
  sentra serve                            # localhost:8080, mock agent
  sentra serve --port 9000 --host 0.0.0.0
  SENTRA_AGENT_PROVIDER=ollama sentra serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().String("environment", "development", "Environment (development, production)")
	serveCmd.Flags().String("provider", agent.ProviderMock, "Agent provider (mock, http, ollama, claude)")

	AddFlagValidation(serveCmd, "port", ValidatePort)
	AddFlagValidation(serveCmd, "provider", ValidateOneOf(agent.Providers...))

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.environment", serveCmd.Flags().Lookup("environment"))
	_ = viper.BindPFlag("agent.provider", serveCmd.Flags().Lookup("provider"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "failed to load configuration")
	}

	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	engine := analysis.NewEngine(cfg.AnalysisOptions(), logger, metrics.AnalysisObserver{})
	sessions := session.NewStore(cfg.SessionOptions(), logger)
	adapter, err := agent.NewAdapter(cfg.AgentOptions())
	if err != nil {
		sessions.Stop()
		return err
	}
	proxy := agent.NewProxy(cfg.AgentOptions(), adapter, sessions, engine, logger)

	srv, err := server.New(cfg, server.Deps{
		Engine:   engine,
		Proxy:    proxy,
		Sessions: sessions,
		Logger:   logger,
	})
	if err != nil {
		sessions.Stop()
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	fmt.Fprintf(cmd.OutOrStdout(), "Sentra listening on http://%s (agent: %s)\n", cfg.Server.Addr(), proxy.Provider())

	select {
	case err := <-errCh:
		_ = srv.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}
