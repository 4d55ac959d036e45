package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sentra/internal/agent"
	"github.com/conneroisu/sentra/internal/analysis"
	"github.com/conneroisu/sentra/internal/session"
	"github.com/conneroisu/sentra/internal/validation"
)

var (
	chatSession string
	chatServer  string
	chatOutput  string
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the review agent a question",
	Long: `Send one message to the configured agent and print the reply. Code in a
fenced block is analyzed and the summary is shared with the agent.

Without --server the agent is called directly and the conversation lasts
for this invocation only. With --server the message goes to a running
"sentra serve", which keeps the history for --session.

Examples:
  sentra chat "What does CWE-89 mean?"
  sentra chat --server http://localhost:8080 --session <id> "and how do I fix it?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatSession, "session", "", "Session ID to continue")
	chatCmd.Flags().StringVar(&chatServer, "server", "", "Base URL of a running sentra server")
	chatCmd.Flags().StringVarP(&chatOutput, "output", "o", formatText, "Output format (text, json, yaml)")

	AddFlagValidation(chatCmd, "output", ValidateOneOf(outputFormats...))
	AddFlagValidation(chatCmd, "server", validation.ValidateURL)
}

func runChat(cmd *cobra.Command, args []string) error {
	message := validation.SanitizeInput(strings.Join(args, " "))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	var reply *agent.Reply
	if chatServer != "" {
		reply, err = chatRemote(cmd, chatServer, chatSession, message, cfg.Agent.Timeout+5*time.Second)
	} else {
		adapter, adapterErr := agent.NewAdapter(cfg.AgentOptions())
		if adapterErr != nil {
			return adapterErr
		}
		store := session.NewStore(session.Config{MaxMessages: cfg.Sessions.MaxMessages}, logger)
		defer store.Stop()

		engine := analysis.NewEngine(cfg.AnalysisOptions(), logger, nil)
		proxy := agent.NewProxy(cfg.AgentOptions(), adapter, store, engine, logger)
		reply, err = proxy.Chat(cmdContext(cmd), chatSession, message)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !strings.EqualFold(chatOutput, formatText) {
		return writeStructured(out, chatOutput, reply)
	}

	fmt.Fprintln(out, reply.Response)
	if reply.Fallback {
		fmt.Fprintf(cmd.ErrOrStderr(), "(fallback: %s agent did not answer)\n", reply.Provider)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", reply.SessionID)
	return nil
}

// chatRemote posts to /api/chat on a running server.
func chatRemote(cmd *cobra.Command, baseURL, sessionID, message string, timeout time.Duration) (*agent.Reply, error) {
	body, err := json.Marshal(map[string]string{"message": message, "session_id": sessionID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(cmdContext(cmd), http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("server returned %d: %s (%s)", resp.StatusCode, apiErr.Error, apiErr.Code)
	}

	var reply agent.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("invalid server response: %w", err)
	}
	return &reply, nil
}
