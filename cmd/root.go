package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sentra/internal/config"
	"github.com/conneroisu/sentra/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sentra",
	Short: "Heuristic code analysis with an AI review assistant",
	Long: `Sentra scores source code for quality, security, performance and
documentation coverage, and proxies review questions to an AI agent.

Key Features:
  • Quality, security and performance heuristics with line-level findings
  • Generated documentation as Markdown, HTML or JSON
  • Chat with a configurable agent, with a fallback when it is unreachable
  • HTTP API and websocket for editors and dashboards
  • Re-analysis on save with "sentra watch"

Quick Start:
  sentra analyze main.go          Analyze a file
  sentra docs app.py --format html
  sentra serve                    Start the API server
  sentra chat "Is eval safe?"     Ask the agent

Command Aliases:
  analyze (a), serve (s), watch (w)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sentra.yml, can also use SENTRA_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig selects the configuration file.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. SENTRA_CONFIG_FILE environment variable
//  3. .sentra.yml in the current directory
//
// A missing default file is not an error; an explicitly named file that
// cannot be read is reported when the configuration is loaded.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SENTRA_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sentra")
	}

	config.SetDefaults()
}

// loadConfig reads the selected file, if any, and returns the validated
// configuration.
func loadConfig() (*config.Config, error) {
	if err := readConfigFile(); err != nil {
		return nil, err
	}
	return config.Load()
}

func readConfigFile() error {
	err := viper.ReadInConfig()
	if err == nil {
		return nil
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}
	return fmt.Errorf("failed to read config file: %w", err)
}

// newLogger builds the process logger. When log.dir is set, logs go to a
// dated file there and the returned closer closes it.
func newLogger(cfg *config.Config, stderr io.Writer) (logging.Logger, func(), error) {
	lc, err := cfg.LoggerConfig()
	if err != nil {
		return nil, nil, err
	}

	if cfg.Log.Dir != "" {
		fl, err := logging.NewFileLogger(lc, cfg.Log.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fl, func() { _ = fl.Close() }, nil
	}

	lc.Output = stderr
	return logging.NewLogger(lc), func() {}, nil
}
