package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sentra/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect Sentra configuration",
	Long: `Inspect the effective Sentra configuration.

Values come from .sentra.yml (or --config), SENTRA_* environment
variables and defaults, in that order of precedence after flags.

Examples:
  sentra config show                   # Effective configuration as YAML
  sentra config show --format json
  sentra config validate               # Report every problem
  sentra config validate --strict      # Treat warnings as errors`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Print the effective configuration with secrets redacted.",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the effective configuration and report every error and
warning with suggestions. Exits non-zero when errors are found.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var (
	configShowFormat     string
	configValidateStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().StringVar(&configShowFormat, "format", formatYAML, "Output format (yaml, json)")
	configValidateCmd.Flags().BoolVar(&configValidateStrict, "strict", false, "Treat warnings as errors")

	AddFlagValidation(configShowCmd, "format", ValidateOneOf(formatYAML, formatJSON))
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if err := readConfigFile(); err != nil {
		return err
	}
	cfg, err := config.Decode()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	return writeStructured(cmd.OutOrStdout(), configShowFormat, cfg.Redacted())
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if err := readConfigFile(); err != nil {
		return err
	}
	cfg, err := config.Decode()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	result := config.ValidateConfigWithDetails(cfg)
	out := cmd.OutOrStdout()

	if !result.HasErrors() && !result.HasWarnings() {
		fmt.Fprintln(out, "Configuration is valid")
		return nil
	}

	fmt.Fprint(out, result.String())

	if result.HasErrors() {
		return fmt.Errorf("configuration has %d error(s)", len(result.Errors))
	}
	if configValidateStrict {
		return fmt.Errorf("configuration has %d warning(s) in strict mode", len(result.Warnings))
	}
	return nil
}
