// Package cmd provides the command-line interface for sentra.
//
// This package implements all CLI commands using the Cobra framework.
//
// # Available Commands
//
//   - analyze: Score files for quality, security, performance and docs
//   - docs: Generate Markdown, HTML or JSON documentation for a file
//   - chat: Ask the review agent, locally or through a running server
//   - serve: Start the HTTP and websocket API
//   - watch: Re-analyze files as they change
//   - config: Show or validate the effective configuration
//   - version: Print build information
//
// # Command Examples
//
//	// Security findings as JSON
//	sentra analyze --kind security -o json app.py
//
//	// HTML documentation
//	sentra docs shapes.go --format html --out shapes.html
//
//	// Start the server on another port with the ollama agent
//	sentra serve --port 9000 --provider ollama
//
// # Configuration Integration
//
// Commands respect configuration from multiple sources in order of precedence:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (SENTRA_*)
//  3. Configuration file (.sentra.yml)
//  4. Default values (lowest priority)
//
// SENTRA_CONFIG_FILE names a config file when --config is not given. Every
// key can be overridden as SENTRA_<SECTION>_<OPTION>, for example
// SENTRA_SERVER_PORT, SENTRA_AGENT_PROVIDER or SENTRA_AGENT_API_KEY.
//
// # Error Handling
//
// Commands return errors to Execute, which prints them once and exits
// non-zero. serve and watch stop cleanly on SIGINT and SIGTERM.
package cmd
