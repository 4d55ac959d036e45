// Package internal contains the core implementation packages for sentra.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - analysis: Language detection and the quality, security, performance
//     and documentation analyzers, plus the engine that runs them
//   - agent: Chat adapters for LLM backends and the proxy that adds
//     history, code summaries and the fallback reply
//   - session: In-memory conversation store with expiry
//   - server: HTTP API, websocket chat, middleware and rate limiting
//   - config: Configuration loading and validation through Viper
//   - logging: Structured logging on log/slog
//   - errors: Typed errors with codes and HTTP status mapping
//   - metrics: Prometheus collectors for requests and analyses
//   - validation: Input sanitization, URL and path checks
//   - watcher: File system monitoring with debouncing
//   - version: Build information
//
// # Inter-Package Communication
//
//   - The server and CLI build an analysis.Engine and an agent.Proxy from
//     the loaded configuration and share one session.Store
//   - The proxy summarizes code blocks through the engine before calling
//     the adapter
//   - The watcher feeds changed files to the engine and prints summaries
//
// For detailed documentation, see the individual package documentation.
package internal
