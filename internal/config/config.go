// Package config provides configuration management for Sentra using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration file is YAML (.sentra.yml by default). Every key can be
// overridden from the environment with the SENTRA_ prefix, for example
// SENTRA_AGENT_PROVIDER or SENTRA_SERVER_PORT.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/sentra/internal/agent"
	"github.com/conneroisu/sentra/internal/analysis"
	"github.com/conneroisu/sentra/internal/logging"
	"github.com/conneroisu/sentra/internal/session"
	"github.com/conneroisu/sentra/internal/validation"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SENTRA"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent" json:"agent"`
	Analysis  AnalysisConfig  `mapstructure:"analysis" yaml:"analysis" json:"analysis"`
	Sessions  SessionsConfig  `mapstructure:"sessions" yaml:"sessions" json:"sessions"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	Log       LogConfig       `mapstructure:"log" yaml:"log" json:"log"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host" yaml:"host" json:"host"`
	Port           int           `mapstructure:"port" yaml:"port" json:"port"`
	Environment    string        `mapstructure:"environment" yaml:"environment" json:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	TrustedProxies []string      `mapstructure:"trusted_proxies" yaml:"trusted_proxies" json:"trusted_proxies"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes" json:"max_body_bytes"`
}

type AgentConfig struct {
	Provider        string        `mapstructure:"provider" yaml:"provider" json:"provider"`
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Model           string        `mapstructure:"model" yaml:"model" json:"model"`
	APIKey          string        `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Fallback        string        `mapstructure:"fallback" yaml:"fallback" json:"fallback"`
	SystemPrompt    string        `mapstructure:"system_prompt" yaml:"system_prompt" json:"system_prompt"`
	HistoryLimit    int           `mapstructure:"history_limit" yaml:"history_limit" json:"history_limit"`
	MaxMessageChars int           `mapstructure:"max_message_chars" yaml:"max_message_chars" json:"max_message_chars"`
	MockDelay       time.Duration `mapstructure:"mock_delay" yaml:"mock_delay" json:"mock_delay"`
}

type AnalysisConfig struct {
	MaxSourceBytes int `mapstructure:"max_source_bytes" yaml:"max_source_bytes" json:"max_source_bytes"`
	LongLineLimit  int `mapstructure:"long_line_limit" yaml:"long_line_limit" json:"long_line_limit"`
}

type SessionsConfig struct {
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
	MaxMessages     int           `mapstructure:"max_messages" yaml:"max_messages" json:"max_messages"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval" json:"cleanup_interval"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int  `mapstructure:"burst_size" yaml:"burst_size" json:"burst_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// defaults holds every key Viper should know about. Registering a default
// also makes the key visible to environment overrides.
var defaults = map[string]interface{}{
	"server.host":            "localhost",
	"server.port":            8080,
	"server.environment":     "development",
	"server.allowed_origins": []string{},
	"server.trusted_proxies": []string{},
	"server.read_timeout":    30 * time.Second,
	"server.write_timeout":   90 * time.Second,
	"server.max_body_bytes":  int64(2 << 20),

	"agent.provider":          agent.ProviderMock,
	"agent.base_url":          "",
	"agent.model":             "",
	"agent.api_key":           "",
	"agent.timeout":           30 * time.Second,
	"agent.fallback":          agent.DefaultFallback,
	"agent.system_prompt":     agent.DefaultSystemPrompt,
	"agent.history_limit":     20,
	"agent.max_message_chars": 8000,
	"agent.mock_delay":        time.Duration(0),

	"analysis.max_source_bytes": 1 << 20,
	"analysis.long_line_limit":  120,

	"sessions.ttl":              30 * time.Minute,
	"sessions.max_messages":     100,
	"sessions.cleanup_interval": time.Minute,

	"rate_limit.enabled":             true,
	"rate_limit.requests_per_minute": 120,
	"rate_limit.burst_size":          20,

	"log.level":  "info",
	"log.format": "text",
	"log.dir":    "",
}

// SetDefaults registers defaults and environment overrides on the global
// Viper instance.
func SetDefaults() {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the configuration from Viper, applies defaults, and validates
// it.
func Load() (*Config, error) {
	config, err := Decode()
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Decode reads and normalizes the configuration without validating it, so
// callers such as "config validate" can report every problem at once.
func Decode() (*Config, error) {
	SetDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)
	config.Server.TrustedProxies = splitList(config.Server.TrustedProxies)
	config.Agent.Provider = strings.ToLower(strings.TrimSpace(config.Agent.Provider))
	config.Log.Format = strings.ToLower(strings.TrimSpace(config.Log.Format))

	return &config, nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the server runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// AnalysisOptions converts the analysis section for the engine.
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{
		MaxSourceBytes: c.Analysis.MaxSourceBytes,
		LongLineLimit:  c.Analysis.LongLineLimit,
	}
}

// AgentOptions converts the agent section for the proxy.
func (c *Config) AgentOptions() agent.Config {
	return agent.Config{
		Provider:        c.Agent.Provider,
		BaseURL:         c.Agent.BaseURL,
		Model:           c.Agent.Model,
		APIKey:          c.Agent.APIKey,
		Timeout:         c.Agent.Timeout,
		Fallback:        c.Agent.Fallback,
		SystemPrompt:    c.Agent.SystemPrompt,
		HistoryLimit:    c.Agent.HistoryLimit,
		MaxMessageChars: c.Agent.MaxMessageChars,
		MockDelay:       c.Agent.MockDelay,
	}
}

// SessionOptions converts the sessions section for the store.
func (c *Config) SessionOptions() session.Config {
	return session.Config{
		TTL:             c.Sessions.TTL,
		MaxMessages:     c.Sessions.MaxMessages,
		CleanupInterval: c.Sessions.CleanupInterval,
	}
}

// LoggerConfig converts the log section.
func (c *Config) LoggerConfig() (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return lc, nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	out.Server.TrustedProxies = append([]string(nil), c.Server.TrustedProxies...)
	if out.Agent.APIKey != "" {
		out.Agent.APIKey = "[REDACTED]"
	}
	return &out
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateAgentConfig(&config.Agent); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}
	if err := validateLimits(config); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if config.Log.Format != "" && config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("log config: format must be text or json, got %q", config.Log.Format)
	}
	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			return fmt.Errorf("host %w", err)
		}
	}

	switch config.Environment {
	case "", "development", "production", "test":
	default:
		return fmt.Errorf("unknown environment %q", config.Environment)
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if strings.ContainsAny(origin, " ;|`$<>\"'") {
			return fmt.Errorf("allowed origin %q contains invalid characters", origin)
		}
	}

	if _, err := ParseTrustedProxies(config.TrustedProxies); err != nil {
		return err
	}

	if config.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	if config.ReadTimeout < 0 || config.WriteTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	return nil
}

func validateAgentConfig(config *AgentConfig) error {
	if !contains(agent.Providers, config.Provider) {
		return fmt.Errorf("unknown provider %q (expected one of %s)", config.Provider, strings.Join(agent.Providers, ", "))
	}
	if config.Provider == agent.ProviderHTTP && config.BaseURL == "" {
		return fmt.Errorf("base_url is required for the http provider")
	}
	if config.BaseURL != "" {
		if err := validation.ValidateURL(config.BaseURL); err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
	}
	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if config.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative")
	}
	if config.MaxMessageChars <= 0 {
		return fmt.Errorf("max_message_chars must be positive")
	}
	return nil
}

type limit struct {
	name  string
	value int
}

func validateLimits(config *Config) error {
	checks := []limit{
		{"analysis.max_source_bytes", config.Analysis.MaxSourceBytes},
		{"analysis.long_line_limit", config.Analysis.LongLineLimit},
		{"sessions.max_messages", config.Sessions.MaxMessages},
	}
	if config.RateLimit.Enabled {
		checks = append(checks,
			limit{"rate_limit.requests_per_minute", config.RateLimit.RequestsPerMinute},
			limit{"rate_limit.burst_size", config.RateLimit.BurstSize},
		)
	}
	for _, c := range checks {
		if c.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", c.name, c.value)
		}
	}
	if config.Sessions.TTL < 0 || config.Sessions.CleanupInterval < 0 {
		return fmt.Errorf("sessions: durations must not be negative")
	}
	return nil
}

// splitList flattens comma separated entries, which is how list values
// arrive from the environment.
// ParseTrustedProxies turns IPs and CIDR ranges into networks. A bare IP
// becomes a single-address network.
func ParseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("trusted proxy %q is not an IP address or CIDR range", entry)
		}
		bits := 8 * net.IPv6len
		if v4 := ip.To4(); v4 != nil {
			ip, bits = v4, 8*net.IPv4len
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}

func splitList(items []string) []string {
	out := []string{}
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
