package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/conneroisu/sentra/internal/agent"
	"github.com/conneroisu/sentra/internal/logging"
	"github.com/conneroisu/sentra/internal/validation"
)

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed
// feedback. Unlike Load it reports every problem and adds warnings for
// settings that are legal but likely unintended.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateServerConfigDetails(&config.Server, result)
	validateAgentConfigDetails(&config.Agent, result)
	validateLimitDetails(config, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 allows system to assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port,
			"port below 1024 requires elevated privileges",
			"Consider using a port above 1024")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces")
		}
	}

	switch config.Environment {
	case "", "development", "test":
	case "production":
		if len(config.AllowedOrigins) == 0 {
			result.addWarning("server.allowed_origins", config.AllowedOrigins,
				"no allowed origins configured for production",
				"Browsers on other origins will be refused by CORS and websocket checks")
		}
	default:
		result.addError("server.environment", config.Environment, "unknown environment",
			"Use 'development', 'production' or 'test'")
	}

	for i, origin := range config.AllowedOrigins {
		if origin == "*" {
			result.addWarning(fmt.Sprintf("server.allowed_origins[%d]", i), origin,
				"wildcard origin allows any website to call the API")
			continue
		}
		if strings.Contains(origin, "://") {
			if err := validation.ValidateURL(origin); err != nil {
				result.addError(fmt.Sprintf("server.allowed_origins[%d]", i), origin, err.Error(),
					"Use a full origin such as 'http://localhost:3000' or a bare host")
			}
		}
	}

	for i, proxy := range config.TrustedProxies {
		if _, err := ParseTrustedProxies([]string{proxy}); err != nil {
			result.addError(fmt.Sprintf("server.trusted_proxies[%d]", i), proxy, err.Error(),
				"Use an address such as '10.0.0.1' or a range such as '10.0.0.0/8'")
		}
	}

	if config.MaxBodyBytes <= 0 {
		result.addError("server.max_body_bytes", config.MaxBodyBytes, "must be positive")
	}
}

func validateAgentConfigDetails(config *AgentConfig, result *ValidationResult) {
	if !contains(agent.Providers, config.Provider) {
		result.addError("agent.provider", config.Provider, "unknown provider",
			"Available providers: "+strings.Join(agent.Providers, ", "))
		return
	}

	switch config.Provider {
	case agent.ProviderHTTP:
		if config.BaseURL == "" {
			result.addError("agent.base_url", config.BaseURL, "base_url is required for the http provider",
				"Point base_url at an endpoint accepting {message, history}")
		}
	case agent.ProviderClaude:
		if config.APIKey == "" {
			result.addWarning("agent.api_key", "", "no API key configured; every chat will use the fallback",
				"Set SENTRA_AGENT_API_KEY")
		}
	case agent.ProviderMock:
		result.addWarning("agent.provider", config.Provider, "mock provider echoes messages back",
			"Use 'ollama', 'claude' or 'http' for real answers")
	}

	if config.BaseURL != "" {
		if err := validation.ValidateURL(config.BaseURL); err != nil {
			result.addError("agent.base_url", config.BaseURL, err.Error())
		}
	}
	if config.Timeout <= 0 {
		result.addError("agent.timeout", config.Timeout.String(), "must be positive")
	}
	if config.HistoryLimit < 0 {
		result.addError("agent.history_limit", config.HistoryLimit, "must not be negative")
	}
	if config.MaxMessageChars <= 0 {
		result.addError("agent.max_message_chars", config.MaxMessageChars, "must be positive")
	}
	if strings.TrimSpace(config.Fallback) == "" {
		result.addWarning("agent.fallback", config.Fallback, "empty fallback; the built-in message is used")
	}
}

func validateLimitDetails(config *Config, result *ValidationResult) {
	if err := validateLimits(config); err != nil {
		result.addError("limits", nil, err.Error())
	}
	if config.Sessions.TTL == 0 {
		result.addWarning("sessions.ttl", "0s", "sessions are never evicted")
	}
	if !config.RateLimit.Enabled {
		result.addWarning("rate_limit.enabled", false, "rate limiting is disabled")
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error())
	}
	if config.Format != "" && config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, "format must be text or json")
	}
	if config.Dir != "" {
		if err := validation.ValidatePath(config.Dir); err != nil {
			result.addError("log.dir", config.Dir, err.Error())
		}
	}
}

// Helper validation functions

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
