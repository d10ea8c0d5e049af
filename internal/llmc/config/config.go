package config

import (
	"fmt"
	"time"

	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/spf13/viper"
)

// Config holds the configuration for the tutor client
type Config struct {
	Model                   string   `toml:"model" mapstructure:"model"` // Format: "provider:model" (e.g., "openai:gpt-4o-mini")
	OpenAIBaseURL           string   `toml:"openai_base_url" mapstructure:"openai_base_url"`
	OpenAIToken             string   `toml:"openai_token" mapstructure:"openai_token"`
	GeminiBaseURL           string   `toml:"gemini_base_url" mapstructure:"gemini_base_url"`
	GeminiToken             string   `toml:"gemini_token" mapstructure:"gemini_token"`
	AnthropicBaseURL        string   `toml:"anthropic_base_url" mapstructure:"anthropic_base_url"`
	AnthropicToken          string   `toml:"anthropic_token" mapstructure:"anthropic_token"`
	Temperature             float64  `toml:"temperature" mapstructure:"temperature"`
	MaxTokens               int      `toml:"max_tokens" mapstructure:"max_tokens"`
	TopP                    float64  `toml:"top_p" mapstructure:"top_p"`
	FrequencyPenalty        float64  `toml:"frequency_penalty" mapstructure:"frequency_penalty"`
	PresencePenalty         float64  `toml:"presence_penalty" mapstructure:"presence_penalty"`
	RequestTimeoutSeconds   int      `toml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"` // Wait for response headers; 0 = no limit
	PromptDirs              []string `toml:"prompt_dirs" mapstructure:"prompt_dirs"`
	DomainPrompt            string   `toml:"domain_prompt" mapstructure:"domain_prompt"` // Template name; empty = built-in context
	SessionMessageThreshold int      `toml:"session_message_threshold" mapstructure:"session_message_threshold"` // 0 = disabled
	SessionRetentionDays    int      `toml:"session_retention_days" mapstructure:"session_retention_days"`       // Number of days to retain conversations (default: 30)
	LogLevel                string   `toml:"log_level" mapstructure:"log_level"`
	LogFormat               string   `toml:"log_format" mapstructure:"log_format"` // "text" or "json"
	LogFile                 string   `toml:"log_file" mapstructure:"log_file"`     // Empty = logging disabled
}

// Defaults used by NewDefaultConfig and SetDefaults.
const (
	DefaultModel                   = "openai:gpt-4o-mini"
	DefaultOpenAIBaseURL           = "https://api.openai.com/v1"
	DefaultGeminiBaseURL           = "https://generativelanguage.googleapis.com"
	DefaultAnthropicBaseURL        = "https://api.anthropic.com/v1"
	DefaultRequestTimeoutSeconds   = 120
	DefaultSessionMessageThreshold = 50
	DefaultSessionRetentionDays    = 30
	DefaultLogLevel                = "info"
	DefaultLogFormat               = "text"
)

// GetModel returns the model name
func (c *Config) GetModel() string {
	return c.Model
}

// GetProvider extracts provider name from the model string
func (c *Config) GetProvider() (string, error) {
	provider, _, err := llmc.ParseModelString(c.Model)
	return provider, err
}

// GetModelName extracts model name from the model string
func (c *Config) GetModelName() (string, error) {
	_, model, err := llmc.ParseModelString(c.Model)
	return model, err
}

// Sampling returns the generation parameters every provider sends.
func (c *Config) Sampling() llmc.Sampling {
	return llmc.Sampling{
		Temperature:      c.Temperature,
		MaxTokens:        c.MaxTokens,
		TopP:             c.TopP,
		FrequencyPenalty: c.FrequencyPenalty,
		PresencePenalty:  c.PresencePenalty,
	}
}

// RequestTimeout returns how long to wait for a response to start, or zero for no limit.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Validate checks the values that cannot be caught by decoding alone.
func (c *Config) Validate() error {
	if _, _, err := llmc.ParseModelString(c.Model); err != nil {
		return err
	}
	if err := c.Sampling().Validate(); err != nil {
		return err
	}
	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("request_timeout_seconds must not be negative, got %d", c.RequestTimeoutSeconds)
	}
	if c.SessionMessageThreshold < 0 {
		return fmt.Errorf("session_message_threshold must not be negative, got %d", c.SessionMessageThreshold)
	}
	if c.SessionRetentionDays < 0 {
		return fmt.Errorf("session_retention_days must not be negative, got %d", c.SessionRetentionDays)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	return nil
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig(promptDir string) *Config {
	sampling := llmc.DefaultSampling()
	return &Config{
		Model:                   DefaultModel,
		OpenAIBaseURL:           DefaultOpenAIBaseURL,
		OpenAIToken:             "$OPENAI_API_KEY", // Default to env var
		GeminiBaseURL:           DefaultGeminiBaseURL,
		GeminiToken:             "$GEMINI_API_KEY",
		AnthropicBaseURL:        DefaultAnthropicBaseURL,
		AnthropicToken:          "$ANTHROPIC_API_KEY",
		Temperature:             sampling.Temperature,
		MaxTokens:               sampling.MaxTokens,
		TopP:                    sampling.TopP,
		FrequencyPenalty:        sampling.FrequencyPenalty,
		PresencePenalty:         sampling.PresencePenalty,
		RequestTimeoutSeconds:   DefaultRequestTimeoutSeconds,
		PromptDirs:              []string{promptDir},
		DomainPrompt:            "",
		SessionMessageThreshold: DefaultSessionMessageThreshold,
		SessionRetentionDays:    DefaultSessionRetentionDays,
		LogLevel:                DefaultLogLevel,
		LogFormat:               DefaultLogFormat,
		LogFile:                 "",
	}
}

// SetDefaults registers the defaults of every key on v so that
// environment variables alone can configure the client.
func SetDefaults(v *viper.Viper, promptDir string) {
	d := NewDefaultConfig(promptDir)
	v.SetDefault("model", d.Model)
	v.SetDefault("openai_base_url", d.OpenAIBaseURL)
	v.SetDefault("openai_token", d.OpenAIToken)
	v.SetDefault("gemini_base_url", d.GeminiBaseURL)
	v.SetDefault("gemini_token", d.GeminiToken)
	v.SetDefault("anthropic_base_url", d.AnthropicBaseURL)
	v.SetDefault("anthropic_token", d.AnthropicToken)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("max_tokens", d.MaxTokens)
	v.SetDefault("top_p", d.TopP)
	v.SetDefault("frequency_penalty", d.FrequencyPenalty)
	v.SetDefault("presence_penalty", d.PresencePenalty)
	v.SetDefault("request_timeout_seconds", d.RequestTimeoutSeconds)
	v.SetDefault("prompt_dirs", d.PromptDirs)
	v.SetDefault("domain_prompt", d.DomainPrompt)
	v.SetDefault("session_message_threshold", d.SessionMessageThreshold)
	v.SetDefault("session_retention_days", d.SessionRetentionDays)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_file", d.LogFile)
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom loads configuration from v, expands environment variable
// references in tokens and base URLs, and resolves relative paths.
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for _, field := range []*string{
		&config.OpenAIBaseURL, &config.OpenAIToken,
		&config.GeminiBaseURL, &config.GeminiToken,
		&config.AnthropicBaseURL, &config.AnthropicToken,
	} {
		*field = expandEnvVar(*field)
	}

	// Convert prompt directories to absolute paths
	for i, promptDir := range config.PromptDirs {
		absPath, err := resolvePath(v, promptDir)
		if err != nil {
			return nil, fmt.Errorf("error resolving prompt directory path '%s': %w", promptDir, err)
		}
		config.PromptDirs[i] = absPath
	}

	if config.LogFile != "" {
		absPath, err := resolvePath(v, config.LogFile)
		if err != nil {
			return nil, fmt.Errorf("error resolving log file path '%s': %w", config.LogFile, err)
		}
		config.LogFile = absPath
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}
