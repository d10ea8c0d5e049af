package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix viper uses when binding environment variables.
const EnvPrefix = "SECTUTOR"

// expandEnvVar expands environment variable references in the given value
// Supports both $VAR and ${VAR} syntax
// If the environment variable is not set, returns empty string.
func expandEnvVar(value string) string {
	if !strings.HasPrefix(value, "$") {
		return value
	}

	var envVarName string
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVarName = value[2 : len(value)-1]
	} else {
		envVarName = strings.TrimPrefix(value, "$")
	}

	return os.Getenv(envVarName)
}

// GetBaseURL returns the base URL for the specified provider
// Environment variables are already expanded during LoadConfig()
func (c *Config) GetBaseURL(provider string) (string, error) {
	var baseURLValue string
	switch provider {
	case "openai":
		baseURLValue = c.OpenAIBaseURL
	case "gemini":
		baseURLValue = c.GeminiBaseURL
	case "anthropic":
		baseURLValue = c.AnthropicBaseURL
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	if baseURLValue == "" {
		return "", fmt.Errorf("%s base URL is not configured. Set it in config file (%s_base_url) or environment variable (%s_%s_BASE_URL)", provider, provider, EnvPrefix, strings.ToUpper(provider))
	}

	return strings.TrimRight(baseURLValue, "/"), nil
}

// GetToken returns the token for the specified provider
// Environment variables are already expanded during LoadConfig()
func (c *Config) GetToken(provider string) (string, error) {
	var tokenValue string
	switch provider {
	case "openai":
		tokenValue = c.OpenAIToken
	case "gemini":
		tokenValue = c.GeminiToken
	case "anthropic":
		tokenValue = c.AnthropicToken
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	if tokenValue == "" {
		return "", fmt.Errorf("%s token is not configured. Set it in config file (%s_token) or environment variable (%s_%s_TOKEN)", provider, provider, EnvPrefix, strings.ToUpper(provider))
	}

	return tokenValue, nil
}

// ResolvePath converts a relative path to absolute path if needed,
// relative to the config file in use by the global viper instance.
func ResolvePath(path string) (string, error) {
	return resolvePath(viper.GetViper(), path)
}

func resolvePath(v *viper.Viper, path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}

	// Get config file directory as base directory
	configFile := v.ConfigFileUsed()
	if configFile == "" {
		// If no config file is used, fall back to current working directory
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %w", err)
		}
		return filepath.Join(cwd, path), nil
	}

	configDir := filepath.Dir(configFile)
	if !filepath.IsAbs(configDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %w", err)
		}
		configDir = filepath.Join(cwd, configDir)
	}

	return filepath.Join(configDir, path), nil
}
