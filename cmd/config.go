package cmd

import (
	"fmt"
	"strings"

	"github.com/longkey1/sectutor/internal/llmc/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configField is one line of the config command output
type configField struct {
	key   string
	label string
	value func(cfg *config.Config) string
}

var configFields = []configField{
	{"configfile", "ConfigFile", func(*config.Config) string { return viper.ConfigFileUsed() }},
	{"model", "Model", func(c *config.Config) string { return c.Model }},
	{"openai_base_url", "OpenAIBaseURL", func(c *config.Config) string { return c.OpenAIBaseURL }},
	{"openai_token", "OpenAIToken", func(c *config.Config) string { return maskToken(c.OpenAIToken) }},
	{"anthropic_base_url", "AnthropicBaseURL", func(c *config.Config) string { return c.AnthropicBaseURL }},
	{"anthropic_token", "AnthropicToken", func(c *config.Config) string { return maskToken(c.AnthropicToken) }},
	{"gemini_base_url", "GeminiBaseURL", func(c *config.Config) string { return c.GeminiBaseURL }},
	{"gemini_token", "GeminiToken", func(c *config.Config) string { return maskToken(c.GeminiToken) }},
	{"temperature", "Temperature", func(c *config.Config) string { return fmt.Sprint(c.Temperature) }},
	{"max_tokens", "MaxTokens", func(c *config.Config) string { return fmt.Sprint(c.MaxTokens) }},
	{"top_p", "TopP", func(c *config.Config) string { return fmt.Sprint(c.TopP) }},
	{"frequency_penalty", "FrequencyPenalty", func(c *config.Config) string { return fmt.Sprint(c.FrequencyPenalty) }},
	{"presence_penalty", "PresencePenalty", func(c *config.Config) string { return fmt.Sprint(c.PresencePenalty) }},
	{"request_timeout_seconds", "RequestTimeoutSeconds", func(c *config.Config) string { return fmt.Sprint(c.RequestTimeoutSeconds) }},
	{"prompt_dirs", "PromptDirectories", func(c *config.Config) string { return strings.Join(c.PromptDirs, ",") }},
	{"domain_prompt", "DomainPrompt", func(c *config.Config) string { return c.DomainPrompt }},
	{"session_message_threshold", "SessionMessageThreshold", func(c *config.Config) string { return fmt.Sprint(c.SessionMessageThreshold) }},
	{"session_retention_days", "SessionRetentionDays", func(c *config.Config) string { return fmt.Sprint(c.SessionRetentionDays) }},
	{"log_level", "LogLevel", func(c *config.Config) string { return c.LogLevel }},
	{"log_format", "LogFormat", func(c *config.Config) string { return c.LogFormat }},
	{"log_file", "LogFile", func(c *config.Config) string { return c.LogFile }},
}

func configFieldKeys() string {
	keys := make([]string, len(configFields))
	for i, f := range configFields {
		keys[i] = f.key
	}
	return strings.Join(keys, ", ")
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.
Tokens are masked.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFieldKeys() + `

Examples:
  sectutor config                    # Show all configuration
  sectutor config model              # Show only model
  sectutor config openai_token       # Show only OpenAI token (masked)
  sectutor config prompt_dirs        # Show only prompt directories`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if len(args) > 0 {
			key := strings.ToLower(args[0])
			for _, f := range configFields {
				if f.key == key || strings.ReplaceAll(f.key, "_", "") == key {
					fmt.Println(f.value(cfg))
					return nil
				}
			}
			return fmt.Errorf("unknown field: %s\nAvailable fields: %s", args[0], configFieldKeys())
		}

		for _, f := range configFields {
			fmt.Printf("%s: %s\n", f.label, f.value(cfg))
		}
		return nil
	},
}

// maskToken returns a masked version of the token for security
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func init() {
	rootCmd.AddCommand(configCmd)
}
