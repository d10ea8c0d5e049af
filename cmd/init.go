package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/config"
	promptpkg "github.com/longkey1/sectutor/internal/llmc/prompt"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the configuration file",
	Long: `Initialize the configuration file with default settings.
The config file will be created at $HOME/.config/sectutor/config.toml by default.
You can specify a different location using the --config option.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userDir, err := userConfigDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %v", err)
		}

		configFile := filepath.Join(userDir, "config.toml")
		if cfgFile != "" {
			configFile = cfgFile
		}

		// Create config directory
		configDir := filepath.Dir(configFile)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %v", err)
		}

		// Check if config file already exists
		if _, err := os.Stat(configFile); err == nil {
			return fmt.Errorf("config file already exists at: %s", configFile)
		}

		// Create default config
		cfg := config.NewDefaultConfig(filepath.Join(configDir, "prompts"))

		// Create config file
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("failed to create config file: %v", err)
		}
		defer f.Close()

		// Encode config to TOML
		encoder := toml.NewEncoder(f)
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %v", err)
		}

		// Create prompts directory with a starter template
		promptsDir := filepath.Join(configDir, "prompts")
		if err := os.MkdirAll(promptsDir, 0755); err != nil {
			return fmt.Errorf("failed to create prompts directory: %v", err)
		}
		samplePath := filepath.Join(promptsDir, samplePromptName+".toml")
		if _, err := os.Stat(samplePath); os.IsNotExist(err) {
			if err := writeSamplePrompt(samplePath); err != nil {
				return err
			}
		}

		fmt.Printf("Configuration file created at: %s\n", configFile)
		fmt.Printf("Prompts directory created at: %s\n", promptsDir)
		fmt.Printf("\nSet OPENAI_API_KEY (or edit openai_token), then try:\n  sectutor chat \"What is phishing?\"\n")
		return nil
	},
}

const samplePromptName = "beginner"

// writeSamplePrompt writes a prompt template aimed at non-technical learners
func writeSamplePrompt(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create sample prompt: %v", err)
	}
	defer f.Close()

	sample := promptpkg.Prompt{
		Description: "Plain-language answers for learners new to security",
		System: llmc.DefaultDomainContext + `
Assume the learner has no technical background. Avoid jargon or explain it in one sentence.`,
		User: "{{input}}",
	}
	if err := toml.NewEncoder(f).Encode(sample); err != nil {
		return fmt.Errorf("failed to encode sample prompt: %v", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
