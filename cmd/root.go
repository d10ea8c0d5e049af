/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/longkey1/sectutor/internal/llmc/config"
	"github.com/longkey1/sectutor/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sectutor",
	Short: "A security-awareness tutor for the terminal",
	Long: `sectutor answers cybersecurity questions using a chat-completion API.
Answers are streamed as they arrive. When the provider cannot be reached,
a built-in answer is shown instead.

Supported providers: openai, anthropic, gemini.
You can configure the tool using a TOML configuration file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/sectutor/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// userConfigDir returns $HOME/.config/sectutor
func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sectutor"), nil
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	userDir, err := userConfigDir()
	cobra.CheckErr(err)

	// Later directories take precedence over earlier ones
	defaultPromptDirs := []string{
		"/usr/share/sectutor/prompts",
		"/usr/local/share/sectutor/prompts",
		filepath.Join(userDir, "prompts"),
	}
	config.SetDefaults(viper.GetViper(), filepath.Join(userDir, "prompts"))
	viper.SetDefault("prompt_dirs", defaultPromptDirs)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	} else {
		// System-wide config first (lower priority)
		for _, path := range []string{"/etc/sectutor", "/usr/local/etc/sectutor"} {
			viper.AddConfigPath(path)
		}
		viper.SetConfigType("toml")
		viper.SetConfigName("config")

		systemConfigLoaded := false
		if err := viper.ReadInConfig(); err == nil {
			systemConfigLoaded = true
			if verbose {
				fmt.Fprintln(os.Stderr, "Loaded system-wide config:", viper.ConfigFileUsed())
			}
		}

		// User config (higher priority)
		viper.AddConfigPath(userDir)
		if systemConfigLoaded {
			if err := viper.MergeInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error merging user config file: %v\n", err)
				}
			} else if verbose {
				fmt.Fprintln(os.Stderr, "Merged user config:", viper.ConfigFileUsed())
			}
		} else if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			}
		}
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		fmt.Fprintln(os.Stderr, "  SECTUTOR_MODEL:", viper.GetString("model"))
		fmt.Fprintln(os.Stderr, "  SECTUTOR_PROMPT_DIRS:", viper.GetStringSlice("prompt_dirs"))
	}
}

// loadConfig loads the configuration and installs the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.Init(cfg, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	return cfg, logger, nil
}
