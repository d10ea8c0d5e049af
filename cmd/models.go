/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/longkey1/sectutor/internal/anthropic"
	"github.com/longkey1/sectutor/internal/gemini"
	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/config"
	"github.com/longkey1/sectutor/internal/openai"
	"github.com/spf13/cobra"
)

type providerInfo struct {
	name         string
	defaultModel string
	description  string
}

var providers = []providerInfo{
	{openai.ProviderName, openai.DefaultModel, "Chat Completions API, streamed as server-sent events"},
	{anthropic.ProviderName, anthropic.DefaultModel, "Messages API, streamed as server-sent events"},
	{gemini.ProviderName, gemini.DefaultModel, "Gemini API through the genai SDK"},
}

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List supported providers and their default models",
	Long: `List the supported providers with a suggested model for each,
and mark the provider selected by the current configuration.

Supported providers: openai, anthropic, gemini

Example:
  sectutor models            # List all providers
  sectutor models anthropic  # Show only Anthropic`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		current, _ := cfg.GetProvider()

		selected := providers
		if len(args) > 0 {
			selected = nil
			for _, p := range providers {
				if p.name == args[0] {
					selected = append(selected, p)
				}
			}
			if len(selected) == 0 {
				return fmt.Errorf("unsupported provider '%s'\nSupported providers: openai, anthropic, gemini", args[0])
			}
		}

		maxModelWidth := 15
		for _, p := range selected {
			maxModelWidth = max(maxModelWidth, len(llmc.FormatModelString(p.name, p.defaultModel)))
		}

		fmt.Printf("%-*s  %-10s  %s\n", maxModelWidth, "MODEL", "CURRENT", "DESCRIPTION")
		fmt.Printf("%s  %s  %s\n",
			strings.Repeat("-", maxModelWidth),
			strings.Repeat("-", 10),
			strings.Repeat("-", 50))

		for _, p := range selected {
			currentMark := ""
			modelString := llmc.FormatModelString(p.name, p.defaultModel)
			if p.name == current {
				currentMark = "Yes"
				modelString = cfg.Model
			}
			fmt.Printf("%-*s  %-10s  %s\n", maxModelWidth, modelString, currentMark, p.description)
		}

		fmt.Printf("\nUse a model with: sectutor chat --model <provider:model> [message]\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
