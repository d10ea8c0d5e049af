/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/longkey1/sectutor/internal/llmc/config"
	promptpkg "github.com/longkey1/sectutor/internal/llmc/prompt"
	"github.com/spf13/cobra"
)

var withDir bool

// promptCmd represents the prompt command
var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "List available prompt templates",
	Long: `List all available prompt templates from the configured prompt directories.
This command recursively scans all prompt directories specified in the configuration and displays
the names of available .toml prompt files, including those in subdirectories.

The prompt files should be in TOML format with the following structure:
description = "Optional one-line description"
system = "Domain context sent as the system message"
user = "User prompt with optional {{input}} placeholder"

Prompt names are displayed as relative paths from the prompt directory root.
For example, a file at ${prompt_dir}/foo/bar.toml will be displayed as "foo/bar".
When the same name exists in several directories, the later directory wins.

If you want to see which directory each prompt comes from, use the --with-dir option.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if verbose {
			fmt.Fprintf(os.Stderr, "Prompt directories: %v\n", cfg.PromptDirs)
		}

		entries, err := promptpkg.List(cfg.PromptDirs)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No prompt templates found.")
			fmt.Println("Create .toml files in the following directories:")
			for _, promptDir := range cfg.PromptDirs {
				fmt.Printf("  - %s\n", promptDir)
			}
			return nil
		}

		fmt.Printf("Available prompt templates (%d found):\n\n", len(entries))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, e := range entries {
			line := fmt.Sprintf("  %s\t%s", e.Name, e.Description)
			if withDir {
				line += fmt.Sprintf("\t(from %s)", filepath.Dir(e.Path))
			}
			fmt.Fprintln(w, line)
		}
		w.Flush()

		fmt.Printf("\nUse a prompt template with: sectutor chat --prompt <name> [message]\n")
		fmt.Printf("Or make it the default with domain_prompt = \"<name>\" in the config file.\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().BoolVar(&withDir, "with-dir", false, "Show the directory each prompt was found in")
}
