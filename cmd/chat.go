/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"

	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/config"
	"github.com/longkey1/sectutor/internal/llmc/conversation"
	promptpkg "github.com/longkey1/sectutor/internal/llmc/prompt"
	"github.com/longkey1/sectutor/internal/llmc/tutor"
	"github.com/spf13/cobra"
)

var (
	model            string
	prompt           string
	argFlags         []string
	useEditor        bool
	conversationID   string
	newConversation  bool
	conversationName string
	noStream         bool
	ignoreThreshold  bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask the security tutor a question",
	Long: `Ask the security tutor a question and print the answer as it streams in.

Without --conversation or --new the question is answered on its own.
With --new a conversation is created and saved; continue it later with
--conversation <id>. For interactive use, run 'sectutor conversations start'.

If no message is provided as an argument, it reads from stdin.
If --editor flag is set, it opens the default editor (from EDITOR environment variable) to compose the message.

Press Ctrl+C to cancel an answer in progress.

The prompt file should be in TOML format with the following structure:
description = "Optional one-line description"
system = "Domain context sent as the system message"
user = "User prompt with optional {{input}} placeholder"
model = "optional provider:model"  # Optional: overrides the default model for this prompt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		if conversationID != "" && newConversation {
			return fmt.Errorf("cannot specify both --conversation and --new")
		}
		if conversationID != "" && prompt != "" {
			return fmt.Errorf("cannot use --prompt with an existing conversation")
		}

		message, err := readMessage(args)
		if err != nil {
			return err
		}

		dir, err := conversation.DefaultDir()
		if err != nil {
			return fmt.Errorf("resolving conversation directory: %w", err)
		}
		store := conversation.NewStore(dir)

		var conv *conversation.Conversation
		domainPrompt := cfg.DomainPrompt
		domainContext := ""

		if conversationID != "" {
			conv, err = store.Find(conversationID)
			if err != nil {
				return fmt.Errorf("finding conversation: %w", err)
			}
			if !confirmThreshold(cfg, conv) {
				fmt.Fprintln(os.Stderr, "Cancelled.")
				return nil
			}
			cfg.Model = llmc.FormatModelString(conv.Provider, conv.Model)
			domainPrompt = conv.DomainPrompt

			if verbose {
				fmt.Fprintf(os.Stderr, "Continuing conversation: %s\n", conv.GetShortID())
				fmt.Fprintf(os.Stderr, "Model: %s\n", cfg.Model)
			}
		} else {
			formatted, err := promptpkg.FormatMessage(message, prompt, cfg.PromptDirs, argFlags)
			if err != nil {
				return fmt.Errorf("formatting message with prompt: %w", err)
			}
			message = formatted.Message
			domainContext = formatted.DomainContext
			if prompt != "" {
				domainPrompt = prompt
			}

			if err := applyModelOverride(cmd, cfg, formatted.Model); err != nil {
				return err
			}

			if newConversation {
				providerName, _ := cfg.GetProvider()
				modelName, _ := cfg.GetModelName()
				conv = conversation.New(providerName, modelName)
				conv.Name = conversationName
				conv.DomainPrompt = domainPrompt

				if verbose {
					fmt.Fprintf(os.Stderr, "Creating new conversation: %s\n", conv.GetShortID())
					fmt.Fprintf(os.Stderr, "Model: %s\n", cfg.Model)
				}
			}
		}

		if domainContext == "" {
			domainContext, err = promptpkg.DomainContext(domainPrompt, cfg.PromptDirs)
			if err != nil {
				return fmt.Errorf("loading domain context: %w", err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		llmProvider, err := newProvider(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("creating provider: %w", err)
		}

		t := tutor.New(llmProvider,
			tutor.WithDomainContext(domainContext),
			tutor.WithStreaming(!noStream),
			tutor.WithLogger(logger))

		answer, err := ask(ctx, t, conv, message, os.Stdout)
		if err != nil {
			return err
		}

		if conv == nil || answer.Fallback {
			return nil
		}
		if err := store.Save(conv); err != nil {
			return fmt.Errorf("saving conversation: %w", err)
		}

		if newConversation {
			fmt.Fprintf(os.Stderr, "\nConversation created: %s\n", conv.GetShortID())
			fmt.Fprintf(os.Stderr, "Path: %s/%s.json\n", store.Dir(), conv.ID)
			fmt.Fprintf(os.Stderr, "\nNext time, use:\n  sectutor chat -c %s \"your question\"\n", conv.GetShortID())
			fmt.Fprintf(os.Stderr, "For interactive mode, use:\n  sectutor conversations start %s\n", conv.GetShortID())
		}
		return nil
	},
}

// ask sends one question and writes the answer to out as it arrives.
// Fallback answers are preceded by an advisory on stderr.
func ask(ctx context.Context, t *tutor.Tutor, conv *conversation.Conversation, message string, out io.Writer) (*tutor.Answer, error) {
	answer, err := t.Ask(ctx, conv, message, func(delta string) {
		fmt.Fprint(out, delta)
	})
	if err != nil {
		if errors.Is(err, llmc.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "\nCancelled.")
		}
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if answer.Fallback {
		if answer.Partial != "" {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(os.Stderr, "\nWarning: the tutor service is unavailable (%v).\n", answer.Cause)
		fmt.Fprintf(os.Stderr, "Showing a built-in answer instead. It will not be saved.\n\n")
		fmt.Fprintln(out, answer.Text)
		return answer, nil
	}

	fmt.Fprintln(out)
	return answer, nil
}

// readMessage returns the question from the editor, the arguments, or stdin.
func readMessage(args []string) (string, error) {
	if useEditor {
		message, err := getMessageFromEditor()
		if err != nil {
			return "", fmt.Errorf("getting message from editor: %w", err)
		}
		return message, nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading from stdin: %w", err)
	}
	return strings.TrimSpace(string(input)), nil
}

// applyModelOverride applies the model with priority: flag > env > prompt template > config file.
func applyModelOverride(cmd *cobra.Command, cfg *config.Config, promptModel *string) error {
	envModel := os.Getenv(config.EnvPrefix + "_MODEL")
	switch {
	case cmd.Flags().Changed("model"):
		if _, _, err := llmc.ParseModelString(model); err != nil {
			return fmt.Errorf("invalid model from flag: %w", err)
		}
		cfg.Model = model
	case envModel != "":
		if _, _, err := llmc.ParseModelString(envModel); err != nil {
			return fmt.Errorf("invalid model from environment: %w", err)
		}
		cfg.Model = envModel
	case promptModel != nil:
		if _, _, err := llmc.ParseModelString(*promptModel); err != nil {
			return fmt.Errorf("invalid model from prompt file: %w", err)
		}
		cfg.Model = *promptModel
		if verbose {
			fmt.Fprintf(os.Stderr, "Using model from prompt file: %s\n", cfg.Model)
		}
	}
	return nil
}

// confirmThreshold warns about long conversations and asks whether to continue.
func confirmThreshold(cfg *config.Config, conv *conversation.Conversation) bool {
	threshold := cfg.SessionMessageThreshold
	if threshold <= 0 || conv.MessageCount() < threshold || ignoreThreshold {
		return true
	}

	fmt.Fprintf(os.Stderr, "\nWarning: Conversation %s has %d messages (threshold: %d).\n",
		conv.GetShortID(), conv.MessageCount(), threshold)
	fmt.Fprintf(os.Stderr, "Long conversations increase token usage and response time.\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	fmt.Fprintf(os.Stderr, "  1. Continue anyway with --ignore-threshold flag\n")
	fmt.Fprintf(os.Stderr, "  2. Start a new conversation: sectutor chat --new\n\n")

	fmt.Fprint(os.Stderr, "Continue with this conversation? [y/N]: ")
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

// getMessageFromEditor opens the default editor and returns the edited message
func getMessageFromEditor() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return "", fmt.Errorf("EDITOR environment variable is not set")
	}

	tmpFile, err := os.CreateTemp("", "sectutor-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %v", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	cmd := exec.Command(editor, tmpFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %v", err)
	}

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited content: %v", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (format: provider:model, e.g., openai:gpt-4o-mini)")
	chatCmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Name of the prompt template (without .toml extension)")
	chatCmd.Flags().StringArrayVar(&argFlags, "arg", []string{}, "Key-value pairs for prompt template (format: key:value)")
	chatCmd.Flags().BoolVarP(&useEditor, "editor", "e", false, "Use default editor (from EDITOR environment variable) to compose message")
	chatCmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the whole answer instead of streaming it")

	chatCmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation ID (short or full UUID, or 'latest' for most recent conversation)")
	chatCmd.Flags().BoolVarP(&newConversation, "new", "n", false, "Create a new conversation")
	chatCmd.Flags().StringVar(&conversationName, "name", "", "Name for the new conversation (optional)")
	chatCmd.Flags().BoolVar(&ignoreThreshold, "ignore-threshold", false, "Ignore conversation message threshold warning")
}
