package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/longkey1/sectutor/internal/llmc/conversation"
	promptpkg "github.com/longkey1/sectutor/internal/llmc/prompt"
	"github.com/longkey1/sectutor/internal/llmc/tutor"
	"github.com/spf13/cobra"
)

// previewWidth is the number of terminal cells used for the PREVIEW column
const previewWidth = 40

// conversationsCmd represents the conversations command
var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"sessions"},
	Short:   "Manage saved conversations",
	Long: `Manage saved conversations including listing, viewing, and deleting them.

Conversations keep the questions and answers of earlier turns so that
follow-up questions are answered in context.`,
}

// openStore returns the conversation store in the default directory
func openStore() (*conversation.Store, error) {
	dir, err := conversation.DefaultDir()
	if err != nil {
		return nil, fmt.Errorf("resolving conversation directory: %w", err)
	}
	return conversation.NewStore(dir), nil
}

// conversationsListCmd represents the conversations list command
var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Long:  `List all saved conversations sorted by most recently updated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		conversations, err := store.List()
		if err != nil {
			return fmt.Errorf("listing conversations: %w", err)
		}

		if len(conversations) == 0 {
			fmt.Println("No conversations found.")
			fmt.Println("\nStart a new conversation with:")
			fmt.Println("  sectutor chat --new \"your question\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMODEL\tUPDATED\tMESSAGES\tNAME\tPREVIEW")
		fmt.Fprintln(w, "--\t-----\t-------\t--------\t----\t-------")

		for _, c := range conversations {
			name := c.Name
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				c.GetShortID(),
				llmc.FormatModelString(c.Provider, c.Model),
				c.UpdatedAt.Format("2006-01-02"),
				c.MessageCount(),
				name,
				c.Preview(previewWidth),
			)
		}
		w.Flush()

		fmt.Println("\nUse 'sectutor conversations show <id>' to view a conversation.")
		return nil
	},
}

// conversationsShowCmd represents the conversations show command
var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show conversation details and history",
	Long: `Show detailed information about a conversation including all messages.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent conversation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		c, err := store.Find(args[0])
		if err != nil {
			return fmt.Errorf("finding conversation: %w", err)
		}

		fmt.Printf("Conversation: %s\n", c.ID)
		if c.Name != "" {
			fmt.Printf("Name: %s\n", c.Name)
		}
		fmt.Printf("Model: %s\n", llmc.FormatModelString(c.Provider, c.Model))
		fmt.Printf("Created: %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated: %s\n", c.UpdatedAt.Format("2006-01-02 15:04:05"))
		if c.DomainPrompt != "" {
			fmt.Printf("Prompt: %s\n", c.DomainPrompt)
		}
		fmt.Printf("Messages: %d\n", c.MessageCount())
		fmt.Println()

		if len(c.Messages) == 0 {
			fmt.Println("No messages in this conversation.")
			return nil
		}

		fmt.Println("Message History:")
		fmt.Println("----------------")
		for i, msg := range c.Messages {
			roleLabel := "You"
			if msg.Role == llmc.RoleAssistant {
				roleLabel = "Tutor"
			}
			fmt.Printf("\n[%d] %s (%s):\n%s\n",
				i+1,
				roleLabel,
				msg.Timestamp.Format("2006-01-02 15:04:05"),
				msg.Content,
			)
		}

		fmt.Printf("\nContinue this conversation with:\n  sectutor chat -c %s \"your question\"\n", c.GetShortID())
		return nil
	},
}

// conversationsDeleteCmd represents the conversations delete command
var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Long: `Delete a conversation permanently.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent conversation.

Warning: This action cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		c, err := store.Find(args[0])
		if err != nil {
			return fmt.Errorf("finding conversation: %w", err)
		}

		if !confirm(fmt.Sprintf("Are you sure you want to delete conversation %s?", c.GetShortID())) {
			fmt.Println("Deletion cancelled.")
			return nil
		}

		if err := store.Delete(c.ID); err != nil {
			return fmt.Errorf("deleting conversation: %w", err)
		}

		fmt.Printf("Conversation %s deleted successfully.\n", c.GetShortID())
		return nil
	},
}

// conversationsRenameCmd represents the conversations rename command
var conversationsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a conversation",
	Long: `Rename a conversation.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent conversation.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		c, err := store.Find(args[0])
		if err != nil {
			return fmt.Errorf("finding conversation: %w", err)
		}

		c.Name = args[1]
		if err := store.Save(c); err != nil {
			return fmt.Errorf("saving conversation: %w", err)
		}

		fmt.Printf("Conversation %s renamed to \"%s\".\n", c.GetShortID(), c.Name)
		return nil
	},
}

// conversationsClearCmd represents the conversations clear command
var conversationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete old conversations",
	Long: `Delete old conversations permanently.

By default, deletes conversations not updated within the configured retention
period (session_retention_days, 30 days unless set).
Use --before to specify a date, or --all to delete all conversations.

Warning: This action cannot be undone.

Examples:
  sectutor conversations clear                      # Delete conversations older than the retention period
  sectutor conversations clear --before 2024-01-01  # Delete conversations last updated before 2024-01-01
  sectutor conversations clear --before 2024-12     # Delete conversations last updated before 2024-12-01
  sectutor conversations clear --all                # Delete all conversations`,
	RunE: func(cmd *cobra.Command, args []string) error {
		beforeDateStr, _ := cmd.Flags().GetString("before")
		deleteAll, _ := cmd.Flags().GetBool("all")

		store, err := openStore()
		if err != nil {
			return err
		}

		var cutoff time.Time
		var ageNote string
		switch {
		case deleteAll:
			cutoff = time.Now().Add(time.Second)
		case beforeDateStr != "":
			cutoff, err = parseDate(beforeDateStr)
			if err != nil {
				return fmt.Errorf("parsing date: %w", err)
			}
		default:
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			cutoff = time.Now().AddDate(0, 0, -cfg.SessionRetentionDays)
			ageNote = fmt.Sprintf(" older than %d days", cfg.SessionRetentionDays)
		}

		conversations, err := store.List()
		if err != nil {
			return fmt.Errorf("listing conversations: %w", err)
		}
		candidates := 0
		for _, c := range conversations {
			if c.UpdatedAt.Before(cutoff) {
				candidates++
			}
		}
		if candidates == 0 {
			if deleteAll {
				fmt.Println("No conversations to delete.")
			} else {
				fmt.Printf("No conversations found last updated before %s.\n", cutoff.Format("2006-01-02"))
			}
			return nil
		}

		question := fmt.Sprintf("Are you sure you want to delete all %d conversations?", candidates)
		if !deleteAll {
			question = fmt.Sprintf("Are you sure you want to delete %d conversations%s (last updated before %s)?",
				candidates, ageNote, cutoff.Format("2006-01-02"))
		}
		if !confirm(question) {
			fmt.Println("Deletion cancelled.")
			return nil
		}

		removed, err := store.DeleteBefore(cutoff)
		fmt.Printf("Successfully deleted %d conversations.\n", len(removed))
		if err != nil {
			return fmt.Errorf("deleting conversations: %w", err)
		}
		return nil
	},
}

// parseDate parses a date string in various formats and returns a time.Time
// Supported formats: YYYY-MM-DD, YYYY-MM, YYYY
func parseDate(dateStr string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.ParseInLocation(layout, dateStr, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD, YYYY-MM, or YYYY)", dateStr)
}

// confirm asks a yes/no question on stdout and reports whether the answer was yes
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

// conversationsStartCmd represents the conversations start command
var conversationsStartCmd = &cobra.Command{
	Use:   "start [id]",
	Short: "Start an interactive conversation",
	Long: `Start an interactive tutoring session with continuous conversation.

You can either start a new conversation or continue an existing one by providing its ID.
The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent conversation.

Examples:
  sectutor conversations start            # Start a new conversation
  sectutor conversations start 550e8400   # Continue conversation 550e8400
  sectutor conversations start latest     # Continue the latest conversation`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}

		var c *conversation.Conversation
		if len(args) > 0 {
			c, err = store.Find(args[0])
			if err != nil {
				return fmt.Errorf("finding conversation: %w", err)
			}
			cfg.Model = llmc.FormatModelString(c.Provider, c.Model)

			if verbose {
				fmt.Fprintf(os.Stderr, "Continuing conversation: %s\n", c.GetShortID())
				fmt.Fprintf(os.Stderr, "Model: %s\n", cfg.Model)
			}
		} else {
			providerName, err := cfg.GetProvider()
			if err != nil {
				return err
			}
			modelName, err := cfg.GetModelName()
			if err != nil {
				return err
			}
			c = conversation.New(providerName, modelName)
			c.DomainPrompt = cfg.DomainPrompt

			fmt.Fprintf(os.Stderr, "Conversation created: %s\n", c.GetShortID())
			fmt.Fprintf(os.Stderr, "Path: %s/%s.json\n\n", store.Dir(), c.ID)
		}

		domainContext, err := promptpkg.DomainContext(c.DomainPrompt, cfg.PromptDirs)
		if err != nil {
			return fmt.Errorf("loading domain context: %w", err)
		}

		llmProvider, err := newProvider(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("creating provider: %w", err)
		}

		t := tutor.New(llmProvider,
			tutor.WithDomainContext(domainContext),
			tutor.WithLogger(logger))

		if err := runInteractiveMode(cmd.Context(), t, store, c, os.Stdin); err != nil {
			return fmt.Errorf("interactive mode: %w", err)
		}
		return nil
	},
}

// runInteractiveMode reads questions line by line until EOF or /exit.
// Ctrl+C cancels the answer in progress without leaving the loop.
func runInteractiveMode(ctx context.Context, t *tutor.Tutor, store *conversation.Store, c *conversation.Conversation, in io.Reader) error {
	fmt.Fprintf(os.Stderr, "\n=== Security Tutor [%s] ===\n", c.GetShortID())
	fmt.Fprintf(os.Stderr, "Model: %s\n", llmc.FormatModelString(c.Provider, c.Model))
	if c.DomainPrompt != "" {
		fmt.Fprintf(os.Stderr, "Prompt: %s\n", c.DomainPrompt)
	}
	fmt.Fprintf(os.Stderr, "Type '/help' for commands, '/exit' or 'Ctrl+D' to quit\n")
	fmt.Fprintf(os.Stderr, "===================================\n\n")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(os.Stderr, "You> ")

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if handleSpecialCommand(input, c) {
				continue
			}
			return nil
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		fmt.Print("\nTutor> ")
		stopSpinner := startSpinner()
		answer, err := t.Ask(turnCtx, c, input, func(delta string) {
			stopSpinner()
			fmt.Print(delta)
		})
		stopSpinner()
		stop()

		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
			continue
		}

		if answer.Fallback {
			if answer.Partial != "" {
				fmt.Println()
			}
			fmt.Fprintf(os.Stderr, "\n(the tutor service is unavailable: %v; showing a built-in answer)\n", answer.Cause)
			fmt.Printf("%s\n\n", answer.Text)
			continue
		}
		fmt.Print("\n\n")

		if err := store.Save(c); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save conversation: %v\n", err)
		}
	}
}

// startSpinner animates on stderr until the returned func is called.
// The returned func is safe to call more than once.
func startSpinner() func() {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(spinners) {
			fmt.Fprintf(os.Stderr, "%s\b", spinners[i])
			select {
			case <-done:
				fmt.Fprint(os.Stderr, " \b")
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}

// handleSpecialCommand processes special commands in interactive mode
// Returns true to continue the loop, false to exit
func handleSpecialCommand(command string, c *conversation.Conversation) bool {
	command = strings.ToLower(strings.TrimSpace(command))

	switch command {
	case "/help", "/h":
		fmt.Fprintln(os.Stderr, "\nAvailable commands:")
		fmt.Fprintln(os.Stderr, "  /help, /h     - Show this help message")
		fmt.Fprintln(os.Stderr, "  /info, /i     - Show conversation information")
		fmt.Fprintln(os.Stderr, "  /clear, /c    - Clear screen (Unix/Linux only)")
		fmt.Fprintln(os.Stderr, "  /exit, /quit  - Exit interactive mode")
		fmt.Fprintln(os.Stderr, "  Ctrl+C        - Cancel the answer in progress")
		fmt.Fprintln(os.Stderr, "  Ctrl+D        - Exit interactive mode")
		fmt.Fprintln(os.Stderr, "")
		return true

	case "/info", "/i":
		fmt.Fprintln(os.Stderr, "\nConversation Information:")
		fmt.Fprintf(os.Stderr, "  ID: %s\n", c.GetShortID())
		fmt.Fprintf(os.Stderr, "  Full ID: %s\n", c.ID)
		if c.Name != "" {
			fmt.Fprintf(os.Stderr, "  Name: %s\n", c.Name)
		}
		fmt.Fprintf(os.Stderr, "  Model: %s\n", llmc.FormatModelString(c.Provider, c.Model))
		fmt.Fprintf(os.Stderr, "  Messages: %d\n", c.MessageCount())
		fmt.Fprintf(os.Stderr, "  Created: %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
		if c.DomainPrompt != "" {
			fmt.Fprintf(os.Stderr, "  Prompt: %s\n", c.DomainPrompt)
		}
		fmt.Fprintln(os.Stderr, "")
		return true

	case "/clear", "/c":
		fmt.Print("\033[H\033[2J")
		return true

	case "/exit", "/quit", "/q":
		fmt.Fprintln(os.Stderr, "Goodbye!")
		return false

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s (type '/help' for available commands)\n", command)
		return true
	}
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	conversationsCmd.AddCommand(conversationsRenameCmd)
	conversationsCmd.AddCommand(conversationsClearCmd)
	conversationsCmd.AddCommand(conversationsStartCmd)

	conversationsClearCmd.Flags().String("before", "", "Delete only conversations last updated before this date (format: YYYY-MM-DD, YYYY-MM, or YYYY)")
	conversationsClearCmd.Flags().Bool("all", false, "Delete all conversations (overrides retention days setting)")
}
