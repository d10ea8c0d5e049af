// Package conversation persists tutoring conversations as JSON files.
package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/longkey1/sectutor/internal/llmc"
	"github.com/mattn/go-runewidth"
)

// Conversation is an append-only record of the turns exchanged with the tutor.
// It is owned by a single caller and is not safe for concurrent mutation.
type Conversation struct {
	ID           string         `json:"id"`            // UUID v4 (e.g., "550e8400-e29b-41d4-a716-446655440000")
	Name         string         `json:"name"`          // Optional name (empty by default)
	DomainPrompt string         `json:"domain_prompt"` // Prompt template used for the domain context (can be empty)
	Provider     string         `json:"provider"`      // Provider name ("openai", "anthropic" or "gemini")
	Model        string         `json:"model"`         // Model name (without provider prefix)
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Messages     []llmc.Message `json:"messages"`
}

// New creates an empty conversation with the given provider and model
func New(provider, model string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.New().String(),
		Provider:  provider,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []llmc.Message{},
	}
}

// AddMessage appends a message. Earlier messages are never modified.
func (c *Conversation) AddMessage(role llmc.Role, content string) {
	now := time.Now()
	c.Messages = append(c.Messages, llmc.Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	c.UpdatedAt = now
}

// AddExchange records a completed question and answer in order.
func (c *Conversation) AddExchange(question, answer string) {
	c.AddMessage(llmc.RoleUser, question)
	c.AddMessage(llmc.RoleAssistant, answer)
}

// GetShortID returns the shortened conversation ID (first 8 characters)
func (c *Conversation) GetShortID() string {
	if len(c.ID) >= 8 {
		return c.ID[:8]
	}
	return c.ID
}

// GetDisplayName returns the name if set, otherwise the short ID.
func (c *Conversation) GetDisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.GetShortID()
}

// MessageCount returns the number of messages in the conversation
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// Preview returns the first user message on one line, truncated to width
// terminal cells with an ellipsis.
func (c *Conversation) Preview(width int) string {
	for _, msg := range c.Messages {
		if msg.Role == llmc.RoleUser {
			return TruncateToWidth(strings.Join(strings.Fields(msg.Content), " "), width)
		}
	}
	return ""
}

// TruncateToWidth truncates text to width terminal cells, appending "..."
// when anything was cut. Wide runes count as two cells.
func TruncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(text) <= width {
		return text
	}
	if width <= 3 {
		return runewidth.Truncate(text, width, "")
	}
	return runewidth.Truncate(text, width, "...")
}
