package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrNotFound is returned when no conversation matches an ID or prefix.
var ErrNotFound = errors.New("conversation not found")

// MinPrefixLength is the shortest ID prefix accepted by Find.
const MinPrefixLength = 4

// AmbiguousIDError is returned when multiple conversations match a prefix
type AmbiguousIDError struct {
	Prefix  string
	Matches []Conversation
}

func (e *AmbiguousIDError) Error() string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Ambiguous conversation ID %q. Multiple matches found:", e.Prefix))
	for _, match := range e.Matches {
		lines = append(lines, fmt.Sprintf("- %s (%s, %s, %d messages)",
			match.GetShortID(),
			match.Model,
			match.CreatedAt.Format("2006-01-02"),
			match.MessageCount()))
	}
	lines = append(lines, "")
	lines = append(lines, "Please use a longer prefix or run 'sectutor conversations list'.")
	return strings.Join(lines, "\n")
}

// Store reads and writes conversations in a single directory,
// one <id>.json file per conversation.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// DefaultDir returns the directory where conversations are stored.
// If a config file is used, conversations live next to it.
// Otherwise, defaults to $HOME/.config/sectutor/conversations
func DefaultDir() (string, error) {
	configFile := viper.ConfigFileUsed()

	if configFile != "" {
		configDir := filepath.Dir(configFile)
		if !filepath.IsAbs(configDir) {
			cwd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("failed to get current working directory: %w", err)
			}
			configDir = filepath.Join(cwd, configDir)
		}
		return filepath.Join(configDir, "conversations"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "sectutor", "conversations"), nil
}

// Save writes a conversation to disk
func (s *Store) Save(c *Conversation) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create conversation directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize conversation: %w", err)
	}

	// Write via a temp file and rename.
	path := s.path(c.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return nil
}

// Load reads a conversation from disk by full ID
func (s *Store) Load(id string) (*Conversation, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s\n\nRun 'sectutor conversations list' to see available conversations.", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse conversation file: %w\n\nThe conversation file may be corrupted.", err)
	}
	return &c, nil
}

// Delete removes a conversation from disk by full ID
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}
	return nil
}

// List returns all conversations sorted by UpdatedAt (newest first).
// Unreadable files are skipped.
func (s *Store) List() ([]Conversation, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read conversation directory: %w", err)
	}

	var conversations []Conversation
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		c, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		conversations = append(conversations, *c)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

// Find finds a conversation by ID prefix (minimum 4 characters).
// "latest" returns the most recently updated conversation.
func (s *Store) Find(prefix string) (*Conversation, error) {
	if prefix == "latest" {
		return s.Latest()
	}

	if len(prefix) < MinPrefixLength {
		return nil, fmt.Errorf("conversation ID prefix must be at least %d characters (got %d)", MinPrefixLength, len(prefix))
	}

	// Full UUID (36 characters with 4 dashes)
	if len(prefix) == 36 && strings.Count(prefix, "-") == 4 {
		return s.Load(prefix)
	}

	conversations, err := s.List()
	if err != nil {
		return nil, err
	}

	var matches []Conversation
	for _, c := range conversations {
		if strings.HasPrefix(c.ID, prefix) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s\n\nRun 'sectutor conversations list' to see available conversations.", ErrNotFound, prefix)
	case 1:
		return &matches[0], nil
	default:
		return nil, &AmbiguousIDError{Prefix: prefix, Matches: matches}
	}
}

// Latest returns the most recently updated conversation
func (s *Store) Latest() (*Conversation, error) {
	conversations, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(conversations) == 0 {
		return nil, fmt.Errorf("%w\n\nStart one with: sectutor chat --new \"your question\"", ErrNotFound)
	}
	return &conversations[0], nil
}

// DeleteBefore removes every conversation last updated before cutoff and
// returns the ones it removed.
func (s *Store) DeleteBefore(cutoff time.Time) ([]Conversation, error) {
	conversations, err := s.List()
	if err != nil {
		return nil, err
	}

	var removed []Conversation
	for _, c := range conversations {
		if !c.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(c.ID); err != nil {
			return removed, err
		}
		removed = append(removed, c)
	}
	return removed, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
