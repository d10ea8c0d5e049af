package prompt

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

// Prompt represents the structure of a TOML prompt file.
// System replaces the built-in domain context; User wraps the question
// and may reference {{input}} and named arguments.
type Prompt struct {
	Description string  `toml:"description"`
	System      string  `toml:"system"`
	User        string  `toml:"user"`
	Model       *string `toml:"model,omitempty"`
}

// Entry describes a prompt file found under a prompt directory.
type Entry struct {
	Name        string // Path relative to the prompt directory, without .toml
	Path        string
	Description string
}

// LoadPrompt loads a prompt file and returns its contents
func LoadPrompt(filePath string) (*Prompt, error) {
	var prompt Prompt
	if _, err := toml.DecodeFile(filePath, &prompt); err != nil {
		return nil, fmt.Errorf("error decoding prompt file: %w", err)
	}
	return &prompt, nil
}

// FindPrompt returns the path of the named prompt file.
// Later directories take precedence over earlier ones.
func FindPrompt(name string, promptDirs []string) (string, error) {
	promptFile := name
	if !strings.HasSuffix(promptFile, ".toml") {
		promptFile = promptFile + ".toml"
	}

	var promptPath string
	for _, promptDir := range promptDirs {
		candidatePath := filepath.Join(promptDir, filepath.FromSlash(promptFile))
		if _, err := os.Stat(candidatePath); err == nil {
			promptPath = candidatePath
		}
	}

	if promptPath == "" {
		return "", fmt.Errorf("prompt file '%s' not found in any of the prompt directories: %v", promptFile, promptDirs)
	}
	return promptPath, nil
}

// List returns every prompt file under promptDirs, including subdirectories,
// sorted by name. A name present in several directories is reported once,
// from the directory that FindPrompt would pick.
func List(promptDirs []string) ([]Entry, error) {
	byName := make(map[string]Entry)
	for _, promptDir := range promptDirs {
		info, err := os.Stat(promptDir)
		if err != nil || !info.IsDir() {
			continue
		}

		err = doublestar.GlobWalk(os.DirFS(promptDir), "**/*.toml", func(path string, d iofs.DirEntry) error {
			if d.IsDir() {
				return nil
			}
			entry := Entry{
				Name: strings.TrimSuffix(path, ".toml"),
				Path: filepath.Join(promptDir, filepath.FromSlash(path)),
			}
			if p, err := LoadPrompt(entry.Path); err == nil {
				entry.Description = p.Description
			}
			byName[entry.Name] = entry
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error listing prompt directory '%s': %w", promptDir, err)
		}
	}

	entries := make([]Entry, 0, len(byName))
	for _, e := range byName {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}
