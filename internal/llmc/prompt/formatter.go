package prompt

import (
	"fmt"
	"strings"

	"github.com/longkey1/sectutor/internal/llmc"
)

// Formatted is a user message after template expansion.
type Formatted struct {
	DomainContext string  // Empty when the template does not override it
	Message       string
	Model         *string // Model override from the template, if any
}

// DomainContext returns the system context to prepend to every conversation.
// An empty name selects llmc.DefaultDomainContext.
func DomainContext(name string, promptDirs []string) (string, error) {
	if name == "" {
		return llmc.DefaultDomainContext, nil
	}

	promptPath, err := FindPrompt(name, promptDirs)
	if err != nil {
		return "", err
	}
	p, err := LoadPrompt(promptPath)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(p.System) == "" {
		return "", fmt.Errorf("prompt '%s' has no system text to use as domain context", name)
	}
	return p.System, nil
}

// FormatMessage expands the named prompt template around message.
// With an empty promptName the message is returned unchanged.
func FormatMessage(message string, promptName string, promptDirs []string, args []string) (*Formatted, error) {
	if promptName == "" {
		return &Formatted{Message: message}, nil
	}

	promptPath, err := FindPrompt(promptName, promptDirs)
	if err != nil {
		return nil, err
	}

	promptTemplate, err := LoadPrompt(promptPath)
	if err != nil {
		return nil, fmt.Errorf("error loading prompt file: %w", err)
	}

	argMap, err := processArgs(args)
	if err != nil {
		return nil, fmt.Errorf("error processing arguments: %w", err)
	}

	replacements := make(map[string]string)
	replacements["input"] = message
	for key, value := range argMap {
		replacements[key] = value
	}

	systemPrompt := promptTemplate.System
	userPrompt := promptTemplate.User
	if userPrompt == "" {
		userPrompt = "{{input}}"
	}
	for key, value := range replacements {
		placeholder := fmt.Sprintf("{{%s}}", key)
		systemPrompt = strings.ReplaceAll(systemPrompt, placeholder, value)
		userPrompt = strings.ReplaceAll(userPrompt, placeholder, value)
	}

	if promptTemplate.Model != nil {
		if _, _, err := llmc.ParseModelString(*promptTemplate.Model); err != nil {
			return nil, fmt.Errorf("invalid model format in prompt template: %w", err)
		}
	}

	return &Formatted{
		DomainContext: systemPrompt,
		Message:       userPrompt,
		Model:         promptTemplate.Model,
	}, nil
}

// processArgs processes the command line arguments and returns a map of key-value pairs
func processArgs(args []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) {
			arg = strings.Trim(arg, `"`)
		}

		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid argument format: %s. Expected format: key:value", arg)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		value = strings.ReplaceAll(value, `\:`, ":")
		value = strings.ReplaceAll(value, `\"`, `"`)

		if key == "input" {
			return nil, fmt.Errorf("'input' is a reserved keyword and cannot be used as a key")
		}
		result[key] = value
	}
	return result, nil
}
