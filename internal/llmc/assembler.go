package llmc

import (
	"strings"
	"time"
)

// DefaultDomainContext is the system guidance placed ahead of every outbound
// conversation. It is static and never built from user input.
const DefaultDomainContext = `You are a cybersecurity training assistant for an online security-awareness course.
Explain concepts such as phishing, malware, password hygiene, multi-factor authentication,
social engineering, encryption and secure browsing in clear, practical terms.
Prefer short answers with concrete examples and defensive advice.
Do not provide instructions for attacking systems you are not authorized to test.`

// Assemble builds the outbound message sequence for a new user turn: the
// domain context as a system message, the prior history, then the candidate.
// The history slice is not modified. Messages with blank content are dropped.
func Assemble(domainContext string, history []Message, candidate string) ([]Message, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, ErrInvalidInput
	}

	messages := make([]Message, 0, len(history)+2)
	if strings.TrimSpace(domainContext) != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: domainContext})
	}
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: candidate, Timestamp: time.Now()})

	return Sanitize(messages)
}

// Sanitize returns a copy of messages without entries whose content is blank
// or whose role is unknown. It fails with ErrEmptyConversation when nothing is left.
func Sanitize(messages []Message) ([]Message, error) {
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if !msg.Role.Valid() || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		out = append(out, msg)
	}
	if len(out) == 0 {
		return nil, ErrEmptyConversation
	}
	return out, nil
}
