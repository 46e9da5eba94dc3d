package conversations

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

const (
	HiddenUserContent      = "[Content hidden for privacy]"
	HiddenAssistantContent = "[Assistant response hidden for privacy]"

	DefaultTitle   = "New conversation"
	maxTitleLength = 50
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(role Role, content string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: at,
	}
}

type Conversation struct {
	ID          string    `json:"id"`
	OwnerID     int64     `json:"ownerId"`
	Title       string    `json:"title"`
	PrivacyMode bool      `json:"privacyMode"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Redact replaces every message body with the placeholder for its role.
// Roles, ids and order are kept.
func Redact(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m
		if m.Role == RoleUser {
			out[i].Content = HiddenUserContent
		} else {
			out[i].Content = HiddenAssistantContent
		}
	}
	return out
}

// DeriveTitle builds a title from the first user message.
func DeriveTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		text := strings.Join(strings.Fields(m.Content), " ")
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) <= maxTitleLength {
			return text
		}
		runes := []rune(text)
		return strings.TrimSpace(string(runes[:maxTitleLength])) + "..."
	}
	return DefaultTitle
}
