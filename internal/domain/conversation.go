package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageLength is the largest inbound chat message accepted, in characters.
const MaxMessageLength = 2000

// Sender identifies who authored a message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Session is a single visitor conversation
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one entry in a conversation
type Message struct {
	ID        int64
	SessionID string
	Text      string
	Sender    Sender
	CreatedAt time.Time
}

// NewSession creates a Session with a fresh identifier
func NewSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewMessage creates a new Message instance
func NewMessage(sessionID, text string, sender Sender, createdAt time.Time) *Message {
	return &Message{
		SessionID: sessionID,
		Text:      text,
		Sender:    sender,
		CreatedAt: createdAt,
	}
}

// ValidateChatMessage checks an inbound visitor message.
func ValidateChatMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrInvalidMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ParseSessionID normalises a client supplied session id. An empty id is
// valid and means "start a new conversation".
func ParseSessionID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidSessionID
	}
	return id.String(), nil
}

// IsValidSender checks if a Sender is valid
func IsValidSender(s Sender) bool {
	switch s {
	case SenderUser, SenderAssistant:
		return true
	}
	return false
}
