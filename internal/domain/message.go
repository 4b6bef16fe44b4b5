package domain

import "time"

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Messages are append-only: once added
// to a session history they are never edited.
type Message struct {
	ID             string          `json:"id"`
	Role           Role            `json:"role"`
	Text           string          `json:"text"`
	Timestamp      time.Time       `json:"timestamp"`
	Classification *Classification `json:"classification,omitempty"`
}
