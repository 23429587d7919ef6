package models

import "time"

// Sender values stored on a message. There are exactly two.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// DefaultTitle is the placeholder used until a session title is derived
// from its first message.
const DefaultTitle = "New Conversation"

type Session struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Sender    string    `json:"sender"` // user or assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
