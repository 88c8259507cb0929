package model

import (
	"time"
)

// Role represents the kind of message sender.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Message represents a persisted chat message. Broadcast chunks are transient
// display traffic; a full AI turn is persisted as a single Message.
type Message struct {
	ID             string    `json:"id"`
	MessageID      string    `json:"message_id"`
	Content        string    `json:"content"`
	Type           Role      `json:"message_type"`
	UserID         string    `json:"user_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatRequest is the inbound body for POST /api/chat/stream.
type ChatRequest struct {
	Message        string `json:"message"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Username       string `json:"username,omitempty"`
	Emoji          string `json:"emoji,omitempty"`
}

// ChatResponse is returned once the stream cycle has completed.
type ChatResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// HistoryResponse is a page of chat history in chronological order.
type HistoryResponse struct {
	Status       string    `json:"status"`
	Messages     []Message `json:"messages"`
	Count        int       `json:"count"`
	NextBeforeMS int64     `json:"next_before_ms,omitempty"`
}
