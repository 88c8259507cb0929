package model

import (
	"time"
)

// Conversation represents a conversation thread. The upstream provider keeps
// its own conversation identifier; the correspondence between the two lives in
// the convmap table, never here.
type Conversation struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
