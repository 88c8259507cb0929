// Package store defines the persistence interfaces the relay consumes and an
// in-memory implementation. The relational layer is an external collaborator;
// everything here is the narrow surface the rest of the system depends on.
package store

import (
	"context"
	"errors"

	"github.com/mindspring/mindweb/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// HistoryFilter selects a page of message history.
type HistoryFilter struct {
	// UserID limits results to one user when non-empty.
	UserID string

	// BeforeMS excludes messages created at or after this cursor
	// (milliseconds since epoch) when positive.
	BeforeMS int64

	// Limit bounds the page size.
	Limit int
}

// UserStore persists chatroom participants.
type UserStore interface {
	// GetOrCreateUser returns the user for userID, creating it on first
	// sight. An existing user only has last_seen/online (and, when
	// provided, username/emoji) refreshed, never a duplicate row.
	GetOrCreateUser(ctx context.Context, userID, username, emoji string) (*model.User, error)

	// OnlineUsers returns users seen within the presence window.
	OnlineUsers(ctx context.Context) ([]model.User, error)
}

// ConversationStore persists conversation threads.
type ConversationStore interface {
	// GetOrCreateConversation returns the conversation for conversationID,
	// generating a fresh id when conversationID is empty or unknown.
	GetOrCreateConversation(ctx context.Context, conversationID, userID string) (*model.Conversation, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	// SaveMessage writes one message and returns the stored record.
	SaveMessage(ctx context.Context, content string, role model.Role, userID, conversationID string) (*model.Message, error)

	// QueryHistory returns matching messages newest first.
	QueryHistory(ctx context.Context, f HistoryFilter) ([]model.Message, error)
}

// Store is the combined persistence surface.
type Store interface {
	UserStore
	ConversationStore
	MessageStore
}
