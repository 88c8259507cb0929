package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindspring/mindweb/internal/model"
	"github.com/mindspring/mindweb/pkg/metrics"
)

const (
	// DefaultEmoji is assigned to users who don't pick one.
	DefaultEmoji = "😀"

	// presenceWindow is how recently a user must have been seen to count
	// as online.
	presenceWindow = 5 * time.Minute
)

// Memory is an in-memory Store. It holds the whole history in process
// memory, which is fine for a single-deployment chatroom; a SQL-backed
// implementation would slot in behind the same interfaces.
type Memory struct {
	mu            sync.RWMutex
	users         map[string]*model.User
	conversations map[string]*model.Conversation
	messages      []model.Message

	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]*model.User),
		conversations: make(map[string]*model.Conversation),
		now:           time.Now,
	}
}

// GetOrCreateUser returns the user, creating it on first sight. Repeat calls
// refresh last_seen/online and any newly provided username or emoji.
func (m *Memory) GetOrCreateUser(ctx context.Context, userID, username, emoji string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	if u, ok := m.users[userID]; ok {
		if username != "" {
			u.Username = username
		}
		if emoji != "" {
			u.Emoji = emoji
		}
		u.LastSeen = now
		u.IsOnline = true
		out := *u
		return &out, nil
	}

	if username == "" {
		username = defaultUsername(userID)
	}
	if emoji == "" {
		emoji = DefaultEmoji
	}

	u := &model.User{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Username:  username,
		Emoji:     emoji,
		CreatedAt: now,
		LastSeen:  now,
		IsOnline:  true,
	}
	m.users[userID] = u
	out := *u
	return &out, nil
}

// OnlineUsers returns users seen within the presence window.
func (m *Memory) OnlineUsers(ctx context.Context) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.now().UTC().Add(-presenceWindow)
	var out []model.User
	for _, u := range m.users {
		if u.IsOnline && !u.LastSeen.Before(cutoff) {
			out = append(out, *u)
		}
	}
	return out, nil
}

// GetOrCreateConversation returns the conversation for conversationID, or
// creates a new thread with a fresh id when the id is empty or unknown.
func (m *Memory) GetOrCreateConversation(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conversationID != "" {
		if c, ok := m.conversations[conversationID]; ok {
			out := *c
			return &out, nil
		}
	}

	now := m.now().UTC()
	c := &model.Conversation{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: uuid.NewString(),
		UserID:         userID,
		Title:          "New Conversation",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.conversations[c.ConversationID] = c
	out := *c
	return &out, nil
}

// SaveMessage appends one message to history.
func (m *Memory) SaveMessage(ctx context.Context, content string, role model.Role, userID, conversationID string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		MessageID:      uuid.NewString(),
		Content:        content,
		Type:           role,
		UserID:         userID,
		ConversationID: conversationID,
		CreatedAt:      m.now().UTC(),
	}
	m.messages = append(m.messages, msg)

	if c, ok := m.conversations[conversationID]; ok {
		c.UpdatedAt = msg.CreatedAt
	}

	metrics.MessagesPersistedTotal.WithLabelValues(string(role)).Inc()
	out := msg
	return &out, nil
}

// QueryHistory returns matching messages newest first. Messages created at
// or after the BeforeMS cursor are excluded, so paging with the timestamp of
// the oldest message on a page yields strictly older messages.
func (m *Memory) QueryHistory(ctx context.Context, f HistoryFilter) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var out []model.Message
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		msg := m.messages[i]
		if f.UserID != "" && msg.UserID != f.UserID {
			continue
		}
		if f.BeforeMS > 0 && msg.CreatedAt.UnixMilli() >= f.BeforeMS {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func defaultUsername(userID string) string {
	suffix := userID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "User" + suffix
}
