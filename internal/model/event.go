package model

// EventType identifies the kind of broadcast event.
type EventType string

const (
	EventUserMessage    EventType = "user_message"
	EventAIMessageChunk EventType = "ai_message_chunk"
	EventAIMessageEnd   EventType = "ai_message_end"
	EventError          EventType = "error"
	EventPing           EventType = "ping"
)

// BroadcastEvent is one event on the shared broadcast channel. EventID and
// Timestamp are assigned by the hub at broadcast time; EventID is strictly
// increasing for the process lifetime and is never persisted.
//
// The payload fields are flat so each event serializes to the single JSON
// object the SSE wire format expects; which fields are set depends on Type.
type BroadcastEvent struct {
	Type EventType `json:"type"`

	// user_message and ai_message_chunk content.
	Content string `json:"content,omitempty"`

	// error payload.
	Error string `json:"error,omitempty"`

	// Correlation metadata for one stream cycle.
	ConversationID  string `json:"conversation_id,omitempty"`
	StreamID        string `json:"stream_id,omitempty"`
	FromUser        string `json:"from_user,omitempty"`
	FromUserID      string `json:"from_user_id,omitempty"`
	ReplyToUsername string `json:"reply_to_username,omitempty"`
	ReplyToUserID   string `json:"reply_to_user_id,omitempty"`
	Prompt          string `json:"prompt,omitempty"`
	Emoji           string `json:"emoji,omitempty"`

	// Assigned at broadcast time. Milliseconds since epoch.
	Timestamp int64 `json:"timestamp"`
	EventID   int64 `json:"event_id,omitempty"`
}
