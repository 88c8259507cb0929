package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mindspring/mindweb/internal/model"
	"github.com/mindspring/mindweb/pkg/metrics"
)

const (
	// StreamName is the name of the chat journal stream.
	StreamName = "CHAT"

	// SubjectPrefix is the prefix for all journal subjects.
	SubjectPrefix = "chat"
)

// Journal mirrors persisted messages and stream errors into a durable
// JetStream log. The store remains the query path; the journal is a
// write-behind audit trail.
type Journal struct {
	client *Client
}

// NewJournal creates a journal on the client's JetStream context.
func NewJournal(client *Client) *Journal {
	return &Journal{client: client}
}

// EnsureStream ensures the journal stream exists.
func (j *Journal) EnsureStream(ctx context.Context) error {
	js := j.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Chatroom message and error journal",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// MessageSubject returns the subject for a persisted message.
func MessageSubject(conversationID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, conversationID, role)
}

// ErrorSubject returns the subject for a stream error.
func ErrorSubject(conversationID string) string {
	return fmt.Sprintf("%s.%s.event.error", SubjectPrefix, conversationID)
}

// PublishMessage mirrors one persisted message to the journal.
func (j *Journal) PublishMessage(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		metrics.JournalPublishesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := j.client.JetStream().Publish(ctx, MessageSubject(msg.ConversationID, msg.Type), data); err != nil {
		metrics.JournalPublishesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish message: %w", err)
	}

	metrics.JournalPublishesTotal.WithLabelValues("ok").Inc()
	return nil
}

// journalError is the payload for journaled stream errors.
type journalError struct {
	ConversationID string    `json:"conversation_id"`
	StreamID       string    `json:"stream_id"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

// PublishError journals one upstream stream failure.
func (j *Journal) PublishError(ctx context.Context, conversationID, streamID, reason string) error {
	data, err := json.Marshal(journalError{
		ConversationID: conversationID,
		StreamID:       streamID,
		Reason:         reason,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		metrics.JournalPublishesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to marshal error event: %w", err)
	}

	if _, err := j.client.JetStream().Publish(ctx, ErrorSubject(conversationID), data); err != nil {
		metrics.JournalPublishesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish error event: %w", err)
	}

	metrics.JournalPublishesTotal.WithLabelValues("ok").Inc()
	return nil
}
