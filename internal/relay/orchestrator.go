// Package relay drives one user-message-to-AI-reply cycle end to end: it
// persists and broadcasts the user message, consumes the upstream chunk
// stream, re-broadcasts each fragment tagged with a stream id, and persists
// the accumulated reply when the turn completes.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindspring/mindweb/internal/broadcast"
	"github.com/mindspring/mindweb/internal/convmap"
	"github.com/mindspring/mindweb/internal/model"
	"github.com/mindspring/mindweb/internal/store"
	"github.com/mindspring/mindweb/internal/upstream"
	"github.com/mindspring/mindweb/pkg/logger"
	"github.com/mindspring/mindweb/pkg/metrics"
)

// ErrEmptyMessage rejects a blank chat message before any side effect.
var ErrEmptyMessage = errors.New("message cannot be empty")

// Journal receives durable copies of persisted messages and stream errors.
// It is optional; a nil Journal disables mirroring.
type Journal interface {
	PublishMessage(ctx context.Context, msg *model.Message) error
	PublishError(ctx context.Context, conversationID, streamID, reason string) error
}

// Orchestrator coordinates the store, the broadcast hub, the upstream
// streamer and the conversation mapping table for each request cycle.
type Orchestrator struct {
	store    store.Store
	hub      *broadcast.Hub
	streamer upstream.Streamer
	mapping  *convmap.Table
	journal  Journal
	logger   *logger.Logger
}

// New creates an orchestrator. journal may be nil.
func New(
	st store.Store,
	hub *broadcast.Hub,
	streamer upstream.Streamer,
	mapping *convmap.Table,
	journal Journal,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:    st,
		hub:      hub,
		streamer: streamer,
		mapping:  mapping,
		journal:  journal,
		logger:   log,
	}
}

// Relay runs one stream cycle and returns the local conversation id.
//
// A validation failure returns ErrEmptyMessage and a user/conversation
// resolution failure returns a wrapped error; both happen before any side
// effect. Once streaming begins, failures surface as broadcast error events
// and Relay returns nil; nothing from the streaming layer propagates as an
// HTTP-level fault.
func (o *Orchestrator) Relay(ctx context.Context, req *model.ChatRequest) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", ErrEmptyMessage
	}

	user, err := o.store.GetOrCreateUser(ctx, req.UserID, req.Username, req.Emoji)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}

	conv, err := o.store.GetOrCreateConversation(ctx, req.ConversationID, req.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve conversation: %w", err)
	}

	username := req.Username
	if username == "" {
		username = user.Username
	}
	emoji := req.Emoji
	if emoji == "" {
		emoji = user.Emoji
	}

	// The user's own message is persisted and broadcast before the
	// upstream call, so it appears even if the AI call fails. Persistence
	// here is best effort.
	if msg, err := o.store.SaveMessage(ctx, req.Message, model.RoleUser, req.UserID, conv.ConversationID); err != nil {
		o.logger.Error("failed to persist user message",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
	} else {
		o.mirror(ctx, msg)
	}

	o.hub.Broadcast(model.BroadcastEvent{
		Type:       model.EventUserMessage,
		Content:    req.Message,
		FromUser:   username,
		FromUserID: req.UserID,
		Emoji:      emoji,
	})

	streamID := uuid.NewString()
	upstreamID, _ := o.mapping.Lookup(req.UserID, conv.ConversationID)

	o.logger.Info("starting upstream stream",
		zap.String("stream_id", streamID),
		zap.String("conversation_id", conv.ConversationID),
		zap.String("upstream_conversation_id", upstreamID),
		zap.String("provider", o.streamer.Name()),
	)

	o.runStream(ctx, req, conv.ConversationID, username, streamID, upstreamID)
	return conv.ConversationID, nil
}

func (o *Orchestrator) runStream(ctx context.Context, req *model.ChatRequest, conversationID, username, streamID, upstreamID string) {
	start := time.Now()
	status := "incomplete"

	var reply strings.Builder
	chunks := o.streamer.StreamChat(ctx, req.Message, req.UserID, upstreamID)

loop:
	for chunk := range chunks {
		switch chunk.Kind {
		case upstream.KindMessage:
			if chunk.Answer != "" {
				reply.WriteString(chunk.Answer)
				o.hub.Broadcast(model.BroadcastEvent{
					Type:            model.EventAIMessageChunk,
					Content:         chunk.Answer,
					ConversationID:  conversationID,
					StreamID:        streamID,
					FromUser:        username,
					FromUserID:      req.UserID,
					ReplyToUsername: username,
					ReplyToUserID:   req.UserID,
					Prompt:          req.Message,
				})
			}
			if chunk.ConversationID != "" {
				o.mapping.Record(req.UserID, conversationID, chunk.ConversationID)
			}

		case upstream.KindMessageEnd:
			o.mapping.Confirm(req.UserID, conversationID, chunk.ConversationID)
			o.hub.Broadcast(model.BroadcastEvent{
				Type:            model.EventAIMessageEnd,
				ConversationID:  conversationID,
				StreamID:        streamID,
				FromUser:        username,
				FromUserID:      req.UserID,
				ReplyToUsername: username,
				ReplyToUserID:   req.UserID,
				Prompt:          req.Message,
			})
			status = "success"
			break loop

		case upstream.KindError:
			o.logger.Error("upstream stream error",
				zap.String("stream_id", streamID),
				zap.String("error", chunk.Err),
			)
			o.hub.Broadcast(model.BroadcastEvent{
				Type:       model.EventError,
				Error:      chunk.Err,
				StreamID:   streamID,
				FromUser:   username,
				FromUserID: req.UserID,
			})
			o.mapping.Invalidate(req.UserID, conversationID)
			if o.journal != nil {
				if err := o.journal.PublishError(ctx, conversationID, streamID, chunk.Err); err != nil {
					o.logger.Warn("failed to journal stream error", zap.Error(err))
				}
			}
			status = "error"
			break loop
		}
	}

	if ctx.Err() != nil && status == "incomplete" {
		// Cancelled mid-stream; exit quietly, persist nothing.
		metrics.RecordUpstreamStream(o.streamer.Name(), "cancelled", time.Since(start).Seconds())
		return
	}

	metrics.RecordUpstreamStream(o.streamer.Name(), status, time.Since(start).Seconds())

	if status != "success" {
		// A partial reply from an errored or truncated stream is never
		// persisted.
		if status == "incomplete" {
			o.logger.Warn("upstream stream ended without message_end",
				zap.String("stream_id", streamID),
			)
		}
		return
	}

	if reply.Len() == 0 {
		return
	}

	// One persistence write per full AI turn; chunk broadcasting above was
	// purely transient display traffic.
	msg, err := o.store.SaveMessage(ctx, reply.String(), model.RoleAI, req.UserID, conversationID)
	if err != nil {
		o.logger.Error("failed to persist AI reply",
			zap.String("stream_id", streamID),
			zap.Error(err),
		)
		return
	}
	o.mirror(ctx, msg)

	o.logger.Info("stream cycle complete",
		zap.String("stream_id", streamID),
		zap.String("conversation_id", conversationID),
		zap.Int("reply_bytes", reply.Len()),
	)
}

func (o *Orchestrator) mirror(ctx context.Context, msg *model.Message) {
	if o.journal == nil {
		return
	}
	if err := o.journal.PublishMessage(ctx, msg); err != nil {
		o.logger.Warn("failed to journal message",
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
	}
}
