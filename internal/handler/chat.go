package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mindspring/mindweb/internal/middleware"
	"github.com/mindspring/mindweb/internal/model"
	"github.com/mindspring/mindweb/internal/relay"
	"github.com/mindspring/mindweb/internal/store"
	"github.com/mindspring/mindweb/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// ChatHandler handles the chat endpoints.
type ChatHandler struct {
	orchestrator *relay.Orchestrator
	messages     store.MessageStore
	webURL       string
	logger       *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(orch *relay.Orchestrator, messages store.MessageStore, webURL string, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		orchestrator: orch,
		messages:     messages,
		webURL:       webURL,
		logger:       log,
	}
}

// Stream handles POST /api/chat/stream. It runs one full stream cycle:
// the AI reply reaches viewers through the broadcast channel, and this
// request returns once the cycle has finished.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conversationID, err := h.orchestrator.Relay(r.Context(), &req)
	if err != nil {
		if errors.Is(err, relay.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("chat processing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process chat")
		return
	}

	writeJSON(w, http.StatusOK, model.ChatResponse{
		Status:         "success",
		Message:        "Message processed successfully",
		ConversationID: conversationID,
	})
}

// History handles GET /api/chat/history. Pages walk backwards in time via
// the before_ms cursor; each page is returned in chronological order.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.HistoryFilter{
		UserID: q.Get("user_id"),
		Limit:  defaultHistoryLimit,
	}

	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxHistoryLimit {
			filter.Limit = parsed
		}
	}
	if b := q.Get("before_ms"); b != "" {
		if parsed, err := strconv.ParseInt(b, 10, 64); err == nil && parsed > 0 {
			filter.BeforeMS = parsed
		}
	}

	msgs, err := h.messages.QueryHistory(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get chat history")
		return
	}

	// The store returns newest first; the next cursor is the oldest
	// timestamp on a full page, and the page itself is reversed to
	// chronological order for the client.
	var nextBefore int64
	if len(msgs) == filter.Limit {
		nextBefore = msgs[len(msgs)-1].CreatedAt.UnixMilli()
	}

	chronological := make([]model.Message, len(msgs))
	for i, m := range msgs {
		chronological[len(msgs)-1-i] = m
	}

	writeJSON(w, http.StatusOK, model.HistoryResponse{
		Status:       "success",
		Messages:     chronological,
		Count:        len(chronological),
		NextBeforeMS: nextBefore,
	})
}

// Config handles GET /api/chat/config.
func (h *ChatHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"web_url": h.webURL,
	})
}
