package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mindspring/mindweb/internal/broadcast"
	"github.com/mindspring/mindweb/internal/model"
	"github.com/mindspring/mindweb/pkg/logger"
)

// BroadcastHandler serves the shared SSE broadcast stream.
type BroadcastHandler struct {
	hub       *broadcast.Hub
	replay    int
	keepalive time.Duration
	logger    *logger.Logger
}

// NewBroadcastHandler creates a new broadcast handler.
func NewBroadcastHandler(hub *broadcast.Hub, replayLimit int, keepalive time.Duration, log *logger.Logger) *BroadcastHandler {
	if replayLimit <= 0 {
		replayLimit = 10
	}
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	return &BroadcastHandler{
		hub:       hub,
		replay:    replayLimit,
		keepalive: keepalive,
		logger:    log,
	}
}

// Stream handles GET /api/chat/broadcast. Recent history is replayed first,
// then the connection enters the live-wait loop; an idle connection gets a
// keepalive ping so intermediaries see it as alive.
func (h *BroadcastHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	listener := h.hub.NewListener()
	defer h.hub.Deregister(listener)

	for _, ev := range h.hub.RecentHistory(h.replay) {
		if err := writeSSE(w, flusher, ev); err != nil {
			return
		}
	}

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			h.logger.Debug("SSE client disconnected", zap.String("remote_addr", r.RemoteAddr))
			return

		case ev, open := <-listener.C():
			if !open {
				return
			}
			if err := writeSSE(w, flusher, ev); err != nil {
				return
			}
			keepalive.Reset(h.keepalive)

		case <-keepalive.C:
			if err := writeSSE(w, flusher, h.hub.Ping()); err != nil {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev model.BroadcastEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
