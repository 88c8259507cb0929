// Package broadcast implements the shared fan-out hub for the chatroom.
//
// The hub owns the set of live listener queues and a bounded history of
// recent events used to seed late joiners. All mutation of the listener set
// and history happens under the hub mutex, so broadcast calls are serialized
// and every event reaches all then-registered listeners before the next
// broadcast is processed.
package broadcast

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mindspring/mindweb/internal/model"
	"github.com/mindspring/mindweb/pkg/logger"
	"github.com/mindspring/mindweb/pkg/metrics"
)

const (
	// DefaultHistoryCapacity bounds the replay buffer.
	DefaultHistoryCapacity = 50

	// DefaultListenerBuffer bounds each listener's queue.
	DefaultListenerBuffer = 200
)

// Listener is one live SSE connection's event queue. It is created and
// registered via Hub.NewListener and must be released with Hub.Deregister.
type Listener struct {
	ch chan model.BroadcastEvent
}

// C returns the receive side of the listener's queue. The channel is closed
// when the listener is deregistered.
func (l *Listener) C() <-chan model.BroadcastEvent {
	return l.ch
}

// Hub is the broadcast fan-out engine.
type Hub struct {
	mu        sync.Mutex
	listeners map[*Listener]struct{}
	history   []model.BroadcastEvent
	capacity  int
	bufSize   int
	nextID    int64
	logger    *logger.Logger
}

// NewHub creates a hub with the given history capacity and per-listener
// queue size. Non-positive values fall back to the defaults.
func NewHub(historyCapacity, listenerBuffer int, log *logger.Logger) *Hub {
	if historyCapacity <= 0 {
		historyCapacity = DefaultHistoryCapacity
	}
	if listenerBuffer <= 0 {
		listenerBuffer = DefaultListenerBuffer
	}
	return &Hub{
		listeners: make(map[*Listener]struct{}),
		history:   make([]model.BroadcastEvent, 0, historyCapacity),
		capacity:  historyCapacity,
		bufSize:   listenerBuffer,
		logger:    log,
	}
}

// NewListener creates a listener and registers it.
func (h *Hub) NewListener() *Listener {
	l := &Listener{ch: make(chan model.BroadcastEvent, h.bufSize)}

	h.mu.Lock()
	h.listeners[l] = struct{}{}
	total := len(h.listeners)
	h.mu.Unlock()

	metrics.IncrementListeners()
	h.logger.Debug("listener registered", zap.Int("total_listeners", total))
	return l
}

// Deregister removes a listener and closes its queue. It is a no-op for a
// listener that is already gone, so double-disconnect races are harmless.
func (h *Hub) Deregister(l *Listener) {
	h.mu.Lock()
	_, ok := h.listeners[l]
	if ok {
		delete(h.listeners, l)
		close(l.ch)
	}
	total := len(h.listeners)
	h.mu.Unlock()

	if ok {
		metrics.DecrementListeners()
		h.logger.Debug("listener deregistered", zap.Int("total_listeners", total))
	}
}

// Broadcast stamps the event with the next event id and current timestamp,
// appends it to history, and enqueues it to every registered listener.
//
// Backpressure is drop-oldest per listener: a full queue has its oldest
// event evicted to make room, so a slow consumer loses old events but never
// stalls the broadcaster or other listeners. The stamped event is returned.
func (h *Hub) Broadcast(ev model.BroadcastEvent) model.BroadcastEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ev.EventID = h.nextID
	ev.Timestamp = time.Now().UnixMilli()

	h.history = append(h.history, ev)
	if len(h.history) > h.capacity {
		h.history = h.history[len(h.history)-h.capacity:]
	}

	var dead []*Listener
	for l := range h.listeners {
		select {
		case l.ch <- ev:
			continue
		default:
		}

		// Queue full: evict the oldest queued event, then retry.
		select {
		case <-l.ch:
			metrics.BroadcastDroppedTotal.Inc()
		default:
		}
		select {
		case l.ch <- ev:
		default:
			// Still not writable; the listener is defunct. Collect it
			// so removal is not observed mid-pass.
			dead = append(dead, l)
		}
	}

	for _, l := range dead {
		delete(h.listeners, l)
		close(l.ch)
		metrics.DecrementListeners()
		h.logger.Debug("removed defunct listener")
	}

	metrics.BroadcastEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	return ev
}

// Ping returns a stamped keepalive event. Pings are per-connection traffic
// synthesized by the serving handler; they are never appended to history.
func (h *Hub) Ping() model.BroadcastEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	return model.BroadcastEvent{
		Type:      model.EventPing,
		EventID:   h.nextID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// RecentHistory returns up to limit of the most recent events in
// chronological order. Used only to seed newly connected listeners.
func (h *Hub) RecentHistory(limit int) []model.BroadcastEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 || len(h.history) == 0 {
		return nil
	}
	start := len(h.history) - limit
	if start < 0 {
		start = 0
	}
	out := make([]model.BroadcastEvent, len(h.history)-start)
	copy(out, h.history[start:])
	return out
}

// ListenerCount reports the number of registered listeners.
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
