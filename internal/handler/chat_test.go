package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mindspring/mindweb/internal/broadcast"
	"github.com/mindspring/mindweb/internal/convmap"
	"github.com/mindspring/mindweb/internal/model"
	"github.com/mindspring/mindweb/internal/relay"
	"github.com/mindspring/mindweb/internal/store"
	"github.com/mindspring/mindweb/internal/upstream"
	"github.com/mindspring/mindweb/pkg/logger"
)

// fakeStreamer plays back a fixed chunk sequence.
type fakeStreamer struct {
	chunks []upstream.Chunk
}

func (f *fakeStreamer) Name() string { return "fake" }

func (f *fakeStreamer) StreamChat(ctx context.Context, message, userID, conversationID string) <-chan upstream.Chunk {
	out := make(chan upstream.Chunk, len(f.chunks)+1)
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out
}

type chatFixture struct {
	handler *ChatHandler
	db      *store.Memory
	hub     *broadcast.Hub
}

func newChatFixture(chunks []upstream.Chunk) *chatFixture {
	db := store.NewMemory()
	hub := broadcast.NewHub(50, 200, logger.NewNop())
	orch := relay.New(db, hub, &fakeStreamer{chunks: chunks}, convmap.NewTable(), nil, logger.NewNop())
	return &chatFixture{
		handler: NewChatHandler(orch, db, "http://localhost:9530", logger.NewNop()),
		db:      db,
		hub:     hub,
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestStream_Success(t *testing.T) {
	f := newChatFixture([]upstream.Chunk{
		{Kind: upstream.KindMessage, Answer: "Hello!"},
		{Kind: upstream.KindMessageEnd},
	})

	w := postJSON(t, f.handler.Stream, `{"message":"hi","user_id":"u1","username":"alice"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", w.Code, w.Body.String())
	}

	var resp model.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" || resp.ConversationID == "" {
		t.Errorf("response: %+v", resp)
	}

	msgs, _ := f.db.QueryHistory(context.Background(), store.HistoryFilter{Limit: 10})
	if len(msgs) != 2 {
		t.Errorf("got %d persisted messages, want 2", len(msgs))
	}
}

func TestStream_RejectsBadRequests(t *testing.T) {
	f := newChatFixture(nil)

	cases := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":"","user_id":"u1"}`},
		{"missing user id", `{"message":"hi"}`},
		{"invalid json", `{not json`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if w := postJSON(t, f.handler.Stream, c.body); w.Code != http.StatusBadRequest {
				t.Errorf("got status %d, want 400", w.Code)
			}
		})
	}
}

func TestStream_UpstreamErrorStillReturnsSuccess(t *testing.T) {
	// Streaming failures surface on the broadcast channel, not as HTTP
	// faults; the posting client's own message was still accepted.
	f := newChatFixture([]upstream.Chunk{
		{Kind: upstream.KindError, Err: "provider down"},
	})

	w := postJSON(t, f.handler.Stream, `{"message":"hi","user_id":"u1"}`)
	if w.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", w.Code)
	}
}

func TestHistory_CursorPagination(t *testing.T) {
	f := newChatFixture(nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.db.SaveMessage(ctx, fmt.Sprintf("msg-%d", i), model.RoleUser, "u1", "c1")
		time.Sleep(2 * time.Millisecond) // distinct millisecond timestamps
	}

	get := func(url string) model.HistoryResponse {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		w := httptest.NewRecorder()
		f.handler.History(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("got status %d: %s", w.Code, w.Body.String())
		}
		var resp model.HistoryResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp
	}

	page1 := get("/api/chat/history?limit=2")
	if page1.Count != 2 {
		t.Fatalf("page 1 count: %d", page1.Count)
	}
	// Chronological within the page: the two newest, oldest of them first.
	if page1.Messages[0].Content != "msg-3" || page1.Messages[1].Content != "msg-4" {
		t.Errorf("page 1: %+v", page1.Messages)
	}
	if page1.NextBeforeMS == 0 {
		t.Fatal("full page must carry a next_before_ms cursor")
	}

	page2 := get(fmt.Sprintf("/api/chat/history?limit=2&before_ms=%d", page1.NextBeforeMS))
	if page2.Count != 2 {
		t.Fatalf("page 2 count: %d", page2.Count)
	}
	if page2.Messages[0].Content != "msg-1" || page2.Messages[1].Content != "msg-2" {
		t.Errorf("page 2: %+v", page2.Messages)
	}

	page3 := get(fmt.Sprintf("/api/chat/history?limit=2&before_ms=%d", page2.NextBeforeMS))
	if page3.Count != 1 || page3.Messages[0].Content != "msg-0" {
		t.Errorf("page 3: %+v", page3.Messages)
	}
	if page3.NextBeforeMS != 0 {
		t.Errorf("short page must not carry a cursor, got %d", page3.NextBeforeMS)
	}
}

func TestHistory_UserFilter(t *testing.T) {
	f := newChatFixture(nil)
	ctx := context.Background()

	f.db.SaveMessage(ctx, "from u1", model.RoleUser, "u1", "c1")
	f.db.SaveMessage(ctx, "from u2", model.RoleUser, "u2", "c1")

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history?user_id=u2", nil)
	w := httptest.NewRecorder()
	f.handler.History(w, req)

	var resp model.HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || resp.Messages[0].Content != "from u2" {
		t.Errorf("got %+v", resp.Messages)
	}
}

func TestConfig(t *testing.T) {
	f := newChatFixture(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/config", nil)
	w := httptest.NewRecorder()
	f.handler.Config(w, req)

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["web_url"] != "http://localhost:9530" {
		t.Errorf("got %q", resp["web_url"])
	}
}
