package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mindspring/mindweb/pkg/logger"
)

func newTestDify(t *testing.T, url string) *DifyClient {
	t.Helper()
	c, err := NewDifyClient("test-key", url, 2*time.Second, logger.NewNop())
	if err != nil {
		t.Fatalf("NewDifyClient: %v", err)
	}
	return c
}

func collect(t *testing.T, ch <-chan Chunk) []Chunk {
	t.Helper()
	var out []Chunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, open := <-ch:
			if !open {
				return out
			}
			out = append(out, c)
		case <-timeout:
			t.Fatal("timed out waiting for chunks")
		}
	}
}

func sseServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", got)
		}
		if r.URL.Path != "/chat-messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			w.Write([]byte(line + "\n"))
		}
	}))
}

func TestStreamChat_MessageSequence(t *testing.T) {
	srv := sseServer(t,
		`data: {"event": "message", "answer": "Hi", "conversation_id": "up-1"}`,
		``,
		`data: {"event": "message", "answer": " there"}`,
		`data: {"event": "message_end", "conversation_id": "up-1"}`,
	)
	defer srv.Close()

	chunks := collect(t, newTestDify(t, srv.URL).StreamChat(context.Background(), "hello", "u1", ""))

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %+v", len(chunks), chunks)
	}
	if chunks[0].Kind != KindMessage || chunks[0].Answer != "Hi" || chunks[0].ConversationID != "up-1" {
		t.Errorf("chunk 0: %+v", chunks[0])
	}
	if chunks[1].Kind != KindMessage || chunks[1].Answer != " there" {
		t.Errorf("chunk 1: %+v", chunks[1])
	}
	if chunks[2].Kind != KindMessageEnd || chunks[2].ConversationID != "up-1" {
		t.Errorf("chunk 2: %+v", chunks[2])
	}
}

func TestStreamChat_DataPrefixWithoutSpace(t *testing.T) {
	srv := sseServer(t,
		`data:{"event": "message", "answer": "compact"}`,
		`data:{"event": "message_end"}`,
	)
	defer srv.Close()

	chunks := collect(t, newTestDify(t, srv.URL).StreamChat(context.Background(), "hello", "u1", ""))

	if len(chunks) != 2 || chunks[0].Answer != "compact" {
		t.Fatalf("got %+v", chunks)
	}
}

func TestStreamChat_NonDataLinesIgnored(t *testing.T) {
	srv := sseServer(t,
		`event: message`,
		`id: 42`,
		`: comment`,
		`data: {"event": "message", "answer": "x"}`,
		`data: {"event": "message_end"}`,
	)
	defer srv.Close()

	chunks := collect(t, newTestDify(t, srv.URL).StreamChat(context.Background(), "hello", "u1", ""))
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
}

func TestStreamChat_DoneTerminates(t *testing.T) {
	srv := sseServer(t,
		`data: {"event": "message", "answer": "partial"}`,
		`data: [DONE]`,
		`data: {"event": "message", "answer": "never seen"}`,
	)
	defer srv.Close()

	chunks := collect(t, newTestDify(t, srv.URL).StreamChat(context.Background(), "hello", "u1", ""))
	if len(chunks) != 1 || chunks[0].Answer != "partial" {
		t.Fatalf("got %+v", chunks)
	}
}

func TestStreamChat_MalformedJSONSkipped(t *testing.T) {
	srv := sseServer(t,
		`data: {not json at all`,
		`data: {"event": "message", "answer": "ok"}`,
		`data: {"event": "message_end"}`,
	)
	defer srv.Close()

	chunks := collect(t, newTestDify(t, srv.URL).StreamChat(context.Background(), "hello", "u1", ""))
	if len(chunks) != 2 || chunks[0].Answer != "ok" {
		t.Fatalf("got %+v", chunks)
	}
}

func TestStreamChat_ErrorEvent(t *testing.T) {
	srv := sseServer(t,
		`data: {"event": "message", "answer": "partial"}`,
		`data: {"event": "error", "message": "boom"}`,
	)
	defer srv.Close()

	chunks := collect(t, newTestDify(t, srv.URL).StreamChat(context.Background(), "hello", "u1", ""))
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks: %+v", len(chunks), chunks)
	}
	last := chunks[len(chunks)-1]
	if last.Kind != KindError || last.Err != "boom" {
		t.Errorf("got %+v", last)
	}
}

func TestStreamChat_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "invalid api key"}`))
	}))
	defer srv.Close()

	chunks := collect(t, newTestDify(t, srv.URL).StreamChat(context.Background(), "hello", "u1", ""))
	if len(chunks) != 1 || chunks[0].Kind != KindError {
		t.Fatalf("got %+v", chunks)
	}
	if chunks[0].Err != "invalid api key" {
		t.Errorf("got error %q", chunks[0].Err)
	}
}

func TestStreamChat_NonSuccessStatusUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	chunks := collect(t, newTestDify(t, srv.URL).StreamChat(context.Background(), "hello", "u1", ""))
	if len(chunks) != 1 || chunks[0].Kind != KindError {
		t.Fatalf("got %+v", chunks)
	}
	if !strings.Contains(chunks[0].Err, "502") {
		t.Errorf("diagnostic %q should carry the status code", chunks[0].Err)
	}
}

func TestStreamChat_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	chunks := collect(t, newTestDify(t, srv.URL).StreamChat(context.Background(), "hello", "u1", ""))
	if len(chunks) != 1 || chunks[0].Kind != KindError {
		t.Fatalf("got %+v", chunks)
	}
}

func TestStreamChat_ConversationIDForwarded(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 4096)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.Write([]byte(`data: {"event": "message_end", "conversation_id": "up-9"}` + "\n"))
	}))
	defer srv.Close()

	collect(t, newTestDify(t, srv.URL).StreamChat(context.Background(), "hello", "u1", "up-9"))

	if !strings.Contains(gotBody, `"conversation_id":"up-9"`) {
		t.Errorf("upstream id not forwarded: %s", gotBody)
	}
	if !strings.Contains(gotBody, `"response_mode":"streaming"`) {
		t.Errorf("streaming mode not requested: %s", gotBody)
	}
}

func TestStreamChat_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := sseServer(t, `data: {"event": "message", "answer": "x"}`)
	defer srv.Close()

	ch := newTestDify(t, srv.URL).StreamChat(ctx, "hello", "u1", "")

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return // closed quietly, no chunks required
			}
		case <-timeout:
			t.Fatal("channel not closed after cancellation")
		}
	}
}
