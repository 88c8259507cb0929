package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mindspring/mindweb/pkg/logger"
)

const (
	// difyScanBuffer bounds a single SSE line. Dify answer fragments are
	// small but agent events can carry large payloads.
	difyScanBuffer = 1024 * 1024

	// difyErrorBodyLimit bounds how much of a non-200 body is read for
	// diagnostics.
	difyErrorBodyLimit = 64 * 1024
)

// DifyClient streams chat completions from a Dify-compatible API.
//
// The connect and TLS handshake phases use a short timeout so a hung
// connection fails fast, while the response read is unbounded because
// generation time is unpredictable.
type DifyClient struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewDifyClient creates a Dify streaming client.
func NewDifyClient(apiKey, apiURL string, connectTimeout time.Duration, log *logger.Logger) (*DifyClient, error) {
	if apiKey == "" {
		return nil, errMissingAPIKey
	}
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &DifyClient{
		apiKey: apiKey,
		apiURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			// No overall timeout: the streaming body may stay open
			// indefinitely waiting for provider output.
		},
		logger: log,
	}, nil
}

// Name returns the provider name.
func (c *DifyClient) Name() string {
	return "dify"
}

type difyPayload struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	ResponseMode   string         `json:"response_mode"`
	User           string         `json:"user"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

type difyEvent struct {
	Event          string `json:"event"`
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Code           string `json:"code"`
}

// StreamChat opens the streaming request and produces chunks on the returned
// channel from a producer goroutine.
func (c *DifyClient) StreamChat(ctx context.Context, message, userID, conversationID string) <-chan Chunk {
	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		c.stream(ctx, message, userID, conversationID, out)
	}()
	return out
}

func (c *DifyClient) stream(ctx context.Context, message, userID, conversationID string, out chan<- Chunk) {
	send := func(ch Chunk) bool {
		select {
		case out <- ch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	payload := difyPayload{
		Inputs:         map[string]any{},
		Query:          message,
		ResponseMode:   "streaming",
		User:           userID,
		ConversationID: conversationID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		send(Chunk{Kind: KindError, Err: fmt.Sprintf("encode request: %v", err)})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat-messages", bytes.NewReader(body))
	if err != nil {
		send(Chunk{Kind: KindError, Err: fmt.Sprintf("build request: %v", err)})
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("opening upstream stream",
		zap.String("user_id", userID),
		zap.String("upstream_conversation_id", conversationID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		send(Chunk{Kind: KindError, Err: fmt.Sprintf("upstream request failed: %v", err)})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		send(Chunk{Kind: KindError, Err: c.readErrorBody(resp)})
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), difyScanBuffer)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		// Only data lines matter; event-name and id lines are skipped.
		var data string
		switch {
		case strings.HasPrefix(line, "data: "):
			data = line[6:]
		case strings.HasPrefix(line, "data:"):
			data = line[5:]
		default:
			continue
		}

		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			c.logger.Debug("upstream sent [DONE]")
			return
		}

		var ev difyEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// Malformed payloads are skipped, not fatal.
			c.logger.Debug("skipping malformed upstream line", zap.Error(err))
			continue
		}

		switch ev.Event {
		case "message", "agent_message":
			if !send(Chunk{Kind: KindMessage, Answer: ev.Answer, ConversationID: ev.ConversationID}) {
				return
			}
		case "message_end":
			send(Chunk{Kind: KindMessageEnd, ConversationID: ev.ConversationID})
			return
		case "error":
			msg := ev.Message
			if msg == "" {
				msg = ev.Code
			}
			if msg == "" {
				msg = "upstream error"
			}
			send(Chunk{Kind: KindError, Err: msg})
			return
		default:
			// Unknown upstream event kinds (ping, agent_thought, tts) are
			// not part of the relay protocol.
			c.logger.Debug("ignoring upstream event", zap.String("event", ev.Event))
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		send(Chunk{Kind: KindError, Err: fmt.Sprintf("upstream read failed: %v", err)})
	}
	// Stream ended without message_end or [DONE]; the sequence simply
	// finishes and the orchestrator treats it as an incomplete turn.
}

func (c *DifyClient) readErrorBody(resp *http.Response) string {
	fallback := fmt.Sprintf("HTTP %d: API request failed", resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, difyErrorBodyLimit))
	if err != nil {
		return fallback
	}

	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}

	c.logger.Error("upstream returned error status",
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", body),
	)
	return fallback
}
