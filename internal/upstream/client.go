// Package upstream provides streaming clients for the conversational-AI
// backend. A Streamer turns one user message into a lazy, finite sequence of
// typed chunks delivered over a bounded channel; the channel is closed when
// the sequence ends. Failures never escape a Streamer: every failure path
// ends in a single terminal error chunk.
package upstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/mindspring/mindweb/internal/config"
	"github.com/mindspring/mindweb/pkg/logger"
)

// Kind identifies the chunk variant.
type Kind int

const (
	// KindMessage carries an incremental text fragment.
	KindMessage Kind = iota
	// KindMessageEnd signals the turn is complete.
	KindMessageEnd
	// KindError carries a human-readable error and terminates the sequence.
	KindError
)

// Chunk is one unit of the upstream response protocol.
type Chunk struct {
	Kind Kind

	// Answer is the text fragment for KindMessage.
	Answer string

	// ConversationID is the upstream provider's conversation id. It may
	// appear on any message chunk once the provider assigns one; the final
	// value is the one carried by KindMessageEnd.
	ConversationID string

	// Err is the diagnostic text for KindError.
	Err string
}

// Streamer opens one streaming request cycle against the upstream provider.
type Streamer interface {
	// StreamChat sends the message and returns a channel of chunks. The
	// channel is closed after a KindMessageEnd or KindError chunk, or when
	// ctx is cancelled. conversationID is the upstream conversation id to
	// continue, or empty to start a fresh upstream conversation.
	StreamChat(ctx context.Context, message, userID, conversationID string) <-chan Chunk

	// Name returns the provider name.
	Name() string
}

// NewStreamer creates a streamer for the configured provider.
func NewStreamer(cfg *config.Config, log *logger.Logger) (Streamer, error) {
	switch cfg.Provider {
	case "dify", "":
		return NewDifyClient(cfg.DifyAPIKey, cfg.DifyAPIURL, cfg.DifyConnectTimeout, log)
	case "openai":
		return NewOpenAIStreamer(cfg.OpenAIAPIKey, log)
	case "anthropic":
		return NewAnthropicStreamer(cfg.AnthropicAPIKey, log)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

var errMissingAPIKey = errors.New("API key is required")
