package upstream

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/mindspring/mindweb/pkg/logger"
)

// AnthropicStreamer adapts the Anthropic Messages API to the Streamer
// interface. Like OpenAI, Anthropic keeps no server-side conversation state,
// so chunks never carry an upstream conversation id.
type AnthropicStreamer struct {
	client *anthropic.Client
	model  string
	logger *logger.Logger
}

// NewAnthropicStreamer creates an Anthropic-backed streamer.
func NewAnthropicStreamer(apiKey string, log *logger.Logger) (*AnthropicStreamer, error) {
	if apiKey == "" {
		return nil, errMissingAPIKey
	}
	return &AnthropicStreamer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  "claude-3-5-sonnet-20241022",
		logger: log,
	}, nil
}

// Name returns the provider name.
func (s *AnthropicStreamer) Name() string {
	return "anthropic"
}

// StreamChat streams one completion for the message.
func (s *AnthropicStreamer) StreamChat(ctx context.Context, message, userID, conversationID string) <-chan Chunk {
	out := make(chan Chunk, 16)
	go func() {
		defer close(out)

		send := func(ch Chunk) bool {
			select {
			case out <- ch:
				return true
			case <-ctx.Done():
				return false
			}
		}

		stream := s.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
			Model:     anthropic.F(s.model),
			MaxTokens: anthropic.F(int64(4096)),
			Messages: anthropic.F([]anthropic.MessageParam{
				{
					Role: anthropic.F(anthropic.MessageParamRoleUser),
					Content: anthropic.F([]anthropic.ContentBlockParamUnion{
						anthropic.TextBlockParam{
							Type: anthropic.F(anthropic.TextBlockParamTypeText),
							Text: anthropic.F(message),
						},
					}),
				},
			}),
		})

		for stream.Next() {
			event := stream.Current()
			if event.Type == anthropic.MessageStreamEventTypeContentBlockDelta {
				if delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta); ok {
					if delta.Type == "text_delta" && delta.Text != "" {
						if !send(Chunk{Kind: KindMessage, Answer: delta.Text}) {
							return
						}
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Debug("anthropic stream error", zap.Error(err))
			send(Chunk{Kind: KindError, Err: err.Error()})
			return
		}

		send(Chunk{Kind: KindMessageEnd})
	}()
	return out
}
