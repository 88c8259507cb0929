package upstream

import (
	"context"
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mindspring/mindweb/pkg/logger"
)

// OpenAIStreamer adapts the OpenAI chat completion API to the Streamer
// interface. OpenAI keeps no server-side conversation state, so chunks never
// carry an upstream conversation id and the mapping table stays empty.
type OpenAIStreamer struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

// NewOpenAIStreamer creates an OpenAI-backed streamer.
func NewOpenAIStreamer(apiKey string, log *logger.Logger) (*OpenAIStreamer, error) {
	if apiKey == "" {
		return nil, errMissingAPIKey
	}
	return &OpenAIStreamer{
		client: openai.NewClient(apiKey),
		model:  "gpt-4o",
		logger: log,
	}, nil
}

// Name returns the provider name.
func (s *OpenAIStreamer) Name() string {
	return "openai"
}

// StreamChat streams one completion for the message.
func (s *OpenAIStreamer) StreamChat(ctx context.Context, message, userID, conversationID string) <-chan Chunk {
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

		stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: message},
			},
			User:   userID,
			Stream: true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			send(Chunk{Kind: KindError, Err: err.Error()})
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(Chunk{Kind: KindMessageEnd})
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Debug("openai stream error", zap.Error(err))
				send(Chunk{Kind: KindError, Err: err.Error()})
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !send(Chunk{Kind: KindMessage, Answer: delta}) {
					return
				}
			}
		}
	}()
	return out
}
