package backend

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// errConsumerStopped aborts generation when the delta consumer stops
// iterating. Never surfaced to callers.
var errConsumerStopped = errors.New("consumer stopped iterating")

// GenkitClient implements Client on top of an initialized Genkit
// instance. Provider plugins (googlegenai, ollama, openai) are
// registered during app setup; the model is selected per request via
// its provider-qualified name.
type GenkitClient struct {
	g      *genkit.Genkit
	logger *slog.Logger
}

// NewGenkitClient wraps an initialized Genkit instance.
// A nil logger falls back to slog.Default().
func NewGenkitClient(g *genkit.Genkit, logger *slog.Logger) *GenkitClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenkitClient{g: g, logger: logger}
}

// Stream invokes the model with streaming enabled and yields text
// deltas in arrival order. Chunks carrying no usable text are skipped
// silently (logged at debug), matching the contract that malformed
// frames are non-fatal.
func (c *GenkitClient) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		opts := c.generateOptions(req)
		opts = append(opts, ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			if chunk == nil {
				c.logger.Debug("skipping empty stream chunk", "model", req.Model)
				return nil
			}
			text := chunk.Text()
			if text == "" {
				c.logger.Debug("skipping textless stream chunk", "model", req.Model)
				return nil
			}
			if !yield(text, nil) {
				return errConsumerStopped
			}
			return nil
		}))

		_, err := genkit.Generate(ctx, c.g, opts...)
		if err != nil {
			if errors.Is(err, errConsumerStopped) {
				// Consumer walked away; nothing more may be yielded.
				return
			}
			yield("", fmt.Errorf("%w: %w", ErrUpstream, err))
		}
	}
}

// Complete performs a single non-streaming invocation.
func (c *GenkitClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := genkit.Generate(ctx, c.g, c.generateOptions(req)...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return resp.Text(), nil
}

func (c *GenkitClient) generateOptions(req Request) []ai.GenerateOption {
	messages := make([]*ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(req.Model),
		ai.WithMessages(messages...),
	}
	if len(req.Params) > 0 {
		opts = append(opts, ai.WithConfig(req.Params))
	}
	return opts
}
