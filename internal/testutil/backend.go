package testutil

import (
	"context"
	"iter"
	"sync"

	"github.com/atelier-dev/atelier/internal/backend"
)

// StreamStep is one scripted element of a mock stream: either a delta
// or an error (never both).
type StreamStep struct {
	Delta string
	Err   error
}

// ScriptedBackend is a backend.Client whose responses are scripted per
// test. Safe for concurrent use.
type ScriptedBackend struct {
	mu sync.Mutex

	// Steps is replayed in order by Stream.
	Steps []StreamStep

	// CompleteOutput and CompleteErr script the Complete call.
	CompleteOutput string
	CompleteErr    error

	// Recorded requests, in call order.
	StreamRequests   []backend.Request
	CompleteRequests []backend.Request
}

var _ backend.Client = (*ScriptedBackend)(nil)

// Stream replays the scripted steps. An error step terminates the
// sequence unless it is a recoverable decode error, which the consumer
// is expected to skip.
func (s *ScriptedBackend) Stream(ctx context.Context, req backend.Request) iter.Seq2[string, error] {
	s.mu.Lock()
	s.StreamRequests = append(s.StreamRequests, req)
	steps := make([]StreamStep, len(s.Steps))
	copy(steps, s.Steps)
	s.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, step := range steps {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(step.Delta, step.Err) {
				return
			}
		}
	}
}

// Complete returns the scripted output or error.
func (s *ScriptedBackend) Complete(ctx context.Context, req backend.Request) (string, error) {
	s.mu.Lock()
	s.CompleteRequests = append(s.CompleteRequests, req)
	out, err := s.CompleteOutput, s.CompleteErr
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	return out, nil
}
