// Package backend defines the model backend collaborator: an external
// chat-completion provider invoked either as a token stream (ingestion)
// or as a single blocking call (rerun).
package backend

import (
	"context"
	"errors"
	"iter"
)

// Message roles accepted by the backend.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything one backend invocation needs: the model
// identifier, the ordered prior turns, and an opaque parameter bag.
type Request struct {
	Model    string
	Messages []Message
	Params   map[string]any
}

// Sentinel errors for backend operations.
var (
	// ErrUpstream indicates the backend call failed or returned
	// non-success. Fatal to the invocation.
	ErrUpstream = errors.New("model backend error")

	// ErrDecode indicates a malformed stream chunk. Recoverable: the
	// consumer logs it and continues with the next chunk.
	ErrDecode = errors.New("malformed stream chunk")
)

// Client is the model backend contract.
//
// Stream returns a lazy, finite sequence of content deltas terminated
// by the sequence ending (completion) or a non-nil error (failure).
// The sequence is not restartable: once consumed or abandoned, a retry
// requires a new call. Abandoning iteration releases local resources
// without forcing the remote call to finish.
//
// Complete performs one blocking, non-streaming invocation and returns
// the full response text.
type Client interface {
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
	Complete(ctx context.Context, req Request) (string, error)
}
