package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/atelier-dev/atelier/internal/backend"
	"github.com/atelier-dev/atelier/internal/ingest"
	"github.com/atelier-dev/atelier/internal/style"
)

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // Partial response text
	EventDone  = "done"  // Stream completed successfully
	EventError = "error" // Error occurred during streaming
)

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload is the SSE data payload when streaming completes.
// ArtifactID and VersionID are set when the finalized content was
// promoted into the version store.
type DonePayload struct {
	RunID      string  `json:"runId"`
	Content    string  `json:"content"`
	ArtifactID *string `json:"artifactId,omitempty"`
	VersionID  *string `json:"versionId,omitempty"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// chatMessage is one turn of the incoming transcript.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the body of POST /api/v1/chat. styleSlug is accepted
// as an alias for styleOverrideSlug; the canonical field wins when both
// are present.
type chatRequest struct {
	ConversationID    string         `json:"conversationId"`
	ProjectID         string         `json:"projectId,omitempty"`
	Model             string         `json:"model"`
	Messages          []chatMessage  `json:"messages"`
	Params            map[string]any `json:"params,omitempty"`
	StyleOverrideSlug string         `json:"styleOverrideSlug,omitempty"`
	StyleSlug         string         `json:"styleSlug,omitempty"`
}

// styleOverride resolves the alias pair to a single slug.
func (r chatRequest) styleOverride() string {
	if r.StyleOverrideSlug != "" {
		return r.StyleOverrideSlug
	}
	return r.StyleSlug
}

// chatHandler streams model output over SSE, accumulating it through
// the ingestion pipeline so finalized content can become an artifact.
type chatHandler struct {
	controller *ingest.Controller
	logger     *slog.Logger
}

// stream handles POST /api/v1/chat as Server-Sent Events.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    "INVALID_REQUEST",
			Message: "invalid request body",
		})
		return
	}
	if req.ConversationID == "" {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    "MISSING_CONVERSATION_ID",
			Message: "conversationId is required",
		})
		return
	}

	ingestReq, err := toIngestRequest(req)
	if err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	h.logger.Debug("SSE stream started", "conversation_id", req.ConversationID)

	for value, streamErr := range h.controller.Stream(r.Context(), ingestReq) {
		if streamErr != nil {
			_ = writeEvent(w, flusher, EventError, errorPayloadFor(streamErr))
			return
		}

		if value.Done {
			_ = writeEvent(w, flusher, EventDone, toDonePayload(value.Final))
			return
		}

		if err := writeEvent(w, flusher, EventChunk, ChunkPayload{Text: value.Delta}); err != nil {
			// Client gone: abandon the stream, the run outlives us.
			h.logger.Debug("SSE client disconnected", "conversation_id", req.ConversationID)
			return
		}
	}
}

func toIngestRequest(req chatRequest) (ingest.Request, error) {
	var projectID uuid.UUID
	if req.ProjectID != "" {
		parsed, err := uuid.Parse(req.ProjectID)
		if err != nil {
			return ingest.Request{}, errors.New("projectId must be a UUID")
		}
		projectID = parsed
	}

	messages := make([]backend.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, backend.Message{Role: m.Role, Content: m.Content})
	}

	return ingest.Request{
		ConversationID: req.ConversationID,
		ProjectID:      projectID,
		Model:          req.Model,
		Messages:       messages,
		Params:         req.Params,
		StyleSlug:      req.styleOverride(),
	}, nil
}

func toDonePayload(final ingest.Final) DonePayload {
	payload := DonePayload{
		RunID:   final.RunID.String(),
		Content: final.Content,
	}
	if final.ArtifactID != nil {
		s := final.ArtifactID.String()
		payload.ArtifactID = &s
	}
	if final.VersionID != nil {
		s := final.VersionID.String()
		payload.VersionID = &s
	}
	return payload
}

// errorPayloadFor maps pipeline errors to stable SSE error codes.
func errorPayloadFor(err error) ErrorPayload {
	code := "INTERNAL"
	switch {
	case errors.Is(err, ingest.ErrNoMessages),
		errors.Is(err, ingest.ErrNotUserTurn),
		errors.Is(err, ingest.ErrMissingModel):
		code = "INVALID_REQUEST"
	case errors.Is(err, style.ErrNotFound):
		code = "STYLE_NOT_FOUND"
	case errors.Is(err, backend.ErrUpstream):
		code = "UPSTREAM_ERROR"
	}
	return ErrorPayload{Code: code, Message: err.Error()}
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
