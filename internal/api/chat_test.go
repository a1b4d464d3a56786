package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-dev/atelier/internal/backend"
	"github.com/atelier-dev/atelier/internal/testutil"
)

func chatRequestBody(t *testing.T, conversationID, model, query string) *strings.Reader {
	t.Helper()
	body, err := json.Marshal(chatRequest{
		ConversationID: conversationID,
		Model:          model,
		Messages:       []chatMessage{{Role: "user", Content: query}},
	})
	require.NoError(t, err)
	return strings.NewReader(string(body))
}

func TestChatHandler_Stream(t *testing.T) {
	t.Run("streams chunks then done", func(t *testing.T) {
		f := newTestFixture(t)
		f.client.Steps = []testutil.StreamStep{
			{Delta: "Hi "}, {Delta: "there"}, {Delta: "!"},
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatRequestBody(t, "conv-1", "gemini-2.5-pro", "hello"))
		w := f.do(t, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

		events := testutil.ParseSSEEvents(t, w.Body.String())
		chunks := testutil.FindAllEvents(events, EventChunk)
		require.Len(t, chunks, 3)

		var first ChunkPayload
		require.NoError(t, json.Unmarshal([]byte(chunks[0].Data), &first))
		assert.Equal(t, "Hi ", first.Text)

		done := testutil.FindEvent(events, EventDone)
		require.NotNil(t, done)

		var payload DonePayload
		require.NoError(t, json.Unmarshal([]byte(done.Data), &payload))
		assert.Equal(t, "Hi there!", payload.Content)
		assert.NotEmpty(t, payload.RunID)
		assert.Nil(t, payload.ArtifactID)
	})

	t.Run("fenced output carries artifact reference", func(t *testing.T) {
		f := newTestFixture(t)
		f.client.Steps = []testutil.StreamStep{
			{Delta: "```python\nprint('hi')\n```"},
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatRequestBody(t, "conv-1", "gemini-2.5-pro", "script please"))
		w := f.do(t, req)

		events := testutil.ParseSSEEvents(t, w.Body.String())
		done := testutil.FindEvent(events, EventDone)
		require.NotNil(t, done)

		var payload DonePayload
		require.NoError(t, json.Unmarshal([]byte(done.Data), &payload))
		require.NotNil(t, payload.ArtifactID)
		require.NotNil(t, payload.VersionID)

		// The referenced artifact is fetchable through the read surface.
		getReq := httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/"+*payload.ArtifactID, nil)
		getW := f.do(t, getReq)
		assert.Equal(t, http.StatusOK, getW.Code)
	})

	t.Run("malformed body yields error event", func(t *testing.T) {
		f := newTestFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{nope`))
		w := f.do(t, req)

		events := testutil.ParseSSEEvents(t, w.Body.String())
		errEvent := testutil.FindEvent(events, EventError)
		require.NotNil(t, errEvent)
		assert.Contains(t, errEvent.Data, "INVALID_REQUEST")
	})

	t.Run("missing conversation id yields error event", func(t *testing.T) {
		f := newTestFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatRequestBody(t, "", "m", "hi"))
		w := f.do(t, req)

		events := testutil.ParseSSEEvents(t, w.Body.String())
		errEvent := testutil.FindEvent(events, EventError)
		require.NotNil(t, errEvent)
		assert.Contains(t, errEvent.Data, "MISSING_CONVERSATION_ID")
	})

	t.Run("missing model yields error event", func(t *testing.T) {
		f := newTestFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatRequestBody(t, "conv-1", "", "hi"))
		w := f.do(t, req)

		events := testutil.ParseSSEEvents(t, w.Body.String())
		errEvent := testutil.FindEvent(events, EventError)
		require.NotNil(t, errEvent)
		assert.Contains(t, errEvent.Data, "INVALID_REQUEST")
	})

	t.Run("unknown style override yields error event", func(t *testing.T) {
		f := newTestFixture(t)
		f.client.Steps = []testutil.StreamStep{{Delta: "ok"}}

		body, err := json.Marshal(chatRequest{
			ConversationID:    "conv-1",
			Model:             "m",
			Messages:          []chatMessage{{Role: "user", Content: "hi"}},
			StyleOverrideSlug: "no-such-preset",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(string(body)))
		w := f.do(t, req)

		events := testutil.ParseSSEEvents(t, w.Body.String())
		errEvent := testutil.FindEvent(events, EventError)
		require.NotNil(t, errEvent)
		assert.Contains(t, errEvent.Data, "STYLE_NOT_FOUND")
		assert.Nil(t, testutil.FindEvent(events, EventDone))
	})

	t.Run("style override applies preset params", func(t *testing.T) {
		f := newTestFixture(t)
		f.client.Steps = []testutil.StreamStep{{Delta: "ok"}}

		body, err := json.Marshal(chatRequest{
			ConversationID:    "conv-1",
			Model:             "m",
			Messages:          []chatMessage{{Role: "user", Content: "hi"}},
			StyleOverrideSlug: "concise",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(string(body)))
		w := f.do(t, req)

		events := testutil.ParseSSEEvents(t, w.Body.String())
		require.NotNil(t, testutil.FindEvent(events, EventDone))

		require.Len(t, f.client.StreamRequests, 1)
		assert.Equal(t, 0.3, f.client.StreamRequests[0].Params["temperature"])
	})

	t.Run("canonical override wins over alias", func(t *testing.T) {
		req := chatRequest{StyleOverrideSlug: "concise", StyleSlug: "normal"}
		assert.Equal(t, "concise", req.styleOverride())
	})

	t.Run("unknown style yields error event", func(t *testing.T) {
		f := newTestFixture(t)

		body, err := json.Marshal(chatRequest{
			ConversationID: "conv-1",
			Model:          "m",
			Messages:       []chatMessage{{Role: "user", Content: "hi"}},
			StyleSlug:      "nope",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(string(body)))
		w := f.do(t, req)

		events := testutil.ParseSSEEvents(t, w.Body.String())
		errEvent := testutil.FindEvent(events, EventError)
		require.NotNil(t, errEvent)
		assert.Contains(t, errEvent.Data, "STYLE_NOT_FOUND")
	})

	t.Run("upstream failure mid-stream yields error event after chunks", func(t *testing.T) {
		f := newTestFixture(t)
		f.client.Steps = []testutil.StreamStep{
			{Delta: "partial"},
			{Err: fmt.Errorf("%w: connection reset", backend.ErrUpstream)},
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatRequestBody(t, "conv-1", "m", "hi"))
		w := f.do(t, req)

		events := testutil.ParseSSEEvents(t, w.Body.String())
		require.Len(t, testutil.FindAllEvents(events, EventChunk), 1)
		errEvent := testutil.FindEvent(events, EventError)
		require.NotNil(t, errEvent)
		assert.Contains(t, errEvent.Data, "UPSTREAM_ERROR")
		assert.Nil(t, testutil.FindEvent(events, EventDone))
	})
}
