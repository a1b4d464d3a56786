package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyleHandler_List(t *testing.T) {
	f := newTestFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/styles", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var envelope styleListEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	payload := envelope.Items
	require.Len(t, payload, 2)
	// Ordered by display name.
	assert.Equal(t, "concise", payload[0].Slug)
	assert.Equal(t, "normal", payload[1].Slug)
	assert.Equal(t, "short", payload[0].ToneDescription)
	assert.NotNil(t, payload[0].Params)
}

func TestStyleHandler_SetStyle(t *testing.T) {
	setURL := "/api/v1/conversations/conv-1/style"

	t.Run("pins the active preset", func(t *testing.T) {
		f := newTestFixture(t)

		req := httptest.NewRequest(http.MethodPost, setURL, strings.NewReader(`{"styleSlug":"concise"}`))
		w := f.do(t, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"styleSlug":"concise"`)

		conv := f.db.Conversations["conv-1"]
		require.NotNil(t, conv.ActiveStyleSlug)
		assert.Equal(t, "concise", *conv.ActiveStyleSlug)
	})

	t.Run("last write wins", func(t *testing.T) {
		f := newTestFixture(t)

		for _, slug := range []string{"concise", "normal"} {
			req := httptest.NewRequest(http.MethodPost, setURL, strings.NewReader(`{"styleSlug":"`+slug+`"}`))
			w := f.do(t, req)
			require.Equal(t, http.StatusOK, w.Code)
		}

		conv := f.db.Conversations["conv-1"]
		require.NotNil(t, conv.ActiveStyleSlug)
		assert.Equal(t, "normal", *conv.ActiveStyleSlug)
	})

	t.Run("unknown slug", func(t *testing.T) {
		f := newTestFixture(t)

		req := httptest.NewRequest(http.MethodPost, setURL, strings.NewReader(`{"styleSlug":"nope"}`))
		w := f.do(t, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, f.db.Conversations)
	})

	t.Run("missing slug", func(t *testing.T) {
		f := newTestFixture(t)

		req := httptest.NewRequest(http.MethodPost, setURL, strings.NewReader(`{}`))
		w := f.do(t, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newTestFixture(t)

		req := httptest.NewRequest(http.MethodPost, setURL, strings.NewReader(`{nope`))
		w := f.do(t, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
