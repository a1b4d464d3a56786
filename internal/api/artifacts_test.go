package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-dev/atelier/internal/artifact"
	"github.com/atelier-dev/atelier/internal/backend"
)

// seedArtifact stores an artifact with the given version contents and
// returns it with its versions loaded.
func seedArtifact(t *testing.T, f *testFixture, model string, contents ...string) *artifact.Artifact {
	t.Helper()
	ctx := context.Background()

	a, err := f.store.Create(ctx, uuid.New(), "Seeded", "code")
	require.NoError(t, err)
	for _, content := range contents {
		_, err := f.store.AppendVersion(ctx, a.ID, content, model, map[string]any{"temperature": 0.5}, uuid.New())
		require.NoError(t, err)
	}

	full, err := f.store.Get(ctx, a.ID)
	require.NoError(t, err)
	return full
}

func TestArtifactHandler_Get(t *testing.T) {
	t.Run("returns artifact with ascending versions", func(t *testing.T) {
		f := newTestFixture(t)
		a := seedArtifact(t, f, "gemini-2.5-pro", "v1", "v2")

		w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/"+a.ID.String(), nil))

		require.Equal(t, http.StatusOK, w.Code)

		var envelope artifactEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		payload := envelope.Artifact
		assert.Equal(t, a.ID.String(), payload.ID)
		assert.Equal(t, "Seeded", payload.Name)
		require.Len(t, payload.Versions, 2)
		assert.Equal(t, 1, payload.Versions[0].VersionNumber)
		assert.Equal(t, 2, payload.Versions[1].VersionNumber)
		assert.Equal(t, "v2", payload.Versions[1].Content)
		assert.Equal(t, "gemini-2.5-pro", payload.Versions[1].ModelName)
	})

	t.Run("unknown artifact", func(t *testing.T) {
		f := newTestFixture(t)

		w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/"+uuid.NewString(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not_found")
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newTestFixture(t)

		w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/not-a-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_id")
	})
}

func TestArtifactHandler_Rerun(t *testing.T) {
	rerunURL := func(versionID uuid.UUID) string {
		return fmt.Sprintf("/api/v1/versions/%s/rerun", versionID)
	}

	t.Run("replays pinned model and returns fresh output", func(t *testing.T) {
		f := newTestFixture(t)
		f.client.CompleteOutput = "replayed output"
		a := seedArtifact(t, f, "gemini-2.5-pro", "stored content")

		w := f.do(t, httptest.NewRequest(http.MethodPost, rerunURL(a.Versions[0].ID), nil))

		require.Equal(t, http.StatusOK, w.Code)

		var payload rerunPayload
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Equal(t, "done", payload.Status)
		assert.Equal(t, "replayed output", payload.Output)
		assert.NotEmpty(t, payload.RunID)

		// Rerun is a probe: history stays untouched.
		after, err := f.store.Get(context.Background(), a.ID)
		require.NoError(t, err)
		assert.Len(t, after.Versions, 1)
	})

	t.Run("unknown version", func(t *testing.T) {
		f := newTestFixture(t)

		w := f.do(t, httptest.NewRequest(http.MethodPost, rerunURL(uuid.New()), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no model pinned", func(t *testing.T) {
		f := newTestFixture(t)
		a := seedArtifact(t, f, "", "stored content")

		w := f.do(t, httptest.NewRequest(http.MethodPost, rerunURL(a.Versions[0].ID), nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "missing_model")
	})

	t.Run("upstream failure surfaces the errored run", func(t *testing.T) {
		f := newTestFixture(t)
		f.client.CompleteErr = fmt.Errorf("%w: quota exceeded", backend.ErrUpstream)
		a := seedArtifact(t, f, "gemini-2.5-pro", "stored content")

		w := f.do(t, httptest.NewRequest(http.MethodPost, rerunURL(a.Versions[0].ID), nil))

		require.Equal(t, http.StatusBadGateway, w.Code)

		var payload rerunPayload
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Equal(t, "error", payload.Status)
		assert.NotEmpty(t, payload.RunID)
		assert.Contains(t, payload.Error, "quota exceeded")
	})
}
