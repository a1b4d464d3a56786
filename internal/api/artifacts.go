package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-dev/atelier/internal/artifact"
	"github.com/atelier-dev/atelier/internal/backend"
	"github.com/atelier-dev/atelier/internal/run"
)

// artifactHandler serves the artifact read surface and version reruns.
type artifactHandler struct {
	store    *artifact.Store
	rerunner *artifact.Rerunner
	logger   *slog.Logger
}

// versionPayload is the wire shape of one artifact version.
type versionPayload struct {
	ID            string         `json:"id"`
	VersionNumber int            `json:"versionNumber"`
	Content       string         `json:"content"`
	ModelName     string         `json:"modelName"`
	Params        map[string]any `json:"params"`
	RunID         string         `json:"runId"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// artifactPayload is the wire shape of an artifact with its full history.
type artifactPayload struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"projectId"`
	Name      string           `json:"name"`
	Type      string           `json:"type"`
	CreatedAt time.Time        `json:"createdAt"`
	Versions  []versionPayload `json:"versions"`
}

// artifactEnvelope wraps the artifact read response.
type artifactEnvelope struct {
	Artifact artifactPayload `json:"artifact"`
}

// rerunPayload is the response for a version rerun. Error carries the
// upstream message when the rerun's run ended in error.
type rerunPayload struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// get handles GET /api/v1/artifacts/{id}: the artifact and its versions
// in ascending version order.
func (h *artifactHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "artifact id must be a UUID")
		return
	}

	art, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "artifact not found")
			return
		}
		h.logger.Error("fetching artifact", "artifact_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to fetch artifact")
		return
	}

	writeJSON(w, http.StatusOK, artifactEnvelope{Artifact: toArtifactPayload(art)})
}

// rerun handles POST /api/v1/versions/{id}/rerun: replay a stored
// version's pinned model and params and return the fresh output without
// appending a new version.
func (h *artifactHandler) rerun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "version id must be a UUID")
		return
	}

	result, err := h.rerunner.Rerun(r.Context(), id)
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "version not found")
		return
	case errors.Is(err, artifact.ErrMissingModel):
		writeError(w, http.StatusBadRequest, "missing_model", "no model pinned for this version")
		return
	case errors.Is(err, backend.ErrUpstream):
		h.logger.Warn("rerun upstream failure", "version_id", id, "error", err)
		payload := rerunPayload{Status: string(run.StatusError)}
		if result != nil && result.Run != nil {
			payload.RunID = result.Run.ID.String()
			payload.Error = result.Run.Error
		}
		writeJSON(w, http.StatusBadGateway, payload)
		return
	case err != nil:
		h.logger.Error("rerun failed", "version_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "rerun failed")
		return
	}

	writeJSON(w, http.StatusOK, rerunPayload{
		RunID:  result.Run.ID.String(),
		Status: string(result.Run.Status),
		Output: result.Output,
	})
}

func toArtifactPayload(art *artifact.Artifact) artifactPayload {
	versions := make([]versionPayload, 0, len(art.Versions))
	for _, v := range art.Versions {
		versions = append(versions, toVersionPayload(v))
	}
	return artifactPayload{
		ID:        art.ID.String(),
		ProjectID: art.ProjectID.String(),
		Name:      art.Name,
		Type:      art.Type,
		CreatedAt: art.CreatedAt,
		Versions:  versions,
	}
}

func toVersionPayload(v *artifact.Version) versionPayload {
	params := v.Params
	if params == nil {
		params = map[string]any{}
	}
	return versionPayload{
		ID:            v.ID.String(),
		VersionNumber: v.Number,
		Content:       v.Content,
		ModelName:     v.Model,
		Params:        params,
		RunID:         v.RunID.String(),
		CreatedAt:     v.CreatedAt,
	}
}
