package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/atelier-dev/atelier/internal/style"
)

// styleHandler serves the style preset catalog and the per-conversation
// active style selection.
type styleHandler struct {
	resolver *style.Resolver
	logger   *slog.Logger
}

// presetPayload is the wire shape of one style preset.
type presetPayload struct {
	Slug            string         `json:"slug"`
	Name            string         `json:"name"`
	ToneDescription string         `json:"toneDescription"`
	Params          map[string]any `json:"params"`
}

// styleListEnvelope wraps the preset catalog response.
type styleListEnvelope struct {
	Items []presetPayload `json:"items"`
}

// list handles GET /api/v1/styles: all presets ordered by display name.
func (h *styleHandler) list(w http.ResponseWriter, r *http.Request) {
	presets, err := h.resolver.List(r.Context())
	if err != nil {
		h.logger.Error("listing style presets", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list styles")
		return
	}

	items := make([]presetPayload, 0, len(presets))
	for _, p := range presets {
		items = append(items, toPresetPayload(p))
	}
	writeJSON(w, http.StatusOK, styleListEnvelope{Items: items})
}

// setStyleRequest is the body of POST /api/v1/conversations/{id}/style.
type setStyleRequest struct {
	StyleSlug string `json:"styleSlug"`
}

// setStyle handles POST /api/v1/conversations/{id}/style: pins the
// conversation's active preset, creating the conversation on first use.
func (h *styleHandler) setStyle(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "conversation id is required")
		return
	}

	var req setStyleRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.StyleSlug == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "styleSlug is required")
		return
	}

	if err := h.resolver.SetActive(r.Context(), conversationID, req.StyleSlug); err != nil {
		if errors.Is(err, style.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown style preset")
			return
		}
		h.logger.Error("setting conversation style",
			"conversation_id", conversationID,
			"style", req.StyleSlug,
			"error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to set style")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"conversationId": conversationID,
		"styleSlug":      req.StyleSlug,
	})
}

func toPresetPayload(p *style.Preset) presetPayload {
	params := p.Params
	if params == nil {
		params = map[string]any{}
	}
	return presetPayload{
		Slug:            p.Slug,
		Name:            p.Name,
		ToneDescription: p.Tone,
		Params:          params,
	}
}
