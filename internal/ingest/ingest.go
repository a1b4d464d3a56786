// Package ingest consumes a token-streamed model response for one
// in-flight exchange and promotes artifact-worthy output into the
// version store.
//
// The controller is a two-stage pipeline: a producer stage accumulates
// deltas in arrival order into a single growing buffer, and only the
// finalized buffer is handed to the pure extraction policy. Extraction
// never sees partial content, and a stream that fails persists nothing.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/atelier-dev/atelier/internal/artifact"
	"github.com/atelier-dev/atelier/internal/backend"
	"github.com/atelier-dev/atelier/internal/extract"
	"github.com/atelier-dev/atelier/internal/postgres"
	"github.com/atelier-dev/atelier/internal/run"
	"github.com/atelier-dev/atelier/internal/style"
)

// Sentinel errors for request validation.
var (
	// ErrNoMessages is returned when the message list is empty.
	ErrNoMessages = errors.New("message list is empty")

	// ErrNotUserTurn is returned when the newest message is not a user turn.
	ErrNotUserTurn = errors.New("message list must end with a user turn")

	// ErrMissingModel is returned when the model identifier is empty.
	ErrMissingModel = errors.New("model identifier is empty")
)

// Request describes one ingestion exchange.
type Request struct {
	ConversationID string
	ProjectID      uuid.UUID // Zero = assign a fresh project on first use
	Model          string
	Messages       []backend.Message
	Params         map[string]any
	StyleSlug      string // Override; empty = conversation's active preset
}

// Final is the outcome of a completed ingestion.
type Final struct {
	RunID      uuid.UUID
	Content    string
	ArtifactID *uuid.UUID // Set when extraction promoted the content
	VersionID  *uuid.UUID
}

// StreamValue is one element of the ingestion stream. Non-final values
// carry the newest delta plus the accumulated buffer so far (for live
// display); the final value carries Done plus the outcome.
type StreamValue struct {
	Delta   string
	Content string
	Done    bool
	Final   Final
}

// Querier defines the conversation persistence the controller needs.
type Querier interface {
	EnsureConversation(ctx context.Context, arg postgres.EnsureConversationParams) (postgres.Conversation, error)
}

// Controller orchestrates one ingestion: open a run, stream deltas,
// then evaluate the finalized buffer for artifact promotion.
type Controller struct {
	querier   Querier
	runs      *run.Tracker
	artifacts *artifact.Store
	styles    *style.Resolver
	backend   backend.Client
	policy    extract.Policy
	logger    *slog.Logger
}

// Config wires a Controller.
type Config struct {
	Querier   Querier
	Runs      *run.Tracker
	Artifacts *artifact.Store
	Styles    *style.Resolver
	Backend   backend.Client
	Policy    extract.Policy
	Logger    *slog.Logger
}

// NewController creates a Controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Querier == nil {
		return nil, errors.New("querier is required")
	}
	if cfg.Runs == nil {
		return nil, errors.New("run tracker is required")
	}
	if cfg.Artifacts == nil {
		return nil, errors.New("artifact store is required")
	}
	if cfg.Styles == nil {
		return nil, errors.New("style resolver is required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("backend client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		querier:   cfg.Querier,
		runs:      cfg.Runs,
		artifacts: cfg.Artifacts,
		styles:    cfg.Styles,
		backend:   cfg.Backend,
		policy:    cfg.Policy,
		logger:    logger,
	}, nil
}

// Stream runs one ingestion and returns a lazy, finite, non-restartable
// sequence of partial values terminated by a Done value or an error.
//
// Deltas are applied in arrival order; no reordering, no coalescing.
// On any backend error the partially accumulated message is discarded
// and the run is marked error — partial artifacts are never created.
// Abandoning the sequence before completion releases local resources
// and leaves the run running for an out-of-band timeout authority.
func (c *Controller) Stream(ctx context.Context, req Request) iter.Seq2[StreamValue, error] {
	return func(yield func(StreamValue, error) bool) {
		if err := validate(req); err != nil {
			yield(StreamValue{}, err)
			return
		}

		params, err := c.resolveParams(ctx, req)
		if err != nil {
			yield(StreamValue{}, err)
			return
		}

		projectID := req.ProjectID
		if projectID == uuid.Nil {
			projectID = uuid.New()
		}
		conv, err := c.querier.EnsureConversation(ctx, postgres.EnsureConversationParams{
			ID:        req.ConversationID,
			ProjectID: pgtype.UUID{Bytes: projectID, Valid: true},
		})
		if err != nil {
			yield(StreamValue{}, fmt.Errorf("ensuring conversation %s: %w", req.ConversationID, err))
			return
		}
		if conv.ProjectID.Valid {
			projectID = conv.ProjectID.Bytes
		}

		rn, err := c.runs.Open(ctx, projectID)
		if err != nil {
			yield(StreamValue{}, err)
			return
		}
		if err := c.runs.Transition(ctx, rn.ID, run.StatusRunning); err != nil {
			yield(StreamValue{}, err)
			return
		}

		var buf strings.Builder
		for delta, streamErr := range c.backend.Stream(ctx, backend.Request{
			Model:    req.Model,
			Messages: req.Messages,
			Params:   params,
		}) {
			if streamErr != nil {
				if errors.Is(streamErr, backend.ErrDecode) {
					// Malformed frame: non-fatal, skip and keep consuming.
					c.logger.Debug("skipping malformed chunk", "run_id", rn.ID, "error", streamErr)
					continue
				}
				// Fatal: discard the partial buffer, nothing is persisted.
				c.fail(ctx, rn.ID, streamErr)
				yield(StreamValue{}, streamErr)
				return
			}

			buf.WriteString(delta)
			if !yield(StreamValue{Delta: delta, Content: buf.String()}, nil) {
				// Consumer abandoned the stream. The run stays running;
				// an external timeout policy will eventually fail it.
				c.logger.Debug("ingestion abandoned by consumer", "run_id", rn.ID)
				return
			}
		}

		final := Final{RunID: rn.ID, Content: buf.String()}

		if draft, ok := c.policy.Evaluate(final.Content); ok {
			art, version, err := c.promote(ctx, projectID, draft, req.Model, params, rn.ID)
			if err != nil {
				c.fail(ctx, rn.ID, err)
				yield(StreamValue{}, err)
				return
			}
			final.ArtifactID = &art.ID
			final.VersionID = &version.ID
		}

		if err := c.runs.Done(ctx, rn.ID, final.ArtifactID); err != nil {
			yield(StreamValue{}, err)
			return
		}

		yield(StreamValue{Done: true, Final: final, Content: final.Content}, nil)
	}
}

// promote captures the finalized content as a new artifact version
// referencing the run that produced it.
func (c *Controller) promote(ctx context.Context, projectID uuid.UUID, draft extract.Draft, model string, params map[string]any, runID uuid.UUID) (*artifact.Artifact, *artifact.Version, error) {
	art, err := c.artifacts.Create(ctx, projectID, draft.Name, draft.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("promoting content to artifact: %w", err)
	}

	version, err := c.artifacts.AppendVersion(ctx, art.ID, draft.Content, model, params, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("appending promoted version: %w", err)
	}

	c.logger.Info("content promoted to artifact",
		"artifact_id", art.ID,
		"version", version.Number,
		"run_id", runID)
	return art, version, nil
}

// resolveParams folds the active style preset into the request's
// parameter bag. Request params win on key conflict.
func (c *Controller) resolveParams(ctx context.Context, req Request) (map[string]any, error) {
	var preset *style.Preset
	var err error
	if req.StyleSlug != "" {
		preset, err = c.styles.Get(ctx, req.StyleSlug)
	} else {
		preset, err = c.styles.Active(ctx, req.ConversationID)
	}
	if err != nil {
		// No preset configured at all is fine; merge nothing.
		if errors.Is(err, style.ErrNotFound) && req.StyleSlug == "" {
			preset = nil
		} else {
			return nil, err
		}
	}

	merged := make(map[string]any)
	if preset != nil {
		for k, v := range preset.Params {
			merged[k] = v
		}
	}
	for k, v := range req.Params {
		merged[k] = v
	}
	return merged, nil
}

func (c *Controller) fail(ctx context.Context, runID uuid.UUID, cause error) {
	if err := c.runs.Fail(ctx, runID, cause.Error()); err != nil {
		c.logger.Error("marking run failed", "run_id", runID, "error", err)
	}
}

func validate(req Request) error {
	if len(req.Messages) == 0 {
		return ErrNoMessages
	}
	if req.Messages[len(req.Messages)-1].Role != backend.RoleUser {
		return ErrNotUserTurn
	}
	if strings.TrimSpace(req.Model) == "" {
		return ErrMissingModel
	}
	return nil
}
