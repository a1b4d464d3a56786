package artifact

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/atelier-dev/atelier/internal/backend"
	"github.com/atelier-dev/atelier/internal/run"
)

// rerunFallbackPrompt replaces a version's content when it is empty.
const rerunFallbackPrompt = "Re-run context missing"

// RerunResult is the outcome of re-invoking the backend for a version.
type RerunResult struct {
	Run    *run.Run
	Output string
}

// Rerunner re-executes historical versions with their pinned model and
// parameters. It is a reproducibility probe: the original version is
// never mutated, and no new version is appended automatically —
// promoting a rerun output into history is a separate, caller-initiated
// AppendVersion.
type Rerunner struct {
	store   *Store
	runs    *run.Tracker
	backend backend.Client
}

// NewRerunner wires the store, run tracker, and model backend.
func NewRerunner(store *Store, runs *run.Tracker, client backend.Client) *Rerunner {
	return &Rerunner{store: store, runs: runs, backend: client}
}

// Rerun looks up the version, opens a new run scoped to the owning
// artifact's project, and invokes the backend once (non-streaming)
// with the version's content as the sole prompt and its pinned params.
//
// Failure semantics:
//   - unknown version: ErrNotFound, no run is created
//   - empty pinned model: ErrMissingModel, no run is created
//   - backend failure: the run is marked error (never left running) and
//     the error wraps backend.ErrUpstream; the partial result carries
//     the errored run
func (r *Rerunner) Rerun(ctx context.Context, versionID uuid.UUID) (*RerunResult, error) {
	version, err := r.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if version.Model == "" {
		return nil, ErrMissingModel
	}

	parent, err := r.store.Get(ctx, version.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("resolving artifact for version %s: %w", versionID, err)
	}

	rn, err := r.runs.Open(ctx, parent.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := r.runs.Transition(ctx, rn.ID, run.StatusRunning); err != nil {
		return nil, err
	}
	rn.Status = run.StatusRunning

	prompt := version.Content
	if prompt == "" {
		prompt = rerunFallbackPrompt
	}

	output, backendErr := r.backend.Complete(ctx, backend.Request{
		Model:    version.Model,
		Messages: []backend.Message{{Role: backend.RoleUser, Content: prompt}},
		Params:   version.Params,
	})
	if backendErr != nil {
		if failErr := r.runs.Fail(ctx, rn.ID, backendErr.Error()); failErr != nil {
			return nil, fmt.Errorf("marking run %s failed after %v: %w", rn.ID, backendErr, failErr)
		}
		rn.Status = run.StatusError
		rn.Error = backendErr.Error()
		return &RerunResult{Run: rn}, backendErr
	}

	if err := r.runs.Done(ctx, rn.ID, nil); err != nil {
		return nil, err
	}
	rn.Status = run.StatusDone

	return &RerunResult{Run: rn, Output: output}, nil
}
