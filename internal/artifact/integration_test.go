//go:build integration

package artifact

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-dev/atelier/internal/postgres"
	"github.com/atelier-dev/atelier/internal/testutil"
)

// setupIntegrationTest creates a Store backed by a real PostgreSQL
// container so the transactional append path (row lock + MAX+1) is the
// one under test.
func setupIntegrationTest(t *testing.T) *Store {
	t.Helper()
	dbContainer := testutil.SetupTestDB(t)
	return New(postgres.New(dbContainer.Pool), dbContainer.Pool, testutil.DiscardLogger())
}

func TestStore_AppendVersion_Integration(t *testing.T) {
	store := setupIntegrationTest(t)
	ctx := context.Background()

	a, err := store.Create(ctx, uuid.New(), "Integration", "code")
	require.NoError(t, err)

	v1, err := store.AppendVersion(ctx, a.ID, "first", "gemini-2.5-pro", nil, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Number)

	v2, err := store.AppendVersion(ctx, a.ID, "second", "gemini-2.5-pro", map[string]any{"temperature": 0.3}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)

	// Read-your-writes: a Get immediately after reflects both appends.
	full, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, full.Versions, 2)
	assert.Equal(t, "first", full.Versions[0].Content)
	assert.Equal(t, "second", full.Versions[1].Content)
	assert.Equal(t, 0.3, full.Versions[1].Params["temperature"])
}

// TestStore_ConcurrentAppendVersion verifies that simultaneous appends
// to one artifact serialize on the row lock and claim distinct,
// gapless version numbers.
func TestStore_ConcurrentAppendVersion(t *testing.T) {
	store := setupIntegrationTest(t)
	ctx := context.Background()

	a, err := store.Create(ctx, uuid.New(), "Race-Append-Test", "code")
	require.NoError(t, err)

	_, err = store.AppendVersion(ctx, a.ID, "seed", "test-model", nil, uuid.New())
	require.NoError(t, err)

	const numGoroutines = 10
	var wg sync.WaitGroup
	errors := make(chan error, numGoroutines)
	numbers := make(chan int, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			content := fmt.Sprintf("concurrent-%d", id)
			v, err := store.AppendVersion(ctx, a.ID, content, "test-model", nil, uuid.New())
			if err != nil {
				errors <- fmt.Errorf("goroutine %d: %w", id, err)
				return
			}
			numbers <- v.Number
		}(i)
	}

	wg.Wait()
	close(errors)
	close(numbers)

	for err := range errors {
		t.Errorf("concurrent append error: %v", err)
	}

	// Every append claimed its own number and the sequence has no gaps.
	var claimed []int
	for n := range numbers {
		claimed = append(claimed, n)
	}
	require.Len(t, claimed, numGoroutines)
	sort.Ints(claimed)
	for i, n := range claimed {
		assert.Equal(t, i+2, n, "version numbers must be gapless after the seed")
	}

	full, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, full.Versions, numGoroutines+1)
	for i, v := range full.Versions {
		assert.Equal(t, i+1, v.Number)
	}
}

// TestStore_ConcurrentAppendDistinctArtifacts verifies that appends on
// different artifacts do not contend on each other's locks.
func TestStore_ConcurrentAppendDistinctArtifacts(t *testing.T) {
	store := setupIntegrationTest(t)
	ctx := context.Background()

	const numArtifacts = 5
	artifacts := make([]*Artifact, numArtifacts)
	for i := range artifacts {
		a, err := store.Create(ctx, uuid.New(), fmt.Sprintf("Parallel-%d", i), "code")
		require.NoError(t, err)
		artifacts[i] = a
	}

	var wg sync.WaitGroup
	errors := make(chan error, numArtifacts)

	for _, a := range artifacts {
		wg.Add(1)
		go func(artifactID uuid.UUID) {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				if _, err := store.AppendVersion(ctx, artifactID, "content", "test-model", nil, uuid.New()); err != nil {
					errors <- err
					return
				}
			}
		}(a.ID)
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Errorf("parallel append error: %v", err)
	}

	for _, a := range artifacts {
		full, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, full.Versions, 3)
		assert.Equal(t, 3, full.Versions[2].Number)
	}
}
