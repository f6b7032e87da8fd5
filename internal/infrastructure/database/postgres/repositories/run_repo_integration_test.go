//go:build integration

package repositories_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/domain/fragment"
	"github.com/molforge/fragelab/internal/domain/run"
	"github.com/molforge/fragelab/internal/infrastructure/database/postgres"
	"github.com/molforge/fragelab/internal/infrastructure/database/postgres/repositories"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
)

func setupRepo(t *testing.T) *repositories.RunRepository {
	t.Helper()

	dbURL := os.Getenv("FRAGELAB_TEST_DB_URL")
	if dbURL == "" {
		t.Skip("FRAGELAB_TEST_DB_URL not set; skipping integration test")
	}

	require.NoError(t, postgres.ResetDatabase(dbURL))

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return repositories.NewRunRepository(pool, logging.NewNopLogger())
}

func TestRunRepository_Lifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	r := run.NewRun(fragment.ElaborationKey{Mode: fragment.ModeGrow, Names: []string{"F1"}})
	require.NoError(t, repo.Create(ctx, r))

	got, err := repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusPending, got.Status)
	assert.Equal(t, "F1", got.Key)

	require.NoError(t, r.Start())
	require.NoError(t, repo.Update(ctx, r))
	require.NoError(t, r.Complete(run.Counts{Loaded: 4, Kept: 3, Posed: 2, Skipped: 1}, 2, 0.9))
	require.NoError(t, repo.Update(ctx, r))

	got, err = repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.BestOrdinal)
	assert.InDelta(t, 0.9, got.BestScore, 1e-9)
	require.NotNil(t, got.CompletedAt)
}

func TestRunRepository_GetByID_NotFound(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.GetByID(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRunNotFound))
}

func TestRunRepository_Update_NotFound(t *testing.T) {
	repo := setupRepo(t)

	r := run.NewRun(fragment.ElaborationKey{Mode: fragment.ModeGrow, Names: []string{"F1"}})
	err := repo.Update(context.Background(), r)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRunNotFound))
}

func TestRunRepository_OutcomesRoundTrip(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	r := run.NewRun(fragment.ElaborationKey{Mode: fragment.ModeLink, Names: []string{"F1", "F2"}})
	require.NoError(t, repo.Create(ctx, r))

	outcomes := []run.CandidateOutcome{
		{
			RunID: r.ID, Ordinal: 0, Name: "cand-a", Provenance: "F1-F2",
			Descriptors:    map[string]float64{"mol_weight": 288.3},
			PassedDruglike: true, PassedPAINS: true,
			Pose: &run.PoseScore{Feature: 0.5, Protrusion: 0.2, Combined: 0.65},
		},
		{
			RunID: r.ID, Ordinal: 1, Name: "heavy",
			PassedDruglike: false, DruglikeViolations: []string{"mol_weight", "clogp"},
			PassedPAINS: true,
		},
	}
	require.NoError(t, repo.SaveOutcomes(ctx, outcomes))

	got, err := repo.GetOutcomes(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cand-a", got[0].Name)
	require.NotNil(t, got[0].Pose)
	assert.InDelta(t, 0.65, got[0].Pose.Combined, 1e-9)
	assert.True(t, got[1].Filtered())
	assert.Nil(t, got[1].Pose)
}

func TestRunRepository_List_NewestFirst(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := run.NewRun(fragment.ElaborationKey{Mode: fragment.ModeGrow, Names: []string{"F1"}})
		require.NoError(t, repo.Create(ctx, r))
	}

	runs, total, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, runs, 2)
	assert.False(t, runs[0].CreatedAt.Before(runs[1].CreatedAt))
}
