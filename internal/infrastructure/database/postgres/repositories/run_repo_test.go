package repositories

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/domain/fragment"
	"github.com/molforge/fragelab/internal/domain/run"
	"github.com/molforge/fragelab/pkg/errors"
)

// fakeRow replays prepared column values through Scan, converting to the
// destination types the way pgx would.
type fakeRow struct {
	values []interface{}
	err    error
}

func (f *fakeRow) Scan(dest ...interface{}) error {
	if f.err != nil {
		return f.err
	}
	if len(dest) != len(f.values) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(f.values), len(dest))
	}
	for i, v := range f.values {
		if v == nil {
			continue
		}
		dv := reflect.ValueOf(dest[i]).Elem()
		sv := reflect.ValueOf(v)
		if !sv.Type().ConvertibleTo(dv.Type()) {
			return fmt.Errorf("scan: column %d: cannot assign %T", i, v)
		}
		dv.Set(sv.Convert(dv.Type()))
	}
	return nil
}

func completedRun(t *testing.T) *run.Run {
	t.Helper()
	key := fragment.ElaborationKey{Mode: fragment.ModeLink, Names: []string{"F1", "F2"}}
	r := run.NewRun(key)
	require.NoError(t, r.Start())
	require.NoError(t, r.Complete(run.Counts{Loaded: 12, Kept: 9, Posed: 8, Skipped: 1}, 3, 0.87))
	return r
}

// The INSERT argument order and the SELECT scan order must stay in lockstep;
// this round-trips a run through both.
func TestRunArgs_ScanRun_RoundTrip(t *testing.T) {
	want := completedRun(t)

	got, err := scanRun(&fakeRow{values: runArgs(want)})
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Mode, got.Mode)
	assert.Equal(t, "F1-F2", got.Key)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Counts, got.Counts)
	assert.Equal(t, 3, got.BestOrdinal)
	assert.InDelta(t, 0.87, got.BestScore, 1e-9)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, want.StartedAt.Equal(*got.StartedAt))
}

func TestRunArgs_PendingRunHasNilTimestamps(t *testing.T) {
	r := run.NewRun(fragment.ElaborationKey{Mode: fragment.ModeGrow, Names: []string{"F1"}})

	got, err := scanRun(&fakeRow{values: runArgs(r)})
	require.NoError(t, err)
	assert.Equal(t, run.StatusPending, got.Status)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, -1, got.BestOrdinal)
}

func TestScanRun_PropagatesError(t *testing.T) {
	_, err := scanRun(&fakeRow{err: fmt.Errorf("boom")})
	require.Error(t, err)
}

func TestOutcomeRows_ScanOutcome_RoundTrip(t *testing.T) {
	r := completedRun(t)
	outcomes := []run.CandidateOutcome{
		{
			RunID:       r.ID,
			Ordinal:     0,
			Name:        "cand-a",
			Provenance:  "F1-F2",
			Descriptors: map[string]float64{"mol_weight": 311.4, "clogp": 2.1},
			PassedDruglike: true,
			PassedPAINS:    true,
			Pose:           &run.PoseScore{Feature: 0.62, Protrusion: 0.18, Combined: 0.72},
		},
		{
			RunID:              r.ID,
			Ordinal:            1,
			Name:               "cand-b",
			PassedDruglike:     false,
			DruglikeViolations: []string{"mol_weight", "clogp"},
			PassedPAINS:        true,
		},
		{
			RunID:          r.ID,
			Ordinal:        2,
			Name:           "cand-c",
			Provenance:     "F1-F2",
			PassedDruglike: true,
			PassedPAINS:    true,
			SkipReason:     "embedding did not converge",
		},
	}

	rows, err := outcomeRows(outcomes)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for i, row := range rows {
		require.Len(t, row, len(outcomeColumns), "row %d", i)
		got, err := scanOutcome(&fakeRow{values: row})
		require.NoError(t, err, "row %d", i)

		want := outcomes[i]
		assert.Equal(t, want.RunID, got.RunID)
		assert.Equal(t, want.Ordinal, got.Ordinal)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Provenance, got.Provenance)
		assert.Equal(t, want.PassedDruglike, got.PassedDruglike)
		assert.Equal(t, want.DruglikeViolations, got.DruglikeViolations)
		assert.Equal(t, want.SkipReason, got.SkipReason)
		if want.Pose == nil {
			assert.Nil(t, got.Pose, "row %d", i)
		} else {
			require.NotNil(t, got.Pose, "row %d", i)
			assert.InDelta(t, want.Pose.Combined, got.Pose.Combined, 1e-9)
			assert.InDelta(t, want.Pose.Feature, got.Pose.Feature, 1e-9)
			assert.InDelta(t, want.Pose.Protrusion, got.Pose.Protrusion, 1e-9)
		}
		if want.Descriptors == nil {
			assert.Nil(t, got.Descriptors)
		} else {
			assert.InDelta(t, want.Descriptors["mol_weight"], got.Descriptors["mol_weight"], 1e-9)
		}
	}
}

func TestOutcomeRows_EmptyInput(t *testing.T) {
	rows, err := outcomeRows(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScanOutcome_FilteredVerdictSurvives(t *testing.T) {
	rows, err := outcomeRows([]run.CandidateOutcome{{
		RunID:              "r1",
		Ordinal:            4,
		Name:               "heavy",
		PassedDruglike:     false,
		DruglikeViolations: []string{"mol_weight"},
		PassedPAINS:        false,
		PAINSHits:          []string{"quinone_A"},
	}})
	require.NoError(t, err)

	got, err := scanOutcome(&fakeRow{values: rows[0]})
	require.NoError(t, err)
	assert.True(t, got.Filtered())
	assert.Equal(t, []string{"quinone_A"}, got.PAINSHits)
	assert.Nil(t, got.Pose)
}

func TestNewRunRepository_ImplementsDomainContract(t *testing.T) {
	var _ run.Repository = (*RunRepository)(nil)
	// Error helpers used by callers must recognize the repo's not-found code.
	err := errors.Newf(errors.ErrCodeRunNotFound, "run %s not found", "abc")
	assert.True(t, errors.IsNotFound(err))
}
