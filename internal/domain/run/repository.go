package run

import (
	"context"

	"github.com/molforge/fragelab/pkg/types/common"
)

// Repository is the persistence contract for runs and their per-candidate
// outcomes. Outcome rows are written once, in bulk, when the run completes.
type Repository interface {
	Create(ctx context.Context, r *Run) error
	Update(ctx context.Context, r *Run) error
	GetByID(ctx context.Context, id common.ID) (*Run, error)
	List(ctx context.Context, limit, offset int) ([]*Run, int64, error)

	SaveOutcomes(ctx context.Context, outcomes []CandidateOutcome) error
	GetOutcomes(ctx context.Context, runID common.ID) ([]CandidateOutcome, error)
}

// PoseStore persists best-pose structures produced by completed runs.
type PoseStore interface {
	// SavePose stores the rendered SDF for one posed candidate and returns
	// the stored object's location.
	SavePose(ctx context.Context, runID common.ID, name string, sdf []byte) (string, error)
}
