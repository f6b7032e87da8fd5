// Package memory holds in-process implementations of the run persistence
// ports. The CLI uses them for single-shot pipeline invocations where a
// database would be pure overhead; they mirror the PostgreSQL repository's
// semantics (newest-first listing, not-found on unknown updates) so the
// orchestrator behaves identically over either.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/molforge/fragelab/internal/domain/run"
	"github.com/molforge/fragelab/pkg/errors"
	"github.com/molforge/fragelab/pkg/types/common"
)

// RunRepository is an in-memory run.Repository. Safe for concurrent use.
type RunRepository struct {
	mu       sync.RWMutex
	runs     map[common.ID]*run.Run
	outcomes map[common.ID][]run.CandidateOutcome
}

// NewRunRepository creates an empty repository.
func NewRunRepository() *RunRepository {
	return &RunRepository{
		runs:     make(map[common.ID]*run.Run),
		outcomes: make(map[common.ID][]run.CandidateOutcome),
	}
}

// Create stores a freshly created run.
func (r *RunRepository) Create(_ context.Context, ru *run.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[ru.ID]; exists {
		return errors.Newf(errors.ErrCodeConflict, "run %s already exists", ru.ID)
	}
	r.runs[ru.ID] = copyRun(ru)
	return nil
}

// Update replaces the stored run state. Unknown runs are an error: runs are
// created before any transition.
func (r *RunRepository) Update(_ context.Context, ru *run.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[ru.ID]; !exists {
		return errors.Newf(errors.ErrCodeRunNotFound, "run %s not found", ru.ID)
	}
	r.runs[ru.ID] = copyRun(ru)
	return nil
}

// GetByID loads one run.
func (r *RunRepository) GetByID(_ context.Context, id common.ID) (*run.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ru, ok := r.runs[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeRunNotFound, "run %s not found", id)
	}
	return copyRun(ru), nil
}

// List pages through runs, newest first, and returns the total count.
func (r *RunRepository) List(_ context.Context, limit, offset int) ([]*run.Run, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*run.Run, 0, len(r.runs))
	for _, ru := range r.runs {
		all = append(all, ru)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]*run.Run, len(all))
	for i, ru := range all {
		out[i] = copyRun(ru)
	}
	return out, total, nil
}

// SaveOutcomes stores the per-candidate rows of a completed run.
func (r *RunRepository) SaveOutcomes(_ context.Context, outcomes []run.CandidateOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range outcomes {
		r.outcomes[o.RunID] = append(r.outcomes[o.RunID], o)
	}
	return nil
}

// GetOutcomes loads a run's rows in candidate order.
func (r *RunRepository) GetOutcomes(_ context.Context, runID common.ID) ([]run.CandidateOutcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.outcomes[runID]
	out := make([]run.CandidateOutcome, len(stored))
	copy(out, stored)
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func copyRun(ru *run.Run) *run.Run {
	c := *ru
	if ru.StartedAt != nil {
		t := *ru.StartedAt
		c.StartedAt = &t
	}
	if ru.CompletedAt != nil {
		t := *ru.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// PoseBuffer is an in-memory run.PoseStore keeping rendered poses by
// "<runID>/<name>". The CLI reads them back to write local output files.
type PoseBuffer struct {
	mu    sync.RWMutex
	poses map[string][]byte
}

// NewPoseBuffer creates an empty pose store.
func NewPoseBuffer() *PoseBuffer {
	return &PoseBuffer{poses: make(map[string][]byte)}
}

// SavePose stores one candidate's rendered SDF.
func (p *PoseBuffer) SavePose(_ context.Context, runID common.ID, name string, sdf []byte) (string, error) {
	ref := string(runID) + "/" + name + ".sdf"
	data := make([]byte, len(sdf))
	copy(data, sdf)
	p.mu.Lock()
	p.poses[ref] = data
	p.mu.Unlock()
	return ref, nil
}

// Pose returns one stored pose by the ref SavePose returned.
func (p *PoseBuffer) Pose(ref string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.poses[ref]
	return data, ok
}

// Refs lists stored pose refs in insertion-independent sorted order.
func (p *PoseBuffer) Refs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	refs := make([]string, 0, len(p.poses))
	for ref := range p.poses {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
