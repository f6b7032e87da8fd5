package runs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/application/elaboration"
	appposing "github.com/molforge/fragelab/internal/application/posing"
	appscreening "github.com/molforge/fragelab/internal/application/screening"
	"github.com/molforge/fragelab/internal/chem/fingerprint"
	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/internal/chem/sdf"
	"github.com/molforge/fragelab/internal/domain/fragment"
	domainPosing "github.com/molforge/fragelab/internal/domain/posing"
	domainScreening "github.com/molforge/fragelab/internal/domain/screening"
	"github.com/molforge/fragelab/internal/domain/run"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
	"github.com/molforge/fragelab/pkg/types/common"
)

// ── fakes ────────────────────────────────────────────────────────────────────

// memRepo is an in-memory run.Repository recording status transitions.
type memRepo struct {
	mu       sync.Mutex
	runs     map[common.ID]*run.Run
	outcomes []run.CandidateOutcome
	updates  []run.Status

	lastLimit  int
	lastOffset int
}

func newMemRepo() *memRepo {
	return &memRepo{runs: map[common.ID]*run.Run{}}
}

func (r *memRepo) Create(_ context.Context, ru *run.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[ru.ID] = ru
	return nil
}

func (r *memRepo) Update(_ context.Context, ru *run.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[ru.ID]; !ok {
		return errors.Newf(errors.ErrCodeRunNotFound, "run %s not found", ru.ID)
	}
	r.runs[ru.ID] = ru
	r.updates = append(r.updates, ru.Status)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id common.ID) (*run.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ru, ok := r.runs[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeRunNotFound, "run %s not found", id)
	}
	return ru, nil
}

func (r *memRepo) List(_ context.Context, limit, offset int) ([]*run.Run, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit, r.lastOffset = limit, offset
	out := make([]*run.Run, 0, len(r.runs))
	for _, ru := range r.runs {
		out = append(out, ru)
	}
	return out, int64(len(out)), nil
}

func (r *memRepo) SaveOutcomes(_ context.Context, outcomes []run.CandidateOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcomes...)
	return nil
}

func (r *memRepo) GetOutcomes(_ context.Context, runID common.ID) ([]run.CandidateOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []run.CandidateOutcome
	for _, o := range r.outcomes {
		if o.RunID == runID {
			out = append(out, o)
		}
	}
	return out, nil
}

// memPoses records stored pose documents.
type memPoses struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (p *memPoses) SavePose(_ context.Context, runID common.ID, name string, data []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saved == nil {
		p.saved = map[string][]byte{}
	}
	loc := fmt.Sprintf("poses/%s/%s.sdf", runID, name)
	p.saved[loc] = data
	return loc, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	entries []SimilarityEntry
	fail    bool
}

func (f *fakeIndex) InsertCandidates(_ context.Context, entries []SimilarityEntry) error {
	if f.fail {
		return errors.New(errors.ErrCodeVectorIndex, "index down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
	return nil
}

type fakeLineage struct {
	mu      sync.Mutex
	records []LineageRecord
	fail    bool
}

func (f *fakeLineage) RecordRun(_ context.Context, rec LineageRecord) error {
	if f.fail {
		return errors.New(errors.ErrCodeGraphStore, "graph down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []Job
	fail bool
}

func (f *fakePublisher) PublishRun(_ context.Context, job Job) error {
	if f.fail {
		return errors.New(errors.ErrCodeMessaging, "broker down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

// fakeSource serves elaboration sets from memory, keyed by filename.
type fakeSource struct {
	sets map[string]string
}

func (f *fakeSource) Open(_ context.Context, key fragment.ElaborationKey) (io.ReadCloser, error) {
	data, ok := f.sets[key.Filename()]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeElaborationNotFound,
			"no elaboration set for %s", key.Filename())
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

// ── toolkit fakes ────────────────────────────────────────────────────────────

type fakeEmbedder struct {
	failFor map[string]error
}

func (f *fakeEmbedder) Ensemble(m *mol.Mol, count int, _ int64) (*mol.Mol, error) {
	if err := f.failFor[m.Name]; err != nil {
		return nil, err
	}
	out := m.Copy()
	out.ClearConformers()
	for i := 0; i < count; i++ {
		out.AddConformer(make([]geom.Vec3, len(out.Atoms)))
	}
	return out, nil
}

func (f *fakeEmbedder) Constrained(cand, _ *mol.Mol, _ int, _ int64) (*mol.Mol, []int, error) {
	if err := f.failFor[cand.Name]; err != nil {
		return nil, nil, err
	}
	out := cand.Copy()
	out.ClearConformers()
	out.AddConformer(make([]geom.Vec3, len(out.Atoms)))
	return out, []int{0}, nil
}

type fakeAligner struct{}

func (fakeAligner) Align(*mol.Mol, int, *mol.Mol, int) error { return nil }

// fakeScorer scores by candidate name; unknown candidates score 0.5.
type fakeScorer struct {
	scores map[string]float64
}

func (f *fakeScorer) Score(probe *mol.Mol, _ int, _ *mol.Mol, _ int) (domainPosing.Score, error) {
	v, ok := f.scores[probe.Name]
	if !ok {
		v = 0.5
	}
	return domainPosing.Score{Feature: v, Protrusion: 1 - v, Combined: v}, nil
}

// ── fixtures ─────────────────────────────────────────────────────────────────

func testLibrary(t *testing.T, names ...string) *fragment.Library {
	t.Helper()
	mols := make([]*mol.Mol, len(names))
	for i, name := range names {
		m := mol.NewMol(name)
		m.AddAtom(mol.Atom{Element: "C"})
		_, err := m.AddConformer([]geom.Vec3{{float64(i), 0, 0}})
		require.NoError(t, err)
		m.SetTag(fragment.NameTag, name)
		mols[i] = m
	}
	var sb strings.Builder
	require.NoError(t, sdf.WriteAll(&sb, mols))
	lib, err := fragment.LoadLibrary(strings.NewReader(sb.String()))
	require.NoError(t, err)
	return lib
}

func ethanolRecord(t *testing.T, title string) *mol.Mol {
	t.Helper()
	m := mol.NewMol(title)
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "O"})
	require.NoError(t, m.AddBond(0, 1, mol.Single))
	require.NoError(t, m.AddBond(1, 2, mol.Single))
	_, err := m.AddConformer([]geom.Vec3{{0, 0, 0}, {1.5, 0, 0}, {2.1, 1.2, 0}})
	require.NoError(t, err)
	m.SetTag(fragment.SingleTag, "F1")
	m.Perceive()
	return m
}

// tetracontaneRecord violates the weight and logP limits, so screening drops it.
func tetracontaneRecord(t *testing.T, title string) *mol.Mol {
	t.Helper()
	m := mol.NewMol(title)
	coords := make([]geom.Vec3, 40)
	for i := 0; i < 40; i++ {
		m.AddAtom(mol.Atom{Element: "C"})
		coords[i] = geom.Vec3{float64(i) * 1.5, 0, 0}
		if i > 0 {
			require.NoError(t, m.AddBond(i-1, i, mol.Single))
		}
	}
	_, err := m.AddConformer(coords)
	require.NoError(t, err)
	m.SetTag(fragment.SingleTag, "F1")
	m.Perceive()
	return m
}

// defaultSet renders the standard test elaboration set for grow:F1. Ordinals:
// 0 cand-a (posed, 0.4), 1 heavy (filtered), 2 cand-c (posed, 0.9, best),
// 3 cand-d (embedding fails, skipped).
func defaultSet(t *testing.T) string {
	t.Helper()
	mols := []*mol.Mol{
		ethanolRecord(t, "cand-a"),
		tetracontaneRecord(t, "heavy"),
		ethanolRecord(t, "cand-c"),
		ethanolRecord(t, "cand-d"),
	}
	var sb strings.Builder
	require.NoError(t, sdf.WriteAll(&sb, mols))
	return sb.String()
}

// pipeline bundles the wired service and every fake behind it.
type pipeline struct {
	svc       Service
	repo      *memRepo
	poses     *memPoses
	index     *fakeIndex
	lineage   *fakeLineage
	publisher *fakePublisher
}

func newPipeline(t *testing.T, mutate ...func(*Deps)) *pipeline {
	t.Helper()

	lib := testLibrary(t, "F1", "F2")
	source := &fakeSource{sets: map[string]string{"F1.sdf": defaultSet(t)}}
	logger := logging.NewNopLogger()

	elabSvc := elaboration.NewService(lib, source, logger, nil)

	screenSvc, err := appscreening.NewService(appscreening.Config{
		Thresholds:  domainScreening.DefaultThresholds(),
		EnablePAINS: true,
	}, nil, logger, nil)
	require.NoError(t, err)

	toolkit := domainPosing.Toolkit{
		Embedder: &fakeEmbedder{failFor: map[string]error{
			"cand-d": errors.New(errors.ErrCodeEmbeddingFailed, "no convergence"),
		}},
		Aligner: fakeAligner{},
		Scorer:  &fakeScorer{scores: map[string]float64{"cand-a": 0.4, "cand-c": 0.9}},
	}
	poseCfg := appposing.DefaultConfig()
	poseCfg.NumConformers = 1
	poseSvc, err := appposing.NewService(lib, toolkit, poseCfg, logger, nil)
	require.NoError(t, err)

	p := &pipeline{
		repo:      newMemRepo(),
		poses:     &memPoses{},
		index:     &fakeIndex{},
		lineage:   &fakeLineage{},
		publisher: &fakePublisher{},
	}
	deps := Deps{
		Repo:        p.repo,
		Poses:       p.poses,
		Elaboration: elabSvc,
		Screening:   screenSvc,
		Posing:      poseSvc,
		Similarity:  p.index,
		Lineage:     p.lineage,
		Publisher:   p.publisher,
		Logger:      logger,
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	svc, err := NewService(deps)
	require.NoError(t, err)
	p.svc = svc
	return p
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Deps{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestExecute_SyncPipeline(t *testing.T) {
	p := newPipeline(t)

	r, err := p.svc.Execute(context.Background(), ExecuteInput{Mode: "grow", Names: []string{"F1"}})
	require.NoError(t, err)

	assert.Equal(t, run.StatusCompleted, r.Status)
	assert.Equal(t, run.Counts{Loaded: 4, Kept: 3, Posed: 2, Skipped: 1}, r.Counts)
	assert.Equal(t, 2, r.BestOrdinal)
	assert.InDelta(t, 0.9, r.BestScore, 1e-9)
	assert.Equal(t, []run.Status{run.StatusRunning, run.StatusCompleted}, p.repo.updates)

	outcomes, err := p.repo.GetOutcomes(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.Equal(t, "cand-a", outcomes[0].Name)
	require.NotNil(t, outcomes[0].Pose)
	assert.InDelta(t, 0.4, outcomes[0].Pose.Combined, 1e-9)
	assert.Equal(t, "F1", outcomes[0].Provenance)

	assert.Equal(t, "heavy", outcomes[1].Name)
	assert.False(t, outcomes[1].PassedDruglike)
	assert.True(t, outcomes[1].Filtered())
	assert.Nil(t, outcomes[1].Pose)
	assert.Empty(t, outcomes[1].SkipReason)

	require.NotNil(t, outcomes[2].Pose)
	assert.InDelta(t, 0.9, outcomes[2].Pose.Combined, 1e-9)

	assert.Equal(t, "cand-d", outcomes[3].Name)
	assert.Nil(t, outcomes[3].Pose)
	assert.Contains(t, outcomes[3].SkipReason, "no convergence")
}

func TestExecute_StoresBestPose(t *testing.T) {
	p := newPipeline(t)

	r, err := p.svc.Execute(context.Background(), ExecuteInput{Mode: "grow", Names: []string{"F1"}})
	require.NoError(t, err)

	require.Len(t, p.poses.saved, 1)
	loc := fmt.Sprintf("poses/%s/cand-c.sdf", r.ID)
	data, ok := p.poses.saved[loc]
	require.True(t, ok, "expected pose at %s", loc)

	mols, err := sdf.ReadAll(strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Len(t, mols, 1)
	score, ok := mols[0].Tag(TagPoseScore)
	require.True(t, ok)
	assert.Equal(t, "0.9000", score)
	runTag, ok := mols[0].Tag(TagPoseRun)
	require.True(t, ok)
	assert.Equal(t, string(r.ID), runTag)
	// Provenance survives the round trip alongside the score fields.
	prov, ok := mols[0].Tag(fragment.SingleTag)
	require.True(t, ok)
	assert.Equal(t, "F1", prov)
}

func TestExecute_RecordsSimilarityAndLineage(t *testing.T) {
	p := newPipeline(t)

	r, err := p.svc.Execute(context.Background(), ExecuteInput{Mode: "grow", Names: []string{"F1"}})
	require.NoError(t, err)

	// Every retained candidate is indexed, filtered ones are not.
	require.Len(t, p.index.entries, 3)
	assert.Equal(t, fmt.Sprintf("%s:0", r.ID), p.index.entries[0].ID)
	assert.Equal(t, "cand-a", p.index.entries[0].Name)
	assert.Len(t, p.index.entries[0].Vector, fingerprint.DefaultBits)

	require.Len(t, p.lineage.records, 1)
	rec := p.lineage.records[0]
	assert.Equal(t, r.ID, rec.RunID)
	assert.Equal(t, "grow", rec.Mode)
	require.Len(t, rec.Candidates, 3)

	var best *LineageCandidate
	for i := range rec.Candidates {
		assert.Equal(t, []string{"F1"}, rec.Candidates[i].Fragments)
		if rec.Candidates[i].Best {
			best = &rec.Candidates[i]
		}
	}
	require.NotNil(t, best)
	assert.Equal(t, "cand-c", best.Name)
	assert.InDelta(t, 0.9, best.Score, 1e-9)
	assert.Equal(t, fmt.Sprintf("poses/%s/cand-c.sdf", r.ID), best.PoseRef)
}

func TestExecute_InvalidSelectionCreatesNoRun(t *testing.T) {
	p := newPipeline(t)

	_, err := p.svc.Execute(context.Background(), ExecuteInput{Mode: "dock", Names: []string{"F1"}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidMode))

	_, err = p.svc.Execute(context.Background(), ExecuteInput{Mode: "grow", Names: []string{"F9"}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownFragment))

	assert.Empty(t, p.repo.runs)
}

func TestExecute_LoadFailureFailsRun(t *testing.T) {
	p := newPipeline(t)

	// F2 resolves but has no precomputed set.
	_, err := p.svc.Execute(context.Background(), ExecuteInput{Mode: "grow", Names: []string{"F2"}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeElaborationNotFound))

	require.Len(t, p.repo.runs, 1)
	for _, r := range p.repo.runs {
		assert.Equal(t, run.StatusFailed, r.Status)
		assert.NotEmpty(t, r.Error)
	}
}

func TestExecute_CollaboratorFailuresDoNotFailRun(t *testing.T) {
	p := newPipeline(t)
	p.index.fail = true
	p.lineage.fail = true

	r, err := p.svc.Execute(context.Background(), ExecuteInput{Mode: "grow", Names: []string{"F1"}})
	require.NoError(t, err)
	assert.Equal(t, run.StatusCompleted, r.Status)
	assert.Empty(t, p.index.entries)
	assert.Empty(t, p.lineage.records)
}

func TestExecute_AsyncPublishesJob(t *testing.T) {
	p := newPipeline(t)

	r, err := p.svc.Execute(context.Background(), ExecuteInput{
		Mode: "link", Names: []string{"F2", "F1"}, Async: true,
	})
	require.NoError(t, err)
	assert.Equal(t, run.StatusPending, r.Status)

	require.Len(t, p.publisher.jobs, 1)
	job := p.publisher.jobs[0]
	assert.Equal(t, r.ID, job.RunID)
	assert.Equal(t, "link", job.Mode)
	assert.Equal(t, []string{"F1", "F2"}, job.Names)

	// Nothing ran yet.
	assert.Empty(t, p.repo.outcomes)
	assert.Empty(t, p.repo.updates)
}

func TestExecute_AsyncPublishFailureFailsRun(t *testing.T) {
	p := newPipeline(t)
	p.publisher.fail = true

	_, err := p.svc.Execute(context.Background(), ExecuteInput{
		Mode: "grow", Names: []string{"F1"}, Async: true,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessaging))
	assert.Equal(t, []run.Status{run.StatusFailed}, p.repo.updates)
}

func TestExecute_AsyncWithoutPublisher(t *testing.T) {
	p := newPipeline(t, func(d *Deps) { d.Publisher = nil })

	_, err := p.svc.Execute(context.Background(), ExecuteInput{
		Mode: "grow", Names: []string{"F1"}, Async: true,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestExecuteJob_RunsPendingRun(t *testing.T) {
	p := newPipeline(t)

	queued, err := p.svc.Execute(context.Background(), ExecuteInput{
		Mode: "grow", Names: []string{"F1"}, Async: true,
	})
	require.NoError(t, err)

	done, err := p.svc.ExecuteJob(context.Background(), queued.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusCompleted, done.Status)
	assert.Equal(t, run.Counts{Loaded: 4, Kept: 3, Posed: 2, Skipped: 1}, done.Counts)
}

func TestExecuteJob_TerminalRunIsIdempotent(t *testing.T) {
	p := newPipeline(t)

	r, err := p.svc.Execute(context.Background(), ExecuteInput{Mode: "grow", Names: []string{"F1"}})
	require.NoError(t, err)
	updatesBefore := len(p.repo.updates)

	again, err := p.svc.ExecuteJob(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusCompleted, again.Status)
	assert.Len(t, p.repo.updates, updatesBefore)
	assert.Len(t, p.poses.saved, 1)
}

func TestExecuteJob_UnknownRun(t *testing.T) {
	p := newPipeline(t)

	_, err := p.svc.ExecuteJob(context.Background(), common.ID("missing"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRunNotFound))
}

func TestExecute_AllCandidatesFiltered(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, sdf.WriteAll(&sb, []*mol.Mol{tetracontaneRecord(t, "heavy-only")}))
	p := newPipeline(t, func(d *Deps) {
		d.Elaboration = elaboration.NewService(
			testLibrary(t, "F1", "F2"),
			&fakeSource{sets: map[string]string{"F2.sdf": sb.String()}},
			logging.NewNopLogger(), nil)
	})

	r, err := p.svc.Execute(context.Background(), ExecuteInput{Mode: "grow", Names: []string{"F2"}})
	require.NoError(t, err)
	assert.Equal(t, run.StatusCompleted, r.Status)
	assert.Equal(t, run.Counts{Loaded: 1, Kept: 0, Posed: 0, Skipped: 0}, r.Counts)
	assert.False(t, r.HasBest())
	assert.Empty(t, p.poses.saved)
	assert.Empty(t, p.index.entries)
	assert.Empty(t, p.lineage.records)
}

func TestList_ClampsPaging(t *testing.T) {
	p := newPipeline(t)

	_, _, err := p.svc.List(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 20, p.repo.lastLimit)
	assert.Equal(t, 0, p.repo.lastOffset)

	_, _, err = p.svc.List(context.Background(), 500, 10)
	require.NoError(t, err)
	assert.Equal(t, 100, p.repo.lastLimit)
	assert.Equal(t, 10, p.repo.lastOffset)
}

func TestReport_ReturnsRunWithOutcomes(t *testing.T) {
	p := newPipeline(t)

	r, err := p.svc.Execute(context.Background(), ExecuteInput{Mode: "grow", Names: []string{"F1"}})
	require.NoError(t, err)

	rep, err := p.svc.Report(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, rep.Run.ID)
	assert.Len(t, rep.Outcomes, 4)
}
