// Package runs provides the top-level pipeline orchestration: one Execute
// call resolves a selection, loads its elaboration set, screens, poses, and
// persists the run with its per-candidate outcomes. Optional collaborators
// (similarity index, lineage graph, job queue) are nil-safe so a minimal
// deployment needs only the run store.
package runs

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/molforge/fragelab/internal/application/elaboration"
	appposing "github.com/molforge/fragelab/internal/application/posing"
	appscreening "github.com/molforge/fragelab/internal/application/screening"
	"github.com/molforge/fragelab/internal/chem/fingerprint"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/internal/chem/sdf"
	"github.com/molforge/fragelab/internal/domain/fragment"
	"github.com/molforge/fragelab/internal/domain/run"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/prometheus"
	"github.com/molforge/fragelab/pkg/errors"
	"github.com/molforge/fragelab/pkg/types/common"
)

// SDF data fields written onto exported best-pose structures.
const (
	TagPoseScore      = "pose_score"
	TagPoseFeature    = "pose_feature"
	TagPoseProtrusion = "pose_protrusion"
	TagPoseRun        = "run_id"
)

// ─────────────────────────────────────────────────────────────────────────────
// Optional collaborators
// ─────────────────────────────────────────────────────────────────────────────

// SimilarityEntry is one retained candidate's fingerprint, addressed by
// "<runID>:<ordinal>".
type SimilarityEntry struct {
	ID     string
	Name   string
	Vector []float32
}

// SimilarityIndex records retained candidates for fingerprint search. A nil
// index disables recording.
type SimilarityIndex interface {
	InsertCandidates(ctx context.Context, entries []SimilarityEntry) error
}

// LineageCandidate is one retained candidate's provenance for the graph.
type LineageCandidate struct {
	ID        string
	Name      string
	Fragments []string
	Best      bool
	Score     float64
	PoseRef   string
}

// LineageRecord describes one completed run's provenance graph updates.
type LineageRecord struct {
	RunID      common.ID
	Mode       string
	Key        string
	Candidates []LineageCandidate
}

// LineageRecorder writes provenance lineage after a run completes. A nil
// recorder disables lineage.
type LineageRecorder interface {
	RecordRun(ctx context.Context, rec LineageRecord) error
}

// Job is one queued pose-pipeline execution.
type Job struct {
	RunID common.ID `json:"run_id"`
	Mode  string    `json:"mode"`
	Names []string  `json:"names"`
}

// JobPublisher dispatches asynchronous runs to the queue. A nil publisher
// makes async execution unavailable.
type JobPublisher interface {
	PublishRun(ctx context.Context, job Job) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Service
// ─────────────────────────────────────────────────────────────────────────────

// ExecuteInput is one pipeline invocation request.
type ExecuteInput struct {
	Mode  string
	Names []string
	// Async queues the run instead of executing it inline.
	Async bool
}

// Report is a completed run plus its per-candidate outcomes.
type Report struct {
	Run      *run.Run
	Outcomes []run.CandidateOutcome
}

// Service orchestrates full pipeline runs.
type Service interface {
	// Execute validates the selection, creates the run record, and either
	// executes the pipeline inline or queues it (input.Async). The returned
	// run is terminal for inline execution and pending for queued runs.
	Execute(ctx context.Context, input ExecuteInput) (*run.Run, error)
	// ExecuteJob executes a previously created pending run. Terminal runs
	// are returned unchanged, so queue redelivery is harmless.
	ExecuteJob(ctx context.Context, runID common.ID) (*run.Run, error)
	// Get loads one run.
	Get(ctx context.Context, id common.ID) (*run.Run, error)
	// List pages through runs, newest first.
	List(ctx context.Context, limit, offset int) ([]*run.Run, int64, error)
	// Report loads one run together with its candidate outcomes.
	Report(ctx context.Context, id common.ID) (*Report, error)
}

// Deps bundles the orchestrator's collaborators. Repo, Elaboration,
// Screening, and Posing are required; the rest may be nil.
type Deps struct {
	Repo        run.Repository
	Poses       run.PoseStore
	Elaboration elaboration.Service
	Screening   appscreening.Service
	Posing      appposing.Service
	Similarity  SimilarityIndex
	Lineage     LineageRecorder
	Publisher   JobPublisher
	Logger      logging.Logger
	Metrics     *prometheus.AppMetrics
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	deps   Deps
	logger logging.Logger
}

// NewService creates the run orchestration service.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, errors.New(errors.ErrCodeValidation, "run repository is required")
	}
	if deps.Elaboration == nil || deps.Screening == nil || deps.Posing == nil {
		return nil, errors.New(errors.ErrCodeValidation, "elaboration, screening, and posing services are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{deps: deps, logger: logger.Named("runs")}, nil
}

func (s *serviceImpl) Execute(ctx context.Context, input ExecuteInput) (*run.Run, error) {
	// Selection problems never create run rows.
	key, err := s.deps.Elaboration.Resolve(input.Mode, input.Names)
	if err != nil {
		return nil, err
	}

	r := run.NewRun(key)
	if err := s.deps.Repo.Create(ctx, r); err != nil {
		return nil, err
	}

	if input.Async {
		if s.deps.Publisher == nil {
			err := errors.New(errors.ErrCodeServiceUnavailable, "no job queue configured")
			return nil, s.failRun(ctx, r, err)
		}
		job := Job{RunID: r.ID, Mode: string(key.Mode), Names: key.Names}
		if err := s.deps.Publisher.PublishRun(ctx, job); err != nil {
			return nil, s.failRun(ctx, r, err)
		}
		s.logger.Info("run queued",
			logging.String("run_id", string(r.ID)),
			logging.String("key", key.String()))
		return r, nil
	}

	if err := s.execute(ctx, r, key); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *serviceImpl) ExecuteJob(ctx context.Context, runID common.ID) (*run.Run, error) {
	r, err := s.deps.Repo.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if r.Status.IsTerminal() {
		s.logger.Info("run already terminal, skipping",
			logging.String("run_id", string(r.ID)),
			logging.String("status", string(r.Status)))
		return r, nil
	}

	key := fragment.ElaborationKey{Mode: r.Mode, Names: strings.Split(r.Key, "-")}
	if err := s.execute(ctx, r, key); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *serviceImpl) Get(ctx context.Context, id common.ID) (*run.Run, error) {
	return s.deps.Repo.GetByID(ctx, id)
}

func (s *serviceImpl) List(ctx context.Context, limit, offset int) ([]*run.Run, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.deps.Repo.List(ctx, limit, offset)
}

func (s *serviceImpl) Report(ctx context.Context, id common.ID) (*Report, error) {
	r, err := s.deps.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	outcomes, err := s.deps.Repo.GetOutcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Report{Run: r, Outcomes: outcomes}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline execution
// ─────────────────────────────────────────────────────────────────────────────

// execute drives one run through load → screen → pose → persist. Pipeline
// errors fail the run record before surfacing.
func (s *serviceImpl) execute(ctx context.Context, r *run.Run, key fragment.ElaborationKey) error {
	start := time.Now()
	if err := r.Start(); err != nil {
		return err
	}
	if err := s.deps.Repo.Update(ctx, r); err != nil {
		return err
	}

	candidates, err := s.deps.Elaboration.Load(ctx, key)
	if err != nil {
		return s.failRun(ctx, r, err)
	}

	screened, err := s.deps.Screening.Screen(ctx, candidates)
	if err != nil {
		return s.failRun(ctx, r, err)
	}

	posed, err := s.deps.Posing.PoseAll(ctx, screened.Kept)
	if err != nil {
		return s.failRun(ctx, r, err)
	}

	outcomes, counts, bestIdx := s.assembleOutcomes(r.ID, screened, posed)

	bestOrdinal, bestScore := -1, 0.0
	if bestIdx >= 0 {
		bestOrdinal = posed[bestIdx].Ordinal
		bestScore = posed[bestIdx].Result.Score.Combined
	}

	if err := r.Complete(counts, bestOrdinal, bestScore); err != nil {
		return err
	}
	if err := s.deps.Repo.Update(ctx, r); err != nil {
		return err
	}
	if err := s.deps.Repo.SaveOutcomes(ctx, outcomes); err != nil {
		return err
	}

	poseRef := ""
	if bestIdx >= 0 {
		poseRef = s.storeBestPose(ctx, r, posed[bestIdx])
		s.deps.Metrics.ObserveBestScore(string(r.Mode), bestScore)
	}
	s.recordSimilarity(ctx, r, screened)
	s.recordLineage(ctx, r, posed, bestOrdinal, poseRef)

	s.logger.Info("run completed",
		logging.String("run_id", string(r.ID)),
		logging.String("key", key.String()),
		logging.Int("loaded", counts.Loaded),
		logging.Int("kept", counts.Kept),
		logging.Int("posed", counts.Posed),
		logging.Int("skipped", counts.Skipped),
		logging.Int("best_ordinal", bestOrdinal),
		logging.Float64("best_score", bestScore),
		logging.Duration("took", time.Since(start)))
	return nil
}

// assembleOutcomes merges filter verdicts and pose outcomes into one report
// row per loaded candidate, in input order. bestIdx indexes the best-scoring
// entry of posed, or -1.
func (s *serviceImpl) assembleOutcomes(runID common.ID, screened *appscreening.Result, posed []appposing.Outcome) ([]run.CandidateOutcome, run.Counts, int) {
	poseByOrdinal := make(map[int]int, len(posed))
	for i := range posed {
		poseByOrdinal[posed[i].Ordinal] = i
	}

	counts := run.Counts{Loaded: len(screened.Verdicts), Kept: len(screened.Kept)}
	bestIdx := -1

	outcomes := make([]run.CandidateOutcome, len(screened.Verdicts))
	for i, v := range screened.Verdicts {
		out := run.CandidateOutcome{
			RunID:   runID,
			Ordinal: v.Ordinal,
			Name:    v.Name,
			Descriptors: map[string]float64{
				"mol_weight": v.Druglike.Descriptors.MolWeight,
				"clogp":      v.Druglike.Descriptors.CLogP,
				"hba":        float64(v.Druglike.Descriptors.HBA),
				"hbd":        float64(v.Druglike.Descriptors.HBD),
			},
			PassedDruglike:     v.Druglike.Pass,
			DruglikeViolations: v.Druglike.Violations,
			PassedPAINS:        v.PAINS.Pass,
			PAINSHits:          v.PAINS.Hits,
		}

		if pi, ok := poseByOrdinal[v.Ordinal]; ok {
			po := posed[pi]
			out.Provenance = po.Provenance.String()
			switch {
			case po.Posed():
				counts.Posed++
				out.Pose = &run.PoseScore{
					Feature:    po.Result.Score.Feature,
					Protrusion: po.Result.Score.Protrusion,
					Combined:   po.Result.Score.Combined,
				}
				if bestIdx < 0 || po.Result.Score.Combined > posed[bestIdx].Result.Score.Combined {
					bestIdx = pi
				}
			default:
				counts.Skipped++
				out.SkipReason = po.SkipReason
			}
		}
		outcomes[i] = out
	}
	return outcomes, counts, bestIdx
}

// storeBestPose renders and stores the run's best pose, returning its
// location. Storage trouble is logged, not fatal: the run is already
// complete.
func (s *serviceImpl) storeBestPose(ctx context.Context, r *run.Run, best appposing.Outcome) string {
	if s.deps.Poses == nil {
		return ""
	}

	m := best.Result.Best.Copy()
	m.SetTag(TagPoseRun, string(r.ID))
	m.SetTag(TagPoseScore, fmt.Sprintf("%.4f", best.Result.Score.Combined))
	m.SetTag(TagPoseFeature, fmt.Sprintf("%.4f", best.Result.Score.Feature))
	m.SetTag(TagPoseProtrusion, fmt.Sprintf("%.4f", best.Result.Score.Protrusion))

	var buf bytes.Buffer
	if err := sdf.WriteAll(&buf, []*mol.Mol{m}); err != nil {
		s.logger.Error("best pose render failed",
			logging.String("run_id", string(r.ID)), logging.Err(err))
		return ""
	}
	loc, err := s.deps.Poses.SavePose(ctx, r.ID, best.Name, buf.Bytes())
	if err != nil {
		s.logger.Error("best pose store failed",
			logging.String("run_id", string(r.ID)), logging.Err(err))
		return ""
	}
	return loc
}

// recordSimilarity indexes retained candidates' fingerprints. Failures are
// logged, not fatal.
func (s *serviceImpl) recordSimilarity(ctx context.Context, r *run.Run, screened *appscreening.Result) {
	if s.deps.Similarity == nil || len(screened.Kept) == 0 {
		return
	}
	entries := make([]SimilarityEntry, len(screened.Kept))
	for i, c := range screened.Kept {
		fp := fingerprint.MorganDefault(c.Mol)
		entries[i] = SimilarityEntry{
			ID:     candidateID(r.ID, c.Ordinal),
			Name:   c.Name(),
			Vector: fp.Floats32(),
		}
	}
	if err := s.deps.Similarity.InsertCandidates(ctx, entries); err != nil {
		s.logger.Warn("similarity index insert failed",
			logging.String("run_id", string(r.ID)), logging.Err(err))
	}
}

// recordLineage writes the provenance graph for posed candidates. Failures
// are logged, not fatal.
func (s *serviceImpl) recordLineage(ctx context.Context, r *run.Run, posed []appposing.Outcome, bestOrdinal int, poseRef string) {
	if s.deps.Lineage == nil || len(posed) == 0 {
		return
	}
	rec := LineageRecord{
		RunID:      r.ID,
		Mode:       string(r.Mode),
		Key:        r.Key,
		Candidates: make([]LineageCandidate, 0, len(posed)),
	}
	for _, po := range posed {
		lc := LineageCandidate{
			ID:        candidateID(r.ID, po.Ordinal),
			Name:      po.Name,
			Fragments: po.Provenance.Names(),
		}
		if po.Posed() {
			lc.Score = po.Result.Score.Combined
			if po.Ordinal == bestOrdinal {
				lc.Best = true
				lc.PoseRef = poseRef
			}
		}
		rec.Candidates = append(rec.Candidates, lc)
	}
	if err := s.deps.Lineage.RecordRun(ctx, rec); err != nil {
		s.logger.Warn("lineage record failed",
			logging.String("run_id", string(r.ID)), logging.Err(err))
	}
}

// failRun closes the run with the cause and persists the failure. The
// original cause is always what surfaces.
func (s *serviceImpl) failRun(ctx context.Context, r *run.Run, cause error) error {
	if err := r.Fail(cause); err != nil {
		s.logger.Error("run could not be failed",
			logging.String("run_id", string(r.ID)), logging.Err(err))
		return cause
	}
	if err := s.deps.Repo.Update(ctx, r); err != nil {
		s.logger.Error("run failure not persisted",
			logging.String("run_id", string(r.ID)), logging.Err(err))
	}
	s.logger.Error("run failed",
		logging.String("run_id", string(r.ID)),
		logging.String("key", r.Key),
		logging.Err(cause))
	return cause
}

// candidateID is the stable cross-store candidate address.
func candidateID(runID common.ID, ordinal int) string {
	return fmt.Sprintf("%s:%d", runID, ordinal)
}
