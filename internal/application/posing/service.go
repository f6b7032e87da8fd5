// Package posing provides the application-level pose orchestration: resolving
// each candidate's provenance into a rigid reference, generating and scoring
// poses through the narrow toolkit interfaces, and running batches on a
// bounded worker group that preserves input order.
package posing

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/molforge/fragelab/internal/application/elaboration"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/internal/domain/fragment"
	domainPosing "github.com/molforge/fragelab/internal/domain/posing"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/prometheus"
	"github.com/molforge/fragelab/pkg/errors"
)

// DefaultWorkers bounds batch pose concurrency when none is configured.
const DefaultWorkers = 4

// Config controls pose generation.
type Config struct {
	Strategy      domainPosing.Strategy
	NumConformers int
	// EnsembleSeed seeds ensemble embedding; 0 leaves it unseeded.
	EnsembleSeed int64
	// ConstrainedSeed seeds constrained embedding; constrained runs are
	// always deterministic.
	ConstrainedSeed int64
	Workers         int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:        domainPosing.StrategyEnsemble,
		NumConformers:   domainPosing.DefaultNumConformers,
		EnsembleSeed:    0,
		ConstrainedSeed: 42,
		Workers:         DefaultWorkers,
	}
}

// Outcome is one candidate's result within a batch: a pose, or the reason it
// was skipped, plus the stage the candidate reached.
type Outcome struct {
	Ordinal    int
	Name       string
	Provenance fragment.Provenance
	Result     *domainPosing.Result
	Stage      domainPosing.Stage
	SkipReason string
}

// Posed reports whether the candidate produced a pose.
func (o Outcome) Posed() bool { return o.Result != nil }

// Service generates scored poses for elaboration candidates.
type Service interface {
	// Pose runs the pose pipeline for one candidate: provenance to
	// reference, embedding, alignment, scoring, best selection.
	Pose(ctx context.Context, candidate elaboration.Candidate) (*domainPosing.Result, error)
	// PoseAll poses a batch on a bounded worker group. Outcomes are returned
	// in input order. Embedding non-convergence skips the candidate and is
	// reported in its outcome; any other failure aborts the batch.
	PoseAll(ctx context.Context, candidates []elaboration.Candidate) ([]Outcome, error)
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	library *fragment.Library
	toolkit domainPosing.Toolkit
	cfg     Config
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

// NewService creates the posing service. metrics may be nil.
func NewService(library *fragment.Library, toolkit domainPosing.Toolkit, cfg Config, logger logging.Logger, metrics *prometheus.AppMetrics) (Service, error) {
	strategy, err := domainPosing.ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}
	cfg.Strategy = strategy
	if cfg.NumConformers <= 0 {
		cfg.NumConformers = domainPosing.DefaultNumConformers
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		library: library,
		toolkit: toolkit,
		cfg:     cfg,
		logger:  logger.Named("posing"),
		metrics: metrics,
	}, nil
}

func (s *serviceImpl) Pose(ctx context.Context, candidate elaboration.Candidate) (*domainPosing.Result, error) {
	_, ref, err := s.resolveReference(candidate)
	if err != nil {
		return nil, err
	}
	res, _, err := s.poseAgainst(ctx, candidate.Mol, ref)
	return res, err
}

func (s *serviceImpl) PoseAll(ctx context.Context, candidates []elaboration.Candidate) ([]Outcome, error) {
	outcomes := make([]Outcome, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			out, err := s.poseCandidate(gctx, c)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// poseCandidate poses one batch member, converting recoverable failures into
// a skip outcome.
func (s *serviceImpl) poseCandidate(ctx context.Context, c elaboration.Candidate) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	strategy := string(s.cfg.Strategy)
	start := time.Now()
	s.metrics.WorkerStarted(strategy)
	defer s.metrics.WorkerFinished(strategy)

	out := Outcome{Ordinal: c.Ordinal, Name: c.Name(), Stage: domainPosing.StageUnembedded}

	prov, ref, err := s.resolveReference(c)
	if err != nil {
		s.metrics.ObservePose(strategy, "failed", time.Since(start))
		return Outcome{}, err
	}
	out.Provenance = prov

	res, stage, err := s.poseAgainst(ctx, c.Mol, ref)
	out.Stage = stage
	switch {
	case err == nil:
		out.Result = res
		s.logger.Debug("candidate posed",
			logging.Int("ordinal", c.Ordinal),
			logging.String("name", out.Name),
			logging.Float64("score", res.Score.Combined),
			logging.Int("conformer", res.Conformer))
		s.metrics.ObservePose(strategy, "posed", time.Since(start))
	case recoverable(err):
		out.SkipReason = err.Error()
		s.logger.Warn("candidate skipped",
			logging.Int("ordinal", c.Ordinal),
			logging.String("name", out.Name),
			logging.String("stage", stage.String()),
			logging.Err(err))
		s.metrics.IncEmbedFailure(strategy)
		s.metrics.ObservePose(strategy, "skipped", time.Since(start))
	default:
		s.metrics.ObservePose(strategy, "failed", time.Since(start))
		return Outcome{}, err
	}
	return out, nil
}

// resolveReference maps the candidate's provenance onto the library: the
// named fragment for single provenance, or both fragments combined into one
// rigid disconnected structure for a pair.
func (s *serviceImpl) resolveReference(c elaboration.Candidate) (fragment.Provenance, *mol.Mol, error) {
	prov, err := c.Provenance()
	if err != nil {
		return fragment.Provenance{}, nil, err
	}
	if prov.IsZero() {
		return fragment.Provenance{}, nil, errors.Newf(errors.ErrCodeMissingProvenance,
			"candidate %s carries neither %s nor %s", c.Name(), fragment.SingleTag, fragment.PairTag)
	}

	if name, ok := prov.Single(); ok {
		f, err := s.library.Get(name)
		if err != nil {
			return fragment.Provenance{}, nil, err
		}
		return prov, f.Mol, nil
	}

	a, b, _ := prov.Pair()
	fa, err := s.library.Get(a)
	if err != nil {
		return fragment.Provenance{}, nil, err
	}
	fb, err := s.library.Get(b)
	if err != nil {
		return fragment.Provenance{}, nil, err
	}
	return prov, mol.Combine(fa.Mol, fb.Mol), nil
}

// poseAgainst runs the configured strategy for one candidate structure,
// returning the stage the candidate reached.
func (s *serviceImpl) poseAgainst(ctx context.Context, cand, ref *mol.Mol) (*domainPosing.Result, domainPosing.Stage, error) {
	if s.cfg.Strategy == domainPosing.StrategyConstrained {
		return s.poseConstrained(ctx, cand, ref)
	}
	return s.poseEnsemble(ctx, cand, ref)
}

// poseEnsemble embeds an unconstrained conformer ensemble, aligns and scores
// every member, and keeps the argmax.
func (s *serviceImpl) poseEnsemble(ctx context.Context, cand, ref *mol.Mol) (*domainPosing.Result, domainPosing.Stage, error) {
	stage := domainPosing.StageUnembedded

	embedded, err := s.toolkit.Embedder.Ensemble(cand, s.cfg.NumConformers, s.cfg.EnsembleSeed)
	if err != nil {
		return nil, stage, err
	}
	n := embedded.NumConformers()
	if n == 0 {
		return nil, stage, errors.New(errors.ErrCodeNoConformers, "embedding produced no conformers")
	}
	stage = domainPosing.StageConformersGenerated

	best := -1
	var bestScore domainPosing.Score
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, stage, err
		}
		if err := s.toolkit.Aligner.Align(embedded, i, ref, 0); err != nil {
			return nil, stage, err
		}
		score, err := s.toolkit.Scorer.Score(embedded, i, ref, 0)
		if err != nil {
			return nil, domainPosing.StageAligned, err
		}
		if best < 0 || score.Combined > bestScore.Combined {
			best, bestScore = i, score
		}
	}
	stage = domainPosing.StageScored

	res := &domainPosing.Result{
		Best:      singleConformer(embedded, best),
		Score:     bestScore,
		Conformer: best,
	}
	return res, domainPosing.StageBestSelected, nil
}

// poseConstrained embeds one conformer with the common substructure pinned to
// the reference geometry; the embedding itself is the alignment.
func (s *serviceImpl) poseConstrained(ctx context.Context, cand, ref *mol.Mol) (*domainPosing.Result, domainPosing.Stage, error) {
	stage := domainPosing.StageUnembedded
	if err := ctx.Err(); err != nil {
		return nil, stage, err
	}

	embedded, _, err := s.toolkit.Embedder.Constrained(cand, ref, 0, s.cfg.ConstrainedSeed)
	if err != nil {
		return nil, stage, err
	}
	stage = domainPosing.StageAligned

	score, err := s.toolkit.Scorer.Score(embedded, 0, ref, 0)
	if err != nil {
		return nil, stage, err
	}

	res := &domainPosing.Result{
		Best:      singleConformer(embedded, 0),
		Score:     score,
		Conformer: 0,
	}
	return res, domainPosing.StageBestSelected, nil
}

// singleConformer returns a copy of m carrying only conformer i.
func singleConformer(m *mol.Mol, i int) *mol.Mol {
	coords, err := m.Conformer(i)
	if err != nil {
		return m.Copy()
	}
	out := m.Copy()
	out.ClearConformers()
	out.AddConformer(coords)
	return out
}

// recoverable reports whether a pose failure is a per-candidate condition
// (embedding non-convergence and its relatives) rather than a batch problem.
func recoverable(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrCodeEmbeddingFailed,
		errors.ErrCodeNoConformers,
		errors.ErrCodeNoCommonSubstructure,
		errors.ErrCodeGeometryFailed:
		return true
	}
	return false
}
