// Package screening provides the application-level service running the
// property filters over loaded candidate sets: drug-likeness thresholds and
// the PAINS reactive-pattern catalog. Both filters are evaluated for every
// candidate so persisted outcomes carry both verdicts; a candidate is kept
// only when it passes all enabled filters.
package screening

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/molforge/fragelab/internal/application/elaboration"
	"github.com/molforge/fragelab/internal/chem/descriptors"
	"github.com/molforge/fragelab/internal/chem/fingerprint"
	"github.com/molforge/fragelab/internal/chem/mol"
	domainScreening "github.com/molforge/fragelab/internal/domain/screening"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/prometheus"
)

// Filter names used in logs, metrics, and persisted outcomes.
const (
	FilterDruglike = "druglike"
	FilterPAINS    = "pains"
)

// Cache stores computed values under string keys. dest receives the cached
// JSON-decoded value; on a miss, compute runs once (concurrent callers are
// collapsed) and its result is stored and decoded into dest. A nil Cache
// disables caching.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, dest interface{}, compute func(ctx context.Context) (interface{}, error)) error
}

// Verdict is one candidate's combined filter outcome. Both filters are
// reported even for dropped candidates.
type Verdict struct {
	Ordinal  int
	Name     string
	Druglike domainScreening.DruglikeVerdict
	PAINS    domainScreening.PAINSVerdict
}

// Kept reports whether the candidate survived every filter.
func (v Verdict) Kept() bool {
	return v.Druglike.Pass && v.PAINS.Pass
}

// Result is the outcome of screening one candidate list. Verdicts holds one
// entry per input candidate in input order; Kept holds the survivors, also in
// input order.
type Result struct {
	Verdicts []Verdict
	Kept     []elaboration.Candidate
}

// Config controls the filters.
type Config struct {
	Thresholds  domainScreening.Thresholds
	EnablePAINS bool
}

// Service runs the property filters.
type Service interface {
	// Screen evaluates every candidate against the configured filters,
	// preserving input order.
	Screen(ctx context.Context, candidates []elaboration.Candidate) (*Result, error)
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	thresholds  domainScreening.Thresholds
	enablePAINS bool
	cache       Cache
	logger      logging.Logger
	metrics     *prometheus.AppMetrics
}

// NewService creates the screening service. cache and metrics may be nil.
func NewService(cfg Config, cache Cache, logger logging.Logger, metrics *prometheus.AppMetrics) (Service, error) {
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		thresholds:  cfg.Thresholds,
		enablePAINS: cfg.EnablePAINS,
		cache:       cache,
		logger:      logger.Named("screening"),
		metrics:     metrics,
	}, nil
}

func (s *serviceImpl) Screen(ctx context.Context, candidates []elaboration.Candidate) (*Result, error) {
	res := &Result{
		Verdicts: make([]Verdict, len(candidates)),
		Kept:     make([]elaboration.Candidate, 0, len(candidates)),
	}

	druglikeKept := 0
	druglikeStart := time.Now()
	for i, c := range candidates {
		dl, err := s.druglike(ctx, c.Mol)
		if err != nil {
			return nil, err
		}
		res.Verdicts[i] = Verdict{Ordinal: c.Ordinal, Name: c.Name(), Druglike: dl}
		if dl.Pass {
			druglikeKept++
		}
	}
	druglikeTook := time.Since(druglikeStart)
	s.logger.Info("drug-likeness filter applied",
		logging.Int("kept", druglikeKept),
		logging.Int("total", len(candidates)),
		logging.Duration("took", druglikeTook))
	s.metrics.ObserveFilter(FilterDruglike, druglikeKept, len(candidates)-druglikeKept, druglikeTook)

	painsKept := len(candidates)
	if s.enablePAINS {
		painsKept = 0
		painsStart := time.Now()
		for i, c := range candidates {
			pv := domainScreening.EvaluatePAINS(c.Mol)
			res.Verdicts[i].PAINS = pv
			if pv.Pass {
				painsKept++
			}
		}
		painsTook := time.Since(painsStart)
		s.logger.Info("reactive-pattern filter applied",
			logging.Int("kept", painsKept),
			logging.Int("total", len(candidates)),
			logging.Duration("took", painsTook))
		s.metrics.ObserveFilter(FilterPAINS, painsKept, len(candidates)-painsKept, painsTook)
	} else {
		// Disabled filter passes everything through.
		for i := range res.Verdicts {
			res.Verdicts[i].PAINS = domainScreening.PAINSVerdict{Pass: true}
		}
	}

	for i, c := range candidates {
		if res.Verdicts[i].Kept() {
			res.Kept = append(res.Kept, c)
		}
	}
	return res, nil
}

// druglike judges the candidate's descriptors, computing them through the
// cache when one is configured.
func (s *serviceImpl) druglike(ctx context.Context, m *mol.Mol) (domainScreening.DruglikeVerdict, error) {
	if s.cache == nil {
		return domainScreening.EvaluateDruglike(m, s.thresholds), nil
	}
	var set descriptors.Set
	err := s.cache.GetOrCompute(ctx, "descriptors:"+structureKey(m), &set,
		func(context.Context) (interface{}, error) {
			return descriptors.Compute(m), nil
		})
	if err != nil {
		// Cache trouble never blocks screening.
		s.logger.Warn("descriptor cache unavailable", logging.Err(err))
		return domainScreening.EvaluateDruglike(m, s.thresholds), nil
	}
	return domainScreening.JudgeDruglike(set, s.thresholds), nil
}

// structureKey hashes a structure for cache addressing. Morgan bits are
// atom-order invariant, so re-reads of the same record map to the same key.
func structureKey(m *mol.Mol) string {
	fp := fingerprint.MorganDefault(m)
	h := sha256.New()
	h.Write(fp.Bytes())
	h.Write([]byte(m.Formula()))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
