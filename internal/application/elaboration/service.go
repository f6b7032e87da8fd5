// Package elaboration provides the application-level service that lists the
// fragment library, resolves user selections into canonical elaboration keys,
// and loads the matching candidate sets.
package elaboration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/internal/chem/sdf"
	"github.com/molforge/fragelab/internal/domain/fragment"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/prometheus"
	"github.com/molforge/fragelab/pkg/errors"
)

// Candidate is one structure read from an elaboration set, tagged with its
// zero-based input position. Every downstream stage preserves candidate order,
// so the ordinal identifies the record end to end.
type Candidate struct {
	Ordinal int
	Mol     *mol.Mol
}

// Name returns the record's title line, or a positional fallback when the
// title is blank.
func (c Candidate) Name() string {
	if n := strings.TrimSpace(c.Mol.Name); n != "" {
		return n
	}
	return fmt.Sprintf("record-%d", c.Ordinal+1)
}

// Provenance parses the candidate's inspiration data fields.
func (c Candidate) Provenance() (fragment.Provenance, error) {
	return fragment.ParseProvenance(c.Mol)
}

// FragmentInfo is the library-listing DTO.
type FragmentInfo struct {
	Name       string  `json:"name"`
	Formula    string  `json:"formula"`
	HeavyAtoms int     `json:"heavy_atoms"`
	MolWeight  float64 `json:"mol_weight"`
}

// Service defines the interface for selection and loading operations.
type Service interface {
	// Fragments lists the loaded library in load order.
	Fragments() []FragmentInfo
	// Resolve maps a raw mode string and fragment names to a canonical key.
	Resolve(mode string, names []string) (fragment.ElaborationKey, error)
	// ResolveIndices is Resolve for zero-based library positions.
	ResolveIndices(mode string, indices []int) (fragment.ElaborationKey, error)
	// Load opens the elaboration set behind key and returns its candidates in
	// file order. The set may be empty.
	Load(ctx context.Context, key fragment.ElaborationKey) ([]Candidate, error)
	// ResolveAndLoad chains Resolve and Load.
	ResolveAndLoad(ctx context.Context, mode string, names []string) (fragment.ElaborationKey, []Candidate, error)
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	library *fragment.Library
	source  fragment.ElaborationSource
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

// NewService creates the elaboration service around a loaded library and a
// structure source. metrics may be nil.
func NewService(library *fragment.Library, source fragment.ElaborationSource, logger logging.Logger, metrics *prometheus.AppMetrics) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	metrics.SetLibrarySize("default", library.Len())
	return &serviceImpl{
		library: library,
		source:  source,
		logger:  logger.Named("elaboration"),
		metrics: metrics,
	}
}

func (s *serviceImpl) Fragments() []FragmentInfo {
	infos := make([]FragmentInfo, 0, s.library.Len())
	for _, name := range s.library.Names() {
		f, err := s.library.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, FragmentInfo{
			Name:       f.Name,
			Formula:    f.Formula(),
			HeavyAtoms: f.HeavyAtoms(),
			MolWeight:  f.MolWeight(),
		})
	}
	return infos
}

func (s *serviceImpl) Resolve(mode string, names []string) (fragment.ElaborationKey, error) {
	m, err := fragment.ParseMode(mode)
	if err != nil {
		return fragment.ElaborationKey{}, err
	}
	key, _, err := s.library.ResolveByNames(m, names...)
	if err != nil {
		return fragment.ElaborationKey{}, err
	}
	s.logger.Debug("selection resolved",
		logging.String("mode", mode),
		logging.String("key", key.String()))
	return key, nil
}

func (s *serviceImpl) ResolveIndices(mode string, indices []int) (fragment.ElaborationKey, error) {
	m, err := fragment.ParseMode(mode)
	if err != nil {
		return fragment.ElaborationKey{}, err
	}
	key, _, err := s.library.ResolveByIndices(m, indices...)
	if err != nil {
		return fragment.ElaborationKey{}, err
	}
	return key, nil
}

func (s *serviceImpl) Load(ctx context.Context, key fragment.ElaborationKey) ([]Candidate, error) {
	start := time.Now()

	rc, err := s.source.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	mols, err := sdf.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeElaborationRead,
			"read elaboration set %s", key.Filename())
	}

	candidates := make([]Candidate, len(mols))
	for i, m := range mols {
		candidates[i] = Candidate{Ordinal: i, Mol: m}
	}

	s.logger.Info("elaboration set loaded",
		logging.String("key", key.String()),
		logging.String("file", key.Filename()),
		logging.Int("candidates", len(candidates)),
		logging.Duration("took", time.Since(start)))
	s.metrics.ObserveElaborationLoad(string(key.Mode), len(candidates), time.Since(start))

	return candidates, nil
}

func (s *serviceImpl) ResolveAndLoad(ctx context.Context, mode string, names []string) (fragment.ElaborationKey, []Candidate, error) {
	key, err := s.Resolve(mode, names)
	if err != nil {
		return fragment.ElaborationKey{}, nil, err
	}
	candidates, err := s.Load(ctx, key)
	if err != nil {
		return fragment.ElaborationKey{}, nil, err
	}
	return key, candidates, nil
}
