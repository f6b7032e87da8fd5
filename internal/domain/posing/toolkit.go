package posing

import (
	"github.com/molforge/fragelab/internal/chem/embed"
	"github.com/molforge/fragelab/internal/chem/features"
	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/internal/chem/shape"
	"github.com/molforge/fragelab/pkg/errors"
)

// DefaultFeatureTol is the pharmacophore pairing radius in angstroms.
const DefaultFeatureTol = 1.5

// DefaultToolkit wires the in-process chemistry implementations.
func DefaultToolkit() Toolkit {
	return Toolkit{
		Embedder: ToolkitEmbedder{},
		Aligner:  FeatureAligner{},
		Scorer:   OverlapScorer{},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Embedder
// ─────────────────────────────────────────────────────────────────────────────

// ToolkitEmbedder generates conformers by distance-geometry embedding.
type ToolkitEmbedder struct {
	// MaxIters bounds the bounds-violation minimizer; 0 uses the embedding
	// default.
	MaxIters int
}

func (e ToolkitEmbedder) Ensemble(m *mol.Mol, count int, seed int64) (*mol.Mol, error) {
	confs, err := embed.EmbedMultiple(m, count, embed.Params{Seed: seed, MaxIters: e.MaxIters})
	if err != nil {
		return nil, err
	}
	out := m.Copy()
	out.ClearConformers()
	for _, coords := range confs {
		if _, err := out.AddConformer(coords); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e ToolkitEmbedder) Constrained(cand, ref *mol.Mol, refConf int, seed int64) (*mol.Mol, []int, error) {
	return embed.EmbedConstrained(cand, ref, refConf, embed.Params{Seed: seed, MaxIters: e.MaxIters})
}

// ─────────────────────────────────────────────────────────────────────────────
// Aligner
// ─────────────────────────────────────────────────────────────────────────────

// FeatureAligner superposes the probe onto the reference using matched
// pharmacophore family centroids as correspondence points: one pair per
// family present on both sides. With degenerate correspondences the
// superposition reduces to a centroid translation; with no shared family at
// all the atom centroids are aligned instead, so alignment always succeeds on
// structures that have coordinates.
type FeatureAligner struct{}

func (FeatureAligner) Align(probe *mol.Mol, probeConf int, ref *mol.Mol, refConf int) error {
	probeCoords, err := probe.Conformer(probeConf)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAlignmentFailed, "probe conformer")
	}
	refFeats, err := features.Perceive(ref, refConf)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAlignmentFailed, "reference features")
	}
	probeFeats, err := features.Perceive(probe, probeConf)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAlignmentFailed, "probe features")
	}

	moving, fixed := familyCentroidPairs(probeFeats, refFeats)
	if len(moving) == 0 {
		refCoords, err := ref.Conformer(refConf)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeAlignmentFailed, "reference conformer")
		}
		shift := geom.Centroid(refCoords).Sub(geom.Centroid(probeCoords))
		for i := range probeCoords {
			probeCoords[i] = probeCoords[i].Add(shift)
		}
		return nil
	}

	tr, _, err := geom.Superpose(moving, fixed)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAlignmentFailed, "superpose feature centroids")
	}
	copy(probeCoords, tr.ApplyAll(probeCoords))
	return nil
}

// familyCentroidPairs returns one (probe, ref) centroid pair per feature
// family present on both structures.
func familyCentroidPairs(probeFeats, refFeats []features.Feature) (moving, fixed []geom.Vec3) {
	probeBy := features.ByFamily(probeFeats)
	refBy := features.ByFamily(refFeats)
	for _, fam := range features.Families {
		ps, rs := probeBy[fam], refBy[fam]
		if len(ps) == 0 || len(rs) == 0 {
			continue
		}
		moving = append(moving, featureCentroid(ps))
		fixed = append(fixed, featureCentroid(rs))
	}
	return moving, fixed
}

func featureCentroid(fs []features.Feature) geom.Vec3 {
	pts := make([]geom.Vec3, len(fs))
	for i, f := range fs {
		pts[i] = f.Pos
	}
	return geom.Centroid(pts)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scorer
// ─────────────────────────────────────────────────────────────────────────────

// OverlapScorer blends pharmacophore feature overlap with shape protrusion.
type OverlapScorer struct {
	// FeatureTol is the pairing radius; 0 uses DefaultFeatureTol.
	FeatureTol float64
	// Grid parameterizes the shape voxelization.
	Grid shape.Params
}

func (s OverlapScorer) Score(probe *mol.Mol, probeConf int, ref *mol.Mol, refConf int) (Score, error) {
	refFeats, err := features.Perceive(ref, refConf)
	if err != nil {
		return Score{}, errors.Wrap(err, errors.ErrCodeScoringFailed, "reference features")
	}
	probeFeats, err := features.Perceive(probe, probeConf)
	if err != nil {
		return Score{}, errors.Wrap(err, errors.ErrCodeScoringFailed, "probe features")
	}
	tol := s.FeatureTol
	if tol <= 0 {
		tol = DefaultFeatureTol
	}
	feature := features.OverlapScore(refFeats, probeFeats, tol)

	protrusion, err := shape.ProtrusionDist(probe, probeConf, ref, refConf, s.Grid)
	if err != nil {
		return Score{}, errors.Wrap(err, errors.ErrCodeScoringFailed, "shape protrusion")
	}
	return Combine(feature, protrusion), nil
}
