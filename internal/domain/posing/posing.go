// Package posing defines the pose-generation domain: the per-candidate stage
// machine, the blended pose score, and the three narrow toolkit interfaces
// orchestration depends on. The default implementations wrap the in-process
// chemistry toolkit; a production deployment would bind a full
// cheminformatics toolkit behind the same interfaces.
package posing

import (
	"strings"

	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/pkg/errors"
)

// DefaultNumConformers is the ensemble size when none is configured.
const DefaultNumConformers = 100

// ─────────────────────────────────────────────────────────────────────────────
// Strategy
// ─────────────────────────────────────────────────────────────────────────────

// Strategy selects how candidate poses are generated.
type Strategy string

const (
	// StrategyEnsemble embeds an unconstrained conformer ensemble and
	// aligns every member to the reference.
	StrategyEnsemble Strategy = "ensemble"
	// StrategyConstrained embeds a single conformer with the common
	// substructure pinned to the reference coordinates.
	StrategyConstrained Strategy = "constrained"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyEnsemble:
		return StrategyEnsemble, nil
	case StrategyConstrained:
		return StrategyConstrained, nil
	}
	return "", errors.Newf(errors.ErrCodeUnknownStrategy,
		"pose strategy %q is not supported, want %q or %q", s, StrategyEnsemble, StrategyConstrained)
}

// ─────────────────────────────────────────────────────────────────────────────
// Stage machine
// ─────────────────────────────────────────────────────────────────────────────

// Stage is the linear per-candidate pose pipeline state. Candidates only move
// forward; a failure freezes the candidate at the stage it reached, which the
// skip report records.
type Stage int

const (
	StageUnembedded Stage = iota
	StageConformersGenerated
	StageAligned
	StageScored
	StageBestSelected
)

func (s Stage) String() string {
	switch s {
	case StageUnembedded:
		return "unembedded"
	case StageConformersGenerated:
		return "conformers-generated"
	case StageAligned:
		return "aligned"
	case StageScored:
		return "scored"
	case StageBestSelected:
		return "best-selected"
	default:
		return "unknown"
	}
}

// Next returns the following stage; terminal stages return themselves.
func (s Stage) Next() Stage {
	if s >= StageBestSelected {
		return StageBestSelected
	}
	return s + 1
}

// ─────────────────────────────────────────────────────────────────────────────
// Score
// ─────────────────────────────────────────────────────────────────────────────

// Score is the blended pose quality for one aligned conformer. Feature and
// Protrusion are stored already clipped to [0,1]; Combined is in [0,1] with
// higher better.
type Score struct {
	Feature    float64 `json:"feature"`
	Protrusion float64 `json:"protrusion"`
	Combined   float64 `json:"combined"`
}

// Combine blends the raw sub-scores: each term is clipped to [0,1], then
// combined = 0.5*feature + 0.5*(1-protrusion).
func Combine(feature, protrusion float64) Score {
	f := clip01(feature)
	p := clip01(protrusion)
	return Score{Feature: f, Protrusion: p, Combined: 0.5*f + 0.5*(1-p)}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ─────────────────────────────────────────────────────────────────────────────
// Toolkit interfaces
// ─────────────────────────────────────────────────────────────────────────────

// Embedder generates 3D conformers. Implementations never modify their
// inputs; they return fresh structures carrying the new conformers.
type Embedder interface {
	// Ensemble returns a copy of m carrying count embedded conformers.
	// Seed 0 draws a fresh random stream per call.
	Ensemble(m *mol.Mol, count int, seed int64) (*mol.Mol, error)

	// Constrained returns a single-conformer copy of cand whose common
	// substructure with ref is pinned to ref's conformer refConf, plus the
	// pinned candidate atom indices.
	Constrained(cand, ref *mol.Mol, refConf int, seed int64) (*mol.Mol, []int, error)
}

// Aligner rigidly moves one probe conformer onto the reference frame,
// mutating the probe's stored conformer in place.
type Aligner interface {
	Align(probe *mol.Mol, probeConf int, ref *mol.Mol, refConf int) error
}

// Scorer evaluates one aligned probe conformer against the reference.
type Scorer interface {
	Score(probe *mol.Mol, probeConf int, ref *mol.Mol, refConf int) (Score, error)
}

// Toolkit bundles the three dependencies pose orchestration needs.
type Toolkit struct {
	Embedder Embedder
	Aligner  Aligner
	Scorer   Scorer
}

// Result is the outcome of posing one candidate: the winning conformer as a
// single-conformer structure, its score, and which ensemble member won.
type Result struct {
	Best      *mol.Mol `json:"-"`
	Score     Score    `json:"score"`
	Conformer int      `json:"conformer"`
}
