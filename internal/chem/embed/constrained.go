package embed

import (
	"math/rand"

	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mcs"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/pkg/errors"
)

// DefaultConstrainedSeed seeds constrained embedding when the caller supplies
// none, so repeated runs over the same elaboration reproduce coordinates.
const DefaultConstrainedSeed = 42

// EmbedConstrained builds a conformer for cand whose maximum common
// substructure with ref is pinned at the reference coordinates: the mapping
// is found, reference positions are transplanted onto the matched candidate
// atoms, and the remainder is embedded around that core with explicit
// hydrogens that are stripped afterwards. The result is a copy of cand
// carrying one conformer in the reference frame, plus the pinned candidate
// atom indices.
//
// Non-convergence is ErrCodeEmbeddingFailed; a candidate sharing no usable
// substructure with ref is ErrCodeNoCommonSubstructure.
func EmbedConstrained(cand, ref *mol.Mol, refConf int, p Params) (*mol.Mol, []int, error) {
	if ref.NumConformers() == 0 {
		return nil, nil, errors.New(errors.ErrCodeNoConformers,
			"reference structure has no conformer to constrain against")
	}
	refCoords, err := ref.Conformer(refConf)
	if err != nil {
		return nil, nil, err
	}

	mapping, err := mcs.Find(cand, ref, mcs.DefaultOptions())
	if err != nil {
		return nil, nil, err
	}

	if p.Seed == 0 {
		p.Seed = DefaultConstrainedSeed
	}

	// Hydrogens participate in the embedding so the heavy-atom geometry
	// relaxes realistically; AddHs appends them, leaving heavy indices
	// untouched.
	work := mol.AddHs(cand)
	n := work.NumAtoms()
	fixed := make([]bool, n)
	pinned := make([]geom.Vec3, n)
	for _, pr := range mapping.Pairs {
		fixed[pr[0]] = true
		pinned[pr[0]] = refCoords[pr[1]]
	}

	b := rawBounds(work)
	// The core geometry is known exactly; writing it into the bounds lets
	// the metrization respect the template before any minimization.
	for x := 0; x < len(mapping.Pairs)-1; x++ {
		for y := x + 1; y < len(mapping.Pairs); y++ {
			i, j := mapping.Pairs[x][0], mapping.Pairs[y][0]
			d := pinned[i].Dist(pinned[j])
			b.set(i, j, d, d)
		}
	}
	b.smooth()

	rng := rand.New(rand.NewSource(p.Seed))
	var coords []geom.Vec3
	viol := 0.0
	converged := false
	for attempt := 0; attempt < embedAttempts; attempt++ {
		coords = embedOnce(b, rng, p.iters(), fixed, pinned)
		if viol = maxViolation(coords, b); viol <= convergenceLimit {
			converged = true
			break
		}
	}
	if !converged {
		return nil, nil, errors.Newf(errors.ErrCodeEmbeddingFailed,
			"constrained embedding did not converge (worst violation %.2f Å over a %d-atom core)",
			viol, mapping.Size())
	}

	out := cand.Copy()
	out.ClearConformers()
	if _, err := out.AddConformer(coords[:cand.NumAtoms()]); err != nil {
		return nil, nil, err
	}
	return out, mapping.CandidateAtoms(), nil
}
