// Package mcs finds the maximum common connected substructure between two
// molecular graphs. The constrained embedder uses the mapping to transplant
// reference coordinates onto matched candidate atoms.
package mcs

import (
	"sort"

	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/pkg/errors"
)

// Options tunes the search.
type Options struct {
	// MatchBondOrder requires mapped bonds to agree on order; two aromatic
	// bonds always agree regardless of their kekulized orders.
	MatchBondOrder bool

	// MinAtoms is the smallest acceptable common substructure. Rigid
	// anchoring needs three atoms to pin rotation.
	MinAtoms int
}

// DefaultOptions matches elements and bond orders and demands a 3-atom core.
func DefaultOptions() Options {
	return Options{MatchBondOrder: true, MinAtoms: 3}
}

// Mapping pairs candidate atom indices with reference atom indices.
type Mapping struct {
	Pairs [][2]int // (candidate, reference), sorted by candidate index
}

// Size returns the number of mapped atoms.
func (mp Mapping) Size() int { return len(mp.Pairs) }

// CandidateAtoms lists the mapped candidate atom indices in ascending order.
func (mp Mapping) CandidateAtoms() []int {
	out := make([]int, len(mp.Pairs))
	for i, p := range mp.Pairs {
		out[i] = p[0]
	}
	return out
}

// RefFor returns the reference atom mapped to the candidate atom, if any.
func (mp Mapping) RefFor(candAtom int) (int, bool) {
	for _, p := range mp.Pairs {
		if p[0] == candAtom {
			return p[1], true
		}
	}
	return 0, false
}

// Find returns a maximum common connected substructure mapping from candidate
// onto reference. Ties resolve deterministically (lowest atom indices). A
// result smaller than opts.MinAtoms is ErrCodeNoCommonSubstructure.
func Find(candidate, reference *mol.Mol, opts Options) (Mapping, error) {
	if opts.MinAtoms <= 0 {
		opts.MinAtoms = 1
	}
	if candidate.NumAtoms() == 0 || reference.NumAtoms() == 0 {
		return Mapping{}, errors.New(errors.ErrCodeNoCommonSubstructure,
			"cannot map an empty structure")
	}

	s := &search{
		cand: candidate,
		ref:  reference,
		opts: opts,
		c2r:  make([]int, candidate.NumAtoms()),
		rUse: make([]bool, reference.NumAtoms()),
	}
	for i := range s.c2r {
		s.c2r[i] = -1
	}

	// Every compatible pair seeds one search; the grower only adds atoms
	// connected to the seed, so disconnected candidates still anchor on
	// their best single component.
	for ci := 0; ci < candidate.NumAtoms(); ci++ {
		for ri := 0; ri < reference.NumAtoms(); ri++ {
			if candidate.Atoms[ci].Element != reference.Atoms[ri].Element {
				continue
			}
			s.c2r[ci] = ri
			s.rUse[ri] = true
			s.mapped = 1
			s.grow()
			s.c2r[ci] = -1
			s.rUse[ri] = false
			s.mapped = 0
		}
	}

	if len(s.best) < opts.MinAtoms {
		return Mapping{}, errors.Newf(errors.ErrCodeNoCommonSubstructure,
			"largest common substructure has %d atoms, need %d", len(s.best), opts.MinAtoms)
	}
	pairs := make([][2]int, len(s.best))
	copy(pairs, s.best)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return Mapping{Pairs: pairs}, nil
}

type search struct {
	cand   *mol.Mol
	ref    *mol.Mol
	opts   Options
	c2r    []int
	rUse   []bool
	mapped int
	best   [][2]int
}

// grow extends the current partial mapping along the candidate frontier,
// branching over compatible reference atoms and over skipping the frontier
// atom entirely.
func (s *search) grow() {
	// Bound: even mapping every remaining candidate atom cannot beat best.
	remaining := 0
	for _, r := range s.c2r {
		if r == -1 {
			remaining++
		}
	}
	if s.mapped+remaining <= len(s.best) {
		return
	}

	ci := s.nextFrontier()
	if ci < 0 {
		if s.mapped > len(s.best) {
			s.best = s.snapshot()
		}
		return
	}

	for _, ri := range s.refCandidates(ci) {
		s.c2r[ci] = ri
		s.rUse[ri] = true
		s.mapped++
		s.grow()
		s.mapped--
		s.rUse[ri] = false
		s.c2r[ci] = -1
	}

	// Skip branch: exclude ci from this subtree.
	s.c2r[ci] = -2
	s.grow()
	s.c2r[ci] = -1
}

// nextFrontier picks the lowest-index unmapped candidate atom adjacent to a
// mapped one.
func (s *search) nextFrontier() int {
	for ci, r := range s.c2r {
		if r != -1 {
			continue
		}
		for _, j := range s.cand.Neighbors(ci) {
			if s.c2r[j] >= 0 {
				return ci
			}
		}
	}
	return -1
}

// refCandidates lists reference atoms that can host candidate atom ci:
// element match, unused, and bond-consistent with every mapped neighbor.
func (s *search) refCandidates(ci int) []int {
	var anchor int = -1
	for _, j := range s.cand.Neighbors(ci) {
		if s.c2r[j] >= 0 {
			anchor = s.c2r[j]
			break
		}
	}
	if anchor < 0 {
		return nil
	}

	var out []int
	for _, ri := range s.ref.Neighbors(anchor) {
		if s.rUse[ri] || s.ref.Atoms[ri].Element != s.cand.Atoms[ci].Element {
			continue
		}
		if s.consistent(ci, ri) {
			out = append(out, ri)
		}
	}
	sort.Ints(out)
	return out
}

// consistent checks every mapped candidate neighbor of ci against the
// reference adjacency of ri.
func (s *search) consistent(ci, ri int) bool {
	for _, cj := range s.cand.Neighbors(ci) {
		rj := s.c2r[cj]
		if rj < 0 {
			continue
		}
		cb := s.cand.BondBetween(ci, cj)
		rb := s.ref.BondBetween(ri, rj)
		if rb < 0 {
			return false
		}
		if s.opts.MatchBondOrder && !s.bondsAgree(cb, rb) {
			return false
		}
	}
	return true
}

func (s *search) bondsAgree(cb, rb int) bool {
	ca := s.cand.Bonds[cb].Order == mol.Aromatic || s.cand.IsAromaticBond(cb)
	ra := s.ref.Bonds[rb].Order == mol.Aromatic || s.ref.IsAromaticBond(rb)
	if ca && ra {
		return true
	}
	if ca != ra {
		return false
	}
	return s.cand.Bonds[cb].Order == s.ref.Bonds[rb].Order
}

func (s *search) snapshot() [][2]int {
	out := make([][2]int, 0, s.mapped)
	for ci, ri := range s.c2r {
		if ri >= 0 {
			out = append(out, [2]int{ci, ri})
		}
	}
	return out
}
