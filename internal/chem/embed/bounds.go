package embed

import (
	"math"

	"github.com/molforge/fragelab/internal/chem/mol"
)

const (
	bondSlack  = 0.01 // slack on bonded distances, Å
	angleSlack = 0.06 // slack on geminal distances, Å

	tetrahedralAngle = 109.471 * math.Pi / 180
	trigonalAngle    = 120.0 * math.Pi / 180

	// maxBondLength caps a single through-bond step when building the
	// extended-chain upper bound.
	maxBondLength = 1.70
)

// boundsMatrix holds symmetric lower and upper distance bounds in ångströms.
type boundsMatrix struct {
	n     int
	lower [][]float64
	upper [][]float64
}

func newBoundsMatrix(n int) *boundsMatrix {
	b := &boundsMatrix{
		n:     n,
		lower: make([][]float64, n),
		upper: make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		b.lower[i] = make([]float64, n)
		b.upper[i] = make([]float64, n)
	}
	return b
}

// set overwrites both bounds for the pair.
func (b *boundsMatrix) set(i, j int, lo, hi float64) {
	b.lower[i][j], b.lower[j][i] = lo, lo
	b.upper[i][j], b.upper[j][i] = hi, hi
}

// tighten narrows the pair's interval to its intersection with [lo, hi]. An
// empty intersection collapses to the smaller distance; strained rings pull
// atoms closer than the open-chain geometry would.
func (b *boundsMatrix) tighten(i, j int, lo, hi float64) {
	if lo > b.lower[i][j] {
		b.lower[i][j], b.lower[j][i] = lo, lo
	}
	if hi < b.upper[i][j] {
		b.upper[i][j], b.upper[j][i] = hi, hi
	}
	if b.lower[i][j] > b.upper[i][j] {
		b.lower[i][j], b.lower[j][i] = b.upper[i][j], b.upper[i][j]
	}
}

// rawBounds assembles the unsmoothed bounds matrix: exact-ish 1-2 distances
// from covalent radii, 1-3 distances from ideal angles, van der Waals contact
// below and extended-chain length above for everything further apart.
func rawBounds(m *mol.Mol) *boundsMatrix {
	n := m.NumAtoms()
	b := newBoundsMatrix(n)
	topo := m.TopologicalDistances()

	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			steps := topo[i][j]
			hi := maxBondLength * float64(n)
			if steps > 0 {
				hi = maxBondLength * float64(steps)
			}
			var lo float64
			contact := mol.VdwRadius(m.Atoms[i].Element) + mol.VdwRadius(m.Atoms[j].Element)
			switch {
			case steps == 1 || steps == 2:
				// Bond and angle terms below own these pairs; keep the
				// floor out of their way.
				lo = 0.5
			case steps == 3:
				// 1-4 pairs fold well inside van der Waals contact in
				// gauche and cis arrangements.
				lo = 0.7 * contact
			default:
				lo = 0.9 * contact
			}
			if lo > hi {
				lo = hi
			}
			b.set(i, j, lo, hi)
		}
	}

	// Geminal pairs before bonded ones: in a three-membered ring the same
	// pair is both, and the bond geometry wins.
	adj := m.AdjacencyList()
	rings := m.Rings()
	for k := 0; k < n; k++ {
		bonds := adj[k]
		for x := 0; x < len(bonds)-1; x++ {
			for y := x + 1; y < len(bonds); y++ {
				i := otherEnd(m, bonds[x], k)
				j := otherEnd(m, bonds[y], k)
				d1 := idealBondLength(m, bonds[x])
				d2 := idealBondLength(m, bonds[y])
				theta := idealAngle(m, rings, i, k, j)
				d13 := math.Sqrt(d1*d1 + d2*d2 - 2*d1*d2*math.Cos(theta))
				b.tighten(i, j, d13-angleSlack, d13+angleSlack)
			}
		}
	}

	for bi := range m.Bonds {
		ideal := idealBondLength(m, bi)
		b.set(m.Bonds[bi].From, m.Bonds[bi].To, ideal-bondSlack, ideal+bondSlack)
	}
	return b
}

// boundsFor returns the smoothed bounds matrix for m.
func boundsFor(m *mol.Mol) *boundsMatrix {
	b := rawBounds(m)
	b.smooth()
	return b
}

// smooth enforces the triangle inequalities over all atom triples: an upper
// bound never exceeds any two-leg detour, and a lower bound never drops below
// what another atom's bounds force.
func (b *boundsMatrix) smooth() {
	for k := 0; k < b.n; k++ {
		for i := 0; i < b.n-1; i++ {
			if i == k {
				continue
			}
			for j := i + 1; j < b.n; j++ {
				if j == k {
					continue
				}
				if hi := b.upper[i][k] + b.upper[k][j]; hi < b.upper[i][j] {
					b.upper[i][j], b.upper[j][i] = hi, hi
				}
				if lo := b.lower[i][k] - b.upper[k][j]; lo > b.lower[i][j] {
					b.lower[i][j], b.lower[j][i] = lo, lo
				}
				if lo := b.lower[j][k] - b.upper[k][i]; lo > b.lower[i][j] {
					b.lower[i][j], b.lower[j][i] = lo, lo
				}
				if b.lower[i][j] > b.upper[i][j] {
					b.lower[i][j], b.lower[j][i] = b.upper[i][j], b.upper[i][j]
				}
			}
		}
	}
}

func otherEnd(m *mol.Mol, bi, atom int) int {
	if m.Bonds[bi].From == atom {
		return m.Bonds[bi].To
	}
	return m.Bonds[bi].From
}

// idealBondLength estimates the equilibrium length of bond bi from covalent
// radii, contracted for higher bond orders.
func idealBondLength(m *mol.Mol, bi int) float64 {
	b := m.Bonds[bi]
	base := mol.CovalentRadius(m.Atoms[b.From].Element) + mol.CovalentRadius(m.Atoms[b.To].Element)
	switch {
	case m.IsAromaticBond(bi):
		return base * 0.915
	case b.Order == mol.Double:
		return base * 0.87
	case b.Order == mol.Triple:
		return base * 0.78
	}
	return base
}

// idealAngle returns the i-k-j angle in radians: the centre's hybridization
// angle, narrowed to a ring's interior angle when a strained ring through all
// three atoms forces something tighter. Six-membered and larger rings relax
// through torsions instead.
func idealAngle(m *mol.Mol, rings [][]int, i, k, j int) float64 {
	angle := hybridAngle(m, k)
	for _, ring := range rings {
		if !containsAtom(ring, k) || !containsAtom(ring, i) || !containsAtom(ring, j) {
			continue
		}
		s := float64(len(ring))
		if interior := (s - 2) * math.Pi / s; interior < angle {
			angle = interior
		}
	}
	return angle
}

func hybridAngle(m *mol.Mol, k int) float64 {
	if m.Atoms[k].Aromatic {
		return trigonalAngle
	}
	double, triple := 0, 0
	for _, b := range m.Bonds {
		if b.From != k && b.To != k {
			continue
		}
		switch b.Order {
		case mol.Double:
			double++
		case mol.Triple:
			triple++
		}
	}
	switch {
	case triple > 0 || double > 1:
		return math.Pi
	case double == 1:
		return trigonalAngle
	}
	return tetrahedralAngle
}

func containsAtom(ring []int, atom int) bool {
	for _, a := range ring {
		if a == atom {
			return true
		}
	}
	return false
}
