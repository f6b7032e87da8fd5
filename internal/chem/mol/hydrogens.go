package mol

import (
	"math"

	"github.com/molforge/fragelab/internal/chem/geom"
)

// perceiveImplicitHydrogens fills Atom.ImplicitH from default valences,
// formal charges, and the explicit bond order sum. Aromatic bonds count
// 1.5; the sum is rounded before subtraction.
func (m *Mol) perceiveImplicitHydrogens() {
	sums := make([]float64, len(m.Atoms))
	for _, b := range m.Bonds {
		sums[b.From] += b.Order.Nominal()
		sums[b.To] += b.Order.Nominal()
	}

	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.Element == "H" {
			a.ImplicitH = 0
			continue
		}
		dv, ok := DefaultValence(a.Element)
		if !ok {
			a.ImplicitH = 0
			continue
		}
		valence := dv
		switch a.Element {
		case "C", "Si":
			// Carbocations and carbanions both drop to three bonds.
			valence -= abs(a.Charge)
		case "B":
			valence -= a.Charge // borates gain a bond
		default:
			valence += a.Charge // N+ 4, N- 2, O- 1, O+ 3
		}
		h := valence - int(math.Round(sums[i]))
		if h < 0 {
			h = 0
		}
		a.ImplicitH = h
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// hBondLength returns the ideal X-H distance for the heavy element.
func hBondLength(element string) float64 {
	return CovalentRadius(element) + CovalentRadius("H")
}

// AddHs returns a copy of m with implicit hydrogens realised as explicit
// atoms. When conformers are present, each hydrogen is placed at the ideal
// X-H length along directions that spread away from the existing
// substituents; the placement is coarse but sufficient for force-field
// cleanup and shape grids.
func AddHs(m *Mol) *Mol {
	out := m.Copy()
	nHeavy := len(out.Atoms)

	for idx := 0; idx < nHeavy; idx++ {
		hCount := out.Atoms[idx].ImplicitH
		if hCount == 0 {
			continue
		}
		out.Atoms[idx].ImplicitH = 0
		for j := 0; j < hCount; j++ {
			hIdx := out.AddAtom(Atom{Element: "H"})
			out.Bonds = append(out.Bonds, Bond{From: idx, To: hIdx, Order: Single})
			for ci := range out.confs {
				out.confs[ci] = append(out.confs[ci],
					hydrogenPosition(m, out.confs[ci], idx, j, hCount))
			}
		}
	}
	return out
}

// hydrogenPosition picks a coordinate for the j-th of hCount hydrogens on
// heavy atom idx given the partially extended conformer coords.
func hydrogenPosition(orig *Mol, coords []geom.Vec3, idx, j, hCount int) geom.Vec3 {
	p := coords[idx]
	bl := hBondLength(orig.Atoms[idx].Element)

	// Mean direction of the existing substituents.
	var sum geom.Vec3
	n := 0
	for _, nb := range orig.Neighbors(idx) {
		d := coords[nb].Sub(p)
		if d.Norm() > 1e-9 {
			sum = sum.Add(d.Normalize())
			n++
		}
	}

	var base geom.Vec3
	if n == 0 {
		base = geom.Vec3{1, 0, 0}
	} else {
		base = sum.Scale(-1).Normalize()
		if base.Norm() < 1e-9 {
			// Substituents cancel exactly (linear centre); pick any
			// perpendicular.
			base = perpendicularTo(coords[orig.Neighbors(idx)[0]].Sub(p))
		}
	}
	if hCount == 1 {
		return p.Add(base.Scale(bl))
	}

	// Fan the hydrogens on a cone around the base direction.
	u := perpendicularTo(base)
	v := base.Cross(u).Normalize()
	theta := 109.5 / 2 * math.Pi / 180
	phi := 2 * math.Pi * float64(j) / float64(hCount)
	dir := base.Scale(math.Cos(theta)).
		Add(u.Scale(math.Sin(theta) * math.Cos(phi))).
		Add(v.Scale(math.Sin(theta) * math.Sin(phi))).
		Normalize()
	return p.Add(dir.Scale(bl))
}

// perpendicularTo returns a unit vector perpendicular to d.
func perpendicularTo(d geom.Vec3) geom.Vec3 {
	axis := geom.Vec3{1, 0, 0}
	if math.Abs(d.Normalize()[0]) > 0.9 {
		axis = geom.Vec3{0, 1, 0}
	}
	return d.Cross(axis).Normalize()
}

// RemoveHs returns a copy of m with explicit hydrogens folded back into the
// implicit counts of their heavy neighbours. Conformer coordinates for the
// removed atoms are dropped.
func RemoveHs(m *Mol) *Mol {
	keep := make([]int, 0, len(m.Atoms)) // old indices of retained atoms
	remap := make([]int, len(m.Atoms))
	for i := range remap {
		remap[i] = -1
	}
	for i, a := range m.Atoms {
		if a.Element == "H" {
			continue
		}
		remap[i] = len(keep)
		keep = append(keep, i)
	}

	out := NewMol(m.Name)
	if m.tags != nil {
		out.tags = make(map[string]string, len(m.tags))
		for k, v := range m.tags {
			out.tags[k] = v
		}
	}
	out.Atoms = make([]Atom, len(keep))
	for newIdx, oldIdx := range keep {
		out.Atoms[newIdx] = m.Atoms[oldIdx]
	}

	for _, b := range m.Bonds {
		fh := m.Atoms[b.From].Element == "H"
		th := m.Atoms[b.To].Element == "H"
		switch {
		case fh && th:
			// H-H bond, drop entirely
		case fh:
			out.Atoms[remap[b.To]].ImplicitH++
		case th:
			out.Atoms[remap[b.From]].ImplicitH++
		default:
			out.Bonds = append(out.Bonds, Bond{
				From:   remap[b.From],
				To:     remap[b.To],
				Order:  b.Order,
				InRing: b.InRing,
			})
		}
	}

	for _, conf := range m.confs {
		filtered := make([]geom.Vec3, len(keep))
		for newIdx, oldIdx := range keep {
			filtered[newIdx] = conf[oldIdx]
		}
		out.confs = append(out.confs, filtered)
	}
	return out
}
