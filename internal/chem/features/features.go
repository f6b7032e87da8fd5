// Package features perceives pharmacophore features over a 3D conformer. The
// family set is fixed: donor, acceptor, negative-ionizable,
// positive-ionizable, zinc-binder, aromatic, hydrophobe, lumped-hydrophobe.
// Perception rules are simplified SMARTS-free equivalents of the usual
// definition files; a production deployment would bind a full toolkit.
package features

import (
	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mol"
)

// Family is a pharmacophore feature family.
type Family int

const (
	Donor Family = iota
	Acceptor
	NegIonizable
	PosIonizable
	ZnBinder
	Aromatic
	Hydrophobe
	LumpedHydrophobe
)

// Families lists every family, in scoring order.
var Families = [...]Family{
	Donor, Acceptor, NegIonizable, PosIonizable,
	ZnBinder, Aromatic, Hydrophobe, LumpedHydrophobe,
}

func (f Family) String() string {
	switch f {
	case Donor:
		return "donor"
	case Acceptor:
		return "acceptor"
	case NegIonizable:
		return "negative-ionizable"
	case PosIonizable:
		return "positive-ionizable"
	case ZnBinder:
		return "zinc-binder"
	case Aromatic:
		return "aromatic"
	case Hydrophobe:
		return "hydrophobe"
	case LumpedHydrophobe:
		return "lumped-hydrophobe"
	default:
		return "unknown"
	}
}

// Feature is one perceived pharmacophore point.
type Feature struct {
	Family Family
	Pos    geom.Vec3
	Atoms  []int
}

// Perceive extracts every feature of the structure using the coordinates of
// conformer confID.
func Perceive(m *mol.Mol, confID int) ([]Feature, error) {
	coords, err := m.Conformer(confID)
	if err != nil {
		return nil, err
	}

	var out []Feature
	out = append(out, donors(m, coords)...)
	out = append(out, acceptors(m, coords)...)
	out = append(out, negIonizable(m, coords)...)
	out = append(out, posIonizable(m, coords)...)
	out = append(out, znBinders(m, coords)...)
	out = append(out, aromaticRings(m, coords)...)
	hydro := hydrophobes(m, coords)
	out = append(out, hydro...)
	out = append(out, lumpedHydrophobes(m, coords, hydro)...)
	return out, nil
}

// ByFamily groups features for reporting and per-family matching.
func ByFamily(fs []Feature) map[Family][]Feature {
	out := make(map[Family][]Feature)
	for _, f := range fs {
		out[f.Family] = append(out[f.Family], f)
	}
	return out
}

// OverlapScore greedily matches ref features against probe features of the
// same family within tol angstroms and normalizes the matched count by the
// smaller feature count. Identical feature sets score exactly 1. Either side
// empty scores 0.
func OverlapScore(ref, probe []Feature, tol float64) float64 {
	if len(ref) == 0 || len(probe) == 0 {
		return 0
	}
	used := make([]bool, len(probe))
	matched := 0
	for _, fa := range ref {
		best := -1
		bestD := tol
		for j, fb := range probe {
			if used[j] || fb.Family != fa.Family {
				continue
			}
			if d := fa.Pos.Dist(fb.Pos); d <= bestD {
				bestD = d
				best = j
			}
		}
		if best >= 0 {
			used[best] = true
			matched++
		}
	}
	denom := len(ref)
	if len(probe) < denom {
		denom = len(probe)
	}
	return float64(matched) / float64(denom)
}

// ── perception rules ──────────────────────────────────────────────────────

func donors(m *mol.Mol, coords []geom.Vec3) []Feature {
	var out []Feature
	for i, a := range m.Atoms {
		if (a.Element == "N" || a.Element == "O") && totalH(m, i) > 0 {
			out = append(out, atomFeature(Donor, coords, i))
		}
	}
	return out
}

func acceptors(m *mol.Mol, coords []geom.Vec3) []Feature {
	var out []Feature
	for i, a := range m.Atoms {
		switch a.Element {
		case "O":
			out = append(out, atomFeature(Acceptor, coords, i))
		case "N":
			if a.Charge > 0 {
				continue
			}
			// Pyrrole-type NH and amide N have no available lone pair.
			if a.Aromatic && totalH(m, i) > 0 {
				continue
			}
			if isAmideN(m, i) {
				continue
			}
			out = append(out, atomFeature(Acceptor, coords, i))
		}
	}
	return out
}

func negIonizable(m *mol.Mol, coords []geom.Vec3) []Feature {
	var out []Feature
	for i, a := range m.Atoms {
		if a.Element != "C" {
			continue
		}
		carbonyl, hydroxylLike := -1, -1
		for _, j := range m.Neighbors(i) {
			if m.Atoms[j].Element != "O" {
				continue
			}
			bi := m.BondBetween(i, j)
			switch {
			case m.Bonds[bi].Order == mol.Double:
				carbonyl = j
			case m.Atoms[j].Charge < 0 || totalH(m, j) > 0:
				hydroxylLike = j
			}
		}
		if carbonyl >= 0 && hydroxylLike >= 0 {
			group := []int{i, carbonyl, hydroxylLike}
			out = append(out, groupFeature(NegIonizable, coords, group))
		}
	}
	return out
}

func posIonizable(m *mol.Mol, coords []geom.Vec3) []Feature {
	var out []Feature
	for i, a := range m.Atoms {
		switch {
		case a.Charge > 0:
			out = append(out, atomFeature(PosIonizable, coords, i))
		case a.Element == "N" && !a.Aromatic && isBasicAmine(m, i):
			out = append(out, atomFeature(PosIonizable, coords, i))
		case a.Element == "C" && isAmidineCarbon(m, i):
			out = append(out, atomFeature(PosIonizable, coords, i))
		}
	}
	return out
}

func znBinders(m *mol.Mol, coords []geom.Vec3) []Feature {
	var out []Feature
	for i, a := range m.Atoms {
		switch {
		case a.Element == "S" && (totalH(m, i) > 0 || a.Charge < 0):
			out = append(out, atomFeature(ZnBinder, coords, i))
		case a.Element == "N" && a.Aromatic && totalH(m, i) == 0:
			out = append(out, atomFeature(ZnBinder, coords, i))
		case a.Element == "O" && a.Charge < 0:
			out = append(out, atomFeature(ZnBinder, coords, i))
		}
	}
	return out
}

func aromaticRings(m *mol.Mol, coords []geom.Vec3) []Feature {
	var out []Feature
	for _, ring := range m.Rings() {
		all := true
		for _, idx := range ring {
			if !m.Atoms[idx].Aromatic {
				all = false
				break
			}
		}
		if all && len(ring) > 0 {
			out = append(out, groupFeature(Aromatic, coords, ring))
		}
	}
	return out
}

// hydrophobes marks non-aromatic, uncharged carbons whose heavy neighbors are
// all carbon.
func hydrophobes(m *mol.Mol, coords []geom.Vec3) []Feature {
	var out []Feature
	for i, a := range m.Atoms {
		if a.Element != "C" || a.Aromatic || a.Charge != 0 {
			continue
		}
		plain := true
		for _, j := range m.Neighbors(i) {
			if e := m.Atoms[j].Element; e != "C" && e != "H" {
				plain = false
				break
			}
		}
		if plain {
			out = append(out, atomFeature(Hydrophobe, coords, i))
		}
	}
	return out
}

// lumpedHydrophobes merges connected runs of three or more hydrophobic
// carbons into a single centroid feature.
func lumpedHydrophobes(m *mol.Mol, coords []geom.Vec3, hydro []Feature) []Feature {
	member := make(map[int]bool, len(hydro))
	for _, f := range hydro {
		member[f.Atoms[0]] = true
	}

	seen := make(map[int]bool, len(member))
	var out []Feature
	for _, f := range hydro {
		idx := f.Atoms[0]
		if seen[idx] {
			continue
		}
		// BFS inside the hydrophobic subgraph.
		comp := []int{idx}
		seen[idx] = true
		for q := 0; q < len(comp); q++ {
			for _, j := range m.Neighbors(comp[q]) {
				if member[j] && !seen[j] {
					seen[j] = true
					comp = append(comp, j)
				}
			}
		}
		if len(comp) >= 3 {
			out = append(out, groupFeature(LumpedHydrophobe, coords, comp))
		}
	}
	return out
}

// ── helpers ───────────────────────────────────────────────────────────────

func atomFeature(fam Family, coords []geom.Vec3, idx int) Feature {
	return Feature{Family: fam, Pos: coords[idx], Atoms: []int{idx}}
}

func groupFeature(fam Family, coords []geom.Vec3, idxs []int) Feature {
	pts := make([]geom.Vec3, len(idxs))
	for i, idx := range idxs {
		pts[i] = coords[idx]
	}
	atoms := make([]int, len(idxs))
	copy(atoms, idxs)
	return Feature{Family: fam, Pos: geom.Centroid(pts), Atoms: atoms}
}

func totalH(m *mol.Mol, idx int) int {
	n := m.Atoms[idx].ImplicitH
	for _, j := range m.Neighbors(idx) {
		if m.Atoms[j].Element == "H" {
			n++
		}
	}
	return n
}

func isAmideN(m *mol.Mol, idx int) bool {
	for _, j := range m.Neighbors(idx) {
		if m.Atoms[j].Element != "C" {
			continue
		}
		for _, b := range m.Bonds {
			if b.Order != mol.Double {
				continue
			}
			if (b.From == j && m.Atoms[b.To].Element == "O") ||
				(b.To == j && m.Atoms[b.From].Element == "O") {
				return true
			}
		}
	}
	return false
}

// isBasicAmine reports an sp3 nitrogen outside amide context.
func isBasicAmine(m *mol.Mol, idx int) bool {
	for _, b := range m.Bonds {
		if (b.From == idx || b.To == idx) && b.Order != mol.Single {
			return false
		}
	}
	return !isAmideN(m, idx)
}

// isAmidineCarbon reports a carbon double-bonded to one nitrogen with at
// least one further nitrogen neighbor (amidine or guanidine core).
func isAmidineCarbon(m *mol.Mol, idx int) bool {
	if m.Atoms[idx].Aromatic {
		return false
	}
	doubleN, singleN := 0, 0
	for _, j := range m.Neighbors(idx) {
		if m.Atoms[j].Element != "N" {
			continue
		}
		bi := m.BondBetween(idx, j)
		if m.Bonds[bi].Order == mol.Double {
			doubleN++
		} else {
			singleN++
		}
	}
	return doubleN >= 1 && singleN >= 1
}
