// Package descriptors computes the physicochemical descriptors used by the
// drug-likeness screen: molecular weight, an additive Wildman-Crippen style
// cLogP, and Lipinski hydrogen-bond acceptor/donor counts.
package descriptors

import (
	"github.com/molforge/fragelab/internal/chem/mol"
)

// Set holds the computed descriptor values for one structure.
type Set struct {
	MolWeight      float64 `json:"mol_weight"`
	CLogP          float64 `json:"clogp"`
	HBA            int     `json:"hba"`
	HBD            int     `json:"hbd"`
	RotatableBonds int     `json:"rotatable_bonds"`
	HeavyAtoms     int     `json:"heavy_atoms"`
}

// Compute evaluates every descriptor in one pass over the structure.
func Compute(m *mol.Mol) Set {
	return Set{
		MolWeight:      m.MolecularWeight(),
		CLogP:          CLogP(m),
		HBA:            HBAcceptors(m),
		HBD:            HBDonors(m),
		RotatableBonds: RotatableBonds(m),
		HeavyAtoms:     m.NumAtoms(),
	}
}

// Wildman-Crippen atomic contributions (J Chem Inf Comput Sci 39:868, 1999),
// collapsed to the coarse atom classes the screen needs.
const (
	logpCAliphatic = 0.1441  // C bonded to C/H only
	logpCHetero    = -0.2035 // aliphatic C with a heteroatom neighbor
	logpCAromatic  = 0.1581
	logpNAromatic  = -0.3239
	logpNDonor     = -1.0190 // aliphatic N carrying hydrogen
	logpNTertiary  = -0.3187
	logpOAromatic  = 0.1552
	logpOCarbonyl  = -0.1526
	logpOHydroxyl  = -0.2893
	logpOEther     = -0.0684
	logpOAnion     = -1.3260
	logpSulfur     = 0.6482
	logpPhosphorus = 0.8612
	logpFluorine   = 0.4202
	logpChlorine   = 0.6895
	logpBromine    = 0.8456
	logpIodine     = 0.8857
	logpHOnCarbon  = 0.1230
	logpHOnHetero  = -0.2677
	logpMetal      = -0.0025
)

// CLogP returns the additive calculated logP. Implicit hydrogens contribute
// according to the atom they sit on.
func CLogP(m *mol.Mol) float64 {
	sum := 0.0
	for i, a := range m.Atoms {
		sum += atomContribution(m, i)
		if a.ImplicitH > 0 {
			h := logpHOnCarbon
			if a.Element != "C" {
				h = logpHOnHetero
			}
			sum += float64(a.ImplicitH) * h
		}
	}
	return sum
}

func atomContribution(m *mol.Mol, idx int) float64 {
	a := m.Atoms[idx]
	switch a.Element {
	case "C":
		if a.Aromatic {
			return logpCAromatic
		}
		for _, j := range m.Neighbors(idx) {
			nb := m.Atoms[j].Element
			if nb != "C" && nb != "H" {
				return logpCHetero
			}
		}
		return logpCAliphatic
	case "N":
		if a.Aromatic {
			return logpNAromatic
		}
		if totalHydrogens(m, idx) > 0 {
			return logpNDonor
		}
		return logpNTertiary
	case "O":
		if a.Aromatic {
			return logpOAromatic
		}
		if a.Charge < 0 {
			return logpOAnion
		}
		if hasDoubleBond(m, idx) {
			return logpOCarbonyl
		}
		if totalHydrogens(m, idx) > 0 {
			return logpOHydroxyl
		}
		return logpOEther
	case "S":
		return logpSulfur
	case "P":
		return logpPhosphorus
	case "F":
		return logpFluorine
	case "Cl":
		return logpChlorine
	case "Br":
		return logpBromine
	case "I":
		return logpIodine
	case "H":
		for _, j := range m.Neighbors(idx) {
			if m.Atoms[j].Element != "C" {
				return logpHOnHetero
			}
		}
		return logpHOnCarbon
	default:
		return logpMetal
	}
}

// HBAcceptors returns the Lipinski acceptor count: every nitrogen and oxygen.
func HBAcceptors(m *mol.Mol) int {
	n := 0
	for _, a := range m.Atoms {
		if a.Element == "N" || a.Element == "O" {
			n++
		}
	}
	return n
}

// HBDonors returns the Lipinski donor count: the number of N-H and O-H bonds,
// implicit hydrogens included.
func HBDonors(m *mol.Mol) int {
	n := 0
	for i, a := range m.Atoms {
		if a.Element == "N" || a.Element == "O" {
			n += totalHydrogens(m, i)
		}
	}
	return n
}

// RotatableBonds counts acyclic single bonds between two non-terminal heavy
// atoms, excluding amide C-N bonds.
func RotatableBonds(m *mol.Mol) int {
	n := 0
	for _, b := range m.Bonds {
		if b.Order != mol.Single || b.InRing {
			continue
		}
		if heavyDegree(m, b.From) < 2 || heavyDegree(m, b.To) < 2 {
			continue
		}
		if isAmideBond(m, b) {
			continue
		}
		n++
	}
	return n
}

func totalHydrogens(m *mol.Mol, idx int) int {
	n := m.Atoms[idx].ImplicitH
	for _, j := range m.Neighbors(idx) {
		if m.Atoms[j].Element == "H" {
			n++
		}
	}
	return n
}

func heavyDegree(m *mol.Mol, idx int) int {
	n := 0
	for _, j := range m.Neighbors(idx) {
		if m.Atoms[j].Element != "H" {
			n++
		}
	}
	return n
}

func hasDoubleBond(m *mol.Mol, idx int) bool {
	for _, b := range m.Bonds {
		if (b.From == idx || b.To == idx) && b.Order == mol.Double {
			return true
		}
	}
	return false
}

// isAmideBond reports whether b is the C-N bond of an amide group: the carbon
// endpoint also carries a double bond to oxygen.
func isAmideBond(m *mol.Mol, b mol.Bond) bool {
	var c int
	switch {
	case m.Atoms[b.From].Element == "C" && m.Atoms[b.To].Element == "N":
		c = b.From
	case m.Atoms[b.From].Element == "N" && m.Atoms[b.To].Element == "C":
		c = b.To
	default:
		return false
	}
	for _, ob := range m.Bonds {
		if ob.Order != mol.Double {
			continue
		}
		if (ob.From == c && m.Atoms[ob.To].Element == "O") ||
			(ob.To == c && m.Atoms[ob.From].Element == "O") {
			return true
		}
	}
	return false
}
