// Package fragment holds the fragment-library domain: named immutable
// fragments with 3D conformations, the ordered read-only library loaded from
// an SDF file, elaboration provenance, and resolution of user selections into
// canonical elaboration keys.
package fragment

import (
	"github.com/molforge/fragelab/internal/chem/mol"
)

// Fragment is one library entry: a name and its 3D structure. Fragments are
// immutable once loaded; every pipeline stage reads, none writes.
type Fragment struct {
	Name string
	Mol  *mol.Mol
}

// HeavyAtoms returns the explicit (non-hydrogen) atom count.
func (f *Fragment) HeavyAtoms() int {
	n := 0
	for _, a := range f.Mol.Atoms {
		if a.Element != "H" {
			n++
		}
	}
	return n
}

// Formula returns the Hill-order molecular formula.
func (f *Fragment) Formula() string {
	return f.Mol.Formula()
}

// MolWeight returns the molecular weight including implicit hydrogens.
func (f *Fragment) MolWeight() float64 {
	return f.Mol.MolecularWeight()
}
