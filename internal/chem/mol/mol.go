// Package mol defines the in-memory molecule model shared by the chemistry
// kit: atoms, bonds, conformers, and named data tags, plus graph, ring,
// aromaticity, and hydrogen perception. The model is deliberately small;
// production deployments would bind RDKit via CGo or a service boundary for
// full cheminformatics.
package mol

import (
	"fmt"

	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/pkg/errors"
)

// BondOrder encodes the bond multiplicity using MDL conventions.
type BondOrder int

const (
	Single   BondOrder = 1
	Double   BondOrder = 2
	Triple   BondOrder = 3
	Aromatic BondOrder = 4
)

// Nominal returns the integer multiplicity used in valence arithmetic;
// aromatic bonds count as 1.5 and are handled by the caller.
func (o BondOrder) Nominal() float64 {
	if o == Aromatic {
		return 1.5
	}
	return float64(o)
}

// Atom is a single atom. Aromatic and ImplicitH are derived state, filled in
// by Perceive; parsers may also set Aromatic directly from the input format.
type Atom struct {
	Element   string
	Charge    int
	Isotope   int
	Aromatic  bool
	ImplicitH int
	InRing    bool
}

// Bond connects the atoms at indices From and To (From < To is not required).
type Bond struct {
	From   int
	To     int
	Order  BondOrder
	InRing bool
}

// Other returns the bond endpoint that is not idx.
func (b Bond) Other(idx int) int {
	if b.From == idx {
		return b.To
	}
	return b.From
}

// Mol is a molecule: a labelled graph with zero or more 3D conformers and a
// set of named data tags (SDF data fields).
type Mol struct {
	Name  string
	Atoms []Atom
	Bonds []Bond

	confs [][]geom.Vec3
	tags  map[string]string
}

// NewMol returns an empty molecule with the given name.
func NewMol(name string) *Mol {
	return &Mol{Name: name}
}

// NumAtoms returns the number of explicit atoms.
func (m *Mol) NumAtoms() int { return len(m.Atoms) }

// NumBonds returns the number of bonds.
func (m *Mol) NumBonds() int { return len(m.Bonds) }

// NumConformers returns the number of stored conformers.
func (m *Mol) NumConformers() int { return len(m.confs) }

// AddAtom appends an atom and returns its index.
func (m *Mol) AddAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	return len(m.Atoms) - 1
}

// AddBond appends a bond between existing atoms.
func (m *Mol) AddBond(from, to int, order BondOrder) error {
	if from < 0 || from >= len(m.Atoms) || to < 0 || to >= len(m.Atoms) {
		return errors.Newf(errors.ErrCodeInvalidStructure,
			"bond endpoints (%d, %d) out of range for %d atoms", from, to, len(m.Atoms))
	}
	if from == to {
		return errors.New(errors.ErrCodeInvalidStructure, "self bond")
	}
	m.Bonds = append(m.Bonds, Bond{From: from, To: to, Order: order})
	return nil
}

// AddConformer stores a coordinate set and returns its index. The set must
// have exactly one position per atom.
func (m *Mol) AddConformer(coords []geom.Vec3) (int, error) {
	if len(coords) != len(m.Atoms) {
		return 0, errors.Newf(errors.ErrCodeInvalidStructure,
			"conformer has %d positions for %d atoms", len(coords), len(m.Atoms))
	}
	c := make([]geom.Vec3, len(coords))
	copy(c, coords)
	m.confs = append(m.confs, c)
	return len(m.confs) - 1, nil
}

// Conformer returns the coordinate set at index i. The returned slice is the
// stored one; callers that mutate it mutate the molecule.
func (m *Mol) Conformer(i int) ([]geom.Vec3, error) {
	if i < 0 || i >= len(m.confs) {
		return nil, errors.Newf(errors.ErrCodeInvalidStructure,
			"conformer index %d out of range [0, %d)", i, len(m.confs))
	}
	return m.confs[i], nil
}

// ClearConformers drops all stored coordinate sets.
func (m *Mol) ClearConformers() { m.confs = nil }

// Tag returns the named data field.
func (m *Mol) Tag(key string) (string, bool) {
	v, ok := m.tags[key]
	return v, ok
}

// SetTag stores a named data field.
func (m *Mol) SetTag(key, value string) {
	if m.tags == nil {
		m.tags = make(map[string]string)
	}
	m.tags[key] = value
}

// Tags returns a copy of all data fields.
func (m *Mol) Tags() map[string]string {
	out := make(map[string]string, len(m.tags))
	for k, v := range m.tags {
		out[k] = v
	}
	return out
}

// Copy returns a deep copy of the molecule.
func (m *Mol) Copy() *Mol {
	c := &Mol{Name: m.Name}
	c.Atoms = make([]Atom, len(m.Atoms))
	copy(c.Atoms, m.Atoms)
	c.Bonds = make([]Bond, len(m.Bonds))
	copy(c.Bonds, m.Bonds)
	c.confs = make([][]geom.Vec3, len(m.confs))
	for i, conf := range m.confs {
		cc := make([]geom.Vec3, len(conf))
		copy(cc, conf)
		c.confs[i] = cc
	}
	if m.tags != nil {
		c.tags = make(map[string]string, len(m.tags))
		for k, v := range m.tags {
			c.tags[k] = v
		}
	}
	return c
}

// MolecularWeight returns the sum of atomic masses including implicit
// hydrogens. Perceive must have run for implicit hydrogen counts to be set.
func (m *Mol) MolecularWeight() float64 {
	w := 0.0
	for _, a := range m.Atoms {
		w += AtomicMass(a.Element) + float64(a.ImplicitH)*AtomicMass("H")
	}
	return w
}

// Formula returns the Hill-ordered molecular formula, e.g. "C6H6O".
func (m *Mol) Formula() string {
	counts := map[string]int{}
	for _, a := range m.Atoms {
		counts[a.Element]++
		counts["H"] += a.ImplicitH
	}
	out := ""
	emit := func(el string) {
		n := counts[el]
		if n == 0 {
			return
		}
		delete(counts, el)
		if n == 1 {
			out += el
			return
		}
		out += fmt.Sprintf("%s%d", el, n)
	}
	emit("C")
	emit("H")
	// Remaining elements alphabetically.
	rest := make([]string, 0, len(counts))
	for el := range counts {
		rest = append(rest, el)
	}
	for i := 0; i < len(rest); i++ {
		for j := i + 1; j < len(rest); j++ {
			if rest[j] < rest[i] {
				rest[i], rest[j] = rest[j], rest[i]
			}
		}
	}
	for _, el := range rest {
		emit(el)
	}
	return out
}

// Perceive derives ring membership, aromaticity, and implicit hydrogen
// counts. Call it once after constructing or parsing a molecule; it is
// idempotent.
func (m *Mol) Perceive() {
	m.perceiveRings()
	m.perceiveAromaticity()
	m.perceiveImplicitHydrogens()
}
