package pains

import (
	"github.com/molforge/fragelab/internal/chem/mol"
)

// Matches reports whether the pattern embeds anywhere in m: an injective
// atom mapping under which every query bond lands on a compatible target
// bond. Extra target bonds are allowed, as usual for substructure search.
func (q *Query) Matches(m *mol.Mol) bool {
	if len(q.atoms) == 0 || m.NumAtoms() < len(q.atoms) {
		return false
	}
	mapping := make([]int, len(q.atoms))
	used := make([]bool, m.NumAtoms())
	return q.extend(m, mapping, used, 0)
}

func (q *Query) extend(m *mol.Mol, mapping []int, used []bool, k int) bool {
	if k == len(q.atoms) {
		return true
	}

	try := func(t int) bool {
		if used[t] || !q.atomOK(k, m, t) {
			return false
		}
		for _, con := range q.cons[k] {
			bi := m.BondBetween(mapping[con.other], t)
			if bi < 0 || !bondOK(con.kind, m, bi) {
				return false
			}
		}
		used[t] = true
		mapping[k] = t
		if q.extend(m, mapping, used, k+1) {
			return true
		}
		used[t] = false
		return false
	}

	if k == 0 {
		for t := 0; t < m.NumAtoms(); t++ {
			if try(t) {
				return true
			}
		}
		return false
	}
	// Later atoms always neighbor an already-mapped one.
	anchor := mapping[q.cons[k][0].other]
	for _, t := range m.Neighbors(anchor) {
		if try(t) {
			return true
		}
	}
	return false
}

func (q *Query) atomOK(k int, m *mol.Mol, t int) bool {
	qa := q.atoms[k]
	a := m.Atoms[t]
	if a.Element == "H" {
		return false
	}
	if qa.element != "" && qa.element != a.Element {
		return false
	}
	if qa.aromatic != nil && *qa.aromatic != a.Aromatic {
		return false
	}
	if qa.charge != nil && *qa.charge != a.Charge {
		return false
	}
	if qa.hCount != nil && *qa.hCount != totalH(m, t) {
		return false
	}
	return true
}

func bondOK(kind bondKind, m *mol.Mol, bi int) bool {
	b := m.Bonds[bi]
	arom := b.Order == mol.Aromatic || m.IsAromaticBond(bi)
	switch kind {
	case bondAny:
		return true
	case bondDefault:
		return arom || b.Order == mol.Single
	case bondSingle:
		return b.Order == mol.Single && !arom
	case bondDouble:
		return b.Order == mol.Double && !arom
	case bondTriple:
		return b.Order == mol.Triple
	case bondAromatic:
		return arom
	default:
		return false
	}
}
