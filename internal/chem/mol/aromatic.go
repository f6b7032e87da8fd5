package mol

// perceiveAromaticity marks aromatic atoms. Two inputs are recognised:
// rings whose bonds all carry MDL order 4, and Kekulé rings that pass a
// simplified Hückel count (ring size 5-7, every member sp2-capable, exactly
// six π electrons). Fused systems are handled ring by ring.
func (m *Mol) perceiveAromaticity() {
	for _, ring := range m.Rings() {
		if len(ring) < 5 || len(ring) > 7 {
			continue
		}
		if m.ringAllAromaticOrder(ring) || m.ringPassesHuckel(ring) {
			for _, idx := range ring {
				m.Atoms[idx].Aromatic = true
			}
		}
	}
}

// ringAllAromaticOrder reports whether every bond around the ring has MDL
// aromatic order.
func (m *Mol) ringAllAromaticOrder(ring []int) bool {
	for i := range ring {
		bi := m.BondBetween(ring[i], ring[(i+1)%len(ring)])
		if bi < 0 || m.Bonds[bi].Order != Aromatic {
			return false
		}
	}
	return true
}

// ringPassesHuckel applies the simplified 4n+2 test with n=1: count two π
// electrons per ring double bond, two per heteroatom lone pair, and require
// exactly six. Carbons with only an exocyclic double bond (quinone-type)
// contribute zero but remain sp2-capable; saturated neutral carbons
// disqualify the ring.
func (m *Mol) ringPassesHuckel(ring []int) bool {
	inRing := map[int]bool{}
	for _, idx := range ring {
		inRing[idx] = true
	}

	pi := 0
	counted := map[int]bool{} // atoms already covered by a ring double bond
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		bi := m.BondBetween(a, b)
		if bi < 0 {
			return false
		}
		if m.Bonds[bi].Order == Double {
			pi += 2
			counted[a] = true
			counted[b] = true
		}
	}

	for _, idx := range ring {
		atom := m.Atoms[idx]
		switch atom.Element {
		case "C", "N", "O", "S", "P", "B":
		default:
			return false
		}
		if m.Degree(idx) > 3 {
			return false
		}
		if counted[idx] {
			continue
		}
		// No ring double bond at this atom.
		switch {
		case atom.Element != "C":
			pi += 2 // heteroatom lone pair (pyrrole, furan, thiophene)
		case m.hasExocyclicDouble(idx, inRing):
			// quinone-type carbon, contributes nothing
		case atom.Charge < 0:
			pi += 2 // cyclopentadienyl anion
		case atom.Charge > 0:
			// tropylium carbon, empty p orbital
		default:
			return false // saturated carbon breaks conjugation
		}
	}
	return pi == 6
}

// hasExocyclicDouble reports whether atom idx has a double bond leaving the
// given ring.
func (m *Mol) hasExocyclicDouble(idx int, inRing map[int]bool) bool {
	for _, b := range m.Bonds {
		if b.Order != Double {
			continue
		}
		if b.From == idx && !inRing[b.To] {
			return true
		}
		if b.To == idx && !inRing[b.From] {
			return true
		}
	}
	return false
}

// IsAromaticBond reports whether the bond at index bi joins two aromatic
// atoms inside a ring.
func (m *Mol) IsAromaticBond(bi int) bool {
	b := m.Bonds[bi]
	return b.InRing && m.Atoms[b.From].Aromatic && m.Atoms[b.To].Aromatic
}
