package mol

// AdjacencyList returns, for each atom, the indices of the bonds incident to
// it. Rebuilt on each call; molecules here are fragment-sized.
func (m *Mol) AdjacencyList() [][]int {
	adj := make([][]int, len(m.Atoms))
	for bi, b := range m.Bonds {
		adj[b.From] = append(adj[b.From], bi)
		adj[b.To] = append(adj[b.To], bi)
	}
	return adj
}

// Neighbors returns the atom indices bonded to atom idx.
func (m *Mol) Neighbors(idx int) []int {
	var out []int
	for _, b := range m.Bonds {
		if b.From == idx {
			out = append(out, b.To)
		} else if b.To == idx {
			out = append(out, b.From)
		}
	}
	return out
}

// Degree returns the number of explicit bonds at atom idx.
func (m *Mol) Degree(idx int) int {
	d := 0
	for _, b := range m.Bonds {
		if b.From == idx || b.To == idx {
			d++
		}
	}
	return d
}

// BondBetween returns the index of the bond joining a and b, or -1.
func (m *Mol) BondBetween(a, b int) int {
	for bi, bo := range m.Bonds {
		if (bo.From == a && bo.To == b) || (bo.From == b && bo.To == a) {
			return bi
		}
	}
	return -1
}

// Components returns the connected components as atom-index slices, ordered
// by their smallest member. A merged elaboration pair written as a single
// record shows up as two components.
func (m *Mol) Components() [][]int {
	n := len(m.Atoms)
	seen := make([]bool, n)
	neighbors := make([][]int, n)
	for _, b := range m.Bonds {
		neighbors[b.From] = append(neighbors[b.From], b.To)
		neighbors[b.To] = append(neighbors[b.To], b.From)
	}

	var comps [][]int
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		comp := []int{start}
		seen[start] = true
		for head := 0; head < len(comp); head++ {
			for _, nb := range neighbors[comp[head]] {
				if !seen[nb] {
					seen[nb] = true
					comp = append(comp, nb)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// TopologicalDistances returns the all-pairs shortest path lengths in bonds.
// Unreachable pairs get -1. BFS from every atom; fragment-sized inputs keep
// this cheap.
func (m *Mol) TopologicalDistances() [][]int {
	n := len(m.Atoms)
	neighbors := make([][]int, n)
	for _, b := range m.Bonds {
		neighbors[b.From] = append(neighbors[b.From], b.To)
		neighbors[b.To] = append(neighbors[b.To], b.From)
	}

	dist := make([][]int, n)
	for s := 0; s < n; s++ {
		row := make([]int, n)
		for i := range row {
			row[i] = -1
		}
		row[s] = 0
		queue := []int{s}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range neighbors[cur] {
				if row[nb] == -1 {
					row[nb] = row[cur] + 1
					queue = append(queue, nb)
				}
			}
		}
		dist[s] = row
	}
	return dist
}
