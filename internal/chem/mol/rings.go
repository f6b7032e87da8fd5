package mol

import (
	"fmt"
	"sort"
	"strings"
)

// shortestPathAvoiding returns the shortest atom path from u to v that does
// not traverse the bond at index skip, or nil when none exists.
func (m *Mol) shortestPathAvoiding(u, v, skip int) []int {
	n := len(m.Atoms)
	prev := make([]int, n)
	for i := range prev {
		prev[i] = -2 // unvisited
	}
	prev[u] = -1
	queue := []int{u}
	adj := m.AdjacencyList()

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == v {
			break
		}
		for _, bi := range adj[cur] {
			if bi == skip {
				continue
			}
			nb := m.Bonds[bi].Other(cur)
			if prev[nb] == -2 {
				prev[nb] = cur
				queue = append(queue, nb)
			}
		}
	}
	if prev[v] == -2 {
		return nil
	}
	var path []int
	for at := v; at != -1; at = prev[at] {
		path = append(path, at)
	}
	// Reverse into u..v order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Rings returns the smallest ring through each ring bond, deduplicated, as
// atom-index cycles ordered around the ring. The result approximates the
// smallest set of smallest rings, which is all the aromaticity and feature
// perception here needs.
func (m *Mol) Rings() [][]int {
	seen := map[string]bool{}
	var rings [][]int
	for bi, b := range m.Bonds {
		path := m.shortestPathAvoiding(b.From, b.To, bi)
		if path == nil {
			continue
		}
		key := ringKey(path)
		if seen[key] {
			continue
		}
		seen[key] = true
		ring := make([]int, len(path))
		copy(ring, path)
		rings = append(rings, ring)
	}
	sort.Slice(rings, func(i, j int) bool {
		if len(rings[i]) != len(rings[j]) {
			return len(rings[i]) < len(rings[j])
		}
		return ringKey(rings[i]) < ringKey(rings[j])
	})
	return rings
}

// ringKey builds an order-independent identity for a cycle's atom set.
func ringKey(ring []int) string {
	sorted := make([]int, len(ring))
	copy(sorted, ring)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, a := range sorted {
		parts[i] = fmt.Sprintf("%d", a)
	}
	return strings.Join(parts, ",")
}

// perceiveRings marks InRing on atoms and bonds. A bond is in a ring exactly
// when its endpoints stay connected without it.
func (m *Mol) perceiveRings() {
	for i := range m.Atoms {
		m.Atoms[i].InRing = false
	}
	for bi := range m.Bonds {
		b := &m.Bonds[bi]
		b.InRing = m.shortestPathAvoiding(b.From, b.To, bi) != nil
		if b.InRing {
			m.Atoms[b.From].InRing = true
			m.Atoms[b.To].InRing = true
		}
	}
}

// RingsContaining returns every perceived ring that includes atom idx.
func (m *Mol) RingsContaining(idx int) [][]int {
	var out [][]int
	for _, ring := range m.Rings() {
		for _, a := range ring {
			if a == idx {
				out = append(out, ring)
				break
			}
		}
	}
	return out
}
