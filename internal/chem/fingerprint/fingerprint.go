// Package fingerprint implements Morgan (circular) fingerprints over the
// molecular graph, the Tanimoto coefficient, and conversions to the byte and
// float-vector forms the stores persist.
package fingerprint

import (
	"encoding/binary"
	"hash/fnv"
	"math/bits"
	"sort"

	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/pkg/errors"
)

const (
	// DefaultBits is the fingerprint width used across the pipeline and the
	// dimension of the similarity index vectors.
	DefaultBits = 2048

	// DefaultRadius is the Morgan iteration depth (ECFP4-equivalent).
	DefaultRadius = 2
)

// Fingerprint is a fixed-width bitset.
type Fingerprint struct {
	words []uint64
	nBits int
}

// New returns an empty fingerprint of nBits bits.
func New(nBits int) *Fingerprint {
	if nBits <= 0 {
		nBits = DefaultBits
	}
	return &Fingerprint{
		words: make([]uint64, (nBits+63)/64),
		nBits: nBits,
	}
}

// NumBits returns the fingerprint width.
func (f *Fingerprint) NumBits() int { return f.nBits }

// Set turns on bit i.
func (f *Fingerprint) Set(i int) {
	if i < 0 || i >= f.nBits {
		return
	}
	f.words[i/64] |= 1 << uint(i%64)
}

// Test reports whether bit i is on.
func (f *Fingerprint) Test(i int) bool {
	if i < 0 || i >= f.nBits {
		return false
	}
	return f.words[i/64]&(1<<uint(i%64)) != 0
}

// PopCount returns the number of set bits.
func (f *Fingerprint) PopCount() int {
	n := 0
	for _, w := range f.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// OnBits returns the indices of set bits in ascending order.
func (f *Fingerprint) OnBits() []int {
	var out []int
	for i, w := range f.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, i*64+b)
			w &^= 1 << uint(b)
		}
	}
	return out
}

// Floats32 renders the fingerprint as a dense 0/1 float vector, the shape the
// vector index ingests.
func (f *Fingerprint) Floats32() []float32 {
	out := make([]float32, f.nBits)
	for _, i := range f.OnBits() {
		out[i] = 1
	}
	return out
}

// Bytes serializes the fingerprint to little-endian words.
func (f *Fingerprint) Bytes() []byte {
	out := make([]byte, len(f.words)*8)
	for i, w := range f.words {
		binary.LittleEndian.PutUint64(out[i*8:], w)
	}
	return out
}

// FromBytes restores a fingerprint serialized by Bytes.
func FromBytes(b []byte, nBits int) (*Fingerprint, error) {
	f := New(nBits)
	if len(b) != len(f.words)*8 {
		return nil, errors.Newf(errors.ErrCodeSerialization,
			"fingerprint blob is %d bytes, want %d for %d bits", len(b), len(f.words)*8, f.nBits)
	}
	for i := range f.words {
		f.words[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return f, nil
}

// Tanimoto returns |a AND b| / |a OR b|. Two empty fingerprints score 0.
func Tanimoto(a, b *Fingerprint) float64 {
	n := len(a.words)
	if len(b.words) < n {
		n = len(b.words)
	}
	var inter, union int
	for i := 0; i < n; i++ {
		inter += bits.OnesCount64(a.words[i] & b.words[i])
		union += bits.OnesCount64(a.words[i] | b.words[i])
	}
	for i := n; i < len(a.words); i++ {
		union += bits.OnesCount64(a.words[i])
	}
	for i := n; i < len(b.words); i++ {
		union += bits.OnesCount64(b.words[i])
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Morgan computes a circular fingerprint: every atom environment up to the
// given radius hashes to one bit. radius/nBits <= 0 fall back to the defaults.
func Morgan(m *mol.Mol, radius, nBits int) *Fingerprint {
	if radius <= 0 {
		radius = DefaultRadius
	}
	fp := New(nBits)
	if m.NumAtoms() == 0 {
		return fp
	}

	adj := m.AdjacencyList()
	inv := make([]uint64, m.NumAtoms())
	for i := range m.Atoms {
		inv[i] = initialInvariant(m, i)
		fp.Set(int(inv[i] % uint64(fp.nBits)))
	}

	next := make([]uint64, len(inv))
	for r := 0; r < radius; r++ {
		for i := range m.Atoms {
			next[i] = expandInvariant(m, adj, inv, i)
			fp.Set(int(next[i] % uint64(fp.nBits)))
		}
		inv, next = next, inv
	}
	return fp
}

// MorganDefault computes the standard pipeline fingerprint.
func MorganDefault(m *mol.Mol) *Fingerprint {
	return Morgan(m, DefaultRadius, DefaultBits)
}

// initialInvariant hashes the immediate atom properties.
func initialInvariant(m *mol.Mol, idx int) uint64 {
	a := m.Atoms[idx]
	h := fnv.New64a()
	writeString(h, a.Element)
	writeInts(h,
		int64(m.Degree(idx)),
		int64(a.Charge),
		int64(a.ImplicitH),
		boolInt(a.Aromatic),
		boolInt(a.InRing),
	)
	return h.Sum64()
}

// expandInvariant folds the sorted (bond order, neighbor invariant) pairs of
// one shell into the atom's previous invariant.
func expandInvariant(m *mol.Mol, adj [][]int, inv []uint64, idx int) uint64 {
	type edge struct {
		order int64
		inv   uint64
	}
	edges := make([]edge, 0, len(adj[idx]))
	for _, j := range adj[idx] {
		bi := m.BondBetween(idx, j)
		edges = append(edges, edge{order: int64(m.Bonds[bi].Order), inv: inv[j]})
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].order != edges[b].order {
			return edges[a].order < edges[b].order
		}
		return edges[a].inv < edges[b].inv
	})

	h := fnv.New64a()
	writeUint(h, inv[idx])
	for _, e := range edges {
		writeInts(h, e.order)
		writeUint(h, e.inv)
	}
	return h.Sum64()
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0})
}

func writeInts(h interface{ Write([]byte) (int, error) }, vs ...int64) {
	var buf [8]byte
	for _, v := range vs {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
}

func writeUint(h interface{ Write([]byte) (int, error) }, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
