// Package pains screens structures against a curated catalog of
// pan-assay interference patterns. Patterns are written in a restricted
// SMARTS dialect (organic-subset atoms, aromatic lowercase, bracket
// charge/H-count, branches, ring closures) and matched by subgraph search.
package pains

import (
	"fmt"
	"strings"

	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/pkg/errors"
)

type bondKind int

const (
	bondDefault  bondKind = iota // single or aromatic, the SMARTS default
	bondSingle                   // -
	bondDouble                   // =
	bondTriple                   // #
	bondAromatic                 // :
	bondAny                      // ~
)

// queryAtom is one atom predicate. Nil fields are unconstrained.
type queryAtom struct {
	element  string // "" matches any element
	aromatic *bool
	charge   *int
	hCount   *int
}

type queryBond struct {
	from, to int
	kind     bondKind
}

// edgeCon is a bond constraint from a query atom to an earlier-indexed one.
type edgeCon struct {
	other int
	kind  bondKind
}

// Query is a compiled pattern.
type Query struct {
	smarts string
	atoms  []queryAtom
	bonds  []queryBond
	cons   [][]edgeCon
}

// Smarts returns the source pattern string.
func (q *Query) Smarts() string { return q.smarts }

// NumAtoms returns the number of atom predicates.
func (q *Query) NumAtoms() int { return len(q.atoms) }

type ringRef struct {
	atom int
	kind bondKind
}

// ParseSmarts compiles a pattern from the restricted SMARTS dialect.
func ParseSmarts(s string) (*Query, error) {
	q := &Query{smarts: s}
	var branchStack []int
	prev := -1
	pending := bondDefault
	rings := make(map[byte]ringRef)

	addAtom := func(qa queryAtom) {
		idx := len(q.atoms)
		q.atoms = append(q.atoms, qa)
		if prev >= 0 {
			q.bonds = append(q.bonds, queryBond{from: prev, to: idx, kind: pending})
		}
		prev = idx
		pending = bondDefault
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '(':
			if prev < 0 {
				return nil, parseErr(s, i, "branch before any atom")
			}
			branchStack = append(branchStack, prev)
			i++
		case c == ')':
			if len(branchStack) == 0 {
				return nil, parseErr(s, i, "unbalanced ')'")
			}
			prev = branchStack[len(branchStack)-1]
			branchStack = branchStack[:len(branchStack)-1]
			i++
		case c == '-':
			pending = bondSingle
			i++
		case c == '=':
			pending = bondDouble
			i++
		case c == '#':
			pending = bondTriple
			i++
		case c == ':':
			pending = bondAromatic
			i++
		case c == '~':
			pending = bondAny
			i++
		case c >= '1' && c <= '9':
			if prev < 0 {
				return nil, parseErr(s, i, "ring closure before any atom")
			}
			if ref, ok := rings[c]; ok {
				kind := ref.kind
				if kind == bondDefault {
					kind = pending
				}
				q.bonds = append(q.bonds, queryBond{from: ref.atom, to: prev, kind: kind})
				delete(rings, c)
			} else {
				rings[c] = ringRef{atom: prev, kind: pending}
			}
			pending = bondDefault
			i++
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, parseErr(s, i, "unterminated bracket atom")
			}
			qa, err := parseBracket(s[i+1 : i+end])
			if err != nil {
				return nil, parseErr(s, i, err.Error())
			}
			addAtom(qa)
			i += end + 1
		case c == '*':
			addAtom(queryAtom{})
			i++
		case c == 'A':
			addAtom(queryAtom{aromatic: boolPtr(false)})
			i++
		case c == 'a':
			addAtom(queryAtom{aromatic: boolPtr(true)})
			i++
		default:
			qa, n, err := parseBareAtom(s[i:])
			if err != nil {
				return nil, parseErr(s, i, err.Error())
			}
			addAtom(qa)
			i += n
		}
	}

	if len(branchStack) != 0 {
		return nil, parseErr(s, len(s), "unbalanced '('")
	}
	if len(rings) != 0 {
		return nil, parseErr(s, len(s), "unclosed ring bond")
	}
	if len(q.atoms) == 0 {
		return nil, parseErr(s, 0, "empty pattern")
	}
	if err := q.finalize(); err != nil {
		return nil, err
	}
	return q, nil
}

// MustParseSmarts compiles a pattern and panics on error; for the curated
// catalog literals.
func MustParseSmarts(s string) *Query {
	q, err := ParseSmarts(s)
	if err != nil {
		panic(fmt.Sprintf("pains: bad catalog pattern %q: %v", s, err))
	}
	return q
}

// parseBareAtom reads an unbracketed organic-subset atom symbol.
func parseBareAtom(s string) (queryAtom, int, error) {
	switch s[0] {
	case 'C':
		if len(s) > 1 && s[1] == 'l' {
			return queryAtom{element: "Cl", aromatic: boolPtr(false)}, 2, nil
		}
		return queryAtom{element: "C", aromatic: boolPtr(false)}, 1, nil
	case 'B':
		if len(s) > 1 && s[1] == 'r' {
			return queryAtom{element: "Br", aromatic: boolPtr(false)}, 2, nil
		}
		return queryAtom{element: "B", aromatic: boolPtr(false)}, 1, nil
	case 'N', 'O', 'S', 'P', 'F', 'I':
		return queryAtom{element: string(s[0]), aromatic: boolPtr(false)}, 1, nil
	case 'c', 'n', 'o', 's', 'p':
		return queryAtom{element: strings.ToUpper(string(s[0])), aromatic: boolPtr(true)}, 1, nil
	default:
		return queryAtom{}, 0, fmt.Errorf("unexpected symbol %q", s[0])
	}
}

// parseBracket reads the body of a [...] atom: element (or aromatic
// lowercase), optional H-count, optional charge.
func parseBracket(body string) (queryAtom, error) {
	if body == "" {
		return queryAtom{}, fmt.Errorf("empty bracket atom")
	}
	qa := queryAtom{}
	i := 0

	c := body[i]
	switch {
	case c == '*':
		i++
	case c >= 'A' && c <= 'Z':
		elem := string(c)
		if i+1 < len(body) && body[i+1] >= 'a' && body[i+1] <= 'z' && body[i+1] != 'h' {
			two := body[i : i+2]
			if two == "Cl" || two == "Br" || two == "Si" || two == "Se" {
				elem = two
				i++
			}
		}
		qa.element = elem
		qa.aromatic = boolPtr(false)
		i++
	case c >= 'a' && c <= 'z':
		qa.element = strings.ToUpper(string(c))
		qa.aromatic = boolPtr(true)
		i++
	default:
		return queryAtom{}, fmt.Errorf("bad bracket atom start %q", c)
	}

	if i < len(body) && body[i] == 'H' {
		i++
		h := 1
		if i < len(body) && body[i] >= '0' && body[i] <= '9' {
			h = int(body[i] - '0')
			i++
		}
		qa.hCount = intPtr(h)
	}

	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		mag := 0
		for i < len(body) && (body[i] == '+' || body[i] == '-') {
			mag++
			i++
		}
		if i < len(body) && body[i] >= '0' && body[i] <= '9' {
			mag = int(body[i] - '0')
			i++
		}
		qa.charge = intPtr(sign * mag)
	}

	if i != len(body) {
		return queryAtom{}, fmt.Errorf("trailing bracket content %q", body[i:])
	}
	return qa, nil
}

// finalize indexes each atom's bonds to earlier atoms; the matcher extends
// partial maps along these.
func (q *Query) finalize() error {
	q.cons = make([][]edgeCon, len(q.atoms))
	for _, b := range q.bonds {
		lo, hi := b.from, b.to
		if lo > hi {
			lo, hi = hi, lo
		}
		q.cons[hi] = append(q.cons[hi], edgeCon{other: lo, kind: b.kind})
	}
	for k := 1; k < len(q.atoms); k++ {
		if len(q.cons[k]) == 0 {
			return errors.Newf(errors.ErrCodeValidation,
				"pattern %q is disconnected at atom %d", q.smarts, k)
		}
	}
	return nil
}

func parseErr(s string, pos int, msg string) error {
	return errors.Newf(errors.ErrCodeValidation, "smarts %q at %d: %s", s, pos, msg)
}

func boolPtr(b bool) *bool { return &b }
func intPtr(v int) *int    { return &v }

// totalH mirrors the donor-count convention: implicit plus explicit
// hydrogens.
func totalH(m *mol.Mol, idx int) int {
	n := m.Atoms[idx].ImplicitH
	for _, j := range m.Neighbors(idx) {
		if m.Atoms[j].Element == "H" {
			n++
		}
	}
	return n
}
