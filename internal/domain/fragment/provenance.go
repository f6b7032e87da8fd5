package fragment

import (
	"sort"
	"strings"

	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/pkg/errors"
)

// SDF data fields carrying elaboration provenance.
const (
	// SingleTag names the one fragment a grown candidate came from.
	SingleTag = "insp_fragment"
	// PairTag names the two fragments a linked candidate came from,
	// hyphen-joined.
	PairTag = "insp_fragments"
)

// Provenance records which library fragment(s) a candidate was elaborated
// from: none (detectable, handled at pose time), a single fragment, or a
// sorted pair. The zero value is "no provenance".
type Provenance struct {
	names []string
}

// SingleProvenance records elaboration from one fragment.
func SingleProvenance(name string) Provenance {
	return Provenance{names: []string{name}}
}

// PairProvenance records elaboration from two linked fragments; the pair is
// stored sorted so equal pairs compare equal regardless of input order.
func PairProvenance(a, b string) Provenance {
	names := []string{a, b}
	sort.Strings(names)
	return Provenance{names: names}
}

// IsZero reports whether no provenance was recorded.
func (p Provenance) IsZero() bool { return len(p.names) == 0 }

// Single returns the fragment name of single provenance.
func (p Provenance) Single() (string, bool) {
	if len(p.names) != 1 {
		return "", false
	}
	return p.names[0], true
}

// Pair returns both names of pair provenance, in sorted order.
func (p Provenance) Pair() (string, string, bool) {
	if len(p.names) != 2 {
		return "", "", false
	}
	return p.names[0], p.names[1], true
}

// Names returns a copy of the recorded names: empty, one, or a sorted two.
func (p Provenance) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// String renders "" for none, the name for single, "a-b" for a pair.
func (p Provenance) String() string {
	return strings.Join(p.names, "-")
}

// ParseProvenance reads a candidate's provenance data fields. Absence of both
// fields is not an error here: it yields the zero Provenance, and the pose
// stage decides how loudly to fail. Carrying both fields at once, or a pair
// field that does not name exactly two fragments, is malformed input.
func ParseProvenance(m *mol.Mol) (Provenance, error) {
	single, hasSingle := m.Tag(SingleTag)
	pair, hasPair := m.Tag(PairTag)
	single = strings.TrimSpace(single)
	pair = strings.TrimSpace(pair)

	switch {
	case hasSingle && hasPair:
		return Provenance{}, errors.Newf(errors.ErrCodeStructureParse,
			"record carries both %s and %s", SingleTag, PairTag)
	case hasSingle:
		if single == "" {
			return Provenance{}, errors.Newf(errors.ErrCodeStructureParse,
				"%s field is empty", SingleTag)
		}
		return SingleProvenance(single), nil
	case hasPair:
		parts := strings.Split(pair, "-")
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return Provenance{}, errors.Newf(errors.ErrCodeStructureParse,
				"%s field %q does not name two fragments", PairTag, pair)
		}
		return PairProvenance(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])), nil
	}
	return Provenance{}, nil
}
