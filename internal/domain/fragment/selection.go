package fragment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/molforge/fragelab/pkg/errors"
)

// Mode selects the elaboration chemistry: growing a single fragment or
// linking a pair.
type Mode string

const (
	ModeGrow Mode = "grow"
	ModeLink Mode = "link"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeGrow:
		return ModeGrow, nil
	case ModeLink:
		return ModeLink, nil
	}
	return "", errors.Newf(errors.ErrCodeInvalidMode,
		"mode %q is not supported, want %q or %q", s, ModeGrow, ModeLink)
}

// fragmentCount returns how many fragments the mode elaborates.
func (m Mode) fragmentCount() int {
	if m == ModeLink {
		return 2
	}
	return 1
}

// ElaborationKey identifies one elaboration: the mode plus the resolved
// fragment names (one for grow, a sorted pair for link). It is the lookup
// key for precomputed elaboration sets.
type ElaborationKey struct {
	Mode  Mode
	Names []string
}

// Filename returns the SDF file a precomputed elaboration set lives under:
// "<name>.sdf" for grow, "<a>-<b>.sdf" for link with the sorted pair.
func (k ElaborationKey) Filename() string {
	return strings.Join(k.Names, "-") + ".sdf"
}

// Fragments identifies the resolved selection for logging and persistence.
func (k ElaborationKey) String() string {
	return fmt.Sprintf("%s:%s", k.Mode, strings.Join(k.Names, "-"))
}

// ResolveByNames resolves a fragment selection given library names. Grow
// takes exactly one name, link exactly two distinct ones; link pairs are
// normalized to sorted order so either argument order addresses the same
// elaboration set.
func (l *Library) ResolveByNames(mode Mode, names ...string) (ElaborationKey, []Fragment, error) {
	if err := checkSelectionSize(mode, len(names)); err != nil {
		return ElaborationKey{}, nil, err
	}
	frags := make([]Fragment, len(names))
	for i, name := range names {
		f, err := l.Get(name)
		if err != nil {
			return ElaborationKey{}, nil, err
		}
		frags[i] = *f
	}
	return newKey(mode, frags)
}

// ResolveByIndices resolves a fragment selection given zero-based library
// positions, for callers that iterate the library rather than name fragments.
func (l *Library) ResolveByIndices(mode Mode, indices ...int) (ElaborationKey, []Fragment, error) {
	if err := checkSelectionSize(mode, len(indices)); err != nil {
		return ElaborationKey{}, nil, err
	}
	frags := make([]Fragment, len(indices))
	for i, idx := range indices {
		f, err := l.At(idx)
		if err != nil {
			return ElaborationKey{}, nil, err
		}
		frags[i] = *f
	}
	return newKey(mode, frags)
}

func checkSelectionSize(mode Mode, got int) error {
	switch mode {
	case ModeGrow, ModeLink:
	default:
		return errors.Newf(errors.ErrCodeInvalidMode,
			"mode %q is not supported, want %q or %q", mode, ModeGrow, ModeLink)
	}
	want := mode.fragmentCount()
	if got != want {
		noun := "fragment"
		if want == 2 {
			noun = "fragments"
		}
		return errors.Newf(errors.ErrCodeInvalidSelection,
			"%s mode takes exactly %d %s, got %d", mode, want, noun, got)
	}
	return nil
}

func newKey(mode Mode, frags []Fragment) (ElaborationKey, []Fragment, error) {
	if mode == ModeLink {
		if frags[0].Name == frags[1].Name {
			return ElaborationKey{}, nil, errors.Newf(errors.ErrCodeInvalidSelection,
				"link mode needs two distinct fragments, got %q twice", frags[0].Name)
		}
		sort.Slice(frags, func(i, j int) bool { return frags[i].Name < frags[j].Name })
	}
	names := make([]string, len(frags))
	for i, f := range frags {
		names[i] = f.Name
	}
	return ElaborationKey{Mode: mode, Names: names}, frags, nil
}
