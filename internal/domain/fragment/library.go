package fragment

import (
	"io"
	"os"
	"strings"

	"github.com/molforge/fragelab/internal/chem/sdf"
	"github.com/molforge/fragelab/pkg/errors"
)

// NameTag is the SDF data field carrying each fragment's library name.
const NameTag = "fragment"

// Library is the read-only, ordered fragment lookup table: a list preserving
// file order plus a name index. It is constructed once by LoadLibrary and
// threaded through every call; nothing in the pipeline mutates it.
type Library struct {
	fragments []Fragment
	byName    map[string]int
}

// LoadLibrary reads an SDF stream with one record per fragment. Every record
// must carry a non-empty NameTag field; names must be unique and free of "-",
// which the link-mode key format reserves as its separator.
func LoadLibrary(r io.Reader) (*Library, error) {
	mols, err := sdf.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLibraryLoad, "parse fragment library")
	}
	lib := &Library{
		fragments: make([]Fragment, 0, len(mols)),
		byName:    make(map[string]int, len(mols)),
	}
	for i, m := range mols {
		name, ok := m.Tag(NameTag)
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Newf(errors.ErrCodeLibraryLoad,
				"library record %d has no %q data field", i+1, NameTag)
		}
		if strings.Contains(name, "-") {
			return nil, errors.Newf(errors.ErrCodeLibraryLoad,
				"fragment name %q contains %q, which is reserved by link keys", name, "-")
		}
		if _, dup := lib.byName[name]; dup {
			return nil, errors.Newf(errors.ErrCodeLibraryLoad,
				"duplicate fragment name %q at record %d", name, i+1)
		}
		lib.byName[name] = len(lib.fragments)
		lib.fragments = append(lib.fragments, Fragment{Name: name, Mol: m})
	}
	return lib, nil
}

// LoadLibraryFile opens path and loads the library from it.
func LoadLibraryFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeLibraryLoad, "open fragment library %s", path)
	}
	defer f.Close()
	return LoadLibrary(f)
}

// Len returns the number of fragments.
func (l *Library) Len() int {
	return len(l.fragments)
}

// Names lists all fragment names in load order.
func (l *Library) Names() []string {
	out := make([]string, len(l.fragments))
	for i := range l.fragments {
		out[i] = l.fragments[i].Name
	}
	return out
}

// Get returns the fragment with the given name. An unknown name is
// ErrCodeUnknownFragment, distinct from an invalid selection.
func (l *Library) Get(name string) (*Fragment, error) {
	i, ok := l.byName[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownFragment,
			"fragment %q is not in the library", name)
	}
	return &l.fragments[i], nil
}

// At returns the fragment at the given load-order index.
func (l *Library) At(index int) (*Fragment, error) {
	if index < 0 || index >= len(l.fragments) {
		return nil, errors.Newf(errors.ErrCodeUnknownFragment,
			"fragment index %d out of range [0, %d)", index, len(l.fragments))
	}
	return &l.fragments[index], nil
}
