package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/internal/chem/sdf"
	"github.com/molforge/fragelab/internal/domain/fragment"
)

// LibrarySDF renders a minimal fragment library as SDF text. Every record is
// a single carbon with one conformer and the library name tag set.
func LibrarySDF(t testing.TB, names ...string) string {
	t.Helper()
	mols := make([]*mol.Mol, len(names))
	for i, name := range names {
		m := mol.NewMol(name)
		m.AddAtom(mol.Atom{Element: "C"})
		_, err := m.AddConformer([]geom.Vec3{{float64(i), 0, 0}})
		require.NoError(t, err)
		m.SetTag(fragment.NameTag, name)
		mols[i] = m
	}
	return SetSDF(t, mols...)
}

// Library parses a minimal fragment library with the given names.
func Library(t testing.TB, names ...string) *fragment.Library {
	t.Helper()
	lib, err := fragment.LoadLibrary(strings.NewReader(LibrarySDF(t, names...)))
	require.NoError(t, err)
	return lib
}

// SetSDF renders the molecules as one multi-record SDF document.
func SetSDF(t testing.TB, mols ...*mol.Mol) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, sdf.WriteAll(&sb, mols))
	return sb.String()
}

// WriteSDFFile writes SDF text under dir and returns the full path.
func WriteSDFFile(t testing.TB, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

// CleanRecord builds an ethanol-like candidate that passes both the
// drug-likeness and the PAINS filters. Provenance tags come from prov.
func CleanRecord(t testing.TB, title string, prov fragment.Provenance) *mol.Mol {
	t.Helper()
	m := mol.NewMol(title)
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "O"})
	require.NoError(t, m.AddBond(0, 1, mol.Single))
	require.NoError(t, m.AddBond(1, 2, mol.Single))
	_, err := m.AddConformer([]geom.Vec3{{0, 0, 0}, {1.5, 0, 0}, {2.1, 1.2, 0}})
	require.NoError(t, err)
	tagProvenance(m, prov)
	m.Perceive()
	return m
}

// HeavyRecord builds a 40-carbon alkane. Its weight and logP both exceed the
// default limits, so drug-likeness screening drops it.
func HeavyRecord(t testing.TB, title string, prov fragment.Provenance) *mol.Mol {
	t.Helper()
	m := mol.NewMol(title)
	coords := make([]geom.Vec3, 40)
	for i := 0; i < 40; i++ {
		m.AddAtom(mol.Atom{Element: "C"})
		coords[i] = geom.Vec3{float64(i) * 1.5, 0, 0}
		if i > 0 {
			require.NoError(t, m.AddBond(i-1, i, mol.Single))
		}
	}
	_, err := m.AddConformer(coords)
	require.NoError(t, err)
	tagProvenance(m, prov)
	m.Perceive()
	return m
}

// QuinoneRecord builds cyclohexa-2,5-diene-1,4-dione, which matches the
// quinone PAINS pattern, so the substructure filter drops it.
func QuinoneRecord(t testing.TB, title string, prov fragment.Provenance) *mol.Mol {
	t.Helper()
	m := mol.NewMol(title)
	coords := make([]geom.Vec3, 8)
	for i := 0; i < 6; i++ {
		m.AddAtom(mol.Atom{Element: "C"})
		coords[i] = geom.Vec3{float64(i), 0.5, 0}
	}
	require.NoError(t, m.AddBond(0, 1, mol.Single))
	require.NoError(t, m.AddBond(1, 2, mol.Double))
	require.NoError(t, m.AddBond(2, 3, mol.Single))
	require.NoError(t, m.AddBond(3, 4, mol.Single))
	require.NoError(t, m.AddBond(4, 5, mol.Double))
	require.NoError(t, m.AddBond(5, 0, mol.Single))
	o1 := m.AddAtom(mol.Atom{Element: "O"})
	o2 := m.AddAtom(mol.Atom{Element: "O"})
	coords[o1] = geom.Vec3{-1, 0, 0}
	coords[o2] = geom.Vec3{6, 1, 0}
	require.NoError(t, m.AddBond(0, o1, mol.Double))
	require.NoError(t, m.AddBond(3, o2, mol.Double))
	_, err := m.AddConformer(coords)
	require.NoError(t, err)
	tagProvenance(m, prov)
	m.Perceive()
	return m
}

func tagProvenance(m *mol.Mol, prov fragment.Provenance) {
	names := prov.Names()
	switch len(names) {
	case 1:
		m.SetTag(fragment.SingleTag, names[0])
	case 2:
		m.SetTag(fragment.PairTag, names[0]+"-"+names[1])
	}
}
