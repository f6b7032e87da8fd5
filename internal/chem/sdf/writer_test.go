package sdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mol"
)

func buildPhenol(t *testing.T) *mol.Mol {
	t.Helper()
	m := mol.NewMol("phenol")
	for i := 0; i < 6; i++ {
		m.AddAtom(mol.Atom{Element: "C"})
	}
	m.AddAtom(mol.Atom{Element: "O"})
	orders := []mol.BondOrder{mol.Single, mol.Double, mol.Single, mol.Double, mol.Single, mol.Double}
	for i := 0; i < 6; i++ {
		require.NoError(t, m.AddBond(i, (i+1)%6, orders[i]))
	}
	require.NoError(t, m.AddBond(0, 6, mol.Single))

	coords := make([]geom.Vec3, 7)
	for i := range coords {
		coords[i] = geom.Vec3{float64(i), float64(i) * 0.5, 0}
	}
	_, err := m.AddConformer(coords)
	require.NoError(t, err)
	m.SetTag("insp_fragment", "F1")
	m.SetTag("pose_score", "0.8125")
	return m
}

func TestWriter_RoundTrip(t *testing.T) {
	orig := buildPhenol(t)

	var sb strings.Builder
	require.NoError(t, WriteAll(&sb, []*mol.Mol{orig}))

	mols, err := ReadAll(strings.NewReader(sb.String()))
	require.NoError(t, err)
	require.Len(t, mols, 1)

	got := mols[0]
	assert.Equal(t, orig.Name, got.Name)
	assert.Equal(t, orig.NumAtoms(), got.NumAtoms())
	assert.Equal(t, orig.NumBonds(), got.NumBonds())
	assert.Equal(t, orig.Tags(), got.Tags())

	want, err := orig.Conformer(0)
	require.NoError(t, err)
	have, err := got.Conformer(0)
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, want[i][0], have[i][0], 1e-4)
		assert.InDelta(t, want[i][1], have[i][1], 1e-4)
		assert.InDelta(t, want[i][2], have[i][2], 1e-4)
	}
}

func TestWriter_ChargeRoundTrip(t *testing.T) {
	m := mol.NewMol("ammonium")
	m.AddAtom(mol.Atom{Element: "N", Charge: 1})
	_, err := m.AddConformer([]geom.Vec3{{0, 0, 0}})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, WriteAll(&sb, []*mol.Mol{m}))
	assert.Contains(t, sb.String(), "M  CHG  1   1   1")

	mols, err := ReadAll(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, 1, mols[0].Atoms[0].Charge)
}

func TestWriter_SortedTags(t *testing.T) {
	m := mol.NewMol("t")
	m.AddAtom(mol.Atom{Element: "C"})
	m.SetTag("z_last", "1")
	m.SetTag("a_first", "2")

	var sb strings.Builder
	require.NoError(t, WriteAll(&sb, []*mol.Mol{m}))
	out := sb.String()
	assert.Less(t, strings.Index(out, "a_first"), strings.Index(out, "z_last"))
}

func TestWriter_NoConformerWritesZeros(t *testing.T) {
	m := mol.NewMol("flat")
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "O"})
	require.NoError(t, m.AddBond(0, 1, mol.Double))

	var sb strings.Builder
	require.NoError(t, WriteAll(&sb, []*mol.Mol{m}))
	assert.Contains(t, sb.String(), "    0.0000    0.0000    0.0000 C")
}

func TestWriter_ConformerSelection(t *testing.T) {
	m := mol.NewMol("c")
	m.AddAtom(mol.Atom{Element: "C"})
	_, err := m.AddConformer([]geom.Vec3{{0, 0, 0}})
	require.NoError(t, err)
	_, err = m.AddConformer([]geom.Vec3{{3.25, 0, 0}})
	require.NoError(t, err)

	var sb strings.Builder
	w := NewWriter(&sb)
	require.NoError(t, w.WriteConformer(m, 1))
	require.NoError(t, w.Flush())
	assert.Contains(t, sb.String(), "    3.2500")

	assert.Error(t, w.WriteConformer(m, 5))
}

func TestToMolBlock(t *testing.T) {
	m := buildPhenol(t)
	block, err := ToMolBlock(m, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(block, "M  END\n"))
	assert.NotContains(t, block, "$$$$")
	assert.NotContains(t, block, "insp_fragment")
}
