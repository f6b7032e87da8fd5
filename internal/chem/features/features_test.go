package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mol"
)

// withGrid attaches a simple linear conformer so positions are defined.
func withGrid(t *testing.T, m *mol.Mol) *mol.Mol {
	t.Helper()
	coords := make([]geom.Vec3, m.NumAtoms())
	for i := range coords {
		coords[i] = geom.Vec3{float64(i) * 1.5, 0, 0}
	}
	_, err := m.AddConformer(coords)
	require.NoError(t, err)
	return m
}

func ethanolamine(t *testing.T) *mol.Mol {
	t.Helper()
	m := mol.NewMol("ethanolamine")
	m.AddAtom(mol.Atom{Element: "O"})
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "N"})
	require.NoError(t, m.AddBond(0, 1, mol.Single))
	require.NoError(t, m.AddBond(1, 2, mol.Single))
	require.NoError(t, m.AddBond(2, 3, mol.Single))
	m.Perceive()
	return withGrid(t, m)
}

func benzene3D(t *testing.T) *mol.Mol {
	t.Helper()
	m := mol.NewMol("benzene")
	for i := 0; i < 6; i++ {
		m.AddAtom(mol.Atom{Element: "C"})
	}
	orders := []mol.BondOrder{mol.Single, mol.Double, mol.Single, mol.Double, mol.Single, mol.Double}
	for i := 0; i < 6; i++ {
		require.NoError(t, m.AddBond(i, (i+1)%6, orders[i]))
	}
	m.Perceive()
	return withGrid(t, m)
}

func acetate3D(t *testing.T) *mol.Mol {
	t.Helper()
	m := mol.NewMol("acetate")
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "O"})
	m.AddAtom(mol.Atom{Element: "O", Charge: -1})
	require.NoError(t, m.AddBond(0, 1, mol.Single))
	require.NoError(t, m.AddBond(1, 2, mol.Double))
	require.NoError(t, m.AddBond(1, 3, mol.Single))
	m.Perceive()
	return withGrid(t, m)
}

func TestPerceive_DonorAcceptor(t *testing.T) {
	fs, err := Perceive(ethanolamine(t), 0)
	require.NoError(t, err)
	byFam := ByFamily(fs)

	// Hydroxyl O and amine N both donate; both accept.
	assert.Len(t, byFam[Donor], 2)
	assert.Len(t, byFam[Acceptor], 2)
	// The sp3 amine is protonatable.
	require.Len(t, byFam[PosIonizable], 1)
	assert.Equal(t, []int{3}, byFam[PosIonizable][0].Atoms)
}

func TestPerceive_AromaticRing(t *testing.T) {
	fs, err := Perceive(benzene3D(t), 0)
	require.NoError(t, err)
	byFam := ByFamily(fs)

	require.Len(t, byFam[Aromatic], 1)
	assert.Len(t, byFam[Aromatic][0].Atoms, 6)
	// Ring centroid of the linear test grid: mean x of 0..5 times 1.5.
	assert.InDelta(t, 3.75, byFam[Aromatic][0].Pos[0], 1e-9)
	assert.Empty(t, byFam[Hydrophobe], "aromatic carbons are not chain hydrophobes")
}

func TestPerceive_NegIonizableAndZnBinder(t *testing.T) {
	fs, err := Perceive(acetate3D(t), 0)
	require.NoError(t, err)
	byFam := ByFamily(fs)

	require.Len(t, byFam[NegIonizable], 1)
	assert.ElementsMatch(t, []int{1, 2, 3}, byFam[NegIonizable][0].Atoms)
	require.Len(t, byFam[ZnBinder], 1, "charged carboxylate oxygen binds zinc")
	assert.Equal(t, []int{3}, byFam[ZnBinder][0].Atoms)
}

func TestPerceive_AmideNitrogenIsNeither(t *testing.T) {
	// N-methylacetamide: amide N neither accepts nor protonates.
	m := mol.NewMol("nma")
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "O"})
	m.AddAtom(mol.Atom{Element: "N"})
	m.AddAtom(mol.Atom{Element: "C"})
	require.NoError(t, m.AddBond(0, 1, mol.Single))
	require.NoError(t, m.AddBond(1, 2, mol.Double))
	require.NoError(t, m.AddBond(1, 3, mol.Single))
	require.NoError(t, m.AddBond(3, 4, mol.Single))
	m.Perceive()
	withGrid(t, m)

	fs, err := Perceive(m, 0)
	require.NoError(t, err)
	byFam := ByFamily(fs)

	for _, f := range byFam[Acceptor] {
		assert.NotEqual(t, []int{3}, f.Atoms, "amide N must not accept")
	}
	assert.Empty(t, byFam[PosIonizable], "amide N must not protonate")
	// The N-H still donates.
	donorAtoms := [][]int{}
	for _, f := range byFam[Donor] {
		donorAtoms = append(donorAtoms, f.Atoms)
	}
	assert.Contains(t, donorAtoms, []int{3})
}

func TestPerceive_LumpedHydrophobe(t *testing.T) {
	m := mol.NewMol("pentane")
	for i := 0; i < 5; i++ {
		m.AddAtom(mol.Atom{Element: "C"})
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, m.AddBond(i, i+1, mol.Single))
	}
	m.Perceive()
	withGrid(t, m)

	fs, err := Perceive(m, 0)
	require.NoError(t, err)
	byFam := ByFamily(fs)

	assert.Len(t, byFam[Hydrophobe], 5)
	require.Len(t, byFam[LumpedHydrophobe], 1)
	assert.Len(t, byFam[LumpedHydrophobe][0].Atoms, 5)
}

func TestPerceive_RequiresConformer(t *testing.T) {
	m := mol.NewMol("bare")
	m.AddAtom(mol.Atom{Element: "C"})
	_, err := Perceive(m, 0)
	assert.Error(t, err)
}

func TestOverlapScore_IdenticalIsOne(t *testing.T) {
	fs, err := Perceive(ethanolamine(t), 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, OverlapScore(fs, fs, 1.5))
}

func TestOverlapScore_DisjointIsZero(t *testing.T) {
	a := []Feature{{Family: Donor, Pos: geom.Vec3{0, 0, 0}}}
	b := []Feature{{Family: Donor, Pos: geom.Vec3{100, 0, 0}}}
	assert.Equal(t, 0.0, OverlapScore(a, b, 1.5))

	c := []Feature{{Family: Acceptor, Pos: geom.Vec3{0, 0, 0}}}
	assert.Equal(t, 0.0, OverlapScore(a, c, 1.5), "family mismatch never matches")
}

func TestOverlapScore_NormalizedBySmallerCount(t *testing.T) {
	ref := []Feature{
		{Family: Donor, Pos: geom.Vec3{0, 0, 0}},
		{Family: Acceptor, Pos: geom.Vec3{3, 0, 0}},
	}
	probe := []Feature{{Family: Donor, Pos: geom.Vec3{0.5, 0, 0}}}
	// One match, min count 1.
	assert.Equal(t, 1.0, OverlapScore(ref, probe, 1.5))
}

func TestOverlapScore_EmptySideIsZero(t *testing.T) {
	fs := []Feature{{Family: Donor, Pos: geom.Vec3{0, 0, 0}}}
	assert.Equal(t, 0.0, OverlapScore(nil, fs, 1.5))
	assert.Equal(t, 0.0, OverlapScore(fs, nil, 1.5))
}

func TestFamilyString(t *testing.T) {
	assert.Equal(t, "lumped-hydrophobe", LumpedHydrophobe.String())
	assert.Equal(t, "zinc-binder", ZnBinder.String())
	assert.Len(t, Families, 8)
}
