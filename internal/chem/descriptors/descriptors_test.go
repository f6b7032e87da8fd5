package descriptors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/chem/mol"
)

func chain(t *testing.T, elements ...string) *mol.Mol {
	t.Helper()
	m := mol.NewMol("chain")
	for _, e := range elements {
		m.AddAtom(mol.Atom{Element: e})
	}
	for i := 0; i+1 < len(elements); i++ {
		require.NoError(t, m.AddBond(i, i+1, mol.Single))
	}
	m.Perceive()
	return m
}

func benzene(t *testing.T) *mol.Mol {
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
	return m
}

func aceticAcid(t *testing.T) *mol.Mol {
	t.Helper()
	m := mol.NewMol("acetic acid")
	m.AddAtom(mol.Atom{Element: "C"}) // methyl
	m.AddAtom(mol.Atom{Element: "C"}) // carboxyl
	m.AddAtom(mol.Atom{Element: "O"}) // carbonyl
	m.AddAtom(mol.Atom{Element: "O"}) // hydroxyl
	require.NoError(t, m.AddBond(0, 1, mol.Single))
	require.NoError(t, m.AddBond(1, 2, mol.Double))
	require.NoError(t, m.AddBond(1, 3, mol.Single))
	m.Perceive()
	return m
}

func TestHBCounts(t *testing.T) {
	tests := []struct {
		name string
		m    *mol.Mol
		hba  int
		hbd  int
	}{
		{"ethanol", chain(t, "C", "C", "O"), 1, 1},
		{"ethylamine", chain(t, "C", "C", "N"), 1, 2},
		{"acetic acid", aceticAcid(t), 2, 1},
		{"benzene", benzene(t), 0, 0},
		{"butane", chain(t, "C", "C", "C", "C"), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hba, HBAcceptors(tt.m), "HBA")
			assert.Equal(t, tt.hbd, HBDonors(tt.m), "HBD")
		})
	}
}

func TestCLogP_HydrocarbonsAreLipophilic(t *testing.T) {
	// n-decane: strongly positive.
	decane := chain(t, "C", "C", "C", "C", "C", "C", "C", "C", "C", "C")
	assert.Greater(t, CLogP(decane), 3.0)

	// Each CH2 adds roughly the same increment, so longer chains rank higher.
	hexane := chain(t, "C", "C", "C", "C", "C", "C")
	assert.Greater(t, CLogP(decane), CLogP(hexane))
}

func TestCLogP_PolarGroupsReduceLogP(t *testing.T) {
	butane := chain(t, "C", "C", "C", "C")
	butanol := chain(t, "C", "C", "C", "C", "O")
	butylamine := chain(t, "C", "C", "C", "C", "N")

	assert.Greater(t, CLogP(butane), CLogP(butanol))
	assert.Greater(t, CLogP(butanol), CLogP(butylamine))
}

func TestCLogP_Benzene(t *testing.T) {
	// 6 aromatic C at 0.1581 plus 6 aromatic H at 0.1230 = 1.6866.
	assert.InDelta(t, 1.6866, CLogP(benzene(t)), 1e-4)
}

func TestRotatableBonds(t *testing.T) {
	assert.Equal(t, 0, RotatableBonds(chain(t, "C", "C", "C")))
	assert.Equal(t, 1, RotatableBonds(chain(t, "C", "C", "C", "C")))
	assert.Equal(t, 3, RotatableBonds(chain(t, "C", "C", "C", "C", "C", "C")))
	assert.Equal(t, 0, RotatableBonds(benzene(t)), "ring bonds never rotate")
}

func TestRotatableBonds_AmideExcluded(t *testing.T) {
	// N-methylacetamide: CC(=O)NC. The amide C-N bond is excluded and every
	// other single bond touches a terminal heavy atom.
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

	assert.Equal(t, 0, RotatableBonds(m), "amide C-N excluded; N-CH3 is terminal")
}

func TestCompute_FillsEveryField(t *testing.T) {
	s := Compute(aceticAcid(t))
	assert.InDelta(t, 60.052, s.MolWeight, 0.01)
	assert.Equal(t, 2, s.HBA)
	assert.Equal(t, 1, s.HBD)
	assert.Equal(t, 4, s.HeavyAtoms)
	assert.Less(t, s.CLogP, 1.0)
}
