package pains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/chem/mol"
)

// buildRing returns a benzene skeleton with optional substituents attached by
// the caller.
func buildBenzene(t *testing.T) *mol.Mol {
	t.Helper()
	m := mol.NewMol("ring")
	for i := 0; i < 6; i++ {
		m.AddAtom(mol.Atom{Element: "C"})
	}
	orders := []mol.BondOrder{mol.Single, mol.Double, mol.Single, mol.Double, mol.Single, mol.Double}
	for i := 0; i < 6; i++ {
		require.NoError(t, m.AddBond(i, (i+1)%6, orders[i]))
	}
	return m
}

func catechol(t *testing.T) *mol.Mol {
	t.Helper()
	m := buildBenzene(t)
	o1 := m.AddAtom(mol.Atom{Element: "O"})
	o2 := m.AddAtom(mol.Atom{Element: "O"})
	require.NoError(t, m.AddBond(0, o1, mol.Single))
	require.NoError(t, m.AddBond(1, o2, mol.Single))
	m.Perceive()
	return m
}

func paraQuinone(t *testing.T) *mol.Mol {
	t.Helper()
	m := mol.NewMol("quinone")
	for i := 0; i < 6; i++ {
		m.AddAtom(mol.Atom{Element: "C"})
	}
	// cyclohexa-2,5-diene-1,4-dione ring
	require.NoError(t, m.AddBond(0, 1, mol.Single))
	require.NoError(t, m.AddBond(1, 2, mol.Double))
	require.NoError(t, m.AddBond(2, 3, mol.Single))
	require.NoError(t, m.AddBond(3, 4, mol.Single))
	require.NoError(t, m.AddBond(4, 5, mol.Double))
	require.NoError(t, m.AddBond(5, 0, mol.Single))
	o1 := m.AddAtom(mol.Atom{Element: "O"})
	o2 := m.AddAtom(mol.Atom{Element: "O"})
	require.NoError(t, m.AddBond(0, o1, mol.Double))
	require.NoError(t, m.AddBond(3, o2, mol.Double))
	m.Perceive()
	return m
}

func phenol(t *testing.T) *mol.Mol {
	t.Helper()
	m := buildBenzene(t)
	o := m.AddAtom(mol.Atom{Element: "O"})
	require.NoError(t, m.AddBond(0, o, mol.Single))
	m.Perceive()
	return m
}

func thiourea(t *testing.T) *mol.Mol {
	t.Helper()
	m := mol.NewMol("thiourea")
	m.AddAtom(mol.Atom{Element: "N"})
	m.AddAtom(mol.Atom{Element: "C"})
	m.AddAtom(mol.Atom{Element: "S"})
	m.AddAtom(mol.Atom{Element: "N"})
	require.NoError(t, m.AddBond(0, 1, mol.Single))
	require.NoError(t, m.AddBond(1, 2, mol.Double))
	require.NoError(t, m.AddBond(1, 3, mol.Single))
	m.Perceive()
	return m
}

func TestParseSmarts_Shapes(t *testing.T) {
	tests := []struct {
		smarts string
		atoms  int
	}{
		{"O=CC=N", 4},
		{"c1ccccc1", 6},
		{"[OH]c1ccccc1[OH]", 8},
		{"CN(C)c1ccccc1", 9},
		{"N=[N+]=[N-]", 3},
	}
	for _, tt := range tests {
		t.Run(tt.smarts, func(t *testing.T) {
			q, err := ParseSmarts(tt.smarts)
			require.NoError(t, err)
			assert.Equal(t, tt.atoms, q.NumAtoms())
		})
	}
}

func TestParseSmarts_Errors(t *testing.T) {
	for _, s := range []string{
		"",
		"C(C",
		"C)C",
		"C1CC",
		"[Qx]C",
		"[",
		"1CC",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseSmarts(s)
			assert.Error(t, err)
		})
	}
}

func TestMatches_Catechol(t *testing.T) {
	q := MustParseSmarts("[OH]c1ccccc1[OH]")
	assert.True(t, q.Matches(catechol(t)))
	assert.False(t, q.Matches(phenol(t)), "one hydroxyl is not a catechol")
	assert.False(t, q.Matches(paraQuinone(t)), "quinone ring is not aromatic")
}

func TestMatches_Quinone(t *testing.T) {
	q := MustParseSmarts("O=C1C=CC(=O)C=C1")
	assert.True(t, q.Matches(paraQuinone(t)))
	assert.False(t, q.Matches(catechol(t)))
}

// buildAnisole: methoxybenzene, a clean structure that brushes against the
// phenol-family patterns.
func buildAnisole(t *testing.T) *mol.Mol {
	t.Helper()
	m := buildBenzene(t)
	o := m.AddAtom(mol.Atom{Element: "O"})
	c := m.AddAtom(mol.Atom{Element: "C"})
	require.NoError(t, m.AddBond(0, o, mol.Single))
	require.NoError(t, m.AddBond(o, c, mol.Single))
	m.Perceive()
	return m
}

func TestMatches_HCountConstraint(t *testing.T) {
	q := MustParseSmarts("[OH]c1ccccc1")
	assert.True(t, q.Matches(phenol(t)))
	assert.False(t, q.Matches(buildAnisole(t)))
}

func TestMatches_ChargeConstraint(t *testing.T) {
	azide := mol.NewMol("azide")
	azide.AddAtom(mol.Atom{Element: "N"})
	azide.AddAtom(mol.Atom{Element: "N", Charge: 1})
	azide.AddAtom(mol.Atom{Element: "N", Charge: -1})
	require.NoError(t, azide.AddBond(0, 1, mol.Double))
	require.NoError(t, azide.AddBond(1, 2, mol.Double))
	azide.Perceive()

	q := MustParseSmarts("N=[N+]=[N-]")
	assert.True(t, q.Matches(azide))

	neutral := mol.NewMol("n3")
	neutral.AddAtom(mol.Atom{Element: "N"})
	neutral.AddAtom(mol.Atom{Element: "N"})
	neutral.AddAtom(mol.Atom{Element: "N"})
	require.NoError(t, neutral.AddBond(0, 1, mol.Double))
	require.NoError(t, neutral.AddBond(1, 2, mol.Double))
	neutral.Perceive()
	assert.False(t, q.Matches(neutral))
}

func TestScreen_DefaultCatalogs(t *testing.T) {
	hits := Screen(paraQuinone(t), Defaults())
	assert.Contains(t, hits, "quinone_A")

	hits = Screen(thiourea(t), Defaults())
	assert.Contains(t, hits, "thio_urea_B")

	assert.Empty(t, Screen(phenol(t), Defaults()))
	assert.Empty(t, Screen(buildAnisole(t), Defaults()))
}

func TestIsClean(t *testing.T) {
	assert.True(t, IsClean(phenol(t)))
	assert.False(t, IsClean(catechol(t)))
	assert.False(t, IsClean(thiourea(t)))
}

func TestDefaults_CompileAndGroup(t *testing.T) {
	cats := Defaults()
	require.Len(t, cats, 3)
	assert.Equal(t, "pains_a", cats[0].Name)
	for _, c := range cats {
		assert.NotEmpty(t, c.Patterns)
		for _, p := range c.Patterns {
			assert.NotNil(t, p.query, "pattern %s must be compiled", p.Name)
		}
	}
}
