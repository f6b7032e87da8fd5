package mol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/chem/geom"
)

// benzeneKekule builds C6H6 with alternating single/double bonds.
func benzeneKekule() *Mol {
	m := NewMol("benzene")
	for i := 0; i < 6; i++ {
		m.AddAtom(Atom{Element: "C"})
	}
	orders := []BondOrder{Single, Double, Single, Double, Single, Double}
	for i := 0; i < 6; i++ {
		_ = m.AddBond(i, (i+1)%6, orders[i])
	}
	m.Perceive()
	return m
}

// ethanol builds CCO.
func ethanol() *Mol {
	m := NewMol("ethanol")
	m.AddAtom(Atom{Element: "C"})
	m.AddAtom(Atom{Element: "C"})
	m.AddAtom(Atom{Element: "O"})
	_ = m.AddBond(0, 1, Single)
	_ = m.AddBond(1, 2, Single)
	m.Perceive()
	return m
}

func TestMol_AddBond_Validation(t *testing.T) {
	m := NewMol("x")
	m.AddAtom(Atom{Element: "C"})
	m.AddAtom(Atom{Element: "C"})

	require.NoError(t, m.AddBond(0, 1, Single))
	assert.Error(t, m.AddBond(0, 5, Single))
	assert.Error(t, m.AddBond(-1, 1, Single))
	assert.Error(t, m.AddBond(1, 1, Single))
}

func TestMol_Conformers(t *testing.T) {
	m := ethanol()
	coords := []geom.Vec3{{0, 0, 0}, {1.5, 0, 0}, {2.2, 1.2, 0}}

	idx, err := m.AddConformer(coords)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, m.NumConformers())

	got, err := m.Conformer(0)
	require.NoError(t, err)
	assert.Equal(t, coords, got)

	_, err = m.Conformer(1)
	assert.Error(t, err)

	_, err = m.AddConformer(coords[:2])
	assert.Error(t, err)

	m.ClearConformers()
	assert.Equal(t, 0, m.NumConformers())
}

func TestMol_Tags(t *testing.T) {
	m := NewMol("x")
	_, ok := m.Tag("insp_fragment")
	assert.False(t, ok)

	m.SetTag("insp_fragment", "F1")
	v, ok := m.Tag("insp_fragment")
	assert.True(t, ok)
	assert.Equal(t, "F1", v)

	tags := m.Tags()
	tags["insp_fragment"] = "mutated"
	v, _ = m.Tag("insp_fragment")
	assert.Equal(t, "F1", v, "Tags() must return a copy")
}

func TestMol_Copy_Independent(t *testing.T) {
	m := ethanol()
	_, err := m.AddConformer([]geom.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}})
	require.NoError(t, err)
	m.SetTag("k", "v")

	c := m.Copy()
	c.Atoms[0].Element = "N"
	c.SetTag("k", "changed")
	conf, _ := c.Conformer(0)
	conf[0] = geom.Vec3{9, 9, 9}

	assert.Equal(t, "C", m.Atoms[0].Element)
	v, _ := m.Tag("k")
	assert.Equal(t, "v", v)
	orig, _ := m.Conformer(0)
	assert.Equal(t, geom.Vec3{0, 0, 0}, orig[0])
}

func TestMol_MolecularWeight_Benzene(t *testing.T) {
	m := benzeneKekule()
	// C6H6 = 6*12.011 + 6*1.008 = 78.114
	assert.InDelta(t, 78.114, m.MolecularWeight(), 0.01)
}

func TestMol_MolecularWeight_Ethanol(t *testing.T) {
	m := ethanol()
	// C2H6O = 46.069
	assert.InDelta(t, 46.069, m.MolecularWeight(), 0.01)
}

func TestMol_Formula(t *testing.T) {
	assert.Equal(t, "C6H6", benzeneKekule().Formula())
	assert.Equal(t, "C2H6O", ethanol().Formula())
}

func TestAtomicMass_UnknownFallsBackToCarbon(t *testing.T) {
	assert.Equal(t, AtomicMass("C"), AtomicMass("Xx"))
}

func TestBond_Other(t *testing.T) {
	b := Bond{From: 2, To: 7}
	assert.Equal(t, 7, b.Other(2))
	assert.Equal(t, 2, b.Other(7))
}
