package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMat3_MulVec(t *testing.T) {
	// 90° rotation about z maps x onto y.
	rz := Mat3{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}
	got := rz.MulVec(Vec3{1, 0, 0})
	assert.InDelta(t, 0, got[0], 1e-12)
	assert.InDelta(t, 1, got[1], 1e-12)
	assert.InDelta(t, 0, got[2], 1e-12)
}

func TestMat3_MulAndTranspose(t *testing.T) {
	rz := Mat3{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}
	// R · Rᵀ = I for any rotation.
	prod := rz.Mul(rz.Transpose())
	id := Identity3()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, id[i][j], prod[i][j], 1e-12)
		}
	}
}

func TestMat3_Det(t *testing.T) {
	assert.InDelta(t, 1.0, Identity3().Det(), 1e-12)
	scale := Mat3{{2, 0, 0}, {0, 3, 0}, {0, 0, 4}}
	assert.InDelta(t, 24.0, scale.Det(), 1e-12)
	mirror := Mat3{{-1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	assert.InDelta(t, -1.0, mirror.Det(), 1e-12)
}

func TestJacobiEigen_Diagonal(t *testing.T) {
	a := [][]float64{
		{2, 0, 0},
		{0, 5, 0},
		{0, 0, 3},
	}
	vals, _ := JacobiEigen(a)
	require.Len(t, vals, 3)
	assert.InDelta(t, 5.0, vals[0], 1e-10)
	assert.InDelta(t, 3.0, vals[1], 1e-10)
	assert.InDelta(t, 2.0, vals[2], 1e-10)
}

func TestJacobiEigen_Symmetric(t *testing.T) {
	// Eigenvalues of [[2,1],[1,2]] embedded in 3×3 are 3 and 1.
	a := [][]float64{
		{2, 1, 0},
		{1, 2, 0},
		{0, 0, 7},
	}
	vals, vecs := JacobiEigen(a)
	assert.InDelta(t, 7.0, vals[0], 1e-10)
	assert.InDelta(t, 3.0, vals[1], 1e-10)
	assert.InDelta(t, 1.0, vals[2], 1e-10)

	// Verify A·v = λ·v for every eigenpair.
	n := len(a)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			av := 0.0
			for j := 0; j < n; j++ {
				av += a[i][j] * vecs[j][k]
			}
			assert.InDelta(t, vals[k]*vecs[i][k], av, 1e-9)
		}
	}
}

func TestJacobiEigen_InputUnmodified(t *testing.T) {
	a := [][]float64{
		{4, 1},
		{1, 4},
	}
	JacobiEigen(a)
	assert.Equal(t, 4.0, a[0][0])
	assert.Equal(t, 1.0, a[0][1])
}

func TestJacobiEigen_EigenvectorsOrthonormal(t *testing.T) {
	a := [][]float64{
		{3, 1, 1},
		{1, 3, 1},
		{1, 1, 3},
	}
	_, vecs := JacobiEigen(a)
	n := len(a)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			dot := 0.0
			for i := 0; i < n; i++ {
				dot += vecs[i][p] * vecs[i][q]
			}
			want := 0.0
			if p == q {
				want = 1.0
			}
			assert.InDelta(t, want, dot, 1e-9)
		}
	}
}
