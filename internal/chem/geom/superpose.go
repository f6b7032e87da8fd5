package geom

import (
	"math"

	"github.com/molforge/fragelab/pkg/errors"
)

// Transform is a rigid-body transform: rotation followed by translation.
type Transform struct {
	R Mat3
	T Vec3
}

// IdentityTransform returns the transform that maps every point to itself.
func IdentityTransform() Transform {
	return Transform{R: Identity3()}
}

// Apply returns R·p + T.
func (tr Transform) Apply(p Vec3) Vec3 {
	return tr.R.MulVec(p).Add(tr.T)
}

// ApplyAll returns a new slice with the transform applied to every point.
func (tr Transform) ApplyAll(pts []Vec3) []Vec3 {
	out := make([]Vec3, len(pts))
	for i, p := range pts {
		out[i] = tr.Apply(p)
	}
	return out
}

// Superpose computes the least-squares rigid transform mapping the moving
// point set onto the fixed one, using Horn's quaternion method. Quaternions
// only encode proper rotations, so the result never contains a reflection.
// It returns the transform and the RMSD of the superposed pairs.
func Superpose(moving, fixed []Vec3) (Transform, float64, error) {
	if len(moving) != len(fixed) {
		return Transform{}, 0, errors.New(errors.ErrCodeGeometryFailed,
			"superpose: point sets differ in length")
	}
	if len(moving) == 0 {
		return Transform{}, 0, errors.New(errors.ErrCodeGeometryFailed,
			"superpose: empty point sets")
	}

	cm := Centroid(moving)
	cf := Centroid(fixed)

	// Covariance S = Σ (m_i - cm) ⊗ (f_i - cf).
	var s Mat3
	for i := range moving {
		a := moving[i].Sub(cm)
		b := fixed[i].Sub(cf)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				s[r][c] += a[r] * b[c]
			}
		}
	}

	// Horn's symmetric 4×4 key matrix; its top eigenvector is the optimal
	// unit quaternion (w, x, y, z).
	k := [][]float64{
		{s[0][0] + s[1][1] + s[2][2], s[1][2] - s[2][1], s[2][0] - s[0][2], s[0][1] - s[1][0]},
		{s[1][2] - s[2][1], s[0][0] - s[1][1] - s[2][2], s[0][1] + s[1][0], s[2][0] + s[0][2]},
		{s[2][0] - s[0][2], s[0][1] + s[1][0], -s[0][0] + s[1][1] - s[2][2], s[1][2] + s[2][1]},
		{s[0][1] - s[1][0], s[2][0] + s[0][2], s[1][2] + s[2][1], -s[0][0] - s[1][1] + s[2][2]},
	}
	_, vecs := JacobiEigen(k)
	q := [4]float64{vecs[0][0], vecs[1][0], vecs[2][0], vecs[3][0]}

	r := quaternionToRotation(q)
	t := cf.Sub(r.MulVec(cm))
	tr := Transform{R: r, T: t}

	return tr, RMSD(tr.ApplyAll(moving), fixed), nil
}

// quaternionToRotation converts a unit quaternion (w, x, y, z) into a
// rotation matrix.
func quaternionToRotation(q [4]float64) Mat3 {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if n == 0 {
		return Identity3()
	}
	w, x, y, z := q[0]/n, q[1]/n, q[2]/n, q[3]/n
	return Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// RMSD returns the root-mean-square deviation between two equal-length point
// sets, without aligning them first. Empty or mismatched inputs yield 0.
func RMSD(a, b []Vec3) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += a[i].Dist2(b[i])
	}
	return math.Sqrt(sum / float64(len(a)))
}
