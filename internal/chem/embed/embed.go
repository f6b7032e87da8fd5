// Package embed generates 3D conformers by distance geometry: a
// triangle-smoothed bounds matrix, random metrization, eigendecomposition of
// the metric matrix, and a bounds-violation minimizer. EmbedConstrained
// additionally pins a matched atom core to reference coordinates, which is
// how elaborated candidates inherit the pose of their parent fragment.
package embed

import (
	"math"
	"math/rand"

	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/pkg/errors"
)

const (
	defaultMaxIters = 600

	// convergenceLimit is the largest residual bounds violation accepted as
	// a usable conformer.
	convergenceLimit = 0.5

	// embedAttempts bounds the retries with fresh metrizations before the
	// embedding is reported as failed.
	embedAttempts = 4
)

// Params tunes an embedding run.
type Params struct {
	// Seed drives the metrization RNG. Zero draws a seed from the global
	// source, so repeated calls produce different conformers.
	Seed int64

	// MaxIters caps the minimizer; zero means the package default.
	MaxIters int
}

func (p Params) iters() int {
	if p.MaxIters > 0 {
		return p.MaxIters
	}
	return defaultMaxIters
}

// Embed computes one conformer for m and returns its coordinates without
// touching m. The same seed over the same molecule reproduces the exact
// coordinates.
func Embed(m *mol.Mol, p Params) ([]geom.Vec3, error) {
	n := m.NumAtoms()
	if n == 0 {
		return nil, errors.New(errors.ErrCodeInvalidStructure, "cannot embed an empty structure")
	}
	if n == 1 {
		return []geom.Vec3{{}}, nil
	}

	seed := p.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))
	b := boundsFor(m)

	var coords []geom.Vec3
	viol := math.Inf(1)
	for attempt := 0; attempt < embedAttempts; attempt++ {
		coords = embedOnce(b, rng, p.iters(), nil, nil)
		if viol = maxViolation(coords, b); viol <= convergenceLimit {
			return coords, nil
		}
	}
	return nil, errors.Newf(errors.ErrCodeEmbeddingFailed,
		"no conformer within distance bounds after %d attempts (worst violation %.2f Å)",
		embedAttempts, viol)
}

// EmbedMultiple computes count independent conformers. With a non-zero seed
// every conformer k is reproducible; with seed zero each run differs. Any
// conformer failing to converge fails the whole call.
func EmbedMultiple(m *mol.Mol, count int, p Params) ([][]geom.Vec3, error) {
	if count <= 0 {
		return nil, errors.Newf(errors.ErrCodeValidation, "conformer count must be positive, got %d", count)
	}
	out := make([][]geom.Vec3, count)
	for k := 0; k < count; k++ {
		cp := p
		if p.Seed != 0 {
			// Spread the children over distinct streams; consecutive seeds
			// correlate in the default source.
			cp.Seed = p.Seed + int64(k)*0x9E3779B9
		}
		coords, err := Embed(m, cp)
		if err != nil {
			return nil, errors.Wrapf(err, errors.GetCode(err), "conformer %d of %d", k+1, count)
		}
		out[k] = coords
	}
	return out, nil
}

// embedOnce runs one metrize-project-minimize cycle. When fixed is non-nil
// the coordinates are first rigidly aligned onto the pinned positions, the
// pinned atoms snapped exactly, and the minimizer leaves them in place.
func embedOnce(b *boundsMatrix, rng *rand.Rand, iters int, fixed []bool, pinned []geom.Vec3) []geom.Vec3 {
	d := metrize(b, rng)
	coords := coordsFromDistances(d)

	if fixed != nil {
		var moving, target []geom.Vec3
		for i, f := range fixed {
			if f {
				moving = append(moving, coords[i])
				target = append(target, pinned[i])
			}
		}
		if tr, _, err := geom.Superpose(moving, target); err == nil {
			coords = tr.ApplyAll(coords)
		}
		for i, f := range fixed {
			if f {
				coords[i] = pinned[i]
			}
		}
	}

	minimize(coords, b, fixed, iters)
	return coords
}

// metrize draws one distance per pair, uniformly within its bounds.
func metrize(b *boundsMatrix, rng *rand.Rand) [][]float64 {
	d := make([][]float64, b.n)
	for i := range d {
		d[i] = make([]float64, b.n)
	}
	for i := 0; i < b.n-1; i++ {
		for j := i + 1; j < b.n; j++ {
			v := b.lower[i][j] + rng.Float64()*(b.upper[i][j]-b.lower[i][j])
			d[i][j], d[j][i] = v, v
		}
	}
	return d
}

// coordsFromDistances converts a (possibly inconsistent) distance matrix into
// 3D coordinates: squared distances to the centroid by Lagrange's theorem,
// the Gram matrix from the cosine law, and its top three eigenpairs as axes.
func coordsFromDistances(d [][]float64) []geom.Vec3 {
	n := len(d)
	sumAll := 0.0
	for j := 0; j < n-1; j++ {
		for k := j + 1; k < n; k++ {
			sumAll += d[j][k] * d[j][k]
		}
	}

	fn := float64(n)
	d0 := make([]float64, n) // squared distance to the centroid
	for i := 0; i < n; i++ {
		s := 0.0
		for j := 0; j < n; j++ {
			s += d[i][j] * d[i][j]
		}
		d0[i] = s/fn - sumAll/(fn*fn)
	}

	g := make([][]float64, n)
	for i := 0; i < n; i++ {
		g[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			g[i][j] = 0.5 * (d0[i] + d0[j] - d[i][j]*d[i][j])
		}
	}

	values, vectors := geom.JacobiEigen(g)
	coords := make([]geom.Vec3, n)
	for axis := 0; axis < 3 && axis < n; axis++ {
		if values[axis] <= 0 {
			continue
		}
		scale := math.Sqrt(values[axis])
		for i := 0; i < n; i++ {
			coords[i][axis] = vectors[i][axis] * scale
		}
	}
	return coords
}

// minimize runs backtracking steepest descent on the squared bounds
// violations. Fixed atoms never move.
func minimize(coords []geom.Vec3, b *boundsMatrix, fixed []bool, maxIters int) {
	lr := 0.05
	e := violationEnergy(coords, b)
	trial := make([]geom.Vec3, len(coords))

	for it := 0; it < maxIters && e > 1e-10; it++ {
		grad := violationGradient(coords, b, fixed)
		gn := 0.0
		for _, g := range grad {
			gn += g.Norm2()
		}
		if gn < 1e-14 {
			break
		}

		for i := range coords {
			trial[i] = coords[i].Sub(grad[i].Scale(lr))
		}
		if et := violationEnergy(trial, b); et <= e {
			copy(coords, trial)
			e = et
			lr = math.Min(lr*1.2, 0.3)
		} else {
			lr *= 0.5
			if lr < 1e-8 {
				break
			}
		}
	}
}

func violationEnergy(coords []geom.Vec3, b *boundsMatrix) float64 {
	e := 0.0
	for i := 0; i < b.n-1; i++ {
		for j := i + 1; j < b.n; j++ {
			d := coords[i].Dist(coords[j])
			if d > b.upper[i][j] {
				t := d - b.upper[i][j]
				e += t * t
			} else if d < b.lower[i][j] {
				t := b.lower[i][j] - d
				e += t * t
			}
		}
	}
	return e
}

func violationGradient(coords []geom.Vec3, b *boundsMatrix, fixed []bool) []geom.Vec3 {
	grad := make([]geom.Vec3, len(coords))
	for i := 0; i < b.n-1; i++ {
		for j := i + 1; j < b.n; j++ {
			diff := coords[i].Sub(coords[j])
			d := diff.Norm()
			if d < 1e-9 {
				// Coincident points: push them apart along a fixed axis so
				// the step stays deterministic.
				diff = geom.Vec3{1, 0, 0}
				d = 1
			}
			var factor float64
			switch {
			case d > b.upper[i][j]:
				factor = 2 * (d - b.upper[i][j]) / d
			case d < b.lower[i][j]:
				factor = 2 * (d - b.lower[i][j]) / d
			default:
				continue
			}
			step := diff.Scale(factor)
			grad[i] = grad[i].Add(step)
			grad[j] = grad[j].Sub(step)
		}
	}
	if fixed != nil {
		for i, f := range fixed {
			if f {
				grad[i] = geom.Vec3{}
			}
		}
	}
	return grad
}

// maxViolation returns the largest distance-bound breach in ångströms.
func maxViolation(coords []geom.Vec3, b *boundsMatrix) float64 {
	worst := 0.0
	for i := 0; i < b.n-1; i++ {
		for j := i + 1; j < b.n; j++ {
			d := coords[i].Dist(coords[j])
			if v := d - b.upper[i][j]; v > worst {
				worst = v
			}
			if v := b.lower[i][j] - d; v > worst {
				worst = v
			}
		}
	}
	return worst
}
