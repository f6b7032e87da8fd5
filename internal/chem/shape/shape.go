// Package shape measures volumetric relations between conformers on a boolean
// voxel grid of van der Waals spheres. Structures are made hydrogen-explicit
// before rasterization so thin heavy-atom skeletons do not undercount volume.
package shape

import (
	"math"

	"github.com/molforge/fragelab/internal/chem/geom"
	"github.com/molforge/fragelab/internal/chem/mol"
	"github.com/molforge/fragelab/pkg/errors"
)

// DefaultSpacing is the voxel edge length in ångströms.
const DefaultSpacing = 0.4

// Params tunes the grid.
type Params struct {
	// Spacing is the voxel edge length; zero means DefaultSpacing.
	Spacing float64
}

func (p Params) spacing() float64 {
	if p.Spacing > 0 {
		return p.Spacing
	}
	return DefaultSpacing
}

// ProtrusionDist returns the fraction of the probe conformer's volume lying
// outside the reference conformer's volume: 0 when the probe is buried in the
// reference, 1 when the two do not touch.
func ProtrusionDist(probe *mol.Mol, probeConf int, ref *mol.Mol, refConf int, p Params) (float64, error) {
	probeVol, refVol, err := occupancies(probe, probeConf, ref, refConf, p.spacing())
	if err != nil {
		return 0, err
	}
	inProbe, shared := 0, 0
	for i, occ := range probeVol {
		if !occ {
			continue
		}
		inProbe++
		if refVol[i] {
			shared++
		}
	}
	if inProbe == 0 {
		return 0, errors.New(errors.ErrCodeInvalidStructure, "probe structure has no volume")
	}
	return float64(inProbe-shared) / float64(inProbe), nil
}

// TanimotoDist returns 1 − V∩/V∪ over the two conformer volumes; 0 for
// identical shapes, 1 for disjoint ones.
func TanimotoDist(a *mol.Mol, aConf int, b *mol.Mol, bConf int, p Params) (float64, error) {
	aVol, bVol, err := occupancies(a, aConf, b, bConf, p.spacing())
	if err != nil {
		return 0, err
	}
	union, shared := 0, 0
	for i, occ := range aVol {
		switch {
		case occ && bVol[i]:
			shared++
			union++
		case occ || bVol[i]:
			union++
		}
	}
	if union == 0 {
		return 0, errors.New(errors.ErrCodeInvalidStructure, "structures have no volume")
	}
	return 1 - float64(shared)/float64(union), nil
}

// occupancies rasterizes both hydrogen-explicit conformers onto one shared
// grid spanning their joint bounding box.
func occupancies(a *mol.Mol, aConf int, b *mol.Mol, bConf int, spacing float64) ([]bool, []bool, error) {
	ca, ra, err := explicitSpheres(a, aConf)
	if err != nil {
		return nil, nil, err
	}
	cb, rb, err := explicitSpheres(b, bConf)
	if err != nil {
		return nil, nil, err
	}

	g := gridOver(spacing, ca, ra, cb, rb)
	va := g.rasterize(ca, ra)
	vb := g.rasterize(cb, rb)
	return va, vb, nil
}

// explicitSpheres returns the conformer's coordinates and van der Waals radii
// with implicit hydrogens realised.
func explicitSpheres(m *mol.Mol, conf int) ([]geom.Vec3, []float64, error) {
	if m.NumAtoms() == 0 {
		return nil, nil, errors.New(errors.ErrCodeInvalidStructure, "cannot rasterize an empty structure")
	}
	h := mol.AddHs(m)
	coords, err := h.Conformer(conf)
	if err != nil {
		return nil, nil, err
	}
	radii := make([]float64, h.NumAtoms())
	for i := range h.Atoms {
		radii[i] = mol.VdwRadius(h.Atoms[i].Element)
	}
	return coords, radii, nil
}

type voxelGrid struct {
	origin     geom.Vec3
	nx, ny, nz int
	spacing    float64
}

// gridOver spans the union of both sphere sets, padded by one voxel.
func gridOver(spacing float64, ca []geom.Vec3, ra []float64, cb []geom.Vec3, rb []float64) voxelGrid {
	lo := geom.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := geom.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	extend := func(coords []geom.Vec3, radii []float64) {
		for i, c := range coords {
			for axis := 0; axis < 3; axis++ {
				if v := c[axis] - radii[i]; v < lo[axis] {
					lo[axis] = v
				}
				if v := c[axis] + radii[i]; v > hi[axis] {
					hi[axis] = v
				}
			}
		}
	}
	extend(ca, ra)
	extend(cb, rb)

	for axis := 0; axis < 3; axis++ {
		lo[axis] -= spacing
		hi[axis] += spacing
	}
	return voxelGrid{
		origin:  lo,
		nx:      int(math.Ceil((hi[0]-lo[0])/spacing)) + 1,
		ny:      int(math.Ceil((hi[1]-lo[1])/spacing)) + 1,
		nz:      int(math.Ceil((hi[2]-lo[2])/spacing)) + 1,
		spacing: spacing,
	}
}

// rasterize marks every voxel whose centre falls inside any sphere. Each
// sphere only visits its own sub-box.
func (g voxelGrid) rasterize(coords []geom.Vec3, radii []float64) []bool {
	cells := make([]bool, g.nx*g.ny*g.nz)
	for i, c := range coords {
		r := radii[i]
		r2 := r * r
		x0, x1 := g.clampX(c[0]-r), g.clampX(c[0]+r)
		y0, y1 := g.clampY(c[1]-r), g.clampY(c[1]+r)
		z0, z1 := g.clampZ(c[2]-r), g.clampZ(c[2]+r)
		for ix := x0; ix <= x1; ix++ {
			cx := g.origin[0] + float64(ix)*g.spacing
			dx2 := (cx - c[0]) * (cx - c[0])
			for iy := y0; iy <= y1; iy++ {
				cy := g.origin[1] + float64(iy)*g.spacing
				dy2 := (cy - c[1]) * (cy - c[1])
				if dx2+dy2 > r2 {
					continue
				}
				base := (ix*g.ny + iy) * g.nz
				for iz := z0; iz <= z1; iz++ {
					cz := g.origin[2] + float64(iz)*g.spacing
					if dz := cz - c[2]; dx2+dy2+dz*dz <= r2 {
						cells[base+iz] = true
					}
				}
			}
		}
	}
	return cells
}

func (g voxelGrid) clampX(v float64) int { return clampIndex(v, g.origin[0], g.spacing, g.nx) }
func (g voxelGrid) clampY(v float64) int { return clampIndex(v, g.origin[1], g.spacing, g.ny) }
func (g voxelGrid) clampZ(v float64) int { return clampIndex(v, g.origin[2], g.spacing, g.nz) }

func clampIndex(v, origin, spacing float64, n int) int {
	idx := int(math.Floor((v - origin) / spacing))
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
