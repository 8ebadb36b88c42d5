// Package geom holds the voxel grid geometry shared by volumes, label maps
// and segmentations: IJK to RAS affines, LPS/RAS conversion and the
// pixel-to-patient mappings used by planar annotations.
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vec3 is a point or direction in 3D
type Vec3 [3]float64

// Add returns v+o
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }

// Sub returns v-o
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

// Scale returns v*s
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }

// Dot returns the dot product
func (v Vec3) Dot(o Vec3) float64 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

// Cross returns the cross product
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

// Norm returns the Euclidean length
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// LPSToRAS flips x and y. The conversion is its own inverse.
func LPSToRAS(p Vec3) Vec3 { return Vec3{-p[0], -p[1], p[2]} }

// RASToLPS flips x and y
func RASToLPS(p Vec3) Vec3 { return LPSToRAS(p) }

// Grid is a voxel lattice: dimensions plus a 4x4 IJK to RAS affine
type Grid struct {
	Dims     [3]int
	IJKToRAS *mat.Dense
}

// NewGrid builds a grid from an RAS origin, per-axis spacing and the unit
// RAS directions of increasing i, j and k.
func NewGrid(dims [3]int, origin Vec3, spacing [3]float64, dirs [3]Vec3) Grid {
	m := mat.NewDense(4, 4, nil)
	for axis := 0; axis < 3; axis++ {
		for row := 0; row < 3; row++ {
			m.Set(row, axis, dirs[axis][row]*spacing[axis])
		}
	}
	for row := 0; row < 3; row++ {
		m.Set(row, 3, origin[row])
	}
	m.Set(3, 3, 1)
	return Grid{Dims: dims, IJKToRAS: m}
}

// IdentityDirs are the axis aligned directions
var IdentityDirs = [3]Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// FromLPS builds a grid from DICOM patient geometry. origin and dirs are in
// LPS and are flipped to RAS.
func FromLPS(dims [3]int, origin Vec3, spacing [3]float64, dirs [3]Vec3) Grid {
	var ras [3]Vec3
	for i, d := range dirs {
		ras[i] = LPSToRAS(d)
	}
	return NewGrid(dims, LPSToRAS(origin), spacing, ras)
}

// Len returns the number of voxels
func (g Grid) Len() int { return g.Dims[0] * g.Dims[1] * g.Dims[2] }

// Index returns the flat offset of (i, j, k), i fastest
func (g Grid) Index(i, j, k int) int { return (k*g.Dims[1]+j)*g.Dims[0] + i }

// Contains reports whether (i, j, k) lies inside the grid
func (g Grid) Contains(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < g.Dims[0] && j < g.Dims[1] && k < g.Dims[2]
}

// Origin returns the RAS position of voxel (0,0,0)
func (g Grid) Origin() Vec3 {
	return Vec3{g.IJKToRAS.At(0, 3), g.IJKToRAS.At(1, 3), g.IJKToRAS.At(2, 3)}
}

// Spacing returns the length of each axis column
func (g Grid) Spacing() [3]float64 {
	var s [3]float64
	for axis := 0; axis < 3; axis++ {
		s[axis] = g.column(axis).Norm()
	}
	return s
}

// Directions returns the unit RAS direction of each axis
func (g Grid) Directions() [3]Vec3 {
	var d [3]Vec3
	for axis := 0; axis < 3; axis++ {
		c := g.column(axis)
		if n := c.Norm(); n > 0 {
			d[axis] = c.Scale(1 / n)
		}
	}
	return d
}

func (g Grid) column(axis int) Vec3 {
	return Vec3{g.IJKToRAS.At(0, axis), g.IJKToRAS.At(1, axis), g.IJKToRAS.At(2, axis)}
}

// VoxelVolume returns the volume of one voxel in mm3
func (g Grid) VoxelVolume() float64 {
	return math.Abs(mat.Det(g.IJKToRAS.Slice(0, 3, 0, 3)))
}

// ToRAS maps a continuous IJK index to RAS
func (g Grid) ToRAS(ijk Vec3) Vec3 {
	in := mat.NewVecDense(4, []float64{ijk[0], ijk[1], ijk[2], 1})
	var out mat.VecDense
	out.MulVec(g.IJKToRAS, in)
	return Vec3{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// RASToIJK returns the inverse affine
func (g Grid) RASToIJK() (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(g.IJKToRAS); err != nil {
		return nil, fmt.Errorf("grid affine is singular: %w", err)
	}
	return &inv, nil
}

// ToIJK maps an RAS point to a continuous IJK index
func (g Grid) ToIJK(ras Vec3) (Vec3, error) {
	inv, err := g.RASToIJK()
	if err != nil {
		return Vec3{}, err
	}
	return apply(inv, ras), nil
}

func apply(m mat.Matrix, p Vec3) Vec3 {
	in := mat.NewVecDense(4, []float64{p[0], p[1], p[2], 1})
	var out mat.VecDense
	out.MulVec(m, in)
	return Vec3{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// Equal reports whether both grids have the same dimensions and affines
// within tol
func (g Grid) Equal(o Grid, tol float64) bool {
	if g.Dims != o.Dims || g.IJKToRAS == nil || o.IJKToRAS == nil {
		return false
	}
	return mat.EqualApprox(g.IJKToRAS, o.IJKToRAS, tol)
}

// NearestIndices maps every voxel of dst to the flat index of the nearest
// voxel of src, or -1 when it falls outside src.
func NearestIndices(src, dst Grid) ([]int, error) {
	inv, err := src.RASToIJK()
	if err != nil {
		return nil, err
	}
	var m mat.Dense
	m.Mul(inv, dst.IJKToRAS)

	out := make([]int, dst.Len())
	n := 0
	for k := 0; k < dst.Dims[2]; k++ {
		for j := 0; j < dst.Dims[1]; j++ {
			for i := 0; i < dst.Dims[0]; i++ {
				p := apply(&m, Vec3{float64(i), float64(j), float64(k)})
				si, sj, sk := int(math.Round(p[0])), int(math.Round(p[1])), int(math.Round(p[2]))
				if src.Contains(si, sj, sk) {
					out[n] = src.Index(si, sj, sk)
				} else {
					out[n] = -1
				}
				n++
			}
		}
	}
	return out, nil
}

// PlanarToRAS converts a pixel coordinate (u, v) on an axial image with
// ImagePositionPatient ipp and PixelSpacing (sx, sy) to RAS. Orientation is
// taken as axial, matching how planar annotations are rendered.
func PlanarToRAS(u, v float64, ipp Vec3, sx, sy float64) Vec3 {
	return Vec3{-(u*sx + ipp[0]), -(v*sy + ipp[1]), ipp[2]}
}

// ImagePointToRAS converts a pixel (col, row) to RAS using the full image
// plane: origin + col*rowDir*ps[0] + row*colDir*ps[1], then LPS to RAS.
func ImagePointToRAS(col, row float64, origin Vec3, iop [6]float64, ps [2]float64) Vec3 {
	rowDir := Vec3{iop[0], iop[1], iop[2]}
	colDir := Vec3{iop[3], iop[4], iop[5]}
	p := origin.Add(rowDir.Scale(col * ps[0])).Add(colDir.Scale(row * ps[1]))
	return LPSToRAS(p)
}
