package stl

import (
	"fmt"
	"math"
	"sort"

	"github.com/jpfielding/qreport.go/pkg/geom"
)

// face corner offsets in voxel units, wound counter clockwise seen from outside
var faces = [6]struct {
	step    [3]int
	corners [4][3]float64
}{
	{[3]int{-1, 0, 0}, [4][3]float64{{-.5, -.5, -.5}, {-.5, -.5, .5}, {-.5, .5, .5}, {-.5, .5, -.5}}},
	{[3]int{1, 0, 0}, [4][3]float64{{.5, -.5, -.5}, {.5, .5, -.5}, {.5, .5, .5}, {.5, -.5, .5}}},
	{[3]int{0, -1, 0}, [4][3]float64{{-.5, -.5, -.5}, {.5, -.5, -.5}, {.5, -.5, .5}, {-.5, -.5, .5}}},
	{[3]int{0, 1, 0}, [4][3]float64{{-.5, .5, -.5}, {-.5, .5, .5}, {.5, .5, .5}, {.5, .5, -.5}}},
	{[3]int{0, 0, -1}, [4][3]float64{{-.5, -.5, -.5}, {-.5, .5, -.5}, {.5, .5, -.5}, {.5, -.5, -.5}}},
	{[3]int{0, 0, 1}, [4][3]float64{{-.5, -.5, .5}, {.5, -.5, .5}, {.5, .5, .5}, {-.5, .5, .5}}},
}

// SurfaceFromMask extracts the closed boundary surface of a binary mask:
// every voxel face between a set voxel and an unset (or outside) neighbour
// becomes two triangles. Vertices are in RAS.
func SurfaceFromMask(mask []uint8, g geom.Grid) (*Mesh, error) {
	if len(mask) != g.Len() {
		return nil, fmt.Errorf("stl: mask of %d voxels for grid of %d", len(mask), g.Len())
	}
	set := func(i, j, k int) bool {
		return g.Contains(i, j, k) && mask[g.Index(i, j, k)] != 0
	}
	// a left handed IJK->RAS affine mirrors the winding
	flip := determinantSign(g) < 0

	m := &Mesh{}
	for k := 0; k < g.Dims[2]; k++ {
		for j := 0; j < g.Dims[1]; j++ {
			for i := 0; i < g.Dims[0]; i++ {
				if !set(i, j, k) {
					continue
				}
				for _, f := range faces {
					if set(i+f.step[0], j+f.step[1], k+f.step[2]) {
						continue
					}
					var c [4][3]float32
					for n, off := range f.corners {
						p := g.ToRAS(geom.Vec3{float64(i) + off[0], float64(j) + off[1], float64(k) + off[2]})
						c[n] = [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
					}
					a, b := Triangle{Vertex1: c[0], Vertex2: c[1], Vertex3: c[2]}, Triangle{Vertex1: c[0], Vertex2: c[2], Vertex3: c[3]}
					if flip {
						a.Vertex2, a.Vertex3 = a.Vertex3, a.Vertex2
						b.Vertex2, b.Vertex3 = b.Vertex3, b.Vertex2
					}
					a.ComputeNormal()
					b.ComputeNormal()
					m.Triangles = append(m.Triangles, a, b)
				}
			}
		}
	}
	return m, nil
}

func determinantSign(g geom.Grid) float64 {
	d := g.Directions()
	return d[0].Cross(d[1]).Dot(d[2])
}

// Voxelize fills the voxels of g whose centres lie inside the closed mesh.
// Rays are cast along i for every (j, k) row and filled between pairs of
// crossings (even-odd rule).
func Voxelize(m *Mesh, g geom.Grid) ([]uint8, error) {
	inv, err := g.RASToIJK()
	if err != nil {
		return nil, err
	}
	type tri [3]geom.Vec3
	tris := make([]tri, len(m.Triangles))
	for n, t := range m.Triangles {
		for v, p := range t.Vertices() {
			ras := geom.Vec3{float64(p[0]), float64(p[1]), float64(p[2])}
			tris[n][v] = transform(inv.RawRowView(0), inv.RawRowView(1), inv.RawRowView(2), ras)
		}
	}

	// small offsets keep rays off shared edges and vertices
	const dj, dk = 1.37e-4, 2.71e-4
	mask := make([]uint8, g.Len())
	var hits []float64
	for k := 0; k < g.Dims[2]; k++ {
		for j := 0; j < g.Dims[1]; j++ {
			y, z := float64(j)+dj, float64(k)+dk
			hits = hits[:0]
			for _, t := range tris {
				if x, ok := crossing(t, y, z); ok {
					hits = append(hits, x)
				}
			}
			if len(hits) < 2 {
				continue
			}
			sort.Float64s(hits)
			for h := 0; h+1 < len(hits); h += 2 {
				start := int(math.Ceil(hits[h]))
				end := int(math.Floor(hits[h+1]))
				for i := max(start, 0); i <= end && i < g.Dims[0]; i++ {
					mask[g.Index(i, j, k)] = 1
				}
			}
		}
	}
	return mask, nil
}

func transform(r0, r1, r2 []float64, p geom.Vec3) geom.Vec3 {
	return geom.Vec3{
		r0[0]*p[0] + r0[1]*p[1] + r0[2]*p[2] + r0[3],
		r1[0]*p[0] + r1[1]*p[1] + r1[2]*p[2] + r1[3],
		r2[0]*p[0] + r2[1]*p[1] + r2[2]*p[2] + r2[3],
	}
}

// crossing intersects the line {(x, y, z) : x in R} with triangle t and
// returns x of the intersection.
func crossing(t [3]geom.Vec3, y, z float64) (float64, bool) {
	a, b, c := t[0], t[1], t[2]
	det := (b[1]-a[1])*(c[2]-a[2]) - (c[1]-a[1])*(b[2]-a[2])
	if math.Abs(det) < 1e-12 {
		return 0, false
	}
	u := ((y-a[1])*(c[2]-a[2]) - (c[1]-a[1])*(z-a[2])) / det
	v := ((b[1]-a[1])*(z-a[2]) - (y-a[1])*(b[2]-a[2])) / det
	if u < 0 || v < 0 || u+v > 1 {
		return 0, false
	}
	return a[0] + u*(b[0]-a[0]) + v*(c[0]-a[0]), true
}
